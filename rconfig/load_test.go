package rconfig

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
self: 1
topology:
  rank: 0
  children:
    - rank: 1
      children:
        - rank: 2
          children: []
transport:
  kind: redis
  redis:
    url: "redis://${REDIS_HOST:-localhost}:6379/0"
    timeout: "3s"
    retries: 5
shell:
  path: /usr/bin/env
  args: ["job-shell"]
  env: ["LANG=C"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "derpd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Self != 1 {
		t.Errorf("Self = %d, want 1", cfg.Self)
	}
	if cfg.Transport.Redis.URL != "redis://cache.internal:6379/0" {
		t.Errorf("Redis.URL = %q", cfg.Transport.Redis.URL)
	}
	if cfg.Transport.Redis.Timeout.Duration.String() != "3s" {
		t.Errorf("Redis.Timeout = %v", cfg.Transport.Redis.Timeout.Duration)
	}
	if cfg.Shell.Path != "/usr/bin/env" {
		t.Errorf("Shell.Path = %q", cfg.Shell.Path)
	}

	tree, err := cfg.Topology.Tree()
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if tree.Subtree(0).Len() != 3 {
		t.Errorf("root subtree size = %d, want 3", tree.Subtree(0).Len())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/derpd.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadSelfNotInTopology(t *testing.T) {
	path := writeConfig(t, `
self: 9
topology:
  rank: 0
  children: []
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for self rank absent from topology")
	}
}

func TestLoadUnknownTransportKind(t *testing.T) {
	path := writeConfig(t, `
self: 0
topology:
  rank: 0
  children: []
transport:
  kind: carrier-pigeon
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown transport kind")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
self: 0
topology:
  rank: 0
  children: []
bogus_field: true
`)
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown top-level field")
	}
}
