package rconfig

import "testing"

func TestShellConfigConversion(t *testing.T) {
	sc := ShellConfig{Path: "/bin/job", Args: []string{"-x"}, Env: []string{"A=1"}}
	got := sc.ToShellConfig()
	if got.Path != "/bin/job" || len(got.Args) != 1 || got.Args[0] != "-x" || len(got.Env) != 1 {
		t.Errorf("ToShellConfig() = %#v", got)
	}
}

func TestRedisConfigConversion(t *testing.T) {
	rc := RedisConfig{URL: "redis://localhost:6379", Retries: 2}
	got := rc.ToRedisConfig()
	if got.URL != rc.URL || got.Retries != 2 {
		t.Errorf("ToRedisConfig() = %#v", got)
	}
}

func TestNodeConfigTreeRejectsDuplicateRank(t *testing.T) {
	n := NodeConfig{Rank: 0, Children: []NodeConfig{{Rank: 0}}}
	if _, err := n.Tree(); err == nil {
		t.Error("expected error for duplicate rank")
	}
}
