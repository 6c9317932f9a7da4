package rconfig

import (
	"fmt"

	"github.com/pithecene-io/derp/idset"
	"github.com/pithecene-io/derp/shell"
	"github.com/pithecene-io/derp/topology"
	"github.com/pithecene-io/derp/transport"
)

// Config is the on-disk shape of a rank's derpd.yaml.
type Config struct {
	// Self is this process's rank.
	Self idset.Rank `yaml:"self"`
	// Topology describes the whole static overlay, rooted wherever the
	// file places rank 0; every rank in the cluster loads the same tree.
	Topology NodeConfig `yaml:"topology"`
	// Transport selects and configures the overlay backplane.
	Transport TransportConfig `yaml:"transport"`
	// Shell is the template every locally-spawned job shell is built
	// from (spec.md §4.5 "a namespace-scoped environment").
	Shell ShellConfig `yaml:"shell"`
	// EventLog selects the dev sink this rank forwards job lifecycle
	// events to (spec.md §7 "external KVS-based eventlog"). Empty kind
	// disables it.
	EventLog EventLogConfig `yaml:"eventlog"`
}

// NodeConfig is one node of the YAML topology tree.
type NodeConfig struct {
	Rank     idset.Rank   `yaml:"rank"`
	Children []NodeConfig `yaml:"children"`
}

// Tree builds an immutable topology.Tree from the config's nested node
// list, precomputing every rank's subtree exactly once (spec.md §9
// "Recursive topology walk").
func (n NodeConfig) Tree() (*topology.Tree, error) {
	return topology.Build(n.toNode())
}

func (n NodeConfig) toNode() *topology.Node {
	node := &topology.Node{Rank: n.Rank}
	for _, c := range n.Children {
		node.Children = append(node.Children, c.toNode())
	}
	return node
}

// TransportConfig selects and configures an overlay transport.
type TransportConfig struct {
	// Kind is "inproc" or "redis". Empty defaults to "inproc".
	Kind  string      `yaml:"kind"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig mirrors transport.RedisConfig with YAML-friendly field
// names and string durations.
type RedisConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
	Retries int      `yaml:"retries"`
}

// ShellConfig mirrors shell.Config for YAML loading.
type ShellConfig struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
	Env  []string `yaml:"env"`
}

// ToShellConfig converts to shell.Config. Barrier is set per-job by the
// exec engine, not by static config.
func (s ShellConfig) ToShellConfig() shell.Config {
	return shell.Config{Path: s.Path, Args: append([]string{}, s.Args...), Env: append([]string{}, s.Env...)}
}

// ToRedisConfig converts to transport.RedisConfig.
func (r RedisConfig) ToRedisConfig() transport.RedisConfig {
	return transport.RedisConfig{URL: r.URL, Timeout: r.Timeout.Duration, Retries: r.Retries}
}

// EventLogConfig selects and configures a dev eventlog.Sink.
type EventLogConfig struct {
	// Kind is "", "memory", "fs", or "s3". Empty disables event forwarding.
	Kind     string           `yaml:"kind"`
	Dataset  string           `yaml:"dataset"`
	Source   string           `yaml:"source"`
	Category string           `yaml:"category"`
	Root     string           `yaml:"root"` // fs sink storage root
	S3       EventLogS3Config `yaml:"s3"`
}

// EventLogS3Config mirrors eventlog.S3Config for YAML loading.
type EventLogS3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// Validate reports whether cfg.Self names a rank present in cfg.Topology
// and the transport kind is recognized.
func (c *Config) Validate() error {
	tree, err := c.Topology.Tree()
	if err != nil {
		return fmt.Errorf("rconfig: invalid topology: %w", err)
	}
	if tree.Subtree(c.Self).Len() == 0 {
		return fmt.Errorf("rconfig: self rank %d not present in topology", c.Self)
	}
	switch c.Transport.Kind {
	case "", "inproc", "redis":
	default:
		return fmt.Errorf("rconfig: unknown transport kind %q", c.Transport.Kind)
	}
	switch c.EventLog.Kind {
	case "", "memory", "fs", "s3":
	default:
		return fmt.Errorf("rconfig: unknown eventlog kind %q", c.EventLog.Kind)
	}
	return nil
}
