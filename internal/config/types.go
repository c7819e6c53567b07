// Package config provides configuration loading for spockctl.
//
// Configuration is loaded with Viper from a YAML cluster file, with
// environment variable overrides. The defaults describe a local two-node
// development cluster and work without any file at all.
//
// Configuration priority (highest to lowest):
//  1. Environment variables (SPOCKCTL_ prefix)
//  2. Config file passed via --config or SPOCKCTL_CONFIG_PATH
//  3. ./cluster.yaml
//  4. ~/.config/spockctl/cluster.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"fmt"
	"path/filepath"

	"spockctl/internal/endpoint"
)

// Config is the root configuration container.
type Config struct {
	// PGVersion selects which compiled PostgreSQL tree under
	// Paths.BinDir the node commands use, unless a node overrides it.
	PGVersion string `mapstructure:"pg_version"`

	// Paths holds the base directories shared by all nodes.
	Paths PathsConfig `mapstructure:"paths"`

	// Nodes lists the cluster members in topology order.
	Nodes []NodeConfig `mapstructure:"nodes"`

	// PsqlBinary overrides the psql executable used by workflow dispatch.
	// Empty means the one under the active bin directory.
	PsqlBinary string `mapstructure:"psql_binary"`

	// Replication configures streaming replica setup.
	Replication ReplicationConfig `mapstructure:"replication"`
}

// ReplicationConfig holds the streaming-replication credentials and slot.
type ReplicationConfig struct {
	// User is the replication role created on the primary.
	User string `mapstructure:"user"`

	// Password for the replication role. Usually supplied through the
	// SPOCKCTL_REPLICATION_PASSWORD environment variable rather than the
	// config file.
	Password string `mapstructure:"password"`

	// Slot is the physical replication slot name.
	Slot string `mapstructure:"slot"`
}

// PathsConfig holds the base directories node paths are derived from.
type PathsConfig struct {
	// SourceDir contains unpacked postgresql-<version> source trees for
	// the compile command.
	SourceDir string `mapstructure:"source_dir"`

	// DataDir is the parent of per-node data directories (<DataDir>/<name>).
	DataDir string `mapstructure:"data_dir"`

	// LogDir is the parent of per-node server logs (<LogDir>/<name>.log).
	LogDir string `mapstructure:"log_dir"`

	// BinDir is the parent of installed trees (<BinDir>/pgsql-<version>/bin).
	BinDir string `mapstructure:"bin_dir"`
}

// NodeConfig describes one cluster member.
type NodeConfig struct {
	Name     string `mapstructure:"name"`
	DSN      string `mapstructure:"dsn"`
	Location string `mapstructure:"location"`
	Country  string `mapstructure:"country"`

	// Source marks the node as a synchronization source when a new node
	// joins the cluster.
	Source bool `mapstructure:"source"`

	// Port is the server port used by the node lifecycle commands.
	Port int `mapstructure:"port"`

	// PGVersion overrides the cluster-wide version for this node.
	PGVersion string `mapstructure:"pg_version"`
}

// DefaultConfig returns a Config describing a local two-node cluster.
func DefaultConfig() *Config {
	return &Config{
		PGVersion: "17",
		Replication: ReplicationConfig{
			User: "replicator",
			Slot: "replica_slot",
		},
		Paths: PathsConfig{
			SourceDir: "/usr/local/src",
			DataDir:   "/home/pgedge/pg_data",
			LogDir:    "/home/pgedge/pg_data/logs",
			BinDir:    "/usr/local",
		},
		Nodes: []NodeConfig{
			{
				Name:     "n1",
				DSN:      "host=127.0.0.1 dbname=pgedge port=5431 user=pgedge password=pgedge",
				Location: "Los Angeles",
				Country:  "USA",
				Source:   true,
				Port:     5431,
			},
			{
				Name:     "n2",
				DSN:      "host=127.0.0.1 dbname=pgedge port=5432 user=pgedge password=pgedge",
				Location: "Los Angeles",
				Country:  "USA",
				Port:     5432,
			},
		},
	}
}

// Endpoints converts the configured node list into workflow endpoints,
// preserving order.
func (c *Config) Endpoints() []endpoint.Endpoint {
	eps := make([]endpoint.Endpoint, len(c.Nodes))
	for i, n := range c.Nodes {
		eps[i] = endpoint.Endpoint{
			Name:     n.Name,
			DSN:      n.DSN,
			Location: n.Location,
			Country:  n.Country,
			Source:   n.Source,
		}
	}
	return eps
}

// Node looks a cluster member up by name.
func (c *Config) Node(name string) (NodeConfig, error) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, nil
		}
	}
	return NodeConfig{}, fmt.Errorf("node %q not found in configuration", name)
}

// NodeVersion returns the PostgreSQL version active for the node.
func (c *Config) NodeVersion(n NodeConfig) string {
	if n.PGVersion != "" {
		return n.PGVersion
	}
	return c.PGVersion
}

// BinDir returns the bin directory of the installed tree for version.
func (c *Config) BinDir(version string) string {
	return filepath.Join(c.Paths.BinDir, "pgsql-"+version, "bin")
}

// NodeDataDir returns the node's data directory.
func (c *Config) NodeDataDir(name string) string {
	return filepath.Join(c.Paths.DataDir, name)
}

// NodeLogFile returns the node's server log path.
func (c *Config) NodeLogFile(name string) string {
	return filepath.Join(c.Paths.LogDir, name+".log")
}
