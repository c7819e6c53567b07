package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testClusterYAML = `pg_version: "16.3"
paths:
  source_dir: /opt/src
  data_dir: /var/lib/pg
  log_dir: /var/log/pg
  bin_dir: /opt/pg
psql_binary: /opt/pg/pgsql-16.3/bin/psql
nodes:
  - name: alpha
    dsn: host=10.0.0.1 dbname=app port=5432 user=app
    location: Frankfurt
    country: Germany
    source: true
    port: 5432
  - name: beta
    dsn: host=10.0.0.2 dbname=app port=5432 user=app
    location: Dublin
    country: Ireland
    port: 5432
    pg_version: "17"
`

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(old))
	})
}

func writeClusterFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_ExplicitPath(t *testing.T) {
	path := writeClusterFile(t, testClusterYAML)

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)

	assert.Equal(t, "16.3", cfg.PGVersion)
	assert.Equal(t, "/var/lib/pg", cfg.Paths.DataDir)
	require.Len(t, cfg.Nodes, 2)
	assert.Equal(t, "alpha", cfg.Nodes[0].Name)
	assert.True(t, cfg.Nodes[0].Source)
	assert.False(t, cfg.Nodes[1].Source)
}

func TestLoader_ExplicitPathMissing(t *testing.T) {
	_, err := NewLoader().Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoader_EnvPathOverride(t *testing.T) {
	path := writeClusterFile(t, testClusterYAML)
	t.Setenv(EnvConfigPath, path)

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)
	assert.Equal(t, "alpha", cfg.Nodes[0].Name)
}

func TestLoader_EnvOverridesWithoutDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	t.Setenv("SPOCKCTL_REPLICATION_PASSWORD", "s3cret")
	t.Setenv("SPOCKCTL_PSQL_BINARY", "/opt/pg/bin/psql")
	chdir(t, t.TempDir())

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Replication.Password)
	assert.Equal(t, "/opt/pg/bin/psql", cfg.PsqlBinary)
}

func TestLoader_DefaultsWithoutFile(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	chdir(t, t.TempDir())

	cfg, err := NewLoader().Load("")
	require.NoError(t, err)

	def := DefaultConfig()
	assert.Equal(t, def.PGVersion, cfg.PGVersion)
	require.Len(t, cfg.Nodes, len(def.Nodes))
	assert.Equal(t, def.Nodes[0].DSN, cfg.Nodes[0].DSN)
}

func TestConfig_Endpoints(t *testing.T) {
	cfg := DefaultConfig()
	eps := cfg.Endpoints()

	require.Len(t, eps, 2)
	assert.Equal(t, "n1", eps[0].Name)
	assert.True(t, eps[0].Source)
	assert.Equal(t, "pgedge", eps[0].Database())
}

func TestConfig_NodeLookup(t *testing.T) {
	cfg := DefaultConfig()

	n, err := cfg.Node("n2")
	require.NoError(t, err)
	assert.Equal(t, 5432, n.Port)

	_, err = cfg.Node("missing")
	assert.Error(t, err)
}

func TestConfig_PathHelpers(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "/usr/local/pgsql-17/bin", cfg.BinDir("17"))
	assert.Equal(t, "/home/pgedge/pg_data/n1", cfg.NodeDataDir("n1"))
	assert.Equal(t, "/home/pgedge/pg_data/logs/n1.log", cfg.NodeLogFile("n1"))
}

func TestConfig_NodeVersionOverride(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "17", cfg.NodeVersion(NodeConfig{Name: "n1"}))
	assert.Equal(t, "16.3", cfg.NodeVersion(NodeConfig{Name: "n1", PGVersion: "16.3"}))
}
