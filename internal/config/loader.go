package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvConfigPath is the environment variable naming an explicit config file.
const EnvConfigPath = "SPOCKCTL_CONFIG_PATH"

// Loader loads configuration through Viper.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader with defaults registered and the SPOCKCTL_
// environment prefix active.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SPOCKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := DefaultConfig()
	v.SetDefault("pg_version", def.PGVersion)
	v.SetDefault("paths.source_dir", def.Paths.SourceDir)
	v.SetDefault("paths.data_dir", def.Paths.DataDir)
	v.SetDefault("paths.log_dir", def.Paths.LogDir)
	v.SetDefault("paths.bin_dir", def.Paths.BinDir)
	v.SetDefault("replication.user", def.Replication.User)
	v.SetDefault("replication.slot", def.Replication.Slot)

	// Keys without defaults are invisible to Unmarshal unless bound, so
	// their SPOCKCTL_ env overrides would be dropped.
	_ = v.BindEnv("replication.password")
	_ = v.BindEnv("psql_binary")

	return &Loader{v: v}
}

// Load reads the cluster configuration.
//
// When explicitPath is non-empty (from --config) it must exist. Otherwise
// the SPOCKCTL_CONFIG_PATH environment variable is honored, then
// ./cluster.yaml, then ~/.config/spockctl/cluster.yaml. When no file is
// found anywhere, the defaults are returned: the default node set is only
// used if the file did not define one.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	switch {
	case path != "":
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	default:
		l.v.SetConfigName("cluster")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "spockctl"))
		}
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
			// No file anywhere: run on defaults.
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Nodes) == 0 {
		cfg.Nodes = DefaultConfig().Nodes
	}
	return cfg, nil
}
