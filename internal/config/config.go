// Package config loads engine configuration from file, environment
// and defaults.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kimhsiao/dietdaily/internal/errors"
)

// Config holds the full engine configuration.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	Storage StorageConfig `mapstructure:"storage"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Merge   MergeConfig   `mapstructure:"merge"`
	Log     LogConfig     `mapstructure:"log"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// StorageConfig selects the local persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "file"
}

// RemoteConfig selects and configures the upstream backend.
type RemoteConfig struct {
	Backend       string `mapstructure:"backend"` // "rest" or "sheets"
	Endpoint      string `mapstructure:"endpoint"`
	APIKey        string `mapstructure:"api_key"`
	Table         string `mapstructure:"table"`
	SpreadsheetID string `mapstructure:"spreadsheet_id"`
	Sheet         string `mapstructure:"sheet"`

	Passphrase string `mapstructure:"passphrase"` // empty disables encryption
}

// SyncConfig tunes retries and scheduling.
type SyncConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffWindow time.Duration `mapstructure:"backoff_window"`
	Interval      time.Duration `mapstructure:"interval"`

	ProbeEndpoint string        `mapstructure:"probe_endpoint"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// MergeConfig tunes duplicate detection.
type MergeConfig struct {
	Window          time.Duration `mapstructure:"window"`
	AmountTolerance float64       `mapstructure:"amount_tolerance"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // empty logs to stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ServeConfig controls the local status server.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load reads configuration from the given file, falling back to the
// search path and then to defaults. Environment variables with the
// DIETDAILY_ prefix override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("dietdaily")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dietdaily")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dietdaily")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !stderrors.As(err, &notFound) {
			return nil, errors.Wrap(errors.ErrInvalid, "failed to read config", err)
		}
		// No config file anywhere; defaults are a complete setup.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.ErrInvalid, "failed to parse config", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("remote.backend", "rest")
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.backoff_window", time.Minute)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.probe_endpoint", "https://www.google.com/generate_204")
	v.SetDefault("sync.probe_interval", 30*time.Second)
	v.SetDefault("merge.window", time.Minute)
	v.SetDefault("merge.amount_tolerance", 0.01)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("serve.addr", "localhost:8765")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dietdaily"
	}
	return filepath.Join(home, ".dietdaily")
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "sqlite", "file", "memory":
	default:
		return errors.New(errors.ErrInvalid, "unknown storage driver: "+c.Storage.Driver)
	}
	switch c.Remote.Backend {
	case "rest", "sheets":
	default:
		return errors.New(errors.ErrInvalid, "unknown remote backend: "+c.Remote.Backend)
	}
	if c.Sync.MaxAttempts <= 0 {
		return errors.New(errors.ErrInvalid, "sync.max_attempts must be positive")
	}
	return nil
}
