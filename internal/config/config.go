// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Dispatcher DispatcherConfig `mapstructure:"dispatcher"`
	Results    ResultsConfig    `mapstructure:"results"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Seeds      []string         `mapstructure:"seeds"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls the ops/ingest HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// FetchConfig configures the HTTP fetch capability.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
}

// DispatcherConfig governs admission and execution behavior.
type DispatcherConfig struct {
	Workers        int `mapstructure:"workers"`
	WindowSeconds  int `mapstructure:"window_seconds"`
	DefaultDelayMS int `mapstructure:"default_delay_ms"`
}

// ResultsConfig selects downstream result sinks.
type ResultsConfig struct {
	Sinks    []string       `mapstructure:"sinks"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PubSubConfig holds metadata for the Pub/Sub result sink.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// PostgresConfig controls the Postgres result store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig configures payload body archiving.
type ArchiveConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Store     string `mapstructure:"store"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FETCHD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.user_agent", "fetchd/0.1 (+https://github.com/crawlkit/fetchd)")
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)
	v.SetDefault("dispatcher.workers", 100)
	v.SetDefault("dispatcher.window_seconds", 30)
	v.SetDefault("dispatcher.default_delay_ms", 1000)
	v.SetDefault("results.sinks", []string{"log"})
	v.SetDefault("results.postgres.table", "fetch_results")
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.store", "memory")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Dispatcher.Workers <= 0 {
		return fmt.Errorf("dispatcher.workers must be > 0")
	}
	if c.Dispatcher.WindowSeconds <= 0 {
		return fmt.Errorf("dispatcher.window_seconds must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	for _, sink := range c.Results.Sinks {
		switch sink {
		case "log", "memory":
		case "pubsub":
			if c.Results.PubSub.ProjectID == "" || c.Results.PubSub.TopicID == "" {
				return fmt.Errorf("results.pubsub.project_id and topic_id must be set for the pubsub sink")
			}
		case "postgres":
			if c.Results.Postgres.DSN == "" {
				return fmt.Errorf("results.postgres.dsn must be set for the postgres sink")
			}
		default:
			return fmt.Errorf("unknown result sink %q", sink)
		}
	}
	if c.Archive.Enabled {
		switch c.Archive.Store {
		case "memory":
		case "local":
			if c.Archive.LocalDir == "" {
				return fmt.Errorf("archive.local_dir must be set for the local store")
			}
		case "gcs":
			if c.Archive.GCSBucket == "" {
				return fmt.Errorf("archive.gcs_bucket must be set for the gcs store")
			}
		default:
			return fmt.Errorf("unknown archive store %q", c.Archive.Store)
		}
	}
	return nil
}

// FetchTimeout converts the configured timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// DefaultCrawlDelay converts the configured per-domain delay into a duration.
func (c Config) DefaultCrawlDelay() time.Duration {
	return time.Duration(c.Dispatcher.DefaultDelayMS) * time.Millisecond
}
