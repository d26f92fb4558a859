// Package config defines the top-level configuration for the execution
// coordinator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from
// environment variables (optionally via a .env file) — there is no
// structured config file format in this deployment.
type Config struct {
	Broker   BrokerConfig   `json:"broker"`
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
	Archive  ArchiveConfig  `json:"archive"`
	Notify   NotifyConfig   `json:"notify"`
	Strategy StrategyConfig `json:"strategy"`
	Server   ServerConfig   `json:"server"`
	LogLevel string         `json:"log_level"`
}

// BrokerConfig holds the gateway connection parameters for the brokerage
// client.
type BrokerConfig struct {
	Host               string        `json:"host"`
	Port               int           `json:"port"`
	ClientID           int           `json:"client_id"`
	ReadyTimeout       time.Duration `json:"ready_timeout"`
	RateLimitPerSecond int           `json:"rate_limit_per_second"`
}

// PostgresConfig holds PostgreSQL connection parameters for the primary
// store.
type PostgresConfig struct {
	DSN           string `json:"dsn"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
	Database      string `json:"database"`
	User          string `json:"user"`
	Password      string `json:"password"`
	SSLMode       string `json:"ssl_mode"`
	PoolMaxConns  int    `json:"pool_max_conns"`
	PoolMinConns  int    `json:"pool_min_conns"`
	RunMigrations bool   `json:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs only the
// alert-dedup and REST rate-limiter concerns in this deployment — the
// price cache and subscriber registry are in-process.
type RedisConfig struct {
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	PoolSize   int    `json:"pool_size"`
	MaxRetries int    `json:"max_retries"`
	TLSEnabled bool   `json:"tls_enabled"`
}

// ArchiveConfig holds S3-compatible object storage parameters for
// cold-storage archival of closed-day transaction batches.
type ArchiveConfig struct {
	Endpoint       string        `json:"endpoint"`
	Region         string        `json:"region"`
	Bucket         string        `json:"bucket"`
	AccessKey      string        `json:"access_key"`
	SecretKey      string        `json:"secret_key"`
	UseSSL         bool          `json:"use_ssl"`
	ForcePathStyle bool          `json:"force_path_style"`
	RetentionDays  int           `json:"retention_days"`
	ArchiveCron    string        `json:"archive_cron"`
	DedupTTL       time.Duration `json:"dedup_ttl"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `json:"telegram_token"`
	TelegramChatID    string   `json:"telegram_chat_id"`
	DiscordWebhookURL string   `json:"discord_webhook_url"`
	Events            []string `json:"events"`
}

// StrategyConfig selects which strategies this coordinator session runs
// and at what timestep each subscribes to bars.
type StrategyConfig struct {
	// Active lists the strategy names to run concurrently.
	Active []string `json:"active"`
	// TimestepMinutes maps a strategy name to the bar timestep it consumes
	// (e.g. 5, 15, 30). Strategies not listed default to DefaultTimestep.
	TimestepMinutes map[string]int `json:"timestep_minutes"`
	DefaultTimestep int            `json:"default_timestep"`
	// BackfillDays bounds how much history is fetched at startup before a
	// strategy is considered caught up.
	BackfillDays int `json:"backfill_days"`
}

// ServerConfig holds the health/readiness HTTP server parameters.
type ServerConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Broker: BrokerConfig{
			Host:               "127.0.0.1",
			Port:               7497,
			ClientID:           1,
			ReadyTimeout:       30 * time.Second,
			RateLimitPerSecond: 45,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "execcore",
			User:          "execcore",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Archive: ArchiveConfig{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "execcore-archive",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
			ArchiveCron:    "0 3 1 * *",
			DedupTTL:       15 * time.Minute,
		},
		Notify: NotifyConfig{
			Events: []string{"data_gap", "broker_stream_stalled", "bootstrap_failure"},
		},
		Strategy: StrategyConfig{
			TimestepMinutes: map[string]int{},
			DefaultTimestep: 5,
			BackfillDays:    5,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Broker.Host == "" {
		errs = append(errs, "broker: host must not be empty")
	}
	if c.Broker.Port <= 0 || c.Broker.Port > 65535 {
		errs = append(errs, fmt.Sprintf("broker: port must be 1-65535, got %d", c.Broker.Port))
	}
	if c.Broker.RateLimitPerSecond <= 0 {
		errs = append(errs, "broker: rate_limit_per_second must be > 0")
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.Archive.Endpoint == "" {
		errs = append(errs, "archive: endpoint must not be empty")
	}
	if c.Archive.Bucket == "" {
		errs = append(errs, "archive: bucket must not be empty")
	}
	if c.Archive.RetentionDays <= 0 {
		errs = append(errs, "archive: retention_days must be > 0")
	}

	if len(c.Strategy.Active) == 0 {
		errs = append(errs, "strategy: active must list at least one strategy")
	}
	if c.Strategy.DefaultTimestep <= 0 {
		errs = append(errs, "strategy: default_timestep must be > 0")
	}
	if c.Strategy.BackfillDays <= 0 {
		errs = append(errs, "strategy: backfill_days must be > 0")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
