package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads environment variables on top of the built-in defaults and
// returns the final Config. A .env file at the current directory is loaded
// first if present (silently ignored if missing). The returned Config has
// NOT been validated; callers should invoke Config.Validate() after Load.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known EXECCORE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty).
func applyEnvOverrides(cfg *Config) {
	// ── Broker ──
	setStr(&cfg.Broker.Host, "EXECCORE_BROKER_HOST")
	setInt(&cfg.Broker.Port, "EXECCORE_BROKER_PORT")
	setInt(&cfg.Broker.ClientID, "EXECCORE_BROKER_CLIENT_ID")
	setDuration(&cfg.Broker.ReadyTimeout, "EXECCORE_BROKER_READY_TIMEOUT")
	setInt(&cfg.Broker.RateLimitPerSecond, "EXECCORE_BROKER_RATE_LIMIT_PER_SECOND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "EXECCORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EXECCORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EXECCORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EXECCORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EXECCORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EXECCORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EXECCORE_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EXECCORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EXECCORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EXECCORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "EXECCORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EXECCORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EXECCORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EXECCORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "EXECCORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "EXECCORE_REDIS_TLS_ENABLED")

	// ── Archive ──
	setStr(&cfg.Archive.Endpoint, "EXECCORE_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "EXECCORE_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "EXECCORE_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "EXECCORE_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "EXECCORE_ARCHIVE_SECRET_KEY")
	setBool(&cfg.Archive.UseSSL, "EXECCORE_ARCHIVE_USE_SSL")
	setBool(&cfg.Archive.ForcePathStyle, "EXECCORE_ARCHIVE_FORCE_PATH_STYLE")
	setInt(&cfg.Archive.RetentionDays, "EXECCORE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.ArchiveCron, "EXECCORE_ARCHIVE_CRON")
	setDuration(&cfg.Archive.DedupTTL, "EXECCORE_ARCHIVE_DEDUP_TTL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "EXECCORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "EXECCORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "EXECCORE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "EXECCORE_NOTIFY_EVENTS")

	// ── Strategy ──
	setStringSlice(&cfg.Strategy.Active, "EXECCORE_STRATEGY_ACTIVE")
	setInt(&cfg.Strategy.DefaultTimestep, "EXECCORE_STRATEGY_DEFAULT_TIMESTEP")
	setInt(&cfg.Strategy.BackfillDays, "EXECCORE_STRATEGY_BACKFILL_DAYS")
	setTimestepMap(&cfg.Strategy.TimestepMinutes, "EXECCORE_STRATEGY_TIMESTEP_MINUTES")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "EXECCORE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "EXECCORE_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "EXECCORE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setTimestepMap parses a "name=minutes,name=minutes" env var into the
// strategy-name -> timestep override map.
func setTimestepMap(dst *map[string]int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	out := make(map[string]int)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		minutes, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		out[strings.TrimSpace(parts[0])] = minutes
	}
	if len(out) > 0 {
		*dst = out
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
