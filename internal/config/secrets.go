package config

// RedactedConfig returns a copy of cfg with sensitive fields replaced by
// the redaction placeholder "***". The Notify.Events and Strategy.Active
// slices and the Strategy.TimestepMinutes map are copied as well, so
// changes to the result never reach cfg. Use this when logging or
// printing the active configuration so secrets are never accidentally
// exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	out.Archive = cfg.Archive
	redact(&out.Archive.AccessKey)
	redact(&out.Archive.SecretKey)

	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Strategy.Active != nil {
		out.Strategy.Active = make([]string, len(cfg.Strategy.Active))
		copy(out.Strategy.Active, cfg.Strategy.Active)
	}
	if cfg.Strategy.TimestepMinutes != nil {
		out.Strategy.TimestepMinutes = make(map[string]int, len(cfg.Strategy.TimestepMinutes))
		for k, v := range cfg.Strategy.TimestepMinutes {
			out.Strategy.TimestepMinutes[k] = v
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
