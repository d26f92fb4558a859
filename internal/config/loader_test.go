package config

import (
	"testing"
	"time"
)

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("EXECCORE_BROKER_HOST", "10.0.0.5")
	t.Setenv("EXECCORE_BROKER_PORT", "4002")
	t.Setenv("EXECCORE_BROKER_READY_TIMEOUT", "45s")
	t.Setenv("EXECCORE_STRATEGY_ACTIVE", "momentum, pairs_trade ,mean_reversion")
	t.Setenv("EXECCORE_STRATEGY_TIMESTEP_MINUTES", "momentum=1, pairs_trade=15")
	t.Setenv("EXECCORE_POSTGRES_RUN_MIGRATIONS", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Broker.Host != "10.0.0.5" {
		t.Errorf("Broker.Host = %q, want 10.0.0.5", cfg.Broker.Host)
	}
	if cfg.Broker.Port != 4002 {
		t.Errorf("Broker.Port = %d, want 4002", cfg.Broker.Port)
	}
	if cfg.Broker.ReadyTimeout != 45*time.Second {
		t.Errorf("Broker.ReadyTimeout = %s, want 45s", cfg.Broker.ReadyTimeout)
	}
	wantActive := []string{"momentum", "pairs_trade", "mean_reversion"}
	if len(cfg.Strategy.Active) != len(wantActive) {
		t.Fatalf("Strategy.Active = %v, want %v", cfg.Strategy.Active, wantActive)
	}
	for i, name := range wantActive {
		if cfg.Strategy.Active[i] != name {
			t.Errorf("Strategy.Active[%d] = %q, want %q", i, cfg.Strategy.Active[i], name)
		}
	}
	if cfg.Strategy.TimestepMinutes["momentum"] != 1 || cfg.Strategy.TimestepMinutes["pairs_trade"] != 15 {
		t.Errorf("Strategy.TimestepMinutes = %v, want momentum=1, pairs_trade=15", cfg.Strategy.TimestepMinutes)
	}
	if cfg.Postgres.RunMigrations {
		t.Error("Postgres.RunMigrations should be false after override")
	}
}

func TestApplyEnvOverridesLeavesDefaultsUntouchedWhenUnset(t *testing.T) {
	cfg := Defaults()
	applyEnvOverrides(&cfg)
	if cfg.Broker.Host != "127.0.0.1" {
		t.Errorf("Broker.Host changed unexpectedly: %q", cfg.Broker.Host)
	}
	if len(cfg.Strategy.Active) != 0 {
		t.Errorf("Strategy.Active changed unexpectedly: %v", cfg.Strategy.Active)
	}
}

func TestSetTimestepMapIgnoresMalformedPairs(t *testing.T) {
	dst := map[string]int{}
	t.Setenv("EXECCORE_TEST_TIMESTEP_MAP", "a=1,b,c=notanumber,d=5")
	setTimestepMap(&dst, "EXECCORE_TEST_TIMESTEP_MAP")
	if dst["a"] != 1 || dst["d"] != 5 {
		t.Errorf("expected well-formed pairs to parse, got %v", dst)
	}
	if _, ok := dst["b"]; ok {
		t.Error("malformed pair without '=' should be skipped")
	}
	if _, ok := dst["c"]; ok {
		t.Error("pair with a non-numeric value should be skipped")
	}
}
