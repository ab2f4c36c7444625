package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "edgar-tracker/internal/errors"
)

func TestLoad_FirstRunCreatesTemplate(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EDGAR_USER_AGENT", "edgar-tracker-test test@example.com")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "config.toml")); err != nil {
		t.Errorf("config template not created: %v", err)
	}

	// Defaults survive an empty template.
	if cfg.Polling.Interval != 15*time.Minute {
		t.Errorf("interval = %s, want 15m", cfg.Polling.Interval)
	}
	if cfg.Polling.MaxWorkers != 4 {
		t.Errorf("max workers = %d, want 4", cfg.Polling.MaxWorkers)
	}
	if cfg.Source.FilingsPerTicker != 50 {
		t.Errorf("filings per ticker = %d, want 50", cfg.Source.FilingsPerTicker)
	}
	if cfg.Storage.DBPath != filepath.Join(dir, "tracker.db") {
		t.Errorf("db path = %s, want under config dir", cfg.Storage.DBPath)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	content := `
[polling]
interval = "5m"
max_workers = 2

[source]
user_agent = "example corp filings-bot ops@example.com"
filings_per_ticker = 10

[storage]
db_path = "/tmp/edgar-test.db"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Polling.Interval != 5*time.Minute {
		t.Errorf("interval = %s, want 5m", cfg.Polling.Interval)
	}
	if cfg.Polling.MaxWorkers != 2 {
		t.Errorf("max workers = %d, want 2", cfg.Polling.MaxWorkers)
	}
	if cfg.Source.UserAgent != "example corp filings-bot ops@example.com" {
		t.Errorf("user agent = %q", cfg.Source.UserAgent)
	}
	if cfg.Source.FilingsPerTicker != 10 {
		t.Errorf("filings per ticker = %d, want 10", cfg.Source.FilingsPerTicker)
	}
	if cfg.Storage.DBPath != "/tmp/edgar-test.db" {
		t.Errorf("db path = %s", cfg.Storage.DBPath)
	}
	// Untouched values keep defaults.
	if cfg.Polling.BackoffCap != 4*time.Hour {
		t.Errorf("backoff cap = %s, want 4h", cfg.Polling.BackoffCap)
	}
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	content := `
[source]
user_agent = "from-file"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("EDGAR_USER_AGENT", "from-env env@example.com")
	t.Setenv("EDGAR_POLL_INTERVAL", "7m")
	t.Setenv("EDGAR_MAX_WORKERS", "9")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source.UserAgent != "from-env env@example.com" {
		t.Errorf("env should override file, got %q", cfg.Source.UserAgent)
	}
	if cfg.Polling.Interval != 7*time.Minute {
		t.Errorf("interval = %s, want 7m", cfg.Polling.Interval)
	}
	if cfg.Polling.MaxWorkers != 9 {
		t.Errorf("max workers = %d, want 9", cfg.Polling.MaxWorkers)
	}
}

func TestLoad_MissingUserAgentIsFatal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EDGAR_USER_AGENT", "")

	_, err := Load(dir)
	if !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid for missing user agent, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Source.UserAgent = "test test@example.com"
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("default config with user agent should validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Polling.Interval = 0 }},
		{"no workers", func(c *Config) { c.Polling.MaxWorkers = 0 }},
		{"factor below one", func(c *Config) { c.Polling.UnavailableFactor = 0.5 }},
		{"cap below interval", func(c *Config) { c.Polling.BackoffCap = time.Minute }},
		{"zero filings per ticker", func(c *Config) { c.Source.FilingsPerTicker = 0 }},
		{"negative throttle", func(c *Config) { c.Source.ThrottleDelay = -time.Second }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := base()
			c.mutate(cfg)
			if err := cfg.Validate(); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}
