// Package config provides configuration management for the filings tracker.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"

	apperrors "edgar-tracker/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Polling       PollingConfig      `mapstructure:"polling"`
	Source        SourceConfig       `mapstructure:"source"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	UI            UIConfig           `mapstructure:"ui"`
}

// PollingConfig holds scheduler configuration.
type PollingConfig struct {
	Interval              time.Duration `mapstructure:"interval"`                // base poll interval per ticker
	Tick                  time.Duration `mapstructure:"tick"`                    // due-check tick
	MaxWorkers            int           `mapstructure:"max_workers"`             // concurrent ticker cycles
	MaxFailures           int           `mapstructure:"max_failures"`            // consecutive failures before degraded
	UnavailableFactor     float64       `mapstructure:"unavailable_factor"`      // backoff multiplier for transport errors
	RateLimitFactor       float64       `mapstructure:"rate_limit_factor"`       // backoff multiplier for registry throttling
	BackoffCap            time.Duration `mapstructure:"backoff_cap"`             // maximum backoff delay
	ManualBypassesBackoff bool          `mapstructure:"manual_bypasses_backoff"` // let manual refresh skip failure backoff
	ShutdownGrace         time.Duration `mapstructure:"shutdown_grace"`          // wait for in-flight cycles on shutdown
}

// SourceConfig holds registry adapter configuration.
type SourceConfig struct {
	UserAgent        string        `mapstructure:"user_agent"` // required registry identity
	FilingsPerTicker int           `mapstructure:"filings_per_ticker"`
	ThrottleDelay    time.Duration `mapstructure:"throttle_delay"` // minimum inter-request delay per host
	Timeout          time.Duration `mapstructure:"timeout"`
	CacheDir         string        `mapstructure:"cache_dir"` // document cache
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// UIConfig holds terminal output configuration.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/edgar-tracker"
	}
	return filepath.Join(home, ".config", "edgar-tracker")
}

// Default returns the built-in defaults, used before any file overrides.
func Default() *Config {
	configDir := DefaultConfigDir()
	return &Config{
		Polling: PollingConfig{
			Interval:              15 * time.Minute,
			Tick:                  5 * time.Second,
			MaxWorkers:            4,
			MaxFailures:           5,
			UnavailableFactor:     2.0,
			RateLimitFactor:       4.0,
			BackoffCap:            4 * time.Hour,
			ManualBypassesBackoff: false,
			ShutdownGrace:         30 * time.Second,
		},
		Source: SourceConfig{
			FilingsPerTicker: 50,
			ThrottleDelay:    200 * time.Millisecond,
			Timeout:          30 * time.Second,
			CacheDir:         filepath.Join(configDir, "cache"),
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(configDir, "tracker.db"),
		},
		UI: UIConfig{
			ColorEnabled: true,
			DateFormat:   "2006-01-02",
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := Default()

	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, apperrors.Wrap(err, "loading config.toml")
	}

	applyEnvOverrides(cfg)

	// Empty paths in the file mean "under the config directory".
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = filepath.Join(configDir, "tracker.db")
	}
	if cfg.Source.CacheDir == "" {
		cfg.Source.CacheDir = filepath.Join(configDir, "cache")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v, target)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// First run: write a template the user can fill in.
			if werr := createTemplateConfig(configDir); werr != nil {
				return werr
			}
			return v.Unmarshal(target)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("polling.interval", cfg.Polling.Interval)
	v.SetDefault("polling.tick", cfg.Polling.Tick)
	v.SetDefault("polling.max_workers", cfg.Polling.MaxWorkers)
	v.SetDefault("polling.max_failures", cfg.Polling.MaxFailures)
	v.SetDefault("polling.unavailable_factor", cfg.Polling.UnavailableFactor)
	v.SetDefault("polling.rate_limit_factor", cfg.Polling.RateLimitFactor)
	v.SetDefault("polling.backoff_cap", cfg.Polling.BackoffCap)
	v.SetDefault("polling.manual_bypasses_backoff", cfg.Polling.ManualBypassesBackoff)
	v.SetDefault("polling.shutdown_grace", cfg.Polling.ShutdownGrace)
	v.SetDefault("source.filings_per_ticker", cfg.Source.FilingsPerTicker)
	v.SetDefault("source.throttle_delay", cfg.Source.ThrottleDelay)
	v.SetDefault("source.timeout", cfg.Source.Timeout)
	v.SetDefault("source.cache_dir", cfg.Source.CacheDir)
	v.SetDefault("storage.db_path", cfg.Storage.DBPath)
	v.SetDefault("ui.color_enabled", cfg.UI.ColorEnabled)
	v.SetDefault("ui.date_format", cfg.UI.DateFormat)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("EDGAR_USER_AGENT"); v != "" {
		cfg.Source.UserAgent = v
	}
	if v := os.Getenv("EDGAR_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("EDGAR_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Polling.Interval = d
		}
	}
	if v := os.Getenv("EDGAR_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Polling.MaxWorkers = n
		}
	}
	if v := os.Getenv("EDGAR_TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
}

// Validate validates the configuration. The registry requires a declared
// user agent on every request, so a missing identity is fatal at startup.
func (c *Config) Validate() error {
	if c.Source.UserAgent == "" {
		return apperrors.NewConfigError("source.user_agent",
			"registry identity is required (set source.user_agent or EDGAR_USER_AGENT, e.g. \"name contact@example.com\")")
	}
	if c.Polling.Interval <= 0 {
		return apperrors.NewConfigError("polling.interval", "must be positive")
	}
	if c.Polling.MaxWorkers < 1 {
		return apperrors.NewConfigError("polling.max_workers", "must be at least 1")
	}
	if c.Polling.UnavailableFactor < 1 || c.Polling.RateLimitFactor < 1 {
		return apperrors.NewConfigError("polling", "backoff factors must be >= 1")
	}
	if c.Polling.BackoffCap < c.Polling.Interval {
		return apperrors.NewConfigError("polling.backoff_cap", "must be at least the poll interval")
	}
	if c.Source.FilingsPerTicker < 1 {
		return apperrors.NewConfigError("source.filings_per_ticker", "must be at least 1")
	}
	if c.Source.ThrottleDelay < 0 {
		return apperrors.NewConfigError("source.throttle_delay", "must be non-negative")
	}
	return nil
}
