// Package config provides configuration management for the discipline platform.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Database      DatabaseConfig     `mapstructure:"database"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Discipline    DisciplineConfig   `mapstructure:"discipline"`
	Insights      InsightsConfig     `mapstructure:"insights"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// DatabaseConfig holds persistence configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DisciplineConfig holds session state machine tuning.
type DisciplineConfig struct {
	YellowCooldownMinutes int `mapstructure:"yellow_cooldown_minutes"`
	RedCooldownMinutes    int `mapstructure:"red_cooldown_minutes"`
}

// InsightsConfig holds metrics engine tuning.
type InsightsConfig struct {
	HighConfidenceMin  int `mapstructure:"high_confidence_min"`
	LowConfidenceMax   int `mapstructure:"low_confidence_max"`
	RecomputeWorkers   int `mapstructure:"recompute_workers"`
	MomentumWindowDays int `mapstructure:"momentum_window_days"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Level    string         `mapstructure:"level"` // all, escalations_only, errors_only
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
		return ".config/bitsoftrade"
	}
	return filepath.Join(home, ".config", "bitsoftrade")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// No config file yet: write a template and continue with defaults.
		if err := createTemplateConfig(configDir); err != nil {
			return nil, fmt.Errorf("creating config template: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("database.path", filepath.Join(configDir, "bitsoftrade.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", true)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "bitsoftrade.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
	v.SetDefault("discipline.yellow_cooldown_minutes", 45)
	v.SetDefault("discipline.red_cooldown_minutes", 120)
	v.SetDefault("insights.high_confidence_min", 7)
	v.SetDefault("insights.low_confidence_max", 3)
	v.SetDefault("insights.recompute_workers", 4)
	v.SetDefault("insights.momentum_window_days", 7)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.level", "escalations_only")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BITSOFTRADE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("BITSOFTRADE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BITSOFTRADE_WEBHOOK_URL"); v != "" {
		cfg.Notifications.Webhook.Enabled = true
		cfg.Notifications.Webhook.URL = v
	}
	if v := os.Getenv("BITSOFTRADE_TELEGRAM_TOKEN"); v != "" {
		cfg.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv("BITSOFTRADE_TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifications.Telegram.ChatID = v
	}
	if v := os.Getenv("BITSOFTRADE_YELLOW_COOLDOWN_MIN"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.Discipline.YellowCooldownMinutes = minutes
		}
	}
	if v := os.Getenv("BITSOFTRADE_RED_COOLDOWN_MIN"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			cfg.Discipline.RedCooldownMinutes = minutes
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Discipline.YellowCooldownMinutes <= 0 {
		return fmt.Errorf("discipline.yellow_cooldown_minutes must be positive, got %d", c.Discipline.YellowCooldownMinutes)
	}
	if c.Discipline.RedCooldownMinutes <= 0 {
		return fmt.Errorf("discipline.red_cooldown_minutes must be positive, got %d", c.Discipline.RedCooldownMinutes)
	}
	if c.Discipline.RedCooldownMinutes < c.Discipline.YellowCooldownMinutes {
		return fmt.Errorf("discipline.red_cooldown_minutes (%d) must not be shorter than yellow (%d)",
			c.Discipline.RedCooldownMinutes, c.Discipline.YellowCooldownMinutes)
	}
	if c.Insights.HighConfidenceMin < 1 || c.Insights.HighConfidenceMin > 10 {
		return fmt.Errorf("insights.high_confidence_min must be within 1-10, got %d", c.Insights.HighConfidenceMin)
	}
	if c.Insights.LowConfidenceMax < 1 || c.Insights.LowConfidenceMax > 10 {
		return fmt.Errorf("insights.low_confidence_max must be within 1-10, got %d", c.Insights.LowConfidenceMax)
	}
	if c.Insights.LowConfidenceMax >= c.Insights.HighConfidenceMin {
		return fmt.Errorf("insights.low_confidence_max (%d) must be below high_confidence_min (%d)",
			c.Insights.LowConfidenceMax, c.Insights.HighConfidenceMin)
	}
	if c.Insights.RecomputeWorkers <= 0 {
		return fmt.Errorf("insights.recompute_workers must be positive, got %d", c.Insights.RecomputeWorkers)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug/info/warn/error, got %q", c.Logging.Level)
	}
	return nil
}
