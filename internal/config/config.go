// Package config loads server configuration from the environment
// (with an optional .env file for local development), modeled on the
// teacher's ws/config.go: struct tags parsed by caarlos0/env/v11,
// godotenv for the optional dotfile, Validate for range/enum checks,
// and a LogConfig that emits the loaded configuration as one
// structured log line.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all server configuration.
type Config struct {
	ListenAddr string `env:"KANBAND_LISTEN_ADDR" envDefault:"[::]:1120"`
	DataDir    string `env:"KANBAND_DATA_DIR" envDefault:"database"`

	MaxConnections     int `env:"KANBAND_MAX_CONNECTIONS" envDefault:"1000"`
	SubscriptionBuffer int `env:"KANBAND_SUBSCRIPTION_BUFFER" envDefault:"256"`

	MetricsAddr string `env:"KANBAND_METRICS_ADDR" envDefault:":9090"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from an optional .env file and the process
// environment. Priority: env vars > .env file > defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// No .env file is a normal deployment shape (container envs set
		// vars directly), not a failure.
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("KANBAND_LISTEN_ADDR is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("KANBAND_DATA_DIR is required")
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("KANBAND_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.SubscriptionBuffer < 1 {
		return fmt.Errorf("KANBAND_SUBSCRIPTION_BUFFER must be > 0, got %d", c.SubscriptionBuffer)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %s)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of json, pretty (got %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits the loaded configuration as one structured log line.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("listen_addr", c.ListenAddr).
		Str("data_dir", c.DataDir).
		Int("max_connections", c.MaxConnections).
		Int("subscription_buffer", c.SubscriptionBuffer).
		Str("metrics_addr", c.MetricsAddr).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
