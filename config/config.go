// Package config loads server and CLI settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cableworks/ledger-engine/logger"
)

type Config struct {
	App struct {
		Port        int      `envconfig:"PORT" default:"8080"`
		CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	}

	DB struct {
		Path        string        `envconfig:"LEDGER_DB_PATH" default:"ledger.db"`
		BusyTimeout time.Duration `envconfig:"SQLITE_BUSY_TIMEOUT" default:"5s"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"15s"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"console"`
		Output string `envconfig:"LOG_OUTPUT" default:"stdout"`
	}

	Audit struct {
		Enabled  bool          `envconfig:"AUDIT_ENABLED" default:"true"`
		Interval time.Duration `envconfig:"AUDIT_INTERVAL" default:"1h"`
	}
}

// Logger returns the logger settings.
func (c *Config) Logger() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format, Output: c.Log.Output}
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.App.Port)
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return fmt.Errorf("LEDGER_DB_PATH is empty")
	}
	if c.Audit.Enabled && c.Audit.Interval <= 0 {
		return fmt.Errorf("AUDIT_INTERVAL must be positive, got %s", c.Audit.Interval)
	}
	return nil
}
