// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"127.0.0.1:6379"`

	// CacheTTL bounds how long a fetched collection is served without a
	// remote read.
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// PageSize is the derived-view window size.
	PageSize int `env:"PAGE_SIZE" envDefault:"20"`

	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"12h"`

	// AuditRetention is how long deletion audit entries are kept before
	// the worker purges them. Defaults to 90 days.
	AuditRetention time.Duration `env:"AUDIT_RETENTION" envDefault:"2160h"`
}

// Load reads configuration from environment variables
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.PageSize < 1 {
		return fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %v", c.CacheTTL)
	}
	return nil
}
