// Package config reads the service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime knob. All values have sensible defaults so the
// binary runs out of the box; override via CHOREBOARD_* environment variables.
type Config struct {
	Addr            string        `env:"CHOREBOARD_ADDR" envDefault:":8080"`
	DBPath          string        `env:"CHOREBOARD_DB_PATH" envDefault:"choreboard.db"`
	LogLevel        string        `env:"CHOREBOARD_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"CHOREBOARD_LOG_FORMAT" envDefault:"text"`
	SweepInterval   time.Duration `env:"CHOREBOARD_SWEEP_INTERVAL" envDefault:"1m"`
	ClaimTTLDays    int           `env:"CHOREBOARD_CLAIM_TTL_DAYS" envDefault:"7"`
	LookaheadMonths int           `env:"CHOREBOARD_LOOKAHEAD_MONTHS" envDefault:"2"`
}

// Parse reads configuration from the environment and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.ClaimTTLDays <= 0 {
		return nil, fmt.Errorf("claim TTL must be positive, got %d days", cfg.ClaimTTLDays)
	}
	if cfg.LookaheadMonths < 1 {
		return nil, fmt.Errorf("look-ahead must be at least 1 month, got %d", cfg.LookaheadMonths)
	}

	return cfg, nil
}
