package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Addr)
	}
	if cfg.DBPath != "choreboard.db" {
		t.Errorf("expected default db path choreboard.db, got %s", cfg.DBPath)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("expected default sweep interval 1m, got %s", cfg.SweepInterval)
	}
	if cfg.ClaimTTLDays != 7 {
		t.Errorf("expected default claim TTL 7 days, got %d", cfg.ClaimTTLDays)
	}
	if cfg.LookaheadMonths != 2 {
		t.Errorf("expected default look-ahead 2 months, got %d", cfg.LookaheadMonths)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("CHOREBOARD_ADDR", ":9090")
	t.Setenv("CHOREBOARD_LOG_LEVEL", "debug")
	t.Setenv("CHOREBOARD_LOG_FORMAT", "json")
	t.Setenv("CHOREBOARD_SWEEP_INTERVAL", "30s")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("expected log format json, got %s", cfg.LogFormat)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected sweep interval 30s, got %s", cfg.SweepInterval)
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	t.Setenv("CHOREBOARD_SWEEP_INTERVAL", "-1m")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error for negative sweep interval")
	}
}

func TestParseRejectsZeroTTL(t *testing.T) {
	t.Setenv("CHOREBOARD_CLAIM_TTL_DAYS", "0")
	if _, err := Parse(); err == nil {
		t.Fatal("expected error for zero claim TTL")
	}
}
