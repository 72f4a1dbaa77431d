package config

import (
	"strings"
	"testing"
	"time"
)

type sample struct {
	Addr    string        `env:"TEST_BOARDFX_ADDR" envDefault:":8080"`
	Speed   float64       `env:"TEST_BOARDFX_SPEED"`
	Sinks   []string      `env:"TEST_BOARDFX_SINKS" envSeparator:","`
	Timeout time.Duration `env:"TEST_BOARDFX_TIMEOUT"`
}

func TestParseEnvAppliesDefaultsAndOverrides(t *testing.T) {
	t.Setenv("TEST_BOARDFX_SPEED", "2.5")
	t.Setenv("TEST_BOARDFX_SINKS", "console,json")

	cfg := sample{Timeout: time.Second}
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Speed != 2.5 || len(cfg.Sinks) != 2 || cfg.Sinks[1] != "json" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Timeout != time.Second {
		t.Fatalf("expected unset variable to keep preset value, got %v", cfg.Timeout)
	}
}

func TestParseEnvWrapsErrors(t *testing.T) {
	t.Setenv("TEST_BOARDFX_SPEED", "fast")

	var cfg sample
	err := ParseEnv(&cfg)
	if err == nil || !strings.HasPrefix(err.Error(), "parse env: ") {
		t.Fatalf("expected wrapped parse error, got %v", err)
	}
}
