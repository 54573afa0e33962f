package config

import (
	"errors"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.Forks != 1 {
		t.Errorf("expected Forks=1, got %d", cfg.Forks)
	}
	if cfg.ModuleDir != "/etc/resolverd/modules" {
		t.Errorf("expected default module dir, got %q", cfg.ModuleDir)
	}
	if cfg.ReputationSize != 1024 {
		t.Errorf("expected ReputationSize=1024, got %d", cfg.ReputationSize)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("expected SweepInterval=5m, got %v", cfg.SweepInterval)
	}
	if cfg.FanoutTimeout != 60*time.Second {
		t.Errorf("expected FanoutTimeout=60s, got %v", cfg.FanoutTimeout)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RESOLVERD_ENV", "dev")
	t.Setenv("RESOLVERD_LOG_LEVEL", "debug")
	t.Setenv("RESOLVERD_FORKS", "4")
	t.Setenv("RESOLVERD_SWEEP_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Env != "dev" {
		t.Errorf("expected Env=dev, got %q", cfg.Env)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel=debug, got %q", cfg.LogLevel)
	}
	if cfg.Forks != 4 {
		t.Errorf("expected Forks=4, got %d", cfg.Forks)
	}
	if cfg.SweepInterval != 30*time.Second {
		t.Errorf("expected SweepInterval=30s, got %v", cfg.SweepInterval)
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Setenv("RESOLVERD_ENV", "staging")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error for Env=staging, got nil")
	}
}

func TestLoad_ForksOutOfRange(t *testing.T) {
	t.Setenv("RESOLVERD_FORKS", "1000")

	_, err := Load()
	if err == nil {
		t.Fatal("expected validation error for Forks=1000, got nil")
	}
}

func TestLoad_EnvLoaderError(t *testing.T) {
	orig := envLoader
	defer func() { envLoader = orig }()
	envLoader = func(k *koanf.Koanf) error {
		return errors.New("boom")
	}

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from env loader, got nil")
	}
}
