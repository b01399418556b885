package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("http port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Messaging.DefaultPageSize != 50 || cfg.Messaging.MaxPageSize != 200 {
		t.Errorf("page sizes = %d/%d", cfg.Messaging.DefaultPageSize, cfg.Messaging.MaxPageSize)
	}
	if cfg.Realtime.ReconnectMax != 30*time.Second {
		t.Errorf("reconnect max = %s", cfg.Realtime.ReconnectMax)
	}
	if cfg.Queue.Stream != "em:tasks" {
		t.Errorf("queue stream = %q", cfg.Queue.Stream)
	}
	if cfg.Queue.MaxDeliveries != 5 || cfg.Queue.DeadLetter != "em:tasks:dead" {
		t.Errorf("queue retry = %d/%q", cfg.Queue.MaxDeliveries, cfg.Queue.DeadLetter)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ENGLISHMASTERY_DAILY_COUNT", "5")
	t.Setenv("ENGLISHMASTERY_SECURITY_CRONSECRET", "s3cret")
	t.Setenv("ENGLISHMASTERY_DAILY_FETCHTIMEOUT", "3s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daily.Count != 5 {
		t.Errorf("daily count = %d, want 5", cfg.Daily.Count)
	}
	if cfg.Daily.FetchTimeout != 3*time.Second {
		t.Errorf("fetch timeout = %s, want 3s", cfg.Daily.FetchTimeout)
	}
	if cfg.Security.CronSecret != "s3cret" {
		t.Errorf("cron secret = %q", cfg.Security.CronSecret)
	}
}

func TestLoadRejectsBadPageSizes(t *testing.T) {
	t.Setenv("ENGLISHMASTERY_MESSAGING_MAXPAGESIZE", "10")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when max page size is below the default")
	}
}
