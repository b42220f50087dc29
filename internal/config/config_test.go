package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Dispatch.Workers != 4 {
		t.Errorf("Dispatch.Workers = %d, want 4", cfg.Dispatch.Workers)
	}
	if cfg.Watchdog.Tick() != 10*time.Second {
		t.Errorf("Watchdog.Tick() = %v, want 10s", cfg.Watchdog.Tick())
	}
	if cfg.GroupSync.Interval() != 15*time.Minute {
		t.Errorf("GroupSync.Interval() = %v, want 15m", cfg.GroupSync.Interval())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: 9090
database:
  url: postgres://localhost/groupcast
dispatch:
  workers: 8
  poll_interval_seconds: 1
gateways:
  whatsapp:
    base_url: http://wa-gw:3000
watchdog:
  enabled: true
  tick_seconds: 5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://localhost/groupcast" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Dispatch.Workers != 8 {
		t.Errorf("Dispatch.Workers = %d, want 8", cfg.Dispatch.Workers)
	}
	if cfg.Dispatch.PollInterval() != time.Second {
		t.Errorf("PollInterval() = %v, want 1s", cfg.Dispatch.PollInterval())
	}
	if cfg.Gateways.WhatsApp.BaseURL != "http://wa-gw:3000" {
		t.Errorf("WhatsApp.BaseURL = %q", cfg.Gateways.WhatsApp.BaseURL)
	}
	if !cfg.Watchdog.Enabled || cfg.Watchdog.TickSeconds != 5 {
		t.Errorf("Watchdog = %+v", cfg.Watchdog)
	}
	// Untouched sections still get defaults.
	if cfg.Dispatch.BatchSize != 10 {
		t.Errorf("Dispatch.BatchSize = %d, want 10", cfg.Dispatch.BatchSize)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/groupcast")
	t.Setenv("REDIS_ADDR", "redis-env:6379")
	t.Setenv("WA_GATEWAY_URL", "http://wa-env:3000")
	t.Setenv("WA_GATEWAY_KEY", "wa-secret")
	t.Setenv("TG_GATEWAY_URL", "http://tg-env:3001")
	t.Setenv("MEDIA_BUCKET", "groupcast-media")
	t.Setenv("WATCHDOG_ENABLED", "true")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Database.URL != "postgres://env-host/groupcast" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Redis.Addr != "redis-env:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Gateways.WhatsApp.BaseURL != "http://wa-env:3000" {
		t.Errorf("WhatsApp.BaseURL = %q", cfg.Gateways.WhatsApp.BaseURL)
	}
	if cfg.Gateways.WhatsApp.APIKey != "wa-secret" {
		t.Errorf("WhatsApp.APIKey = %q", cfg.Gateways.WhatsApp.APIKey)
	}
	if cfg.Gateways.Telegram.BaseURL != "http://tg-env:3001" {
		t.Errorf("Telegram.BaseURL = %q", cfg.Gateways.Telegram.BaseURL)
	}
	if !cfg.Media.Enabled || cfg.Media.Bucket != "groupcast-media" {
		t.Errorf("Media = %+v", cfg.Media)
	}
	if !cfg.Watchdog.Enabled {
		t.Error("Watchdog.Enabled = false, want true")
	}
}
