// Package config loads the service configuration from YAML with .env and
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateways  GatewaysConfig  `yaml:"gateways"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Watchdog  WatchdogConfig  `yaml:"watchdog"`
	GroupSync GroupSyncConfig `yaml:"group_sync"`
	Media     MediaConfig     `yaml:"media"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the Redis connection settings for the dispatch queue
// and distributed locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GatewayConfig holds one messaging gateway endpoint.
type GatewayConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// GatewaysConfig holds the per-channel gateway endpoints.
type GatewaysConfig struct {
	WhatsApp GatewayConfig `yaml:"whatsapp"`
	Telegram GatewayConfig `yaml:"telegram"`
}

// DispatchConfig tunes the dispatcher worker pool.
type DispatchConfig struct {
	Workers             int `yaml:"workers"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
	BatchSize           int `yaml:"batch_size"`
}

// WatchdogConfig tunes the repeat watchdog.
type WatchdogConfig struct {
	Enabled     bool `yaml:"enabled"`
	TickSeconds int  `yaml:"tick_seconds"`
	BatchSize   int  `yaml:"batch_size"`
	Distlock    bool `yaml:"distlock"`
}

// GroupSyncConfig tunes the group sync worker.
type GroupSyncConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

// MediaConfig holds the S3 media storage settings.
type MediaConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
}

// Tick returns the watchdog tick as a duration.
func (w WatchdogConfig) Tick() time.Duration {
	return time.Duration(w.TickSeconds) * time.Second
}

// PollInterval returns the dispatcher poll interval as a duration.
func (d DispatchConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// Interval returns the group sync interval as a duration.
func (g GroupSyncConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMinutes) * time.Minute
}

// Load reads the YAML config file and applies defaults. A missing file
// yields a default config, so the binaries can run on env vars alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Dispatch.Workers == 0 {
		cfg.Dispatch.Workers = 4
	}
	if cfg.Dispatch.PollIntervalSeconds == 0 {
		cfg.Dispatch.PollIntervalSeconds = 2
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 10
	}
	if cfg.Watchdog.TickSeconds == 0 {
		cfg.Watchdog.TickSeconds = 10
	}
	if cfg.Watchdog.BatchSize == 0 {
		cfg.Watchdog.BatchSize = 20
	}
	if cfg.GroupSync.IntervalMinutes == 0 {
		cfg.GroupSync.IntervalMinutes = 15
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so secrets can live in .env
// locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("WA_GATEWAY_URL"); v != "" {
		cfg.Gateways.WhatsApp.BaseURL = v
	}
	if v := os.Getenv("WA_GATEWAY_KEY"); v != "" {
		cfg.Gateways.WhatsApp.APIKey = v
	}
	if v := os.Getenv("TG_GATEWAY_URL"); v != "" {
		cfg.Gateways.Telegram.BaseURL = v
	}
	if v := os.Getenv("TG_GATEWAY_KEY"); v != "" {
		cfg.Gateways.Telegram.APIKey = v
	}
	if v := os.Getenv("MEDIA_BUCKET"); v != "" {
		cfg.Media.Enabled = true
		cfg.Media.Bucket = v
	}
	if v := os.Getenv("MEDIA_REGION"); v != "" {
		cfg.Media.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Media.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.Media.SecretKey = v
	}
	if v := os.Getenv("MEDIA_BASE_URL"); v != "" {
		cfg.Media.BaseURL = v
	}
	if v := os.Getenv("WATCHDOG_ENABLED"); v == "true" {
		cfg.Watchdog.Enabled = true
	}

	return cfg, nil
}
