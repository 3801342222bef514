// Package config loads engine configuration from a YAML file with
// environment variable overrides. Secrets live in env vars (or a local .env
// file); the YAML file carries everything else.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the campaign engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Provider ProviderConfig `yaml:"provider"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Tracking TrackingConfig `yaml:"tracking"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Render   RenderConfig   `yaml:"render"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout_seconds"`
	WriteTimeout int    `yaml:"write_timeout_seconds"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds the connection for the tracking event queue.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ProviderConfig selects and configures the delivery provider.
type ProviderConfig struct {
	// Type is "sparkpost" or "ses".
	Type           string `yaml:"type"`
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`

	SESRegion    string `yaml:"ses_region"`
	SESAccessKey string `yaml:"ses_access_key"`
	SESSecretKey string `yaml:"ses_secret_key"`
}

// DispatchConfig tunes the batch send pipeline and scheduler.
type DispatchConfig struct {
	BatchSize           int `yaml:"batch_size"`
	BatchDelayMillis    int `yaml:"batch_delay_ms"`
	MaxRetries          int `yaml:"max_retries"`
	RetryBaseDelayMills int `yaml:"retry_base_delay_ms"`
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

// BatchDelay returns the fixed pause between successive provider batches.
func (d DispatchConfig) BatchDelay() time.Duration {
	return time.Duration(d.BatchDelayMillis) * time.Millisecond
}

// RetryBaseDelay returns the base delay for rate-limit backoff.
func (d DispatchConfig) RetryBaseDelay() time.Duration {
	return time.Duration(d.RetryBaseDelayMills) * time.Millisecond
}

// PollInterval returns how often the dispatcher scans for due campaigns.
func (d DispatchConfig) PollInterval() time.Duration {
	return time.Duration(d.PollIntervalSeconds) * time.Second
}

// TrackingConfig holds the public tracking endpoint settings.
type TrackingConfig struct {
	// BaseURL is the externally reachable origin of the tracking routes,
	// e.g. "https://track.example.com".
	BaseURL  string `yaml:"base_url"`
	QueueKey string `yaml:"queue_key"`
}

// MetricsConfig controls the daily aggregation run.
type MetricsConfig struct {
	RunHourUTC int `yaml:"run_hour_utc"`
}

// RenderConfig tunes the template cache.
type RenderConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the compiled-template cache lifetime.
func (r RenderConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSeconds) * time.Second
}

// Load reads the YAML file at path and applies defaults. A missing file is
// not an error; defaults plus env overrides are enough to run locally.
func Load(path string) (*Config, error) {
	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
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
	if cfg.Provider.Type == "" {
		cfg.Provider.Type = "sparkpost"
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = "https://api.sparkpost.com"
	}
	if cfg.Provider.TimeoutSeconds == 0 {
		cfg.Provider.TimeoutSeconds = 30
	}
	if cfg.Provider.SESRegion == "" {
		cfg.Provider.SESRegion = "us-west-2"
	}
	if cfg.Dispatch.BatchSize == 0 {
		cfg.Dispatch.BatchSize = 100
	}
	if cfg.Dispatch.BatchDelayMillis == 0 {
		cfg.Dispatch.BatchDelayMillis = 1000
	}
	if cfg.Dispatch.MaxRetries == 0 {
		cfg.Dispatch.MaxRetries = 3
	}
	if cfg.Dispatch.RetryBaseDelayMills == 0 {
		cfg.Dispatch.RetryBaseDelayMills = 2000
	}
	if cfg.Dispatch.PollIntervalSeconds == 0 {
		cfg.Dispatch.PollIntervalSeconds = 300
	}
	if cfg.Tracking.QueueKey == "" {
		cfg.Tracking.QueueKey = "tracking:events"
	}
	if cfg.Metrics.RunHourUTC == 0 {
		cfg.Metrics.RunHourUTC = 2
	}
	if cfg.Render.CacheTTLSeconds == 0 {
		cfg.Render.CacheTTLSeconds = 600
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file is loaded first if present, so secrets can live in .env
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
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
	if v := os.Getenv("PROVIDER_TYPE"); v != "" {
		cfg.Provider.Type = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.Provider.FromEmail = v
	}
	if v := os.Getenv("FROM_NAME"); v != "" {
		cfg.Provider.FromName = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Provider.SESRegion = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Provider.SESAccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Provider.SESSecretKey = v
	}
	if v := os.Getenv("TRACKING_BASE_URL"); v != "" {
		cfg.Tracking.BaseURL = v
	}
	if v := os.Getenv("DISPATCH_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Dispatch.BatchSize = n
		}
	}

	return cfg, nil
}
