package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds process-level configuration shared by every stage.
type Config struct {
	Shm       ShmConfig
	Logging   LogConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Viewer    ViewerConfig
}

// ShmConfig holds shared-memory settings.
type ShmConfig struct {
	Dir string `envconfig:"SHMFLOW_SHM_DIR" default:"/dev/shm"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// MetricsConfig holds the diagnostics HTTP server configuration. An empty
// address disables the server.
type MetricsConfig struct {
	Addr           string   `envconfig:"METRICS_ADDR" default:""`
	AllowedOrigins []string `envconfig:"METRICS_CORS_ORIGINS" default:"*"`
}

// RateLimitConfig holds diagnostics rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"DIAG_RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"DIAG_RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"DIAG_RATE_LIMIT_ENABLED" default:"true"`
}

// ViewerConfig holds display defaults.
type ViewerConfig struct {
	MinUpdateMS int `envconfig:"VIEWER_MIN_UPDATE_MS" default:"33"`
}

// MinUpdatePeriod returns the display throttle period.
func (v ViewerConfig) MinUpdatePeriod() time.Duration {
	return time.Duration(v.MinUpdateMS) * time.Millisecond
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Shm: ShmConfig{
			Dir: "/dev/shm",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Metrics: MetricsConfig{
			AllowedOrigins: []string{"*"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Viewer: ViewerConfig{
			MinUpdateMS: 33,
		},
	}
}
