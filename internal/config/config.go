// Package config loads and validates server configuration from environment
// variables. A local .env file is honored in development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the FeedbackLens server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Widget   WidgetConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	RequestsPerMin int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	// URL is optional; when empty the server falls back to the in-process
	// cache, which is fine for single-instance deployments and tests.
	URL string
}

type WidgetConfig struct {
	// PayloadBudgetBytes caps the serialized size of a stored diagnostic
	// bundle. Oversized bundles are trimmed, not rejected.
	PayloadBudgetBytes int
	RequestsPerMin     int
}

type StorageConfig struct {
	Backend string // "memory" or "filesystem"
	BaseDir string
}

var validStorageBackends = map[string]bool{
	"memory":     true,
	"filesystem": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value
// is missing or invalid.
func Load() (*Config, error) {
	// Missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("FEEDBACKLENS_PORT", 8080),
			Env:            envString("FEEDBACKLENS_ENV", "development"),
			RequestsPerMin: envInt("RATE_LIMIT_PER_MIN", 60),
			AllowedOrigins: envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Widget: WidgetConfig{
			PayloadBudgetBytes: envInt("WIDGET_PAYLOAD_BUDGET_BYTES", 8<<20),
			RequestsPerMin:     envInt("WIDGET_RATE_LIMIT_PER_MIN", 30),
		},
		Storage: StorageConfig{
			Backend: envString("STORAGE_BACKEND", "memory"),
			BaseDir: envString("STORAGE_BASE_DIR", "data/objects"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Widget.PayloadBudgetBytes <= 0 {
		return fmt.Errorf("WIDGET_PAYLOAD_BUDGET_BYTES must be positive, got %d", c.Widget.PayloadBudgetBytes)
	}

	if !validStorageBackends[c.Storage.Backend] {
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, filesystem; got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "filesystem" && c.Storage.BaseDir == "" {
		return fmt.Errorf("STORAGE_BASE_DIR is required when STORAGE_BACKEND is filesystem")
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
