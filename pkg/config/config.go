// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/crewdeck/crewdeck/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// CacheConfig holds permission cache configuration
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("CREWDECK_HOST", "0.0.0.0"),
			Port:            getEnv("CREWDECK_PORT", "8080"),
			ReadTimeout:     getEnvDuration("CREWDECK_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("CREWDECK_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("CREWDECK_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("CREWDECK_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("CREWDECK_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("CREWDECK_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("CREWDECK_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("CREWDECK_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("CREWDECK_POSTGRES_CONN_LIFETIME", 30*time.Minute),
		},
		Cache: CacheConfig{
			Size: getEnvInt("CREWDECK_PERMISSION_CACHE_SIZE", 4096),
			TTL:  getEnvDuration("CREWDECK_PERMISSION_CACHE_TTL", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("CREWDECK_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("CREWDECK_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("CREWDECK_POSTGRES_URL is required")
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("permission cache size must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("permission cache TTL must be positive")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
