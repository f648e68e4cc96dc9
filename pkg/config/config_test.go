package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewdeck/crewdeck/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CREWDECK_POSTGRES_URL", "postgres://localhost/crewdeck_test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 4096, cfg.Cache.Size)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("CREWDECK_POSTGRES_URL", "postgres://localhost/crewdeck_test")
	t.Setenv("CREWDECK_PORT", "9999")
	t.Setenv("CREWDECK_PERMISSION_CACHE_TTL", "30s")
	t.Setenv("CREWDECK_PERMISSION_CACHE_SIZE", "128")
	t.Setenv("CREWDECK_LOG_LEVEL", "debug")
	t.Setenv("CREWDECK_METRICS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 128, cfg.Cache.Size)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.False(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_MissingDatabase(t *testing.T) {
	t.Setenv("CREWDECK_POSTGRES_URL", "")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_PortClash(t *testing.T) {
	t.Setenv("CREWDECK_POSTGRES_URL", "postgres://localhost/crewdeck_test")
	t.Setenv("CREWDECK_PORT", "8080")
	t.Setenv("CREWDECK_HEALTH_PORT", "8080")

	_, err := LoadConfig()
	assert.Error(t, err)
}
