package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- DefaultConfig aggregate ---

func TestDefaultConfig_ContainsAllSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	require.NotNil(t, cfg)

	assert.NotZero(t, cfg.Server)
	assert.NotZero(t, cfg.Gateway)
	assert.NotZero(t, cfg.Database)
	assert.NotZero(t, cfg.Redis)
	assert.NotZero(t, cfg.Idempotency)
	assert.NotZero(t, cfg.Log)
	assert.NotZero(t, cfg.Telemetry)
}

// --- Individual Default*Config functions ---

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9091, cfg.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
	assert.Greater(t, cfg.WriteTimeout, DefaultGatewayConfig().RequestTimeout)
	assert.Equal(t, int64(32<<20), cfg.MaxBodyBytes)
	assert.False(t, cfg.AllowQueryAPIKey)
	assert.Empty(t, cfg.APIKeys)
}

func TestDefaultGatewayConfig(t *testing.T) {
	cfg := DefaultGatewayConfig()
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 1800*time.Second, cfg.TokenTTL)
	assert.Equal(t, 300*time.Second, cfg.RefreshMargin)
	assert.Equal(t, 10*time.Second, cfg.NotBeforeSkew)
	assert.Equal(t, 3, cfg.RefreshRetries)
	assert.Equal(t, time.Second, cfg.RefreshDelay)
	assert.Empty(t, cfg.ProxyURL)
	assert.False(t, cfg.InsecureSkipVerify)
}

func TestDefaultDatabaseConfig(t *testing.T) {
	cfg := DefaultDatabaseConfig()
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "prompts.db", cfg.DSN())
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
}

func TestDefaultIdempotencyConfig(t *testing.T) {
	cfg := DefaultIdempotencyConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, 24*time.Hour, cfg.TTL)
}

func TestDefaultLogAndTelemetry(t *testing.T) {
	logCfg := DefaultLogConfig()
	assert.Equal(t, "info", logCfg.Level)
	assert.Equal(t, "json", logCfg.Format)
	assert.Equal(t, []string{"stdout"}, logCfg.OutputPaths)

	tel := DefaultTelemetryConfig()
	assert.False(t, tel.Enabled)
	assert.Equal(t, "mediagateway", tel.ServiceName)
	assert.InDelta(t, 0.1, tel.SampleRate, 1e-9)
}
