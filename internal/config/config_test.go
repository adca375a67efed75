package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.ServerShutdownTimeout)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 30*time.Minute, cfg.RotationInterval)
	assert.Equal(t, 5*time.Minute, cfg.RotationRecentWindow)
	assert.Equal(t, 180*24*time.Hour, cfg.RetentionHorizon)
	assert.Equal(t, 7*24*time.Hour, cfg.RetentionDekGracePeriod)
	assert.Equal(t, 10, cfg.BreakerWindowSize)
	assert.InDelta(t, 0.5, cfg.BreakerFailureRate, 0.0001)
	assert.Equal(t, "aes-gcm", cfg.CipherAlgorithm)
	assert.Equal(t, "env", cfg.HmacKeySource)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS", "10")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("ROTATION_INTERVAL_MINUTES", "15")
	t.Setenv("CIPHER_ALGORITHM", "chacha20-poly1305")

	cfg := Load()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 10*time.Second, cfg.ServerShutdownTimeout)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.RotationInterval)
	assert.Equal(t, "chacha20-poly1305", cfg.CipherAlgorithm)
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"unknown", "release"},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.logLevel}
		assert.Equal(t, tt.expected, cfg.GetGinMode())
	}
}
