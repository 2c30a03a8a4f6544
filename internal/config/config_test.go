package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Minute, cfg.Redis.SessionTTL())
	assert.Equal(t, 3, cfg.Security.MaxPinAttempts)
	assert.Equal(t, "256", cfg.Validation.CountryCode)
	assert.Equal(t, int64(100), cfg.Validation.MinAmount)
	assert.Equal(t, int64(5000000), cfg.Validation.MaxAmount)
	assert.NotEmpty(t, cfg.Validation.Networks["mtn"])
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
logLevel: debug
redis:
  addr: redis.internal:6379
  sessionTtlSeconds: 600
security:
  maxPinAttempts: 5
backend:
  bankUrl: https://core.test/api/bank
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Minute, cfg.Redis.SessionTTL())
	assert.Equal(t, 5, cfg.Security.MaxPinAttempts)
	assert.Equal(t, "https://core.test/api/bank", cfg.Backend.BankURL)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
redis:
  addr: from-file:6379
`)
	t.Setenv("USSD_REDIS_ADDR", "from-env:6379")
	t.Setenv("USSD_SESSION_TTL", "900")
	t.Setenv("USSD_PIN_KEY", "secret-key")
	t.Setenv("USSD_APP_CODEBASE", "OTHERSACCOUSSD")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env:6379", cfg.Redis.Addr)
	assert.Equal(t, 15*time.Minute, cfg.Redis.SessionTTL())
	assert.Equal(t, "secret-key", cfg.Security.PinKey)
	assert.Equal(t, "OTHERSACCOUSSD", cfg.App.Codebase)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := writeConfig(t, `
validation:
  minAmount: 1000
  maxAmount: 500
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
