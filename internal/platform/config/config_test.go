package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env file
	for _, key := range []string{"PORT", "STOP_ACK_TIMEOUT", "RATE_WORKER_LIMIT", "DEFAULT_CURRENCY_PAIRS", "CORS_ALLOWED_ORIGINS", "RATE_LIMIT"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.StopAckTimeout)
	assert.Equal(t, 5*time.Second, cfg.RateEvaluationTimeout)
	assert.Equal(t, 8, cfg.RateWorkerLimit)
	assert.Equal(t, 1024, cfg.RateCacheSize)
	assert.Equal(t, 30*time.Second, cfg.RateCacheTTL)
	assert.Equal(t, "300-M", cfg.RateLimit)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("IS_PRODUCTION", "true")
	t.Setenv("STOP_ACK_TIMEOUT", "250ms")
	t.Setenv("RATE_WORKER_LIMIT", "3")
	t.Setenv("DEFAULT_CURRENCY_PAIRS", "BTC_USD, BTC_EUR ,")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction)
	assert.Equal(t, 250*time.Millisecond, cfg.StopAckTimeout)
	assert.Equal(t, 3, cfg.RateWorkerLimit)
	assert.Equal(t, []string{"BTC_USD", "BTC_EUR"}, cfg.DefaultCurrencyPairs)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STOP_ACK_TIMEOUT", "soon")
	t.Setenv("RATE_EVALUATION_TIMEOUT", "-1s")
	t.Setenv("RATE_WORKER_LIMIT", "0")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.StopAckTimeout)
	assert.Equal(t, 5*time.Second, cfg.RateEvaluationTimeout)
	assert.Equal(t, 8, cfg.RateWorkerLimit)
}
