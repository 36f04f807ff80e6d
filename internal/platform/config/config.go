package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL   string
	Port          string
	IsProduction  bool
	EnableDBCheck bool

	LogLevel string
	LogFile  string

	// Stop rendezvous
	StopAckTimeout        time.Duration
	ProcessorWorkInterval time.Duration

	// Rate aggregation
	RateEvaluationTimeout time.Duration
	RateWorkerLimit       int
	RateCacheTTL          time.Duration
	RateCacheSize         int
	RateSettingsFile      string
	DefaultCurrencyPairs  []string
	UpstreamHTTPTimeout   time.Duration

	// HTTP surface
	RateLimit          string
	CORSAllowedOrigins []string
}

const (
	defaultStopAckTimeout        = 10 * time.Second
	defaultProcessorWorkInterval = 30 * time.Second
	defaultRateEvaluationTimeout = 5 * time.Second
	defaultRateWorkerLimit       = 8
	defaultRateCacheTTL          = 30 * time.Second
	defaultRateCacheSize         = 1024
	defaultUpstreamHTTPTimeout   = 10 * time.Second
)

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("PGSQL_URL", "")
	v.SetDefault("PORT", "8080")
	v.SetDefault("IS_PRODUCTION", false)
	v.SetDefault("ENABLE_DB_CHECK", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("STOP_ACK_TIMEOUT", defaultStopAckTimeout.String())
	v.SetDefault("PROCESSOR_WORK_INTERVAL", defaultProcessorWorkInterval.String())
	v.SetDefault("RATE_EVALUATION_TIMEOUT", defaultRateEvaluationTimeout.String())
	v.SetDefault("RATE_WORKER_LIMIT", defaultRateWorkerLimit)
	v.SetDefault("RATE_CACHE_TTL", defaultRateCacheTTL.String())
	v.SetDefault("RATE_CACHE_SIZE", defaultRateCacheSize)
	v.SetDefault("RATE_SETTINGS_FILE", "")
	v.SetDefault("DEFAULT_CURRENCY_PAIRS", "BTC_USD")
	v.SetDefault("UPSTREAM_HTTP_TIMEOUT", defaultUpstreamHTTPTimeout.String())
	v.SetDefault("RATE_LIMIT", "300-M")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	// Actual environment variables override .env values and defaults.
	v.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = v.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set. Rate settings are read from RATE_SETTINGS_FILE.")
	}

	cfg.Port = v.GetString("PORT")
	if cfg.Port == "" {
		cfg.Port = "8080" // Default port
		log.Printf("Warning: PORT environment variable not set. Defaulting to %s\n", cfg.Port)
	}

	cfg.IsProduction = v.GetBool("IS_PRODUCTION")
	cfg.EnableDBCheck = v.GetBool("ENABLE_DB_CHECK")
	cfg.LogLevel = v.GetString("LOG_LEVEL")
	cfg.LogFile = v.GetString("LOG_FILE")

	cfg.StopAckTimeout = durationOrDefault(v, "STOP_ACK_TIMEOUT", defaultStopAckTimeout)
	cfg.ProcessorWorkInterval = durationOrDefault(v, "PROCESSOR_WORK_INTERVAL", defaultProcessorWorkInterval)
	cfg.RateEvaluationTimeout = durationOrDefault(v, "RATE_EVALUATION_TIMEOUT", defaultRateEvaluationTimeout)
	cfg.RateCacheTTL = durationOrDefault(v, "RATE_CACHE_TTL", defaultRateCacheTTL)
	cfg.UpstreamHTTPTimeout = durationOrDefault(v, "UPSTREAM_HTTP_TIMEOUT", defaultUpstreamHTTPTimeout)

	cfg.RateWorkerLimit = positiveIntOrDefault(v, "RATE_WORKER_LIMIT", defaultRateWorkerLimit)
	cfg.RateCacheSize = positiveIntOrDefault(v, "RATE_CACHE_SIZE", defaultRateCacheSize)

	cfg.RateSettingsFile = v.GetString("RATE_SETTINGS_FILE")
	cfg.DefaultCurrencyPairs = splitList(v.GetString("DEFAULT_CURRENCY_PAIRS"))

	cfg.RateLimit = v.GetString("RATE_LIMIT")
	cfg.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))

	return cfg, nil
}

func durationOrDefault(v *viper.Viper, key string, def time.Duration) time.Duration {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, def.String())
		return def
	}
	return d
}

func positiveIntOrDefault(v *viper.Viper, key string, def int) int {
	n := v.GetInt(key)
	if n <= 0 {
		log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %d.\n", key, v.GetString(key), def)
		return def
	}
	return n
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
