package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration. Per-occasion policy (grace
// periods, thresholds) travels with each occasion as data; only defaults and
// infrastructure wiring live here.
type Config struct {
	Addr        string
	LogLevel    slog.Level
	DatabaseURL string
	Redis       RedisConfig

	// MatcherURL locates the external biometric matcher; MatcherTimeout
	// bounds every call to it.
	MatcherURL     string
	MatcherTimeout time.Duration

	// SweepInterval is how often the absence sweeper looks for closable
	// occasions.
	SweepInterval time.Duration

	// ReportFreshFor and ReportTTL control the aggregation report cache:
	// reports older than ReportFreshFor are served stale-flagged, entries
	// older than ReportTTL are evicted.
	ReportFreshFor time.Duration
	ReportTTL      time.Duration
}

// RedisConfig holds connection settings for the report cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:           envOr("PRESENCE_ADDR", ":8080"),
		LogLevel:       slog.LevelInfo,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MatcherURL:     os.Getenv("PRESENCE_MATCHER_URL"),
		MatcherTimeout: envDuration("PRESENCE_MATCHER_TIMEOUT", 3*time.Second),
		SweepInterval:  envDuration("PRESENCE_SWEEP_INTERVAL", time.Minute),
		ReportFreshFor: envDuration("PRESENCE_REPORT_FRESH_FOR", 5*time.Minute),
		ReportTTL:      envDuration("PRESENCE_REPORT_TTL", 30*time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if os.Getenv("PRESENCE_DEBUG") == "true" {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
