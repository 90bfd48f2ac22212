package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr         string
	Postgres     PostgresConfig
	Redis        RedisConfig
	Verification VerificationConfig
}

// PostgresConfig holds the session store connection settings.
type PostgresConfig struct {
	URL string
}

// RedisConfig holds PKD cache connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// VerificationConfig tunes the verification pipeline.
type VerificationConfig struct {
	LookupTimeout time.Duration
	RetryAttempts int
	HashWorkers   int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("VERIPASS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Server{
		Addr: addr,
		Postgres: PostgresConfig{
			URL: os.Getenv("VERIPASS_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("VERIPASS_REDIS_URL"),
			PoolSize:     envInt("VERIPASS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERIPASS_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VERIPASS_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VERIPASS_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VERIPASS_REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("VERIPASS_PKD_CACHE_TTL", time.Hour),
		},
		Verification: VerificationConfig{
			LookupTimeout: envDuration("VERIPASS_LOOKUP_TIMEOUT", 5*time.Second),
			RetryAttempts: envInt("VERIPASS_RETRY_ATTEMPTS", 3),
			HashWorkers:   envInt("VERIPASS_HASH_WORKERS", 4),
		},
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
