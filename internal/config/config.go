package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	MongoURI string
	MongoDB  string
	// MongoTransactions enables multi-document transactions on commit.
	// Requires the deployment to run as a replica set; without it the
	// engine falls back to per-document compare-and-swap writes.
	MongoTransactions bool

	// CacheCapacity is the per-kind entry cap for the entity cache.
	CacheCapacity int
	// LockTimeout bounds how long an operation waits on entity locks.
	LockTimeout time.Duration
	// RetryAttempts caps the commit retry loop on transient conflicts.
	RetryAttempts int
	// RetryBackoff is the base delay of the capped exponential backoff.
	RetryBackoff time.Duration
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists, but don't fail if it doesn't (could be real env vars)
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		MongoURI:          getEnv("MONGO_URI", ""),
		MongoDB:           getEnv("MONGO_DB", "conebot"),
		MongoTransactions: getEnvAsBool("MONGO_TRANSACTIONS", false),
		CacheCapacity:     getEnvAsInt("CACHE_CAPACITY", 1000),
		LockTimeout:       getEnvAsDuration("LOCK_TIMEOUT", 3*time.Second),
		RetryAttempts:     getEnvAsInt("RETRY_ATTEMPTS", 5),
		RetryBackoff:      getEnvAsDuration("RETRY_BACKOFF", 25*time.Millisecond),
	}

	port, err := strconv.Atoi(getEnv("PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT value: %w", err)
	}
	cfg.Port = port

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI environment variable must be set")
	}
	if cfg.CacheCapacity <= 0 {
		return nil, fmt.Errorf("CACHE_CAPACITY must be positive")
	}
	if cfg.RetryAttempts <= 0 {
		return nil, fmt.Errorf("RETRY_ATTEMPTS must be positive")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
