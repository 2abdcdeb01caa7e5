package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "conebot", cfg.MongoDB)
	assert.False(t, cfg.MongoTransactions)
	assert.Equal(t, 1000, cfg.CacheCapacity)
	assert.Equal(t, 3*time.Second, cfg.LockTimeout)
	assert.Equal(t, 5, cfg.RetryAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.RetryBackoff)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("MONGO_DB", "economy")
	t.Setenv("MONGO_TRANSACTIONS", "true")
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_CAPACITY", "50")
	t.Setenv("LOCK_TIMEOUT", "500ms")
	t.Setenv("RETRY_ATTEMPTS", "3")
	t.Setenv("RETRY_BACKOFF", "10ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "economy", cfg.MongoDB)
	assert.True(t, cfg.MongoTransactions)
	assert.Equal(t, 50, cfg.CacheCapacity)
	assert.Equal(t, 500*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.RetryBackoff)
}

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}
