package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv("test")
	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "local", cfg.Cache.Type)
	assert.Equal(t, 24*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "@every 30s", cfg.StatsSchedule)
	assert.Equal(t, 10*time.Minute, cfg.OwnerCacheTTL)
	assert.False(t, cfg.Kafka.Enabled())
	assert.True(t, cfg.WebSocket.CloseOnBackpressure)
	assert.False(t, cfg.IsRelease())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ADDR", ":9090")
	t.Setenv("MODE", "release")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRE_HOURS", "2")
	t.Setenv("CACHE_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HUB_CLOSE_ON_BACKPRESSURE", "false")
	t.Setenv("OWNER_CACHE_TTL", "30")
	t.Setenv("STATS_SCHEDULE", "@every 5s")

	cfg := FromEnv("production")
	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.IsRelease())
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []byte("s3cret"), cfg.JWT.Secret)
	assert.Equal(t, 2*time.Hour, cfg.JWT.ExpiresIn)
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.WebSocket.CloseOnBackpressure)
	assert.Equal(t, 30*time.Second, cfg.OwnerCacheTTL)
	assert.Equal(t, "@every 5s", cfg.StatsSchedule)
}

func TestLoadSetsGlobal(t *testing.T) {
	t.Setenv("APP_ENV", "nonexistent-env")
	require.NoError(t, Load())
	require.NotNil(t, GlobalConfig)
	assert.Equal(t, "nonexistent-env", GlobalConfig.Env)
}
