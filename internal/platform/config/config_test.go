package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Less(t, cfg.RateLimit.ClientLimit, cfg.RateLimit.ServerLimit)
	assert.Equal(t, 10000, cfg.LogQueue.MaxSize)
	assert.Equal(t, 100, cfg.LogQueue.BatchSize)
	assert.Equal(t, time.Hour, cfg.LogQueue.SweepInterval)
	assert.Equal(t, 10, cfg.Quota.FlushEvery)
	assert.Equal(t, PolicyThreshold, cfg.Risk.Policy)
	assert.Equal(t, BackendActor, cfg.Fingerprint.Backend)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("RATE_LIMIT_CLIENT", "5")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("LOG_SINK", "kafka")
	t.Setenv("EMAIL_SEAL_KEY", "0001020304050607080900010203040506070809000102030405060708090001")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.RateLimit.ClientLimit)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Len(t, cfg.Privacy.EmailSealKey, 32)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Run("redis backend without url", func(t *testing.T) {
		t.Setenv("FINGERPRINT_BACKEND", "redis")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "REDIS_URL")
	})

	t.Run("unknown policy", func(t *testing.T) {
		t.Setenv("RISK_POLICY", "vibes")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "RISK_POLICY")
	})

	t.Run("bad hex key", func(t *testing.T) {
		t.Setenv("EMAIL_HASH_KEY", "zz")
		_, err := FromEnv()
		assert.Error(t, err)
	})
}
