package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

// Тесты против настоящего Redis запускаются только при заданном TEST_REDIS_ADDR
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestRateLimit_AllowSetsWindow(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewRateLimitRepository(rdb, logger.Nop())
	ctx := context.Background()
	key := "rate_limit:test:" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	for i := 0; i < 2; i++ {
		ok, err := repo.Allow(ctx, key, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := repo.Allow(ctx, key, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)
}

func TestRateLimit_AllowDoesNotExtendWindow(t *testing.T) {
	rdb := newTestRedis(t)
	repo := NewRateLimitRepository(rdb, logger.Nop())
	ctx := context.Background()
	key := "rate_limit:test:" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), key) })

	_, err := repo.Allow(ctx, key, 5, 2*time.Second)
	require.NoError(t, err)
	_, err = repo.Allow(ctx, key, 5, time.Hour)
	require.NoError(t, err)

	ttl, err := rdb.TTL(ctx, key).Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, ttl, 2*time.Second)
}

func TestRateLimit_AllowStoreDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	repo := NewRateLimitRepository(rdb, logger.Nop())

	_, err := repo.Allow(context.Background(), "rate_limit:down", 1, time.Minute)
	assert.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
}
