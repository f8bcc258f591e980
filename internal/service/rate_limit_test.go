package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialogues/internal/config"
	"dialogues/pkg/logger"
)

type stubRateLimitRepo struct {
	allowed bool
	err     error
	keys    []string
}

func (r *stubRateLimitRepo) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.keys = append(r.keys, key)
	return r.allowed, r.err
}

func TestRateLimit_LocalFallback(t *testing.T) {
	svc := NewRateLimitService(nil, config.RateLimitConfig{Enabled: true, Posts: 2, Window: time.Hour}, logger.Nop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := svc.Allow(ctx, "user-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := svc.Allow(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// у другого ключа свой лимит
	ok, err = svc.Allow(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimit_Disabled(t *testing.T) {
	repo := &stubRateLimitRepo{allowed: false}
	svc := NewRateLimitService(repo, config.RateLimitConfig{Enabled: false}, logger.Nop())

	ok, err := svc.Allow(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, repo.keys)
}

func TestRateLimit_UsesStore(t *testing.T) {
	repo := &stubRateLimitRepo{allowed: false}
	svc := NewRateLimitService(repo, config.RateLimitConfig{Enabled: true, Posts: 5, Window: time.Minute}, logger.Nop())

	ok, err := svc.Allow(context.Background(), "posts:u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"rate_limit:posts:u1"}, repo.keys)
}

func TestRateLimit_StoreFailureFallsBackLocally(t *testing.T) {
	repo := &stubRateLimitRepo{err: errors.New("connection refused")}
	svc := NewRateLimitService(repo, config.RateLimitConfig{Enabled: true, Posts: 1, Window: time.Hour}, logger.Nop())
	ctx := context.Background()

	ok, err := svc.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRateLimit_EvictsIdleLocalLimiters(t *testing.T) {
	svc := NewRateLimitService(nil, config.RateLimitConfig{Enabled: true, Posts: 1, Window: time.Minute}, logger.Nop()).(*rateLimitService)
	now := time.Now()
	svc.now = func() time.Time { return now }
	svc.lastSweep = now
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		ok, err := svc.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := svc.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, svc.limiters, 2)

	now = now.Add(time.Minute + time.Second)
	ok, err = svc.Allow(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, svc.limiters, 1)
	assert.Contains(t, svc.limiters, "c")

	// после простоя окно снова полное
	ok, err = svc.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}
