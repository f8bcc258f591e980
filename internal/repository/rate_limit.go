package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "dialogues/pkg/errors"
	"dialogues/pkg/logger"
)

type rateLimitRepository struct {
	redis *redis.Client
	log   logger.Logger
}

func NewRateLimitRepository(redis *redis.Client, log logger.Logger) RateLimitRepository {
	return &rateLimitRepository{redis: redis, log: log}
}

// Allow - счетчик фиксированного окна. INCR и EXPIRE NX идут в одном MULTI,
// поэтому счетчик не остается без TTL. EXPIRE NX требует Redis 7+
func (r *rateLimitRepository) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	var incr *redis.IntCmd
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		r.log.Error("Failed to increment rate limit", "error", err, "key", key)
		return false, fmt.Errorf("%w: %v", apperrors.ErrStorageUnavailable, err)
	}

	return incr.Val() <= int64(limit), nil
}
