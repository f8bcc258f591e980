package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"dialogues/internal/config"
	"dialogues/internal/repository"
	"dialogues/pkg/logger"
)

type RateLimitService interface {
	// Allow учитывает попытку по ключу и сообщает, можно ли ее выполнить
	Allow(ctx context.Context, key string) (bool, error)
}

type rateLimitService struct {
	rateLimitRepo repository.RateLimitRepository
	cfg           config.RateLimitConfig
	log           logger.Logger

	now       func() time.Time
	mu        sync.Mutex
	limiters  map[string]*localLimiter
	lastSweep time.Time
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimitService считает лимиты в redis, а без него - token bucket в памяти процесса
func NewRateLimitService(rateLimitRepo repository.RateLimitRepository, cfg config.RateLimitConfig, log logger.Logger) RateLimitService {
	return &rateLimitService{
		rateLimitRepo: rateLimitRepo,
		cfg:           cfg,
		log:           log,
		now:           time.Now,
		limiters:      make(map[string]*localLimiter),
		lastSweep:     time.Now(),
	}
}

func (s *rateLimitService) Allow(ctx context.Context, key string) (bool, error) {
	if !s.cfg.Enabled {
		return true, nil
	}

	if s.rateLimitRepo != nil {
		allowed, err := s.rateLimitRepo.Allow(ctx, "rate_limit:"+key, s.cfg.Posts, s.cfg.Window)
		if err != nil {
			// Redis недоступен - не блокируем пользователей, считаем локально
			s.log.Warn("Rate limit store failed, using local limiter", "error", err, "key", key)
			return s.allowLocal(key), nil
		}
		return allowed, nil
	}

	return s.allowLocal(key), nil
}

// allowLocal расходует токен локального лимитера ключа. Раз в окно удаляются
// лимитеры, простоявшие окно: их корзина уже полная, новый ведет себя так же
func (s *rateLimitService) allowLocal(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= s.cfg.Window {
		for k, l := range s.limiters {
			if now.Sub(l.lastSeen) >= s.cfg.Window {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	l, ok := s.limiters[key]
	if !ok {
		every := s.cfg.Window / time.Duration(s.cfg.Posts)
		l = &localLimiter{limiter: rate.NewLimiter(rate.Every(every), s.cfg.Posts)}
		s.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter.AllowN(now, 1)
}
