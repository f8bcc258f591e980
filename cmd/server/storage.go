package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"dialogues/internal/config"
	"dialogues/internal/handler"
	"dialogues/internal/repository"
	"dialogues/internal/repository/memory"
	"dialogues/pkg/logger"
)

type storage struct {
	repos *repository.Repositories
	ping  handler.Pinger

	pool *pgxpool.Pool
	rdb  *redis.Client
}

func openStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (*storage, error) {
	s := &storage{}

	if cfg.Redis.Addr != "" {
		s.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		// Redis нужен только для лимитов, без него работаем с локальным лимитером
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Failed to connect to Redis", "addr", cfg.Redis.Addr, "error", err)
		} else {
			log.Info("Redis connection established")
		}
	}

	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("Using in-memory storage, data is lost on restart")
		s.repos = memory.New().Repositories()
		if s.rdb != nil {
			s.repos.RateLimit = repository.NewRateLimitRepository(s.rdb, log)
		}
		return s, nil

	case config.StoragePostgres:
		pool, err := connectPostgres(ctx, cfg.Database)
		if err != nil {
			s.Close()
			return nil, err
		}
		log.Info("Database connection established")

		s.pool = pool
		s.ping = pool.Ping
		s.repos = repository.NewRepositories(pool, s.rdb, log)
		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func connectPostgres(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database DSN: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate применяет схему. Для хранилища в памяти ничего не делает
func (s *storage) Migrate(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return repository.Migrate(ctx, s.pool)
}

func (s *storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
}
