package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Open builds the store selected by cfg.Store.Backend. The returned func
// releases backend connections.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, func(), error) {
	switch cfg.Store.Backend {
	case "", "file":
		store, err := NewFileStore(cfg.Store.DataDir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file store", zap.String("dir", cfg.Store.DataDir))
		return store, func() {}, nil
	case "memory":
		logger.Warn("using in-memory store; state is lost on restart")
		return NewMemoryStore(logger), func() {}, nil
	case "redis":
		r, err := NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStore(r, cfg.Store.RedisKeyPrefix, logger), r.Close, nil
	case "postgres":
		pg, err := NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pg.Pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, nil, err
			}
		}
		return NewPostgresStore(pg, logger), pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
