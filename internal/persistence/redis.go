package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr))
	return &Redis{Client: client}, nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

// RedisStore keeps each table document under <prefix><table>.
type RedisStore struct {
	redis  *Redis
	prefix string
	logger *zap.Logger
}

func NewRedisStore(r *Redis, prefix string, logger *zap.Logger) *RedisStore {
	return &RedisStore{redis: r, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(table Table) string {
	return s.prefix + string(table)
}

func (s *RedisStore) Load(ctx context.Context, table Table) ([]Record, error) {
	raw, err := s.redis.Client.Get(ctx, s.key(table)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return decodeOrEmpty(raw, table, s.logger), nil
}

func (s *RedisStore) Save(ctx context.Context, table Table, records []Record) error {
	doc, err := EncodeDocument(records)
	if err != nil {
		return err
	}
	if err := s.redis.Client.Set(ctx, s.key(table), doc, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx)
}
