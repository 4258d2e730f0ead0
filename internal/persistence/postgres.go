package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
)

// Postgres wraps access to a pgx connection pool.
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres establishes a connection pool.
func NewPostgres(ctx context.Context, cfg config.PostgresConfig, logger *zap.Logger) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("POSTGRES_DSN is required for the postgres store")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.ConnMaxIdleSec > 0 {
		poolCfg.MaxConnIdleTime = time.Duration(cfg.ConnMaxIdleSec) * time.Second
	}
	if cfg.ConnMaxLifeSec > 0 {
		poolCfg.MaxConnLifetime = time.Duration(cfg.ConnMaxLifeSec) * time.Second
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("connected to postgres")
	return &Postgres{Pool: pool}, nil
}

// Close releases pool resources.
func (p *Postgres) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

// Ping verifies database connectivity.
func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.Pool == nil {
		return errors.New("postgres pool not configured")
	}
	return p.Pool.Ping(ctx)
}

// PostgresStore keeps one row per table in the records relation. The
// document column is json, not jsonb, so key order is kept.
type PostgresStore struct {
	pg     *Postgres
	logger *zap.Logger
}

func NewPostgresStore(pg *Postgres, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pg: pg, logger: logger}
}

func (s *PostgresStore) Load(ctx context.Context, table Table) ([]Record, error) {
	const query = `SELECT document::text FROM records WHERE table_name = $1`
	var raw string
	err := s.pg.Pool.QueryRow(ctx, query, string(table)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", table, err)
	}
	return decodeOrEmpty([]byte(raw), table, s.logger), nil
}

func (s *PostgresStore) Save(ctx context.Context, table Table, records []Record) error {
	doc, err := EncodeDocument(records)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO records (table_name, document, updated_at)
        VALUES ($1, $2::json, NOW())
        ON CONFLICT (table_name) DO UPDATE SET document = EXCLUDED.document, updated_at = NOW()`
	if _, err := s.pg.Pool.Exec(ctx, query, string(table), string(doc)); err != nil {
		return fmt.Errorf("save %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pg.Ping(ctx)
}
