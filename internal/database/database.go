// Package database provides PostgreSQL connection management using pgx.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/library-lending/internal/config"
)

const connectAttempts = 5

// NewPool creates and validates a pgxpool connection pool.
// It retries a few times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg config.Database, logger *zap.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		logger.Warn("db connect attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", connectAttempts),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}

// schema is idempotent. Loans keep raw book/member ids without foreign keys:
// they are an audit log and outlive deleted books and members.
const schema = `
CREATE TABLE IF NOT EXISTS books (
	id     UUID PRIMARY KEY,
	title  TEXT NOT NULL,
	author TEXT NOT NULL,
	amount INTEGER NOT NULL CHECK (amount >= 0),
	UNIQUE (title, author)
);

CREATE TABLE IF NOT EXISTS members (
	id              UUID PRIMARY KEY,
	name            TEXT NOT NULL,
	surname         TEXT NOT NULL,
	membership_date TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS loans (
	id          UUID PRIMARY KEY,
	book_id     UUID NOT NULL,
	member_id   UUID NOT NULL,
	borrowed_at TIMESTAMPTZ NOT NULL,
	returned_at TIMESTAMPTZ,
	CHECK (returned_at IS NULL OR returned_at >= borrowed_at)
);

CREATE INDEX IF NOT EXISTS loans_open_by_book
	ON loans (book_id) WHERE returned_at IS NULL;

CREATE INDEX IF NOT EXISTS loans_open_by_member
	ON loans (member_id, book_id) WHERE returned_at IS NULL;
`

// Migrate creates the tables the service needs if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
