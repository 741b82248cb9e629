// Package postgres implements the repository contract on PostgreSQL using pgx
// directly for transactional work and goqu for the list queries.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/library-lending/internal/repository"
)

const (
	dialectPostgres    = "postgres"
	defaultLockTimeout = 2 * time.Second

	codeLockNotAvailable    = "55P03"
	codeSerializationFailed = "40001"
	codeDeadlockDetected    = "40P01"
	codeUniqueViolation     = "23505"
	codeInvalidText         = "22P02"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the PostgreSQL repository.Store.
type Store struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
	builder     goqu.DialectWrapper
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLockTimeout bounds how long a transaction waits for a row lock before
// failing with repository.ErrTransient. Zero disables the bound.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// New constructs a Store on an existing pool.
func New(db *pgxpool.Pool, opts ...Option) *Store {
	s := &Store{
		db:          db,
		lockTimeout: defaultLockTimeout,
		builder:     goqu.Dialect(dialectPostgres),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithinTx runs fn inside a single transaction. Row locks taken by fn through
// the Tx are released on commit or rollback.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	// Ensure the transaction is always resolved.
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if s.lockTimeout > 0 {
		// SET does not take bind parameters; the value is an integer we format.
		_, err = tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", s.lockTimeout.Milliseconds()))
		if err != nil {
			return classify(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err = fn(&txn{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// txn is the repository.Tx handed to WithinTx callbacks.
type txn struct {
	q querier
}

var _ repository.Tx = (*txn)(nil)

// classify maps driver errors onto the repository sentinels while keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeSerializationFailed, codeDeadlockDetected:
			return fmt.Errorf("%w: %w", repository.ErrTransient, err)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %w", repository.ErrConflict, err)
		case codeInvalidText:
			// A malformed uuid can never match a row.
			return repository.ErrNotFound
		}
	}
	return err
}

// count runs a goqu COUNT(*) built from ds.
func (s *Store) count(ctx context.Context, ds *goqu.SelectDataset) (int, error) {
	query, args, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("count rows: %w", err))
	}
	return n, nil
}
