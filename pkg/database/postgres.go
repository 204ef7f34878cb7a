package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	chaterrors "alumnet-chat/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX abstracts *pgxpool.Pool and pgx.Tx so store functions can run
// against either a pooled connection or an already-open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner is satisfied by *pgxpool.Pool. pgx.Tx also implements Begin
// (savepoints), so transactional helpers compose when handed one.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Handle is what services hold: a pool-like dependency that can run
// queries directly and open transactions. *pgxpool.Pool satisfies it.
// Services receive it at construction; nothing reaches for a global.
type Handle interface {
	DBTX
	Beginner
}

type Config struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// New builds the process-wide connection pool. The pool is handed to
// services explicitly; nothing in this package keeps a global handle.
func New(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// WithTx runs fn inside a single transaction on one pooled connection.
// Commit happens only when fn returns nil; every other exit path,
// including panic and context cancellation, rolls back. The deferred
// rollback is a no-op after a successful commit, so the connection is
// returned to the pool on every path.
func WithTx(ctx context.Context, db Beginner, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", chaterrors.ErrServiceUnavailable, err)
	}
	// Rollback after a successful commit reports pgx.ErrTxClosed and is
	// a no-op. A broken connection is discarded by pgx, not pooled.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505). Dedup constraints on conversations rely
// on this to turn a lost insert race into a refetch.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
