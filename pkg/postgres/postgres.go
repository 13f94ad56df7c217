package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultConnectTimeout  = 10 * time.Second
	defaultConnMaxIdleTime = 5 * time.Minute
	defaultConnMaxLifetime = 30 * time.Minute
	defaultMaxIdleConns    = 5
	defaultMaxOpenConns    = 25
)

type Option func(*sqlx.DB)

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(db *sqlx.DB) {
		if d > 0 {
			db.SetConnMaxIdleTime(d)
		}
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *sqlx.DB) {
		if d > 0 {
			db.SetConnMaxLifetime(d)
		}
	}
}

func WithMaxIdleConns(n int) Option {
	return func(db *sqlx.DB) {
		if n > 0 {
			db.SetMaxIdleConns(n)
		}
	}
}

func WithMaxOpenConns(n int) Option {
	return func(db *sqlx.DB) {
		if n > 0 {
			db.SetMaxOpenConns(n)
		}
	}
}

// New opens a pgx connection pool to dsn and verifies it is reachable.
func New(ctx context.Context, dsn string, opts ...Option) (*sqlx.DB, error) {
	const op = "postgres.New"

	ctx, cancel := context.WithTimeout(ctx, defaultConnectTimeout)
	defer cancel()

	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetMaxOpenConns(defaultMaxOpenConns)

	for _, opt := range opts {
		opt(db)
	}

	return db, nil
}
