// Package sqlite opens embedded SQLite databases through the pure Go
// modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "modernc.org/sqlite"
)

const defaultBusyTimeout = 5 * time.Second

type options struct {
	busyTimeout time.Duration
}

type Option func(*options)

// WithBusyTimeout sets how long a statement waits for a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// DSN returns the driver data source name for the database file at path.
func DSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path, busyTimeout.Milliseconds())
}

// MigrationURL returns the golang-migrate database URL for the file at path.
func MigrationURL(path string) string {
	return "sqlite://" + path
}

// New opens the database file at path, creating it when missing.
// SQLite serializes writers, so the pool holds a single connection.
func New(ctx context.Context, path string, opts ...Option) (*sqlx.DB, error) {
	const op = "sqlite.New"

	o := options{busyTimeout: defaultBusyTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite", DSN(path, o.busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}
