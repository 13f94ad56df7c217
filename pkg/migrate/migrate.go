// Package migrate applies embedded SQL migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// Up applies every pending migration found in dir of fsys to the database at
// databaseURL. The URL scheme selects the driver: postgres:// or sqlite://.
func Up(fsys fs.FS, dir, databaseURL string) error {
	const op = "migrate.Up"

	m, err := newMigrate(fsys, dir, databaseURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}

// Down rolls back every applied migration.
func Down(fsys fs.FS, dir, databaseURL string) error {
	const op = "migrate.Down"

	m, err := newMigrate(fsys, dir, databaseURL)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to rollback migrations: %w", op, err)
	}

	return nil
}

func newMigrate(fsys fs.FS, dir, databaseURL string) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}

	return m, nil
}
