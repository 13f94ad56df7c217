// Package sqlite binds the SQL URL repository to an embedded SQLite database.
package sqlite

import (
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/url-shortener/internal/adapter/repository/sqldb"
	"modernc.org/sqlite"

	sqlite3 "modernc.org/sqlite/lib"
)

func isUniqueViolationError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary result code only, when extended codes are off.
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}

func NewURLRepository(db *sqlx.DB) *sqldb.URLRepository {
	return sqldb.NewURLRepository(db, isUniqueViolationError)
}
