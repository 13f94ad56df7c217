// Package postgres binds the SQL URL repository to PostgreSQL.
package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/url-shortener/internal/adapter/repository/sqldb"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

func NewURLRepository(db *sqlx.DB) *sqldb.URLRepository {
	return sqldb.NewURLRepository(db, isUniqueViolationError)
}
