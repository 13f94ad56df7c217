// Package sqldb implements the URL repository on top of any database/sql
// driver supported by sqlx. Dialect packages (postgres, sqlite) provide the
// constructor and the detection of unique constraint violations.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/url-shortener/internal/entity"
)

const urlColumns = `id, short_code, original_url, click_count, created_at, expires_at`

type urlDB struct {
	ID          int64        `db:"id"`
	ShortCode   string       `db:"short_code"`
	OriginalURL string       `db:"original_url"`
	ClickCount  int64        `db:"click_count"`
	CreatedAt   time.Time    `db:"created_at"`
	ExpiresAt   sql.NullTime `db:"expires_at"`
}

func (u *urlDB) toEntity() *entity.URL {
	url := &entity.URL{
		ID:          u.ID,
		ShortCode:   u.ShortCode,
		OriginalURL: u.OriginalURL,
		ClickCount:  u.ClickCount,
		CreatedAt:   u.CreatedAt.UTC(),
	}

	if u.ExpiresAt.Valid {
		url.ExpiresAt = entity.ExpiresAt(u.ExpiresAt.Time.UTC())
	}

	return url
}

func nullTime(e entity.Expiry) sql.NullTime {
	t, ok := e.Time()
	if !ok {
		return sql.NullTime{}
	}

	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// URLRepository stores shortened URLs in the urls table.
// Timestamps are written in UTC so that drivers storing them as text keep
// their lexical and chronological order aligned.
type URLRepository struct {
	db                *sqlx.DB
	isUniqueViolation func(error) bool
}

// NewURLRepository returns a repository over db. isUniqueViolation reports
// whether a driver error is a violation of the short code uniqueness constraint.
func NewURLRepository(db *sqlx.DB, isUniqueViolation func(error) bool) *URLRepository {
	return &URLRepository{
		db:                db,
		isUniqueViolation: isUniqueViolation,
	}
}

func (r *URLRepository) Exists(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.sqldb.URLRepository.Exists"
	query := r.db.Rebind(`SELECT EXISTS (SELECT 1 FROM urls WHERE short_code = ?)`)

	var exists bool

	if err := r.db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to query urls table: %w", op, err)
	}

	return exists, nil
}

func (r *URLRepository) Save(ctx context.Context, url entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.sqldb.URLRepository.Save"
	query := r.db.Rebind(`INSERT INTO urls (short_code, original_url, created_at, expires_at)
		VALUES (?, ?, ?, ?)
		RETURNING ` + urlColumns)

	var rec urlDB

	err := r.db.GetContext(ctx, &rec, query, url.ShortCode, url.OriginalURL, url.CreatedAt.UTC(), nullTime(url.ExpiresAt))
	if err != nil {
		if r.isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *URLRepository) RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "adapter.repository.sqldb.URLRepository.RetrieveByShortCode"
	query := r.db.Rebind(`SELECT ` + urlColumns + ` FROM urls WHERE short_code = ?`)

	var rec urlDB

	if err := r.db.GetContext(ctx, &rec, query, shortCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *URLRepository) RetrieveAll(ctx context.Context) ([]*entity.URL, error) {
	const op = "adapter.repository.sqldb.URLRepository.RetrieveAll"
	const query = `SELECT ` + urlColumns + ` FROM urls ORDER BY created_at DESC, id DESC`

	var recs []urlDB

	if err := r.db.SelectContext(ctx, &recs, query); err != nil {
		return nil, fmt.Errorf("%s: failed to get rows from urls table: %w", op, err)
	}

	urls := make([]*entity.URL, 0, len(recs))
	for i := range recs {
		urls = append(urls, recs[i].toEntity())
	}

	return urls, nil
}

// IncrementClickCount adds one click to the URL stored under shortCode unless
// it expired before at. It reports whether a click was counted.
func (r *URLRepository) IncrementClickCount(ctx context.Context, shortCode string, at time.Time) (bool, error) {
	const op = "adapter.repository.sqldb.URLRepository.IncrementClickCount"
	query := r.db.Rebind(`UPDATE urls
		SET click_count = click_count + 1
		WHERE short_code = ? AND (expires_at IS NULL OR expires_at >= ?)`)

	res, err := r.db.ExecContext(ctx, query, shortCode, at.UTC())
	if err != nil {
		return false, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected == 1, nil
}

func (r *URLRepository) Remove(ctx context.Context, shortCode string) (bool, error) {
	const op = "adapter.repository.sqldb.URLRepository.Remove"
	query := r.db.Rebind(`DELETE FROM urls WHERE short_code = ?`)

	res, err := r.db.ExecContext(ctx, query, shortCode)
	if err != nil {
		return false, fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	return rowsAffected == 1, nil
}
