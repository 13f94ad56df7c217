// Package entity defines the entities and errors used in the application.
// It includes the URL struct, which represents a shortened URL, along with its
// optional expiration and click statistics, and the error taxonomy shared by
// the use case and adapter layers.
package entity

import (
	"errors"
	"strings"
	"time"
)

const (
	// ShortCodeLength is the number of symbols in every generated short code.
	ShortCodeLength = 7
	// ShortCodeAlphabet is the set of symbols short codes are drawn from.
	ShortCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

const (
	MinQRCodeSize     = 50
	MaxQRCodeSize     = 1000
	DefaultQRCodeSize = 200
)

var (
	// ErrShortCodeExists is returned when attempting to create a URL with a short code that already exists.
	ErrShortCodeExists = errors.New("short code exists")
	// ErrURLNotFound is returned when a URL with the specified short code cannot be found
	// or has already expired.
	ErrURLNotFound = errors.New("url not found")
	// ErrQRCodeCapacityExceeded is returned when a URL is too long to fit in a QR code.
	ErrQRCodeCapacityExceeded = errors.New("url too long to encode as qr code")
)

// ValidationError reports input rejected by a business rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	// ErrInvalidURL is returned when the original URL is not an absolute URL.
	ErrInvalidURL = &ValidationError{Field: "original_url", Message: "invalid url format"}
	// ErrInvalidQRCodeSize is returned when a QR code size is out of the supported range.
	ErrInvalidQRCodeSize = &ValidationError{Field: "size", Message: "size must be between 50 and 1000 pixels"}
)

// Expiry is an optional point in time after which a URL no longer resolves.
// The zero value never expires.
type Expiry struct {
	at  time.Time
	set bool
}

// NeverExpires returns an Expiry that is never reached.
func NeverExpires() Expiry {
	return Expiry{}
}

// ExpiresAt returns an Expiry reached at t.
func ExpiresAt(t time.Time) Expiry {
	return Expiry{at: t, set: true}
}

// Time returns the expiration time and whether one is set.
func (e Expiry) Time() (time.Time, bool) {
	return e.at, e.set
}

// IsSet reports whether an expiration time is set.
func (e Expiry) IsSet() bool {
	return e.set
}

// PassedAt reports whether the expiration time is set and strictly before now.
func (e Expiry) PassedAt(now time.Time) bool {
	return e.set && e.at.Before(now)
}

// URL represents a shortened URL.
type URL struct {
	ID          int64     // ID is the unique identifier of the URL in the database.
	ShortCode   string    // ShortCode is the generated code used to shorten the original URL.
	OriginalURL string    // OriginalURL is the full URL that the short code resolves to.
	ClickCount  int64     // ClickCount is the number of redirects served through the short code.
	CreatedAt   time.Time // CreatedAt is the timestamp when the URL was created.
	ExpiresAt   Expiry    // ExpiresAt is the optional moment the URL stops resolving.
}

// IsExpired reports whether the URL stopped resolving before now.
func (u *URL) IsExpired(now time.Time) bool {
	return u.ExpiresAt.PassedAt(now)
}

// ShortURL joins baseURL and the short code.
func (u *URL) ShortURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/" + u.ShortCode
}

// ListedURL is a URL as reported by a full listing, with its expiration
// state computed at read time.
type ListedURL struct {
	URL
	Expired bool
}
