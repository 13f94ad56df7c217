package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/vadimbarashkov/url-shortener/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const defaultMaxAttempts = 100

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

type urlRepository interface {
	Exists(ctx context.Context, shortCode string) (bool, error)
	Save(ctx context.Context, url entity.URL) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveAll(ctx context.Context) ([]*entity.URL, error)
	IncrementClickCount(ctx context.Context, shortCode string, at time.Time) (bool, error)
	Remove(ctx context.Context, shortCode string) (bool, error)
}

type qrEncoder interface {
	Encode(content string, size int) ([]byte, error)
}

type URLUseCase struct {
	urlRepo      urlRepository
	qrEncoder    qrEncoder
	maxAttempts  int
	reserved     map[string]struct{}
	generateCode func() (string, error)
	now          func() time.Time
}

type Option func(*URLUseCase)

// WithMaxAttempts caps the number of short codes tried by ShortenURL.
func WithMaxAttempts(n int) Option {
	return func(uc *URLUseCase) {
		if n > 0 {
			uc.maxAttempts = n
		}
	}
}

// WithReservedShortCodes keeps ShortenURL from handing out codes that collide
// with other routes of the service.
func WithReservedShortCodes(codes ...string) Option {
	return func(uc *URLUseCase) {
		for _, code := range codes {
			uc.reserved[code] = struct{}{}
		}
	}
}

// WithClock replaces the wall clock used for creation and expiration checks.
func WithClock(now func() time.Time) Option {
	return func(uc *URLUseCase) {
		uc.now = now
	}
}

func New(urlRepo urlRepository, qrEncoder qrEncoder, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:      urlRepo,
		qrEncoder:    qrEncoder,
		maxAttempts:  defaultMaxAttempts,
		reserved:     make(map[string]struct{}),
		generateCode: generateShortCode,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

func generateShortCode() (string, error) {
	return gonanoid.Generate(entity.ShortCodeAlphabet, entity.ShortCodeLength)
}

func isAbsoluteURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ShortenURL stores originalURL under a newly generated short code.
// Reserved codes and codes already present in the repository are skipped, as
// are codes that lose an insert race against a concurrent call.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string, expiry entity.Expiry) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if !isAbsoluteURL(originalURL) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	for i := 0; i < uc.maxAttempts; i++ {
		shortCode, err := uc.generateCode()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		if _, ok := uc.reserved[shortCode]; ok {
			continue
		}

		taken, err := uc.urlRepo.Exists(ctx, shortCode)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to check short code: %w", op, err)
		}
		if taken {
			continue
		}

		url, err := uc.urlRepo.Save(ctx, entity.URL{
			ShortCode:   shortCode,
			OriginalURL: originalURL,
			CreatedAt:   uc.now(),
			ExpiresAt:   expiry,
		})
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			return nil, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		return url, nil
	}

	return nil, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ExpiryAfter returns an Expiry reached d after the current time of the use case clock.
func (uc *URLUseCase) ExpiryAfter(d time.Duration) entity.Expiry {
	return entity.ExpiresAt(uc.now().Add(d))
}

// ResolveShortCode returns the live URL for shortCode. Expired URLs are
// reported as entity.ErrURLNotFound.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	if url.IsExpired(uc.now()) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return url, nil
}

// RecordClick counts one redirect through shortCode. Unknown and expired
// codes are ignored.
func (uc *URLUseCase) RecordClick(ctx context.Context, shortCode string) error {
	const op = "usecase.URLUseCase.RecordClick"

	if _, err := uc.urlRepo.IncrementClickCount(ctx, shortCode, uc.now()); err != nil {
		return fmt.Errorf("%s: failed to record click: %w", op, err)
	}

	return nil
}

// ListURLs returns every stored URL, newest first, flagging expired ones.
func (uc *URLUseCase) ListURLs(ctx context.Context) ([]entity.ListedURL, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.RetrieveAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	now := uc.now()
	listed := make([]entity.ListedURL, 0, len(urls))

	for _, url := range urls {
		listed = append(listed, entity.ListedURL{
			URL:     *url,
			Expired: url.IsExpired(now),
		})
	}

	return listed, nil
}

// DeleteURL removes the URL stored under shortCode and reports whether one existed.
func (uc *URLUseCase) DeleteURL(ctx context.Context, shortCode string) (bool, error) {
	const op = "usecase.URLUseCase.DeleteURL"

	removed, err := uc.urlRepo.Remove(ctx, shortCode)
	if err != nil {
		return false, fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	return removed, nil
}

// RenderQRCode renders a size×size PNG QR code of the original URL behind a live short code.
func (uc *URLUseCase) RenderQRCode(ctx context.Context, shortCode string, size int) (*entity.URL, []byte, error) {
	const op = "usecase.URLUseCase.RenderQRCode"

	if size < entity.MinQRCodeSize || size > entity.MaxQRCodeSize {
		return nil, nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidQRCodeSize)
	}

	url, err := uc.ResolveShortCode(ctx, shortCode)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	png, err := uc.qrEncoder.Encode(url.OriginalURL, size)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to render qr code: %w", op, err)
	}

	return url, png, nil
}
