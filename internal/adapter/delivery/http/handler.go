package http

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/url-shortener/internal/entity"
	"github.com/vadimbarashkov/url-shortener/internal/metrics"
)

func handlePing(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "pong")
}

type urlUseCase interface {
	ShortenURL(ctx context.Context, originalURL string, expiry entity.Expiry) (*entity.URL, error)
	ExpiryAfter(d time.Duration) entity.Expiry
	ResolveShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RecordClick(ctx context.Context, shortCode string) error
	ListURLs(ctx context.Context) ([]entity.ListedURL, error)
	DeleteURL(ctx context.Context, shortCode string) (bool, error)
	RenderQRCode(ctx context.Context, shortCode string, size int) (*entity.URL, []byte, error)
}

type urlHandler struct {
	useCase  urlUseCase
	validate *validator.Validate
	metrics  *metrics.Metrics
	baseURL  string
}

func newURLHandler(useCase urlUseCase, validate *validator.Validate, m *metrics.Metrics, baseURL string) *urlHandler {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &urlHandler{
		useCase:  useCase,
		validate: validate,
		metrics:  m,
		baseURL:  baseURL,
	}
}

// renderError maps use case errors to HTTP responses. Unexpected errors are
// attached to the request log entry.
func (h *urlHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var ruleErr *entity.ValidationError

	switch {
	case errors.As(err, &ruleErr):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ruleViolationResponse(ruleErr))
	case errors.Is(err, entity.ErrURLNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, urlNotFoundResponse)
	case errors.Is(err, entity.ErrQRCodeCapacityExceeded):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, qrCodeCapacityExceededResponse)
	default:
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, serverErrorResponse)
	}
}

func (h *urlHandler) shortenURL(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest

	if err := render.DecodeJSON(r.Body, &req); err != nil {
		if errors.Is(err, io.EOF) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, emptyRequestBodyResponse)
			return
		}

		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, invalidRequestBodyResponse)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, validationErrorResponse(err))
		return
	}

	expiry := entity.NeverExpires()
	if req.ExpirationMinutes != nil {
		expiry = h.useCase.ExpiryAfter(time.Duration(*req.ExpirationMinutes) * time.Minute)
	}

	url, err := h.useCase.ShortenURL(r.Context(), req.OriginalURL, expiry)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.metrics.IncURLsCreated()

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toURLResponse(url, h.baseURL))
}

func (h *urlHandler) listURLs(w http.ResponseWriter, r *http.Request) {
	urls, err := h.useCase.ListURLs(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toListedURLResponses(urls, h.baseURL))
}

func (h *urlHandler) resolveShortCode(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toURLResponse(url, h.baseURL))
}

func (h *urlHandler) deleteURL(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	removed, err := h.useCase.DeleteURL(r.Context(), shortCode)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if !removed {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, urlNotFoundResponse)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// redirect sends the visitor to the original URL and counts the click.
// A failure to count the click does not block the redirect.
func (h *urlHandler) redirect(w http.ResponseWriter, r *http.Request) {
	shortCode := chi.URLParam(r, "shortCode")

	url, err := h.useCase.ResolveShortCode(r.Context(), shortCode)
	if err != nil {
		if errors.Is(err, entity.ErrURLNotFound) {
			h.metrics.ObserveRedirect(metrics.RedirectNotFound)
		} else {
			h.metrics.ObserveRedirect(metrics.RedirectError)
		}

		h.renderError(w, r, err)
		return
	}

	if err := h.useCase.RecordClick(r.Context(), shortCode); err != nil {
		httplog.LogEntrySetField(r.Context(), "click_err", slog.AnyValue(err))
		h.metrics.IncClickRecordFailures()
	}

	h.metrics.ObserveRedirect(metrics.RedirectFound)

	http.Redirect(w, r, url.OriginalURL, http.StatusFound)
}

func parseQRCodeSize(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("size")
	if raw == "" {
		return entity.DefaultQRCodeSize, nil
	}

	size, err := strconv.Atoi(raw)
	if err != nil {
		return 0, entity.ErrInvalidQRCodeSize
	}

	return size, nil
}

func (h *urlHandler) renderQRCode(w http.ResponseWriter, r *http.Request) (*entity.URL, []byte, int, bool) {
	shortCode := chi.URLParam(r, "shortCode")

	size, err := parseQRCodeSize(r)
	if err != nil {
		h.renderError(w, r, err)
		return nil, nil, 0, false
	}

	url, png, err := h.useCase.RenderQRCode(r.Context(), shortCode, size)
	if err != nil {
		h.renderError(w, r, err)
		return nil, nil, 0, false
	}

	return url, png, size, true
}

func (h *urlHandler) getQRCode(w http.ResponseWriter, r *http.Request) {
	url, png, size, ok := h.renderQRCode(w, r)
	if !ok {
		return
	}

	h.metrics.ObserveQRCode("json")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, qrCodeResponse{
		QRCode:      base64.StdEncoding.EncodeToString(png),
		ShortURL:    url.ShortURL(h.baseURL),
		OriginalURL: url.OriginalURL,
		Size:        size,
	})
}

func (h *urlHandler) getQRCodeImage(w http.ResponseWriter, r *http.Request) {
	url, png, _, ok := h.renderQRCode(w, r)
	if !ok {
		return
	}

	h.metrics.ObserveQRCode("png")

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="qr-code-%s.png"`, url.ShortCode))
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(png); err != nil {
		httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
	}
}
