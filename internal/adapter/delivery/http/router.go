// Package http provides the HTTP delivery layer for the URL shortener service.
// This package contains the HTTP handlers and related types used for processing
// incoming requests, validating input, and formatting responses.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v2"
	"github.com/go-playground/validator/v10"
	"github.com/vadimbarashkov/url-shortener/docs"
	"github.com/vadimbarashkov/url-shortener/internal/metrics"
	"github.com/vadimbarashkov/url-shortener/pkg/middleware/ratelimit"
	"github.com/vadimbarashkov/url-shortener/pkg/middleware/recoverer"

	httpSwagger "github.com/swaggo/http-swagger"
)

// ReservedPaths lists the top-level path segments served by static routes.
// Short codes equal to one of them would never reach the redirect handler.
var ReservedPaths = []string{"api", "docs", "metrics", "swagger"}

type routerOptions struct {
	limiter      *ratelimit.Limiter
	proxyHeaders bool
}

type RouterOption func(*routerOptions)

// WithRateLimiter throttles the API and redirect routes per client address.
func WithRateLimiter(l *ratelimit.Limiter) RouterOption {
	return func(o *routerOptions) {
		o.limiter = l
	}
}

// WithProxyHeaders takes the client address from the X-Forwarded-For and
// X-Real-IP headers. Only enable it behind a proxy that overwrites them.
func WithProxyHeaders() RouterOption {
	return func(o *routerOptions) {
		o.proxyHeaders = true
	}
}

// NewRouter initializes and returns a new Chi router configured with middleware and routes for the URL shortener API.
// Short URLs are built by joining baseURL and the short code.
func NewRouter(
	logger *httplog.Logger,
	urlUseCase urlUseCase,
	m *metrics.Metrics,
	baseURL string,
	opts ...RouterOption,
) *chi.Mux {
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"POST", "GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Accept"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))
	r.Use(middleware.RequestID)
	if o.proxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(httplog.RequestLogger(logger))
	r.Use(recoverer.New(logger.Logger))
	r.Use(m.Middleware)

	r.Handle("/metrics", m.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/swagger.yml"),
	))

	r.Get("/docs/swagger.yml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")

		if _, err := w.Write(docs.SwaggerYAML); err != nil {
			httplog.LogEntrySetField(r.Context(), "err", slog.AnyValue(err))
		}
	})

	h := newURLHandler(urlUseCase, validator.New(), m, baseURL)

	r.Group(func(r chi.Router) {
		if o.limiter != nil {
			r.Use(o.limiter.Handler)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/ping", handlePing)

			r.Route("/urls", func(r chi.Router) {
				r.Post("/", h.shortenURL)
				r.Get("/", h.listURLs)

				r.Route("/{shortCode}", func(r chi.Router) {
					r.Get("/", h.resolveShortCode)
					r.Delete("/", h.deleteURL)
					r.Get("/qr", h.getQRCode)
					r.Get("/qr/image", h.getQRCodeImage)
				})
			})
		})

		r.Get("/{shortCode}", h.redirect)
	})

	return r
}
