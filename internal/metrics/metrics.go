// Package metrics exposes Prometheus collectors for the URL shortener service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "url_shortener"

// Redirect results.
const (
	RedirectFound    = "found"
	RedirectNotFound = "not_found"
	RedirectError    = "error"
)

// Metrics holds the collectors of one registry.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	urlsCreatedTotal           prometheus.Counter
	redirectsTotal             *prometheus.CounterVec
	clickRecordFailuresTotal   prometheus.Counter
	qrCodesRenderedTotal       *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests, labeled by method, route and code.",
			},
			[]string{"method", "route", "code"},
		),
		httpRequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		urlsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "urls_created_total",
				Help:      "Total number of shortened URLs created.",
			},
		),
		redirectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redirects_total",
				Help:      "Total number of redirect attempts, labeled by result.",
			},
			[]string{"result"},
		),
		clickRecordFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "click_record_failures_total",
				Help:      "Total number of redirects whose click could not be recorded.",
			},
		),
		qrCodesRenderedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "qr_codes_rendered_total",
				Help:      "Total number of QR codes rendered, labeled by format.",
			},
			[]string{"format"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records the count and latency of requests served by a chi router.
// Routes are labeled by their pattern so that short codes do not explode
// label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		m.ObserveHTTPRequest(r.Method, route, code, time.Since(start))
	})
}

// ObserveHTTPRequest increments the HTTP request metrics.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) IncURLsCreated() {
	m.urlsCreatedTotal.Inc()
}

// ObserveRedirect counts a redirect attempt with one of the Redirect* results.
func (m *Metrics) ObserveRedirect(result string) {
	m.redirectsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncClickRecordFailures() {
	m.clickRecordFailuresTotal.Inc()
}

// ObserveQRCode counts a rendered QR code; format is "json" or "png".
func (m *Metrics) ObserveQRCode(format string) {
	m.qrCodesRenderedTotal.WithLabelValues(format).Inc()
}
