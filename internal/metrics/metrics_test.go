package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/{shortCode}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	ts := httptest.NewServer(r)
	defer ts.Close()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	for _, path := range []string{"/aB3xY9z", "/Zx81kLm", "/missing"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/{shortCode}", "302")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/missing", "404")))
	assert.Positive(t, testutil.CollectAndCount(m.httpRequestDurationSeconds))
}

func TestDomainCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncURLsCreated()
	m.IncURLsCreated()
	m.ObserveRedirect(RedirectFound)
	m.ObserveRedirect(RedirectNotFound)
	m.ObserveRedirect(RedirectFound)
	m.IncClickRecordFailures()
	m.ObserveQRCode("png")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.urlsCreatedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.redirectsTotal.WithLabelValues(RedirectFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redirectsTotal.WithLabelValues(RedirectNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clickRecordFailuresTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.qrCodesRenderedTotal.WithLabelValues("png")))
}

func TestHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncURLsCreated()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "url_shortener_urls_created_total 1")
}
