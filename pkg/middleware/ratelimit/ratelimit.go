// Package ratelimit throttles HTTP requests per client address with token
// buckets from golang.org/x/time/rate.
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

const (
	defaultTTL        = 10 * time.Minute
	defaultMaxClients = 10000
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

var tooManyRequestsResponse = errorResponse{
	Status:  "error",
	Message: "too many requests",
}

// Limiter keeps one token bucket per client address. Buckets idle for longer
// than the configured TTL are swept on later requests. At most maxClients
// buckets are tracked; the least recently seen one is evicted to make room.
type Limiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	limit      rate.Limit
	burst      int
	ttl        time.Duration
	maxClients int
	lastSweep  time.Time
	now        func() time.Time
}

type Option func(*Limiter)

// WithTTL sets how long an idle client bucket is kept.
func WithTTL(ttl time.Duration) Option {
	return func(l *Limiter) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithMaxClients caps the number of tracked client buckets.
func WithMaxClients(n int) Option {
	return func(l *Limiter) {
		if n > 0 {
			l.maxClients = n
		}
	}
}

// WithClock replaces the wall clock used for token refill and sweeping.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New returns a Limiter allowing rps requests per second with bursts of up
// to burst requests per client.
func New(rps float64, burst int, opts ...Option) *Limiter {
	l := &Limiter{
		visitors:   make(map[string]*visitor),
		limit:      rate.Limit(rps),
		burst:      burst,
		ttl:        defaultTTL,
		maxClients: defaultMaxClients,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.lastSweep = l.now()

	return l
}

// Allow reports whether a request from key may proceed now.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	v, ok := l.visitors[key]
	if !ok {
		if len(l.visitors) >= l.maxClients {
			l.evict(now)
		}

		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.visitors)
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.ttl {
		return
	}

	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}

	l.lastSweep = now
}

// evict drops idle buckets, or the least recently seen one when none is idle.
func (l *Limiter) evict(now time.Time) {
	var (
		oldestKey  string
		oldestSeen time.Time
		found      bool
		removed    bool
	)

	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
			removed = true
			continue
		}

		if !found || v.lastSeen.Before(oldestSeen) {
			oldestKey, oldestSeen, found = key, v.lastSeen, true
		}
	}

	if !removed && found {
		delete(l.visitors, oldestKey)
	}
}

func (l *Limiter) retryAfter() int {
	if l.limit <= 0 {
		return 1
	}

	return int(math.Ceil(1 / float64(l.limit)))
}

// Handler rejects requests over the limit with 429 Too Many Requests.
// Clients are keyed by the host part of RemoteAddr. Middleware that rewrites
// RemoteAddr from request headers must only run ahead of it behind a trusted proxy.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, tooManyRequestsResponse)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}
