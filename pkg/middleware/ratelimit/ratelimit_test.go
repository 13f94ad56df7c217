package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestLimiter_Allow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(1, 2, WithClock(clock.Now))

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	assert.True(t, l.Allow("10.0.0.2"), "clients are limited independently")

	clock.Advance(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestLimiter_Sweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(1, 1, WithClock(clock.Now), WithTTL(time.Minute))

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	assert.Equal(t, 2, l.Len())

	clock.Advance(30 * time.Second)
	l.Allow("10.0.0.2")
	assert.Equal(t, 2, l.Len())

	clock.Advance(45 * time.Second)
	l.Allow("10.0.0.3")
	assert.Equal(t, 2, l.Len(), "idle client is dropped")
}

func TestLimiter_Handler(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(1, 1, WithClock(clock.Now))

	h := l.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	newRequest := func(addr string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		return req
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("10.0.0.1:5000"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"status":"error","message":"too many requests"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, newRequest("10.0.0.2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiter_MaxClients(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(0.001, 1, WithClock(clock.Now), WithMaxClients(2))

	assert.True(t, l.Allow("10.0.0.1"))
	clock.Advance(time.Second)
	assert.True(t, l.Allow("10.0.0.2"))
	clock.Advance(time.Second)
	assert.False(t, l.Allow("10.0.0.2"))

	for i := 0; i < 100; i++ {
		clock.Advance(time.Millisecond)
		l.Allow(fmt.Sprintf("192.168.0.%d", i))
		assert.LessOrEqual(t, l.Len(), 2)
	}
}

func TestLimiter_MaxClientsEvictsLeastRecentlySeen(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	l := New(0.001, 1, WithClock(clock.Now), WithMaxClients(2))

	l.Allow("10.0.0.1")
	clock.Advance(time.Second)
	l.Allow("10.0.0.2")
	clock.Advance(time.Second)
	l.Allow("10.0.0.1")

	clock.Advance(time.Second)
	assert.True(t, l.Allow("10.0.0.3"))
	assert.Equal(t, 2, l.Len())

	assert.False(t, l.Allow("10.0.0.1"), "recently seen client keeps its bucket")
	assert.Equal(t, 2, l.Len())
}
