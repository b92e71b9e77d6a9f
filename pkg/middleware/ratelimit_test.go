package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func frozenStore(rps float64, burst int) (*visitorStore, *time.Time) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newVisitorStore(RateLimitConfig{RPS: rps, Burst: burst, IdleTTL: time.Minute})
	s.now = func() time.Time { return now }
	return s, &now
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/carts", nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_BurstThen429(t *testing.T) {
	store, _ := frozenStore(1, 3)
	h := rateLimit(store, newTestLogger())(okHandler())

	for i := range 3 {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1234").Code, "request %d", i+1)
	}
	rr := hit(h, "10.0.0.1:1234")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	store, now := frozenStore(1, 1)
	h := rateLimit(store, newTestLogger())(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(h, "10.0.0.1:1").Code)

	*now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
}

func TestRateLimit_IndependentPerIP(t *testing.T) {
	store, _ := frozenStore(1, 1)
	h := rateLimit(store, newTestLogger())(okHandler())

	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1").Code)
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1").Code)
	assert.Equal(t, 2, store.len())
}

func TestVisitorStore_CleanupEvictsIdle(t *testing.T) {
	store, now := frozenStore(1, 1)
	store.allow("10.0.0.1")
	*now = now.Add(30 * time.Second)
	store.allow("10.0.0.2")

	*now = now.Add(45 * time.Second)
	store.cleanup()

	assert.Equal(t, 1, store.len())
}

func TestRateLimit_CleanupStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mw := RateLimit(ctx, RateLimitConfig{RPS: 5, Burst: 5}, newTestLogger())
	cancel()

	assert.Equal(t, http.StatusOK, hit(mw(okHandler()), "10.0.0.1:1").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.9:80", "203.0.113.5"},
		{"forwarded garbage then ip", map[string]string{"X-Forwarded-For": "unknown, 198.51.100.2"}, "10.0.0.9:80", "198.51.100.2"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.9:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"remote without port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
