package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/utafrali/commercecore/pkg/httputil"
)

// RateLimitConfig configures per-client token buckets.
type RateLimitConfig struct {
	RPS   float64
	Burst int
	// IdleTTL evicts buckets for clients not seen for this long.
	IdleTTL time.Duration
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore keeps one limiter per client key.
type visitorStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	ttl      time.Duration
	now      func() time.Time
}

func newVisitorStore(cfg RateLimitConfig) *visitorStore {
	return &visitorStore{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(cfg.RPS),
		burst:    cfg.Burst,
		ttl:      cfg.IdleTTL,
		now:      time.Now,
	}
}

func (s *visitorStore) allow(key string) bool {
	s.mu.Lock()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.visitors[key] = v
	}
	now := s.now()
	v.lastSeen = now
	s.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

func (s *visitorStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.ttl {
			delete(s.visitors, key)
		}
	}
}

func (s *visitorStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

func (s *visitorStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// RateLimit enforces a token bucket per client IP and answers 429
// RATE_LIMITED when a bucket is empty. Idle buckets are evicted until ctx is
// done.
func RateLimit(ctx context.Context, cfg RateLimitConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	store := newVisitorStore(cfg)
	go store.cleanupLoop(ctx)
	return rateLimit(store, logger)
}

func rateLimit(store *visitorStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !store.allow(ip) {
				logger.WarnContext(r.Context(), "rate limit exceeded",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("Retry-After", "1")
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "RATE_LIMITED", Message: "too many requests"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the first valid address in X-Forwarded-For, then
// X-Real-IP, then RemoteAddr without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
