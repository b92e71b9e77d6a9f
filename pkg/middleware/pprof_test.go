package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func allowlistStatus(cidrs []string, remote string) int {
	h := IPAllowlist(cidrs, newTestLogger())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestIPAllowlist(t *testing.T) {
	tests := []struct {
		name   string
		cidrs  []string
		remote string
		want   int
	}{
		{"loopback allowed", []string{"127.0.0.0/8"}, "127.0.0.1:12345", http.StatusOK},
		{"outside range", []string{"127.0.0.0/8"}, "10.1.2.3:12345", http.StatusForbidden},
		{"second cidr", []string{"127.0.0.0/8", "10.0.0.0/8"}, "10.1.2.3:1", http.StatusOK},
		{"ipv6", []string{"::1/128"}, "[::1]:8080", http.StatusOK},
		{"ipv4-mapped ipv6", []string{"10.0.0.0/8"}, "[::ffff:10.0.0.5]:8080", http.StatusOK},
		{"no port", []string{"127.0.0.0/8"}, "127.0.0.1", http.StatusOK},
		{"invalid cidr skipped", []string{"not-a-cidr", "127.0.0.0/8"}, "127.0.0.1:1", http.StatusOK},
		{"empty denies all", nil, "127.0.0.1:1", http.StatusForbidden},
		{"garbage remote", []string{"0.0.0.0/0"}, "garbage", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, allowlistStatus(tt.cidrs, tt.remote))
		})
	}
}

func TestIPAllowlist_DeniedEnvelope(t *testing.T) {
	h := IPAllowlist([]string{"127.0.0.0/8"}, newTestLogger())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1"
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, "FORBIDDEN", decodeEnvelope(t, rec).Code)
}

func TestRegisterPprof_Routes(t *testing.T) {
	r := chi.NewRouter()
	RegisterPprof(r, []string{"127.0.0.0/8"}, newTestLogger())

	for _, path := range []string{"/debug/pprof/", "/debug/pprof/cmdline", "/debug/pprof/heap"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "127.0.0.1:1"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil)
	req.RemoteAddr = "203.0.113.9:1"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
