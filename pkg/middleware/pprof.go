package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/commercecore/pkg/httputil"
)

// RegisterPprof mounts /debug/pprof/* on r behind an IP allowlist.
func RegisterPprof(r chi.Router, allowedCIDRs []string, logger *slog.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(IPAllowlist(allowedCIDRs, logger))
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	})
}

// IPAllowlist admits only peers whose RemoteAddr falls in one of cidrs.
// Forwarding headers are ignored. Invalid CIDRs are logged and skipped; an
// empty list denies everyone.
func IPAllowlist(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			logger.Warn("invalid allowlist CIDR, skipping",
				slog.String("cidr", cidr),
				slog.String("error", err.Error()),
			)
			continue
		}
		prefixes = append(prefixes, p.Masked())
	}

	allowed := func(host string) bool {
		addr, err := netip.ParseAddr(host)
		if err != nil {
			return false
		}
		addr = addr.Unmap()
		for _, p := range prefixes {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if !allowed(host) {
				logger.Warn("access denied by IP allowlist",
					slog.String("ip", host),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "FORBIDDEN", Message: "access restricted by IP allowlist"},
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
