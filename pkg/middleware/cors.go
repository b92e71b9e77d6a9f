package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists exact origins. "*" allows any origin.
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	ExposedHeaders []string
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge           int
	AllowCredentials bool
	// Development allows any origin regardless of AllowedOrigins.
	Development bool
}

var (
	defaultCORSMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}
	defaultCORSHeaders = []string{
		"Accept", "Content-Type", HeaderCorrelationID, HeaderUserID, HeaderSessionID,
	}
)

// DefaultCORSConfig returns a permissive development configuration.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: defaultCORSMethods,
		AllowedHeaders: defaultCORSHeaders,
		ExposedHeaders: []string{HeaderCorrelationID},
		MaxAge:         3600,
		Development:    true,
	}
}

// CORS answers preflight requests with 204 and decorates other responses
// with the configured Access-Control headers. Wildcard origins are never
// combined with credentials; the request origin is echoed instead.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = defaultCORSMethods
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = defaultCORSHeaders
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 3600
	}
	anyOrigin := cfg.Development || slices.Contains(cfg.AllowedOrigins, "*")

	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case anyOrigin && cfg.AllowCredentials && origin != "":
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			case anyOrigin:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(cfg.AllowedOrigins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}

			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if exposed != "" {
				h.Set("Access-Control-Expose-Headers", exposed)
			}
			h.Set("Access-Control-Max-Age", maxAge)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
