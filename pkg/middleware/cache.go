package middleware

import (
	"net/http"
	"strconv"
)

// CacheControl marks successful GET and HEAD responses as publicly cacheable
// for maxAge seconds. Used on catalog reads.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := "public, max-age=" + strconv.Itoa(maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore forbids caching. Carts are per-shopper and change on every write.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}
