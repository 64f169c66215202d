package middleware

import (
	"net/http"
	"strings"
)

// originSet holds the configured origin whitelist. A "*" entry allows any origin.
type originSet struct {
	any     bool
	origins map[string]struct{}
}

func newOriginSet(allowed []string) originSet {
	set := originSet{origins: make(map[string]struct{})}
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			set.any = true
		default:
			set.origins[o] = struct{}{}
		}
	}
	return set
}

// isLocalhostOrigin returns true if the origin is http(s)://localhost or localhost:<port>.
func isLocalhostOrigin(origin string) bool {
	for _, prefix := range []string{"http://localhost", "https://localhost"} {
		rest, ok := strings.CutPrefix(origin, prefix)
		if ok && (rest == "" || strings.HasPrefix(rest, ":")) {
			return true
		}
	}
	return false
}

// allows checks whether a request origin should receive CORS headers.
func (s originSet) allows(origin string) bool {
	if origin == "" {
		return false
	}
	// Always allow localhost for development.
	if s.any || isLocalhostOrigin(origin) {
		return true
	}
	_, ok := s.origins[origin]
	return ok
}

// CORS returns middleware that handles CORS headers with an origin whitelist.
// Localhost origins are always permitted for development convenience.
func CORS(allowed []string) func(http.Handler) http.Handler {
	set := newOriginSet(allowed)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if set.allows(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets headers that keep browsers from sniffing or framing responses.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			next.ServeHTTP(w, r)
		})
	}
}
