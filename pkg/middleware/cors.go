package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/onyxia-store/onyxia/config"
)

type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// DefaultCORSOptions reads CORS_ORIGINS (comma separated, "*" by default).
// The storefront pages are served from another port in development.
func DefaultCORSOptions() CORSOptions {
	return CORSOptions{
		AllowedOrigins: splitList(config.Get("CORS_ORIGINS", "*")),
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CORS answers preflights itself and decorates every response from an
// allowed origin.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	wildcard := false
	origins := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[o] = struct{}{}
	}

	static := http.Header{}
	static.Set("Access-Control-Allow-Methods", strings.Join(opts.AllowedMethods, ", "))
	static.Set("Access-Control-Allow-Headers", strings.Join(opts.AllowedHeaders, ", "))
	if opts.MaxAge > 0 {
		static.Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			_, listed := origins[origin]

			switch {
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case listed && origin != "":
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if h.Get("Access-Control-Allow-Origin") != "" {
				for k, v := range static {
					h[k] = v
				}
			}

			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
