package middleware

import "net/http"

// DefaultMaxRequestBody caps request bodies when no limit is configured.
const DefaultMaxRequestBody = 1 << 20 // 1 MiB

// RequestSizeLimit creates middleware that caps the request body size.
// Requests without a body pass through untouched.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestBody
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
