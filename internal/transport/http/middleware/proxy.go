package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// TrustProxy rewrites RemoteAddr from True-Client-IP, X-Real-IP or
// X-Forwarded-For when the server sits behind a proxy that sets them.
// Disabled, forwarding headers are ignored and clients cannot pick their
// own rate-limit key.
func TrustProxy(enabled bool) func(http.Handler) http.Handler {
	if !enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return chimw.RealIP
}
