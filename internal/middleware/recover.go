package middleware

import (
	"log/slog"
	"net/http"
)

// NewRecoverMiddleware guards every request against a panicking handler:
// a streaming synthesis bug or a malformed response that escapes the fix
// pipeline's own error handling must not take the whole server down.
//
// Grounded on the recover-and-log pattern used throughout the example pack
// for goroutine-boundary panic safety (e.g. haasonsaas-nexus's broadcast
// worker recovery), adapted here to an HTTP middleware boundary instead of
// a worker-pool boundary.
func NewRecoverMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic in request handler",
						"panic", rec, "method", r.Method, "path", r.URL.Path)
					http.Error(w, `{"error":{"message":"internal server error","type":"internal_error"}}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
