package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type contextKey int

const requestFieldsKey contextKey = iota

// RequestFields accumulates the domain fields an access-log line wants but
// the logging middleware can't know up front: which backend node served the
// request and what the response-fix pipeline did to it. The handler fills
// these in as it works; the middleware reads them back once ServeHTTP
// returns.
type RequestFields struct {
	BackendNode string
	FixOutcome  string
}

// withRequestFields attaches a zero-valued RequestFields to ctx, returning
// both the derived context and a pointer the caller keeps to read back
// whatever a downstream handler sets on it.
func withRequestFields(ctx context.Context) (context.Context, *RequestFields) {
	fields := &RequestFields{}
	return context.WithValue(ctx, requestFieldsKey, fields), fields
}

// FieldsFromContext returns the RequestFields attached by the logging
// middleware, or a throwaway zero value if none is present (e.g. in tests
// that call a handler directly).
func FieldsFromContext(ctx context.Context) *RequestFields {
	if fields, ok := ctx.Value(requestFieldsKey).(*RequestFields); ok {
		return fields
	}
	return &RequestFields{}
}

type responseWriter struct {
	http.ResponseWriter
	status int
	length int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.length += n
	return n, err
}

// NewLoggingMiddleware logs one access-log line per request: method, path,
// status, size, duration, a generated request ID (written on this line
// only; it is not passed to the handler), and (once the handler populates
// them via FieldsFromContext) which backend node served the request and
// what the fix pipeline did to its response.
func NewLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := uuid.New().String()

			ctx, fields := withRequestFields(r.Context())
			r = r.WithContext(ctx)

			wrapped := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			logger.Info("http request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration", duration,
				"length", wrapped.length,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.Header.Get("User-Agent"),
				"backend_node", fields.BackendNode,
				"fix_outcome", fields.FixOutcome,
			)
		})
	}
}
