// Package middleware provides the HTTP middleware chain wrapped around
// every route: panic recovery and request logging.
//
// A StatsigBlocker/MetricsBlocker style middleware (intercepting a CLI
// client's own telemetry calls) and an AuthMiddleware (a proxy-level client
// API key) have no analogue here: this proxy authenticates outbound to the
// backend (internal/balancer.Node carries the per-node API key, injected in
// internal/handlers), not inbound from the client, and nothing in the
// original implementation gates the proxy's own endpoints behind a
// client-supplied key.
package middleware

import (
	"log/slog"
	"net/http"
)

// Middleware wraps a handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Chain is an ordered, composable sequence of middleware.
type Chain struct {
	middlewares []Middleware
}

func New(middlewares ...Middleware) Chain {
	return Chain{middlewares: middlewares}
}

func (c Chain) Then(middlewares ...Middleware) Chain {
	return Chain{middlewares: append(c.middlewares, middlewares...)}
}

// Handler wraps handler with every middleware in the chain, outermost
// first.
func (c Chain) Handler(handler http.Handler) http.Handler {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i](handler)
	}
	return handler
}

// MiddlewareSet bundles the middleware every route needs, built once at
// server startup.
type MiddlewareSet struct {
	Recover Middleware
	Logging Middleware
}

func NewMiddlewareSet(logger *slog.Logger) MiddlewareSet {
	return MiddlewareSet{
		Recover: NewRecoverMiddleware(logger),
		Logging: NewLoggingMiddleware(logger),
	}
}

// DefaultChain is used for the proxy's chat-completion and pass-through
// routes.
func (ms MiddlewareSet) DefaultChain() Chain {
	return New(ms.Recover, ms.Logging)
}

// HealthChain is used for the proxy's own /health endpoint: same safety
// net, same access log.
func (ms MiddlewareSet) HealthChain() Chain {
	return New(ms.Recover, ms.Logging)
}
