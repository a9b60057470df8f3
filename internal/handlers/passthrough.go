package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/iphands/llamafix-proxy/internal/apperr"
	"github.com/iphands/llamafix-proxy/internal/balancer"
	"github.com/iphands/llamafix-proxy/internal/middleware"
)

// passthroughPaths are the llama.cpp monitoring/status endpoints forwarded
// verbatim: no fix application, no stats collection, no synthesis.
//
// Grounded on original_source/llama-proxy/src/proxy/handler.rs's
// proxy_passthrough match arm. "/health" is deliberately absent: the
// proxy's own health check (health.go) answers that path instead of the
// backend's.
var passthroughPaths = map[string]bool{
	"/v1/health": true,
	"/slots":     true,
	"/props":     true,
	"/v1/models": true,
	"/metrics":   true,
}

const maxPassthroughBodyBytes = 10 << 20 // 10 MiB, matching the original's to_bytes limit for pass-through

func isPassthrough(path string) bool {
	return passthroughPaths[path]
}

// servePassthrough forwards req unchanged to the selected backend node and
// relays its response, stripping the headers the Go HTTP server
// recomputes itself.
func servePassthrough(w http.ResponseWriter, r *http.Request, lb balancer.LoadBalancer, logger *slog.Logger) {
	node := lb.Select()
	middleware.FieldsFromContext(r.Context()).BackendNode = node.BaseURL()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPassthroughBodyBytes))
	if err != nil {
		apperr.WriteHTTPError(w, logger, apperr.NewBadRequest("failed to read request body: "+err.Error()))
		return
	}

	url := node.BaseURL() + r.URL.Path
	if r.URL.RawQuery != "" {
		url += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, newBodyReader(body))
	if err != nil {
		apperr.WriteHTTPError(w, logger, apperr.NewBadGateway("failed to build backend request", err))
		return
	}
	copyRequestHeaders(req, r, node)

	resp, err := node.Client.Do(req)
	if err != nil {
		apperr.WriteHTTPError(w, logger, apperr.NewBadGateway("backend request failed", err))
		return
	}
	defer resp.Body.Close()

	copyResponseHeaders(w, resp)
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}
