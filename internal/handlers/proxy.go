// Package handlers implements the proxy's HTTP surface: the chat-completion
// request handler (fix pipeline + streaming synthesis), the pass-through
// forwarder for llama.cpp's own monitoring endpoints, and the proxy's own
// health check.
//
// Grounded on original_source/llama-proxy/src/proxy/{handler.rs,streaming.rs}
// for the actual algorithm: single-upstream-shape forwarding with forced
// stream:false, fix-then-respond, and synthesize-on-request rather than
// multi-provider routing.
package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iphands/llamafix-proxy/internal/apperr"
	"github.com/iphands/llamafix-proxy/internal/balancer"
	"github.com/iphands/llamafix-proxy/internal/config"
	"github.com/iphands/llamafix-proxy/internal/exporters"
	"github.com/iphands/llamafix-proxy/internal/fixes"
	"github.com/iphands/llamafix-proxy/internal/middleware"
	"github.com/iphands/llamafix-proxy/internal/providers"
	"github.com/iphands/llamafix-proxy/internal/stats"
	"github.com/iphands/llamafix-proxy/internal/synthesis"
	"github.com/iphands/llamafix-proxy/internal/transport"
)

const maxRequestBodyBytes = 100 << 20 // 100 MiB, per the bounded-read requirement

// ProxyHandler implements the Proxy Request Handler: pass-through routing,
// the response-fix pipeline, and on-demand streaming synthesis.
type ProxyHandler struct {
	config       *config.Manager
	balancer     balancer.LoadBalancer
	fixRegistry  *fixes.Registry
	exporters    *exporters.Manager
	contextCache *stats.ContextCache
	logger       *slog.Logger
}

func NewProxyHandler(cfg *config.Manager, lb balancer.LoadBalancer, fixRegistry *fixes.Registry, exporterManager *exporters.Manager, contextCache *stats.ContextCache, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		config:       cfg,
		balancer:     lb,
		fixRegistry:  fixRegistry,
		exporters:    exporterManager,
		contextCache: contextCache,
		logger:       logger,
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if isPassthrough(r.URL.Path) {
		servePassthrough(w, r, h.balancer, h.logger)
		return
	}

	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadRequest("failed to read request body: "+err.Error()))
		return
	}

	var requestJSON map[string]any
	_ = json.Unmarshal(body, &requestJSON) // best-effort: forwarding continues even if this fails

	clientWantsStreaming := false
	if v, ok := requestJSON["stream"].(bool); ok {
		clientWantsStreaming = v
	}

	if requestJSON != nil {
		h.logger.Info(stats.FormatRequestLog(requestJSON))
	}

	node := h.balancer.Select()
	middleware.FieldsFromContext(r.Context()).BackendNode = node.BaseURL()
	outboundBody := h.rewriteOutboundBody(body, requestJSON, node)

	backendURL := node.BaseURL() + r.URL.Path
	if r.URL.RawQuery != "" {
		backendURL += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, backendURL, newBodyReader(outboundBody))
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to build backend request", err))
		return
	}
	copyRequestHeaders(req, r, node)
	req.Header.Set("Content-Type", "application/json")

	resp, err := node.Client.Do(req)
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("backend request failed", err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		h.forwardBackendError(w, resp)
		return
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		h.handleFallbackStreaming(w, resp, requestJSON)
		return
	}

	h.handleResponse(w, r, resp, requestJSON, clientWantsStreaming, node, start)
}

// rewriteOutboundBody forces stream:false and applies the node's model
// override. If the body couldn't be parsed as JSON, it is forwarded
// unchanged — the backend can reject it on its own terms.
func (h *ProxyHandler) rewriteOutboundBody(raw []byte, requestJSON map[string]any, node *balancer.Node) []byte {
	if requestJSON == nil {
		return raw
	}
	requestJSON["stream"] = false
	if node.Model != "" {
		requestJSON["model"] = node.Model
	}
	rewritten, err := json.Marshal(requestJSON)
	if err != nil {
		return raw
	}
	return rewritten
}

func (h *ProxyHandler) forwardBackendError(w http.ResponseWriter, resp *http.Response) {
	reader, err := transport.DecompressReader(resp)
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to decompress backend error response", err))
		return
	}
	body, err := io.ReadAll(io.LimitReader(reader, maxRequestBodyBytes))
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to read backend error response", err))
		return
	}
	apperr.WriteHTTPError(w, h.logger, apperr.NewBackendError(resp.StatusCode, body))
}

// handleResponse is the normal (non-SSE) backend reply path: parse, fix,
// collect stats, then either return JSON or synthesize an SSE stream
// depending on what the client originally asked for.
func (h *ProxyHandler) handleResponse(w http.ResponseWriter, r *http.Request, resp *http.Response, requestJSON map[string]any, clientWantsStreaming bool, node *balancer.Node, start time.Time) {
	reader, err := transport.DecompressReader(resp)
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to decompress backend response", err))
		return
	}
	rawBody, err := io.ReadAll(io.LimitReader(reader, maxRequestBodyBytes))
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to read backend response", err))
		return
	}

	var responseJSON map[string]any
	if err := json.Unmarshal(rawBody, &responseJSON); err != nil {
		// Not JSON at all: forward it as-is, preserving the backend's content type.
		w.Header().Set("Content-Type", resp.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		w.Write(rawBody)
		return
	}

	fixed := h.fixRegistry.ApplyFixesWithContext(responseJSON, requestJSON)
	if reflect.DeepEqual(responseJSON, fixed) {
		middleware.FieldsFromContext(r.Context()).FixOutcome = "unmodified"
	} else {
		middleware.FieldsFromContext(r.Context()).FixOutcome = "modified"
	}

	h.collectStats(r.Context(), fixed, requestJSON, node, false, time.Since(start))

	isAnthropicPath := r.URL.Path == "/v1/messages"

	if !clientWantsStreaming {
		h.writeJSONResponse(w, fixed, isAnthropicPath)
		return
	}

	frames, err := h.synthesizeFrames(fixed, isAnthropicPath)
	if err != nil {
		h.logger.Warn("streaming synthesis failed, falling back to JSON", "error", apperr.NewSynthesisFailed(err).Error())
		h.writeJSONResponse(w, fixed, isAnthropicPath)
		return
	}

	writeSSE(w, frames)
}

// writeJSONResponse writes fixed as the non-streaming response body, first
// converting it to Anthropic Messages shape for /v1/messages requests — an
// improvement over forwarding OpenAI shape unconditionally.
func (h *ProxyHandler) writeJSONResponse(w http.ResponseWriter, fixed map[string]any, isAnthropicPath bool) {
	body, err := json.Marshal(fixed)
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to marshal fixed response", err))
		return
	}

	if isAnthropicPath {
		if converted, err := providers.ConvertToAnthropic(body, anthropicErrorType, anthropicToolCallID); err == nil {
			body = converted
		} else {
			h.logger.Warn("anthropic response conversion failed, returning openai shape", "error", apperr.NewFixFailed(err).Error())
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *ProxyHandler) synthesizeFrames(fixed map[string]any, isAnthropicPath bool) ([][]byte, error) {
	if isAnthropicPath {
		return synthesis.SynthesizeAnthropic(fixed, "msg_"+uuid.New().String())
	}
	return synthesis.SynthesizeOpenAI(fixed)
}

// handleFallbackStreaming handles the unexpected case where the backend
// streamed despite the forced stream:false — each SSE data line is parsed
// and run through the accumulator-driven streaming fix contract before
// being relayed to the client unchanged otherwise.
func (h *ProxyHandler) handleFallbackStreaming(w http.ResponseWriter, resp *http.Response, requestJSON map[string]any) {
	reader, err := transport.DecompressReader(resp)
	if err != nil {
		apperr.WriteHTTPError(w, h.logger, apperr.NewBadGateway("failed to decompress backend stream", err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	acc := fixes.NewAccumulator()
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestBodyBytes)

	for scanner.Scan() {
		line := scanner.Text()

		if !strings.HasPrefix(line, "data:") {
			w.Write([]byte(line + "\n"))
			flush(flusher)
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			w.Write([]byte("data: [DONE]\n\n"))
			flush(flusher)
			continue
		}

		var chunk map[string]any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			w.Write([]byte(line + "\n"))
			flush(flusher)
			continue
		}

		fixedChunk := h.fixRegistry.ApplyFixesStreamWithAccumulation(chunk, requestJSON, acc)
		out, err := json.Marshal(fixedChunk)
		if err != nil {
			w.Write([]byte(line + "\n"))
			flush(flusher)
			continue
		}
		w.Write([]byte("data: " + string(out) + "\n\n"))
		flush(flusher)
	}
}

func (h *ProxyHandler) collectStats(ctx context.Context, response, request map[string]any, node *balancer.Node, streaming bool, duration time.Duration) {
	cfg := h.config.Get()
	if !cfg.Stats.Enabled {
		return
	}

	metrics := stats.FromResponse(response, request, streaming, float64(duration.Milliseconds()))

	if h.contextCache != nil {
		if total, ok := h.contextCache.FetchContextTotal(ctx, node.Client, node.BaseURL()); ok {
			metrics.ContextTotal = &total
			metrics.CalculateContextPercent()
		}
	}

	if metrics.PromptTokens == 0 {
		if text, ok := stats.ExtractPromptText(request); ok {
			metrics.PromptTokens = uint64(stats.EstimateTokensCl100k(text, h.logger))
		}
	}

	h.logger.Info(stats.Format(metrics, cfg.Stats.Format))

	if h.exporters != nil {
		go h.exporters.ExportAll(context.Background(), metrics)
	}
}

func writeSSE(w http.ResponseWriter, frames [][]byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, frame := range frames {
		w.Write(frame)
		flush(flusher)
	}
}

func flush(f http.Flusher) {
	if f != nil {
		f.Flush()
	}
}

// anthropicErrorType maps a fix-pipeline error string to an Anthropic
// error "type" field. The proxy's fix pipeline never produces its own
// Anthropic error taxonomy, so this always returns the generic value.
func anthropicErrorType(string) string {
	return "api_error"
}

// anthropicToolCallID renders an OpenAI-style tool-call ID ("call_xxx") as
// an Anthropic-style one ("toolu_xxx"), matching the synthesis engine's own
// id rewriting in internal/synthesis/anthropic.go.
func anthropicToolCallID(id string) string {
	return strings.Replace(id, "call_", "toolu_", 1)
}
