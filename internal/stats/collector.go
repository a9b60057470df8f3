// Package stats collects per-request metrics from backend responses and
// renders them for operator-facing logging.
//
// Grounded on original_source/llama-proxy/src/stats/{collector.rs,
// formatter.rs, request_log.rs}.
package stats

import (
	"time"

	"github.com/google/uuid"
)

// RequestMetrics captures everything worth logging about one request/response
// cycle: token counts, llama.cpp timing fields, and context usage.
type RequestMetrics struct {
	RequestID      string
	Timestamp      time.Time
	Model          string
	ClientID       string
	ConversationID string

	PromptTokens     uint64
	CompletionTokens uint64
	TotalTokens      uint64

	PromptTPS     float64
	GenerationTPS float64
	PromptMS      float64
	GenerationMS  float64

	ContextTotal   *uint64
	ContextUsed    *uint64
	ContextPercent *float64

	InputMessages int
	InputLen      int
	OutputLen     int

	Streaming    bool
	FinishReason string
	DurationMS   float64
}

// NewRequestMetrics returns a zero-valued RequestMetrics stamped with a fresh
// request ID and the current time.
func NewRequestMetrics() RequestMetrics {
	return RequestMetrics{
		RequestID:    uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Model:        "unknown",
		FinishReason: "unknown",
	}
}

// FromResponse extracts metrics from a completed backend response and the
// request that produced it.
func FromResponse(response, request map[string]any, streaming bool, durationMS float64) RequestMetrics {
	m := NewRequestMetrics()
	m.Streaming = streaming
	m.DurationMS = durationMS

	if model, ok := response["model"].(string); ok {
		m.Model = model
	}

	if usage, ok := response["usage"].(map[string]any); ok {
		m.PromptTokens = asUint64(usage["prompt_tokens"])
		m.CompletionTokens = asUint64(usage["completion_tokens"])
		m.TotalTokens = asUint64(usage["total_tokens"])
	}

	if timings, ok := response["timings"].(map[string]any); ok {
		m.PromptMS = asFloat64(timings["prompt_ms"])
		m.GenerationMS = asFloat64(timings["predicted_ms"])
		m.PromptTPS = asFloat64(timings["prompt_per_second"])
		m.GenerationTPS = asFloat64(timings["predicted_per_second"])

		if cacheN, ok := timings["cache_n"]; ok {
			used := asUint64(cacheN)
			m.ContextUsed = &used
		}
	}

	if choices, ok := response["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if reason, ok := choice["finish_reason"].(string); ok {
				m.FinishReason = reason
			}
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := msg["content"].(string); ok {
					m.OutputLen = len(content)
				}
			}
		}
	}

	if messages, ok := request["messages"].([]any); ok {
		m.InputMessages = len(messages)
		total := 0
		for _, item := range messages {
			msg, ok := item.(map[string]any)
			if !ok {
				continue
			}
			total += messageContentLen(msg["content"])
		}
		m.InputLen = total
	}

	return m
}

// CalculateContextPercent fills ContextPercent from ContextUsed/ContextTotal
// when both are known.
func (m *RequestMetrics) CalculateContextPercent() {
	if m.ContextUsed == nil || m.ContextTotal == nil || *m.ContextTotal == 0 {
		return
	}
	pct := float64(*m.ContextUsed) / float64(*m.ContextTotal) * 100
	m.ContextPercent = &pct
}

func messageContentLen(content any) int {
	switch c := content.(type) {
	case string:
		return len(c)
	case []any:
		total := 0
		for _, part := range c {
			p, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := p["text"].(string); ok {
				total += len(text)
			}
		}
		return total
	default:
		return 0
	}
}

func asUint64(v any) uint64 {
	f, ok := v.(float64)
	if !ok || f < 0 {
		return 0
	}
	return uint64(f)
}

func asFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}
