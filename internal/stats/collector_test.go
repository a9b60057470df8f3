package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestMetrics_Defaults(t *testing.T) {
	m := NewRequestMetrics()
	assert.NotEmpty(t, m.RequestID)
	assert.Equal(t, "unknown", m.Model)
	assert.Equal(t, "unknown", m.FinishReason)
}

func TestFromResponse_ExtractsUsageAndTimings(t *testing.T) {
	response := map[string]any{
		"model": "qwen3-coder",
		"usage": map[string]any{
			"prompt_tokens":     float64(100),
			"completion_tokens": float64(50),
			"total_tokens":      float64(150),
		},
		"timings": map[string]any{
			"prompt_ms":            float64(500),
			"predicted_ms":         float64(1176),
			"prompt_per_second":    float64(200.5),
			"predicted_per_second": float64(42.5),
			"cache_n":              float64(100),
		},
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": "hello world"},
			},
		},
	}
	request := map[string]any{
		"messages": []any{
			map[string]any{"role": "user", "content": "hi there"},
		},
	}

	m := FromResponse(response, request, true, 1200.0)

	assert.Equal(t, "qwen3-coder", m.Model)
	assert.Equal(t, uint64(100), m.PromptTokens)
	assert.Equal(t, uint64(50), m.CompletionTokens)
	assert.Equal(t, uint64(150), m.TotalTokens)
	assert.Equal(t, 500.0, m.PromptMS)
	assert.Equal(t, 1176.0, m.GenerationMS)
	assert.Equal(t, 200.5, m.PromptTPS)
	assert.Equal(t, 42.5, m.GenerationTPS)
	require.NotNil(t, m.ContextUsed)
	assert.Equal(t, uint64(100), *m.ContextUsed)
	assert.Equal(t, "stop", m.FinishReason)
	assert.Equal(t, len("hello world"), m.OutputLen)
	assert.Equal(t, 1, m.InputMessages)
	assert.Equal(t, len("hi there"), m.InputLen)
	assert.True(t, m.Streaming)
	assert.Equal(t, 1200.0, m.DurationMS)
}

func TestFromResponse_MissingFieldsDefaultToZero(t *testing.T) {
	m := FromResponse(map[string]any{}, map[string]any{}, false, 0)
	assert.Equal(t, "unknown", m.Model)
	assert.Equal(t, uint64(0), m.PromptTokens)
	assert.Nil(t, m.ContextUsed)
	assert.Equal(t, "unknown", m.FinishReason)
}

func TestFromResponse_ArrayContentSumsTextParts(t *testing.T) {
	request := map[string]any{
		"messages": []any{
			map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": "abc"},
					map[string]any{"type": "text", "text": "de"},
				},
			},
		},
	}
	m := FromResponse(map[string]any{}, request, false, 0)
	assert.Equal(t, 5, m.InputLen)
}

func TestCalculateContextPercent(t *testing.T) {
	used := uint64(100)
	total := uint64(4096)
	m := RequestMetrics{ContextUsed: &used, ContextTotal: &total}
	m.CalculateContextPercent()
	require.NotNil(t, m.ContextPercent)
	assert.InDelta(t, 2.44, *m.ContextPercent, 0.01)
}

func TestCalculateContextPercent_NoopWhenMissing(t *testing.T) {
	m := RequestMetrics{}
	m.CalculateContextPercent()
	assert.Nil(t, m.ContextPercent)
}
