package synthesis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_ShortTextIsOneChunk(t *testing.T) {
	chunks := chunkText("Hello world", 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Hello world", chunks[0])
}

func TestChunkText_LongTextReconstructs(t *testing.T) {
	text := strings.Repeat("a", 150)
	chunks := chunkText(text, 50)
	assert.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkText_SplitsOnWhitespace(t *testing.T) {
	text := "Hello world this is a test of text chunking functionality"
	chunks := chunkText(text, 20)
	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue
		}
		assert.True(t, strings.HasSuffix(c, " "), "non-final chunk %q should end on a word boundary", c)
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestChunkText_Empty(t *testing.T) {
	chunks := chunkText("", 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, "", chunks[0])
}

func TestChunkText_ExactSize(t *testing.T) {
	text := strings.Repeat("a", 50)
	chunks := chunkText(text, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, 50, len([]rune(chunks[0])))
}

func TestChunkText_MultibyteRunesNotSplitMidRune(t *testing.T) {
	text := strings.Repeat("héllo wörld ", 10)
	chunks := chunkText(text, 15)
	assert.Equal(t, text, strings.Join(chunks, ""))
	for _, c := range chunks {
		assert.True(t, len([]rune(c)) > 0 || c == "")
	}
}

func toolCallsResponse() map[string]any {
	return map[string]any{
		"id":      "test-id",
		"model":   "test-model",
		"created": 1234567890,
		"choices": []any{
			map[string]any{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"id":   "call-123",
							"type": "function",
							"function": map[string]any{
								"name":      "test_func",
								"arguments": `{"arg":"value"}`,
							},
						},
					},
				},
			},
		},
	}
}

func TestSynthesizeOpenAI_ToolCalls(t *testing.T) {
	frames, err := SynthesizeOpenAI(toolCallsResponse())
	require.NoError(t, err)
	// role, tool_calls, final, [DONE]
	require.Len(t, frames, 4)
	assert.Contains(t, string(frames[0]), `"role":"assistant"`)
	assert.Contains(t, string(frames[1]), `"tool_calls"`)
	assert.Contains(t, string(frames[2]), `"finish_reason":"tool_calls"`)
	assert.Equal(t, "data: [DONE]\n\n", string(frames[3]))
}

func TestSynthesizeOpenAI_TextContent(t *testing.T) {
	response := map[string]any{
		"id":      "test-id",
		"model":   "test-model",
		"created": 1234567890,
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": "Hello world",
				},
			},
		},
	}
	frames, err := SynthesizeOpenAI(response)
	require.NoError(t, err)
	// role, content, final, [DONE]
	require.Len(t, frames, 4)
	assert.Contains(t, string(frames[1]), "Hello world")
}

func TestSynthesizeOpenAI_ReasoningFields(t *testing.T) {
	response := map[string]any{
		"id":      "test-id",
		"model":   "test-model",
		"created": 1234567890,
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content":          "Answer",
					"reasoning_text":   "Thinking steps",
					"reasoning_opaque": "state_blob",
				},
			},
		},
	}
	frames, err := SynthesizeOpenAI(response)
	require.NoError(t, err)
	// role, reasoning_text, reasoning_opaque, content, final, [DONE]
	require.Len(t, frames, 6)
}

func TestSynthesizeOpenAI_UsageAndTimings(t *testing.T) {
	response := map[string]any{
		"id":      "test-id",
		"model":   "test-model",
		"created": 1234567890,
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
		"timings": map[string]any{
			"predicted_n": 20,
		},
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": "Test",
				},
			},
		},
	}
	frames, err := SynthesizeOpenAI(response)
	require.NoError(t, err)
	final := string(frames[len(frames)-2])
	assert.Contains(t, final, `"usage"`)
	assert.Contains(t, final, `"timings"`)
}

func TestSynthesizeOpenAI_EndsWithDone(t *testing.T) {
	response := map[string]any{
		"id":      "test-id",
		"model":   "test-model",
		"created": 1234567890,
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": "Test"},
			},
		},
	}
	frames, err := SynthesizeOpenAI(response)
	require.NoError(t, err)
	assert.Equal(t, "data: [DONE]\n\n", string(frames[len(frames)-1]))
}

func TestSynthesizeOpenAI_NoChoicesErrors(t *testing.T) {
	_, err := SynthesizeOpenAI(map[string]any{"id": "x", "choices": []any{}})
	assert.Error(t, err)
}
