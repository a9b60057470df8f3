package synthesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeAnthropic_TextOnly(t *testing.T) {
	response := map[string]any{
		"model": "test-model",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message": map[string]any{
					"content": "Hello there",
				},
			},
		},
	}
	frames, err := SynthesizeAnthropic(response, "msg_123")
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	assert.Contains(t, string(frames[0]), "message_start")
	assert.Contains(t, string(frames[0]), "msg_123")

	joined := ""
	for _, f := range frames {
		joined += string(f)
	}
	assert.Contains(t, joined, "content_block_start")
	assert.Contains(t, joined, "text_delta")
	assert.Contains(t, joined, "Hello there")
	assert.Contains(t, joined, "message_stop")
}

func TestSynthesizeAnthropic_ToolUse(t *testing.T) {
	response := map[string]any{
		"model": "test-model",
		"choices": []any{
			map[string]any{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"id":   "call_123",
							"type": "function",
							"function": map[string]any{
								"name":      "write",
								"arguments": `{"filePath":"/a.txt","content":"hi"}`,
							},
						},
					},
				},
			},
		},
	}
	frames, err := SynthesizeAnthropic(response, "msg_456")
	require.NoError(t, err)

	joined := ""
	for _, f := range frames {
		joined += string(f)
	}
	assert.Contains(t, joined, "toolu_123")
	assert.Contains(t, joined, "input_json_delta")
	assert.Contains(t, joined, `"name":"write"`)
	assert.Contains(t, joined, `"stop_reason":"tool_use"`)
}

func TestSynthesizeAnthropic_EndsWithMessageStop(t *testing.T) {
	response := map[string]any{
		"model": "test-model",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": "x"},
			},
		},
	}
	frames, err := SynthesizeAnthropic(response, "msg_789")
	require.NoError(t, err)
	assert.Contains(t, string(frames[len(frames)-1]), "message_stop")
}

func TestSynthesizeAnthropic_NoChoicesErrors(t *testing.T) {
	_, err := SynthesizeAnthropic(map[string]any{"choices": []any{}}, "msg_x")
	assert.Error(t, err)
}
