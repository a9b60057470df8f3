package stats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatRequestLog_Basic(t *testing.T) {
	req := map[string]any{
		"model": "qwen3",
		"messages": []any{
			map[string]any{"role": "user", "content": "Hello"},
		},
		"stream": true,
	}
	log := FormatRequestLog(req)
	assert.Contains(t, log, "model=qwen3")
	assert.Contains(t, log, "msgs=1")
	assert.Contains(t, log, "stream")
	assert.Contains(t, log, `"Hello"`)
}

func TestFormatRequestLog_WithTools(t *testing.T) {
	req := map[string]any{
		"model":    "qwen3",
		"messages": []any{map[string]any{"role": "user", "content": "Test"}},
		"stream":   false,
		"tools": []any{
			map[string]any{"type": "function", "function": map[string]any{"name": "get_weather"}},
			map[string]any{"type": "function", "function": map[string]any{"name": "read_file"}},
		},
	}
	log := FormatRequestLog(req)
	assert.Contains(t, log, "tools=2")
	assert.NotContains(t, log, "stream")
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", normalizeWhitespace("hello\nworld"))
	assert.Equal(t, "hello world", normalizeWhitespace("hello\t\tworld"))
	assert.Equal(t, "hello world", normalizeWhitespace("hello\r\nworld"))
	assert.Equal(t, "hello world", normalizeWhitespace("hello   world"))
}

func TestTruncateMessage_Short(t *testing.T) {
	msg := "This is a short message"
	assert.Equal(t, msg, truncateMessage(msg))
}

func TestTruncateMessage_Exactly100(t *testing.T) {
	msg := strings.Repeat("x", 100)
	assert.Len(t, []rune(truncateMessage(msg)), 100)
}

func TestTruncateMessage_Long(t *testing.T) {
	msg := strings.Repeat("x", 300)
	truncated := truncateMessage(msg)
	assert.True(t, strings.HasPrefix(truncated, strings.Repeat("x", 25)))
	assert.Contains(t, truncated, " ... ")
	assert.True(t, strings.HasSuffix(truncated, strings.Repeat("x", 75)))
}

func TestExtractFirstUserMessage_SkipsNonUserRoles(t *testing.T) {
	req := map[string]any{
		"messages": []any{
			map[string]any{"role": "system", "content": "You are helpful"},
			map[string]any{"role": "user", "content": "Hello"},
			map[string]any{"role": "assistant", "content": "Hi"},
		},
	}
	msg, ok := extractFirstUserMessage(req)
	assert.True(t, ok)
	assert.Equal(t, "Hello", msg)
}

func TestExtractMessageContent_ArrayJoinsTextParts(t *testing.T) {
	msg := map[string]any{
		"role": "user",
		"content": []any{
			map[string]any{"type": "text", "text": "Part 1"},
			map[string]any{"type": "text", "text": "Part 2"},
		},
	}
	content, ok := extractMessageContent(msg)
	assert.True(t, ok)
	assert.Equal(t, "Part 1 Part 2", content)
}

func TestFormatRequestLog_NoToolsFieldOmitsToolsSegment(t *testing.T) {
	req := map[string]any{
		"model":    "qwen3",
		"messages": []any{},
	}
	log := FormatRequestLog(req)
	assert.NotContains(t, log, "tools=")
}
