package stats

import (
	"fmt"
	"strings"
)

const (
	messageMaxTotal  = 100
	messagePrefixLen = 25
	messageSuffixLen = 75
)

// FormatRequestLog renders a compact one-line summary of an incoming request
// for the access log: model, message count, streaming flag, tool count, and
// a truncated preview of the first user message.
func FormatRequestLog(request map[string]any) string {
	model, _ := request["model"].(string)
	if model == "" {
		model = "unknown"
	}

	msgCount := 0
	if messages, ok := request["messages"].([]any); ok {
		msgCount = len(messages)
	}

	streaming, _ := request["stream"].(bool)

	toolsCount := -1
	if tools, ok := request["tools"].([]any); ok {
		toolsCount = len(tools)
	}

	parts := []string{fmt.Sprintf("model=%s", model), fmt.Sprintf("msgs=%d", msgCount)}
	if streaming {
		parts = append(parts, "stream")
	}
	if toolsCount > 0 {
		parts = append(parts, fmt.Sprintf("tools=%d", toolsCount))
	}
	if msg, ok := extractFirstUserMessage(request); ok {
		parts = append(parts, fmt.Sprintf("%q", msg))
	}

	return "→ " + strings.Join(parts, " ")
}

// ExtractPromptText concatenates every message's text content in request,
// for use as the fallback token-estimation input when a backend response
// omits its usage block.
func ExtractPromptText(request map[string]any) (string, bool) {
	messages, ok := request["messages"].([]any)
	if !ok {
		return "", false
	}
	var parts []string
	for _, item := range messages {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if content, ok := extractMessageContent(msg); ok {
			parts = append(parts, content)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

func extractFirstUserMessage(request map[string]any) (string, bool) {
	messages, ok := request["messages"].([]any)
	if !ok {
		return "", false
	}
	for _, item := range messages {
		msg, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if role, _ := msg["role"].(string); role != "user" {
			continue
		}
		content, ok := extractMessageContent(msg)
		if !ok {
			continue
		}
		return truncateMessage(normalizeWhitespace(content)), true
	}
	return "", false
}

func extractMessageContent(msg map[string]any) (string, bool) {
	content, ok := msg["content"]
	if !ok {
		return "", false
	}
	if text, ok := content.(string); ok {
		return text, true
	}
	if parts, ok := content.([]any); ok {
		var texts []string
		for _, p := range parts {
			part, ok := p.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := part["type"].(string); t != "text" {
				continue
			}
			if text, ok := part["text"].(string); ok {
				texts = append(texts, text)
			}
		}
		if len(texts) > 0 {
			return strings.Join(texts, " "), true
		}
	}
	return "", false
}

// normalizeWhitespace collapses newlines/tabs/runs of spaces to single spaces.
func normalizeWhitespace(s string) string {
	replaced := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(replaced), " ")
}

// truncateMessage shows the full string when it's short, otherwise the first
// 25 runes, an ellipsis, and the last 75 runes.
func truncateMessage(s string) string {
	runes := []rune(s)
	if len(runes) <= messageMaxTotal {
		return s
	}
	prefix := runes[:min(messagePrefixLen, len(runes))]
	suffixStart := len(runes) - messageSuffixLen
	if suffixStart < 0 {
		suffixStart = 0
	}
	suffix := runes[suffixStart:]
	return string(prefix) + " ... " + string(suffix)
}
