package stats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iphands/llamafix-proxy/internal/config"
)

// Format renders metrics according to the configured output format.
func Format(m RequestMetrics, format config.StatsFormat) string {
	switch format {
	case config.StatsFormatJSON:
		return formatJSON(m)
	case config.StatsFormatCompact:
		return formatCompact(m)
	default:
		return formatPretty(m)
	}
}

func formatPretty(m RequestMetrics) string {
	contextStr := "N/A"
	switch {
	case m.ContextUsed != nil && m.ContextTotal != nil && m.ContextPercent != nil:
		contextStr = fmt.Sprintf("%d/%d (%.1f%%)", *m.ContextUsed, *m.ContextTotal, *m.ContextPercent)
	case m.ContextUsed != nil && m.ContextTotal != nil:
		contextStr = fmt.Sprintf("%d/%d", *m.ContextUsed, *m.ContextTotal)
	}

	var extra strings.Builder
	if m.ClientID != "" {
		extra.WriteString(fmt.Sprintf("│ Client: %-58s│\n", truncate(m.ClientID, 48)))
	}
	if m.ConversationID != "" {
		extra.WriteString(fmt.Sprintf("│ Conv: %-60s│\n", truncate(m.ConversationID, 50)))
	}

	var b strings.Builder
	b.WriteString("┌──────────────────────────────────────────────────────────────────┐\n")
	b.WriteString("│ LLM Request Metrics                                               │\n")
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&b, "│ Model: %-56s│\n", truncate(m.Model, 56))
	fmt.Fprintf(&b, "│ Time:  %-56s│\n", m.Timestamp.Format("2006-01-02 15:04:05 UTC"))
	b.WriteString(extra.String())
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	b.WriteString("│ Performance                                                       │\n")
	fmt.Fprintf(&b, "│   Prompt Processing: %8.2f tokens/sec (%7.1fms)                │\n", m.PromptTPS, m.PromptMS)
	fmt.Fprintf(&b, "│   Generation:        %8.2f tokens/sec (%7.1fms)                │\n", m.GenerationTPS, m.GenerationMS)
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	b.WriteString("│ Tokens                                                            │\n")
	fmt.Fprintf(&b, "│   Input: %6d │ Output: %6d │ Total: %6d                   │\n", m.PromptTokens, m.CompletionTokens, m.TotalTokens)
	b.WriteString("├──────────────────────────────────────────────────────────────────┤\n")
	fmt.Fprintf(&b, "│ Context: %-54s│\n", contextStr)
	fmt.Fprintf(&b, "│ Finish: %-56s│\n", m.FinishReason)
	fmt.Fprintf(&b, "│ Duration: %-54.1fms│\n", m.DurationMS)
	b.WriteString("└──────────────────────────────────────────────────────────────────┘\n")
	return b.String()
}

func formatJSON(m RequestMetrics) string {
	out, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(out)
}

func formatCompact(m RequestMetrics) string {
	contextStr := "ctx:N/A"
	if m.ContextUsed != nil && m.ContextTotal != nil {
		contextStr = fmt.Sprintf("ctx:%d/%d", *m.ContextUsed, *m.ContextTotal)
	}
	mode := "sync"
	if m.Streaming {
		mode = "stream"
	}
	return fmt.Sprintf("[%s] model=%s tokens=%d/%d tps=%.1f/%.1fms=%s %s finish=%s dur=%.1fms",
		m.Timestamp.Format("15:04:05"), m.Model, m.PromptTokens, m.CompletionTokens,
		m.GenerationTPS, m.GenerationMS, contextStr, mode, m.FinishReason, m.DurationMS)
}

// truncate shortens s to at most maxLen bytes, appending an ellipsis when cut.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	if cut < 0 {
		cut = 0
	}
	return s[:cut] + "..."
}
