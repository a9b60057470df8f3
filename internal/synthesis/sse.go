// Package synthesis implements the Streaming Synthesis Engine: it turns a
// complete, already-fixed JSON chat-completion response into a sequence of
// Server-Sent Events that looks like the backend streamed the answer,
// without ever doing incremental delta bookkeeping against a live model.
//
// Grounded on original_source/llama-proxy/src/proxy/synthesis.rs
// (synthesize_chunks/chunk_text) for the OpenAI-shaped wire format, and on
// internal/providers/base.go's SSE helpers and StreamState for the
// Anthropic Messages event sequence.
package synthesis

import (
	"encoding/json"
	"fmt"
)

// formatDataEvent renders data as a bare SSE "data:" frame, the shape every
// OpenAI-compatible streaming client expects for chat.completion.chunk
// events (no "event:" line).
func formatDataEvent(data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("synthesis: marshal sse event: %w", err)
	}
	return []byte(fmt.Sprintf("data: %s\n\n", payload)), nil
}

// doneEvent is the OpenAI streaming terminator frame.
func doneEvent() []byte {
	return []byte("data: [DONE]\n\n")
}
