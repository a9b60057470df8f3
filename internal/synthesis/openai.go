package synthesis

import "unicode"

// DefaultChunkSize is the number of characters per synthesized content delta,
// matching the original implementation's pacing.
const DefaultChunkSize = 50

// SynthesizeOpenAI turns a complete OpenAI-shaped chat-completion response
// into the ordered sequence of SSE frames a streaming client expects:
// role chunk, whole tool_calls array (one chunk, never incremental),
// reasoning_text, reasoning_opaque, word-boundary content chunks, a final
// chunk carrying finish_reason/usage/timings, then [DONE].
func SynthesizeOpenAI(response map[string]any) ([][]byte, error) {
	id, _ := response["id"].(string)
	model, _ := response["model"].(string)
	created := response["created"]

	choices, _ := response["choices"].([]any)
	if len(choices) == 0 {
		return nil, errNoChoices
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return nil, errNoChoices
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return nil, errNoMessage
	}

	finishReason, _ := choice["finish_reason"].(string)
	if finishReason == "" {
		finishReason = "stop"
	}

	var frames [][]byte

	roleFrame, err := formatDataEvent(chunkEnvelope(id, model, created, map[string]any{
		"role": "assistant",
	}, nil))
	if err != nil {
		return nil, err
	}
	frames = append(frames, roleFrame)

	if toolCalls, ok := message["tool_calls"].([]any); ok && len(toolCalls) > 0 {
		frame, err := formatDataEvent(chunkEnvelope(id, model, created, map[string]any{
			"tool_calls": toolCalls,
		}, nil))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	if reasoningText, ok := message["reasoning_text"].(string); ok && reasoningText != "" {
		frame, err := formatDataEvent(chunkEnvelope(id, model, created, map[string]any{
			"reasoning_text": reasoningText,
		}, nil))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	if reasoningOpaque, ok := message["reasoning_opaque"].(string); ok && reasoningOpaque != "" {
		frame, err := formatDataEvent(chunkEnvelope(id, model, created, map[string]any{
			"reasoning_opaque": reasoningOpaque,
		}, nil))
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}

	if content, ok := message["content"].(string); ok {
		for _, textChunk := range chunkText(content, DefaultChunkSize) {
			frame, err := formatDataEvent(chunkEnvelope(id, model, created, map[string]any{
				"content": textChunk,
			}, nil))
			if err != nil {
				return nil, err
			}
			frames = append(frames, frame)
		}
	}

	final := map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": created,
		"model":   model,
		"choices": []any{
			map[string]any{
				"index":         0,
				"delta":         map[string]any{},
				"finish_reason": finishReason,
			},
		},
	}
	if usage, ok := response["usage"]; ok {
		final["usage"] = usage
	}
	if timings, ok := response["timings"]; ok {
		final["timings"] = timings
	}
	finalFrame, err := formatDataEvent(final)
	if err != nil {
		return nil, err
	}
	frames = append(frames, finalFrame, doneEvent())

	return frames, nil
}

func chunkEnvelope(id, model string, created any, delta map[string]any, finishReason *string) map[string]any {
	choice := map[string]any{
		"index":         0,
		"delta":         delta,
		"finish_reason": nil,
	}
	if finishReason != nil {
		choice["finish_reason"] = *finishReason
	}
	return map[string]any{
		"id":      id,
		"object":  "chat.completion.chunk",
		"created": created,
		"model":   model,
		"choices": []any{choice},
	}
}

// chunkText splits text into pieces of at most maxSize runes, preferring to
// break on the last whitespace boundary within the window so synthesized
// streaming never splits mid-word. UTF-8 safe: the search for a break point
// never lands inside a multi-byte rune.
func chunkText(text string, maxSize int) []string {
	runes := []rune(text)
	if len(runes) <= maxSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(runes) {
		end := start + maxSize
		if end > len(runes) {
			end = len(runes)
		}

		breakAt := end
		if end < len(runes) {
			for i := end - 1; i > start; i-- {
				if unicode.IsSpace(runes[i]) {
					breakAt = i + 1
					break
				}
			}
		}

		chunks = append(chunks, string(runes[start:breakAt]))
		start = breakAt
	}

	return chunks
}
