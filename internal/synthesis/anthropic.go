package synthesis

import (
	"encoding/json"
	"strings"

	"github.com/iphands/llamafix-proxy/internal/providers"
)

// SynthesizeAnthropic turns a complete OpenAI-shaped chat-completion response
// into the Anthropic Messages SSE event sequence:
// message_start, one content_block_start/delta/stop triple per content
// block (text block first, then one tool_use block per tool call),
// message_delta (stop_reason + usage), message_stop.
//
// Grounded on internal/providers/base.go's SSE helpers (FormatSSEEvent,
// CreateMessageStartEvent, ConvertStopReason) and ConvertToAnthropic's
// non-streaming content-block conversion, adapted here to emit a
// synthesized event sequence instead of a single JSON body.
func SynthesizeAnthropic(response map[string]any, messageID string) ([][]byte, error) {
	model, _ := response["model"].(string)

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

	inputUsage := map[string]any{"input_tokens": 0, "output_tokens": 1}
	if usage, ok := response["usage"].(map[string]any); ok {
		inputUsage = providers.MapTokenUsage(usage, providers.OpenAITokenMapping)
	}

	state := &providers.StreamState{
		MessageID:     messageID,
		Model:         model,
		InitialUsage:  inputUsage,
		ContentBlocks: make(map[int]*providers.ContentBlockState),
	}

	var frames [][]byte
	frames = append(frames, providers.FormatSSEEvent("message_start",
		providers.CreateMessageStartEvent(state.MessageID, state.Model, state.InitialUsage)))
	state.MessageStartSent = true

	if content, ok := message["content"].(string); ok && content != "" {
		block := &providers.ContentBlockState{Type: "text"}
		state.ContentBlocks[state.CurrentIndex] = block

		frames = append(frames, textBlockFrames(state.CurrentIndex, content)...)
		block.StartSent = true
		block.StopSent = true
		state.CurrentIndex++
	}

	if toolCalls, ok := message["tool_calls"].([]any); ok {
		for _, tc := range toolCalls {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			name, _ := fn["name"].(string)
			id, _ := toolCall["id"].(string)
			claudeID := strings.Replace(id, "call_", "toolu_", 1)

			args, _ := fn["arguments"].(string)
			var input any
			if args != "" {
				_ = json.Unmarshal([]byte(args), &input)
			}

			block := &providers.ContentBlockState{
				Type:          "tool_use",
				ToolCallID:    claudeID,
				ToolCallIndex: state.CurrentIndex,
				ToolName:      name,
				Arguments:     args,
			}
			state.ContentBlocks[state.CurrentIndex] = block

			frames = append(frames, toolUseBlockFrames(state.CurrentIndex, claudeID, name, input)...)
			block.StartSent = true
			block.StopSent = true
			state.CurrentIndex++
		}
	}

	finishReason, _ := choice["finish_reason"].(string)
	stopReason := providers.ConvertStopReason(finishReason)

	messageDelta := map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   stopReason,
			"stop_sequence": nil,
		},
	}
	if usage, ok := response["usage"].(map[string]any); ok {
		messageDelta["usage"] = providers.MapTokenUsage(usage, providers.OpenAITokenMapping)
	}
	frames = append(frames, providers.FormatSSEEvent("message_delta", messageDelta))
	frames = append(frames, providers.FormatSSEEvent("message_stop", map[string]any{"type": "message_stop"}))

	return frames, nil
}

func textBlockFrames(index int, text string) [][]byte {
	start := providers.FormatSSEEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": index,
		"content_block": map[string]any{
			"type": "text",
			"text": "",
		},
	})

	var deltas [][]byte
	for _, piece := range chunkText(text, DefaultChunkSize) {
		deltas = append(deltas, providers.FormatSSEEvent("content_block_delta", map[string]any{
			"type":  "content_block_delta",
			"index": index,
			"delta": map[string]any{
				"type": "text_delta",
				"text": piece,
			},
		}))
	}

	stop := providers.FormatSSEEvent("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": index,
	})

	frames := append([][]byte{start}, deltas...)
	return append(frames, stop)
}

func toolUseBlockFrames(index int, id, name string, input any) [][]byte {
	start := providers.FormatSSEEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": index,
		"content_block": map[string]any{
			"type":  "tool_use",
			"id":    id,
			"name":  name,
			"input": map[string]any{},
		},
	})

	partialJSON, err := json.Marshal(input)
	if err != nil {
		partialJSON = []byte("{}")
	}

	delta := providers.FormatSSEEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": index,
		"delta": map[string]any{
			"type":         "input_json_delta",
			"partial_json": string(partialJSON),
		},
	})

	stop := providers.FormatSSEEvent("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": index,
	})

	return [][]byte{start, delta, stop}
}
