package fixes

import "encoding/json"

// choicesOf returns response["choices"] as []any, or nil if absent/wrong type.
func choicesOf(response map[string]any) []any {
	c, _ := response["choices"].([]any)
	return c
}

// toolCallsIn extracts the tool_calls array from a choice's "message" (complete
// responses) or "delta" (streaming chunks) sub-object, whichever is present.
func toolCallsIn(choice map[string]any) ([]any, string) {
	if msg, ok := choice["message"].(map[string]any); ok {
		if tc, ok := msg["tool_calls"].([]any); ok {
			return tc, "message"
		}
	}
	if delta, ok := choice["delta"].(map[string]any); ok {
		if tc, ok := delta["tool_calls"].([]any); ok {
			return tc, "delta"
		}
	}
	return nil, ""
}

func firstToolCallArguments(response map[string]any) (string, map[string]any, bool) {
	for _, c := range choicesOf(response) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := toolCallsIn(choice)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			if args, ok := fn["arguments"].(string); ok {
				return args, fn, true
			}
		}
	}
	return "", nil, false
}

// isValidJSON reports whether s parses as a JSON value.
func isValidJSON(s string) bool {
	var v any
	return json.Unmarshal([]byte(s), &v) == nil
}

// reserializeJSON parses s and re-serializes it, normalizing formatting.
// Returns ("", false) if s is not valid JSON.
func reserializeJSON(s string) (string, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return "", false
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// deepCopyJSON round-trips v through JSON encoding to produce an independent
// copy, so fixers never mutate the caller's tree observably.
func deepCopyJSON(v map[string]any) map[string]any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
