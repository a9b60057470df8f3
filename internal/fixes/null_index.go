package fixes

// NullIndexFixer assigns sequential integer indices to tool-calls whose
// index field is null or missing. llama.cpp-family backends sometimes omit
// the index entirely or send it as JSON null, which breaks clients that
// expect a numeric index to key their own per-call accumulation state.
//
// Grounded on original_source/llama-proxy/src/fixes/toolcall_null_index_fix.rs.
type NullIndexFixer struct {
	enabled bool
}

func NewNullIndexFixer(enabled bool) *NullIndexFixer {
	return &NullIndexFixer{enabled: enabled}
}

func (f *NullIndexFixer) Name() string { return "toolcall_null_index_fix" }

func (f *NullIndexFixer) Description() string {
	return "Fixes null or missing index fields in tool calls by assigning sequential indices"
}

// LogLevel is debug: this fixer matches nearly every request from some
// backends and would otherwise flood logs at a higher level.
func (f *NullIndexFixer) LogLevel() FixLogLevel { return LogDebug }

func needsIndexFix(toolCall map[string]any) bool {
	idx, present := toolCall["index"]
	if !present || idx == nil {
		return true
	}
	switch idx.(type) {
	case float64, int, int64:
		return false
	default:
		return true
	}
}

func (f *NullIndexFixer) Applies(response map[string]any, _ map[string]any) bool {
	if !f.enabled {
		return false
	}
	for _, c := range choicesOf(response) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := toolCallsIn(choice)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if ok && needsIndexFix(toolCall) {
				return true
			}
		}
	}
	return false
}

func assignSequentialIndices(toolCalls []any) bool {
	fixedAny := false
	for i, tc := range toolCalls {
		toolCall, ok := tc.(map[string]any)
		if !ok {
			continue
		}
		if needsIndexFix(toolCall) {
			toolCall["index"] = float64(i)
			fixedAny = true
		}
	}
	return fixedAny
}

func (f *NullIndexFixer) Apply(response map[string]any, _ map[string]any) (map[string]any, FixAction) {
	if !f.enabled {
		return response, ActionNotApplicable()
	}

	out := deepCopyJSON(response)
	fixedAny := false

	for _, c := range choicesOf(out) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := choice["message"].(map[string]any); ok {
			if tc, ok := msg["tool_calls"].([]any); ok {
				fixedAny = assignSequentialIndices(tc) || fixedAny
			}
		}
		if delta, ok := choice["delta"].(map[string]any); ok {
			if tc, ok := delta["tool_calls"].([]any); ok {
				fixedAny = assignSequentialIndices(tc) || fixedAny
			}
		}
	}

	if !fixedAny {
		return response, ActionNotApplicable()
	}
	return out, ActionFixed(
		"tool_calls with null/missing indices",
		"tool_calls with sequential indices (0, 1, 2, ...)",
	)
}

// ApplyStream applies the same index repair to a single streaming delta
// chunk; Apply already covers delta.tool_calls, so no accumulation is needed.
func (f *NullIndexFixer) ApplyStream(chunk map[string]any, request map[string]any, _ *Accumulator) (map[string]any, FixAction) {
	return f.Apply(chunk, request)
}
