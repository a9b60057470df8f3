package fixes

import (
	"strings"
	"sync/atomic"
)

const filePathKey = `"filePath"`

// BadFilepathFixer repairs the duplicate/malformed `"filePath"` key
// corruption: some models emit
// `{"content":"...","filePath":"/p","filePath"/p"}` — a second filePath
// occurrence with a missing colon. Since the Write tool's schema admits only
// content and filePath, everything after the first complete
// `"filePath":"value"` is garbage by construction.
//
// Grounded on
// original_source/llama-proxy/src/fixes/toolcall_bad_filepath_fix.rs,
// including its three-tier streaming completion-delta algorithm.
type BadFilepathFixer struct {
	// removeDuplicate is a deprecated, atomic configuration flag kept for
	// API compatibility with the original fixer; the fixer always performs
	// schema-based truncation regardless of its value.
	removeDuplicate atomic.Bool
}

func NewBadFilepathFixer(removeDuplicate bool) *BadFilepathFixer {
	f := &BadFilepathFixer{}
	f.removeDuplicate.Store(removeDuplicate)
	return f
}

func (f *BadFilepathFixer) Name() string { return "toolcall_bad_filepath" }

func (f *BadFilepathFixer) Description() string {
	return "Fixes duplicate/malformed filePath keys in tool call arguments via schema-based truncation"
}

func (f *BadFilepathFixer) LogLevel() FixLogLevel { return LogInfo }

func (f *BadFilepathFixer) SetRemoveDuplicate(v bool) { f.removeDuplicate.Store(v) }

func (f *BadFilepathFixer) Configure(options map[string]any) {
	if v, ok := options["remove_duplicate"].(bool); ok {
		f.SetRemoveDuplicate(v)
	}
}

// isMalformed reports whether args is malformed per the fixer's detection
// rule: two-or-more occurrences of `"filePath"` are malformed regardless of
// JSON validity; invalid JSON containing at least one `"filePath"` is also
// malformed; everything else is well-formed.
func isMalformed(args string) bool {
	count := countOccurrences(args, filePathKey)
	if count > 1 {
		return true
	}
	if isValidJSON(args) {
		return false
	}
	return strings.Contains(args, filePathKey)
}

// findStringEnd scans s starting just after a `"filePath":` match, skips
// whitespace and colons, requires an opening quote, then scans to the matching closing
// quote (honoring `\x` two-character escapes), returning the byte index just
// past that closing quote. Returns (-1, false) if no well-formed string
// value starts there.
func findStringEnd(s string) (int, bool) {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == ':') {
		i++
	}
	if i >= len(s) || s[i] != '"' {
		return -1, false
	}
	i++ // past opening quote
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, true
		default:
			i++
		}
	}
	return -1, false
}

// fixArguments repairs a malformed arguments string via schema-based
// truncation. Always returns a string that parses as JSON (falling back to
// the literal "{}" when truncation cannot produce valid JSON).
func fixArguments(args string) string {
	if countOccurrences(args, filePathKey) <= 1 {
		if reserialized, ok := reserializeJSON(args); ok {
			return reserialized
		}
	}

	idx := strings.Index(args, filePathKey+":")
	if idx == -1 {
		return "{}"
	}
	afterKey := args[idx+len(filePathKey)+1:]

	end, ok := findStringEnd(afterKey)
	if !ok {
		return "{}"
	}

	truncated := args[:idx+len(filePathKey)+1+end]
	trimmed := strings.TrimRight(truncated, " \t\n\r")
	trimmed = strings.TrimSuffix(trimmed, ",")
	result := trimmed + "}"

	if isValidJSON(result) {
		return result
	}
	return "{}"
}

// alreadySentCloser returns the text that closes already-sent JSON validly:
// `"_":null}` if the trailing content ends with a comma (so the dangling
// comma becomes syntactically valid), else plain `}`.
func alreadySentCloser(alreadySent string) string {
	if strings.HasSuffix(strings.TrimRight(alreadySent, " \t\n\r"), ",") {
		return `"_":null}`
	}
	return "}"
}

// safeCompletion is the tier-3 last-resort completion delta: it is computed
// directly from the full already-sent text with the same trailing-comma
// logic as alreadySentCloser.
func safeCompletion(alreadySent string) string {
	return alreadySentCloser(alreadySent)
}

// CompletionDeltaResult carries both the computed delta and which tier
// produced it, so the registry can log tier-3 fallbacks distinctly.
type CompletionDeltaResult struct {
	Delta string
	Tier  int
}

// calculateCompletionDelta computes the shortest string which, appended to
// what the client has already received across prior delta chunks, yields a
// valid JSON object — without ever re-sending content the client already
// holds.
//
// Tier 1 (fast path): accumulated ends with currentChunk, so the
// already-sent prefix is accumulated[:len(accumulated)-len(currentChunk)].
// Tier 2 (fallback): the last occurrence of currentChunk inside accumulated.
// Tier 3 (best-effort): safeCompletion applied to the full accumulated text.
func calculateCompletionDelta(accumulated, currentChunk string) CompletionDeltaResult {
	if strings.HasSuffix(accumulated, currentChunk) {
		alreadySentLen := len(accumulated) - len(currentChunk)
		alreadySent := accumulated[:alreadySentLen]
		return CompletionDeltaResult{Delta: alreadySentCloser(alreadySent), Tier: 1}
	}

	if idx := strings.LastIndex(accumulated, currentChunk); idx != -1 {
		alreadySent := accumulated[:idx]
		return CompletionDeltaResult{Delta: alreadySentCloser(alreadySent), Tier: 2}
	}

	return CompletionDeltaResult{Delta: safeCompletion(accumulated), Tier: 3}
}

func (f *BadFilepathFixer) Applies(response map[string]any, _ map[string]any) bool {
	for _, c := range choicesOf(response) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		msg, ok := choice["message"].(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := msg["tool_calls"].([]any)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			if args, ok := fn["arguments"].(string); ok && isMalformed(args) {
				return true
			}
		}
	}
	return false
}

// Apply repairs every malformed tool-call's arguments in a complete
// (non-streaming) response.
func (f *BadFilepathFixer) Apply(response map[string]any, _ map[string]any) (map[string]any, FixAction) {
	out := deepCopyJSON(response)
	var action FixAction = ActionNotApplicable()

	for _, c := range choicesOf(out) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		msg, ok := choice["message"].(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := msg["tool_calls"].([]any)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			args, ok := fn["arguments"].(string)
			if !ok || !isMalformed(args) {
				continue
			}
			fixed := fixArguments(args)
			fn["arguments"] = fixed
			if fixed == "{}" && !isValidJSON(args) {
				action = ActionFailed(CreateSnippet(args, 200), fixed)
			} else {
				action = ActionFixed(CreateSnippet(args, 200), CreateSnippet(fixed, 200))
			}
		}
	}

	if action.Kind == NotApplicable {
		return response, action
	}
	return out, action
}

// applyStreamSingleChunk implements the legacy single-chunk (no-accumulation) streaming
// fallback: it applies the same malformed check directly to one delta's
// arguments. Used only when acc is nil; the accumulation-aware path below is
// the one actually exercised on the fallback streaming path.
func (f *BadFilepathFixer) applyStreamSingleChunk(chunk map[string]any) (map[string]any, FixAction) {
	out := deepCopyJSON(chunk)
	var action FixAction = ActionNotApplicable()

	for _, c := range choicesOf(out) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		delta, ok := choice["delta"].(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := delta["tool_calls"].([]any)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			args, ok := fn["arguments"].(string)
			if !ok || !isMalformed(args) {
				continue
			}
			fixed := fixArguments(args)
			fn["arguments"] = fixed
			action = ActionFixed(CreateSnippet(args, 200), CreateSnippet(fixed, 200))
		}
	}

	if action.Kind == NotApplicable {
		return chunk, action
	}
	return out, action
}

// ApplyStream is the accumulation-aware streaming entry point, run per delta
// chunk on the fallback streaming path (the backend unexpectedly returned
// SSE despite stream:false).
//
// For each tool-call index carrying partial arguments:
//  1. If acc already reports fixed for this index, suppress the chunk
//     (replace arguments with "") — this is what prevents garbage arriving
//     after repair from corrupting client state.
//  2. Otherwise accumulate the chunk's arguments into the buffer.
//  3. The buffer is a completion candidate once it ends with '}' or
//     contains more than one "filePath" occurrence.
//  4. If candidate and malformed: compute the repair, compute the
//     completion delta (never the full repaired text), mark fixed.
//  5. If candidate and the buffer is already valid JSON: clear the buffer
//     (normal completion); the chunk is forwarded unmodified.
//  6. Otherwise: forward the chunk unchanged, continue accumulating.
func (f *BadFilepathFixer) ApplyStream(chunk map[string]any, _ map[string]any, acc *Accumulator) (map[string]any, FixAction) {
	if acc == nil {
		return f.applyStreamSingleChunk(chunk)
	}

	out := deepCopyJSON(chunk)
	var action FixAction = ActionNotApplicable()

	for _, c := range choicesOf(out) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		delta, ok := choice["delta"].(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := delta["tool_calls"].([]any)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			index, ok := toolCallIndex(toolCall)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			chunkArgs, _ := fn["arguments"].(string)

			if acc.IsFixed(index) {
				fn["arguments"] = ""
				continue
			}

			accumulated := acc.Accumulate(index, chunkArgs)
			looksComplete := strings.HasSuffix(strings.TrimRight(accumulated, " \t\n\r"), "}")
			hasDuplicate := countOccurrences(accumulated, filePathKey) > 1

			if !looksComplete && !hasDuplicate {
				continue // still accumulating, forward chunk unchanged
			}

			if isMalformed(accumulated) {
				fixed := fixArguments(accumulated)
				deltaResult := calculateCompletionDelta(accumulated, chunkArgs)
				fn["arguments"] = deltaResult.Delta
				acc.MarkFixed(index)
				action = ActionFixed(CreateSnippet(accumulated, 200), CreateSnippet(fixed, 200))
			} else if isValidJSON(accumulated) {
				acc.Clear(index)
			}
		}
	}

	return out, action
}

func toolCallIndex(toolCall map[string]any) (int, bool) {
	switch v := toolCall["index"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}
