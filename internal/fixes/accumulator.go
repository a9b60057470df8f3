package fixes

import "strings"

// accEntry is the per-tool-call-index state tracked across an SSE stream.
type accEntry struct {
	buffer string
	fixed  bool
}

// Accumulator is request-local, per-stream state for the bad-filepath
// fixer's streaming accumulation algorithm. It is created once per
// chat-completion request on the fallback streaming path, owned exclusively
// by that request's goroutine, and dropped when the stream ends — never
// shared, never locked.
type Accumulator struct {
	entries map[int]*accEntry
}

func NewAccumulator() *Accumulator {
	return &Accumulator{entries: make(map[int]*accEntry)}
}

func (a *Accumulator) entry(index int) *accEntry {
	e, ok := a.entries[index]
	if !ok {
		e = &accEntry{}
		a.entries[index] = e
	}
	return e
}

// Accumulate appends chunkArgs to the buffer for index and returns the
// resulting buffer.
func (a *Accumulator) Accumulate(index int, chunkArgs string) string {
	e := a.entry(index)
	e.buffer += chunkArgs
	return e.buffer
}

// Buffer returns the current accumulated buffer for index without mutating it.
func (a *Accumulator) Buffer(index int) string {
	if e, ok := a.entries[index]; ok {
		return e.buffer
	}
	return ""
}

// IsFixed reports whether a completion delta has already been emitted for index.
func (a *Accumulator) IsFixed(index int) bool {
	e, ok := a.entries[index]
	return ok && e.fixed
}

// MarkFixed sets the fixed bit for index and discards the buffer: subsequent
// chunks for this index must not be re-examined against stale content.
func (a *Accumulator) MarkFixed(index int) {
	e := a.entry(index)
	e.fixed = true
	e.buffer = ""
}

// Clear discards the buffer for index after normal (non-malformed)
// completion. The fixed bit, if any, is left untouched.
func (a *Accumulator) Clear(index int) {
	if e, ok := a.entries[index]; ok {
		e.buffer = ""
	}
}

// Reset clears both the buffer and the fixed bit for index, as happens when
// a new tool-call begins at a previously-used index.
func (a *Accumulator) Reset(index int) {
	delete(a.entries, index)
}

// CreateSnippet truncates text to its first maxLen bytes followed by "..."
// (text of at most maxLen bytes is returned unchanged), for use in
// diagnostic log fields.
func CreateSnippet(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

// countOccurrences counts non-overlapping occurrences of sub in s.
func countOccurrences(s, sub string) int {
	if sub == "" {
		return 0
	}
	return strings.Count(s, sub)
}
