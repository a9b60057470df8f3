package providers

// StreamState tracks the running state of an Anthropic SSE synthesis: which
// lifecycle events have already been emitted and which content block is
// currently open. Built and walked by
// internal/synthesis.SynthesizeAnthropic as it emits message_start and each
// content_block_start/delta/stop triple.
//
// Kept from a prior multi-provider stream-transform registry — the
// domain-dispatch Registry/Provider interface it used to belong to (pick a
// provider by response-domain, fan requests out to OpenRouter/OpenAI/
// Anthropic/Nvidia/Gemini transforms) has no analogue here: this proxy talks
// to exactly one backend shape (llama.cpp's own OpenAI-compatible API), so
// there is nothing to dispatch on. Only the per-stream bookkeeping these
// types carry survives, now driven directly by internal/synthesis instead of
// a registered Provider implementation.
type StreamState struct {
	MessageStartSent bool
	MessageID        string
	Model            string
	InitialUsage     map[string]interface{}

	ContentBlocks map[int]*ContentBlockState
	CurrentIndex  int
}

// ContentBlockState tracks one Anthropic content block's lifecycle during
// streaming synthesis.
type ContentBlockState struct {
	Type          string // "text" or "tool_use"
	StartSent     bool
	StopSent      bool
	ToolCallID    string
	ToolCallIndex int
	ToolName      string
	Arguments     string
}
