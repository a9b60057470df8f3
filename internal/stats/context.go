package stats

// SlotMetrics is one llama.cpp inference slot's reported state.
type SlotMetrics struct {
	SlotID       uint32
	NTokens      uint64
	NCtx         uint64
	IsProcessing bool
}

// ContextInfo aggregates the backend's /slots response across all slots.
type ContextInfo struct {
	TotalContext uint64
	UsedContext  uint64
	Slots        []SlotMetrics
}

// ContextInfoFromSlotsResponse parses a /slots backend response into a
// ContextInfo. Elements that are not JSON objects are skipped; ok is always
// true.
func ContextInfoFromSlotsResponse(response []any) (ContextInfo, bool) {
	info := ContextInfo{}
	for _, item := range response {
		slot, ok := item.(map[string]any)
		if !ok {
			continue
		}
		nCtx := asUint64(slot["n_ctx"])
		nTokens := asUint64(slot["n_tokens"])
		info.TotalContext += nCtx
		info.UsedContext += nTokens
		info.Slots = append(info.Slots, SlotMetrics{
			SlotID:       uint32(asUint64(slot["id"])),
			NTokens:      nTokens,
			NCtx:         nCtx,
			IsProcessing: asBool(slot["is_processing"]),
		})
	}
	return info, true
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
