package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
)

// ContextCache fetches and caches a backend's total context size (n_ctx)
// from its /props endpoint, keyed by backend URL. The cache is permanent
// for the process lifetime since context size is static server
// configuration, matching the read-mostly access pattern SPEC_FULL.md's
// concurrency model describes.
//
// Grounded on original_source/llama-proxy/src/proxy/context.rs
// (fetch_context_total): a RWMutex-guarded map stands in for the Rust
// OnceLock<RwLock<HashMap<...>>>.
type ContextCache struct {
	mu    sync.RWMutex
	sizes map[string]uint64
}

func NewContextCache() *ContextCache {
	return &ContextCache{sizes: make(map[string]uint64)}
}

// FetchContextTotal returns the cached context size for backendURL, fetching
// it from {backendURL}/props on a cache miss. Returns ok=false if the value
// isn't cached and the fetch fails or the response is malformed.
func (c *ContextCache) FetchContextTotal(ctx context.Context, client *http.Client, backendURL string) (uint64, bool) {
	c.mu.RLock()
	if n, ok := c.sizes[backendURL]; ok {
		c.mu.RUnlock()
		return n, true
	}
	c.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, backendURL+"/props", nil)
	if err != nil {
		return 0, false
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	var props map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&props); err != nil {
		return 0, false
	}

	settings, ok := props["default_generation_settings"].(map[string]any)
	if !ok {
		return 0, false
	}
	nCtx := asUint64(settings["n_ctx"])
	if nCtx == 0 {
		return 0, false
	}

	c.mu.Lock()
	c.sizes[backendURL] = nCtx
	c.mu.Unlock()

	return nCtx, true
}
