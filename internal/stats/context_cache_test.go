package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextCache_FetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/props", r.URL.Path)
		w.Write([]byte(`{"default_generation_settings":{"n_ctx":8192}}`))
	}))
	defer backend.Close()

	cache := NewContextCache()
	client := backend.Client()

	total, ok := cache.FetchContextTotal(context.Background(), client, backend.URL)
	assert.True(t, ok)
	assert.Equal(t, uint64(8192), total)

	total, ok = cache.FetchContextTotal(context.Background(), client, backend.URL)
	assert.True(t, ok)
	assert.Equal(t, uint64(8192), total)

	assert.Equal(t, int32(1), hits.Load(), "second call must be served from cache, not a second request")
}

func TestContextCache_MalformedResponseReturnsFalse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"shape"}`))
	}))
	defer backend.Close()

	cache := NewContextCache()
	_, ok := cache.FetchContextTotal(context.Background(), backend.Client(), backend.URL)
	assert.False(t, ok)
}

func TestContextCache_BackendUnreachableReturnsFalse(t *testing.T) {
	cache := NewContextCache()
	_, ok := cache.FetchContextTotal(context.Background(), http.DefaultClient, "http://127.0.0.1:1")
	assert.False(t, ok)
}
