package fixes

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultRegistry_RegistersInOrder(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	fixers := r.ListFixers()
	require.Len(t, fixers, 3)
	assert.Equal(t, "toolcall_null_index_fix", fixers[0].Name())
	assert.Equal(t, "toolcall_malformed_arguments", fixers[1].Name())
	assert.Equal(t, "toolcall_bad_filepath", fixers[2].Name())
}

func TestRegistry_SetEnabledAndIsEnabled(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	assert.True(t, r.IsEnabled("toolcall_bad_filepath"))
	r.SetEnabled("toolcall_bad_filepath", false)
	assert.False(t, r.IsEnabled("toolcall_bad_filepath"))
}

func TestRegistry_SetEnabledUnknownNameIsNoop(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	r.SetEnabled("does_not_exist", false)
	assert.False(t, r.IsEnabled("does_not_exist"))
}

func TestRegistry_GetFixer(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	assert.NotNil(t, r.GetFixer("toolcall_null_index_fix"))
	assert.Nil(t, r.GetFixer("missing"))
}

func TestRegistry_Configure(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	r.Configure(map[string]FixModuleConfig{
		"toolcall_bad_filepath": {Enabled: false, Options: map[string]any{"remove_duplicate": false}},
	})
	assert.False(t, r.IsEnabled("toolcall_bad_filepath"))
	// Other fixers untouched.
	assert.True(t, r.IsEnabled("toolcall_null_index_fix"))
}

func TestRegistry_ApplyFixes_ChainsInOrder(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	response := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"index": nil,
							"function": map[string]any{
								"name":      "write",
								"arguments": `{"filePath":"/a","filePath":"/broken"}`,
							},
						},
					},
				},
			},
		},
	}

	result := r.ApplyFixes(response)
	choice := result["choices"].([]any)[0].(map[string]any)
	tc := choice["message"].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(0), tc["index"], "null-index fixer ran")
	args := tc["function"].(map[string]any)["arguments"].(string)
	assert.True(t, isValidJSON(args), "bad-filepath fixer ran")
}

func TestRegistry_ApplyFixes_DisabledFixerSkipped(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	r.SetEnabled("toolcall_bad_filepath", false)
	response := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"function": map[string]any{
								"name":      "write",
								"arguments": `{"filePath":"/a","filePath":"/broken"}`,
							},
						},
					},
				},
			},
		},
	}
	result := r.ApplyFixes(response)
	tc := result["choices"].([]any)[0].(map[string]any)["message"].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	args := tc["function"].(map[string]any)["arguments"].(string)
	assert.Equal(t, `{"filePath":"/a","filePath":"/broken"}`, args, "disabled fixer leaves content untouched")
}

func TestRegistry_ApplyFixesWithContext_ThreadsRequest(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	request := writeToolRequest()
	response := map[string]any{
		"choices": []any{
			map[string]any{
				"message": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"function": map[string]any{
								"name":      "write",
								"arguments": `{"content":"data",{}":"/tmp/file.txt"}`,
							},
						},
					},
				},
			},
		},
	}
	result := r.ApplyFixesWithContext(response, request)
	args := result["choices"].([]any)[0].(map[string]any)["message"].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)["function"].(map[string]any)["arguments"].(string)
	assert.Contains(t, args, `"file_path":`)
}

func TestRegistry_ApplyFixesStreamWithAccumulation(t *testing.T) {
	r := NewDefaultRegistry(slog.Default())
	acc := NewAccumulator()
	chunk := map[string]any{
		"choices": []any{
			map[string]any{
				"delta": map[string]any{
					"tool_calls": []any{
						map[string]any{
							"index": nil,
							"function": map[string]any{
								"arguments": `{"content":"x"}`,
							},
						},
					},
				},
			},
		},
	}
	result := r.ApplyFixesStreamWithAccumulation(chunk, nil, acc)
	tc := result["choices"].([]any)[0].(map[string]any)["delta"].(map[string]any)["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(0), tc["index"])
}
