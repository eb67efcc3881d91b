package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otto-ai/otto/internal/config"
	apperrors "github.com/otto-ai/otto/internal/errors"
)

func configFor(provider string) config.ModelConfig {
	return config.ModelConfig{Provider: provider, Name: "m", APIKey: "k", TimeoutMS: 1000}
}

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenRouterClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewOpenRouterClient(OpenRouterConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		Model:   "anthropic/claude-3.5-sonnet",
		Timeout: 2 * time.Second,
	})
	return srv, client
}

func TestCompleteTextResponse(t *testing.T) {
	var captured map[string]any

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model": "anthropic/claude-3.5-sonnet",
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Paris is the capital of France."}},
			},
			"usage": map[string]any{"total_tokens": 42},
		})
	})

	resp, err := client.Complete(context.Background(), &Request{
		System: "You are concise.",
		Prompt: "Capital of France?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Paris is the capital of France.", resp.Text)
	assert.Equal(t, 42, resp.TokensUsed)
	assert.Empty(t, resp.ToolCalls)

	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	first := messages[0].(map[string]any)
	assert.Equal(t, "system", first["role"])
	assert.Equal(t, "You are concise.", first["content"])
}

func TestCompleteParsesToolCalls(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"role":    "assistant",
						"content": "",
						"tool_calls": []map[string]any{
							{
								"id":   "call_1",
								"type": "function",
								"function": map[string]any{
									"name":      "finance_lookup",
									"arguments": `{"company":"Apple","metric":"revenue"}`,
								},
							},
						},
					},
					"finish_reason": "tool_calls",
				},
			},
			"usage": map[string]any{"total_tokens": 55},
		})
	})

	resp, err := client.Complete(context.Background(), &Request{Prompt: "Compare revenues"})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	tc := resp.ToolCalls[0]
	assert.Equal(t, "call_1", tc.ID)
	assert.Equal(t, "finance_lookup", tc.Name)
	assert.Equal(t, map[string]any{"company": "Apple", "metric": "revenue"}, tc.Input)
}

func TestCompleteSendsToolsAndJSONMode(t *testing.T) {
	var captured map[string]any

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"ok":true}`}},
			},
		})
	})

	_, err := client.Complete(context.Background(), &Request{
		Prompt: "classify",
		JSON:   true,
		Tools: []Tool{
			{Name: "web_search", Description: "search", Parameters: map[string]any{"type": "object"}},
		},
	})
	require.NoError(t, err)

	rf := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_object", rf["type"])

	toolList := captured["tools"].([]any)
	require.Len(t, toolList, 1)
	entry := toolList[0].(map[string]any)
	assert.Equal(t, "function", entry["type"])
}

func TestCompleteHTTPError(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestCompleteRetriesTemporaryErrors(t *testing.T) {
	var calls int32

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "recovered"}},
			},
		})
	})

	resp, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestCompleteInvalidKeyFailsFast(t *testing.T) {
	var calls int32

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeModelUnavailable))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCompleteEmptyChoices(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), &Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}

func TestCompleteRespectsContextCancel(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Complete(ctx, &Request{Prompt: "hi"})
	require.Error(t, err)
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, NewOpenRouterClient(OpenRouterConfig{APIKey: "k"}).IsAvailable())
	assert.False(t, NewOpenRouterClient(OpenRouterConfig{}).IsAvailable())
}

func TestFactorySelectsProvider(t *testing.T) {
	m, err := New(configFor("openrouter"))
	require.NoError(t, err)
	assert.IsType(t, &OpenRouterClient{}, m)

	_, err = New(configFor("carrier-pigeon"))
	assert.Error(t, err)
}

func TestFantasyClientRequiresKey(t *testing.T) {
	_, err := NewFantasyClient(FantasyConfig{})
	assert.Error(t, err)
}
