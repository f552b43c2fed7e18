package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docfill/internal/config"
	"docfill/internal/extraction"
	"docfill/internal/extraction/claude"
	"docfill/internal/port"
)

func newTestGenerator(serverURL string) *claude.Generator {
	cfg := &config.ExtractionProviderConfig{
		Provider:     "claude",
		APIKey:       "test-api-key",
		DefaultModel: "claude-sonnet-4-20250514",
		TimeoutSecs:  30,
	}
	return claude.NewGeneratorWithEndpoint(cfg, serverURL)
}

var testInput = port.GenerateInput{
	Prompt:     "find placeholders",
	Schema:     map[string]any{"type": "object"},
	SchemaName: "template_fragment",
}

func TestClaudeGenerator_Generate_ToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])

		tools := reqBody["tools"].([]interface{})
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"type": "object"}, tool["input_schema"])

		choice := reqBody["tool_choice"].(map[string]interface{})
		assert.Equal(t, "tool", choice["type"])
		assert.Equal(t, tool["name"], choice["name"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "tool_use", "name": tool["name"], "input": map[string]interface{}{"placeholders": []interface{}{}}},
			},
			"stop_reason": "tool_use",
		})
	}))
	defer server.Close()

	out, err := newTestGenerator(server.URL).Generate(context.Background(), testInput)

	require.NoError(t, err)
	assert.Equal(t, "claude-sonnet-4-20250514", out.ModelUsed)
	assert.JSONEq(t, `{"placeholders":[]}`, string(out.Object))
}

func TestClaudeGenerator_Generate_TextFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]interface{}{
				{"type": "text", "text": "```json\n{\"reply\":\"ok\"}\n```"},
			},
		})
	}))
	defer server.Close()

	out, err := newTestGenerator(server.URL).Generate(context.Background(), testInput)

	require.NoError(t, err)
	assert.JSONEq(t, `{"reply":"ok"}`, string(out.Object))
}

func TestClaudeGenerator_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate_limited"}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testInput)

	var rlErr *extraction.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "claude", rlErr.Provider)
	assert.Equal(t, 30*time.Second, rlErr.RetryAfter)
}

func TestClaudeGenerator_Generate_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"content":     []map[string]interface{}{{"type": "text", "text": "{"}},
			"stop_reason": "max_tokens",
		})
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testInput)

	assert.ErrorContains(t, err, "output truncated")
}

func TestClaudeGenerator_Generate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), testInput)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	var rlErr *extraction.RateLimitError
	assert.False(t, errors.As(err, &rlErr))
}

func TestClaudeGenerator_RegisteredProvider(t *testing.T) {
	g, err := extraction.NewProvider(&config.ExtractionProviderConfig{Provider: "claude", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &claude.Generator{}, g)
}
