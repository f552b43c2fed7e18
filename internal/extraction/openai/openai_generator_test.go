package openai_test

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
	"docfill/internal/extraction/openai"
	"docfill/internal/port"
)

func newTestGenerator(serverURL string) *openai.Generator {
	cfg := &config.ExtractionProviderConfig{
		Provider:    "openai",
		APIKey:      "sk-test",
		TimeoutSecs: 30,
	}
	return openai.NewGeneratorWithEndpoint(cfg, serverURL)
}

func chatResponse(content, finish string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message":       map[string]interface{}{"content": content},
				"finish_reason": finish,
			},
		},
	}
}

func TestOpenAIGenerator_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "gpt-4o", reqBody["model"])

		format := reqBody["response_format"].(map[string]interface{})
		assert.Equal(t, "json_schema", format["type"])
		schema := format["json_schema"].(map[string]interface{})
		assert.Equal(t, "fill_turn", schema["name"])
		assert.Equal(t, map[string]interface{}{"type": "object"}, schema["schema"])

		_ = json.NewEncoder(w).Encode(chatResponse(`{"updates":[],"reply":"hello"}`, "stop"))
	}))
	defer server.Close()

	out, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{
		Prompt:     "hi",
		Schema:     map[string]any{"type": "object"},
		SchemaName: "fill_turn",
	})

	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", out.ModelUsed)
	assert.JSONEq(t, `{"updates":[],"reply":"hello"}`, string(out.Object))
}

func TestOpenAIGenerator_Generate_Truncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse(`{"upd`, "length"))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "hi"})

	assert.ErrorContains(t, err, "output truncated")
}

func TestOpenAIGenerator_Generate_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse("sorry, no", "stop"))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "hi"})

	assert.ErrorContains(t, err, "invalid JSON")
}

func TestOpenAIGenerator_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "hi"})

	var rlErr *extraction.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 60*time.Second, rlErr.RetryAfter)
}
