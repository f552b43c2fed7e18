package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docfill/internal/config"
	"docfill/internal/extraction"
	"docfill/internal/extraction/gemini"
	"docfill/internal/port"
)

func newTestGenerator(serverURL string) *gemini.Generator {
	cfg := &config.ExtractionProviderConfig{
		Provider:    "gemini",
		APIKey:      "g-key",
		TimeoutSecs: 30,
	}
	return gemini.NewGeneratorWithEndpoint(cfg, serverURL)
}

func candidateResponse(text, finish string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content":      map[string]interface{}{"parts": []map[string]interface{}{{"text": text}}},
				"finishReason": finish,
			},
		},
	}
}

func TestGeminiGenerator_Generate_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "g-key", r.Header.Get("x-goog-api-key"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		cfg := reqBody["generationConfig"].(map[string]interface{})
		assert.Equal(t, "application/json", cfg["responseMimeType"])

		contents := reqBody["contents"].([]interface{})
		parts := contents[0].(map[string]interface{})["parts"].([]interface{})
		text := parts[0].(map[string]interface{})["text"].(string)
		assert.True(t, strings.HasPrefix(text, "find placeholders"))
		assert.Contains(t, text, `"required":["a"]`)

		_ = json.NewEncoder(w).Encode(candidateResponse(`{"a":1}`, "STOP"))
	}))
	defer server.Close()

	out, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{
		Prompt: "find placeholders",
		Schema: map[string]any{"type": "object", "required": []any{"a"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", out.ModelUsed)
	assert.JSONEq(t, `{"a":1}`, string(out.Object))
}

func TestGeminiGenerator_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "x"})

	assert.ErrorContains(t, err, "no candidates")
}

func TestGeminiGenerator_Generate_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), port.GenerateInput{Prompt: "x"})

	var rlErr *extraction.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "gemini", rlErr.Provider)
}
