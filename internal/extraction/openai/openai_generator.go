package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"docfill/internal/config"
	"docfill/internal/extraction"
	"docfill/internal/port"
)

const (
	apiURL = "https://api.openai.com/v1/chat/completions"
)

func init() {
	extraction.RegisterProvider("openai", func(cfg *config.ExtractionProviderConfig) (port.StructuredGenerator, error) {
		return NewGenerator(cfg), nil
	})
}

// Generator implements port.StructuredGenerator using the OpenAI Chat Completions API.
type Generator struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGenerator creates an OpenAI-based generator from a provider config.
func NewGenerator(cfg *config.ExtractionProviderConfig) *Generator {
	return newGenerator(cfg, apiURL)
}

// NewGeneratorWithEndpoint creates a generator pointing at a custom API endpoint (for testing).
func NewGeneratorWithEndpoint(cfg *config.ExtractionProviderConfig, endpoint string) *Generator {
	return newGenerator(cfg, endpoint)
}

func newGenerator(cfg *config.ExtractionProviderConfig, endpoint string) *Generator {
	model := cfg.DefaultModel
	if model == "" {
		model = "gpt-4o"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Generator{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *Generator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	name := input.SchemaName
	if name == "" {
		name = "result"
	}
	reqBody := map[string]interface{}{
		"model":                 g.model,
		"max_completion_tokens": 16384,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": input.Prompt,
			},
		},
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   name,
				"schema": input.Schema,
				"strict": false,
			},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling openai API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("openai API error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := extraction.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, extraction.NewRateLimitError("openai", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, g.model)
}

// apiResponse models the OpenAI Chat Completions API response.
type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func parseResponse(body []byte, model string) (*port.GenerateOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from API: no choices")
	}

	if resp.Choices[0].FinishReason == "length" {
		return nil, fmt.Errorf("output truncated (finish_reason: length): response exceeded output token limit")
	}
	if r := resp.Choices[0].Message.Refusal; r != "" {
		return nil, fmt.Errorf("model refused: %s", extraction.Truncate(r, 500))
	}

	text := extraction.StripCodeFence(resp.Choices[0].Message.Content)
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("parsing LLM JSON output: invalid JSON (raw: %s)", extraction.Truncate(text, 500))
	}

	return &port.GenerateOutput{Object: json.RawMessage(text), ModelUsed: model}, nil
}
