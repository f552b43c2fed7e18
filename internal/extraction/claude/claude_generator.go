package claude

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
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	toolName   = "emit_result"
)

func init() {
	extraction.RegisterProvider("claude", func(cfg *config.ExtractionProviderConfig) (port.StructuredGenerator, error) {
		return NewGenerator(cfg), nil
	})
}

// Generator implements port.StructuredGenerator using the Anthropic Messages API.
// The schema is enforced through a forced tool call.
type Generator struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGenerator creates a Claude-based generator from a provider config.
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
		model = "claude-sonnet-4-20250514"
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
	reqBody := map[string]interface{}{
		"model":      g.model,
		"max_tokens": 16384,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": input.Prompt,
			},
		},
		"tools": []map[string]interface{}{
			{
				"name":         toolName,
				"description":  "Return the result as structured data.",
				"input_schema": input.Schema,
			},
		},
		"tool_choice": map[string]interface{}{
			"type": "tool",
			"name": toolName,
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
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling anthropic API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := extraction.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, extraction.NewRateLimitError("claude", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, g.model)
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte, model string) (*port.GenerateOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from API")
	}

	if resp.StopReason == "max_tokens" {
		return nil, fmt.Errorf("output truncated (stop_reason: max_tokens): response exceeded output token limit")
	}

	for _, block := range resp.Content {
		if block.Type == "tool_use" && len(block.Input) > 0 {
			return &port.GenerateOutput{Object: block.Input, ModelUsed: model}, nil
		}
	}

	// Some models answer in a text block even when a tool is forced.
	for _, block := range resp.Content {
		if block.Type == "text" {
			text := extraction.StripCodeFence(block.Text)
			if !json.Valid([]byte(text)) {
				return nil, fmt.Errorf("parsing LLM JSON output: invalid JSON (raw: %s)", extraction.Truncate(text, 500))
			}
			return &port.GenerateOutput{Object: json.RawMessage(text), ModelUsed: model}, nil
		}
	}
	return nil, fmt.Errorf("no structured output in response")
}
