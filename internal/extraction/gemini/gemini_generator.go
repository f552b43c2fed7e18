package gemini

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
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
)

func init() {
	extraction.RegisterProvider("gemini", func(cfg *config.ExtractionProviderConfig) (port.StructuredGenerator, error) {
		return NewGenerator(cfg), nil
	})
}

// Generator implements port.StructuredGenerator using Google's Gemini API.
// Gemini accepts only a subset of JSON schema, so the schema travels in the prompt.
type Generator struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewGenerator creates a Gemini-based generator.
func NewGenerator(cfg *config.ExtractionProviderConfig) *Generator {
	return newGenerator(cfg, "")
}

// NewGeneratorWithEndpoint creates a generator pointing at a custom API endpoint (for testing).
func NewGeneratorWithEndpoint(cfg *config.ExtractionProviderConfig, endpoint string) *Generator {
	return newGenerator(cfg, endpoint)
}

func newGenerator(cfg *config.ExtractionProviderConfig, endpoint string) *Generator {
	model := cfg.DefaultModel
	if model == "" {
		model = "gemini-2.0-flash"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	return &Generator{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (g *Generator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	prompt := input.Prompt
	if input.Schema != nil {
		schemaJSON, err := json.Marshal(input.Schema)
		if err != nil {
			return nil, fmt.Errorf("marshaling schema: %w", err)
		}
		prompt += "\nThe response must validate against this JSON schema:\n" + string(schemaJSON) + "\n"
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": prompt},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"responseMimeType": "application/json",
			"maxOutputTokens":  16384,
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
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := extraction.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, extraction.NewRateLimitError("gemini", baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody, g.model)
}

// apiResponse models the Gemini generateContent response.
type apiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte, model string) (*port.GenerateOutput, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshaling response: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from API: no candidates")
	}

	if resp.Candidates[0].FinishReason == "MAX_TOKENS" {
		return nil, fmt.Errorf("output truncated (finishReason: MAX_TOKENS): response exceeded output token limit")
	}

	text := extraction.StripCodeFence(resp.Candidates[0].Content.Parts[0].Text)
	if !json.Valid([]byte(text)) {
		return nil, fmt.Errorf("parsing LLM JSON output: invalid JSON (raw: %s)", extraction.Truncate(text, 500))
	}

	return &port.GenerateOutput{Object: json.RawMessage(text), ModelUsed: model}, nil
}
