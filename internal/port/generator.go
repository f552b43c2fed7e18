package port

import (
	"context"
	"encoding/json"

	"docfill/internal/domain"
)

// GenerateInput carries a prompt and the JSON schema the response must satisfy.
type GenerateInput struct {
	Prompt     string
	Schema     map[string]any
	SchemaName string
}

// GenerateOutput is the raw structured object returned by a model.
type GenerateOutput struct {
	Object    json.RawMessage
	ModelUsed string
}

// StructuredGenerator abstracts an LLM that returns a schema-shaped JSON object.
type StructuredGenerator interface {
	Generate(ctx context.Context, input GenerateInput) (*GenerateOutput, error)
}

// PlaceholderExtractor turns one text chunk into a template fragment.
// A nil fragment with a nil error means the chunk was skipped.
type PlaceholderExtractor interface {
	ExtractChunk(ctx context.Context, chunk string, chunkIndex int, usedKeys []string) (*domain.Template, error)
}
