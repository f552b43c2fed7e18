package extraction_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docfill/internal/domain"
	"docfill/internal/extraction"
	"docfill/internal/port"
	"docfill/mocks"
)

const sampleFragment = `{
  "content_nodes": [
    {"type": "text", "content": "This agreement is made by "},
    {"type": "placeholder", "key": "Company Name", "raw": " [Company Name] "},
    {"type": "text", "content": " on "},
    {"type": "Placeholder", "key": "date", "raw": "{{date}}"}
  ],
  "placeholders": [
    {"key": "Company Name", "raw": " [Company Name] ", "description": "The legal name of the contracting company",
     "type": "string", "required": true, "value": null, "paragraph_index": 0, "surrounding_text": "made by [Company Name] on"},
    {"key": "date", "raw": "{{date}}", "description": "Effective date", "type": "calendar", "required": "false", "value": "2024"}
  ]
}`

func generated(obj string) *port.GenerateOutput {
	return &port.GenerateOutput{Object: json.RawMessage(obj), ModelUsed: "test-model"}
}

func TestClient_ExtractChunk_AnnotatesFragment(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)
	gen.On("Generate", mock.Anything, mock.AnythingOfType("port.GenerateInput")).Return(generated(sampleFragment), nil)

	client := extraction.NewClient(gen)
	frag, err := client.ExtractChunk(context.Background(), "This agreement is made by [Company Name] on {{date}}", 2, nil)

	require.NoError(t, err)
	require.NotNil(t, frag)
	require.Len(t, frag.Placeholders, 2)

	company := frag.Placeholders[0]
	assert.Equal(t, "company_name", company.Key)
	assert.Equal(t, "[Company Name]", company.Raw)
	assert.Equal(t, " [Company Name] ", company.OriginalRaw())
	assert.Equal(t, "The legal name of the contract", company.Description)
	assert.Equal(t, domain.PlaceholderTypeString, company.Type)
	assert.True(t, company.Required)
	assert.Nil(t, company.Value)
	require.NotNil(t, company.Context)
	assert.Equal(t, 2, company.Context.ChunkIndex)
	assert.Equal(t, 0, company.Context.Index)
	assert.Equal(t, "made by [Company Name] on", company.Context.SurroundingText)

	date := frag.Placeholders[1]
	assert.Equal(t, domain.PlaceholderTypeUnknown, date.Type)
	assert.False(t, date.Required)
	assert.Nil(t, date.Value, "model-supplied values are discarded")
	assert.Equal(t, 1, date.Context.Index)

	require.Len(t, frag.ContentNodes, 4)
	assert.Equal(t, domain.NodeTypeText, frag.ContentNodes[0].Type)
	assert.Equal(t, "company_name", frag.ContentNodes[1].Key)
	assert.Equal(t, "[Company Name]", frag.ContentNodes[1].Raw)
	assert.Equal(t, 2, frag.ContentNodes[1].Context.ChunkIndex)
	assert.Equal(t, domain.NodeTypePlaceholder, frag.ContentNodes[3].Type)
	assert.Equal(t, "date", frag.ContentNodes[3].Key)
}

func TestClient_ExtractChunk_PassesUsedKeysAndSchema(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(in port.GenerateInput) bool {
		return strings.Contains(in.Prompt, "buyer_name, seller_name") &&
			strings.Contains(in.Prompt, "Section 4") &&
			in.SchemaName == "template_fragment" &&
			in.Schema["required"] != nil
	})).Return(generated(`{"content_nodes":[],"placeholders":[]}`), nil)

	client := extraction.NewClient(gen)
	frag, err := client.ExtractChunk(context.Background(), "text", 3, []string{"seller_name", "buyer_name"})

	require.NoError(t, err)
	require.NotNil(t, frag)
	assert.Empty(t, frag.Placeholders)
	gen.AssertExpectations(t)
}

func TestClient_ExtractChunk_GeneratorErrorPropagates(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	client := extraction.NewClient(gen)
	frag, err := client.ExtractChunk(context.Background(), "text", 0, nil)

	assert.Nil(t, frag)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestClient_ExtractChunk_SchemaViolation(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(generated(`{"content_nodes":[],"placeholders":[{"key":"a","type":"STRING","required":true}]}`), nil)

	client := extraction.NewClient(gen)
	_, err := client.ExtractChunk(context.Background(), "text", 0, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match schema")
}

func TestClient_ExtractChunk_MalformedJSON(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(generated(`not json`), nil)

	client := extraction.NewClient(gen)
	_, err := client.ExtractChunk(context.Background(), "text", 0, nil)

	assert.Error(t, err)
}

func TestClient_ExtractChunk_OrphanNodeGetsPlaceholder(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(generated(
		"```json\n{\"content_nodes\":[{\"type\":\"placeholder\",\"key\":\"Buyer\",\"raw\":\"<<Buyer>>\"}],\"placeholders\":[]}\n```"), nil)

	client := extraction.NewClient(gen)
	frag, err := client.ExtractChunk(context.Background(), "<<Buyer>>", 1, nil)

	require.NoError(t, err)
	require.Len(t, frag.Placeholders, 1)
	assert.Equal(t, "buyer", frag.Placeholders[0].Key)
	assert.Equal(t, "<<Buyer>>", frag.Placeholders[0].Raw)
	assert.Equal(t, domain.PlaceholderTypeUnknown, frag.Placeholders[0].Type)
	assert.Equal(t, 1, frag.Placeholders[0].Context.ChunkIndex)
}

func TestClient_ExtractChunk_Skip(t *testing.T) {
	gen := new(mocks.MockStructuredGenerator)

	client := extraction.NewClient(gen, extraction.WithSkip())
	frag, err := client.ExtractChunk(context.Background(), "text", 0, nil)

	assert.NoError(t, err)
	assert.Nil(t, frag)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Company Name", "company_name"},
		{"[COMPANY_NAME]", "company_name"},
		{"  {{ effective-date }} ", "effective_date"},
		{"$[_____]", ""},
		{"already_snake", "already_snake"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, extraction.NormalizeKey(tt.in))
		})
	}
}
