package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docfill/internal/domain"
	"docfill/internal/port"
	"docfill/internal/service"
	"docfill/mocks"
)

func setupFillService(t *testing.T, doc *domain.Document) (service.FillService, *memRepo, *mocks.MockStructuredGenerator, *mocks.MockObjectStorage) {
	t.Helper()
	repo := newMemRepo(doc)
	docSvc, storage := setupDocumentService(repo, new(mocks.MockPlaceholderExtractor))
	gen := new(mocks.MockStructuredGenerator)
	return service.NewFillService(repo, docSvc, gen), repo, gen, storage
}

func fillOutput(t *testing.T, v any) *port.GenerateOutput {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return &port.GenerateOutput{Object: b, ModelUsed: "test-model"}
}

func TestFillService_Converse_AppliesKnownValues(t *testing.T) {
	doc := readyDoc(nil)
	svc, repo, gen, storage := setupFillService(t, doc)
	storage.On("Download", mock.Anything, "test-bucket", doc.OriginalKey).
		Return(buildDocx(t, "[Buyer] sells to [Seller]"), nil)
	storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil)

	gen.On("Generate", mock.Anything, mock.MatchedBy(func(in port.GenerateInput) bool {
		return strings.Contains(in.Prompt, "buyer (STRING, required)") &&
			strings.Contains(in.Prompt, "Ann is buying") &&
			in.Schema != nil
	})).Return(fillOutput(t, map[string]any{
		"updates": []map[string]string{
			{"key": "buyer", "value": "Ann"},
			{"key": "invented", "value": "x"},
			{"key": "seller", "value": "  "},
		},
		"reply": "Got it. Who is the seller?",
	}), nil)

	res, err := svc.Converse(context.Background(), doc.ID, "  Ann is buying  ")
	require.NoError(t, err)
	assert.Equal(t, "Got it. Who is the seller?", res.Reply)
	assert.Equal(t, map[string]string{"buyer": "Ann"}, res.Applied)
	require.NotNil(t, res.Document.FilledKey)
	assert.Equal(t, "Ann", *repo.get(doc.ID).Template.Placeholders[0].Value)
	gen.AssertExpectations(t)
}

func TestFillService_Converse_NoUpdatesOnlyReplies(t *testing.T) {
	doc := readyDoc(nil)
	svc, repo, gen, _ := setupFillService(t, doc)
	gen.On("Generate", mock.Anything, mock.Anything).Return(fillOutput(t, map[string]any{
		"updates": []any{},
		"reply":   "Which party is the buyer?",
	}), nil)

	res, err := svc.Converse(context.Background(), doc.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "Which party is the buyer?", res.Reply)
	assert.Empty(t, res.Applied)
	assert.Zero(t, repo.templates)
}

func TestFillService_Converse_EmptyMessage(t *testing.T) {
	svc, _, gen, _ := setupFillService(t, readyDoc(nil))

	_, err := svc.Converse(context.Background(), uuid.New(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestFillService_Converse_NotReady(t *testing.T) {
	doc := processingDoc(3, 1)
	svc, _, _, _ := setupFillService(t, doc)

	_, err := svc.Converse(context.Background(), doc.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrDocumentNotReady)
}

func TestFillService_Converse_AllFilled(t *testing.T) {
	doc := readyDoc(map[string]string{"buyer": "Ann", "seller": "Bob", "notes": "none"})
	svc, _, gen, _ := setupFillService(t, doc)

	res, err := svc.Converse(context.Background(), doc.ID, "anything else?")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Reply)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestFillService_Converse_GeneratorError(t *testing.T) {
	doc := readyDoc(nil)
	svc, _, gen, _ := setupFillService(t, doc)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := svc.Converse(context.Background(), doc.ID, "Ann buys")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFillService_Converse_InvalidResponse(t *testing.T) {
	doc := readyDoc(nil)
	svc, _, gen, _ := setupFillService(t, doc)
	gen.On("Generate", mock.Anything, mock.Anything).
		Return(&port.GenerateOutput{Object: json.RawMessage(`{"updates":"nope"}`)}, nil)

	_, err := svc.Converse(context.Background(), doc.ID, "Ann buys")
	assert.Error(t, err)
}
