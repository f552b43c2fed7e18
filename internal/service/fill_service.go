package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"docfill/internal/domain"
	"docfill/internal/extraction"
	"docfill/internal/port"
	"docfill/internal/template"
)

const allFilledReply = "Every field in this document already has a value. You can download the filled document."

// ChatResult is the outcome of one conversational fill turn.
type ChatResult struct {
	Reply    string            `json:"reply"`
	Applied  map[string]string `json:"applied"`
	Document *domain.Document  `json:"document"`
}

// FillService maps free-form user messages onto placeholder values.
type FillService interface {
	Converse(ctx context.Context, docID uuid.UUID, message string) (*ChatResult, error)
}

type fillService struct {
	docRepo    port.DocumentRepository
	docService DocumentService
	generator  port.StructuredGenerator
}

// NewFillService creates a new FillService implementation.
func NewFillService(docRepo port.DocumentRepository, docService DocumentService, generator port.StructuredGenerator) FillService {
	return &fillService{
		docRepo:    docRepo,
		docService: docService,
		generator:  generator,
	}
}

type fillResponse struct {
	Updates []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"updates"`
	Reply string `json:"reply"`
}

func (s *fillService) Converse(ctx context.Context, docID uuid.UUID, message string) (*ChatResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}

	doc, err := s.docRepo.GetByID(ctx, docID, false)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus != domain.ProcessingStatusReady {
		return nil, domain.ErrDocumentNotReady
	}

	missing := template.Missing(doc.Template)
	if len(missing) == 0 {
		return &ChatResult{Reply: allFilledReply, Applied: map[string]string{}, Document: doc}, nil
	}

	fields := make([]extraction.FillField, 0, len(missing))
	for _, p := range missing {
		fields = append(fields, extraction.FillField{
			Key:         p.Key,
			Raw:         p.Raw,
			Description: p.Description,
			Type:        p.Type,
			Required:    p.Required,
		})
	}

	out, err := s.generator.Generate(ctx, port.GenerateInput{
		Prompt:     extraction.BuildFillPrompt(fields, message),
		Schema:     extraction.FillSchema(),
		SchemaName: "placeholder_fill",
	})
	if err != nil {
		return nil, fmt.Errorf("generating fill: %w", err)
	}

	raw := []byte(extraction.StripCodeFence(string(out.Object)))
	if err := extraction.ValidateAgainstSchema(extraction.FillSchema(), raw); err != nil {
		return nil, fmt.Errorf("fill response: %w", err)
	}
	var resp fillResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding fill response: %w", err)
	}

	known := make(map[string]struct{}, len(doc.Template.Placeholders))
	for _, k := range doc.Template.Keys() {
		known[k] = struct{}{}
	}
	applied := make(map[string]string)
	for _, u := range resp.Updates {
		v := strings.TrimSpace(u.Value)
		if v == "" {
			continue
		}
		if _, ok := known[u.Key]; !ok {
			log.Printf("fillService.Converse: document %s: dropping unknown key %q from model", docID, u.Key)
			continue
		}
		applied[u.Key] = v
	}

	result := &ChatResult{Reply: strings.TrimSpace(resp.Reply), Applied: applied, Document: doc}
	if len(applied) == 0 {
		return result, nil
	}

	updated, err := s.docService.UpdatePlaceholders(ctx, docID, applied)
	if err != nil {
		return nil, err
	}
	result.Document = updated
	log.Printf("fillService.Converse: document %s: applied %d values via %s", docID, len(applied), out.ModelUsed)
	return result, nil
}
