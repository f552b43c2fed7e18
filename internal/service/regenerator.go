package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"docfill/internal/docx"
	"docfill/internal/domain"
	"docfill/internal/port"
	"docfill/internal/template"
)

// Regenerator renders a filled copy of a document's original from its placeholder values.
type Regenerator struct {
	repo     port.DocumentRepository
	storage  port.ObjectStorage
	replacer docx.TokenReplacer
	bucket   string
}

// NewRegenerator creates a Regenerator. A nil replacer uses the structural-then-markup chain.
func NewRegenerator(repo port.DocumentRepository, storage port.ObjectStorage, replacer docx.TokenReplacer, bucket string) *Regenerator {
	if replacer == nil {
		replacer = docx.NewChainReplacer()
	}
	return &Regenerator{repo: repo, storage: storage, replacer: replacer, bucket: bucket}
}

// Replacements builds one replacement per occurrence of a valued placeholder, following
// the content nodes so repeated tokens are all filled in document order. Valued
// placeholders without a content node get a single replacement at the end.
func Replacements(tmpl domain.Template) []docx.Replacement {
	byKey := make(map[string]domain.Placeholder, len(tmpl.Placeholders))
	for _, p := range tmpl.Placeholders {
		if _, ok := byKey[p.Key]; !ok {
			byKey[p.Key] = p
		}
	}

	var out []docx.Replacement
	covered := make(map[string]bool)
	for _, n := range tmpl.ContentNodes {
		if n.Type != domain.NodeTypePlaceholder {
			continue
		}
		p, ok := byKey[n.Key]
		if !ok {
			continue
		}
		covered[n.Key] = true
		if r, ok := replacementFor(p); ok {
			out = append(out, r)
		}
	}
	for _, p := range tmpl.Placeholders {
		if covered[p.Key] {
			continue
		}
		if r, ok := replacementFor(p); ok {
			out = append(out, r)
		}
	}
	return out
}

func replacementFor(p domain.Placeholder) (docx.Replacement, bool) {
	if !p.HasValue() {
		return docx.Replacement{}, false
	}
	return docx.Replacement{
		Key:    p.Key,
		Tokens: template.MatchTokens(p),
		Value:  strings.TrimSpace(*p.Value),
	}, true
}

// Regenerate writes a new filled document and points the record at it. It returns
// nil, nil when no placeholder has a value.
func (r *Regenerator) Regenerate(ctx context.Context, doc *domain.Document, tmpl domain.Template) (*domain.Document, error) {
	replacements := Replacements(tmpl)
	if len(replacements) == 0 {
		return nil, nil
	}

	original, err := r.storage.Download(ctx, r.bucket, doc.OriginalKey)
	if err != nil {
		return nil, fmt.Errorf("downloading original: %w", err)
	}

	res, err := r.replacer.Replace(original, replacements)
	if err != nil {
		return nil, fmt.Errorf("replacing tokens: %w", err)
	}
	if len(res.Missed) > 0 {
		log.Printf("service.Regenerator: document %s: no token found for %v", doc.ID, res.Missed)
	}

	key := filledObjectKey(doc.ID)
	if _, err := r.storage.Upload(ctx, port.UploadInput{
		Bucket:      r.bucket,
		Key:         key,
		Body:        bytes.NewReader(res.Data),
		ContentType: domain.MimeTypeDocx,
		Size:        int64(len(res.Data)),

		DownloadName: filledDownloadName(doc.Filename),
	}); err != nil {
		return nil, fmt.Errorf("uploading filled document: %w", err)
	}

	updated, err := r.repo.UpdateProcessingState(ctx, doc.ID, domain.ProcessingUpdate{FilledKey: &key})
	if err != nil {
		return nil, fmt.Errorf("recording filled document: %w", err)
	}
	log.Printf("service.Regenerator: document %s filled %d/%d placeholders -> %s",
		doc.ID, len(res.Applied), len(replacements), key)
	return updated, nil
}
