package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docfill/internal/chunker"
	"docfill/internal/docx"
	"docfill/internal/domain"
	"docfill/internal/port"
	"docfill/internal/template"
)

// BatchStatus is the outcome of one ProcessNextBatch step.
type BatchStatus string

const (
	BatchStatusReady      BatchStatus = "ready"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusMissing    BatchStatus = "missing"
)

// BatchResult reports the state a document was left in by one batch step.
type BatchResult struct {
	Status   BatchStatus
	Document *domain.Document
	Err      error
}

// Processor advances chunked placeholder extraction for a document, one batch per call.
// Calls are idempotent steps: progress is persisted after every chunk, so a later call
// resumes from the stored cursor.
type Processor struct {
	repo           port.DocumentRepository
	extractor      port.PlaceholderExtractor
	storage        port.ObjectStorage
	bucket         string
	maxChunkLength int
}

// NewProcessor creates a Processor. storage may be nil, which disables normalization of originals.
func NewProcessor(
	repo port.DocumentRepository,
	extractor port.PlaceholderExtractor,
	storage port.ObjectStorage,
	bucket string,
	maxChunkLength int,
) *Processor {
	if maxChunkLength <= 0 {
		maxChunkLength = chunker.DefaultMaxChunkLength
	}
	return &Processor{
		repo:           repo,
		extractor:      extractor,
		storage:        storage,
		bucket:         bucket,
		maxChunkLength: maxChunkLength,
	}
}

// ProcessNextBatch extracts up to batchSize chunks starting at the document's cursor.
// The returned error is reserved for failures to load the document; processing failures
// are reported through a failed BatchResult.
func (p *Processor) ProcessNextBatch(ctx context.Context, docID uuid.UUID, batchSize int) (*BatchResult, error) {
	doc, err := p.repo.GetByID(ctx, docID, true)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return &BatchResult{Status: BatchStatusMissing}, nil
		}
		return nil, fmt.Errorf("loading document %s: %w", docID, err)
	}

	switch doc.ProcessingStatus {
	case domain.ProcessingStatusReady:
		return &BatchResult{Status: BatchStatusReady, Document: doc}, nil
	case domain.ProcessingStatusFailed:
		var stored error
		if doc.ProcessingError != nil {
			stored = errors.New(*doc.ProcessingError)
		}
		return &BatchResult{Status: BatchStatusFailed, Document: doc, Err: stored}, nil
	}

	if doc.PlainText == nil || strings.TrimSpace(*doc.PlainText) == "" {
		return p.fail(ctx, doc, errors.New("document has no extracted text to process"))
	}

	chunks := chunker.Split(*doc.PlainText, p.maxChunkLength)
	total := len(chunks)
	if total == 0 {
		return p.markReady(ctx, doc, 0, 0, "")
	}
	if doc.ProcessingNextChunk >= total {
		// Another worker already consumed every chunk.
		return p.finishWithoutNormalize(ctx, doc, total)
	}

	if batchSize <= 0 {
		batchSize = 1
	}
	cursor := doc.ProcessingNextChunk
	end := cursor + batchSize
	if end > total {
		end = total
	}

	if doc.ProcessingStatus == domain.ProcessingStatusPending {
		status := domain.ProcessingStatusProcessing
		updated, err := p.repo.UpdateProcessingState(ctx, doc.ID, domain.ProcessingUpdate{
			Status:      &status,
			TotalChunks: &total,
		})
		if err != nil {
			return p.fail(ctx, doc, fmt.Errorf("marking processing: %w", err))
		}
		updated.PlainText = doc.PlainText
		doc = updated
	}

	log.Printf("service.Processor: document %s chunks %d-%d of %d", doc.ID, cursor, end-1, total)
	fragments, errs := p.extractBatch(ctx, chunks, cursor, end, usedKeys(doc.Template))

	tmpl := doc.Template
	for i := range fragments {
		chunkIndex := cursor + i
		if errs[i] != nil {
			return p.fail(ctx, doc, fmt.Errorf("extracting chunk %d: %w", chunkIndex, errs[i]))
		}
		if fragments[i] != nil {
			tmpl = tmpl.Append(*fragments[i])
		}

		next := chunkIndex + 1
		progress := progressOf(next, total)
		status := domain.ProcessingStatusProcessing
		updated, err := p.repo.UpdateTemplate(ctx, doc.ID, tmpl, domain.ProcessingUpdate{
			Status:      &status,
			Progress:    &progress,
			TotalChunks: &total,
			NextChunk:   &next,
			ClearError:  true,
		})
		if err != nil {
			return p.fail(ctx, doc, fmt.Errorf("persisting chunk %d: %w", chunkIndex, err))
		}
		updated.PlainText = doc.PlainText
		doc = updated
	}

	if doc.ProcessingNextChunk < total {
		return &BatchResult{Status: BatchStatusProcessing, Document: doc}, nil
	}
	return p.finalize(ctx, doc, total)
}

// extractBatch runs extraction for chunks [start,end) concurrently. Every chunk runs to
// completion so one failure does not cancel earlier chunks that can still be applied.
func (p *Processor) extractBatch(ctx context.Context, chunks []string, start, end int, used []string) ([]*domain.Template, []error) {
	n := end - start
	fragments := make([]*domain.Template, n)
	errs := make([]error, n)

	var g errgroup.Group
	g.SetLimit(n)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fragments[i], errs[i] = p.extractor.ExtractChunk(ctx, chunks[start+i], start+i, used)
			return nil
		})
	}
	_ = g.Wait()
	return fragments, errs
}

func (p *Processor) finalize(ctx context.Context, doc *domain.Document, total int) (*BatchResult, error) {
	deduped := template.Deduplicate(doc.Template)
	updated, err := p.repo.UpdateTemplate(ctx, doc.ID, deduped, domain.ProcessingUpdate{})
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("persisting deduplicated template: %w", err))
	}

	key, err := p.normalizeOriginal(ctx, updated, deduped)
	if err != nil {
		log.Printf("service.Processor: normalizing original of %s failed: %v", doc.ID, err)
		key = ""
	}

	return p.markReady(ctx, updated, total, total, key)
}

func (p *Processor) finishWithoutNormalize(ctx context.Context, doc *domain.Document, total int) (*BatchResult, error) {
	deduped := template.Deduplicate(doc.Template)
	status := domain.ProcessingStatusReady
	progress := 100
	updated, err := p.repo.UpdateTemplate(ctx, doc.ID, deduped, domain.ProcessingUpdate{
		Status:         &status,
		Progress:       &progress,
		TotalChunks:    &total,
		NextChunk:      &total,
		ClearError:     true,
		ClearPlainText: true,
	})
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("marking ready: %w", err))
	}
	return &BatchResult{Status: BatchStatusReady, Document: updated}, nil
}

func (p *Processor) markReady(ctx context.Context, doc *domain.Document, total, cursor int, originalKey string) (*BatchResult, error) {
	status := domain.ProcessingStatusReady
	progress := 100
	update := domain.ProcessingUpdate{
		Status:         &status,
		Progress:       &progress,
		TotalChunks:    &total,
		NextChunk:      &cursor,
		ClearError:     true,
		ClearPlainText: true,
	}
	if originalKey != "" {
		update.OriginalKey = &originalKey
	}
	updated, err := p.repo.UpdateProcessingState(ctx, doc.ID, update)
	if err != nil {
		return p.fail(ctx, doc, fmt.Errorf("marking ready: %w", err))
	}
	log.Printf("service.Processor: document %s ready with %d placeholders", doc.ID, len(updated.Template.Placeholders))
	return &BatchResult{Status: BatchStatusReady, Document: updated}, nil
}

// fail records cause on the document. Persisted chunk progress is left in place.
func (p *Processor) fail(ctx context.Context, doc *domain.Document, cause error) (*BatchResult, error) {
	log.Printf("service.Processor: document %s failed: %v", doc.ID, cause)
	status := domain.ProcessingStatusFailed
	msg := cause.Error()
	updated, err := p.repo.UpdateProcessingState(ctx, doc.ID, domain.ProcessingUpdate{
		Status: &status,
		Error:  &msg,
	})
	if err != nil {
		log.Printf("service.Processor: recording failure for %s: %v", doc.ID, err)
		doc.ProcessingStatus = status
		doc.ProcessingError = &msg
		updated = doc
	}
	return &BatchResult{Status: BatchStatusFailed, Document: updated, Err: cause}, nil
}

// normalizeOriginal rewrites tokens in the stored original so they match canonical raws.
// It returns the new blob key, or "" when nothing changed.
func (p *Processor) normalizeOriginal(ctx context.Context, doc *domain.Document, tmpl domain.Template) (string, error) {
	if p.storage == nil || doc.OriginalKey == "" || len(tmpl.Placeholders) == 0 {
		return "", nil
	}

	renames := occurrenceRenames(tmpl)
	renamed := false
	for _, r := range renames {
		if strings.TrimSpace(r.From) != strings.TrimSpace(r.To) {
			renamed = true
			break
		}
	}
	if !renamed {
		return "", nil
	}

	original, err := p.storage.Download(ctx, p.bucket, doc.OriginalKey)
	if err != nil {
		return "", fmt.Errorf("downloading original: %w", err)
	}
	normalized, changed, err := docx.Normalize(original, renames)
	if err != nil {
		return "", fmt.Errorf("normalizing: %w", err)
	}
	if !changed {
		return "", nil
	}

	key := normalizedObjectKey(doc.ID)
	if _, err := p.storage.Upload(ctx, port.UploadInput{
		Bucket:      p.bucket,
		Key:         key,
		Body:        bytes.NewReader(normalized),
		ContentType: domain.MimeTypeDocx,
		Size:        int64(len(normalized)),

		DownloadName: doc.Filename,
	}); err != nil {
		return "", fmt.Errorf("uploading normalized original: %w", err)
	}
	return key, nil
}

// occurrenceRenames lists one rename per placeholder occurrence in content order, so a
// token repeated inside one chunk keeps its key and only the occurrence dedup renamed
// changes. Placeholders without any content node follow, one rename each.
func occurrenceRenames(tmpl domain.Template) []docx.Rename {
	var renames []docx.Rename
	seen := make(map[string]bool)
	for _, n := range tmpl.ContentNodes {
		if n.Type != domain.NodeTypePlaceholder {
			continue
		}
		from := n.Raw
		if n.Context != nil && n.Context.OriginalRaw != "" {
			from = n.Context.OriginalRaw
		}
		renames = append(renames, docx.Rename{Key: n.Key, From: from, To: n.Raw})
		seen[n.Key] = true
	}
	for _, ph := range tmpl.Placeholders {
		if seen[ph.Key] {
			continue
		}
		renames = append(renames, docx.Rename{Key: ph.Key, From: ph.OriginalRaw(), To: ph.Raw})
	}
	return renames
}

func usedKeys(t domain.Template) []string {
	seen := make(map[string]struct{}, len(t.Placeholders))
	keys := make([]string, 0, len(t.Placeholders))
	for _, k := range t.Keys() {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func progressOf(cursor, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(cursor) / float64(total) * 100))
}
