package service_test

import (
	"archive/zip"
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"docfill/internal/domain"
)

// memRepo is a stateful in-memory port.DocumentRepository for multi-step processing tests.
type memRepo struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*domain.Document
	templates int
	states    int
	failNext  error
}

func newMemRepo(docs ...*domain.Document) *memRepo {
	r := &memRepo{docs: make(map[uuid.UUID]*domain.Document)}
	for _, d := range docs {
		r.docs[d.ID] = copyDoc(d)
	}
	return r
}

func copyDoc(d *domain.Document) *domain.Document {
	out := *d
	out.Template = d.Template.Clone()
	if d.PlainText != nil {
		s := *d.PlainText
		out.PlainText = &s
	}
	return &out
}

func (r *memRepo) get(id uuid.UUID) *domain.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyDoc(r.docs[id])
}

func (r *memRepo) Create(_ context.Context, doc *domain.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	r.docs[doc.ID] = copyDoc(doc)
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id uuid.UUID, includePlainText bool) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	out := copyDoc(d)
	if !includePlainText {
		out.PlainText = nil
	}
	return out, nil
}

func (r *memRepo) List(_ context.Context, offset, limit int) ([]domain.Document, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]domain.Document, 0, len(r.docs))
	for _, d := range r.docs {
		all = append(all, *copyDoc(d))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	if offset > len(all) {
		offset = len(all)
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *memRepo) UpdateTemplate(_ context.Context, id uuid.UUID, tmpl domain.Template, u domain.ProcessingUpdate) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.takeFailure(); err != nil {
		return nil, err
	}
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	r.templates++
	d.Template = tmpl.Clone()
	apply(d, u)
	return copyDoc(d), nil
}

func (r *memRepo) UpdateProcessingState(_ context.Context, id uuid.UUID, u domain.ProcessingUpdate) (*domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	r.states++
	apply(d, u)
	return copyDoc(d), nil
}

func (r *memRepo) ClaimProcessable(context.Context, int) ([]uuid.UUID, error) { return nil, nil }

func (r *memRepo) ReleaseClaim(context.Context, uuid.UUID) error { return nil }

func (r *memRepo) Ping(context.Context) error { return nil }

func (r *memRepo) takeFailure() error {
	err := r.failNext
	r.failNext = nil
	return err
}

func apply(d *domain.Document, u domain.ProcessingUpdate) {
	if u.Status != nil {
		d.ProcessingStatus = *u.Status
	}
	if u.Progress != nil {
		d.ProcessingProgress = *u.Progress
	}
	if u.TotalChunks != nil {
		d.ProcessingTotalChunks = *u.TotalChunks
	}
	if u.NextChunk != nil {
		d.ProcessingNextChunk = *u.NextChunk
	}
	if u.Error != nil {
		msg := *u.Error
		d.ProcessingError = &msg
	} else if u.ClearError {
		d.ProcessingError = nil
	}
	if u.ClearPlainText {
		d.PlainText = nil
	}
	if u.OriginalKey != nil {
		d.OriginalKey = *u.OriginalKey
	}
	if u.FilledKey != nil {
		k := *u.FilledKey
		d.FilledKey = &k
	}
	d.UpdatedAt = time.Now()
}

// extractorFunc adapts a function to port.PlaceholderExtractor.
type extractorFunc func(ctx context.Context, chunk string, chunkIndex int, usedKeys []string) (*domain.Template, error)

func (f extractorFunc) ExtractChunk(ctx context.Context, chunk string, chunkIndex int, usedKeys []string) (*domain.Template, error) {
	return f(ctx, chunk, chunkIndex, usedKeys)
}

// fragment returns a one-placeholder fragment for chunkIndex.
func fragment(key, raw string, chunkIndex int) *domain.Template {
	ctx := &domain.PlaceholderContext{ChunkIndex: chunkIndex, OriginalRaw: raw}
	node := domain.PlaceholderNode(key, raw)
	node.Context = &domain.PlaceholderContext{ChunkIndex: chunkIndex, OriginalRaw: raw}
	return &domain.Template{
		ContentNodes: []domain.ContentNode{node},
		Placeholders: []domain.Placeholder{{
			Key: key, Raw: raw, Type: domain.PlaceholderTypeString, Required: true, Context: ctx,
		}},
	}
}

// chunkedText returns n paragraphs that each become one chunk at maxChunk.
func chunkedText(n int) string {
	paras := make([]string, n)
	for i := range paras {
		paras[i] = "chunk-0" + string(rune('0'+i))
	}
	return strings.Join(paras, "\n\n")
}

const maxChunk = 10

func strPtr(s string) *string { return &s }

func buildDocx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	var body strings.Builder
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t xml:space="preserve">` + p + `</w:t></w:r></w:p>`)
	}
	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, part := range []struct{ name, content string }{
		{"[Content_Types].xml", `<Types/>`},
		{"word/document.xml", doc},
	} {
		f, err := w.Create(part.name)
		require.NoError(t, err)
		_, err = f.Write([]byte(part.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}
