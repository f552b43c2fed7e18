package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"docfill/internal/domain"
	"docfill/internal/port"
)

// claimLease is how long a claimed document is hidden from other workers.
const claimLease = 5 * time.Minute

const documentColumns = `id, filename, mime_type, original_key, filled_key, template,
	processing_status, processing_progress, processing_total_chunks, processing_next_chunk,
	processing_error, created_at, updated_at`

type documentRepo struct {
	db *sqlx.DB
}

// NewDocumentRepo creates a new PostgreSQL-backed DocumentRepository.
func NewDocumentRepo(db *sqlx.DB) port.DocumentRepository {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	query := `INSERT INTO documents (
		id, filename, mime_type, original_key, filled_key, template, plain_text,
		processing_status, processing_progress, processing_total_chunks, processing_next_chunk,
		processing_error, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7,
		$8, $9, $10, $11,
		$12, $13, $14
	)`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.Filename, doc.MimeType, doc.OriginalKey, doc.FilledKey, doc.Template, doc.PlainText,
		doc.ProcessingStatus, doc.ProcessingProgress, doc.ProcessingTotalChunks, doc.ProcessingNextChunk,
		doc.ProcessingError, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("documentRepo.Create: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, docID uuid.UUID, includePlainText bool) (*domain.Document, error) {
	columns := documentColumns
	if includePlainText {
		columns += ", plain_text"
	}
	var doc domain.Document
	err := r.db.GetContext(ctx, &doc,
		"SELECT "+columns+" FROM documents WHERE id = $1", docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("documentRepo.GetByID: %w", err)
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM documents"); err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List count: %w", err)
	}

	docs := []domain.Document{}
	err := r.db.SelectContext(ctx, &docs,
		"SELECT "+documentColumns+` FROM documents
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("documentRepo.List: %w", err)
	}
	return docs, total, nil
}

func (r *documentRepo) UpdateTemplate(ctx context.Context, docID uuid.UUID, tmpl domain.Template, update domain.ProcessingUpdate) (*domain.Document, error) {
	sets, args := setClauses(update)
	args = append(args, tmpl)
	sets = append(sets, fmt.Sprintf("template = $%d", len(args)))
	return r.update(ctx, "documentRepo.UpdateTemplate", docID, sets, args)
}

func (r *documentRepo) UpdateProcessingState(ctx context.Context, docID uuid.UUID, update domain.ProcessingUpdate) (*domain.Document, error) {
	if update.IsEmpty() {
		return r.GetByID(ctx, docID, false)
	}
	sets, args := setClauses(update)
	return r.update(ctx, "documentRepo.UpdateProcessingState", docID, sets, args)
}

// update runs a single UPDATE ... RETURNING so the write and the returned row are one atomic step.
func (r *documentRepo) update(ctx context.Context, op string, docID uuid.UUID, sets []string, args []interface{}) (*domain.Document, error) {
	args = append(args, time.Now().UTC())
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, docID)

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), documentColumns)

	var doc domain.Document
	if err := r.db.GetContext(ctx, &doc, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &doc, nil
}

func setClauses(u domain.ProcessingUpdate) ([]string, []interface{}) {
	var sets []string
	var args []interface{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if u.Status != nil {
		add("processing_status", *u.Status)
	}
	if u.Progress != nil {
		add("processing_progress", *u.Progress)
	}
	if u.TotalChunks != nil {
		add("processing_total_chunks", *u.TotalChunks)
	}
	if u.NextChunk != nil {
		add("processing_next_chunk", *u.NextChunk)
	}
	if u.Error != nil {
		add("processing_error", *u.Error)
	} else if u.ClearError {
		sets = append(sets, "processing_error = NULL")
	}
	if u.ClearPlainText {
		sets = append(sets, "plain_text = NULL")
	}
	if u.OriginalKey != nil {
		add("original_key", *u.OriginalKey)
	}
	if u.FilledKey != nil {
		add("filled_key", *u.FilledKey)
	}
	return sets, args
}

func (r *documentRepo) ClaimProcessable(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids,
		`UPDATE documents SET claimed_at = NOW()
		 WHERE id IN (
			SELECT id FROM documents
			WHERE processing_status IN ('pending', 'processing')
			  AND (claimed_at IS NULL OR claimed_at < NOW() - $2::interval)
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id`,
		limit, fmt.Sprintf("%d seconds", int(claimLease.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("documentRepo.ClaimProcessable: %w", err)
	}
	return ids, nil
}

func (r *documentRepo) ReleaseClaim(ctx context.Context, docID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE documents SET claimed_at = NULL WHERE id = $1", docID)
	if err != nil {
		return fmt.Errorf("documentRepo.ReleaseClaim: %w", err)
	}
	return nil
}

func (r *documentRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
