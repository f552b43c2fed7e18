package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"docfill/internal/chunker"
	"docfill/internal/config"
	"docfill/internal/docx"
	"docfill/internal/domain"
	"docfill/internal/export"
	"docfill/internal/port"
	"docfill/internal/template"
)

// Download variants accepted by GetDownloadURL.
const (
	VariantOriginal = "original"
	VariantFilled   = "filled"
)

// Export formats accepted by ExportPlaceholders.
const (
	ExportFormatXLSX = "xlsx"
	ExportFormatCSV  = "csv"
)

// UploadInput is the DTO for template upload requests.
type UploadInput struct {
	File     io.Reader
	Filename string
	Size     int64
}

// ExportFile is a rendered placeholder export ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentService defines the document management contract.
type DocumentService interface {
	Upload(ctx context.Context, input UploadInput) (*domain.Document, error)
	GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	List(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	ProcessNextBatch(ctx context.Context, docID uuid.UUID) (*BatchResult, error)
	RetryProcessing(ctx context.Context, docID uuid.UUID) (*domain.Document, error)
	UpdatePlaceholders(ctx context.Context, docID uuid.UUID, updates map[string]string) (*domain.Document, error)
	GetDownloadURL(ctx context.Context, docID uuid.UUID, variant string) (string, error)
	ExportPlaceholders(ctx context.Context, docID uuid.UUID, format string) (*ExportFile, error)
}

type documentService struct {
	repo        port.DocumentRepository
	storage     port.ObjectStorage
	processor   *Processor
	regenerator *Regenerator
	s3Cfg       *config.S3Config
	procCfg     *config.ProcessingConfig
}

// NewDocumentService creates a new DocumentService implementation.
func NewDocumentService(
	repo port.DocumentRepository,
	storage port.ObjectStorage,
	processor *Processor,
	regenerator *Regenerator,
	s3Cfg *config.S3Config,
	procCfg *config.ProcessingConfig,
) DocumentService {
	return &documentService{
		repo:        repo,
		storage:     storage,
		processor:   processor,
		regenerator: regenerator,
		s3Cfg:       s3Cfg,
		procCfg:     procCfg,
	}
}

func (s *documentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	if input.File == nil || input.Filename == "" {
		return nil, domain.ErrMissingFile
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(input.Filename), "."))
	mimeType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return nil, domain.ErrUnsupportedFileType
	}

	maxBytes := s.s3Cfg.MaxFileSizeMB * 1024 * 1024
	if input.Size > maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	// Read one byte past the limit so an understated Size is still caught.
	data, err := io.ReadAll(io.LimitReader(input.File, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.ErrFileTooLarge
	}
	if len(data) == 0 {
		return nil, domain.ErrMissingFile
	}

	// A .docx is a zip container.
	if detected := http.DetectContentType(data); detected != "application/zip" {
		log.Printf("documentService.Upload: rejected %q with detected type %s", input.Filename, detected)
		return nil, domain.ErrUnsupportedFileType
	}

	text, err := docx.ExtractText(data)
	if err != nil {
		log.Printf("documentService.Upload: extracting text from %q: %v", input.Filename, err)
		return nil, domain.ErrInvalidDocument
	}

	docID := uuid.New()
	filename := filepath.Base(input.Filename)
	key := originalObjectKey(docID, filename)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.s3Cfg.Bucket,
		Key:         key,
		Body:        bytes.NewReader(data),
		ContentType: mimeType,
		Size:        int64(len(data)),

		DownloadName: filename,
	}); err != nil {
		log.Printf("documentService.Upload: storing original %s: %v", key, err)
		return nil, domain.ErrUploadFailed
	}

	chunks := chunker.Split(text, s.procCfg.MaxChunkLength)
	doc := &domain.Document{
		ID:                    docID,
		Filename:              filename,
		MimeType:              mimeType,
		OriginalKey:           key,
		Template:              domain.EmptyTemplate(),
		ProcessingStatus:      domain.ProcessingStatusPending,
		ProcessingTotalChunks: len(chunks),
	}
	if len(chunks) == 0 {
		doc.ProcessingStatus = domain.ProcessingStatusReady
		doc.ProcessingProgress = 100
	} else {
		doc.PlainText = &text
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(ctx, s.s3Cfg.Bucket, key); delErr != nil {
			log.Printf("documentService.Upload: cleaning up %s: %v", key, delErr)
		}
		return nil, fmt.Errorf("creating document: %w", err)
	}
	log.Printf("documentService.Upload: document %s created with %d chunks", doc.ID, len(chunks))

	if len(chunks) != 1 {
		return doc, nil
	}

	res, err := s.processor.ProcessNextBatch(ctx, doc.ID, 1)
	if err != nil {
		return nil, err
	}
	if res.Document == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return res.Document, nil
}

func (s *documentService) GetByID(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	return s.repo.GetByID(ctx, docID, false)
}

func (s *documentService) List(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	return s.repo.List(ctx, offset, limit)
}

func (s *documentService) ProcessNextBatch(ctx context.Context, docID uuid.UUID) (*BatchResult, error) {
	res, err := s.processor.ProcessNextBatch(ctx, docID, s.procCfg.BatchSize)
	if err != nil {
		return nil, err
	}
	if res.Status == BatchStatusMissing {
		return nil, domain.ErrDocumentNotFound
	}
	return res, nil
}

func (s *documentService) RetryProcessing(ctx context.Context, docID uuid.UUID) (*domain.Document, error) {
	doc, err := s.repo.GetByID(ctx, docID, false)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus != domain.ProcessingStatusFailed {
		return nil, domain.ErrDocumentNotFailed
	}

	status := domain.ProcessingStatusProcessing
	updated, err := s.repo.UpdateProcessingState(ctx, docID, domain.ProcessingUpdate{
		Status:     &status,
		ClearError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("resetting document %s: %w", docID, err)
	}
	log.Printf("documentService.RetryProcessing: document %s resumes at chunk %d", docID, updated.ProcessingNextChunk)
	return updated, nil
}

func (s *documentService) UpdatePlaceholders(ctx context.Context, docID uuid.UUID, updates map[string]string) (*domain.Document, error) {
	if len(updates) == 0 || !template.HasAnyValue(updates) {
		return nil, domain.ErrInvalidUpdate
	}

	doc, err := s.repo.GetByID(ctx, docID, false)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus != domain.ProcessingStatusReady {
		return nil, domain.ErrDocumentNotReady
	}
	if unknown := template.UnknownKeys(doc.Template, updates); len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPlaceholder, strings.Join(unknown, ", "))
	}

	tmpl := template.ApplyUpdates(doc.Template, updates)
	updated, err := s.repo.UpdateTemplate(ctx, docID, tmpl, domain.ProcessingUpdate{})
	if err != nil {
		return nil, fmt.Errorf("saving placeholder values: %w", err)
	}

	// Values stand even when rendering fails; the next update retries it.
	filled, err := s.regenerator.Regenerate(ctx, updated, tmpl)
	if err != nil {
		log.Printf("documentService.UpdatePlaceholders: regenerating %s: %v", docID, err)
		return updated, nil
	}
	if filled != nil {
		return filled, nil
	}
	return updated, nil
}

func (s *documentService) GetDownloadURL(ctx context.Context, docID uuid.UUID, variant string) (string, error) {
	if variant == "" {
		variant = VariantOriginal
	}
	if variant != VariantOriginal && variant != VariantFilled {
		return "", domain.ErrInvalidVariant
	}

	doc, err := s.repo.GetByID(ctx, docID, false)
	if err != nil {
		return "", err
	}

	key := doc.OriginalKey
	if variant == VariantFilled {
		if doc.FilledKey == nil || *doc.FilledKey == "" {
			return "", domain.ErrNoFilledDocument
		}
		key = *doc.FilledKey
	}

	url, err := s.storage.GetPresignedURL(ctx, s.s3Cfg.Bucket, key, s.s3Cfg.PresignExpiry)
	if err != nil {
		return "", fmt.Errorf("presigning %s: %w", key, err)
	}
	return url, nil
}

func (s *documentService) ExportPlaceholders(ctx context.Context, docID uuid.UUID, format string) (*ExportFile, error) {
	if format == "" {
		format = ExportFormatXLSX
	}
	if format != ExportFormatXLSX && format != ExportFormatCSV {
		return nil, domain.ErrInvalidExportFormat
	}

	doc, err := s.repo.GetByID(ctx, docID, false)
	if err != nil {
		return nil, err
	}
	if doc.ProcessingStatus != domain.ProcessingStatusReady {
		return nil, domain.ErrDocumentNotReady
	}

	out := &ExportFile{Filename: export.BuildFilename(doc.Filename, format)}
	switch format {
	case ExportFormatCSV:
		var buf bytes.Buffer
		buf.Write(export.BOM)
		w := export.NewCSVWriter(&buf)
		if err := w.WriteHeader(); err != nil {
			return nil, fmt.Errorf("writing csv header: %w", err)
		}
		if err := w.WritePlaceholders(doc.Template.Placeholders); err != nil {
			return nil, fmt.Errorf("writing csv rows: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return nil, fmt.Errorf("flushing csv: %w", err)
		}
		out.ContentType = "text/csv; charset=utf-8"
		out.Data = buf.Bytes()
	default:
		data, err := export.WriteXLSX(doc.Template.Placeholders)
		if err != nil {
			return nil, fmt.Errorf("writing xlsx: %w", err)
		}
		out.ContentType = export.ContentTypeXLSX
		out.Data = data
	}
	return out, nil
}
