package port

import (
	"context"

	"github.com/google/uuid"

	"docfill/internal/domain"
)

// DocumentRepository defines the contract for document persistence.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	// GetByID loads a document. PlainText is only populated when includePlainText is set.
	GetByID(ctx context.Context, docID uuid.UUID, includePlainText bool) (*domain.Document, error)
	List(ctx context.Context, offset, limit int) ([]domain.Document, int, error)
	// UpdateTemplate writes the template together with any lifecycle fields in one statement.
	UpdateTemplate(ctx context.Context, docID uuid.UUID, tmpl domain.Template, update domain.ProcessingUpdate) (*domain.Document, error)
	UpdateProcessingState(ctx context.Context, docID uuid.UUID, update domain.ProcessingUpdate) (*domain.Document, error)
	// ClaimProcessable leases pending or processing documents to the caller, skipping rows
	// locked or leased by other workers.
	ClaimProcessable(ctx context.Context, limit int) ([]uuid.UUID, error)
	ReleaseClaim(ctx context.Context, docID uuid.UUID) error
	Ping(ctx context.Context) error
}
