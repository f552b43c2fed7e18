package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docfill/internal/domain"
)

// MockDocumentRepo is a mock implementation of port.DocumentRepository.
type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, docID uuid.UUID, includePlainText bool) (*domain.Document, error) {
	args := m.Called(ctx, docID, includePlainText)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) List(ctx context.Context, offset, limit int) ([]domain.Document, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Document), args.Int(1), args.Error(2)
}

func (m *MockDocumentRepo) UpdateTemplate(ctx context.Context, docID uuid.UUID, tmpl domain.Template, update domain.ProcessingUpdate) (*domain.Document, error) {
	args := m.Called(ctx, docID, tmpl, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) UpdateProcessingState(ctx context.Context, docID uuid.UUID, update domain.ProcessingUpdate) (*domain.Document, error) {
	args := m.Called(ctx, docID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentRepo) ClaimProcessable(ctx context.Context, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockDocumentRepo) ReleaseClaim(ctx context.Context, docID uuid.UUID) error {
	args := m.Called(ctx, docID)
	return args.Error(0)
}

func (m *MockDocumentRepo) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
