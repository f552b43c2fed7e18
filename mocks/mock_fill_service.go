package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docfill/internal/service"
)

// MockFillService is a mock implementation of service.FillService.
type MockFillService struct {
	mock.Mock
}

func (m *MockFillService) Converse(ctx context.Context, docID uuid.UUID, message string) (*service.ChatResult, error) {
	args := m.Called(ctx, docID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ChatResult), args.Error(1)
}
