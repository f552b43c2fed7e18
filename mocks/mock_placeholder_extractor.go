package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docfill/internal/domain"
)

// MockPlaceholderExtractor is a mock implementation of port.PlaceholderExtractor.
type MockPlaceholderExtractor struct {
	mock.Mock
}

func (m *MockPlaceholderExtractor) ExtractChunk(ctx context.Context, chunk string, chunkIndex int, usedKeys []string) (*domain.Template, error) {
	args := m.Called(ctx, chunk, chunkIndex, usedKeys)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Template), args.Error(1)
}
