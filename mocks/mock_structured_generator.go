package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docfill/internal/port"
)

// MockStructuredGenerator is a mock implementation of port.StructuredGenerator.
type MockStructuredGenerator struct {
	mock.Mock
}

func (m *MockStructuredGenerator) Generate(ctx context.Context, input port.GenerateInput) (*port.GenerateOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.GenerateOutput), args.Error(1)
}
