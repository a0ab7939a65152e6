package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medparse/internal/domain"
	"medparse/internal/pipeline"
)

// MockPipelineService is a mock implementation of pipeline.Service.
type MockPipelineService struct {
	mock.Mock
}

func (m *MockPipelineService) ParseHealthData(ctx context.Context, req pipeline.Request) (*domain.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Result), args.Error(1)
}
