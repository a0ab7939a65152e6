package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medparse/internal/domain"
	"medparse/internal/port"
)

// MockVisionParser is a mock implementation of port.VisionParser.
type MockVisionParser struct {
	mock.Mock
}

func (m *MockVisionParser) Descriptor() domain.ParserDescriptor {
	args := m.Called()
	return args.Get(0).(domain.ParserDescriptor)
}

func (m *MockVisionParser) Models(ctx context.Context, opts port.BackendOptions) ([]domain.ParserModel, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ParserModel), args.Error(1)
}

func (m *MockVisionParser) HealthCheck(ctx context.Context, model string, opts port.BackendOptions) error {
	args := m.Called(ctx, model, opts)
	return args.Error(0)
}

func (m *MockVisionParser) Complete(ctx context.Context, req port.VisionRequest) ([]byte, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
