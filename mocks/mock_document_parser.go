package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medparse/internal/domain"
	"medparse/internal/port"
)

// MockDocumentParser is a mock implementation of port.DocumentParser.
type MockDocumentParser struct {
	mock.Mock
}

func (m *MockDocumentParser) Descriptor() domain.ParserDescriptor {
	args := m.Called()
	return args.Get(0).(domain.ParserDescriptor)
}

func (m *MockDocumentParser) Models(ctx context.Context) ([]domain.ParserModel, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ParserModel), args.Error(1)
}

func (m *MockDocumentParser) OCR(ctx context.Context, blob port.Blob, opts port.DocumentOptions) (*domain.OCRModel, error) {
	args := m.Called(ctx, blob, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.OCRModel), args.Error(1)
}

func (m *MockDocumentParser) Parse(ctx context.Context, blob port.Blob, opts port.DocumentOptions) (string, error) {
	args := m.Called(ctx, blob, opts)
	return args.String(0), args.Error(1)
}
