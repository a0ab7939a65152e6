package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"medparse/internal/port"
)

// MockObjectStorage is a mock implementation of port.ObjectStorage.
type MockObjectStorage struct {
	mock.Mock
}

var _ port.ObjectStorage = (*MockObjectStorage)(nil)

func (m *MockObjectStorage) Put(ctx context.Context, obj port.PageObject) (*port.StoredObject, error) {
	args := m.Called(ctx, obj)
	stored, _ := args.Get(0).(*port.StoredObject)
	return stored, args.Error(1)
}

func (m *MockObjectStorage) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	args := m.Called(ctx, bucket, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockObjectStorage) Delete(ctx context.Context, bucket, key string) error {
	return m.Called(ctx, bucket, key).Error(0)
}

func (m *MockObjectStorage) PresignGet(ctx context.Context, bucket, key string, expirySeconds int64) (string, error) {
	args := m.Called(ctx, bucket, key, expirySeconds)
	return args.String(0), args.Error(1)
}
