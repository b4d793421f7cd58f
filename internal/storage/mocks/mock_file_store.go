package mocks

import (
	"context"
	"io"

	"scanapi/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) SaveUpload(ctx context.Context, originalName string, r io.Reader) (storage.SavedFile, error) {
	args := m.Called(ctx, originalName, r)
	if f, ok := args.Get(0).(func(context.Context, string, io.Reader) storage.SavedFile); ok {
		return f(ctx, originalName, r), args.Error(1)
	}
	return args.Get(0).(storage.SavedFile), args.Error(1)
}

func (m *MockFileStore) Remove(path string) error {
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockFileStore) Quarantine(storedName, currentPath string) (string, error) {
	args := m.Called(storedName, currentPath)
	return args.String(0), args.Error(1)
}
