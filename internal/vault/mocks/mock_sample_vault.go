package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

type MockSampleVault struct {
	mock.Mock
}

func (m *MockSampleVault) Archive(ctx context.Context, sha256, storedName string, r io.Reader, size int64) error {
	args := m.Called(ctx, sha256, storedName, r, size)
	return args.Error(0)
}
