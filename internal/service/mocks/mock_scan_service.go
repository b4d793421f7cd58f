package mocks

import (
	"context"
	"io"

	"scanapi/internal/model"
	"scanapi/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockScanService struct {
	mock.Mock
}

func (m *MockScanService) Submit(ctx context.Context, ownerID string, r io.Reader, originalName, contentType string) (*service.SubmitResult, error) {
	args := m.Called(ctx, ownerID, r, originalName, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SubmitResult), args.Error(1)
}

func (m *MockScanService) Get(ctx context.Context, ownerID, id string) (*model.ScanRecord, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanService) List(ctx context.Context, ownerID string, limit, offset int) (*service.ScanListResult, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ScanListResult), args.Error(1)
}

func (m *MockScanService) Stats(ctx context.Context, ownerID string, days int) (*model.ScanStats, error) {
	args := m.Called(ctx, ownerID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanStats), args.Error(1)
}
