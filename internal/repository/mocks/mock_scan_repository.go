package mocks

import (
	"context"
	"time"

	"scanapi/internal/model"
	"scanapi/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockScanRepository struct {
	mock.Mock
}

func (m *MockScanRepository) Create(ctx context.Context, rec *model.ScanRecord) (*model.ScanRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) FindByID(ctx context.Context, ownerID, id string) (*model.ScanRecord, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) FindByOwnerAndHash(ctx context.Context, ownerID, sha256 string) (*model.ScanRecord, error) {
	args := m.Called(ctx, ownerID, sha256)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanRecord), args.Error(1)
}

func (m *MockScanRepository) UpdateResult(ctx context.Context, id string, status model.ScanStatus, result *model.ScanResult, errorMessage string, durationMs int64) error {
	args := m.Called(ctx, id, status, result, errorMessage, durationMs)
	return args.Error(0)
}

func (m *MockScanRepository) UpdateFilePath(ctx context.Context, id, path string) error {
	args := m.Called(ctx, id, path)
	return args.Error(0)
}

func (m *MockScanRepository) List(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.ScanRecord], error) {
	args := m.Called(ctx, ownerID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.ScanRecord]), args.Error(1)
}

func (m *MockScanRepository) Stats(ctx context.Context, ownerID string, since time.Time) (*model.ScanStats, error) {
	args := m.Called(ctx, ownerID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ScanStats), args.Error(1)
}
