package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"scanapi/internal/hash"
	"scanapi/internal/model"
	"scanapi/internal/repository"
	"scanapi/internal/storage"
)

var (
	ErrOwnerRequired = errors.New("owner id is required")
	ErrReaderNil     = errors.New("reader is nil")
	ErrNotFound      = errors.New("scan not found")
)

// Dispatcher schedules background analysis for a freshly created scan record.
// Dispatch must not block the caller; the HTTP response is sent before the
// verdict exists.
type Dispatcher interface {
	Dispatch(rec *model.ScanRecord)
}

// SubmitResult is the outcome of an upload. AlreadyScanned is set when the
// deduplication gate matched an earlier scan of identical content; Record
// then refers to that earlier scan and no new work was started.
type SubmitResult struct {
	Record         *model.ScanRecord
	AlreadyScanned bool
}

// ScanListResult is the service-level DTO for paginated scans.
type ScanListResult struct {
	Items []model.ScanRecord `json:"data"`
	Total int                `json:"total"`
}

// ScanService defines the use cases of the upload-and-scan pipeline.
type ScanService interface {
	// Submit stores the uploaded bytes, hashes them in the same pass, runs the
	// deduplication gate and either returns the existing scan or creates a new
	// record in scanning state and schedules its analysis.
	Submit(ctx context.Context, ownerID string, r io.Reader, originalName, contentType string) (*SubmitResult, error)

	// Get returns one of the owner's scans by ID.
	Get(ctx context.Context, ownerID, id string) (*model.ScanRecord, error)

	// List returns the owner's scans using limit/offset and a total count.
	List(ctx context.Context, ownerID string, limit, offset int) (*ScanListResult, error)

	// Stats aggregates the owner's uploads over the last N days.
	Stats(ctx context.Context, ownerID string, days int) (*model.ScanStats, error)
}

// scanService is a concrete implementation of ScanService.
type scanService struct {
	store      storage.FileStore
	repo       repository.ScanRepository
	dispatcher Dispatcher
}

// NewScanService constructs a new ScanService.
func NewScanService(store storage.FileStore, repo repository.ScanRepository, dispatcher Dispatcher) ScanService {
	return &scanService{store: store, repo: repo, dispatcher: dispatcher}
}

func (s *scanService) Submit(ctx context.Context, ownerID string, r io.Reader, originalName, contentType string) (*SubmitResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}

	// Stream to disk and hash in a single pass. The digests are computed
	// server-side from the full byte stream, never trusted from the client.
	hw := hash.NewWriter()
	saved, err := s.store.SaveUpload(ctx, originalName, io.TeeReader(r, hw))
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	hashes := hw.Sum()

	// Deduplication gate: identical content already scanned by this owner
	// short-circuits, and the redundant bytes are discarded. Two racing
	// uploads of the same content may both pass this check; that produces a
	// rare duplicate record, not a correctness violation.
	existing, err := s.repo.FindByOwnerAndHash(ctx, ownerID, hashes.SHA256)
	if err == nil {
		if rmErr := s.store.Remove(saved.Path); rmErr != nil {
			logEvent("warn", "dedup_cleanup_failed", map[string]any{"path": saved.Path, "error": rmErr.Error()})
		}
		return &SubmitResult{Record: existing, AlreadyScanned: true}, nil
	}
	if !isNoRows(err) {
		if rmErr := s.store.Remove(saved.Path); rmErr != nil {
			logEvent("warn", "upload_cleanup_failed", map[string]any{"path": saved.Path, "error": rmErr.Error()})
		}
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	now := time.Now().UTC()
	rec := &model.ScanRecord{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		StoredName:   saved.StoredName,
		OriginalName: originalName,
		FileSize:     saved.Size,
		MimeType:     contentType,
		FilePath:     saved.Path,
		Hashes:       hashes,
		Status:       model.StatusScanning,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		// Rollback: remove the stored bytes so no orphan file remains.
		if rmErr := s.store.Remove(saved.Path); rmErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, rmErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	// Fire-and-forget relative to the HTTP response: upload acceptance and
	// verdict computation are different transactions.
	s.dispatcher.Dispatch(stored)

	return &SubmitResult{Record: stored}, nil
}

// Get returns a scan by ID, scoped to its owner.
func (s *scanService) Get(ctx context.Context, ownerID, id string) (*model.ScanRecord, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	rec, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns paginated scans without exposing repository types.
func (s *scanService) List(ctx context.Context, ownerID string, limit, offset int) (*ScanListResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, ownerID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &ScanListResult{Items: res.Items, Total: res.Total}, nil
}

// Stats aggregates uploads over the last N days (default 30).
func (s *scanService) Stats(ctx context.Context, ownerID string, days int) (*model.ScanStats, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return s.repo.Stats(ctx, ownerID, since)
}
