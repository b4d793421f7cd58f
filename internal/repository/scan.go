package repository

import (
	"context"
	"errors"
	"time"

	"scanapi/internal/model"
)

// ErrNoTransition is returned when a result update targets a record that is
// no longer in the scanning state. Status moves forward only.
var ErrNoTransition = errors.New("scan is not in scanning state")

// ScanRepository defines data access for scan records. All operations are
// scoped by owner where they read; the pipeline never touches records
// belonging to a different owner. No business logic here, strictly
// persistence operations.
type ScanRepository interface {
	// Create inserts a new scan record and returns the stored row.
	Create(ctx context.Context, rec *model.ScanRecord) (*model.ScanRecord, error)

	// FindByID returns one record owned by ownerID. sql.ErrNoRows when absent.
	FindByID(ctx context.Context, ownerID, id string) (*model.ScanRecord, error)

	// FindByOwnerAndHash returns the most recent record matching the owner and
	// authoritative sha256 digest. sql.ErrNoRows when absent. This backs the
	// deduplication gate; under a racing double upload it is a best-effort
	// check, not a uniqueness guarantee.
	FindByOwnerAndHash(ctx context.Context, ownerID, sha256 string) (*model.ScanRecord, error)

	// UpdateResult writes the terminal state of a scan. It only applies while
	// the record is still scanning and returns ErrNoTransition otherwise.
	UpdateResult(ctx context.Context, id string, status model.ScanStatus, result *model.ScanResult, errorMessage string, durationMs int64) error

	// UpdateFilePath records the file's new location after a quarantine move.
	UpdateFilePath(ctx context.Context, id, path string) error

	// List returns a page of the owner's records, newest first, with a total count.
	List(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.ScanRecord], error)

	// Stats aggregates the owner's uploads since the given time.
	Stats(ctx context.Context, ownerID string, since time.Time) (*model.ScanStats, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
