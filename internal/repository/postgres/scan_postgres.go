package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"scanapi/internal/model"
	"scanapi/internal/repository"
)

// ScanPostgres is a PostgreSQL implementation of repository.ScanRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ScanPostgres struct {
	db *sql.DB
}

// NewScanPostgres creates a new ScanPostgres repository.
func NewScanPostgres(db *sql.DB) *ScanPostgres {
	return &ScanPostgres{db: db}
}

var _ repository.ScanRepository = (*ScanPostgres)(nil)

// IsNoRowsError reports whether err means no matching row was found.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

const scanColumns = `id, owner_id, stored_name, original_name, file_size, mime_type, file_path,
		md5, sha1, sha256, status, result, error_message, scan_duration_ms, created_at, updated_at`

func scanRow(row interface{ Scan(...any) error }) (*model.ScanRecord, error) {
	var (
		rec       model.ScanRecord
		resultRaw []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&rec.StoredName,
		&rec.OriginalName,
		&rec.FileSize,
		&rec.MimeType,
		&rec.FilePath,
		&rec.Hashes.MD5,
		&rec.Hashes.SHA1,
		&rec.Hashes.SHA256,
		&rec.Status,
		&resultRaw,
		&rec.ErrorMessage,
		&rec.ScanDurationMs,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(resultRaw) > 0 {
		var res model.ScanResult
		if err := json.Unmarshal(resultRaw, &res); err != nil {
			return nil, fmt.Errorf("decode scan result: %w", err)
		}
		rec.Result = &res
	}
	return &rec, nil
}

// Create inserts a new scan row and returns the stored record.
func (r *ScanPostgres) Create(ctx context.Context, rec *model.ScanRecord) (*model.ScanRecord, error) {
	const q = `
		INSERT INTO scans (id, owner_id, stored_name, original_name, file_size, mime_type, file_path,
			md5, sha1, sha256, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + scanColumns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.OwnerID,
		rec.StoredName,
		rec.OriginalName,
		rec.FileSize,
		rec.MimeType,
		rec.FilePath,
		rec.Hashes.MD5,
		rec.Hashes.SHA1,
		rec.Hashes.SHA256,
		rec.Status,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return scanRow(row)
}

// FindByID fetches a single record by ID, scoped to its owner.
func (r *ScanPostgres) FindByID(ctx context.Context, ownerID, id string) (*model.ScanRecord, error) {
	const q = `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE owner_id = $1 AND id = $2
	`
	return scanRow(r.db.QueryRowContext(ctx, q, ownerID, id))
}

// FindByOwnerAndHash fetches the owner's most recent record for a sha256 digest.
func (r *ScanPostgres) FindByOwnerAndHash(ctx context.Context, ownerID, sha256 string) (*model.ScanRecord, error) {
	const q = `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE owner_id = $1 AND sha256 = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanRow(r.db.QueryRowContext(ctx, q, ownerID, sha256))
}

// UpdateResult writes the terminal state. The WHERE clause restricts the
// update to records still in scanning state, which makes terminal states
// immutable at the store level.
func (r *ScanPostgres) UpdateResult(ctx context.Context, id string, status model.ScanStatus, result *model.ScanResult, errorMessage string, durationMs int64) error {
	var resultRaw any
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encode scan result: %w", err)
		}
		resultRaw = b
	}

	const q = `
		UPDATE scans
		SET status = $2, result = $3, error_message = $4, scan_duration_ms = $5, updated_at = $6
		WHERE id = $1 AND status = 'scanning'
	`
	res, err := r.db.ExecContext(ctx, q, id, status, resultRaw, errorMessage, durationMs, time.Now().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNoTransition
	}
	return nil
}

// UpdateFilePath records the new file location after a quarantine move.
func (r *ScanPostgres) UpdateFilePath(ctx context.Context, id, path string) error {
	const q = `UPDATE scans SET file_path = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, path, time.Now().UTC())
	return err
}

// List returns the owner's records using LIMIT/OFFSET pagination and a total count.
func (r *ScanPostgres) List(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.ScanRecord], error) {
	const qCount = `SELECT COUNT(*) FROM scans WHERE owner_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT ` + scanColumns + `
		FROM scans
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ScanRecord, 0)
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.ScanRecord]{Items: items, Total: total}, nil
}

// Stats aggregates the owner's uploads since the given time.
func (r *ScanPostgres) Stats(ctx context.Context, ownerID string, since time.Time) (*model.ScanStats, error) {
	const q = `
		SELECT COUNT(*),
			COALESCE(SUM(file_size), 0),
			COUNT(*) FILTER (WHERE (result->>'is_infected')::boolean),
			COALESCE(AVG(scan_duration_ms), 0)
		FROM scans
		WHERE owner_id = $1 AND created_at >= $2
	`
	var (
		stats   model.ScanStats
		avgTime float64
	)
	if err := r.db.QueryRowContext(ctx, q, ownerID, since).Scan(
		&stats.TotalUploads,
		&stats.TotalSize,
		&stats.InfectedFiles,
		&avgTime,
	); err != nil {
		return nil, err
	}
	stats.CleanFiles = stats.TotalUploads - stats.InfectedFiles
	stats.AvgScanTimeMs = int64(math.Round(avgTime))
	return &stats, nil
}
