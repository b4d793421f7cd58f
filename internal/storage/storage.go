package storage

import (
	"context"
	"io"
)

// Package storage contains the local filesystem areas the scan pipeline works
// on: a general uploads area for pending/clean files and an isolated
// quarantine area for confirmed-infected files. Both are created lazily.

// SavedFile describes a file that has been written to the uploads area.
type SavedFile struct {
	// StoredName is the generated on-disk name (uniqueness prefix + original name).
	StoredName string
	// Path is the absolute location of the bytes.
	Path string
	// Size is the number of bytes written.
	Size int64
}

// FileStore is the storage-location provider for the pipeline. Tests redirect
// it to temporary directories instead of the configured areas.
type FileStore interface {
	// SaveUpload streams r into the uploads area under a collision-free name
	// derived from originalName. On write error the partial file is removed.
	SaveUpload(ctx context.Context, originalName string, r io.Reader) (SavedFile, error)

	// Remove deletes a file by path. Missing files are not an error.
	Remove(path string) error

	// Quarantine relocates the file at currentPath into the quarantine area,
	// preserving storedName. It is idempotent: if the file was already moved,
	// the quarantine path is returned without further action.
	Quarantine(storedName, currentPath string) (string, error)
}
