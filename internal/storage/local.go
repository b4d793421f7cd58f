package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"scanapi/internal/config"
)

// localStore implements FileStore on top of two local directories.
// It is safe for concurrent use; directory creation tolerates races
// (already-exists is not an error for os.MkdirAll).
type localStore struct {
	uploadDir     string
	quarantineDir string
}

// NewLocal creates a FileStore over the configured uploads and quarantine
// directories. Directories are resolved to absolute paths so records carry
// stable locations.
func NewLocal(cfg config.StorageConfig) (FileStore, error) {
	if cfg.UploadDir == "" || cfg.QuarantineDir == "" {
		return nil, fmt.Errorf("upload and quarantine directories are required")
	}
	up, err := filepath.Abs(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	qd, err := filepath.Abs(cfg.QuarantineDir)
	if err != nil {
		return nil, fmt.Errorf("resolve quarantine dir: %w", err)
	}
	return &localStore{uploadDir: up, quarantineDir: qd}, nil
}

// uniqueName prefixes the original filename with a timestamp and a random
// suffix so concurrent uploads sharing a name never collide.
func uniqueName(originalName string) string {
	base := filepath.Base(originalName)
	if base == "." || base == string(filepath.Separator) {
		base = "upload"
	}
	return fmt.Sprintf("%d-%d-%s", time.Now().UnixMilli(), rand.Int63n(1e9), base)
}

func (s *localStore) SaveUpload(ctx context.Context, originalName string, r io.Reader) (SavedFile, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return SavedFile{}, fmt.Errorf("ensure upload dir: %w", err)
	}

	name := uniqueName(originalName)
	path := filepath.Join(s.uploadDir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return SavedFile{}, fmt.Errorf("create upload file: %w", err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		// Do not leave partially written bytes behind.
		_ = os.Remove(path)
		return SavedFile{}, fmt.Errorf("write upload file: %w", err)
	}

	return SavedFile{StoredName: name, Path: path, Size: n}, nil
}

func (s *localStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

func (s *localStore) Quarantine(storedName, currentPath string) (string, error) {
	dest := filepath.Join(s.quarantineDir, storedName)

	// Already relocated by an earlier attempt.
	if _, err := os.Stat(currentPath); errors.Is(err, os.ErrNotExist) {
		if _, derr := os.Stat(dest); derr == nil {
			return dest, nil
		}
		return "", fmt.Errorf("quarantine source missing: %s", currentPath)
	}

	if err := os.MkdirAll(s.quarantineDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure quarantine dir: %w", err)
	}

	if err := os.Rename(currentPath, dest); err != nil {
		// Rename fails across devices; fall back to copy + remove.
		if err := copyFile(currentPath, dest); err != nil {
			return "", fmt.Errorf("quarantine move: %w", err)
		}
		_ = os.Remove(currentPath)
	}
	return dest, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
