package vault

import (
	"context"
	"io"
)

// Package vault archives quarantined malware samples to an off-box,
// S3-compatible object store so they survive host cleanup and remain
// available for later reanalysis. Archival is best-effort: failures are
// logged by the caller and never affect the scan verdict.

// SampleVault stores copies of confirmed-infected samples.
type SampleVault interface {
	// Archive uploads a sample under a key derived from its sha256 digest and
	// stored name. Re-archiving the same key overwrites the existing object,
	// which is harmless because content is addressed by digest.
	Archive(ctx context.Context, sha256, storedName string, r io.Reader, size int64) error
}
