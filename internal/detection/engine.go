package detection

import (
	"context"

	"scanapi/internal/model"
)

// Engine produces an infection verdict for an uploaded file. This is the
// integration seam where a real detector plugs in; the rest of the pipeline
// depends only on this contract.
//
// Implementations must honor ctx cancellation and return within bounded time.
// A clean verdict carries the lowest severity and empty evidence buckets.
type Engine interface {
	Analyze(ctx context.Context, filePath string, hashes model.FileHashes) (*model.ScanResult, error)
}
