package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"scanapi/internal/config"
	"scanapi/internal/detection"
	"scanapi/internal/model"
	"scanapi/internal/repository"
	"scanapi/internal/storage"
	"scanapi/internal/vault"
)

// failedMessage is what clients see when analysis could not produce a
// verdict. Internal detail stays in the logs.
const failedMessage = "Analysis failed"

// writeTimeout bounds store updates performed after the analysis context
// has already expired.
const writeTimeout = 10 * time.Second

// AnalysisDispatcher runs detection off the HTTP request path. A bounded
// worker pool consumes a buffered queue; when the queue is full, the job is
// handed to a dedicated goroutine instead so a dispatch is never dropped and
// enqueueing never blocks the upload handler.
//
// Exactly one job is dispatched per created record, so per-record writes stay
// strictly sequential: create -> result update -> (conditional) path update.
type AnalysisDispatcher struct {
	repo    repository.ScanRepository
	engine  detection.Engine
	store   storage.FileStore
	vault   vault.SampleVault // nil disables sample archival
	timeout time.Duration

	jobs chan *model.ScanRecord
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool

	completed *prometheus.CounterVec
	failures  prometheus.Counter
	duration  prometheus.Histogram
}

var _ Dispatcher = (*AnalysisDispatcher)(nil)

// NewDispatcher starts the worker pool. Pass a nil vault to disable sample
// archival. Metrics are registered on reg; use a fresh registry in tests.
func NewDispatcher(
	repo repository.ScanRepository,
	engine detection.Engine,
	store storage.FileStore,
	sampleVault vault.SampleVault,
	cfg config.ScannerConfig,
	reg prometheus.Registerer,
) (*AnalysisDispatcher, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 0 {
		queueSize = 0
	}
	timeout := time.Duration(cfg.DetectionTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	d := &AnalysisDispatcher{
		repo:    repo,
		engine:  engine,
		store:   store,
		vault:   sampleVault,
		timeout: timeout,
		jobs:    make(chan *model.ScanRecord, queueSize),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scans_completed_total",
				Help: "Total number of scans that reached a completed verdict.",
			},
			[]string{"verdict"},
		),
		failures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "scan_failures_total",
				Help: "Total number of scans that ended in failed state.",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scan_duration_seconds",
				Help:    "Wall-clock time of detection engine analysis.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{d.completed, d.failures, d.duration} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register scan metrics: %w", err)
			}
		}
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for rec := range d.jobs {
				d.process(rec)
			}
		}()
	}

	return d, nil
}

// Dispatch schedules analysis for rec without blocking the caller.
func (d *AnalysisDispatcher) Dispatch(rec *model.ScanRecord) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logEvent("warn", "dispatch_after_close", map[string]any{"scan_id": rec.ID})
		return
	}
	select {
	case d.jobs <- rec:
		d.mu.Unlock()
	default:
		// Queue full: run supervised in its own goroutine rather than block
		// the upload path or drop the job.
		d.wg.Add(1)
		d.mu.Unlock()
		go func() {
			defer d.wg.Done()
			d.process(rec)
		}()
	}
}

// Close stops accepting jobs and waits for in-flight analyses to finish.
func (d *AnalysisDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

// process runs one analysis to a terminal state. Engine errors and panics
// both end with the record leaving the scanning state.
func (d *AnalysisDispatcher) process(rec *model.ScanRecord) {
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			logEvent("error", "scan_panic", map[string]any{"scan_id": rec.ID, "panic": fmt.Sprint(p)})
			d.finalizeFailed(rec, time.Since(start))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	result, err := d.engine.Analyze(ctx, rec.FilePath, rec.Hashes)
	elapsed := time.Since(start)
	d.duration.Observe(elapsed.Seconds())

	if err != nil || result == nil {
		if err == nil {
			err = fmt.Errorf("engine returned no verdict")
		}
		logEvent("error", "scan_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
		d.finalizeFailed(rec, elapsed)
		return
	}

	// The verdict write happens-before the quarantine move: a reader seeing
	// an infected verdict may still briefly observe the original file path.
	wctx, wcancel := context.WithTimeout(context.Background(), writeTimeout)
	defer wcancel()

	if err := d.repo.UpdateResult(wctx, rec.ID, model.StatusCompleted, result, "", elapsed.Milliseconds()); err != nil {
		logEvent("error", "scan_result_write_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
		return
	}

	verdict := "clean"
	if result.IsInfected {
		verdict = "infected"
	}
	d.completed.WithLabelValues(verdict).Inc()
	logEvent("info", "scan_completed", map[string]any{
		"scan_id":     rec.ID,
		"verdict":     verdict,
		"duration_ms": elapsed.Milliseconds(),
	})

	if result.IsInfected {
		d.quarantine(wctx, rec)
	}
}

// finalizeFailed terminates the record lifecycle after an analysis error so
// it is never left in scanning state. There is no automatic retry.
func (d *AnalysisDispatcher) finalizeFailed(rec *model.ScanRecord, elapsed time.Duration) {
	d.failures.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := d.repo.UpdateResult(ctx, rec.ID, model.StatusFailed, nil, failedMessage, elapsed.Milliseconds()); err != nil {
		logEvent("error", "scan_failure_write_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
	}
}

// quarantine relocates a confirmed-infected file and records the new path.
// Move failures are warnings: the verdict stands, the path stays stale.
func (d *AnalysisDispatcher) quarantine(ctx context.Context, rec *model.ScanRecord) {
	dest, err := d.store.Quarantine(rec.StoredName, rec.FilePath)
	if err != nil {
		logEvent("warn", "quarantine_move_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
		return
	}
	if err := d.repo.UpdateFilePath(ctx, rec.ID, dest); err != nil {
		logEvent("warn", "quarantine_path_write_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
	}
	logEvent("info", "scan_quarantined", map[string]any{"scan_id": rec.ID, "path": dest})

	d.archive(ctx, rec, dest)
}

// archive copies the quarantined sample to the off-box vault, best-effort.
func (d *AnalysisDispatcher) archive(ctx context.Context, rec *model.ScanRecord, path string) {
	if d.vault == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		logEvent("warn", "sample_archive_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
		return
	}
	defer f.Close()

	if err := d.vault.Archive(ctx, rec.Hashes.SHA256, rec.StoredName, f, rec.FileSize); err != nil {
		logEvent("warn", "sample_archive_failed", map[string]any{"scan_id": rec.ID, "error": err.Error()})
	}
}
