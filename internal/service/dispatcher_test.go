package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scanapi/internal/config"
	"scanapi/internal/model"
	"scanapi/internal/repository"
	repoMocks "scanapi/internal/repository/mocks"
	storeMocks "scanapi/internal/storage/mocks"
	vaultMocks "scanapi/internal/vault/mocks"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	result *model.ScanResult
	err    error
	delay  time.Duration
	panics bool
}

func (e *stubEngine) Analyze(ctx context.Context, filePath string, hashes model.FileHashes) (*model.ScanResult, error) {
	if e.panics {
		panic("engine exploded")
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return e.result, e.err
}

func testScannerConfig() config.ScannerConfig {
	return config.ScannerConfig{Workers: 1, QueueSize: 4, DetectionTimeoutSec: 30}
}

func scanningRecord() *model.ScanRecord {
	return &model.ScanRecord{
		ID:         "scan-1",
		OwnerID:    "owner-1",
		StoredName: "1700000000-42-evil.exe",
		FilePath:   "/data/uploads/1700000000-42-evil.exe",
		FileSize:   9,
		Hashes:     model.FileHashes{SHA256: "sha256hex"},
		Status:     model.StatusScanning,
	}
}

func TestDispatcherCleanVerdict(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	mStore := new(storeMocks.MockFileStore)
	engine := &stubEngine{result: &model.ScanResult{IsInfected: false, Severity: model.SeverityLow, Confidence: 90}}

	d, err := NewDispatcher(mRepo, engine, mStore, nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	mRepo.On("UpdateResult", mock.Anything, "scan-1", model.StatusCompleted,
		engine.result, "", mock.AnythingOfType("int64")).Return(nil)

	d.Dispatch(scanningRecord())
	d.Close()

	mRepo.AssertExpectations(t)
	// Clean files never move.
	mStore.AssertNotCalled(t, "Quarantine", mock.Anything, mock.Anything)
	mRepo.AssertNotCalled(t, "UpdateFilePath", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherInfectedVerdictQuarantines(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	mStore := new(storeMocks.MockFileStore)
	verdict := &model.ScanResult{IsInfected: true, MalwareType: "trojan", Severity: model.SeverityHigh, Confidence: 88}
	engine := &stubEngine{result: verdict}

	d, err := NewDispatcher(mRepo, engine, mStore, nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	rec := scanningRecord()
	dest := "/data/quarantine/" + rec.StoredName

	// Verdict write happens-before the move.
	mRepo.On("UpdateResult", mock.Anything, rec.ID, model.StatusCompleted, verdict, "", mock.AnythingOfType("int64")).Return(nil)
	mStore.On("Quarantine", rec.StoredName, rec.FilePath).Return(dest, nil)
	mRepo.On("UpdateFilePath", mock.Anything, rec.ID, dest).Return(nil)

	d.Dispatch(rec)
	d.Close()

	mRepo.AssertExpectations(t)
	mStore.AssertExpectations(t)
}

func TestDispatcherEngineErrorFailsRecord(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	mStore := new(storeMocks.MockFileStore)
	engine := &stubEngine{err: errors.New("model crashed")}

	d, err := NewDispatcher(mRepo, engine, mStore, nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	mRepo.On("UpdateResult", mock.Anything, "scan-1", model.StatusFailed,
		(*model.ScanResult)(nil), failedMessage, mock.AnythingOfType("int64")).Return(nil)

	d.Dispatch(scanningRecord())
	d.Close()

	mRepo.AssertExpectations(t)
	// File stays at its original path on failure.
	mStore.AssertNotCalled(t, "Quarantine", mock.Anything, mock.Anything)
}

func TestDispatcherPanicFailsRecord(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	engine := &stubEngine{panics: true}

	d, err := NewDispatcher(mRepo, engine, new(storeMocks.MockFileStore), nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	mRepo.On("UpdateResult", mock.Anything, "scan-1", model.StatusFailed,
		(*model.ScanResult)(nil), failedMessage, mock.AnythingOfType("int64")).Return(nil)

	d.Dispatch(scanningRecord())
	d.Close()

	mRepo.AssertExpectations(t)
}

func TestDispatcherTimeoutFailsRecord(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	engine := &stubEngine{delay: 5 * time.Second}

	cfg := testScannerConfig()
	cfg.DetectionTimeoutSec = 1

	d, err := NewDispatcher(mRepo, engine, new(storeMocks.MockFileStore), nil, cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	mRepo.On("UpdateResult", mock.Anything, "scan-1", model.StatusFailed,
		(*model.ScanResult)(nil), failedMessage, mock.AnythingOfType("int64")).Return(nil)

	start := time.Now()
	d.Dispatch(scanningRecord())
	d.Close()

	assert.Less(t, time.Since(start), 3*time.Second)
	mRepo.AssertExpectations(t)
}

func TestDispatcherQuarantineFailureKeepsVerdict(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	mStore := new(storeMocks.MockFileStore)
	verdict := &model.ScanResult{IsInfected: true, Severity: model.SeverityCritical, Confidence: 95}
	engine := &stubEngine{result: verdict}

	d, err := NewDispatcher(mRepo, engine, mStore, nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	rec := scanningRecord()
	mRepo.On("UpdateResult", mock.Anything, rec.ID, model.StatusCompleted, verdict, "", mock.AnythingOfType("int64")).Return(nil)
	mStore.On("Quarantine", rec.StoredName, rec.FilePath).Return("", errors.New("permission denied"))

	d.Dispatch(rec)
	d.Close()

	mRepo.AssertExpectations(t)
	// Move failed: path stays stale, verdict untouched.
	mRepo.AssertNotCalled(t, "UpdateFilePath", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatcherResultWriteFailureSkipsQuarantine(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	mStore := new(storeMocks.MockFileStore)
	verdict := &model.ScanResult{IsInfected: true, Severity: model.SeverityHigh, Confidence: 80}
	engine := &stubEngine{result: verdict}

	d, err := NewDispatcher(mRepo, engine, mStore, nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	rec := scanningRecord()
	mRepo.On("UpdateResult", mock.Anything, rec.ID, model.StatusCompleted, verdict, "", mock.AnythingOfType("int64")).
		Return(repository.ErrNoTransition)

	d.Dispatch(rec)
	d.Close()

	mStore.AssertNotCalled(t, "Quarantine", mock.Anything, mock.Anything)
}

func TestDispatcherArchivesInfectedSample(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	mStore := new(storeMocks.MockFileStore)
	mVault := new(vaultMocks.MockSampleVault)
	verdict := &model.ScanResult{IsInfected: true, Severity: model.SeverityHigh, Confidence: 85}
	engine := &stubEngine{result: verdict}

	d, err := NewDispatcher(mRepo, engine, mStore, mVault, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)

	// The vault reads the quarantined file from disk.
	dest := filepath.Join(t.TempDir(), "1700000000-42-evil.exe")
	require.NoError(t, os.WriteFile(dest, []byte("payload"), 0o644))

	rec := scanningRecord()
	mRepo.On("UpdateResult", mock.Anything, rec.ID, model.StatusCompleted, verdict, "", mock.AnythingOfType("int64")).Return(nil)
	mStore.On("Quarantine", rec.StoredName, rec.FilePath).Return(dest, nil)
	mRepo.On("UpdateFilePath", mock.Anything, rec.ID, dest).Return(nil)
	mVault.On("Archive", mock.Anything, rec.Hashes.SHA256, rec.StoredName, mock.Anything, rec.FileSize).Return(nil)

	d.Dispatch(rec)
	d.Close()

	mVault.AssertExpectations(t)
}

func TestDispatcherQueueOverflowStillProcesses(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	engine := &stubEngine{result: &model.ScanResult{IsInfected: false, Severity: model.SeverityLow, Confidence: 90}, delay: 10 * time.Millisecond}

	cfg := config.ScannerConfig{Workers: 1, QueueSize: 0, DetectionTimeoutSec: 30}
	d, err := NewDispatcher(mRepo, engine, new(storeMocks.MockFileStore), nil, cfg, prometheus.NewRegistry())
	require.NoError(t, err)

	mRepo.On("UpdateResult", mock.Anything, mock.Anything, model.StatusCompleted,
		engine.result, "", mock.AnythingOfType("int64")).Return(nil)

	for i := 0; i < 8; i++ {
		rec := scanningRecord()
		rec.ID = rec.ID + string(rune('a'+i))
		d.Dispatch(rec)
	}
	d.Close()

	mRepo.AssertNumberOfCalls(t, "UpdateResult", 8)
}

func TestDispatcherDispatchAfterCloseIsIgnored(t *testing.T) {
	mRepo := new(repoMocks.MockScanRepository)
	engine := &stubEngine{result: &model.ScanResult{Severity: model.SeverityLow}}

	d, err := NewDispatcher(mRepo, engine, new(storeMocks.MockFileStore), nil, testScannerConfig(), prometheus.NewRegistry())
	require.NoError(t, err)
	d.Close()

	d.Dispatch(scanningRecord())

	mRepo.AssertNotCalled(t, "UpdateResult", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
