package model

import "time"

// ScanStatus is the lifecycle state of a scan. Transitions are forward-only:
// scanning -> completed or scanning -> failed.
type ScanStatus string

const (
	StatusScanning  ScanStatus = "scanning"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s ScanStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Severity of a detected threat.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// FileHashes holds the digests computed from the uploaded byte stream.
// SHA256 is the authoritative deduplication key; MD5 and SHA1 are retained
// for interoperability with external reputation services.
type FileHashes struct {
	MD5    string `json:"md5"`
	SHA1   string `json:"sha1"`
	SHA256 string `json:"sha256"`
}

// SignatureMatch is one signature-level piece of evidence in a verdict.
type SignatureMatch struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Confidence int    `json:"confidence"`
}

// BehaviorReport groups behavioral evidence buckets. All lists may be empty;
// for clean verdicts they must be.
type BehaviorReport struct {
	SuspiciousActivities []string `json:"suspicious_activities"`
	NetworkConnections   []string `json:"network_connections"`
	FileModifications    []string `json:"file_modifications"`
	RegistryChanges      []string `json:"registry_changes"`
}

// ScanResult is the verdict produced by the detection engine for one file.
type ScanResult struct {
	IsInfected       bool             `json:"is_infected"`
	MalwareType      string           `json:"malware_type,omitempty"`
	MalwareName      string           `json:"malware_name,omitempty"`
	Severity         Severity         `json:"severity"`
	Confidence       int              `json:"confidence"`
	Analysis         string           `json:"analysis"`
	DetectionMethods []string         `json:"detection_methods"`
	Signatures       []SignatureMatch `json:"signatures"`
	Behavior         BehaviorReport   `json:"behavior"`
	SuggestedActions []string         `json:"suggested_actions"`
}

// ScanRecord tracks one file's upload-through-verdict lifecycle.
// FilePath is mutable: it moves from the uploads area to the quarantine area
// once an infected verdict has been written. There is a short window where
// the verdict is visible but the file has not been relocated yet.
type ScanRecord struct {
	ID             string      `json:"id"`
	OwnerID        string      `json:"owner_id"`
	StoredName     string      `json:"stored_name"`
	OriginalName   string      `json:"original_name"`
	FileSize       int64       `json:"file_size"`
	MimeType       string      `json:"mime_type"`
	FilePath       string      `json:"file_path"`
	Hashes         FileHashes  `json:"hashes"`
	Status         ScanStatus  `json:"status"`
	Result         *ScanResult `json:"result,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	ScanDurationMs int64       `json:"scan_duration_ms"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// ScanStats is the per-owner aggregate over a time window.
type ScanStats struct {
	TotalUploads  int   `json:"total_uploads"`
	TotalSize     int64 `json:"total_size"`
	InfectedFiles int   `json:"infected_files"`
	CleanFiles    int   `json:"clean_files"`
	AvgScanTimeMs int64 `json:"avg_scan_time_ms"`
}
