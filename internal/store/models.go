// Package store persists agent configuration and run history in SQLite.
// Session contents (video, segments, queue) are deliberately in-memory
// only; the store carries what must survive a restart.
package store

import "time"

const (
	RunTypeAnalyze = "analyze"
	RunTypeCompose = "compose"

	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run records one analysis or composition attempt for diagnostics.
type Run struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	VideoName    string    `json:"video_name,omitempty"`
	SegmentCount int       `json:"segment_count"`
	DurationMs   int64     `json:"duration_ms"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ConfigEntry is one persisted key/value pair.
type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
