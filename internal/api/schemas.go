package api

import (
	"time"

	"github.com/clipforge/clipforge-agent/internal/compose"
	"github.com/clipforge/clipforge-agent/internal/segment"
	"github.com/clipforge/clipforge-agent/internal/session"
	"github.com/clipforge/clipforge-agent/internal/store"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State        string             `json:"state"`
	LastError    string             `json:"last_error,omitempty"`
	Video        *session.Video     `json:"video,omitempty"`
	SegmentCount int                `json:"segment_count"`
	QueueCount   int                `json:"queue_count"`
	HasArtifact  bool               `json:"has_artifact"`
	ActiveRunID  string             `json:"active_run_id,omitempty"`
	Toolchain    *ToolchainResponse `json:"toolchain,omitempty"`
}

type ToolchainResponse struct {
	HasFFmpeg     bool   `json:"has_ffmpeg"`
	HasFFprobe    bool   `json:"has_ffprobe"`
	HasWhisper    bool   `json:"has_whisper"`
	CanCompose    bool   `json:"can_compose"`
	CanTranscribe bool   `json:"can_transcribe"`
	ProbedAt      string `json:"probed_at,omitempty"`
}

type UploadResponse struct {
	Video *session.Video `json:"video"`
}

type SegmentsResponse struct {
	Segments []segment.Segment `json:"segments"`
}

type QueueResponse struct {
	Items        []segment.Segment `json:"items"`
	SelectedText string            `json:"selected_text"`
}

type EnqueueRequest struct {
	SegmentID string `json:"segment_id"`
}

type ComposeResponse struct {
	State string `json:"state"`
}

type ProgressResponse struct {
	Events []compose.Event `json:"events"`
}

type ExportRequest struct {
	Title     string  `json:"title,omitempty"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type RunResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	VideoName    string `json:"video_name,omitempty"`
	SegmentCount int    `json:"segment_count"`
	DurationMs   int64  `json:"duration_ms"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func RunToResponse(run *store.Run) RunResponse {
	return RunResponse{
		ID:           run.ID,
		Type:         run.Type,
		Status:       run.Status,
		VideoName:    run.VideoName,
		SegmentCount: run.SegmentCount,
		DurationMs:   run.DurationMs,
		ArtifactPath: run.ArtifactPath,
		Error:        run.Error,
		CreatedAt:    run.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    run.UpdatedAt.Format(time.RFC3339),
	}
}
