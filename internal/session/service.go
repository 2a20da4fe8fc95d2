package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clipforge/clipforge-agent/internal/analysis"
	"github.com/clipforge/clipforge-agent/internal/media"
	"github.com/clipforge/clipforge-agent/internal/segment"
	"github.com/clipforge/clipforge-agent/internal/store"
)

// ErrEmptyQueue is the local rejection for generating with nothing
// selected. It never transitions the machine.
var ErrEmptyQueue = errors.New("selection queue is empty")

// ErrNotReady is returned when an operation requires a state the
// session is not in.
var ErrNotReady = errors.New("session is not in the required state")

// ErrSegmentNotFound is returned when queueing an unknown segment ID.
var ErrSegmentNotFound = errors.New("segment not found")

// Video is the single source resource of a non-idle session.
type Video struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Path     string  `json:"-"`
	Size     int64   `json:"size"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// Composer runs one recording session over the selected segments.
type Composer interface {
	Compose(ctx context.Context, videoPath string, probe *media.ProbeResult, segments []segment.Segment) (string, error)
}

// Service owns the session: the machine, the video resource, the full
// segment set, the selection queue, and the output artifact. It is the
// only writer of all five.
type Service struct {
	machine  *Machine
	analyzer analysis.Analyzer
	composer Composer
	ffmpeg   media.FFmpeg
	repo     store.Repository
	logger   *slog.Logger

	uploadsDir   string
	artifactsDir string

	mu        sync.RWMutex
	video     *Video
	probe     *media.ProbeResult
	segments  []segment.Segment
	queue     *segment.Queue
	artifact  string
	activeRun string
}

func NewService(analyzer analysis.Analyzer, composer Composer, ffmpeg media.FFmpeg, repo store.Repository, uploadsDir, artifactsDir string, logger *slog.Logger) *Service {
	return &Service{
		machine:      NewMachine(),
		analyzer:     analyzer,
		composer:     composer,
		ffmpeg:       ffmpeg,
		repo:         repo,
		logger:       logger,
		uploadsDir:   uploadsDir,
		artifactsDir: artifactsDir,
		queue:        &segment.Queue{},
	}
}

// State returns the current session phase.
func (s *Service) State() State { return s.machine.State() }

// LastError returns the pending user-visible error, if any.
func (s *Service) LastError() string { return s.machine.LastError() }

// Video returns the active source resource, nil when idle.
func (s *Service) Video() *Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.video
}

// Segments returns a copy of the classified segment set.
func (s *Service) Segments() []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]segment.Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// QueueItems returns a copy of the selection queue in order.
func (s *Service) QueueItems() []segment.Segment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.Items()
}

// SelectedText projects the queued captions as newline-joined text.
func (s *Service) SelectedText() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue.SelectedText()
}

// ArtifactPath returns the finished output file, empty when none.
func (s *Service) ArtifactPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.artifact
}

// UploadVideo ingests a new source video and starts analysis. Any prior
// video, segments, queue, and artifact are discarded; a new upload
// supersedes everything, from any state.
func (s *Service) UploadVideo(ctx context.Context, name string, r io.Reader) (*Video, error) {
	if err := os.MkdirAll(s.uploadsDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create uploads dir: %w", err)
	}

	videoID := segment.NewID()
	path := filepath.Join(s.uploadsDir, videoID+filepath.Ext(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("cannot store upload: %w", err)
	}
	size, err := io.Copy(f, r)
	f.Close()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("upload interrupted: %w", err)
	}

	// Reset and the run token claim happen in one critical section so a
	// stale goroutine from an earlier run can never interleave between
	// them and apply its outcome to this session.
	runID := segment.NewID()
	s.mu.Lock()
	s.machine.Reset()
	s.discardResources()
	s.activeRun = runID
	s.mu.Unlock()

	probe, err := s.ffmpeg.Probe(ctx, path)
	if err != nil {
		os.Remove(path)
		s.mu.Lock()
		if s.activeRun == runID {
			s.activeRun = ""
			s.machine.Fail(StateIdle, fmt.Sprintf("source failed to load: %v", err))
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("source failed to load: %w", err)
	}

	video := &Video{
		ID:       videoID,
		Name:     filepath.Base(name),
		Path:     path,
		Size:     size,
		Duration: probe.Duration,
		Width:    probe.Width,
		Height:   probe.Height,
	}

	now := time.Now().UTC()
	s.recordRun(&store.Run{
		ID:        runID,
		Type:      store.RunTypeAnalyze,
		Status:    store.RunStatusRunning,
		VideoName: video.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})

	s.mu.Lock()
	if s.activeRun != runID {
		s.mu.Unlock()
		os.Remove(path)
		s.finishRun(runID, store.RunStatusFailed, "superseded by new upload")
		return nil, fmt.Errorf("upload superseded by a newer one")
	}
	s.video = video
	s.probe = probe
	s.mu.Unlock()

	go s.runAnalysis(context.WithoutCancel(ctx), runID, video, probe)

	s.logger.Info("video uploaded",
		"name", video.Name,
		"size", size,
		"duration", probe.Duration,
	)
	return video, nil
}

// runAnalysis drives the analyzer and applies the outcome transition.
func (s *Service) runAnalysis(ctx context.Context, runID string, video *Video, probe *media.ProbeResult) {
	segments, err := s.analyzer.Analyze(ctx, video.Path, probe.Duration, func(stage string) {
		s.logger.Debug("analysis progress", "stage", stage)
	})
	// The guard and the machine transition stay in one critical section:
	// a concurrent upload's Reset either lands before, in which case the
	// token no longer matches and the outcome is dropped, or after, in
	// which case Reset overrides it.
	s.mu.Lock()
	if s.activeRun != runID {
		s.mu.Unlock()
		s.finishRun(runID, store.RunStatusFailed, "superseded by new upload")
		return
	}

	if err != nil {
		// Transport or subprocess failure discards the video so the
		// user can retry the upload.
		os.Remove(video.Path)
		s.video = nil
		s.probe = nil
		s.activeRun = ""
		if terr := s.machine.Fail(StateIdle, err.Error()); terr != nil {
			s.logger.Warn("analysis failure transition rejected", "error", terr)
		}
		s.mu.Unlock()

		s.logger.Error("analysis failed", "error", err)
		s.finishRun(runID, store.RunStatusFailed, err.Error())
		return
	}

	s.segments = segments
	s.activeRun = ""
	if terr := s.machine.Transition(StateReady); terr != nil {
		s.logger.Warn("analysis outcome transition rejected", "error", terr)
	}
	s.mu.Unlock()

	s.finishRun(runID, store.RunStatusCompleted, "")
	s.logger.Info("analysis finished", "segments", len(segments))
}

// AddToQueue appends the identified segment to the selection queue.
// Duplicates are allowed; order is append order.
func (s *Service) AddToQueue(segmentID string) error {
	if s.machine.State() != StateReady && s.machine.State() != StateCompleted {
		return ErrNotReady
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if seg.ID == segmentID {
			s.queue.Append(seg)
			return nil
		}
	}
	return ErrSegmentNotFound
}

// RemoveFromQueue removes the entry at index.
func (s *Service) RemoveFromQueue(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.RemoveAt(index)
}

// ClearQueue empties the selection.
func (s *Service) ClearQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue.Clear()
}

// Generate starts a recording run over the queued segments. An empty
// queue is rejected locally: the error is recorded but the machine does
// not move.
func (s *Service) Generate(ctx context.Context) error {
	if s.machine.State() != StateReady {
		return ErrNotReady
	}

	s.mu.RLock()
	queued := s.queue.Items()
	video := s.video
	probe := s.probe
	s.mu.RUnlock()

	if len(queued) == 0 {
		s.machine.SetError("no segments selected")
		return ErrEmptyQueue
	}
	if video == nil {
		return ErrNotReady
	}

	runID := segment.NewID()
	s.mu.Lock()
	if err := s.machine.Transition(StateGenerating); err != nil {
		s.mu.Unlock()
		return err
	}
	s.activeRun = runID
	s.mu.Unlock()

	now := time.Now().UTC()
	s.recordRun(&store.Run{
		ID:           runID,
		Type:         store.RunTypeCompose,
		Status:       store.RunStatusRunning,
		VideoName:    video.Name,
		SegmentCount: len(queued),
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	go s.runComposition(context.WithoutCancel(ctx), runID, video, probe, queued)
	return nil
}

// runComposition drives the composer and applies the outcome
// transition. On failure the queue is untouched so the user can retry.
func (s *Service) runComposition(ctx context.Context, runID string, video *Video, probe *media.ProbeResult, queued []segment.Segment) {
	started := time.Now()

	artifact, err := s.composer.Compose(ctx, video.Path, probe, queued)

	s.mu.Lock()
	if s.activeRun != runID {
		s.mu.Unlock()
		if artifact != "" {
			os.Remove(artifact)
		}
		s.finishRun(runID, store.RunStatusFailed, "superseded by new upload")
		return
	}

	if err != nil {
		s.activeRun = ""
		if terr := s.machine.Fail(StateReady, err.Error()); terr != nil {
			s.logger.Warn("composition failure transition rejected", "error", terr)
		}
		s.mu.Unlock()

		s.logger.Error("composition failed", "error", err)
		s.finishRun(runID, store.RunStatusFailed, err.Error())
		return
	}

	if s.artifact != "" && s.artifact != artifact {
		os.Remove(s.artifact)
	}
	s.artifact = artifact
	s.activeRun = ""
	if terr := s.machine.Transition(StateCompleted); terr != nil {
		s.logger.Warn("composition outcome transition rejected", "error", terr)
	}
	s.mu.Unlock()

	s.finishRun(runID, store.RunStatusCompleted, "")
	if err := s.repo.UpdateRunArtifact(context.Background(), runID, artifact, time.Since(started).Milliseconds()); err != nil {
		s.logger.Warn("failed to record artifact path", "error", err)
	}
	s.logger.Info("composition finished", "artifact", artifact)
}

// DismissArtifact returns from Completed to Ready. The artifact file is
// freed immediately; the queue and segments stay for regeneration.
func (s *Service) DismissArtifact() error {
	if err := s.machine.Transition(StateReady); err != nil {
		return err
	}

	s.mu.Lock()
	if s.artifact != "" {
		os.Remove(s.artifact)
		s.artifact = ""
	}
	s.mu.Unlock()
	return nil
}

// DismissError clears the pending user-visible error.
func (s *Service) DismissError() {
	s.machine.ClearError()
}

// discardResources deletes superseded files and clears the collections.
// Caller must hold s.mu.
func (s *Service) discardResources() {
	if s.video != nil {
		os.Remove(s.video.Path)
	}
	if s.artifact != "" {
		os.Remove(s.artifact)
	}
	s.video = nil
	s.probe = nil
	s.segments = nil
	s.queue.Clear()
	s.artifact = ""
	s.activeRun = ""
}

// Status is the read-only session snapshot served over the API.
type Status struct {
	State        State  `json:"state"`
	LastError    string `json:"last_error,omitempty"`
	Video        *Video `json:"video,omitempty"`
	SegmentCount int    `json:"segment_count"`
	QueueCount   int    `json:"queue_count"`
	HasArtifact  bool   `json:"has_artifact"`
	ActiveRunID  string `json:"active_run_id,omitempty"`
}

// Snapshot assembles the current status.
func (s *Service) Snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		State:        s.machine.State(),
		LastError:    s.machine.LastError(),
		Video:        s.video,
		SegmentCount: len(s.segments),
		QueueCount:   s.queue.Len(),
		HasArtifact:  s.artifact != "",
		ActiveRunID:  s.activeRun,
	}
}

func (s *Service) recordRun(run *store.Run) {
	if err := s.repo.CreateRun(context.Background(), run); err != nil {
		s.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

func (s *Service) finishRun(runID, status, errMsg string) {
	if err := s.repo.FinishRun(context.Background(), runID, status, errMsg); err != nil {
		s.logger.Warn("failed to finish run", "run_id", runID, "error", err)
	}
}
