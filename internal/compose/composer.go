// Package compose drives the recording run: it replays each queued
// segment from the source, burns the caption onto every frame, and
// produces a single new video with the original audio for the selected
// ranges. Segments are processed strictly sequentially; one artifact
// per run, or none at all on failure.
package compose

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/clipforge/clipforge-agent/internal/media"
	"github.com/clipforge/clipforge-agent/internal/segment"
)

// DefaultGrace is the settle interval between the last written frame
// and recorder stop, so the tail of the final segment is not clipped.
const DefaultGrace = 500 * time.Millisecond

// Config holds the per-agent composition settings.
type Config struct {
	FFmpegPath   string
	OutputDir    string
	FPS          int
	VideoBitrate int
	Grace        time.Duration
}

// Composer runs recording sessions. The media collaborators are
// injected as factories so the run protocol is testable without ffmpeg.
type Composer struct {
	cfg      Config
	progress *ProgressLog
	logger   *slog.Logger

	newPlayer   func(videoPath string, probe *media.ProbeResult) media.Player
	newRecorder func(sourcePath string, width, height int) media.Recorder
	newClock    func() media.FrameClock
	newSurface  func(width, height int) (*Surface, error)
	sleep       func(d time.Duration)
}

func New(cfg Config, progress *ProgressLog, logger *slog.Logger) *Composer {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	c := &Composer{
		cfg:      cfg,
		progress: progress,
		logger:   logger,
		sleep:    time.Sleep,
	}
	c.newPlayer = func(videoPath string, probe *media.ProbeResult) media.Player {
		return media.NewFFmpegPlayer(cfg.FFmpegPath, videoPath, probe, cfg.FPS, logger)
	}
	c.newRecorder = func(sourcePath string, width, height int) media.Recorder {
		return media.NewFFmpegRecorder(media.RecorderConfig{
			FFmpegPath:   cfg.FFmpegPath,
			SourcePath:   sourcePath,
			OutputDir:    cfg.OutputDir,
			Width:        width,
			Height:       height,
			FPS:          cfg.FPS,
			VideoBitrate: cfg.VideoBitrate,
			Logger:       logger,
		})
	}
	c.newClock = func() media.FrameClock {
		return media.NewTickerClock(cfg.FPS)
	}
	c.newSurface = NewSurface
	return c
}

// Compose records the queued segments in order and returns the artifact
// path. On any failure every resource is released and no artifact file
// remains.
func (c *Composer) Compose(ctx context.Context, videoPath string, probe *media.ProbeResult, segments []segment.Segment) (string, error) {
	c.progress.Publish(Event{Stage: "preparing", Message: "starting recording session"})

	player := c.newPlayer(videoPath, probe)
	defer player.Close()

	width, height := player.Size()
	if width <= 0 || height <= 0 {
		return "", &MediaLoadError{Path: videoPath, Reason: "source has no frame dimensions"}
	}

	surface, err := c.newSurface(width, height)
	if err != nil {
		return "", err
	}

	recorder := c.newRecorder(videoPath, width, height)
	if err := recorder.Start(ctx); err != nil {
		return "", &CompositionError{Err: err}
	}

	for i, seg := range segments {
		c.progress.Publish(Event{
			Stage:        "segment",
			SegmentID:    seg.ID,
			SegmentIndex: i,
			Caption:      previewCaption(seg.Text),
		})

		if err := c.recordSegment(ctx, videoPath, player, recorder, surface, seg); err != nil {
			recorder.Abort()
			return "", err
		}
		recorder.AddAudioSpan(media.AudioSpan{Start: seg.Start, End: seg.End})
	}

	// Let the encoder drain the last frames before finalizing.
	c.sleep(c.cfg.Grace)

	artifact, err := recorder.Stop(ctx)
	if err != nil {
		return "", &CompositionError{Err: err}
	}

	c.progress.Publish(Event{Stage: "completed", Message: artifact})
	c.logger.Info("composition complete", "artifact", artifact, "segments", len(segments))
	return artifact, nil
}

// recordSegment replays one segment: seek, then render and capture a
// frame per clock tick until the segment's duration has elapsed or the
// source stops playing. The elapsed check runs first so runs terminate
// deterministically even when decode outlasts the segment range.
func (c *Composer) recordSegment(ctx context.Context, videoPath string, player media.Player, recorder media.Recorder, surface *Surface, seg segment.Segment) error {
	if err := player.Seek(ctx, seg.Start); err != nil {
		if errors.Is(err, media.ErrSeekOutOfRange) {
			return &MediaLoadError{Path: videoPath, Reason: "segment start beyond source duration", Err: err}
		}
		return &MediaLoadError{Path: videoPath, Reason: "seek failed", Err: err}
	}

	clock := c.newClock()
	clock.Start()
	defer clock.Stop()

	target := seg.Duration()

	for {
		elapsed, err := clock.Next(ctx)
		if err != nil {
			return &CompositionError{SegmentID: seg.ID, Err: err}
		}
		if elapsed.Seconds() >= target {
			return nil
		}
		if !player.Playing() {
			return nil
		}

		frame, err := player.NextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &CompositionError{SegmentID: seg.ID, Err: err}
		}

		surface.DrawFrame(frame)
		surface.DrawCaption(seg.Text)

		if err := recorder.WriteFrame(surface.Frame()); err != nil {
			return &CompositionError{SegmentID: seg.ID, Err: err}
		}
	}
}

// NewForTests constructs a composer with injected collaborators.
func NewForTests(
	cfg Config,
	progress *ProgressLog,
	logger *slog.Logger,
	newPlayer func(videoPath string, probe *media.ProbeResult) media.Player,
	newRecorder func(sourcePath string, width, height int) media.Recorder,
	newClock func() media.FrameClock,
) *Composer {
	c := New(cfg, progress, logger)
	c.newPlayer = newPlayer
	c.newRecorder = newRecorder
	c.newClock = newClock
	c.sleep = func(time.Duration) {}
	return c
}
