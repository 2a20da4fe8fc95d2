package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
)

// ErrSeekOutOfRange is returned when a seek target lies beyond the
// source duration.
var ErrSeekOutOfRange = errors.New("seek position beyond source duration")

// Player is a decodable media playback primitive: seek, sequential frame
// delivery at the capture rate, and end-of-stream observability. One
// player owns the decode position of its source; the preview stream
// served over HTTP is a separate, independent reader.
type Player interface {
	Duration() float64
	Size() (width, height int)
	Seek(ctx context.Context, t float64) error
	NextFrame() (*image.RGBA, error)
	Playing() bool
	CurrentTime() float64
	Close() error
}

// FFmpegPlayer decodes raw RGBA frames from an ffmpeg subprocess. Seek
// restarts the decode at the requested position and blocks until the
// first frame arrives, which doubles as the seek-completion signal.
type FFmpegPlayer struct {
	ffmpegPath string
	videoPath  string
	width      int
	height     int
	duration   float64
	fps        int
	logger     *slog.Logger

	cmd     *exec.Cmd
	stdout  io.ReadCloser
	pending *image.RGBA
	pos     float64
	playing bool
}

func NewFFmpegPlayer(ffmpegPath, videoPath string, probe *ProbeResult, fps int, logger *slog.Logger) *FFmpegPlayer {
	return &FFmpegPlayer{
		ffmpegPath: ffmpegPath,
		videoPath:  videoPath,
		width:      probe.Width,
		height:     probe.Height,
		duration:   probe.Duration,
		fps:        fps,
		logger:     logger,
	}
}

func (p *FFmpegPlayer) Duration() float64 {
	return p.duration
}

func (p *FFmpegPlayer) Size() (int, int) {
	return p.width, p.height
}

func (p *FFmpegPlayer) CurrentTime() float64 {
	return p.pos
}

func (p *FFmpegPlayer) Playing() bool {
	return p.playing
}

// Seek positions the decode at t seconds. It kills any running decode,
// starts a new one anchored at t, and does not return until the first
// decoded frame has been read in full.
func (p *FFmpegPlayer) Seek(ctx context.Context, t float64) error {
	if t < 0 {
		return fmt.Errorf("seek position %v: %w", t, ErrSeekOutOfRange)
	}
	if t >= p.duration {
		return fmt.Errorf("seek position %v beyond duration %v: %w", t, p.duration, ErrSeekOutOfRange)
	}

	p.stop()

	args := buildDecodeArgs(p.videoPath, t, p.fps)
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open decode pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start decoder: %w", err)
	}

	p.cmd = cmd
	p.stdout = stdout
	p.pos = t

	// Blocking read of the first frame is the seek-completed event.
	frame, err := p.readFrame()
	if err != nil {
		p.stop()
		return fmt.Errorf("decode produced no frame at %vs: %w", t, err)
	}

	p.pending = frame
	p.playing = true

	if p.logger != nil {
		p.logger.Debug("seek complete", "position", t)
	}
	return nil
}

// NextFrame returns the next decoded frame in presentation order. At
// end of stream it returns io.EOF and the player stops playing.
func (p *FFmpegPlayer) NextFrame() (*image.RGBA, error) {
	if !p.playing {
		return nil, io.EOF
	}

	if p.pending != nil {
		frame := p.pending
		p.pending = nil
		return frame, nil
	}

	frame, err := p.readFrame()
	if err != nil {
		p.playing = false
		return nil, io.EOF
	}

	p.pos += 1.0 / float64(p.fps)
	return frame, nil
}

func (p *FFmpegPlayer) readFrame() (*image.RGBA, error) {
	buf := make([]byte, p.width*p.height*4)
	if _, err := io.ReadFull(p.stdout, buf); err != nil {
		return nil, err
	}
	return &image.RGBA{
		Pix:    buf,
		Stride: p.width * 4,
		Rect:   image.Rect(0, 0, p.width, p.height),
	}, nil
}

func (p *FFmpegPlayer) Close() error {
	p.stop()
	return nil
}

func (p *FFmpegPlayer) stop() {
	if p.cmd != nil && p.cmd.Process != nil {
		p.cmd.Process.Kill()
		p.cmd.Wait()
	}
	p.cmd = nil
	p.stdout = nil
	p.pending = nil
	p.playing = false
}

// buildDecodeArgs produces the ffmpeg invocation for raw RGBA frame
// delivery at the capture rate, starting at `start` seconds.
func buildDecodeArgs(videoPath string, start float64, fps int) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(start, 'f', 3, 64),
		"-i", videoPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-r", strconv.Itoa(fps),
		"-an",
		"pipe:1",
	}
}
