package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// AudioSpan is one source time range whose audio belongs in the output,
// in queue order.
type AudioSpan struct {
	Start float64
	End   float64
}

// Recorder is the recording-session primitive: it ingests composed
// frames during a run, collects the audio spans captured alongside them,
// and yields a single finalized artifact file on Stop. Exactly one
// recorder exists per composition run.
type Recorder interface {
	Start(ctx context.Context) error
	WriteFrame(img *image.RGBA) error
	AddAudioSpan(span AudioSpan)
	Stop(ctx context.Context) (string, error)
	Abort()
}

// RecorderConfig holds the encoder settings of one recording session.
// Container and codecs are fixed: webm, VP8 video, Opus audio.
type RecorderConfig struct {
	FFmpegPath   string
	SourcePath   string // original video, audio is re-captured from here
	OutputDir    string
	Width        int
	Height       int
	FPS          int
	VideoBitrate int
	Logger       *slog.Logger
}

// FFmpegRecorder encodes frames into a temp video stream, then muxes the
// captured audio spans in on Stop.
type FFmpegRecorder struct {
	cfg RecorderConfig

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	tempVideo string
	spans     []AudioSpan
	frames    int64
	started   bool
}

func NewFFmpegRecorder(cfg RecorderConfig) *FFmpegRecorder {
	return &FFmpegRecorder{cfg: cfg}
}

func (r *FFmpegRecorder) Start(ctx context.Context) error {
	if r.started {
		return fmt.Errorf("recorder already started")
	}

	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("cannot create output dir: %w", err)
	}

	r.tempVideo = filepath.Join(r.cfg.OutputDir,
		fmt.Sprintf(".recording-%d.webm", time.Now().UnixNano()))

	args := buildEncodeArgs(r.cfg, r.tempVideo)
	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, args...)
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open encode pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}

	r.cmd = cmd
	r.stdin = stdin
	r.started = true

	if r.cfg.Logger != nil {
		r.cfg.Logger.Info("recording session started",
			"size", fmt.Sprintf("%dx%d", r.cfg.Width, r.cfg.Height),
			"fps", r.cfg.FPS,
			"bitrate", r.cfg.VideoBitrate,
		)
	}
	return nil
}

// WriteFrame appends one composed frame to the recorded stream. The
// frame must match the recorder's configured dimensions.
func (r *FFmpegRecorder) WriteFrame(img *image.RGBA) error {
	if !r.started {
		return fmt.Errorf("recorder not started")
	}

	b := img.Bounds()
	if b.Dx() != r.cfg.Width || b.Dy() != r.cfg.Height {
		return fmt.Errorf("frame size %dx%d does not match recording %dx%d",
			b.Dx(), b.Dy(), r.cfg.Width, r.cfg.Height)
	}

	if _, err := r.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	r.frames++
	return nil
}

func (r *FFmpegRecorder) AddAudioSpan(span AudioSpan) {
	r.spans = append(r.spans, span)
}

// Stop finalizes the recording: the encoder is flushed, then the audio
// spans are trimmed from the source, concatenated in order, and muxed
// with the recorded video into one webm artifact. Returns the artifact
// path.
func (r *FFmpegRecorder) Stop(ctx context.Context) (string, error) {
	if !r.started {
		return "", fmt.Errorf("recorder not started")
	}

	r.stdin.Close()
	if err := r.cmd.Wait(); err != nil {
		r.cleanup()
		return "", fmt.Errorf("encoder exited abnormally: %w", err)
	}
	r.started = false

	outPath := filepath.Join(r.cfg.OutputDir,
		fmt.Sprintf("composed_%s.webm", time.Now().Format("20060102_150405")))

	args := buildMuxArgs(r.tempVideo, r.cfg.SourcePath, r.spans, outPath)
	cmd := exec.CommandContext(ctx, r.cfg.FFmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		r.cleanup()
		os.Remove(outPath)
		return "", fmt.Errorf("audio mux failed: %w: %s", err, stderr.String())
	}

	r.cleanup()

	if r.cfg.Logger != nil {
		r.cfg.Logger.Info("recording finalized",
			"artifact", outPath,
			"frames", r.frames,
			"audio_spans", len(r.spans),
		)
	}
	return outPath, nil
}

// Abort tears the session down without producing an artifact.
func (r *FFmpegRecorder) Abort() {
	if r.started {
		r.stdin.Close()
		if r.cmd != nil && r.cmd.Process != nil {
			r.cmd.Process.Kill()
			r.cmd.Wait()
		}
		r.started = false
	}
	r.cleanup()
}

func (r *FFmpegRecorder) cleanup() {
	if r.tempVideo != "" {
		os.Remove(r.tempVideo)
		r.tempVideo = ""
	}
}

// buildEncodeArgs produces the video-only VP8 encode reading raw RGBA
// frames from stdin.
func buildEncodeArgs(cfg RecorderConfig, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-r", strconv.Itoa(cfg.FPS),
		"-i", "pipe:0",
		"-c:v", "libvpx",
		"-b:v", strconv.Itoa(cfg.VideoBitrate),
		"-an",
		outPath,
	}
}

// buildMuxArgs trims each captured span from the source audio, joins
// them in order, and muxes with the recorded video stream. With no
// spans the video is containerized silent.
func buildMuxArgs(videoPath, sourcePath string, spans []AudioSpan, outPath string) []string {
	if len(spans) == 0 {
		return []string{
			"-hide_banner", "-nostdin", "-y",
			"-i", videoPath,
			"-c:v", "copy",
			"-an",
			outPath,
		}
	}

	var filter strings.Builder
	labels := make([]string, len(spans))
	for i, span := range spans {
		label := fmt.Sprintf("a%d", i)
		fmt.Fprintf(&filter, "[1:a]atrim=start=%.3f:end=%.3f,asetpts=PTS-STARTPTS[%s];",
			span.Start, span.End, label)
		labels[i] = "[" + label + "]"
	}
	fmt.Fprintf(&filter, "%sconcat=n=%d:v=0:a=1[aout]", strings.Join(labels, ""), len(spans))

	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", videoPath,
		"-i", sourcePath,
		"-filter_complex", filter.String(),
		"-map", "0:v",
		"-map", "[aout]",
		"-c:v", "copy",
		"-c:a", "libopus",
		"-shortest",
		outPath,
	}
}
