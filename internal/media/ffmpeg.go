package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ProbeResult describes the decodable properties of a media file.
type ProbeResult struct {
	Duration    float64
	Width       int
	Height      int
	Codec       string
	Bitrate     int64
	FrameRate   float64
	AudioCodec  string
	AudioSample int
}

// FFmpeg provides probing and audio extraction over the host toolchain.
type FFmpeg interface {
	Probe(ctx context.Context, filePath string) (*ProbeResult, error)
	ExtractAudio(ctx context.Context, filePath, outputPath string) error
}

// RealFFmpeg shells out to ffprobe/ffmpeg.
type RealFFmpeg struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
	timeout     time.Duration
	logger      *slog.Logger
}

func NewRealFFmpeg(ffmpegPath, ffprobePath string, timeout time.Duration, logger *slog.Logger) *RealFFmpeg {
	return &RealFFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      &ExecRunner{},
		timeout:     timeout,
		logger:      logger,
	}
}

// probeFormat mirrors the subset of ffprobe -print_format json output
// the agent cares about.
type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		SampleRate   string `json:"sample_rate"`
	} `json:"streams"`
}

func (f *RealFFmpeg) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	result, err := f.runner.Run(ctx, f.ffprobePath, args...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed (exit %d): %s", result.ExitCode, result.StderrTail)
	}

	return parseProbeOutput(result.Stdout)
}

func parseProbeOutput(raw string) (*ProbeResult, error) {
	var parsed probeFormat
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}

	out := &ProbeResult{}
	out.Duration, _ = strconv.ParseFloat(parsed.Format.Duration, 64)
	out.Bitrate, _ = strconv.ParseInt(parsed.Format.BitRate, 10, 64)

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if out.Width == 0 {
				out.Width = s.Width
				out.Height = s.Height
				out.Codec = s.CodecName
				out.FrameRate = parseFrameRate(s.AvgFrameRate)
			}
		case "audio":
			if out.AudioCodec == "" {
				out.AudioCodec = s.CodecName
				out.AudioSample, _ = strconv.Atoi(s.SampleRate)
			}
		}
	}

	if out.Duration <= 0 {
		return nil, fmt.Errorf("source reports no duration")
	}
	if out.Width <= 0 || out.Height <= 0 {
		return nil, fmt.Errorf("source has no decodable video stream")
	}

	return out, nil
}

// parseFrameRate converts ffprobe's fractional rate ("30000/1001") to a float.
func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(raw, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

// ExtractAudio writes a mono 16 kHz PCM WAV suitable for transcription.
func (f *RealFFmpeg) ExtractAudio(ctx context.Context, filePath, outputPath string) error {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", filePath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outputPath,
	}

	result, err := f.runner.Run(ctx, f.ffmpegPath, args...)
	if err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed (exit %d): %s", result.ExitCode, result.StderrTail)
	}
	return nil
}
