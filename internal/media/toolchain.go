package media

import (
	"log/slog"
	"time"
)

// Capabilities reports which host tools the agent found at startup.
type Capabilities struct {
	HasFFmpeg  bool   `json:"has_ffmpeg"`
	HasFFprobe bool   `json:"has_ffprobe"`
	HasWhisper bool   `json:"has_whisper"`
	FFmpegPath string `json:"-"`
	FFprobeBin string `json:"-"`
	WhisperBin string `json:"-"`

	ProbedAt time.Time `json:"-"`
}

// CanCompose reports whether the composition pipeline can run at all.
func (c *Capabilities) CanCompose() bool {
	return c.HasFFmpeg && c.HasFFprobe
}

// CanTranscribe reports whether local transcription is available.
func (c *Capabilities) CanTranscribe() bool {
	return c.HasFFmpeg && c.HasWhisper
}

// ProbeToolchain resolves the configured (or PATH-discovered) binaries.
// Missing tools are not fatal here; callers decide which capabilities
// they require.
func ProbeToolchain(ffmpegPref, ffprobePref, whisperPref string, logger *slog.Logger) *Capabilities {
	caps := &Capabilities{ProbedAt: time.Now()}

	if p, err := ResolveBinary(ffmpegPref, "ffmpeg"); err == nil {
		caps.HasFFmpeg = true
		caps.FFmpegPath = p
	} else if logger != nil {
		logger.Warn("ffmpeg not found, composition disabled", "error", err)
	}

	if p, err := ResolveBinary(ffprobePref, "ffprobe"); err == nil {
		caps.HasFFprobe = true
		caps.FFprobeBin = p
	} else if logger != nil {
		logger.Warn("ffprobe not found, probing disabled", "error", err)
	}

	if p, err := ResolveBinary(whisperPref, "whisper-cli", "whisper.cpp", "main"); err == nil {
		caps.HasWhisper = true
		caps.WhisperBin = p
	} else if logger != nil {
		logger.Warn("whisper binary not found, local transcription disabled", "error", err)
	}

	return caps
}
