// Package config provides configuration management for the ClipForge Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8590
	DefaultLogLevel = "info"
	DefaultDataDir  = ".clipforge"

	// Environment variable names
	EnvPort     = "CLIPFORGE_PORT"
	EnvLogLevel = "CLIPFORGE_LOG_LEVEL"
	EnvDataDir  = "CLIPFORGE_DATA_DIR"
	EnvHeadless = "CLIPFORGE_HEADLESS"

	// Toolchain environment variable names
	EnvFFmpeg       = "CLIPFORGE_FFMPEG"
	EnvFFprobe      = "CLIPFORGE_FFPROBE"
	EnvWhisper      = "CLIPFORGE_WHISPER"
	EnvWhisperModel = "CLIPFORGE_WHISPER_MODEL"

	// Analysis environment variable names
	EnvOpenAIKey     = "CLIPFORGE_OPENAI_API_KEY"
	EnvOpenAIBaseURL = "CLIPFORGE_OPENAI_BASE_URL"
	EnvOpenAIModel   = "CLIPFORGE_OPENAI_MODEL"

	// Recording environment variable names
	EnvCaptureFPS   = "CLIPFORGE_CAPTURE_FPS"
	EnvVideoBitrate = "CLIPFORGE_VIDEO_BITRATE"

	// Database filename
	DBFilename = "clipforge.db"

	// Recording defaults. The output container is webm with VP8 video and
	// Opus audio; these are encoder settings of the recording primitive,
	// not a negotiable wire format.
	DefaultCaptureFPS   = 30
	DefaultVideoBitrate = 5_000_000

	DefaultOpenAIModel = "gpt-4.1-mini"

	// Subprocess timeouts (seconds)
	DefaultTranscribeTimeout = 1800
	DefaultClassifyTimeout   = 120
	DefaultProbeTimeout      = 30
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	UploadsDir() string
	ArtifactsDir() string
	Headless() bool

	FFmpegPath() string
	FFprobePath() string
	WhisperPath() string
	WhisperModel() string

	AnalysisEnabled() bool
	OpenAIKey() string
	OpenAIBaseURL() string
	OpenAIModel() string

	CaptureFPS() int
	VideoBitrate() int

	TranscribeTimeout() time.Duration
	ClassifyTimeout() time.Duration
	ProbeTimeout() time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port         int
	logLevel     string
	dataDir      string
	headless     bool
	captureFPS   int
	videoBitrate int

	ffmpegPath   string
	ffprobePath  string
	whisperPath  string
	whisperModel string

	openAIKey     string
	openAIBaseURL string
	openAIModel   string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:         DefaultPort,
		logLevel:     DefaultLogLevel,
		dataDir:      defaultDataDir(),
		captureFPS:   DefaultCaptureFPS,
		videoBitrate: DefaultVideoBitrate,
		openAIModel:  DefaultOpenAIModel,
	}

	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	if f := os.Getenv(EnvCaptureFPS); f != "" {
		fps, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvCaptureFPS, err)
		}
		if fps < 1 || fps > 120 {
			return nil, fmt.Errorf("invalid %s: fps must be between 1 and 120", EnvCaptureFPS)
		}
		cfg.captureFPS = fps
	}

	if b := os.Getenv(EnvVideoBitrate); b != "" {
		bitrate, err := strconv.Atoi(b)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvVideoBitrate, err)
		}
		if bitrate <= 0 {
			return nil, fmt.Errorf("invalid %s: bitrate must be positive", EnvVideoBitrate)
		}
		cfg.videoBitrate = bitrate
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpeg)
	cfg.ffprobePath = os.Getenv(EnvFFprobe)
	cfg.whisperPath = os.Getenv(EnvWhisper)
	cfg.whisperModel = os.Getenv(EnvWhisperModel)

	cfg.openAIKey = os.Getenv(EnvOpenAIKey)
	cfg.openAIBaseURL = os.Getenv(EnvOpenAIBaseURL)
	if m := os.Getenv(EnvOpenAIModel); m != "" {
		cfg.openAIModel = m
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the SQLite database file path
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// UploadsDir returns the directory holding uploaded source videos
func (c *EnvConfig) UploadsDir() string {
	return filepath.Join(c.dataDir, "uploads")
}

// ArtifactsDir returns the directory holding composed output artifacts
func (c *EnvConfig) ArtifactsDir() string {
	return filepath.Join(c.dataDir, "artifacts")
}

// Headless reports whether the system tray should be skipped
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) FFmpegPath() string   { return c.ffmpegPath }
func (c *EnvConfig) FFprobePath() string  { return c.ffprobePath }
func (c *EnvConfig) WhisperPath() string  { return c.whisperPath }
func (c *EnvConfig) WhisperModel() string { return c.whisperModel }

// AnalysisEnabled reports whether the real analysis collaborator can run.
// Without an API key the agent falls back to the stub analyzer.
func (c *EnvConfig) AnalysisEnabled() bool {
	return c.openAIKey != ""
}

func (c *EnvConfig) OpenAIKey() string     { return c.openAIKey }
func (c *EnvConfig) OpenAIBaseURL() string { return c.openAIBaseURL }
func (c *EnvConfig) OpenAIModel() string   { return c.openAIModel }

// CaptureFPS returns the frame capture rate for composition
func (c *EnvConfig) CaptureFPS() int {
	return c.captureFPS
}

// VideoBitrate returns the target video bitrate in bits per second
func (c *EnvConfig) VideoBitrate() int {
	return c.videoBitrate
}

func (c *EnvConfig) TranscribeTimeout() time.Duration {
	return DefaultTranscribeTimeout * time.Second
}

func (c *EnvConfig) ClassifyTimeout() time.Duration {
	return DefaultClassifyTimeout * time.Second
}

func (c *EnvConfig) ProbeTimeout() time.Duration {
	return DefaultProbeTimeout * time.Second
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}
