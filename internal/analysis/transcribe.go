package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clipforge/clipforge-agent/internal/media"
)

// Cue is one timed transcript line from whisper.cpp.
type Cue struct {
	Start float64 `json:"start_sec"`
	End   float64 `json:"end_sec"`
	Text  string  `json:"text"`
}

// Transcriber converts a video into timed transcript cues. The audio is
// first downmixed to mono 16 kHz WAV, the format whisper.cpp expects.
type Transcriber struct {
	ffmpeg      media.FFmpeg
	runner      media.Runner
	whisperPath string
	modelPath   string
	timeout     time.Duration

	mkdirTemp func(dir, pattern string) (string, error)
	readFile  func(name string) ([]byte, error)
}

func NewTranscriber(ffmpeg media.FFmpeg, whisperPath, modelPath string, timeout time.Duration) *Transcriber {
	return &Transcriber{
		ffmpeg:      ffmpeg,
		runner:      &media.ExecRunner{},
		whisperPath: whisperPath,
		modelPath:   modelPath,
		timeout:     timeout,
		mkdirTemp:   os.MkdirTemp,
		readFile:    os.ReadFile,
	}
}

// whisperOutput mirrors the JSON file written by whisper.cpp with -oj.
// Offsets are milliseconds from the start of the audio.
type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (t *Transcriber) Transcribe(ctx context.Context, videoPath string, onProgress func(stage string)) ([]Cue, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	emitStage(onProgress, "extracting")

	tempDir, err := t.mkdirTemp("", "clipforge-transcribe-*")
	if err != nil {
		return nil, &AnalysisError{Stage: "extracting", Message: "failed to create temp workspace", Err: err}
	}
	defer os.RemoveAll(tempDir)

	wavPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	if err := t.ffmpeg.ExtractAudio(ctx, videoPath, wavPath); err != nil {
		return nil, &AnalysisError{Stage: "extracting", Message: "audio extraction failed", Err: err}
	}

	emitStage(onProgress, "transcribing")

	outBase := filepath.Join(tempDir, "transcript")
	args := buildWhisperArgs(t.modelPath, wavPath, outBase)

	result, err := t.runner.Run(ctx, t.whisperPath, args...)
	if err != nil {
		return nil, &AnalysisError{
			Stage:   "transcribing",
			Message: fmt.Sprintf("whisper failed (exit %d): %s", result.ExitCode, result.StderrTail),
			Err:     err,
		}
	}

	raw, err := t.readFile(outBase + ".json")
	if err != nil {
		return nil, &AnalysisError{Stage: "transcribing", Message: "whisper completed but transcript JSON is missing", Err: err}
	}

	return parseWhisperJSON(raw)
}

func parseWhisperJSON(raw []byte) ([]Cue, error) {
	var parsed whisperOutput
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &AnalysisError{Stage: "transcribing", Message: "cannot parse whisper JSON", Err: err}
	}

	cues := make([]Cue, 0, len(parsed.Transcription))
	for _, entry := range parsed.Transcription {
		cues = append(cues, Cue{
			Start: float64(entry.Offsets.From) / 1000.0,
			End:   float64(entry.Offsets.To) / 1000.0,
			Text:  strings.TrimSpace(entry.Text),
		})
	}
	return cues, nil
}

// buildWhisperArgs requests JSON output with per-cue offsets.
func buildWhisperArgs(modelPath, audioPath, outBase string) []string {
	return []string{
		"-m", modelPath,
		"-f", audioPath,
		"-of", outBase,
		"-oj",
		"-np",
	}
}
