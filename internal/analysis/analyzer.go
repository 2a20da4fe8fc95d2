// Package analysis turns an uploaded video into classified segments. The
// pipeline extracts audio, transcribes it with whisper.cpp, and asks a
// language model to group the transcript cues into useful and redundant
// time ranges. Every stage is behind an interface so the session layer
// never touches a subprocess directly.
package analysis

import (
	"context"
	"fmt"

	"github.com/clipforge/clipforge-agent/internal/segment"
)

// Analyzer produces the classified segment set for a video. onProgress
// receives coarse stage names ("extracting", "transcribing",
// "classifying") and may be nil.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath string, duration float64, onProgress func(stage string)) ([]segment.Segment, error)
}

// AnalysisError is a stage-aware pipeline failure. A transport or
// subprocess failure surfaces as an AnalysisError and aborts the run;
// malformed model output does not, it degrades to an empty segment set.
type AnalysisError struct {
	Stage   string
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis %s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("analysis %s: %s", e.Stage, e.Message)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func emitStage(cb func(string), stage string) {
	if cb != nil {
		cb(stage)
	}
}

// StubAnalyzer is used when no transcription or classification backend
// is configured. It slices the source into fixed windows so the rest of
// the agent stays exercisable without external tooling.
type StubAnalyzer struct {
	WindowSeconds float64
}

func NewStubAnalyzer() *StubAnalyzer {
	return &StubAnalyzer{WindowSeconds: 10}
}

func (s *StubAnalyzer) Analyze(ctx context.Context, videoPath string, duration float64, onProgress func(stage string)) ([]segment.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emitStage(onProgress, "classifying")

	window := s.WindowSeconds
	if window <= 0 {
		window = 10
	}

	var segments []segment.Segment
	for start := 0.0; start < duration; start += window {
		end := start + window
		if end > duration {
			end = duration
		}
		segments = append(segments, segment.Segment{
			ID:         segment.NewID(),
			Start:      start,
			End:        end,
			Text:       fmt.Sprintf("Segment %d", len(segments)+1),
			Redundant:  false,
			Confidence: 1.0,
		})
	}
	return segments, nil
}
