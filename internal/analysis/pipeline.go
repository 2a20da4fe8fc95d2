package analysis

import (
	"context"
	"log/slog"

	"github.com/clipforge/clipforge-agent/internal/segment"
)

// Pipeline is the production Analyzer: transcribe, classify, validate.
type Pipeline struct {
	transcriber *Transcriber
	classifier  Classifier
	logger      *slog.Logger
}

func NewPipeline(transcriber *Transcriber, classifier Classifier, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		transcriber: transcriber,
		classifier:  classifier,
		logger:      logger,
	}
}

func (p *Pipeline) Analyze(ctx context.Context, videoPath string, duration float64, onProgress func(stage string)) ([]segment.Segment, error) {
	cues, err := p.transcriber.Transcribe(ctx, videoPath, onProgress)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		p.logger.Info("transcript is empty, nothing to classify", "video", videoPath)
		return []segment.Segment{}, nil
	}

	emitStage(onProgress, "classifying")

	raws, err := p.classifier.Classify(ctx, cues)
	if err != nil {
		return nil, err
	}

	segments := toSegments(raws, duration, p.logger)
	p.logger.Info("analysis complete",
		"cues", len(cues),
		"classified", len(raws),
		"accepted", len(segments),
	)
	return segments, nil
}
