package compose

import (
	"errors"
	"fmt"
)

// ErrSurfaceUnavailable is returned when the drawing surface cannot be
// created. It can only occur before recording starts, so no artifact
// work has happened yet.
var ErrSurfaceUnavailable = errors.New("drawing surface unavailable")

// MediaLoadError reports a source that cannot be resolved, decoded, or
// seeked within its duration.
type MediaLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MediaLoadError) Error() string {
	return fmt.Sprintf("cannot load media %s: %s", e.Path, e.Reason)
}

func (e *MediaLoadError) Unwrap() error {
	return e.Err
}

// CompositionError wraps an unexpected failure during a recording run.
// SegmentID identifies the queued segment being processed, empty when
// the failure is not segment-scoped.
type CompositionError struct {
	SegmentID string
	Err       error
}

func (e *CompositionError) Error() string {
	if e.SegmentID != "" {
		return fmt.Sprintf("composition failed at segment %s: %v", e.SegmentID, e.Err)
	}
	return fmt.Sprintf("composition failed: %v", e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}
