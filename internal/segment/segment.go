// Package segment holds the transcribed time-range model produced by the
// analysis collaborator and the user's ordered selection queue.
package segment

import (
	"crypto/rand"
	"fmt"
)

// Segment is one classified time range of the source video. Segments are
// immutable once ingested; equality is by ID.
type Segment struct {
	ID         string  `json:"id"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text"`
	Redundant  bool    `json:"is_redundant"`
	Confidence float64 `json:"confidence"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ValidationError reports a malformed segment received from the analysis
// collaborator. The collaborator is untrusted input; invalid entries are
// dropped explicitly at ingestion.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid segment %s: %s", e.Field, e.Reason)
}

// Validate checks the segment's time range against the source duration.
// A sourceDuration of 0 skips the upper-bound check (duration unknown).
func Validate(s Segment, sourceDuration float64) error {
	if s.Start < 0 {
		return &ValidationError{Field: "start_time", Reason: "must not be negative"}
	}
	if s.End <= s.Start {
		return &ValidationError{Field: "end_time", Reason: "must be greater than start_time"}
	}
	if sourceDuration > 0 && s.End > sourceDuration {
		return &ValidationError{Field: "end_time", Reason: "exceeds source duration"}
	}
	if !s.Redundant && s.Text == "" {
		return &ValidationError{Field: "text", Reason: "required for non-redundant segments"}
	}
	return nil
}

// NewID generates an opaque identifier, stable for the session.
func NewID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
