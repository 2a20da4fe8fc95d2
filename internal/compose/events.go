package compose

import (
	"sync"
	"time"
)

const captionPreviewRunes = 60

// Event is one sequenced progress message from a recording run. The
// event log is observability only; composition correctness never
// depends on it.
type Event struct {
	Seq          int64     `json:"seq"`
	Timestamp    time.Time `json:"timestamp"`
	Stage        string    `json:"stage"`
	SegmentID    string    `json:"segment_id,omitempty"`
	SegmentIndex int       `json:"segment_index,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	Message      string    `json:"message,omitempty"`
}

// ProgressLog stores recent events and provides incremental reads keyed
// by sequence number.
type ProgressLog struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

// NewProgressLog creates a bounded in-memory event buffer.
func NewProgressLog(maxEvents int) *ProgressLog {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &ProgressLog{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event, assigning its sequence and timestamp.
func (l *ProgressLog) Publish(event Event) Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	event.Seq = l.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	l.events = append(l.events, event)
	if len(l.events) > l.maxEvents {
		trim := len(l.events) - l.maxEvents
		l.events = append([]Event(nil), l.events[trim:]...)
	}
	return event
}

// Since returns events with sequence strictly greater than seq.
func (l *ProgressLog) Since(seq int64) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.events) == 0 {
		return nil
	}
	out := make([]Event, 0, len(l.events))
	for _, event := range l.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}

// previewCaption truncates long captions for progress events.
func previewCaption(text string) string {
	rs := []rune(text)
	if len(rs) <= captionPreviewRunes {
		return text
	}
	return string(rs[:captionPreviewRunes]) + "..."
}
