package segment

import (
	"errors"
	"strings"
)

// ErrIndexOutOfRange is returned by Queue.RemoveAt for any index outside
// [0, Len()). The queue is left unmodified.
var ErrIndexOutOfRange = errors.New("queue index out of range")

// Queue is the user-ordered list of segments selected for the output.
// Order is the concatenation order of the composed video. The same
// segment may be queued more than once. The queue performs no locking of
// its own: the session service serializes access.
type Queue struct {
	items []Segment
}

// NewQueue returns an empty selection queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Append adds a segment to the end of the queue.
func (q *Queue) Append(s Segment) {
	q.items = append(q.items, s)
}

// RemoveAt removes the element at index, preserving the relative order of
// the remaining elements.
func (q *Queue) RemoveAt(index int) error {
	if index < 0 || index >= len(q.items) {
		return ErrIndexOutOfRange
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	return nil
}

// Clear empties the queue unconditionally.
func (q *Queue) Clear() {
	q.items = nil
}

// Len returns the number of queued segments.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queued segments in order. The composer
// consumes this snapshot; later queue edits do not affect a running
// composition.
func (q *Queue) Items() []Segment {
	out := make([]Segment, len(q.items))
	copy(out, q.items)
	return out
}

// SelectedText returns the queued captions joined by newlines, in queue
// order. This is a read-only projection for display.
func (q *Queue) SelectedText() string {
	texts := make([]string, len(q.items))
	for i, s := range q.items {
		texts[i] = s.Text
	}
	return strings.Join(texts, "\n")
}
