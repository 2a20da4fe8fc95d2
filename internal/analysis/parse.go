package analysis

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/clipforge/clipforge-agent/internal/segment"
)

// rawSegment is one classified entry as the model emits it, before IDs
// are assigned and time ranges validated.
type rawSegment struct {
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text"`
	Redundant  bool    `json:"is_redundant"`
	Confidence float64 `json:"confidence"`
}

type classification struct {
	Segments []rawSegment `json:"segments"`
}

// parseClassification decodes the model response. Model output is
// untrusted; anything unparseable degrades to an empty slice rather
// than failing the run.
func parseClassification(raw string, logger *slog.Logger) []rawSegment {
	if raw == "" {
		return []rawSegment{}
	}

	var parsed classification
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		fixed := extractFirstJSONObject(raw)
		if fixed == "" || json.Unmarshal([]byte(fixed), &parsed) != nil {
			if logger != nil {
				logger.Warn("classification response is not valid JSON, treating as empty", "error", err)
			}
			return []rawSegment{}
		}
	}
	if parsed.Segments == nil {
		return []rawSegment{}
	}
	return parsed.Segments
}

// extractFirstJSONObject salvages a JSON object from responses that
// wrap it in prose or code fences.
func extractFirstJSONObject(raw string) string {
	raw = strings.TrimSpace(raw)
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

// toSegments assigns IDs and drops entries that fail validation against
// the source duration. Dropped entries are logged, not fatal.
func toSegments(raws []rawSegment, sourceDuration float64, logger *slog.Logger) []segment.Segment {
	segments := make([]segment.Segment, 0, len(raws))
	for _, r := range raws {
		s := segment.Segment{
			ID:         segment.NewID(),
			Start:      r.Start,
			End:        r.End,
			Text:       strings.TrimSpace(r.Text),
			Redundant:  r.Redundant,
			Confidence: r.Confidence,
		}
		if err := segment.Validate(s, sourceDuration); err != nil {
			if logger != nil {
				logger.Warn("dropping invalid classified segment",
					"start", r.Start, "end", r.End, "error", err)
			}
			continue
		}
		segments = append(segments, s)
	}
	return segments
}
