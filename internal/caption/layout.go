// Package caption computes line-wrapped, bottom-anchored caption layout
// for burn-in rendering. Wrapping is character-by-character: caption
// languages may have no whitespace word boundaries, so the unit of
// wrapping is the rune, never the word.
package caption

// MeasureFunc returns the rendered pixel width of a string.
type MeasureFunc func(s string) float64

// Line is one laid-out caption line with its baseline y position.
type Line struct {
	Text string
	Y    float64
}

// Wrap splits text into lines no wider than maxWidth using greedy
// rune-by-rune accumulation. A single rune wider than maxWidth still
// becomes its own line; there is no sub-rune splitting. Concatenating
// the returned lines reproduces the input exactly. Empty input yields a
// single empty line; callers that do not want an empty caption block
// are expected to skip drawing it.
func Wrap(text string, maxWidth float64, measure MeasureFunc) []string {
	var lines []string
	current := ""

	for _, r := range text {
		candidate := current + string(r)
		if measure(candidate) > maxWidth && current != "" {
			lines = append(lines, current)
			current = string(r)
		} else {
			current = candidate
		}
	}

	if current != "" || len(lines) == 0 {
		lines = append(lines, current)
	}
	return lines
}

// Layout wraps text and stacks the lines so the last line's baseline
// sits exactly at bottomY and each earlier line sits one lineHeight
// higher. The block grows upward from the fixed bottom anchor, keeping
// captions pinned to the bottom of the frame regardless of line count.
func Layout(text string, maxWidth float64, measure MeasureFunc, lineHeight, bottomY float64) []Line {
	wrapped := Wrap(text, maxWidth, measure)

	out := make([]Line, len(wrapped))
	for i, line := range wrapped {
		out[i] = Line{
			Text: line,
			Y:    bottomY - float64(len(wrapped)-1-i)*lineHeight,
		}
	}
	return out
}
