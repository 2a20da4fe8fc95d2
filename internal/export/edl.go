// Package export renders the selection queue as a CMX 3600 style EDL so
// the cut can be rebuilt in an external editor.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/clipforge/clipforge-agent/internal/segment"
)

// GenerateEDL lays the queued segments onto a record timeline in queue
// order. Source timecodes come from each segment's time range in the
// uploaded video.
func GenerateEDL(queued []segment.Segment, title, mediaPath string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	for i, seg := range queued {
		startMs := int(math.Round(seg.Start * 1000))
		endMs := int(math.Round(seg.End * 1000))
		durationMs := endMs - startMs

		srcIn := msToTimecode(startMs, fps)
		srcOut := msToTimecode(endMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clipName(seg, i)),
			fmt.Sprintf("* MEDIA PATH:  %s", mediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// clipName derives a readable clip label from the caption text.
func clipName(seg segment.Segment, index int) string {
	name := SanitizeName(seg.Text, 40)
	if name == "" {
		name = fmt.Sprintf("Segment %d", index+1)
	}
	return name
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
