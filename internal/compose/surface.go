package compose

import (
	"fmt"
	"image"

	"github.com/fogleman/gg"

	"github.com/clipforge/clipforge-agent/internal/caption"
)

// Caption geometry relative to the frame: wrap width, font size, line
// spacing, and the bottom anchor the caption block grows upward from.
const (
	captionWidthRatio  = 0.85
	fontSizeDivisor    = 18.0
	lineHeightFactor   = 1.2
	bottomAnchorRatio  = 0.92
	captionStrokeWidth = 2.0
)

// Surface is the off-screen frame canvas. Each tick the composer blits
// the decoded frame, draws the caption block over it, and hands the
// pixels to the recorder.
type Surface struct {
	dc         *gg.Context
	width      int
	height     int
	maxWidth   float64
	lineHeight float64
	bottomY    float64
}

// NewSurface creates a canvas matching the source frame size, with the
// caption face sized to the frame height.
func NewSurface(width, height int) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid size %dx%d", ErrSurfaceUnavailable, width, height)
	}

	fontSize := float64(height) / fontSizeDivisor
	face, err := caption.Face(fontSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSurfaceUnavailable, err)
	}

	dc := gg.NewContext(width, height)
	dc.SetFontFace(face)

	return &Surface{
		dc:         dc,
		width:      width,
		height:     height,
		maxWidth:   captionWidthRatio * float64(width),
		lineHeight: lineHeightFactor * fontSize,
		bottomY:    bottomAnchorRatio * float64(height),
	}, nil
}

func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// DrawFrame blits one decoded frame over the whole canvas.
func (s *Surface) DrawFrame(img image.Image) {
	s.dc.DrawImage(img, 0, 0)
}

// DrawCaption renders the wrapped caption block, each line centered
// horizontally, dark outline under a white fill for legibility on any
// footage. Empty captions draw nothing.
func (s *Surface) DrawCaption(text string) {
	if text == "" {
		return
	}

	lines := caption.Layout(text, s.maxWidth, s.measure, s.lineHeight, s.bottomY)
	for _, line := range lines {
		if line.Text == "" {
			continue
		}
		x := (float64(s.width) - s.measure(line.Text)) / 2

		s.dc.SetRGB(0, 0, 0)
		for _, dx := range []float64{-captionStrokeWidth, 0, captionStrokeWidth} {
			for _, dy := range []float64{-captionStrokeWidth, 0, captionStrokeWidth} {
				if dx == 0 && dy == 0 {
					continue
				}
				s.dc.DrawString(line.Text, x+dx, line.Y+dy)
			}
		}

		s.dc.SetRGB(1, 1, 1)
		s.dc.DrawString(line.Text, x, line.Y)
	}
}

func (s *Surface) measure(text string) float64 {
	w, _ := s.dc.MeasureString(text)
	return w
}

// Frame returns the composed pixels. gg contexts are RGBA-backed, so
// this is a view, not a copy; the recorder consumes it before the next
// blit overwrites it.
func (s *Surface) Frame() *image.RGBA {
	return s.dc.Image().(*image.RGBA)
}
