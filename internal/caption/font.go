package caption

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce   sync.Once
	fontParsed *truetype.Font
	fontErr    error
)

// Face returns a font face at the given pixel size backed by the
// embedded Go Regular typeface. The TTF is parsed once; faces are cheap
// per-size views over it.
func Face(size float64) (font.Face, error) {
	fontOnce.Do(func() {
		fontParsed, fontErr = truetype.Parse(goregular.TTF)
	})
	if fontErr != nil {
		return nil, fmt.Errorf("failed to parse embedded font: %w", fontErr)
	}

	return truetype.NewFace(fontParsed, &truetype.Options{Size: size}), nil
}
