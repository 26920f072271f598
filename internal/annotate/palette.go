package annotate

import (
	"fmt"
	"image/color"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default colours: lime boxes and captions over black shadows.
const (
	DefaultBoxColor    = "#00FF00"
	DefaultShadowColor = "#000000"
)

// Palette holds the drawing colours. Box is used for outlines and caption
// text, Shadow for the caption shadows.
type Palette struct {
	Box    color.RGBA
	Shadow color.RGBA
}

// DefaultPalette returns lime on black.
func DefaultPalette() Palette {
	return Palette{
		Box:    color.RGBA{0, 255, 0, 255},
		Shadow: color.RGBA{0, 0, 0, 255},
	}
}

// ParsePalette parses two hex colours ("#RRGGBB", "#RGB", with or without
// the leading '#'). Empty strings select the defaults.
func ParsePalette(box, shadow string) (Palette, error) {
	p := DefaultPalette()
	var err error
	if box != "" {
		if p.Box, err = parseHex(box); err != nil {
			return Palette{}, fmt.Errorf("box color: %w", err)
		}
	}
	if shadow != "" {
		if p.Shadow, err = parseHex(shadow); err != nil {
			return Palette{}, fmt.Errorf("shadow color: %w", err)
		}
	}
	return p, nil
}

func parseHex(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 255}, nil
}
