package annotate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

// DefaultFontPaths are tried before the bundled fonts.
var DefaultFontPaths = []string{"arial.ttf", "DejaVuSans-Bold.ttf"}

// FontDirs are searched for font file names that are not found as given.
var FontDirs = []string{
	"/usr/share/fonts/truetype/dejavu",
	"/usr/share/fonts/truetype/msttcorefonts",
	"/usr/share/fonts/TTF",
	"/usr/share/fonts",
	"/Library/Fonts",
	"/System/Library/Fonts/Supplemental",
	`C:\Windows\Fonts`,
}

// FontSource is one candidate typeface.
type FontSource struct {
	Name string
	Load func() ([]byte, error)
}

// FontChain is an ordered list of acceptable typefaces. The first one that
// loads and parses wins.
type FontChain []FontSource

// NewFontChain returns a chain of the given font files followed by the
// bundled Go Bold and Go Mono Bold faces, so it always resolves.
func NewFontChain(paths []string) FontChain {
	chain := make(FontChain, 0, len(paths)+2)
	for _, p := range paths {
		p := strings.TrimSpace(p)
		if p == "" {
			continue
		}
		chain = append(chain, FontSource{Name: p, Load: func() ([]byte, error) { return readFont(p) }})
	}
	return append(chain,
		FontSource{Name: "Go Bold", Load: func() ([]byte, error) { return gobold.TTF, nil }},
		FontSource{Name: "Go Mono Bold", Load: func() ([]byte, error) { return gomonobold.TTF, nil }},
	)
}

// Resolve parses the first usable font. It fails only when no source
// loads.
func (c FontChain) Resolve() (*opentype.Font, string, error) {
	var errs []error
	for _, src := range c {
		data, err := src.Load()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		return f, src.Name, nil
	}
	return nil, "", fmt.Errorf("no usable font: %w", errors.Join(errs...))
}

// readFont reads path as given, then by base name from FontDirs.
func readFont(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil || filepath.IsAbs(path) {
		return data, err
	}
	for _, dir := range FontDirs {
		if data, derr := os.ReadFile(filepath.Join(dir, filepath.Base(path))); derr == nil {
			return data, nil
		}
	}
	return nil, err
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}
