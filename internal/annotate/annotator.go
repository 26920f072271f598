package annotate

import (
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/opentype"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
	"github.com/ironsheep/detect-tools-mcp/internal/imaging"
)

const (
	// DefaultFontSize is the caption size in points at 72 DPI.
	DefaultFontSize = 42

	// DefaultLineWidth is the box outline width in pixels.
	DefaultLineWidth = 4
)

// Caption offsets from the box's top-left corner. The foreground sits
// between the two shadows.
var (
	shadowOffsets    = [2]float64{7, 9}
	foregroundOffset = 8.0
)

// Options configures an Annotator. Zero values select the defaults.
type Options struct {
	FontPaths []string
	FontSize  float64
	LineWidth float64
	Palette   *Palette
}

// Annotator draws detection boxes and captions. It is safe for concurrent
// use: the parsed font is shared and a face is created per call.
type Annotator struct {
	font      *opentype.Font
	fontName  string
	fontSize  float64
	lineWidth float64
	palette   Palette
}

// NewAnnotator resolves the font chain and validates the options.
func NewAnnotator(opts Options) (*Annotator, error) {
	if opts.FontSize == 0 {
		opts.FontSize = DefaultFontSize
	}
	if opts.LineWidth == 0 {
		opts.LineWidth = DefaultLineWidth
	}
	if opts.FontSize < 0 || opts.LineWidth < 0 {
		return nil, errors.New("font size and line width must be positive")
	}
	if opts.FontPaths == nil {
		opts.FontPaths = DefaultFontPaths
	}
	palette := DefaultPalette()
	if opts.Palette != nil {
		palette = *opts.Palette
	}

	f, name, err := NewFontChain(opts.FontPaths).Resolve()
	if err != nil {
		return nil, err
	}
	face, err := newFace(f, opts.FontSize)
	if err != nil {
		return nil, fmt.Errorf("font %s: %w", name, err)
	}
	face.Close()

	return &Annotator{
		font:      f,
		fontName:  name,
		fontSize:  opts.FontSize,
		lineWidth: opts.LineWidth,
		palette:   palette,
	}, nil
}

// FontName reports which font of the chain was selected.
func (a *Annotator) FontName() string { return a.fontName }

// Caption formats the text drawn next to a detection.
func Caption(d detection.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// Annotate returns a copy of img with every detection whose confidence is
// at least threshold drawn on it. Overlap suppression is not repeated here.
//
// Parameters:
//   - img: Source raster; never modified.
//   - dets: Detections in image coordinates.
//   - threshold: Minimum confidence for a detection to be drawn.
//
// Returns:
//   - *image.RGBA: A fresh image with origin (0,0).
//   - []Detection: The drawn detections in input order.
//   - error: Non-nil for an empty image or an unusable font face.
//
// For each accepted detection the caption is drawn at (+7,+7) and (+9,+9) in
// the shadow colour and at (+8,+8) in the box colour, relative to the box's
// top-left corner, then the outline is stroked inside the box.
func (a *Annotator) Annotate(img image.Image, dets []detection.Detection, threshold float64) (*image.RGBA, []detection.Detection, error) {
	if err := imaging.CheckRaster(img); err != nil {
		return nil, nil, err
	}
	out := Canvas(img)
	accepted := detection.FilterConfidence(dets, threshold)
	if len(accepted) == 0 {
		return out, accepted, nil
	}

	face, err := newFace(a.font, a.fontSize)
	if err != nil {
		return nil, nil, fmt.Errorf("font %s: %w", a.fontName, err)
	}
	defer face.Close()

	origin := img.Bounds().Min
	dc := gg.NewContextForRGBA(out)
	dc.Translate(float64(-origin.X), float64(-origin.Y))
	dc.SetFontFace(face)
	dc.SetLineWidth(a.lineWidth)

	inset := a.lineWidth / 2
	for _, d := range accepted {
		caption := Caption(d)
		x, y := d.Box.X1, d.Box.Y1

		dc.SetColor(a.palette.Shadow)
		for _, off := range shadowOffsets {
			dc.DrawStringAnchored(caption, x+off, y+off, 0, 1)
		}
		dc.SetColor(a.palette.Box)
		dc.DrawStringAnchored(caption, x+foregroundOffset, y+foregroundOffset, 0, 1)

		w := max(d.Box.Width()-a.lineWidth, 0)
		h := max(d.Box.Height()-a.lineWidth, 0)
		dc.DrawRectangle(x+inset, y+inset, w, h)
		dc.Stroke()
	}
	return out, accepted, nil
}

// Canvas returns an RGBA copy of img rebased to a (0,0) origin.
func Canvas(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
