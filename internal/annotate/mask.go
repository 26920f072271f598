package annotate

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/segment"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

// MaskFill is the translucent white painted over each box.
var MaskFill = color.NRGBA{R: 255, G: 255, B: 255, A: 130}

// MaskRect returns the pixels SynthesizeMask fills for b inside bounds.
// Box corners are rounded to the nearest pixel and both are inclusive.
// Coordinates far outside bounds are clamped before conversion so they
// cannot overflow int.
func MaskRect(b detection.Box, bounds image.Rectangle) image.Rectangle {
	x := func(v float64) int { return clampRound(v, bounds.Min.X-1, bounds.Max.X) }
	y := func(v float64) int { return clampRound(v, bounds.Min.Y-1, bounds.Max.Y) }
	r := image.Rect(x(b.X1), y(b.Y1), x(b.X2)+1, y(b.Y2)+1)
	return r.Intersect(bounds)
}

func clampRound(v float64, lo, hi int) int {
	return int(math.Round(math.Max(float64(lo), math.Min(v, float64(hi)))))
}

// SynthesizeMask composites a translucent overlay of boxes onto a copy of
// img and returns it with an alpha channel.
//
// Parameters:
//   - img: Source raster; never modified.
//   - boxes: Regions to cover, in img's coordinates. Malformed boxes are
//     skipped and the rest are clipped to img's bounds (see MaskRect).
//
// Returns:
//   - *image.RGBA: The composited image with origin (0,0).
//
// All boxes are painted into one overlay layer first, so overlapping boxes
// share a single fill, and the layer is then composited over the source
// once. With no boxes the result equals the source pixel for pixel.
func SynthesizeMask(img image.Image, boxes []detection.Box) *image.RGBA {
	out := Canvas(img)
	if len(boxes) == 0 {
		return out
	}

	origin := img.Bounds().Min
	overlay := image.NewNRGBA(out.Bounds())
	fill := image.NewUniform(MaskFill)
	for _, b := range boxes {
		if !b.Valid() {
			continue
		}
		r := MaskRect(b, img.Bounds()).Sub(origin)
		draw.Draw(overlay, r, fill, image.Point{}, draw.Src)
	}

	draw.Draw(out, out.Bounds(), overlay, image.Point{}, draw.Over)
	return out
}

// DetectionBoxes extracts the boxes of dets in order.
func DetectionBoxes(dets []detection.Detection) []detection.Box {
	boxes := make([]detection.Box, len(dets))
	for i, d := range dets {
		boxes[i] = d.Box
	}
	return boxes
}

// RecoverBoxes finds the filled regions of an overlay produced by
// SynthesizeMask from source. Boxes use the same inclusive-corner
// convention as SynthesizeMask's input and are ordered top to bottom, then
// left to right.
//
// Recovery is exact for non-overlapping boxes on sources without pure white
// pixels; white stays white under the fill and cannot be told apart.
func RecoverBoxes(source, overlay image.Image) []detection.Box {
	diff := blend.Difference(Canvas(source), Canvas(overlay))
	changed := segment.Threshold(diff, 1)

	b := changed.Bounds()
	m := detection.NewMask(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if changed.Pix[y*changed.Stride+x] != 0 {
				m.Set(x, y)
			}
		}
	}

	regions := detection.FindRegions(m, 1)
	boxes := make([]detection.Box, 0, len(regions))
	for _, r := range regions {
		boxes = append(boxes, detection.Box{
			X1: float64(r.Bounds.Min.X),
			Y1: float64(r.Bounds.Min.Y),
			X2: float64(r.Bounds.Max.X - 1),
			Y2: float64(r.Bounds.Max.Y - 1),
		})
	}
	sort.SliceStable(boxes, func(i, j int) bool {
		if boxes[i].Y1 != boxes[j].Y1 {
			return boxes[i].Y1 < boxes[j].Y1
		}
		return boxes[i].X1 < boxes[j].X1
	})
	return boxes
}
