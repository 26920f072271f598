package detection

import (
	"context"
	"image"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// Shape labels reported by ShapeModel.
const (
	LabelRectangle = "rectangle"
	LabelRegion    = "region"
)

// ShapeModel is a heuristic detector for high-contrast shapes. It needs no
// weights, which makes it the default variant for screenshots, diagrams and
// tests.
//
// # Algorithm
//
//  1. Grayscale: luminance of every pixel.
//  2. Edge map: a pixel is an edge when its gray level differs from its right
//     or lower neighbour by more than EdgeThreshold. Border pixels are never
//     edges.
//  3. Regions: 8-connected components of edge pixels, dropping components
//     with fewer than MinPixels pixels.
//  4. Scoring: confidence is the fraction of the region's bounding outline
//     covered by edge pixels. Axis-aligned rectangles score close to 1.0.
//  5. Filtering: regions smaller than MinArea or below the confidence
//     threshold are discarded, then overlaps are suppressed.
//
// Regions scoring at least RectangleScore are labelled "rectangle", the rest
// "region".
type ShapeModel struct {
	EdgeThreshold  float64
	MinPixels      int
	MinArea        int
	RectangleScore float64
}

// NewShapeModel returns a ShapeModel with the defaults used by the server.
func NewShapeModel() *ShapeModel {
	return &ShapeModel{
		EdgeThreshold:  30,
		MinPixels:      10,
		MinArea:        100,
		RectangleScore: 0.9,
	}
}

// Name implements Model.
func (m *ShapeModel) Name() string { return "Shape Model" }

// Detect implements Model.
func (m *ShapeModel) Detect(ctx context.Context, img image.Image, th Thresholds) ([]Detection, error) {
	bounds := img.Bounds()
	edges := m.edgeMask(img)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	regions := FindRegions(edges, m.MinPixels)
	dets := make([]Detection, 0, len(regions))
	for _, r := range regions {
		if r.Bounds.Dx()*r.Bounds.Dy() < m.MinArea {
			continue
		}
		score := r.BorderCoverage()
		if score < th.Confidence {
			continue
		}
		label := LabelRegion
		if score >= m.RectangleScore {
			label = LabelRectangle
		}
		dets = append(dets, Detection{
			Box:        BoxFromRect(r.Bounds.Add(bounds.Min)),
			Label:      label,
			Confidence: math.Round(score*1e4) / 1e4,
		})
	}
	return SuppressOverlaps(dets, th.Overlap), nil
}

// edgeMask thresholds the forward gray-level gradient. The result uses
// image-relative coordinates.
func (m *ShapeModel) edgeMask(img image.Image) *Mask {
	gray := effect.Grayscale(img)
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	edges := NewMask(width, height)

	level := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4])
	}
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			c := level(x, y)
			if math.Abs(c-level(x+1, y)) > m.EdgeThreshold || math.Abs(c-level(x, y+1)) > m.EdgeThreshold {
				edges.Set(x, y)
			}
		}
	}
	return edges
}
