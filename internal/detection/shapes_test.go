package detection

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a solid color test image
func createTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// drawOutline draws a one pixel black rectangle outline with inclusive corners.
func drawOutline(img *image.RGBA, x1, y1, x2, y2 int) {
	for x := x1; x <= x2; x++ {
		img.Set(x, y1, color.Black)
		img.Set(x, y2, color.Black)
	}
	for y := y1; y <= y2; y++ {
		img.Set(x1, y, color.Black)
		img.Set(x2, y, color.Black)
	}
}

// drawCircle draws a circle outline using the midpoint algorithm.
func drawCircle(img *image.RGBA, cx, cy, radius int) {
	x, y, e := radius, 0, 0
	for x >= y {
		for _, p := range [][2]int{{x, y}, {y, x}, {-y, x}, {-x, y}, {-x, -y}, {-y, -x}, {y, -x}, {x, -y}} {
			img.Set(cx+p[0], cy+p[1], color.Black)
		}
		if e <= 0 {
			y++
			e += 2*y + 1
		}
		if e > 0 {
			x--
			e -= 2*x + 1
		}
	}
}

var shapeThresholds = Thresholds{Confidence: 0.5, Overlap: 0.5}

func TestShapeModel_Rectangle(t *testing.T) {
	img := createTestImage(100, 100, color.White)
	drawOutline(img, 20, 20, 80, 60)

	dets, err := NewShapeModel().Detect(context.Background(), img, shapeThresholds)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	d := dets[0]
	assert.Equal(t, LabelRectangle, d.Label)
	assert.Greater(t, d.Confidence, 0.95)
	assert.InDelta(t, 20, d.Box.X1, 1)
	assert.InDelta(t, 20, d.Box.Y1, 1)
	assert.InDelta(t, 81, d.Box.X2, 1)
	assert.InDelta(t, 61, d.Box.Y2, 1)
}

func TestShapeModel_FilledRectangles(t *testing.T) {
	img := createTestImage(120, 80, color.White)
	for y := 10; y < 40; y++ {
		for x := 10; x < 40; x++ {
			img.Set(x, y, color.RGBA{0, 0, 120, 255})
		}
	}
	for y := 30; y < 70; y++ {
		for x := 60; x < 110; x++ {
			img.Set(x, y, color.RGBA{120, 0, 0, 255})
		}
	}

	dets, err := NewShapeModel().Detect(context.Background(), img, shapeThresholds)
	require.NoError(t, err)
	require.Len(t, dets, 2)
	for _, d := range dets {
		assert.Equal(t, LabelRectangle, d.Label)
		assert.True(t, d.Box.Valid())
	}
	assert.GreaterOrEqual(t, dets[0].Confidence, dets[1].Confidence)
}

func TestShapeModel_CircleScoresLow(t *testing.T) {
	img := createTestImage(100, 100, color.White)
	drawCircle(img, 50, 50, 25)

	dets, err := NewShapeModel().Detect(context.Background(), img, Thresholds{Confidence: 0, Overlap: 0.5})
	require.NoError(t, err)
	require.NotEmpty(t, dets)
	for _, d := range dets {
		assert.Less(t, d.Confidence, 0.5)
		assert.Equal(t, LabelRegion, d.Label)
	}

	dets, err = NewShapeModel().Detect(context.Background(), img, shapeThresholds)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestShapeModel_MinArea(t *testing.T) {
	img := createTestImage(100, 100, color.White)
	drawOutline(img, 40, 40, 46, 46)

	m := NewShapeModel()
	m.MinArea = 1000
	dets, err := m.Detect(context.Background(), img, shapeThresholds)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestShapeModel_UniformImage(t *testing.T) {
	img := createTestImage(100, 100, color.RGBA{128, 128, 128, 255})
	dets, err := NewShapeModel().Detect(context.Background(), img, shapeThresholds)
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestShapeModel_OffsetBounds(t *testing.T) {
	base := createTestImage(100, 100, color.White)
	drawOutline(base, 20, 20, 80, 60)
	sub := base.SubImage(image.Rect(10, 10, 100, 100))

	dets, err := NewShapeModel().Detect(context.Background(), sub, shapeThresholds)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	assert.InDelta(t, 20, dets[0].Box.X1, 1)
}

func TestShapeModel_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewShapeModel().Detect(ctx, createTestImage(20, 20, color.White), shapeThresholds)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindRegions(t *testing.T) {
	m := NewMask(20, 20)
	for x := 2; x < 8; x++ {
		m.Set(x, 3)
	}
	// diagonal neighbour joins the same region
	m.Set(8, 4)
	for y := 12; y < 18; y++ {
		for x := 12; x < 18; x++ {
			m.Set(x, y)
		}
	}
	m.Set(0, 19)
	m.Set(100, 100)

	regions := FindRegions(m, 2)
	require.Len(t, regions, 2)
	assert.Equal(t, image.Rect(2, 3, 9, 5), regions[0].Bounds)
	assert.Len(t, regions[0].Points, 7)
	assert.Equal(t, image.Rect(12, 12, 18, 18), regions[1].Bounds)
	assert.InDelta(t, 1.0, regions[1].BorderCoverage(), 1e-9)
}

func TestMask_OutOfRange(t *testing.T) {
	m := NewMask(3, 3)
	m.Set(-1, 0)
	m.Set(3, 3)
	assert.False(t, m.At(-1, 0))
	assert.False(t, m.At(3, 3))
	assert.Empty(t, FindRegions(m, 1))
}
