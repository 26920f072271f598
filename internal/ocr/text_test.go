package ocr

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

func TestPrepare(t *testing.T) {
	small := image.NewRGBA(image.Rect(0, 0, 100, 50))
	up, scale := prepare(small)
	assert.Equal(t, 6.0, scale)
	assert.Equal(t, MinHeight, up.Bounds().Dy())
	assert.Equal(t, 600, up.Bounds().Dx())

	big := image.NewRGBA(image.Rect(0, 0, 400, 400))
	same, scale := prepare(big)
	assert.Equal(t, 1.0, scale)
	assert.Same(t, big, same)
}

func TestWordsToDetections(t *testing.T) {
	words := []Word{
		{Text: " Hello ", Bounds: image.Rect(60, 30, 120, 60), Confidence: 91},
		{Text: "   ", Bounds: image.Rect(0, 0, 10, 10), Confidence: 99},
		{Text: "World", Bounds: image.Rect(150, 30, 210, 60), Confidence: 45.5},
	}

	dets := wordsToDetections(words, 3, image.Pt(10, 20))
	require.Len(t, dets, 2)
	assert.Equal(t, "Hello", dets[0].Label)
	assert.Equal(t, detection.Box{X1: 30, Y1: 30, X2: 50, Y2: 40}, dets[0].Box)
	assert.InDelta(t, 0.91, dets[0].Confidence, 1e-9)
	assert.Equal(t, "World", dets[1].Label)
	assert.InDelta(t, 0.455, dets[1].Confidence, 1e-9)
}

func TestTextModel_Registers(t *testing.T) {
	m, err := NewTextModel("")
	if err != nil {
		assert.ErrorIs(t, err, ErrNoTesseract)
		t.Skip("built without tesseract")
	}

	r := detection.NewRegistry()
	require.NoError(t, r.Register("text", m))
	img := image.NewRGBA(image.Rect(0, 0, 120, 40))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(5, 5, color.Black)

	dets, err := r.Detect(context.Background(), img, "text", detection.Thresholds{Confidence: 0.5, Overlap: 0.5})
	require.NoError(t, err)
	for _, d := range dets {
		assert.GreaterOrEqual(t, d.Confidence, 0.5)
	}
}
