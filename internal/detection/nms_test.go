package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox(t *testing.T) {
	b := Box{X1: 10, Y1: 20, X2: 30, Y2: 60}
	assert.True(t, b.Valid())
	assert.Equal(t, 20.0, b.Width())
	assert.Equal(t, 40.0, b.Height())
	assert.Equal(t, 800.0, b.Area())

	assert.False(t, Box{X1: 5, Y1: 0, X2: 5, Y2: 1}.Valid())
	assert.Equal(t, 0.0, Box{X1: 5, Y1: 0, X2: 1, Y2: 1}.Area())

	assert.Equal(t, 1.0, b.IoU(b))
	assert.Equal(t, 0.0, b.IoU(Box{X1: 100, Y1: 100, X2: 110, Y2: 110}))
	assert.InDelta(t, 1.0/3.0, Box{0, 0, 10, 10}.IoU(Box{5, 0, 15, 10}), 1e-9)

	assert.Equal(t, b, BoxFromRect(b.Rect()))
	assert.Equal(t, Box{0, 0, 3, 3}.Rect(), Box{0.4, 0.2, 2.6, 3.4}.Rect())
}

func TestThresholdsValidate(t *testing.T) {
	assert.NoError(t, Thresholds{0, 0}.Validate())
	assert.NoError(t, Thresholds{1, 1}.Validate())
	assert.ErrorIs(t, Thresholds{1.01, 0}.Validate(), ErrInvalidThreshold)
	assert.ErrorIs(t, Thresholds{0, -0.01}.Validate(), ErrInvalidThreshold)
}

func TestFilterConfidence(t *testing.T) {
	dets := []Detection{
		{Label: "a", Confidence: 0.2},
		{Label: "b", Confidence: 0.5},
		{Label: "c", Confidence: 0.9},
	}
	got := FilterConfidence(dets, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Label)
	assert.Equal(t, "c", got[1].Label)
}

func TestSuppressOverlaps(t *testing.T) {
	dets := []Detection{
		{Box: Box{0, 0, 10, 10}, Label: "grass", Confidence: 0.6},
		{Box: Box{1, 1, 11, 11}, Label: "grass", Confidence: 0.9},
		{Box: Box{1, 1, 11, 11}, Label: "shrub", Confidence: 0.7},
		{Box: Box{50, 50, 60, 60}, Label: "grass", Confidence: 0.8},
	}

	got := SuppressOverlaps(dets, 0.5)
	require.Len(t, got, 3)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, 0.8, got[1].Confidence)
	assert.Equal(t, "shrub", got[2].Label, "different labels never suppress each other")

	assert.Len(t, SuppressOverlaps(dets, 1), 4)
	assert.Empty(t, SuppressOverlaps(nil, 0.5))
}

func TestSuppressOverlaps_StableTies(t *testing.T) {
	dets := []Detection{
		{Box: Box{0, 0, 10, 10}, Label: "first", Confidence: 0.5},
		{Box: Box{20, 0, 30, 10}, Label: "second", Confidence: 0.5},
	}
	got := SuppressOverlaps(dets, 0.5)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Label)
	assert.Equal(t, "second", got[1].Label)
}
