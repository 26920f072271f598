package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/detect-tools-mcp/internal/annotate"
	"github.com/ironsheep/detect-tools-mcp/internal/detection"
	"github.com/ironsheep/detect-tools-mcp/internal/imaging"
)

// fakeModel returns canned detections keyed by image width, ignoring the
// thresholds so the pipeline's own filtering is exercised.
type fakeModel struct {
	byWidth map[int][]detection.Detection
	err     error
}

func (f *fakeModel) Name() string { return "Fake Model" }

func (f *fakeModel) Detect(ctx context.Context, img image.Image, th detection.Thresholds) ([]detection.Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byWidth[img.Bounds().Dx()], nil
}

func det(label string, conf, x1, y1, x2, y2 float64) detection.Detection {
	return detection.Detection{
		Box:        detection.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Label:      label,
		Confidence: conf,
	}
}

func gradientImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(40 + x%150), G: uint8(60 + y%150), B: 90, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func newTestPipeline(t *testing.T, m detection.Model, opts Options) *Pipeline {
	t.Helper()
	reg := detection.NewRegistry()
	require.NoError(t, reg.Register("vegetation", m))
	require.NoError(t, reg.Register("soil", m, detection.WithDefaultConfidence(0.3), detection.WithDisplayName("Soil YOLO Model")))
	reg.Freeze()

	ann, err := annotate.NewAnnotator(annotate.Options{FontPaths: []string{}})
	require.NoError(t, err)

	p, err := New(reg, ann, opts)
	require.NoError(t, err)
	return p
}

var mixedDetections = []detection.Detection{
	det("grass", 0.9, 10, 10, 60, 60),
	det("weed", 0.3, 120, 20, 180, 70),
	det("shrub", 0.7, 20, 100, 90, 150),
	det("grass", 0.6, 110, 100, 170, 170),
}

var th50 = detection.Thresholds{Confidence: 0.5, Overlap: 0.5}

func TestNew_Validation(t *testing.T) {
	ann, err := annotate.NewAnnotator(annotate.Options{FontPaths: []string{}})
	require.NoError(t, err)

	_, err = New(nil, ann, Options{})
	assert.Error(t, err)
	_, err = New(detection.NewRegistry(), nil, Options{})
	assert.Error(t, err)
	_, err = New(detection.NewRegistry(), ann, Options{TopConfidences: -1})
	assert.Error(t, err)
}

func TestRun_Summary(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{200: mixedDetections}}, Options{})

	res, err := p.Run(context.Background(), gradientImage(200, 200), "vegetation", th50)
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, 3, s.TotalDetections)
	assert.Equal(t, 0.9, s.HighestConfidence)
	assert.Equal(t, []float64{0.9, 0.7, 0.6}, s.TopConfidences)
	assert.Equal(t, []string{"grass", "shrub", "grass"}, s.ClassLabels)
	assert.Equal(t, "Vegetation Fake Model", s.ModelName)
	assert.Equal(t, "vegetation", s.ModelVariant)
	assert.Equal(t, 0.5, s.ConfidenceThreshold)
	assert.Equal(t, 0.5, s.OverlapThreshold)

	assert.Len(t, res.Detections, 3)
	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Annotated.Bounds())
	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Mask.Bounds())
	assert.Empty(t, res.Source)
}

func TestRun_DisplayNameOverride(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{}, Options{})

	res, err := p.Run(context.Background(), gradientImage(50, 50), "soil", detection.Thresholds{Confidence: 0.3, Overlap: 0.5})
	require.NoError(t, err)
	assert.Equal(t, "Soil YOLO Model", res.Summary.ModelName)
	assert.Equal(t, "soil", res.Summary.ModelVariant)
}

func TestRun_SummaryInvariantsAcrossThresholds(t *testing.T) {
	var many []detection.Detection
	for i, c := range []float64{0.12, 0.95, 0.33, 0.5, 0.81, 0.47, 0.66, 0.74, 0.99, 0.05} {
		x := float64(i%5) * 40
		y := float64(i/5) * 100
		many = append(many, det("leaf", c, x+2, y+2, x+38, y+90))
	}
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{200: many}}, Options{})

	for _, conf := range []float64{0, 0.25, 0.5, 0.75, 1} {
		res, err := p.Run(context.Background(), gradientImage(200, 200), "vegetation", detection.Thresholds{Confidence: conf, Overlap: 0.5})
		require.NoError(t, err)
		s := res.Summary

		for _, d := range res.Detections {
			assert.GreaterOrEqual(t, d.Confidence, conf)
		}
		assert.Len(t, s.ClassLabels, s.TotalDetections)
		assert.Len(t, s.TopConfidences, min(DefaultTopConfidences, s.TotalDetections))
		assert.True(t, sort.SliceIsSorted(s.TopConfidences, func(i, j int) bool {
			return s.TopConfidences[i] > s.TopConfidences[j]
		}), "threshold %.2f: %v", conf, s.TopConfidences)
		if s.TotalDetections > 0 {
			assert.Equal(t, s.TopConfidences[0], s.HighestConfidence)
		}
	}
}

func TestRun_TopConfidencesCap(t *testing.T) {
	var many []detection.Detection
	for i := 0; i < 8; i++ {
		x := float64(i) * 25
		many = append(many, det("leaf", 0.6+float64(i)*0.05, x+1, 10, x+20, 40))
	}
	model := &fakeModel{byWidth: map[int][]detection.Detection{200: many}}

	p := newTestPipeline(t, model, Options{})
	res, err := p.Run(context.Background(), gradientImage(200, 100), "vegetation", th50)
	require.NoError(t, err)
	assert.Equal(t, 8, res.Summary.TotalDetections)
	assert.Len(t, res.Summary.TopConfidences, 6)
	assert.InDelta(t, 0.95, res.Summary.TopConfidences[0], 1e-9)

	p = newTestPipeline(t, model, Options{TopConfidences: 3})
	res, err = p.Run(context.Background(), gradientImage(200, 100), "vegetation", th50)
	require.NoError(t, err)
	assert.Len(t, res.Summary.TopConfidences, 3)
}

func TestRun_ZeroDetections(t *testing.T) {
	low := []detection.Detection{det("grass", 0.2, 10, 10, 50, 50), det("weed", 0.1, 60, 60, 90, 90)}
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{100: low}}, Options{})

	src := gradientImage(100, 100)
	res, err := p.Run(context.Background(), src, "vegetation", th50)
	require.NoError(t, err)

	s := res.Summary
	assert.Equal(t, 0, s.TotalDetections)
	assert.Equal(t, 0.0, s.HighestConfidence)
	assert.NotNil(t, s.TopConfidences)
	assert.Empty(t, s.TopConfidences)
	assert.NotNil(t, s.ClassLabels)
	assert.Empty(t, s.ClassLabels)
	assert.Equal(t, NoDetectionLabel, s.FirstLabel())

	for _, pt := range []image.Point{{0, 0}, {30, 30}, {75, 75}} {
		assert.Equal(t, src.NRGBAAt(pt.X, pt.Y), color.NRGBAModel.Convert(res.Mask.At(pt.X, pt.Y)))
		assert.Equal(t, src.NRGBAAt(pt.X, pt.Y), color.NRGBAModel.Convert(res.Annotated.At(pt.X, pt.Y)))
	}
}

func TestRun_MaskUsesAcceptedBoxes(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{200: mixedDetections}}, Options{})
	src := gradientImage(200, 200)

	res, err := p.Run(context.Background(), src, "vegetation", th50)
	require.NoError(t, err)

	// Inside the rejected "weed" box.
	assert.Equal(t, src.NRGBAAt(150, 45), color.NRGBAModel.Convert(res.Mask.At(150, 45)))
	// Inside the accepted "grass" box.
	assert.NotEqual(t, src.NRGBAAt(35, 35), color.NRGBAModel.Convert(res.Mask.At(35, 35)))

	want := annotate.SynthesizeMask(src, annotate.DetectionBoxes(res.Detections))
	assert.Equal(t, want.Pix, res.Mask.Pix)
}

func TestRun_Deterministic(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{200: mixedDetections}}, Options{})
	src := gradientImage(200, 200)

	a, err := p.Run(context.Background(), src, "vegetation", th50)
	require.NoError(t, err)
	b, err := p.Run(context.Background(), src, "vegetation", th50)
	require.NoError(t, err)

	assert.Equal(t, a.Annotated.Pix, b.Annotated.Pix)
	assert.Equal(t, a.Mask.Pix, b.Mask.Pix)
	assert.Equal(t, a.Summary, b.Summary)
}

func TestRun_StageErrors(t *testing.T) {
	modelErr := errors.New("session closed")
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		img     image.Image
		variant string
		th      detection.Thresholds
		model   detection.Model
		stage   Stage
		target  error
	}{
		{"nil image", context.Background(), nil, "vegetation", th50, &fakeModel{}, StageDecode, imaging.ErrEmptyImage},
		{"empty image", context.Background(), image.NewRGBA(image.Rectangle{}), "vegetation", th50, &fakeModel{}, StageDecode, imaging.ErrEmptyImage},
		{"unknown variant", context.Background(), gradientImage(10, 10), "moss", th50, &fakeModel{}, StageDetect, detection.ErrUnknownModel},
		{"bad threshold", context.Background(), gradientImage(10, 10), "vegetation", detection.Thresholds{Confidence: 1.5, Overlap: 0.5}, &fakeModel{}, StageDetect, detection.ErrInvalidThreshold},
		{"model failure", context.Background(), gradientImage(10, 10), "vegetation", th50, &fakeModel{err: modelErr}, StageDetect, modelErr},
		{"canceled", canceled, gradientImage(10, 10), "vegetation", th50, &fakeModel{}, StageDetect, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPipeline(t, tt.model, Options{})
			res, err := p.Run(tt.ctx, tt.img, tt.variant, tt.th)
			require.Error(t, err)
			assert.Nil(t, res)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestRun_ModelFailureIsInferenceError(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{err: errors.New("boom")}, Options{})
	_, err := p.Run(context.Background(), gradientImage(10, 10), "vegetation", th50)

	var ie *detection.InferenceError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "vegetation", ie.Variant)
	assert.Contains(t, err.Error(), "pipeline detect stage failed")
}

func TestRunFile(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{200: mixedDetections}}, Options{})
	path := writePNG(t, "field.png", gradientImage(200, 200))

	res, err := p.RunFile(context.Background(), path, "vegetation", th50)
	require.NoError(t, err)
	assert.Equal(t, path, res.Source)
	assert.Equal(t, 3, res.Summary.TotalDetections)
}

func TestRunFile_DecodeErrors(t *testing.T) {
	p := newTestPipeline(t, &fakeModel{}, Options{})
	dir := t.TempDir()

	avif := filepath.Join(dir, "photo.avif")
	require.NoError(t, os.WriteFile(avif, []byte("not really avif"), 0o644))
	corrupt := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a png"), 0o644))

	for _, path := range []string{filepath.Join(dir, "missing.png"), avif, corrupt} {
		_, err := p.RunFile(context.Background(), path, "vegetation", th50)
		var se *StageError
		require.ErrorAs(t, err, &se, path)
		assert.Equal(t, StageDecode, se.Stage)
	}

	_, err := p.RunFile(context.Background(), avif, "vegetation", th50)
	assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
}

func TestRun_LogsStages(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := newTestPipeline(t, &fakeModel{byWidth: map[int][]detection.Detection{200: mixedDetections}}, Options{Logger: logger})

	_, err := p.Run(context.Background(), gradientImage(200, 200), "vegetation", th50)
	require.NoError(t, err)

	var stages []string
	for _, e := range hook.AllEntries() {
		assert.Equal(t, "vegetation", e.Data["variant"])
		stages = append(stages, e.Data["stage"].(string))
	}
	assert.Equal(t, []string{"detect", "annotate", "mask"}, stages)
	assert.Equal(t, 4, hook.AllEntries()[0].Data["detections"])
	assert.Equal(t, 3, hook.AllEntries()[1].Data["detections"])
}
