package pipeline

import (
	"context"
	"errors"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detect-tools-mcp/internal/annotate"
	"github.com/ironsheep/detect-tools-mcp/internal/detection"
	"github.com/ironsheep/detect-tools-mcp/internal/imaging"
)

// Options tunes a Pipeline. Zero values select the defaults.
type Options struct {
	// TopConfidences caps DetectionSummary.TopConfidences.
	TopConfidences int

	// Logger receives per-stage timings at debug level. Nil discards them.
	Logger logrus.FieldLogger
}

// Result is the output of one successful run.
type Result struct {
	Source     string
	Annotated  *image.RGBA
	Mask       *image.RGBA
	Detections []detection.Detection
	Summary    DetectionSummary
}

// Pipeline runs detection, annotation and mask synthesis for one image.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	registry  *detection.Registry
	annotator *annotate.Annotator
	topN      int
	log       logrus.FieldLogger
}

// New creates a pipeline over a frozen registry.
func New(registry *detection.Registry, annotator *annotate.Annotator, opts Options) (*Pipeline, error) {
	if registry == nil {
		return nil, errors.New("pipeline: nil registry")
	}
	if annotator == nil {
		return nil, errors.New("pipeline: nil annotator")
	}
	if opts.TopConfidences < 0 {
		return nil, errors.New("pipeline: top confidences must not be negative")
	}
	if opts.TopConfidences == 0 {
		opts.TopConfidences = DefaultTopConfidences
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	return &Pipeline{
		registry:  registry,
		annotator: annotator,
		topN:      opts.TopConfidences,
		log:       opts.Logger,
	}, nil
}

// Registry returns the registry the pipeline detects with.
func (p *Pipeline) Registry() *detection.Registry { return p.registry }

// RunFile decodes the image at path and runs it through the pipeline.
// Unsupported or unreadable files fail in the decode stage.
func (p *Pipeline) RunFile(ctx context.Context, path, variant string, th detection.Thresholds) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageDecode, Err: err}
	}
	start := time.Now()
	img, err := imaging.Normalize(path)
	if err != nil {
		return nil, &StageError{Stage: StageDecode, Err: err}
	}
	p.stageDone(variant, StageDecode, start, -1)

	res, err := p.run(ctx, img, variant, th)
	if err != nil {
		return nil, err
	}
	res.Source = path
	return res, nil
}

// Run detects objects in img with the given variant and thresholds and
// returns the annotated image, the mask overlay and the summary.
//
// Parameters:
//   - ctx: Checked before every stage.
//   - img: Source raster; never modified.
//   - variant: Registry key of the model to use.
//   - th: Thresholds passed to the model and reused by the annotator.
//
// Returns:
//   - *Result: Both derived images, the accepted detections and the
//     summary. Source is empty; RunFile sets it.
//   - error: Non-nil if any stage failed.
//
// # Errors
//
// Stages run in order and the first failure is returned as a *StageError
// naming the stage; later stages are not attempted.
func (p *Pipeline) Run(ctx context.Context, img image.Image, variant string, th detection.Thresholds) (*Result, error) {
	if err := imaging.CheckRaster(img); err != nil {
		return nil, &StageError{Stage: StageDecode, Err: err}
	}
	return p.run(ctx, img, variant, th)
}

func (p *Pipeline) run(ctx context.Context, img image.Image, variant string, th detection.Thresholds) (*Result, error) {
	entry, err := p.registry.Lookup(variant)
	if err != nil {
		return nil, &StageError{Stage: StageDetect, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageDetect, Err: err}
	}
	start := time.Now()
	raw, err := p.registry.Detect(ctx, img, variant, th)
	if err != nil {
		return nil, &StageError{Stage: StageDetect, Err: err}
	}
	p.stageDone(variant, StageDetect, start, len(raw))

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageAnnotate, Err: err}
	}
	start = time.Now()
	annotated, accepted, err := p.annotator.Annotate(img, raw, th.Confidence)
	if err != nil {
		return nil, &StageError{Stage: StageAnnotate, Err: err}
	}
	p.stageDone(variant, StageAnnotate, start, len(accepted))

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageMask, Err: err}
	}
	start = time.Now()
	mask := annotate.SynthesizeMask(img, annotate.DetectionBoxes(accepted))
	p.stageDone(variant, StageMask, start, len(accepted))

	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageSummarise, Err: err}
	}
	summary := Summarize(accepted, entry, th, p.topN)

	return &Result{
		Annotated:  annotated,
		Mask:       mask,
		Detections: accepted,
		Summary:    summary,
	}, nil
}

func (p *Pipeline) stageDone(variant string, stage Stage, start time.Time, n int) {
	fields := logrus.Fields{
		"variant": variant,
		"stage":   string(stage),
		"elapsed": time.Since(start).String(),
	}
	if n >= 0 {
		fields["detections"] = n
	}
	p.log.WithFields(fields).Debug("stage complete")
}
