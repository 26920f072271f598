package pipeline

import (
	"context"
	"image"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

const (
	// NoDetectionLabel stands in for the first class label of an image
	// without accepted detections.
	NoDetectionLabel = "No detection"

	// ModelVersion is reported with every comparison.
	ModelVersion = "1.0"
)

// Interpretation is the qualitative reading of a detection count delta.
type Interpretation string

const (
	Increased Interpretation = "increased"
	Decreased Interpretation = "decreased"
	Equal     Interpretation = "equal"
)

// Interpret maps a detection delta to an Interpretation. Zero is always
// Equal.
func Interpret(delta int) Interpretation {
	switch {
	case delta > 0:
		return Increased
	case delta < 0:
		return Decreased
	default:
		return Equal
	}
}

// Sentence returns a one-line description suitable for reports.
func (i Interpretation) Sentence() string {
	switch i {
	case Increased:
		return "Detection increased in the second image."
	case Decreased:
		return "Detection decreased in the second image."
	default:
		return "Both images have equal detection counts."
	}
}

// ComparisonSummary holds the summaries of both images and their
// differences. Deltas are second minus first.
type ComparisonSummary struct {
	First           DetectionSummary `json:"first"`
	Second          DetectionSummary `json:"second"`
	DetectionDelta  int              `json:"detection_delta"`
	ConfidenceDelta float64          `json:"confidence_delta"`
	Interpretation  Interpretation   `json:"interpretation"`
	Sentence        string           `json:"sentence"`
	FirstLabel      string           `json:"first_label"`
	SecondLabel     string           `json:"second_label"`
	ModelName       string           `json:"model_name"`
	ModelVersion    string           `json:"model_version"`
}

// Comparison is a ComparisonSummary plus both runs' artifacts.
type Comparison struct {
	Summary ComparisonSummary
	First   *Result
	Second  *Result
}

// Compare runs the pipeline on both images with the same variant and
// thresholds. A failure on either side returns a *ComparisonError and no
// comparison.
func (p *Pipeline) Compare(ctx context.Context, img1, img2 image.Image, variant string, th detection.Thresholds) (*Comparison, error) {
	first, err := p.Run(ctx, img1, variant, th)
	if err != nil {
		return nil, &ComparisonError{Side: 1, Err: err}
	}
	second, err := p.Run(ctx, img2, variant, th)
	if err != nil {
		return nil, &ComparisonError{Side: 2, Err: err}
	}
	return newComparison(first, second), nil
}

// CompareFiles is Compare for images on disk.
func (p *Pipeline) CompareFiles(ctx context.Context, path1, path2, variant string, th detection.Thresholds) (*Comparison, error) {
	first, err := p.RunFile(ctx, path1, variant, th)
	if err != nil {
		return nil, &ComparisonError{Side: 1, Err: err}
	}
	second, err := p.RunFile(ctx, path2, variant, th)
	if err != nil {
		return nil, &ComparisonError{Side: 2, Err: err}
	}
	return newComparison(first, second), nil
}

// Diff computes the comparison of two summaries.
func Diff(first, second DetectionSummary) ComparisonSummary {
	delta := second.TotalDetections - first.TotalDetections
	interp := Interpret(delta)
	return ComparisonSummary{
		First:           first,
		Second:          second,
		DetectionDelta:  delta,
		ConfidenceDelta: second.HighestConfidence - first.HighestConfidence,
		Interpretation:  interp,
		Sentence:        interp.Sentence(),
		FirstLabel:      first.FirstLabel(),
		SecondLabel:     second.FirstLabel(),
		ModelName:       first.ModelName,
		ModelVersion:    ModelVersion,
	}
}

func newComparison(first, second *Result) *Comparison {
	return &Comparison{
		Summary: Diff(first.Summary, second.Summary),
		First:   first,
		Second:  second,
	}
}
