package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrUnknownModel is returned when a variant key has no registered model.
	ErrUnknownModel = errors.New("unknown model variant")

	// ErrInvalidThreshold is returned for thresholds outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")
)

// Box is an axis-aligned bounding box in pixel coordinates.
// (X1, Y1) is the top-left corner and (X2, Y2) the bottom-right corner.
// A well-formed box has X1 < X2 and Y1 < Y2.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width is X2 - X1.
func (b Box) Width() float64 { return b.X2 - b.X1 }

// Height is Y2 - Y1.
func (b Box) Height() float64 { return b.Y2 - b.Y1 }

// Area is zero for malformed boxes.
func (b Box) Area() float64 {
	if !b.Valid() {
		return 0
	}
	return b.Width() * b.Height()
}

// Valid reports whether the box is finite with X1 < X2 and Y1 < Y2.
func (b Box) Valid() bool {
	for _, v := range [4]float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// IoU returns the intersection-over-union of two boxes, 0 when either is
// malformed or they do not overlap.
func (b Box) IoU(o Box) float64 {
	ix1 := math.Max(b.X1, o.X1)
	iy1 := math.Max(b.Y1, o.Y1)
	ix2 := math.Min(b.X2, o.X2)
	iy2 := math.Min(b.Y2, o.Y2)
	inter := math.Max(0, ix2-ix1) * math.Max(0, iy2-iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Rect rounds the box to whole pixels. Max is exclusive, matching
// image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.X1)), int(math.Round(b.Y1)),
		int(math.Round(b.X2)), int(math.Round(b.Y2)),
	)
}

// BoxFromRect converts a pixel rectangle into a Box.
func BoxFromRect(r image.Rectangle) Box {
	return Box{X1: float64(r.Min.X), Y1: float64(r.Min.Y), X2: float64(r.Max.X), Y2: float64(r.Max.Y)}
}

// Detection is one candidate object reported by a model.
type Detection struct {
	Box        Box     `json:"box"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Thresholds carries the two filtering parameters of a detection run.
type Thresholds struct {
	// Confidence is the minimum score for a detection to be kept.
	Confidence float64 `json:"confidence_threshold"`

	// Overlap is the IoU above which the lower-scoring of two same-label
	// boxes is suppressed.
	Overlap float64 `json:"overlap_threshold"`
}

// Validate returns ErrInvalidThreshold when either value is outside [0, 1].
func (t Thresholds) Validate() error {
	if !inUnit(t.Confidence) {
		return fmt.Errorf("%w: confidence %v", ErrInvalidThreshold, t.Confidence)
	}
	if !inUnit(t.Overlap) {
		return fmt.Errorf("%w: overlap %v", ErrInvalidThreshold, t.Overlap)
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// Model is a loaded object detector.
//
// Detect must apply both thresholds: detections below th.Confidence are
// dropped and overlapping same-label boxes are suppressed with th.Overlap
// before returning. Implementations must be safe for concurrent use.
// A Model that also implements io.Closer is closed by Registry.Close.
type Model interface {
	Name() string
	Detect(ctx context.Context, img image.Image, th Thresholds) ([]Detection, error)
}

// InferenceError reports a failure inside a model.
type InferenceError struct {
	Variant string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("model %q inference failed: %v", e.Variant, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }
