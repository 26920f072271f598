//go:build !gocv
// +build !gocv

package detection

import (
	"context"
	"errors"
	"image"
)

// ErrNoOpenCV is returned when the binary was built without the gocv tag.
var ErrNoOpenCV = errors.New("gocv build tag is not enabled")

// CVModel is unavailable without the gocv build tag.
type CVModel struct{}

// NewCVModel always fails without the gocv build tag.
func NewCVModel(cfg *ModelConfig) (*CVModel, error) {
	_ = cfg
	return nil, ErrNoOpenCV
}

// Name implements Model.
func (m *CVModel) Name() string { return "YOLO Model" }

// Detect implements Model.
func (m *CVModel) Detect(ctx context.Context, img image.Image, th Thresholds) ([]Detection, error) {
	_, _, _ = ctx, img, th
	return nil, ErrNoOpenCV
}

// Close implements io.Closer.
func (m *CVModel) Close() error { return nil }
