//go:build !tesseract

package ocr

import (
	"context"
	"image"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

// TextModel is unavailable without the tesseract build tag.
type TextModel struct {
	Language string
}

// NewTextModel always fails without the tesseract build tag.
func NewTextModel(language string) (*TextModel, error) {
	_ = language
	return nil, ErrNoTesseract
}

// Name implements detection.Model.
func (m *TextModel) Name() string { return "Text Model" }

// Detect implements detection.Model.
func (m *TextModel) Detect(ctx context.Context, img image.Image, th detection.Thresholds) ([]detection.Detection, error) {
	_, _, _ = ctx, img, th
	return nil, ErrNoTesseract
}
