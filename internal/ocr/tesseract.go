//go:build tesseract

package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

// TextModel is a detection.Model backed by Tesseract word recognition.
// A new Tesseract client is created per call, so the model is safe for
// concurrent use.
type TextModel struct {
	Language string
}

// NewTextModel creates a TextModel for the given Tesseract language code.
func NewTextModel(language string) (*TextModel, error) {
	if language == "" {
		language = DefaultLanguage
	}
	return &TextModel{Language: language}, nil
}

// Name implements detection.Model.
func (m *TextModel) Name() string { return "Text Model" }

// Detect implements detection.Model.
func (m *TextModel) Detect(ctx context.Context, img image.Image, th detection.Thresholds) ([]detection.Detection, error) {
	src, scale := prepare(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(m.Language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("failed to get bounding boxes: %w", err)
	}

	// Word boxes are relative to the encoded image, whose origin is (0,0).
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text:       b.Word,
			Bounds:     b.Box,
			Confidence: b.Confidence,
		})
	}

	dets := wordsToDetections(words, scale, img.Bounds().Min)
	return detection.SuppressOverlaps(detection.FilterConfidence(dets, th.Confidence), th.Overlap), nil
}
