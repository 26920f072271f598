package ocr

import (
	"errors"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

// ErrNoTesseract is returned when the binary was built without the
// tesseract build tag.
var ErrNoTesseract = errors.New("tesseract build tag is not enabled")

const (
	// DefaultLanguage is the Tesseract language code used when none is set.
	DefaultLanguage = "eng"

	// MinHeight is the height below which images are upscaled before OCR.
	MinHeight = 300
)

// Word is one recognised word in source-image pixels.
type Word struct {
	Text       string
	Bounds     image.Rectangle
	Confidence float64 // 0-100, as reported by Tesseract
}

// prepare upscales short images. It returns the image to hand to Tesseract
// and the factor its coordinates must be divided by.
func prepare(img image.Image) (image.Image, float64) {
	h := img.Bounds().Dy()
	if h >= MinHeight || h == 0 {
		return img, 1
	}
	scale := float64(MinHeight) / float64(h)
	w := int(float64(img.Bounds().Dx())*scale + 0.5)
	return imaging.Resize(img, w, MinHeight, imaging.Lanczos), scale
}

// wordsToDetections converts Tesseract words into detections. Coordinates
// are divided by scale and offset by origin. Blank words are skipped.
func wordsToDetections(words []Word, scale float64, origin image.Point) []detection.Detection {
	dets := make([]detection.Detection, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		dets = append(dets, detection.Detection{
			Box: detection.Box{
				X1: float64(w.Bounds.Min.X)/scale + float64(origin.X),
				Y1: float64(w.Bounds.Min.Y)/scale + float64(origin.Y),
				X2: float64(w.Bounds.Max.X)/scale + float64(origin.X),
				Y2: float64(w.Bounds.Max.Y)/scale + float64(origin.Y),
			},
			Label:      text,
			Confidence: w.Confidence / 100,
		})
	}
	return dets
}
