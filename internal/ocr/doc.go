// Package ocr reports words found by Tesseract as detections, so a text
// model can be registered next to the object detectors.
//
// Each recognised word becomes one detection: the label is the word, the
// box is Tesseract's word box and the confidence is Tesseract's score
// scaled from 0-100 to 0-1.
//
// # Build Tags
//
// The Tesseract bindings need cgo and the native library, so they are only
// compiled with the tesseract build tag:
//
//	go build -tags tesseract ./...
//
// Without the tag NewTextModel returns ErrNoTesseract and the server simply
// does not register the variant.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Small Images
//
// Tesseract struggles with glyphs only a few pixels tall. Images shorter
// than MinHeight are upscaled before recognition and the word boxes are
// scaled back to source coordinates.
package ocr
