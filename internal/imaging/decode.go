package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"
	"path/filepath"
	"strings"

	imgio "github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultJPEGQuality is used when annotated images are written as JPEG.
const DefaultJPEGQuality = 95

// uploadFormats maps accepted upload extensions to their format name.
// avif is listed so it is recognised, then refused by CheckFormat.
var uploadFormats = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".webp": "webp",
	".avif": "avif",
}

// FormatFromPath returns the format name implied by the file extension,
// or "unknown".
func FormatFromPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := uploadFormats[ext]; ok {
		return f
	}
	if ext == ".gif" {
		return "gif"
	}
	return "unknown"
}

// CheckFormat verifies that path names an accepted upload type.
func CheckFormat(path string) error {
	switch FormatFromPath(path) {
	case "png", "jpeg", "webp":
		return nil
	case "avif":
		return &DecodeError{Source: path, Err: fmt.Errorf("%w: avif input must be converted before upload", ErrUnsupportedFormat)}
	default:
		return &DecodeError{Source: path, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))}
	}
}

// Decode reads an image from r, applies EXIF orientation and returns an
// opaque NRGBA copy.
func Decode(r io.Reader) (*image.NRGBA, error) {
	img, err := imgio.Decode(r, imgio.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return ToRGB(img)
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Err: ErrEmptyImage}
	}
	return Decode(bytes.NewReader(data))
}

// Open decodes the file at path. The extension is not checked; use Normalize
// for uploaded files.
func Open(path string) (*image.NRGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}
	return img, nil
}

// Normalize checks the upload extension and decodes the file into an
// opaque raster ready for detection.
//
// Parameters:
//   - path: Image file path. Accepted extensions are png, jpg, jpeg and
//     webp, case-insensitive. EXIF orientation is applied while decoding.
//
// Returns:
//   - *image.NRGBA: A fully opaque image with its origin at (0,0).
//   - error: Non-nil if the file is rejected or unreadable.
//
// # Errors
//
//   - *DecodeError wrapping ErrUnsupportedFormat for avif or any other
//     extension
//   - *DecodeError wrapping the os or decoder error otherwise
func Normalize(path string) (*image.NRGBA, error) {
	if err := CheckFormat(path); err != nil {
		return nil, err
	}
	return Open(path)
}

// ToRGB returns an opaque NRGBA copy of img. The source is not modified.
// A nil image or one with empty bounds yields a DecodeError wrapping
// ErrEmptyImage.
func ToRGB(img image.Image) (*image.NRGBA, error) {
	if err := CheckRaster(img); err != nil {
		return nil, err
	}
	dst := imgio.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst, nil
}

// CheckRaster reports whether img has pixels to work on.
func CheckRaster(img image.Image) error {
	if img == nil || img.Bounds().Empty() {
		return &DecodeError{Err: ErrEmptyImage}
	}
	return nil
}

// Encode writes img to w in the format implied by name's extension. JPEG
// output uses DefaultJPEGQuality.
func Encode(w io.Writer, img image.Image, name string) error {
	format, err := imgio.FormatFromFilename(name)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(name), err)
	}
	if err := imgio.Encode(w, img, format, imgio.JPEGQuality(DefaultJPEGQuality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(name), err)
	}
	return nil
}
