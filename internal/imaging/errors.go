package imaging

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyImage is reported for a nil image or one with no pixels.
	ErrEmptyImage = errors.New("image has no pixels")

	// ErrUnsupportedFormat is reported for file types the pipeline does not accept.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// DecodeError reports an input that could not be turned into a raster.
// Source is the file path when known, empty for in-memory images.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("image decode failed: %v", e.Err)
	}
	return fmt.Sprintf("image decode failed for %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
