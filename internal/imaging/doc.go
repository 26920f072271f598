// Package imaging opens, normalises and saves the raster images that flow
// through the detection pipeline.
//
// Every image handed to a detector is first decoded into an opaque 8-bit
// raster. Decoding honours EXIF orientation, so a photo taken in portrait
// arrives upright regardless of how the camera stored it. Images with an
// alpha channel keep their colour values but are forced fully opaque.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner,
// X increasing rightward and Y increasing downward.
//
// # Formats
//
// Accepted inputs are PNG, JPEG and WebP. GIF decodes but is not an accepted
// upload extension. AVIF uploads are rejected with a DecodeError wrapping
// ErrUnsupportedFormat rather than being passed on half-converted.
//
// # Error Handling
//
// Anything that cannot be turned into a usable raster is reported as a
// *DecodeError. Callers test for it with errors.As, or for the specific cause
// with errors.Is against ErrEmptyImage or ErrUnsupportedFormat.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The package-level functions are
// stateless and never mutate their input images.
package imaging
