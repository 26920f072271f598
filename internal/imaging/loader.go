package imaging

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"
)

// ImageCache keeps decoded, opaque images keyed by file path so that repeated
// tool calls on the same file skip decoding.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Staleness
//
// Each entry remembers the modification time and size of its file. Load
// stats the file first and evicts the entry when either has changed, so an
// image rewritten in place is decoded again.
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
}

type cachedImage struct {
	img     *image.NRGBA
	modTime time.Time
	size    int64
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
	}
}

// Load retrieves an image from the cache or normalises it from disk.
//
// Parameters:
//   - path: image file path with an accepted upload extension (see
//     CheckFormat). Relative and absolute spellings of the same file are
//     separate entries.
//
// Returns:
//   - *image.NRGBA: The opaque image rebased to (0,0). Callers must not
//     modify it; it is shared by every caller that loads the same path.
//   - error: Non-nil if the file cannot be used as an upload.
//
// # Errors
//
// Errors are always *DecodeError: missing file, unsupported extension or
// undecodable content.
func (c *ImageCache) Load(path string) (*image.NRGBA, error) {
	stat, statErr := os.Stat(path)

	c.mu.RLock()
	entry, ok := c.images[path]
	c.mu.RUnlock()
	if ok {
		if statErr == nil && stat.ModTime().Equal(entry.modTime) && stat.Size() == entry.size {
			return entry.img, nil
		}
		c.Evict(path)
	}

	img, err := Normalize(path)
	if err != nil {
		return nil, err
	}
	if statErr != nil {
		return img, nil
	}

	c.mu.Lock()
	c.images[path] = cachedImage{img: img, modTime: stat.ModTime(), size: stat.Size()}
	c.mu.Unlock()

	return img, nil
}

// Evict removes a specific image from the cache by its path.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo contains metadata about an image file.
type ImageInfo struct {
	// Width is the image width in pixels, after orientation is applied.
	Width int `json:"width"`

	// Height is the image height in pixels, after orientation is applied.
	Height int `json:"height"`

	// Format is derived from the file extension: "png", "jpeg", "webp",
	// "avif", "gif" or "unknown".
	Format string `json:"format"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and reports its metadata.
//
// Parameters:
//   - cache: the cache to load through; a fresh entry is added on a miss
//   - path: image file path, as for ImageCache.Load
//
// Returns:
//   - *ImageInfo: Dimensions after orientation, the extension-derived format
//     name and the file size in bytes.
//   - error: Non-nil if the image cannot be loaded or stat'ed.
//
// # Errors
//
// Returns the *DecodeError from Load, or a wrapped os.Stat error if the
// file vanished after decoding.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        FormatFromPath(path),
		FileSizeBytes: stat.Size(),
	}, nil
}
