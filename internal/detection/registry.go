package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/ironsheep/detect-tools-mcp/internal/imaging"
)

const (
	// DefaultConfidence is the caller default when a variant sets none.
	DefaultConfidence = 0.5

	// DefaultOverlap is the default IoU suppression threshold.
	DefaultOverlap = 0.5
)

// Entry describes a registered model variant.
type Entry struct {
	Key               string  `json:"key"`
	DisplayName       string  `json:"display_name"`
	Backend           string  `json:"backend"`
	DefaultConfidence float64 `json:"default_confidence"`
	DefaultOverlap    float64 `json:"default_overlap"`

	model Model
}

// Model returns the detector behind the entry.
func (e Entry) Model() Model { return e.model }

// Defaults returns the entry's default thresholds.
func (e Entry) Defaults() Thresholds {
	return Thresholds{Confidence: e.DefaultConfidence, Overlap: e.DefaultOverlap}
}

// Option customises an Entry at registration time.
type Option func(*Entry)

// WithDisplayName overrides the human-readable model name.
func WithDisplayName(name string) Option {
	return func(e *Entry) { e.DisplayName = name }
}

// WithDefaultConfidence sets the confidence threshold callers should use
// when none is given.
func WithDefaultConfidence(c float64) Option {
	return func(e *Entry) { e.DefaultConfidence = c }
}

// WithDefaultOverlap sets the default overlap threshold.
func WithDefaultOverlap(o float64) Option {
	return func(e *Entry) { e.DefaultOverlap = o }
}

// Registry maps variant keys to loaded models.
//
// A Registry is populated at process start, frozen, and then only read.
// Detect, Lookup and Keys are safe for concurrent use. Close releases every
// model that implements io.Closer.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	frozen  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a model under key. Keys are case-sensitive and must be
// unique. Registering after Freeze fails.
func (r *Registry) Register(key string, m Model, opts ...Option) error {
	if key == "" {
		return errors.New("model key must not be empty")
	}
	if m == nil {
		return fmt.Errorf("model %q is nil", key)
	}

	e := &Entry{
		Key:               key,
		DisplayName:       titleCase(key) + " " + m.Name(),
		Backend:           m.Name(),
		DefaultConfidence: DefaultConfidence,
		DefaultOverlap:    DefaultOverlap,
		model:             m,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Defaults().Validate(); err != nil {
		return fmt.Errorf("model %q: %w", key, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("registry is frozen, cannot register %q", key)
	}
	if _, dup := r.entries[key]; dup {
		return fmt.Errorf("model %q already registered", key)
	}
	r.entries[key] = e
	return nil
}

// Freeze stops further registration.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Lookup returns the entry for key or ErrUnknownModel.
func (r *Registry) Lookup(key string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownModel, key)
	}
	return *e, nil
}

// Keys returns the registered variant keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns every entry sorted by key.
func (r *Registry) Entries() []Entry {
	keys := r.Keys()
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		if e, err := r.Lookup(k); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// Close releases all closable models and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, e := range r.entries {
		if c, ok := e.model.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %q: %w", key, err))
			}
		}
	}
	r.entries = make(map[string]*Entry)
	r.frozen = true
	return errors.Join(errs...)
}

// Detect runs the model registered under variant.
//
// Parameters:
//   - ctx: Checked before the model runs and passed to it.
//   - img: The raster to analyse. It is never modified.
//   - variant: Registry key chosen by the caller, e.g. "vegetation".
//   - th: Minimum confidence and maximum overlap, both in [0, 1].
//
// Returns:
//   - []Detection: The model's detections in the model's order. Boxes with
//     X1 >= X2 or Y1 >= Y2 are dropped and confidences are clamped into
//     [0, 1].
//   - error: Non-nil if the request is invalid or the model fails.
//
// # Errors
//
//   - *imaging.DecodeError for a nil or empty image
//   - ErrUnknownModel when variant is not registered
//   - ErrInvalidThreshold when either threshold is outside [0, 1]
//   - *InferenceError when the model fails
func (r *Registry) Detect(ctx context.Context, img image.Image, variant string, th Thresholds) ([]Detection, error) {
	if err := imaging.CheckRaster(img); err != nil {
		return nil, err
	}
	e, err := r.Lookup(variant)
	if err != nil {
		return nil, err
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := e.model.Detect(ctx, img, th)
	if err != nil {
		return nil, &InferenceError{Variant: variant, Err: err}
	}
	return sanitize(raw), nil
}

func sanitize(raw []Detection) []Detection {
	out := make([]Detection, 0, len(raw))
	for _, d := range raw {
		if !d.Box.Valid() || math.IsNaN(d.Confidence) {
			continue
		}
		d.Confidence = math.Min(1, math.Max(0, d.Confidence))
		out = append(out, d)
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
