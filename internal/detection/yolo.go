package detection

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// ModelConfig is saved in a JSON file next to the weights of a YOLO model.
type ModelConfig struct {
	Architecture string   `json:"architecture"` // eg "yolov8"
	Width        int      `json:"width"`        // eg 640
	Height       int      `json:"height"`       // eg 640
	Classes      []string `json:"classes"`      // eg ["grass", "shrub", ...]

	// Weights is the ONNX file. Relative paths are resolved against the
	// directory of the config file. Empty means the config's own base name
	// with an .onnx extension.
	Weights string `json:"weights,omitempty"`
}

// LoadModelConfig reads and validates a model config file.
func LoadModelConfig(filename string) (*ModelConfig, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := &ModelConfig{}
	if err := json.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(filename), err)
	}

	if cfg.Weights == "" {
		cfg.Weights = strings.TrimSuffix(filename, filepath.Ext(filename)) + ".onnx"
	} else if !filepath.IsAbs(cfg.Weights) {
		cfg.Weights = filepath.Join(filepath.Dir(filename), cfg.Weights)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	return cfg, nil
}

func (c *ModelConfig) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid input size %dx%d", c.Width, c.Height)
	}
	if c.Width%32 != 0 || c.Height%32 != 0 {
		return fmt.Errorf("input size %dx%d is not a multiple of 32", c.Width, c.Height)
	}
	if len(c.Classes) == 0 {
		return errors.New("no classes")
	}
	return nil
}

// Anchors is the number of candidate boxes a YOLOv8 head emits for the
// configured input size (strides 8, 16 and 32).
func (c *ModelConfig) Anchors() int {
	n := 0
	for _, s := range []int{8, 16, 32} {
		n += (c.Width / s) * (c.Height / s)
	}
	return n
}

// toCHW resizes img to the network input and lays it out as planar RGB in
// [0, 1], the layout YOLO exports expect.
func toCHW(img image.Image, width, height int) []float32 {
	resized := resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	b := resized.Bounds()
	plane := width * height
	data := make([]float32, 3*plane)

	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			data[idx] = float32(r>>8) / 255.0
			data[idx+plane] = float32(g>>8) / 255.0
			data[idx+2*plane] = float32(bl>>8) / 255.0
			idx++
		}
	}
	return data
}

// decodeYOLO converts a YOLOv8 head tensor laid out as [1, 4+nc, n] into
// detections in source-image pixels.
//
// Each column holds (xc, yc, w, h) in network-input pixels followed by one
// score per class. The best class wins. Boxes are scaled to the source size,
// clipped to the image, filtered by th.Confidence and passed through
// SuppressOverlaps.
func decodeYOLO(out []float32, cfg *ModelConfig, src image.Rectangle, th Thresholds) ([]Detection, error) {
	nc := len(cfg.Classes)
	rows := 4 + nc
	if len(out)%rows != 0 {
		return nil, fmt.Errorf("output size %d is not a multiple of %d", len(out), rows)
	}
	n := len(out) / rows

	sx := float32(src.Dx()) / float32(cfg.Width)
	sy := float32(src.Dy()) / float32(cfg.Height)
	maxX, maxY := float32(src.Dx()), float32(src.Dy())

	dets := make([]Detection, 0)
	for i := 0; i < n; i++ {
		classID, prob := 0, float32(0)
		for j := 0; j < nc; j++ {
			if p := out[(4+j)*n+i]; p > prob {
				prob = p
				classID = j
			}
		}
		if float64(prob) < th.Confidence {
			continue
		}

		xc, yc := out[i], out[n+i]
		w, h := out[2*n+i], out[3*n+i]
		x1 := math32.Max(0, (xc-w/2)*sx)
		y1 := math32.Max(0, (yc-h/2)*sy)
		x2 := math32.Min(maxX, (xc+w/2)*sx)
		y2 := math32.Min(maxY, (yc+h/2)*sy)

		dets = append(dets, Detection{
			Box: Box{
				X1: float64(x1) + float64(src.Min.X),
				Y1: float64(y1) + float64(src.Min.Y),
				X2: float64(x2) + float64(src.Min.X),
				Y2: float64(y2) + float64(src.Min.Y),
			},
			Label:      cfg.Classes[classID],
			Confidence: float64(prob),
		})
	}
	return SuppressOverlaps(dets, th.Overlap), nil
}
