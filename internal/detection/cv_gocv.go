//go:build gocv
// +build gocv

package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// CVModel runs a YOLOv8 ONNX export through the OpenCV DNN module.
type CVModel struct {
	cfg *ModelConfig

	mu  sync.Mutex
	net gocv.Net
}

// NewCVModel loads cfg.Weights into an OpenCV network on the CPU target.
func NewCVModel(cfg *ModelConfig) (*CVModel, error) {
	net := gocv.ReadNetFromONNX(cfg.Weights)
	if net.Empty() {
		return nil, fmt.Errorf("load %s: empty network", cfg.Weights)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, err
	}
	return &CVModel{cfg: cfg, net: net}, nil
}

// Name implements Model.
func (m *CVModel) Name() string { return "YOLO Model" }

// Detect implements Model.
func (m *CVModel) Detect(ctx context.Context, img image.Image, th Thresholds) ([]Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(m.cfg.Width, m.cfg.Height), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.net.Empty() {
		m.mu.Unlock()
		return nil, errors.New("model is closed")
	}
	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	m.mu.Unlock()
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return decodeYOLO(append([]float32(nil), data...), m.cfg, img.Bounds(), th)
}

// Close releases the network.
func (m *CVModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
