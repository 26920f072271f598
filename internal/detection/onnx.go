package detection

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce sync.Once
	ortErr  error
)

// InitONNXRuntime loads the onnxruntime shared library. Only the first call
// has an effect; later calls return the first result.
func InitONNXRuntime(libraryPath string) error {
	ortOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortErr = ort.InitializeEnvironment()
	})
	return ortErr
}

// ShutdownONNXRuntime releases the runtime environment. Call it after every
// ONNXModel has been closed.
func ShutdownONNXRuntime() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// ONNXModel runs a YOLOv8 export through onnxruntime.
//
// The session owns a single pair of input and output tensors, so Detect
// calls are serialised.
type ONNXModel struct {
	cfg *ModelConfig

	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXModel creates a session for cfg. InitONNXRuntime must have been
// called first.
func NewONNXModel(cfg *ModelConfig, threads int) (*ONNXModel, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("onnxruntime is not initialized")
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(cfg.Height), int64(cfg.Width)), make([]float32, 3*cfg.Width*cfg.Height))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(cfg.Classes)), int64(cfg.Anchors())))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}
	defer options.Destroy()

	if threads > 0 {
		options.SetIntraOpNumThreads(threads)
		options.SetInterOpNumThreads(1)
	}

	session, err := ort.NewAdvancedSession(
		cfg.Weights,
		[]string{"images"},
		[]string{"output0"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("load %s: %w", cfg.Weights, err)
	}

	return &ONNXModel{cfg: cfg, session: session, input: input, output: output}, nil
}

// Name implements Model.
func (m *ONNXModel) Name() string { return "YOLO Model" }

// Config returns the model configuration.
func (m *ONNXModel) Config() *ModelConfig { return m.cfg }

// Detect implements Model.
func (m *ONNXModel) Detect(ctx context.Context, img image.Image, th Thresholds) ([]Detection, error) {
	data := toCHW(img, m.cfg.Width, m.cfg.Height)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return nil, errors.New("model is closed")
	}
	copy(m.input.GetData(), data)
	err := m.session.Run()
	var out []float32
	if err == nil {
		out = append([]float32(nil), m.output.GetData()...)
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return decodeYOLO(out, m.cfg, img.Bounds(), th)
}

// Close releases the session and its tensors.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	errs := []error{m.session.Destroy(), m.input.Destroy(), m.output.Destroy()}
	m.session = nil
	return errors.Join(errs...)
}
