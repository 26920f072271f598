// Package app wires configuration into a ready-to-use pipeline shared by
// the MCP server and the command-line tool.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detect-tools-mcp/internal/annotate"
	"github.com/ironsheep/detect-tools-mcp/internal/config"
	"github.com/ironsheep/detect-tools-mcp/internal/detection"
	"github.com/ironsheep/detect-tools-mcp/internal/history"
	"github.com/ironsheep/detect-tools-mcp/internal/ocr"
	"github.com/ironsheep/detect-tools-mcp/internal/pipeline"
)

// ErrHistoryDisabled is returned by history operations when no history
// database is configured.
var ErrHistoryDisabled = fmt.Errorf("run history is disabled (set %s)", config.EnvHistoryDB)

// App holds the long-lived components of a process.
type App struct {
	Config    *config.Config
	Log       logrus.FieldLogger
	Registry  *detection.Registry
	Annotator *annotate.Annotator
	Pipeline  *pipeline.Pipeline
	Writer    pipeline.ArtifactWriter

	// History is nil when run history is disabled.
	History *history.Store

	db       *history.DB
	onnxUsed bool
}

// New builds the registry, annotator, pipeline and optional history store
// described by cfg.
func New(cfg *config.Config, log logrus.FieldLogger) (*App, error) {
	palette, err := annotate.ParsePalette(cfg.BoxColor, cfg.ShadowColor)
	if err != nil {
		return nil, err
	}
	ann, err := annotate.NewAnnotator(annotate.Options{
		FontPaths: cfg.FontPaths,
		FontSize:  cfg.FontSize,
		LineWidth: cfg.LineWidth,
		Palette:   &palette,
	})
	if err != nil {
		return nil, fmt.Errorf("annotator: %w", err)
	}
	log.WithField("font", ann.FontName()).Debug("annotation font selected")

	a := &App{
		Config:    cfg,
		Log:       log,
		Annotator: ann,
		Writer:    pipeline.ArtifactWriter{Dir: cfg.OutputDir},
	}

	a.Registry, a.onnxUsed, err = BuildRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	a.Pipeline, err = pipeline.New(a.Registry, ann, pipeline.Options{
		TopConfidences: cfg.TopConfidences,
		Logger:         log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.HistoryDB != "" {
		a.db, err = history.Open(cfg.HistoryDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.History = history.NewStore(a.db)
	}
	return a, nil
}

// BuildRegistry loads every model listed in cfg.Models and freezes the
// registry. The second result reports whether onnxruntime was initialised.
func BuildRegistry(cfg *config.Config, log logrus.FieldLogger) (*detection.Registry, bool, error) {
	reg := detection.NewRegistry()
	onnxUsed := false

	for _, ms := range cfg.Models {
		m, err := loadModel(cfg, ms, &onnxUsed)
		if err != nil {
			reg.Close()
			return nil, onnxUsed, fmt.Errorf("model %q: %w", ms.Key, err)
		}

		var opts []detection.Option
		if ms.Confidence > 0 {
			opts = append(opts, detection.WithDefaultConfidence(ms.Confidence))
		}
		if err := reg.Register(ms.Key, m, opts...); err != nil {
			if c, ok := m.(io.Closer); ok {
				c.Close()
			}
			reg.Close()
			return nil, onnxUsed, err
		}
		log.WithFields(logrus.Fields{"variant": ms.Key, "kind": ms.Kind}).Info("model registered")
	}
	reg.Freeze()
	return reg, onnxUsed, nil
}

func loadModel(cfg *config.Config, ms config.ModelSpec, onnxUsed *bool) (detection.Model, error) {
	switch ms.Kind {
	case config.KindShape:
		return detection.NewShapeModel(), nil
	case config.KindONNX:
		mc, err := detection.LoadModelConfig(ms.Location)
		if err != nil {
			return nil, err
		}
		if err := detection.InitONNXRuntime(cfg.ONNXLibrary); err != nil {
			return nil, fmt.Errorf("onnxruntime: %w", err)
		}
		*onnxUsed = true
		return detection.NewONNXModel(mc, cfg.ONNXThreads)
	case config.KindOpenCV:
		mc, err := detection.LoadModelConfig(ms.Location)
		if err != nil {
			return nil, err
		}
		return detection.NewCVModel(mc)
	case config.KindRemote:
		return detection.NewRemoteModel(ms.Location, cfg.RemoteTimeout), nil
	case config.KindOCR:
		return ocr.NewTextModel(cfg.OCRLanguage)
	default:
		return nil, fmt.Errorf("unknown model kind %q", ms.Kind)
	}
}

// Close releases models, the onnxruntime environment and the history
// database.
func (a *App) Close() error {
	var errs []error
	if a.Registry != nil {
		errs = append(errs, a.Registry.Close())
	}
	if a.onnxUsed {
		errs = append(errs, detection.ShutdownONNXRuntime())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Thresholds resolves the thresholds for a run, falling back to the
// variant's registered defaults for values the caller did not give.
func (a *App) Thresholds(variant string, confidence, overlap *float64) (detection.Thresholds, error) {
	entry, err := a.Registry.Lookup(variant)
	if err != nil {
		return detection.Thresholds{}, err
	}
	th := entry.Defaults()
	if confidence != nil {
		th.Confidence = *confidence
	}
	if overlap != nil {
		th.Overlap = *overlap
	}
	if err := th.Validate(); err != nil {
		return detection.Thresholds{}, err
	}
	return th, nil
}

// DetectReport is the outcome of Detect.
type DetectReport struct {
	Summary    pipeline.DetectionSummary `json:"summary"`
	Detections []detection.Detection     `json:"detections"`
	Artifacts  pipeline.Artifacts        `json:"artifacts"`
	RunID      int64                     `json:"run_id,omitempty"`
}

// Detect runs the pipeline on the image at path, writes its artifacts and
// records the run when history is enabled. History failures are logged,
// not returned: the artifacts are already on disk.
func (a *App) Detect(ctx context.Context, path, variant string, th detection.Thresholds) (*DetectReport, error) {
	res, err := a.Pipeline.RunFile(ctx, path, variant, th)
	if err != nil {
		return nil, err
	}
	arts, err := a.Writer.Write(res)
	if err != nil {
		return nil, err
	}

	report := &DetectReport{Summary: res.Summary, Detections: res.Detections, Artifacts: arts}
	if a.History != nil {
		id, err := a.History.RecordRun(ctx, res, arts)
		if err != nil {
			a.Log.WithError(err).Warn("failed to record run")
		}
		report.RunID = id
	}
	return report, nil
}

// CompareReport is the outcome of Compare.
type CompareReport struct {
	Summary      pipeline.ComparisonSummary `json:"summary"`
	Artifacts    [2]pipeline.Artifacts      `json:"artifacts"`
	ComparisonID int64                      `json:"comparison_id,omitempty"`
}

// Compare runs the comparison of two images on disk, writes both sides'
// artifacts and records the comparison when history is enabled.
func (a *App) Compare(ctx context.Context, path1, path2, variant string, th detection.Thresholds) (*CompareReport, error) {
	cmp, err := a.Pipeline.CompareFiles(ctx, path1, path2, variant, th)
	if err != nil {
		return nil, err
	}
	arts, err := a.Writer.WriteComparison(cmp)
	if err != nil {
		return nil, err
	}

	report := &CompareReport{Summary: cmp.Summary, Artifacts: arts}
	if a.History != nil {
		id, err := a.History.RecordComparison(ctx, cmp, arts)
		if err != nil {
			a.Log.WithError(err).Warn("failed to record comparison")
		}
		report.ComparisonID = id
	}
	return report, nil
}

// DeleteRun removes a recorded run with its detections and any comparison
// that used it, then deletes the run's artifact files. Files already gone
// are ignored; other removal failures are logged.
func (a *App) DeleteRun(ctx context.Context, id int64) (*history.Run, error) {
	if a.History == nil {
		return nil, ErrHistoryDisabled
	}
	run, err := a.History.Run(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := a.History.DeleteRun(ctx, id); err != nil {
		return nil, err
	}
	for _, path := range []string{run.Artifacts.Annotated, run.Artifacts.Mask} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			a.Log.WithError(err).WithField("path", path).Warn("failed to remove artifact")
		}
	}
	return run, nil
}
