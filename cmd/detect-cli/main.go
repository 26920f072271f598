// Command detect-cli runs the detection pipeline once from the command line.
//
//	detect-cli detect -i field.png -m vegetation
//	detect-cli compare -a before.png -b after.png -m soil -c 0.25
//	detect-cli models
//	detect-cli history -k comparisons -n 5
//	detect-cli history -k delete -r 12
//
// Results are printed as JSON on stdout. Settings come from the same
// environment variables as the MCP server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/akamensky/argparse"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/detect-tools-mcp/internal/app"
	"github.com/ironsheep/detect-tools-mcp/internal/config"
	"github.com/ironsheep/detect-tools-mcp/internal/history"
	"github.com/ironsheep/detect-tools-mcp/internal/logging"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "detect-cli: %v\n", err)
		os.Exit(1)
	}
}

// run parses args and executes one subcommand. The app is closed before
// run returns, also on error.
func run(args []string) error {
	parser := argparse.NewParser("detect-cli", "Detect objects in images and compare detection results")
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Log pipeline stages to stderr"})
	outDir := parser.String("o", "output", &argparse.Options{Help: "Artifact directory (overrides DETECT_OUTPUT_DIR)"})

	detectCmd := parser.NewCommand("detect", "Detect objects in one image")
	detectInput := detectCmd.String("i", "input", &argparse.Options{Help: "Input image", Required: true})
	detectModel := detectCmd.String("m", "model", &argparse.Options{Help: "Model variant", Required: true})
	detectConf := detectCmd.Float("c", "confidence", &argparse.Options{Help: "Confidence threshold (default: model default)", Default: -1.0})
	detectOverlap := detectCmd.Float("", "overlap", &argparse.Options{Help: "Overlap threshold (default: model default)", Default: -1.0})

	compareCmd := parser.NewCommand("compare", "Compare detections in two images")
	compareA := compareCmd.String("a", "first", &argparse.Options{Help: "First image", Required: true})
	compareB := compareCmd.String("b", "second", &argparse.Options{Help: "Second image", Required: true})
	compareModel := compareCmd.String("m", "model", &argparse.Options{Help: "Model variant", Required: true})
	compareConf := compareCmd.Float("c", "confidence", &argparse.Options{Help: "Confidence threshold (default: model default)", Default: -1.0})
	compareOverlap := compareCmd.Float("", "overlap", &argparse.Options{Help: "Overlap threshold (default: model default)", Default: -1.0})

	modelsCmd := parser.NewCommand("models", "List configured models")

	historyCmd := parser.NewCommand("history", "List or delete recorded runs")
	historyKind := historyCmd.Selector("k", "kind", []string{"runs", "comparisons", "labels", "delete"}, &argparse.Options{Help: "What to list, or delete the run given by --run", Default: "runs"})
	historyModel := historyCmd.String("m", "model", &argparse.Options{Help: "Only runs of this model variant"})
	historyLimit := historyCmd.Int("n", "limit", &argparse.Options{Help: "Maximum records", Default: history.DefaultLimit})
	historyRun := historyCmd.Int("r", "run", &argparse.Options{Help: "Run id to delete"})

	if err := parser.Parse(args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	level := cfg.LogLevel
	if *verbose {
		level = "debug"
	} else if level == "" {
		level = "warn"
	}
	log, err := logging.New(level, os.Stderr)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var result interface{}
	switch {
	case detectCmd.Happened():
		th, err := a.Thresholds(*detectModel, optional(*detectConf), optional(*detectOverlap))
		if err != nil {
			return err
		}
		if result, err = a.Detect(ctx, *detectInput, *detectModel, th); err != nil {
			return err
		}
	case compareCmd.Happened():
		th, err := a.Thresholds(*compareModel, optional(*compareConf), optional(*compareOverlap))
		if err != nil {
			return err
		}
		report, err := a.Compare(ctx, *compareA, *compareB, *compareModel, th)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"delta": report.Summary.DetectionDelta}).Info(report.Summary.Sentence)
		result = report
	case modelsCmd.Happened():
		result = a.Registry.Entries()
	case historyCmd.Happened():
		if result, err = historyCommand(ctx, a, *historyKind, *historyModel, *historyLimit, int64(*historyRun)); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func historyCommand(ctx context.Context, a *app.App, kind, model string, limit int, runID int64) (interface{}, error) {
	if a.History == nil {
		return nil, app.ErrHistoryDisabled
	}
	switch kind {
	case "delete":
		if runID <= 0 {
			return nil, errors.New("history delete needs --run")
		}
		return a.DeleteRun(ctx, runID)
	case "comparisons":
		return a.History.Comparisons(ctx, limit)
	case "labels":
		return a.History.Labels(ctx)
	default:
		return a.History.Runs(ctx, history.Filter{Variant: model, Limit: limit})
	}
}

// optional maps the negative "not given" default to nil.
func optional(v float64) *float64 {
	if v < 0 {
		return nil
	}
	return &v
}
