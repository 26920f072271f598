package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/detect-tools-mcp/internal/app"
	"github.com/ironsheep/detect-tools-mcp/internal/config"
	"github.com/ironsheep/detect-tools-mcp/internal/logging"
	"github.com/ironsheep/detect-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("detect-tools-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("detect-tools-mcp - MCP server for object detection and image comparison")
			fmt.Println()
			fmt.Println("Usage: detect-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables (also read from .env):")
			fmt.Println("  DETECT_MCP_LOG_LEVEL=debug               Log level (debug, info, warn, error)")
			fmt.Println("  DETECT_MODELS=key=kind:location,...      Models to load (shape, onnx, opencv, remote, ocr)")
			fmt.Println("  DETECT_OUTPUT_DIR=./results              Where annotated images and masks are written")
			fmt.Println("  DETECT_HISTORY_DB=history.db             Enable run history in this SQLite file")
			fmt.Println("  DETECT_ONNX_LIBRARY=/path/libonnxruntime.so")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Logs go to stderr; stdout is for MCP protocol
	log, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log.Debugf("Detect MCP Server %s (built %s, commit %s)", Version, BuildTime, GitCommit)

	a, err := app.New(cfg, log)
	if err != nil {
		log.Fatalf("Startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server.Version = Version
	srv := server.New(a)
	runErr := srv.Run(ctx)

	if err := a.Close(); err != nil {
		log.WithError(err).Warn("shutdown")
	}
	if runErr != nil && ctx.Err() == nil {
		log.Fatalf("Server error: %v", runErr)
	}
}
