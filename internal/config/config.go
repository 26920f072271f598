// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables win over it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables.
const (
	EnvLogLevel       = "DETECT_MCP_LOG_LEVEL"
	EnvOutputDir      = "DETECT_OUTPUT_DIR"
	EnvHistoryDB      = "DETECT_HISTORY_DB"
	EnvFontPaths      = "DETECT_FONT_PATHS"
	EnvFontSize       = "DETECT_FONT_SIZE"
	EnvLineWidth      = "DETECT_LINE_WIDTH"
	EnvBoxColor       = "DETECT_BOX_COLOR"
	EnvShadowColor    = "DETECT_SHADOW_COLOR"
	EnvTopConfidences = "DETECT_TOP_CONFIDENCES"
	EnvModels         = "DETECT_MODELS"
	EnvONNXLibrary    = "DETECT_ONNX_LIBRARY"
	EnvONNXThreads    = "DETECT_ONNX_THREADS"
	EnvRemoteTimeout  = "DETECT_REMOTE_TIMEOUT"
	EnvOCRLanguage    = "DETECT_OCR_LANGUAGE"
)

// Defaults.
const (
	DefaultOutputDir      = "./results"
	DefaultFontPaths      = "arial.ttf,DejaVuSans-Bold.ttf"
	DefaultFontSize       = 42
	DefaultLineWidth      = 4
	DefaultBoxColor       = "#00FF00"
	DefaultShadowColor    = "#000000"
	DefaultTopConfidences = 6
	DefaultModels         = "shapes=shape:"
	DefaultRemoteTimeout  = 30 * time.Second
	DefaultOCRLanguage    = "eng"
)

// Config holds runtime settings.
type Config struct {
	LogLevel       string
	OutputDir      string
	HistoryDB      string // empty disables run history
	FontPaths      []string
	FontSize       float64
	LineWidth      float64
	BoxColor       string
	ShadowColor    string
	TopConfidences int
	Models         []ModelSpec
	ONNXLibrary    string
	ONNXThreads    int
	RemoteTimeout  time.Duration
	OCRLanguage    string
}

// Load reads .env (if any) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the configuration from the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		LogLevel:    os.Getenv(EnvLogLevel),
		OutputDir:   getString(EnvOutputDir, DefaultOutputDir),
		HistoryDB:   os.Getenv(EnvHistoryDB),
		FontPaths:   splitList(getString(EnvFontPaths, DefaultFontPaths)),
		BoxColor:    getString(EnvBoxColor, DefaultBoxColor),
		ShadowColor: getString(EnvShadowColor, DefaultShadowColor),
		ONNXLibrary: os.Getenv(EnvONNXLibrary),
		OCRLanguage: getString(EnvOCRLanguage, DefaultOCRLanguage),
	}

	var err error
	if cfg.FontSize, err = getFloat(EnvFontSize, DefaultFontSize); err != nil {
		return nil, err
	}
	if cfg.LineWidth, err = getFloat(EnvLineWidth, DefaultLineWidth); err != nil {
		return nil, err
	}
	if cfg.TopConfidences, err = getInt(EnvTopConfidences, DefaultTopConfidences); err != nil {
		return nil, err
	}
	if cfg.ONNXThreads, err = getInt(EnvONNXThreads, 0); err != nil {
		return nil, err
	}
	if cfg.RemoteTimeout, err = getDuration(EnvRemoteTimeout, DefaultRemoteTimeout); err != nil {
		return nil, err
	}
	if cfg.Models, err = ParseModels(getString(EnvModels, DefaultModels)); err != nil {
		return nil, fmt.Errorf("%s: %w", EnvModels, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.FontSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvFontSize)
	}
	if c.LineWidth <= 0 {
		return fmt.Errorf("%s must be positive", EnvLineWidth)
	}
	if c.TopConfidences <= 0 {
		return fmt.Errorf("%s must be positive", EnvTopConfidences)
	}
	if c.ONNXThreads < 0 {
		return fmt.Errorf("%s must not be negative", EnvONNXThreads)
	}
	if c.RemoteTimeout < 0 {
		return fmt.Errorf("%s must not be negative", EnvRemoteTimeout)
	}
	if len(c.Models) == 0 {
		return fmt.Errorf("%s lists no models", EnvModels)
	}
	return nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
