package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{EnvLogLevel, EnvOutputDir, EnvHistoryDB, EnvFontPaths, EnvFontSize, EnvLineWidth,
		EnvBoxColor, EnvShadowColor, EnvTopConfidences, EnvModels, EnvONNXLibrary, EnvONNXThreads,
		EnvRemoteTimeout, EnvOCRLanguage} {
		t.Setenv(k, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "", cfg.LogLevel)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Empty(t, cfg.HistoryDB)
	assert.Equal(t, []string{"arial.ttf", "DejaVuSans-Bold.ttf"}, cfg.FontPaths)
	assert.Equal(t, 42.0, cfg.FontSize)
	assert.Equal(t, 4.0, cfg.LineWidth)
	assert.Equal(t, "#00FF00", cfg.BoxColor)
	assert.Equal(t, "#000000", cfg.ShadowColor)
	assert.Equal(t, 6, cfg.TopConfidences)
	assert.Equal(t, []ModelSpec{{Key: "shapes", Kind: KindShape}}, cfg.Models)
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, "eng", cfg.OCRLanguage)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvOutputDir, "/srv/results")
	t.Setenv(EnvHistoryDB, "/srv/history.db")
	t.Setenv(EnvFontPaths, " /fonts/a.ttf , ,/fonts/b.otf")
	t.Setenv(EnvFontSize, "24")
	t.Setenv(EnvLineWidth, "2.5")
	t.Setenv(EnvTopConfidences, "10")
	t.Setenv(EnvModels, "vegetation=onnx:models/best.json,soil=onnx:models/soil_best.json@0.3")
	t.Setenv(EnvONNXThreads, "2")
	t.Setenv(EnvRemoteTimeout, "5s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/srv/results", cfg.OutputDir)
	assert.Equal(t, "/srv/history.db", cfg.HistoryDB)
	assert.Equal(t, []string{"/fonts/a.ttf", "/fonts/b.otf"}, cfg.FontPaths)
	assert.Equal(t, 24.0, cfg.FontSize)
	assert.Equal(t, 2.5, cfg.LineWidth)
	assert.Equal(t, 10, cfg.TopConfidences)
	assert.Equal(t, 2, cfg.ONNXThreads)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, []ModelSpec{
		{Key: "vegetation", Kind: KindONNX, Location: "models/best.json"},
		{Key: "soil", Kind: KindONNX, Location: "models/soil_best.json", Confidence: 0.3},
	}, cfg.Models)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{EnvFontSize, "big"},
		{EnvFontSize, "-3"},
		{EnvLineWidth, "0"},
		{EnvTopConfidences, "six"},
		{EnvTopConfidences, "0"},
		{EnvONNXThreads, "-1"},
		{EnvRemoteTimeout, "soon"},
		{EnvModels, "vegetation"},
		{EnvModels, ","},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestParseModels(t *testing.T) {
	specs, err := ParseModels("shapes=shape:, text=OCR, remote=remote:http://user@infer:8080/predict, cv=opencv:m.json@0.25")
	require.NoError(t, err)
	assert.Equal(t, []ModelSpec{
		{Key: "shapes", Kind: KindShape},
		{Key: "text", Kind: KindOCR},
		{Key: "remote", Kind: KindRemote, Location: "http://user@infer:8080/predict"},
		{Key: "cv", Kind: KindOpenCV, Location: "m.json", Confidence: 0.25},
	}, specs)
}

func TestParseModels_Errors(t *testing.T) {
	for _, in := range []string{
		"=shape:",
		"a=lidar:x",
		"a=onnx:",
		"a=remote:@0.4",
		"a=onnx:m.json@1.5",
		"a=shape:,a=shape:",
	} {
		_, err := ParseModels(in)
		assert.Error(t, err, in)
	}
}
