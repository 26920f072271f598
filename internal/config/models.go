package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Model backend kinds accepted in DETECT_MODELS.
const (
	KindShape  = "shape"
	KindONNX   = "onnx"
	KindOpenCV = "opencv"
	KindRemote = "remote"
	KindOCR    = "ocr"
)

var kinds = map[string]bool{
	KindShape:  true,
	KindONNX:   true,
	KindOpenCV: true,
	KindRemote: true,
	KindOCR:    true,
}

// ModelSpec is one entry of DETECT_MODELS:
//
//	key=kind:location[@confidence]
//
// location is a model config path for onnx and opencv, an endpoint URL for
// remote, and empty for shape and ocr. The optional @confidence suffix sets
// the variant's default confidence threshold, e.g.
// soil=onnx:models/soil.json@0.3.
type ModelSpec struct {
	Key        string
	Kind       string
	Location   string
	Confidence float64 // 0 when not set
}

// ParseModels parses a comma-separated DETECT_MODELS value.
func ParseModels(s string) ([]ModelSpec, error) {
	var specs []ModelSpec
	seen := make(map[string]bool)
	for _, item := range splitList(s) {
		m, err := parseModel(item)
		if err != nil {
			return nil, err
		}
		if seen[m.Key] {
			return nil, fmt.Errorf("duplicate model key %q", m.Key)
		}
		seen[m.Key] = true
		specs = append(specs, m)
	}
	return specs, nil
}

func parseModel(item string) (ModelSpec, error) {
	key, rest, ok := strings.Cut(item, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return ModelSpec{}, fmt.Errorf("model %q: want key=kind:location", item)
	}
	kind, location, _ := strings.Cut(rest, ":")
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !kinds[kind] {
		return ModelSpec{}, fmt.Errorf("model %q: unknown kind %q", key, kind)
	}

	m := ModelSpec{Key: key, Kind: kind, Location: strings.TrimSpace(location)}
	if i := strings.LastIndex(m.Location, "@"); i >= 0 {
		if c, err := strconv.ParseFloat(m.Location[i+1:], 64); err == nil {
			if c <= 0 || c > 1 {
				return ModelSpec{}, fmt.Errorf("model %q: confidence %v outside (0, 1]", key, c)
			}
			m.Confidence = c
			m.Location = m.Location[:i]
		}
	}

	switch m.Kind {
	case KindONNX, KindOpenCV, KindRemote:
		if m.Location == "" {
			return ModelSpec{}, fmt.Errorf("model %q: %s needs a location", key, m.Kind)
		}
	}
	return m, nil
}
