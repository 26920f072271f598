package pipeline

import (
	"sort"

	"github.com/ironsheep/detect-tools-mcp/internal/detection"
)

// DefaultTopConfidences is the number of confidences kept in a summary.
const DefaultTopConfidences = 6

// DetectionSummary describes the accepted detections of one run.
type DetectionSummary struct {
	TotalDetections     int       `json:"total_detections"`
	HighestConfidence   float64   `json:"highest_confidence"`
	TopConfidences      []float64 `json:"top_confidences"`
	ClassLabels         []string  `json:"class_labels"`
	ModelName           string    `json:"model_name"`
	ModelVariant        string    `json:"model_variant"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	OverlapThreshold    float64   `json:"overlap_threshold"`
}

// Summarize builds a summary from accepted detections. TopConfidences holds
// the topN highest confidences in descending order; ClassLabels follows the
// detection order. A non-positive topN selects DefaultTopConfidences.
func Summarize(accepted []detection.Detection, entry detection.Entry, th detection.Thresholds, topN int) DetectionSummary {
	if topN <= 0 {
		topN = DefaultTopConfidences
	}

	confs := make([]float64, len(accepted))
	labels := make([]string, len(accepted))
	for i, d := range accepted {
		confs[i] = d.Confidence
		labels[i] = d.Label
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(confs)))

	s := DetectionSummary{
		TotalDetections:     len(accepted),
		TopConfidences:      confs[:min(topN, len(confs))],
		ClassLabels:         labels,
		ModelName:           entry.DisplayName,
		ModelVariant:        entry.Key,
		ConfidenceThreshold: th.Confidence,
		OverlapThreshold:    th.Overlap,
	}
	if len(confs) > 0 {
		s.HighestConfidence = confs[0]
	}
	return s
}

// FirstLabel returns the label of the first accepted detection, or
// NoDetectionLabel when there is none.
func (s DetectionSummary) FirstLabel() string {
	if len(s.ClassLabels) == 0 {
		return NoDetectionLabel
	}
	return s.ClassLabels[0]
}
