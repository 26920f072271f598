package detection

import (
	"math"
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
)

// FilterConfidence returns the detections with confidence >= min, in order.
func FilterConfidence(dets []Detection, min float64) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= min {
			out = append(out, d)
		}
	}
	return out
}

// SuppressOverlaps performs greedy non-maximum suppression.
//
// Detections are visited in descending confidence order (stable for ties).
// A detection is dropped when a kept detection with the same label overlaps
// it with IoU strictly greater than maxIoU. The result is sorted by
// descending confidence. An maxIoU of 1 keeps everything.
func SuppressOverlaps(dets []Detection, maxIoU float64) []Detection {
	if len(dets) == 0 {
		return []Detection{}
	}

	order := make([]Detection, len(dets))
	copy(order, dets)
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].Confidence > order[j].Confidence
	})

	// Spatial index to avoid comparing every pair
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(order))
	for _, d := range order {
		x1, y1, x2, y2 := indexBounds(d.Box)
		fb.Add(x1, y1, x2, y2)
	}
	fb.Finish()

	suppressed := make([]bool, len(order))
	kept := make([]Detection, 0, len(order))
	for i, d := range order {
		if suppressed[i] {
			continue
		}
		kept = append(kept, d)
		x1, y1, x2, y2 := indexBounds(d.Box)
		for _, j := range fb.Search(x1, y1, x2, y2) {
			if j <= i || suppressed[j] {
				continue
			}
			if order[j].Label != d.Label {
				continue
			}
			if d.Box.IoU(order[j].Box) > maxIoU {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// indexBounds widens a box to whole pixels so the index never misses a
// candidate.
func indexBounds(b Box) (int32, int32, int32, int32) {
	return int32(math.Floor(b.X1)), int32(math.Floor(b.Y1)), int32(math.Ceil(b.X2)), int32(math.Ceil(b.Y2))
}
