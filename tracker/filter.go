// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains methods that are useful for filtering out detections
// before they enter the tracking loop.
package tracker

import (
	"image"
	"math"

	"github.com/pkg/errors"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

// validateDetections fails fast on malformed detector output. A NaN score or
// a degenerate box would make the cost minimization undefined, so the whole
// frame's detection set is rejected rather than silently propagated.
func validateDetections(dets []objdet.Detection) error {
	for i, det := range dets {
		box := det.BoundingBox()
		if box == nil {
			return errors.Errorf("detection %d has no bounding box", i)
		}
		if box.Dx() <= 0 || box.Dy() <= 0 {
			return errors.Errorf("detection %d has a degenerate bounding box %v", i, *box)
		}
		if math.IsNaN(det.Score()) {
			return errors.Errorf("detection %d has a NaN score", i)
		}
	}
	return nil
}

// expectedHeightAt linearly interpolates a calibrated pedestrian-height table
// sampled uniformly over the region of interest's rows. rowFrac 0 is the top
// of the region, 1 the bottom.
func expectedHeightAt(table []float64, rowFrac float64) float64 {
	if len(table) == 1 {
		return table[0]
	}
	if rowFrac <= 0 {
		return table[0]
	}
	if rowFrac >= 1 {
		return table[len(table)-1]
	}
	pos := rowFrac * float64(len(table)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	return table[lo]*(1-frac) + table[lo+1]*frac
}

// FilterDetections drops detections the tracker should never see: those below
// the minimum score, those whose centroid falls outside the region of
// interest, and those whose height disagrees with the calibrated
// height-vs-row table by more than scaleTolerance. An empty region or table
// disables the corresponding check.
func FilterDetections(
	dets []objdet.Detection,
	minScore float64,
	roi image.Rectangle,
	scaleTable []float64,
	scaleTolerance float64,
) []objdet.Detection {
	out := make([]objdet.Detection, 0, len(dets))
	for _, det := range dets {
		if det.Score() < minScore {
			continue
		}
		box := *det.BoundingBox()
		if !roi.Empty() {
			cx, cy := centroid(box)
			if !image.Pt(int(cx), int(cy)).In(roi) {
				continue
			}
		}
		if len(scaleTable) > 0 && !roi.Empty() {
			// pedestrians stand on the ground, so the box bottom row
			// indexes the calibration table
			rowFrac := float64(box.Max.Y-roi.Min.Y) / float64(roi.Dy())
			expected := expectedHeightAt(scaleTable, rowFrac)
			if expected > 0 && math.Abs(float64(box.Dy())-expected) > scaleTolerance*expected {
				continue
			}
		}
		out = append(out, det)
	}
	return out
}
