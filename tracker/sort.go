// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains the box-overlap cost model used to score candidate
// track/detection pairings before assignment.
package tracker

import (
	"image"
)

// OverlapRatio returns the intersection area divided by the smaller of the two
// box areas, in [0, 1]. Compared to plain IOU this is forgiving when one box
// is contained in the other, which happens a lot with partial detections.
func OverlapRatio(r1, r2 image.Rectangle) float64 {
	intersection := r1.Intersect(r2)
	if intersection.Empty() {
		return 0
	}
	interArea := intersection.Dx() * intersection.Dy()
	area1 := r1.Dx() * r1.Dy()
	area2 := r2.Dx() * r2.Dy()
	minArea := area1
	if area2 < minArea {
		minArea = area2
	}
	if minArea <= 0 {
		return 0
	}
	return float64(interArea) / float64(minArea)
}

// BuildCostMatrix sets up a tracks x detections cost matrix for the assignment
// solver. Cost is 1 - OverlapRatio between the track's predicted box and the
// detection box, so coinciding boxes cost 0 and disjoint boxes cost 1. Any
// pairing whose cost exceeds gatingThresh is replaced by 1 + gatingCost: the
// gate sits strictly above the natural cost ceiling of 1 so the solver can
// never prefer a gated pairing over leaving both sides unassigned, as long as
// costOfNonAssignment stays below 1 + gatingCost.
func BuildCostMatrix(predictions []image.Rectangle, detections []image.Rectangle, gatingThresh, gatingCost float64) [][]float64 {
	costs := make([][]float64, len(predictions))
	for i, pred := range predictions {
		row := make([]float64, len(detections))
		for j, det := range detections {
			cost := 1 - OverlapRatio(pred, det)
			if cost > gatingThresh {
				cost = 1 + gatingCost
			}
			row[j] = cost
		}
		costs[i] = row
	}
	return costs
}
