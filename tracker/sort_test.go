package tracker

import (
	"image"
	"testing"

	"go.viam.com/test"
)

func TestOverlapRatio(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	test.That(t, OverlapRatio(a, a), test.ShouldEqual, 1.0)

	// disjoint
	b := image.Rect(20, 20, 30, 30)
	test.That(t, OverlapRatio(a, b), test.ShouldEqual, 0.0)

	// containment normalizes by the smaller area, so a box fully inside
	// another overlaps completely
	inner := image.Rect(2, 2, 8, 8)
	test.That(t, OverlapRatio(a, inner), test.ShouldEqual, 1.0)
	test.That(t, OverlapRatio(inner, a), test.ShouldEqual, 1.0)

	// half overlap of equal-sized boxes
	c := image.Rect(5, 0, 15, 10)
	test.That(t, OverlapRatio(a, c), test.ShouldEqual, 0.5)
}

func TestBuildCostMatrix(t *testing.T) {
	preds := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(100, 100, 110, 110),
	}
	dets := []image.Rectangle{
		image.Rect(0, 0, 10, 10),
		image.Rect(5, 0, 15, 10),
	}

	costs := BuildCostMatrix(preds, dets, 0.9, 100)
	test.That(t, len(costs), test.ShouldEqual, 2)
	test.That(t, len(costs[0]), test.ShouldEqual, 2)

	// coinciding boxes cost nothing, half-overlapping boxes cost 0.5
	test.That(t, costs[0][0], test.ShouldEqual, 0.0)
	test.That(t, costs[0][1], test.ShouldEqual, 0.5)

	// the far-away track is gated against both detections: the gate value
	// sits strictly above the natural ceiling of 1
	test.That(t, costs[1][0], test.ShouldEqual, 101.0)
	test.That(t, costs[1][1], test.ShouldEqual, 101.0)
}

func TestBuildCostMatrixEmpty(t *testing.T) {
	costs := BuildCostMatrix(nil, []image.Rectangle{image.Rect(0, 0, 5, 5)}, 0.9, 100)
	test.That(t, len(costs), test.ShouldEqual, 0)

	costs = BuildCostMatrix([]image.Rectangle{image.Rect(0, 0, 5, 5)}, nil, 0.9, 100)
	test.That(t, len(costs), test.ShouldEqual, 1)
	test.That(t, len(costs[0]), test.ShouldEqual, 0)
}
