package tracker

import (
	"image"
	"math"
	"testing"

	"go.viam.com/test"
	objdet "go.viam.com/rdk/vision/objectdetection"
)

func TestValidateDetections(t *testing.T) {
	ok := []objdet.Detection{makeDet(0, 0, 10, 20, 3)}
	test.That(t, validateDetections(ok), test.ShouldBeNil)
	test.That(t, validateDetections(nil), test.ShouldBeNil)

	zeroWidth := []objdet.Detection{makeDet(5, 0, 5, 20, 3)}
	test.That(t, validateDetections(zeroWidth), test.ShouldNotBeNil)

	nanScore := []objdet.Detection{makeDet(0, 0, 10, 20, math.NaN())}
	test.That(t, validateDetections(nanScore), test.ShouldNotBeNil)
}

func TestFilterDetectionsMinScore(t *testing.T) {
	dets := []objdet.Detection{
		makeDet(0, 0, 10, 20, 0.5),
		makeDet(20, 0, 30, 20, 2.5),
	}
	out := FilterDetections(dets, 1.0, image.Rectangle{}, nil, 0.25)
	test.That(t, len(out), test.ShouldEqual, 1)
	test.That(t, out[0].Score(), test.ShouldEqual, 2.5)
}

func TestFilterDetectionsRegionOfInterest(t *testing.T) {
	roi := image.Rect(0, 0, 100, 100)
	dets := []objdet.Detection{
		makeDet(10, 10, 20, 40, 3),   // inside
		makeDet(90, 90, 110, 130, 3), // centroid outside
	}
	out := FilterDetections(dets, 0, roi, nil, 0.25)
	test.That(t, len(out), test.ShouldEqual, 1)
	test.That(t, out[0].BoundingBox().Min, test.ShouldResemble, image.Pt(10, 10))
}

func TestFilterDetectionsScaleTable(t *testing.T) {
	roi := image.Rect(0, 0, 100, 100)
	// expected pedestrian height grows from 20 px at the top of the region
	// to 60 px at the bottom
	table := []float64{20, 40, 60}

	dets := []objdet.Detection{
		makeDet(10, 25, 20, 45, 3), // bottom row 45, expected ~38: 20 px is too short
		makeDet(40, 10, 50, 48, 3), // bottom row 48, expected ~39: 38 px fits
		makeDet(70, 0, 80, 95, 3),  // bottom row 95, expected ~58: 95 px is too tall
	}
	out := FilterDetections(dets, 0, roi, table, 0.25)
	test.That(t, len(out), test.ShouldEqual, 1)
	test.That(t, out[0].BoundingBox().Min, test.ShouldResemble, image.Pt(40, 10))
}

func TestExpectedHeightAt(t *testing.T) {
	table := []float64{20, 40, 60}
	test.That(t, expectedHeightAt(table, 0), test.ShouldEqual, 20.0)
	test.That(t, expectedHeightAt(table, 0.5), test.ShouldEqual, 40.0)
	test.That(t, expectedHeightAt(table, 1), test.ShouldEqual, 60.0)
	test.That(t, expectedHeightAt(table, 0.25), test.ShouldEqual, 30.0)
	// out-of-range rows clamp to the table ends
	test.That(t, expectedHeightAt(table, -0.5), test.ShouldEqual, 20.0)
	test.That(t, expectedHeightAt(table, 1.5), test.ShouldEqual, 60.0)
	test.That(t, expectedHeightAt([]float64{35}, 0.7), test.ShouldEqual, 35.0)
}
