package tracker

import (
	"testing"

	"go.viam.com/test"
)

func floatPtr(f float64) *float64 { return &f }

func TestConfigValidate(t *testing.T) {
	cfg := &Config{CameraName: "cam", DetectorName: "det"}
	deps, err := cfg.Validate("")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"cam", "det"})

	// both resources are required
	_, err = (&Config{DetectorName: "det"}).Validate("")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = (&Config{CameraName: "cam"}).Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	// gating must stay above the price of leaving a pair unassigned
	bad := &Config{
		CameraName:          "cam",
		DetectorName:        "det",
		GatingCost:          floatPtr(50),
		CostOfNonAssignment: floatPtr(60),
	}
	_, err = bad.Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	bad = &Config{CameraName: "cam", DetectorName: "det", GatingThreshold: floatPtr(1.5)}
	_, err = bad.Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	bad = &Config{CameraName: "cam", DetectorName: "det", VisibilityThreshold: floatPtr(1.2)}
	_, err = bad.Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	// a scale table is only meaningful relative to a region of interest
	bad = &Config{CameraName: "cam", DetectorName: "det", ScaleTable: []float64{20, 40}}
	_, err = bad.Validate("")
	test.That(t, err, test.ShouldNotBeNil)

	good := &Config{
		CameraName:       "cam",
		DetectorName:     "det",
		ScaleTable:       []float64{20, 40},
		RegionOfInterest: &RegionOfInterest{X: 0, Y: 0, Width: 640, Height: 480},
	}
	_, err = good.Validate("")
	test.That(t, err, test.ShouldBeNil)
}

func TestConfigParameters(t *testing.T) {
	// omitted attributes take the defaults
	params := (&Config{CameraName: "cam", DetectorName: "det"}).parameters()
	test.That(t, params, test.ShouldResemble, DefaultParameters())

	cfg := &Config{
		CameraName:          "cam",
		DetectorName:        "det",
		GatingThreshold:     floatPtr(0.8),
		CostOfNonAssignment: floatPtr(5),
		TimeWindowSize:      8,
		AgeThreshold:        12,
	}
	params = cfg.parameters()
	test.That(t, params.GatingThresh, test.ShouldEqual, 0.8)
	test.That(t, params.CostOfNonAssignment, test.ShouldEqual, 5.0)
	test.That(t, params.TimeWindowSize, test.ShouldEqual, 8)
	test.That(t, params.AgeThresh, test.ShouldEqual, 12)
	// untouched attributes keep their defaults
	test.That(t, params.GatingCost, test.ShouldEqual, 100.0)
	test.That(t, params.VisThresh, test.ShouldEqual, 0.6)
}

func TestTrackLabels(t *testing.T) {
	label := trackLabel(7)
	test.That(t, label, test.ShouldEqual, "pedestrian_7")

	id, err := idFromLabel(label)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, id, test.ShouldEqual, int64(7))

	_, err = idFromLabel("vehicle_7")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = idFromLabel("pedestrian_seven")
	test.That(t, err, test.ShouldNotBeNil)

	// colors are stable per id and cycle through the palette
	test.That(t, colorForID(3), test.ShouldResemble, colorForID(3))
	test.That(t, colorForID(3), test.ShouldNotResemble, colorForID(4))
}
