package tracker

import (
	"testing"

	"go.viam.com/test"
)

func TestKalmanStationaryTarget(t *testing.T) {
	kf := newKalmanFilter(90, 190)

	// feed the same centroid repeatedly; the estimate should settle on it
	var cx, cy float64
	for i := 0; i < 20; i++ {
		cx, cy = kf.Predict()
		err := kf.Correct(100, 200)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, cx, test.ShouldAlmostEqual, 100, 1.0)
	test.That(t, cy, test.ShouldAlmostEqual, 200, 1.0)
}

func TestKalmanConstantVelocityTarget(t *testing.T) {
	kf := newKalmanFilter(0, 0)

	// target moves +5 px/frame in x, stays flat in y
	for i := 1; i <= 30; i++ {
		kf.Predict()
		err := kf.Correct(float64(5*i), 0)
		test.That(t, err, test.ShouldBeNil)
	}

	// after convergence the prediction should lead the last observation by
	// roughly one frame's velocity
	cx, cy := kf.Predict()
	test.That(t, cx, test.ShouldAlmostEqual, 155, 3.0)
	test.That(t, cy, test.ShouldAlmostEqual, 0, 3.0)
}

func TestKalmanPredictWithoutCorrection(t *testing.T) {
	kf := newKalmanFilter(50, 50)

	// build up a velocity estimate of ~+10 px/frame in y
	for i := 1; i <= 20; i++ {
		kf.Predict()
		err := kf.Correct(50, float64(50+10*i))
		test.That(t, err, test.ShouldBeNil)
	}

	// coasting blind should keep extrapolating along the learned velocity
	_, cy1 := kf.Predict()
	_, cy2 := kf.Predict()
	test.That(t, cy2-cy1, test.ShouldAlmostEqual, 10, 2.0)
}
