// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains the constant-velocity Kalman filter that estimates each
// track's centroid motion in image-plane coordinates.
package tracker

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Fixed tuning constants for the motion model. Position/velocity entries are
// process noise variances, the measurement entry is the detector's centroid
// noise variance.
const (
	kalmanPositionNoise    = 100.0
	kalmanVelocityNoise    = 25.0
	kalmanMeasurementNoise = 100.0
)

// kalmanFilter tracks a single centroid with a constant-velocity model.
// State vector is [cx, cy, vx, vy]. Each track owns exactly one filter.
type kalmanFilter struct {
	state *mat.VecDense // [cx, cy, vx, vy]
	cov   *mat.Dense    // 4x4 state covariance

	motionMat        *mat.Dense    // 4x4 state transition (dt = 1 frame)
	updateMat        *mat.Dense    // 2x4 state-to-measurement projection
	processNoise     *mat.Dense    // 4x4, diagonal
	measurementNoise *mat.SymDense // 2x2, diagonal
}

// newKalmanFilter initializes a filter from the first observed centroid.
// Velocity starts at zero with inflated uncertainty so the first few
// corrections dominate the velocity estimate.
func newKalmanFilter(cx, cy float64) *kalmanFilter {
	motionMat := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		motionMat.Set(i, i, 1.0)
	}
	// position += velocity * dt, dt is one frame
	motionMat.Set(0, 2, 1.0)
	motionMat.Set(1, 3, 1.0)

	updateMat := mat.NewDense(2, 4, nil)
	updateMat.Set(0, 0, 1.0)
	updateMat.Set(1, 1, 1.0)

	processNoise := mat.NewDense(4, 4, nil)
	processNoise.Set(0, 0, kalmanPositionNoise)
	processNoise.Set(1, 1, kalmanPositionNoise)
	processNoise.Set(2, 2, kalmanVelocityNoise)
	processNoise.Set(3, 3, kalmanVelocityNoise)

	measurementNoise := mat.NewSymDense(2, nil)
	measurementNoise.SetSym(0, 0, kalmanMeasurementNoise)
	measurementNoise.SetSym(1, 1, kalmanMeasurementNoise)

	cov := mat.NewDense(4, 4, nil)
	cov.Set(0, 0, 2*kalmanPositionNoise)
	cov.Set(1, 1, 2*kalmanPositionNoise)
	cov.Set(2, 2, 10*kalmanVelocityNoise)
	cov.Set(3, 3, 10*kalmanVelocityNoise)

	return &kalmanFilter{
		state:            mat.NewVecDense(4, []float64{cx, cy, 0, 0}),
		cov:              cov,
		motionMat:        motionMat,
		updateMat:        updateMat,
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
	}
}

// Predict advances the filter one frame and returns the predicted centroid.
func (kf *kalmanFilter) Predict() (float64, float64) {
	// x = F x
	predicted := mat.NewVecDense(4, nil)
	predicted.MulVec(kf.motionMat, kf.state)
	kf.state = predicted

	// P = F P F^T + Q
	cov := mat.NewDense(4, 4, nil)
	cov.Mul(kf.motionMat, kf.cov)
	cov.Mul(cov, kf.motionMat.T())
	cov.Add(cov, kf.processNoise)
	kf.cov = cov

	return kf.state.AtVec(0), kf.state.AtVec(1)
}

// Correct fuses an observed centroid into the filter's belief state.
func (kf *kalmanFilter) Correct(cx, cy float64) error {
	// project state into measurement space: S = H P H^T + R
	projected := mat.NewDense(2, 4, nil)
	projected.Mul(kf.updateMat, kf.cov)
	innovationCov := mat.NewDense(2, 2, nil)
	innovationCov.Mul(projected, kf.updateMat.T())

	s := mat.NewSymDense(2, nil)
	for i := 0; i < 2; i++ {
		for j := i; j < 2; j++ {
			s.SetSym(i, j, innovationCov.At(i, j)+kf.measurementNoise.At(i, j))
		}
	}

	chol := mat.Cholesky{}
	if ok := chol.Factorize(s); !ok {
		return errors.New("failed to factorize innovation covariance")
	}

	// B = P H^T, then solve S K^T = B^T for the gain
	b := mat.NewDense(4, 2, nil)
	b.Mul(kf.cov, kf.updateMat.T())

	var gainT mat.Dense // 2x4, the transposed Kalman gain
	if err := chol.SolveTo(&gainT, b.T()); err != nil {
		return errors.Wrap(err, "failed to compute kalman gain")
	}

	// innovation = z - H x
	innovation := mat.NewVecDense(2, []float64{
		cx - kf.state.AtVec(0),
		cy - kf.state.AtVec(1),
	})

	// x += K innovation
	correction := mat.NewVecDense(4, nil)
	correction.MulVec(gainT.T(), innovation)
	kf.state.AddVec(kf.state, correction)

	// P -= K S K^T
	ks := mat.NewDense(4, 2, nil)
	ks.Mul(gainT.T(), s)
	ksk := mat.NewDense(4, 4, nil)
	ksk.Mul(ks, &gainT)
	newCov := mat.NewDense(4, 4, nil)
	newCov.Sub(kf.cov, ksk)
	kf.cov = newCov

	return nil
}
