// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains the per-track record and the per-frame lifecycle rules
// applied to it: assigned update, unassigned (coasting) update, the deletion
// predicate, and the confirmation predicate used for display.
package tracker

import (
	"image"
	"image/color"

	objdet "go.viam.com/rdk/vision/objectdetection"
)

// track is one hypothesized pedestrian. Histories are append-only and stay
// aligned with age: after the update step of frame N of the track's life,
// len(bboxHistory) == len(scoreHistory) == age == N.
type track struct {
	id int64

	bboxHistory  []image.Rectangle
	scoreHistory []float64
	kalman       *kalmanFilter

	age               int
	totalVisibleCount int

	// rolling confidence over the trailing score window
	maxConfidence  float64
	meanConfidence float64

	// recomputed every frame before association, consumed by the cost model
	// and by the unassigned-update path
	predictedBox image.Rectangle

	displayColor color.RGBA // render-only
}

// boxSmoothingWindow is how many trailing history boxes contribute to the
// width/height average on an assigned update.
const boxSmoothingWindow = 4

func centroid(r image.Rectangle) (float64, float64) {
	return float64(r.Min.X+r.Max.X) / 2, float64(r.Min.Y+r.Max.Y) / 2
}

// recenter returns a box of the given size centered on (cx, cy).
func recenter(cx, cy, w, h float64) image.Rectangle {
	return image.Rect(
		int(cx-w/2), int(cy-h/2),
		int(cx+w/2), int(cy+h/2),
	)
}

// newTrack creates a track from an unmatched detection. The motion estimator
// is seeded from the detection centroid and the histories start at length one.
func newTrack(id int64, det objdet.Detection) *track {
	box := *det.BoundingBox()
	score := det.Score()
	cx, cy := centroid(box)
	return &track{
		id:                id,
		bboxHistory:       []image.Rectangle{box},
		scoreHistory:      []float64{score},
		kalman:            newKalmanFilter(cx, cy),
		age:               1,
		totalVisibleCount: 1,
		maxConfidence:     score,
		meanConfidence:    score,
		predictedBox:      box,
		displayColor:      colorForID(id),
	}
}

// predict advances the motion estimator one frame and recomputes predictedBox
// as the most recent history box re-centered on the predicted centroid. Size
// is assumed to change slowly relative to position.
func (tr *track) predict() image.Rectangle {
	cx, cy := tr.kalman.Predict()
	last := tr.bboxHistory[len(tr.bboxHistory)-1]
	tr.predictedBox = recenter(cx, cy, float64(last.Dx()), float64(last.Dy()))
	return tr.predictedBox
}

// applyAssigned folds a matched detection into the track: the estimator is
// corrected with the detection centroid, and the appended box takes the mean
// width/height of the trailing history boxes plus the detection box,
// re-centered on the detection centroid. Averaging the size keeps the box
// from jumping on single-frame detector noise.
func (tr *track) applyAssigned(det objdet.Detection, timeWindowSize int) error {
	box := *det.BoundingBox()
	cx, cy := centroid(box)
	if err := tr.kalman.Correct(cx, cy); err != nil {
		return err
	}

	window := boxSmoothingWindow
	if len(tr.bboxHistory) < window {
		window = len(tr.bboxHistory)
	}
	sumW, sumH := float64(box.Dx()), float64(box.Dy())
	for _, b := range tr.bboxHistory[len(tr.bboxHistory)-window:] {
		sumW += float64(b.Dx())
		sumH += float64(b.Dy())
	}
	count := float64(window + 1)
	smoothed := recenter(cx, cy, sumW/count, sumH/count)

	tr.bboxHistory = append(tr.bboxHistory, smoothed)
	tr.scoreHistory = append(tr.scoreHistory, det.Score())
	tr.age++
	tr.totalVisibleCount++
	tr.updateConfidence(timeWindowSize)
	return nil
}

// applyUnassigned coasts the track through a frame with no matched detection:
// the predicted box is appended as-is, the score entry is 0, and the estimator
// keeps predicting blind. Visibility is not credited.
func (tr *track) applyUnassigned(timeWindowSize int) {
	tr.bboxHistory = append(tr.bboxHistory, tr.predictedBox)
	tr.scoreHistory = append(tr.scoreHistory, 0)
	tr.age++
	tr.updateConfidence(timeWindowSize)
}

// updateConfidence recomputes the (max, mean) confidence over the trailing
// timeWindowSize scores. A coasted frame contributes a 0 and can only pull
// both values down.
func (tr *track) updateConfidence(timeWindowSize int) {
	window := timeWindowSize
	if len(tr.scoreHistory) < window {
		window = len(tr.scoreHistory)
	}
	recent := tr.scoreHistory[len(tr.scoreHistory)-window:]
	maxScore, sum := recent[0], 0.0
	for _, s := range recent {
		if s > maxScore {
			maxScore = s
		}
		sum += s
	}
	tr.maxConfidence = maxScore
	tr.meanConfidence = sum / float64(window)
}

// visibility is the fraction of the track's lifetime frames in which it
// received a real detection match.
func (tr *track) visibility() float64 {
	return float64(tr.totalVisibleCount) / float64(tr.age)
}

// shouldDelete is the lost-track predicate: young tracks that were rarely
// visible are likely detector noise, and any track whose strongest recent
// score is too weak is not trusted regardless of age.
func (tr *track) shouldDelete(ageThresh int, visThresh, confidenceThresh float64) bool {
	if tr.age <= ageThresh && tr.visibility() <= visThresh {
		return true
	}
	return tr.maxConfidence <= confidenceThresh
}

// isConfirmed is the presentation filter deciding whether the track is shown
// as a real pedestrian. It is deliberately distinct from shouldDelete: a track
// can be alive yet unconfirmed.
func (tr *track) isConfirmed(ageThresh int, confidenceThresh float64) bool {
	if tr.age < ageThresh/2 {
		return false
	}
	return tr.age >= ageThresh || tr.maxConfidence >= confidenceThresh
}

// currentBox is the most recent entry of the bounding box history.
func (tr *track) currentBox() image.Rectangle {
	return tr.bboxHistory[len(tr.bboxHistory)-1]
}
