// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains the track store and the per-frame loop that drives it:
// predict, associate, update, prune, spawn, in that fixed order.
package tracker

import (
	"image"

	objdet "go.viam.com/rdk/vision/objectdetection"
)

// Parameters are the tracking constants, fixed for the lifetime of a run.
type Parameters struct {
	// GatingThresh is the cost above which a track/detection pairing is
	// forbidden; GatingCost is added on top of the cost ceiling of 1 to
	// mark such pairings for the solver.
	GatingThresh float64
	GatingCost   float64

	// CostOfNonAssignment is charged for every track left without a
	// detection and every detection left without a track. It must stay
	// below 1 + GatingCost or gating loses its meaning.
	CostOfNonAssignment float64

	// TimeWindowSize bounds the trailing score window used for the rolling
	// (max, mean) confidence.
	TimeWindowSize int

	// ConfidenceThresh, AgeThresh and VisThresh drive the deletion and
	// confirmation predicates on track.
	ConfidenceThresh float64
	AgeThresh        int
	VisThresh        float64
}

// DefaultParameters returns the tuning used for pedestrian sequences from a
// moving camera.
func DefaultParameters() Parameters {
	return Parameters{
		GatingThresh:        0.9,
		GatingCost:          100,
		CostOfNonAssignment: 10,
		TimeWindowSize:      16,
		ConfidenceThresh:    2,
		AgeThresh:           8,
		VisThresh:           0.6,
	}
}

// pedestrianTracker owns the live track set. It is single-threaded: one frame
// is fully processed before the next one's detections are considered, and
// nothing outside ProcessFrame mutates the store.
type pedestrianTracker struct {
	params Parameters
	tracks []*track
	nextID int64 // ids are strictly increasing and never reused
}

func newPedestrianTracker(params Parameters) *pedestrianTracker {
	return &pedestrianTracker{params: params}
}

// ProcessFrame runs one frame of the tracking loop over the given detections
// and returns the tracks that became newly confirmed this frame. Malformed
// detections reject the whole frame before any track is touched, so a bad
// detector batch can never poison the cost matrix.
func (p *pedestrianTracker) ProcessFrame(detections []objdet.Detection) ([]*track, error) {
	if err := validateDetections(detections); err != nil {
		return nil, err
	}

	confirmedBefore := make(map[int64]bool, len(p.tracks))
	for _, tr := range p.tracks {
		confirmedBefore[tr.id] = tr.isConfirmed(p.params.AgeThresh, p.params.ConfidenceThresh)
	}

	// predict
	predictions := make([]image.Rectangle, len(p.tracks))
	for i, tr := range p.tracks {
		predictions[i] = tr.predict()
	}

	// associate
	detBoxes := make([]image.Rectangle, len(detections))
	for j, det := range detections {
		detBoxes[j] = *det.BoundingBox()
	}
	costs := BuildCostMatrix(predictions, detBoxes, p.params.GatingThresh, p.params.GatingCost)
	assignments, unmatchedTracks, unmatchedDetections, err := SolveAssignment(costs, len(detections), p.params.CostOfNonAssignment)
	if err != nil {
		return nil, err
	}
	assignments, unmatchedTracks, unmatchedDetections = demoteGatedAssignments(
		assignments, unmatchedTracks, unmatchedDetections, costs, p.params.GatingThresh)

	// update assigned, then coast unassigned
	for _, a := range assignments {
		if err := p.tracks[a.TrackIdx].applyAssigned(detections[a.DetectionIdx], p.params.TimeWindowSize); err != nil {
			return nil, err
		}
	}
	for _, i := range unmatchedTracks {
		p.tracks[i].applyUnassigned(p.params.TimeWindowSize)
	}

	// prune lost tracks by filtering, keeping index semantics clear within
	// the frame
	kept := make([]*track, 0, len(p.tracks))
	for _, tr := range p.tracks {
		if !tr.shouldDelete(p.params.AgeThresh, p.params.VisThresh, p.params.ConfidenceThresh) {
			kept = append(kept, tr)
		}
	}
	p.tracks = kept

	// spawn new tracks from leftover detections, in detection order so id
	// assignment is reproducible
	for _, j := range unmatchedDetections {
		p.nextID++
		p.tracks = append(p.tracks, newTrack(p.nextID, detections[j]))
	}

	var newlyConfirmed []*track
	for _, tr := range p.tracks {
		if tr.isConfirmed(p.params.AgeThresh, p.params.ConfidenceThresh) && !confirmedBefore[tr.id] {
			newlyConfirmed = append(newlyConfirmed, tr)
		}
	}
	return newlyConfirmed, nil
}

// confirmedTracks returns the live tracks that pass the presentation filter.
func (p *pedestrianTracker) confirmedTracks() []*track {
	out := make([]*track, 0, len(p.tracks))
	for _, tr := range p.tracks {
		if tr.isConfirmed(p.params.AgeThresh, p.params.ConfidenceThresh) {
			out = append(out, tr)
		}
	}
	return out
}

// confirmedDetections converts the confirmed track set into the detection
// type consumers of the vision service expect. The detection score carries
// the track's rolling mean confidence.
func (p *pedestrianTracker) confirmedDetections() []objdet.Detection {
	confirmed := p.confirmedTracks()
	out := make([]objdet.Detection, 0, len(confirmed))
	for _, tr := range confirmed {
		out = append(out, objdet.NewDetection(tr.currentBox(), tr.meanConfidence, trackLabel(tr.id)))
	}
	return out
}
