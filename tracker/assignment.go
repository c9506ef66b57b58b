// Package tracker implements a pedestrian tracker as a Viam vision service.
// This file contains the rectangular minimum-cost assignment between tracks
// and detections, built on Munkres' method.
package tracker

import (
	hg "github.com/charles-haynes/munkres"
	"github.com/pkg/errors"
)

// Assignment pairs a track row with a detection column of the cost matrix.
type Assignment struct {
	TrackIdx     int
	DetectionIdx int
}

// SolveAssignment solves the rectangular assignment problem for an M x N cost
// matrix, where every row and every column may also be left unassigned at the
// fixed cost costOfNonAssignment. It returns the matched pairs and the two
// unmatched index sets; together they partition the row and column indices
// with no omissions and no duplicates. numDetections is passed explicitly
// because a zero-track frame produces a matrix with no rows to read N from.
//
// The rectangular problem is reduced to a square one by augmenting the matrix
// to (M+N) x (M+N): the top-right block carries one virtual "unassigned track"
// column per row, the bottom-left block one virtual "unassigned detection" row
// per column, both at costOfNonAssignment on their diagonal. Cells that must
// never be chosen get a padding sentinel larger than the total cost of any
// matching that avoids them, so the solver provably never picks one. The
// bottom-right block is zero so virtual rows and columns can pair up freely.
func SolveAssignment(costs [][]float64, numDetections int, costOfNonAssignment float64) ([]Assignment, []int, []int, error) {
	m := len(costs)
	n := numDetections

	// trivial partitions; the solver rejects empty matrices
	if m == 0 || n == 0 {
		unmatchedTracks := make([]int, 0, m)
		for i := 0; i < m; i++ {
			unmatchedTracks = append(unmatchedTracks, i)
		}
		unmatchedDetections := make([]int, 0, n)
		for j := 0; j < n; j++ {
			unmatchedDetections = append(unmatchedDetections, j)
		}
		return nil, unmatchedTracks, unmatchedDetections, nil
	}

	// The sentinel only needs to exceed the total of any matching that avoids
	// padded cells. Such a matching always exists (real cells plus diagonal
	// non-assignment cells), and its total is bounded by the sum below.
	sentinel := 1.0
	for i := range costs {
		if len(costs[i]) != n {
			return nil, nil, nil, errors.Errorf("cost matrix row %d has %d columns, expected %d", i, len(costs[i]), n)
		}
		for _, c := range costs[i] {
			sentinel += c
		}
	}
	sentinel += float64(m+n) * costOfNonAssignment

	size := m + n
	augmented := make([][]float64, size)
	for i := 0; i < size; i++ {
		row := make([]float64, size)
		for j := 0; j < size; j++ {
			switch {
			case i < m && j < n:
				row[j] = costs[i][j]
			case i < m && j == n+i:
				row[j] = costOfNonAssignment
			case i >= m && j == i-m:
				row[j] = costOfNonAssignment
			case i >= m && j >= n:
				row[j] = 0
			default:
				row[j] = sentinel
			}
		}
		augmented[i] = row
	}

	ha, err := hg.NewHungarianAlgorithm(augmented)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "failed to initialize assignment solver")
	}
	matches := ha.Execute()

	assignments := make([]Assignment, 0, m)
	unmatchedTracks := make([]int, 0)
	matchedDetections := make(map[int]bool, n)
	for i := 0; i < m; i++ {
		j := matches[i]
		if j >= 0 && j < n {
			assignments = append(assignments, Assignment{TrackIdx: i, DetectionIdx: j})
			matchedDetections[j] = true
		} else {
			unmatchedTracks = append(unmatchedTracks, i)
		}
	}
	unmatchedDetections := make([]int, 0)
	for j := 0; j < n; j++ {
		if !matchedDetections[j] {
			unmatchedDetections = append(unmatchedDetections, j)
		}
	}
	return assignments, unmatchedTracks, unmatchedDetections, nil
}

// demoteGatedAssignments strips matched pairs whose raw cost exceeds the
// gating threshold, moving both sides to the unmatched sets. The augmented
// solve minimizes total cost, so when two non-assignments together cost more
// than one gated pairing it can still return that pairing; gating must win
// regardless, for any costOfNonAssignment below 1 + gatingCost.
func demoteGatedAssignments(
	assignments []Assignment,
	unmatchedTracks, unmatchedDetections []int,
	costs [][]float64,
	gatingThresh float64,
) ([]Assignment, []int, []int) {
	kept := assignments[:0]
	for _, a := range assignments {
		if costs[a.TrackIdx][a.DetectionIdx] > gatingThresh {
			unmatchedTracks = append(unmatchedTracks, a.TrackIdx)
			unmatchedDetections = append(unmatchedDetections, a.DetectionIdx)
			continue
		}
		kept = append(kept, a)
	}
	return kept, unmatchedTracks, unmatchedDetections
}
