package symmetry

import (
	"fmt"
	"math"
)

// Candidate is one (rise, twist) pair and its goodness-of-fit cost.
// Deviation is 1 - cc, so lower is better; +Inf marks an unevaluated or
// degenerate candidate.
type Candidate struct {
	TwistDeg  float64
	RisePix   float64
	Deviation float64
}

// NewCandidate returns an unevaluated candidate
func NewCandidate(twistDeg, risePix float64) Candidate {
	return Candidate{TwistDeg: twistDeg, RisePix: risePix, Deviation: math.Inf(1)}
}

// Evaluated reports whether the candidate carries a finite cost
func (c Candidate) Evaluated() bool {
	return !math.IsInf(c.Deviation, 1)
}

func (c Candidate) String() string {
	return fmt.Sprintf("rise=%.4fpx twist=%.4fdeg dev=%.6g", c.RisePix, c.TwistDeg, c.Deviation)
}

// MaxGridCandidates bounds the number of candidates of a coarse grid
const MaxGridCandidates = 1 << 20

// MakeCandidateGrid enumerates the candidates of a search grid.
//
// Ordering is rise-major: rise is the outer loop and twist varies fastest.
// An axis that is not searched collapses to the midpoint of its bracket; a
// searched axis yields floor((max-min)/step)+1 samples starting at min.
// Grids of more than MaxGridCandidates candidates are rejected with
// ErrInvalidRange.
func MakeCandidateGrid(rise, twist Range) ([]Candidate, error) {
	if err := rise.validate("rise"); err != nil {
		return nil, err
	}
	if err := twist.validate("twist"); err != nil {
		return nil, err
	}

	riseStart, riseStep, riseN, err := axisSamples(rise, "rise")
	if err != nil {
		return nil, err
	}
	twistStart, twistStep, twistN, err := axisSamples(twist, "twist")
	if err != nil {
		return nil, err
	}
	if riseN > MaxGridCandidates/twistN {
		return nil, fmt.Errorf("%w: %d x %d grid exceeds %d candidates", ErrInvalidRange, riseN, twistN, MaxGridCandidates)
	}

	grid := make([]Candidate, 0, riseN*twistN)
	for i := 0; i < riseN; i++ {
		r := riseStart + float64(i)*riseStep
		for j := 0; j < twistN; j++ {
			grid = append(grid, NewCandidate(twistStart+float64(j)*twistStep, r))
		}
	}
	return grid, nil
}

func axisSamples(r Range, name string) (start, step float64, n int, err error) {
	if !r.Search {
		return r.Mid(), 0, 1, nil
	}
	count := math.Floor((r.Max-r.Min)/r.Step+1e-9) + 1
	if !(count <= MaxGridCandidates) {
		return 0, 0, 0, fmt.Errorf("%w: %s step %g gives more than %d samples", ErrInvalidRange, name, r.Step, MaxGridCandidates)
	}
	return r.Min, r.Step, int(count), nil
}
