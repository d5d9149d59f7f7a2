package symmetry

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"helixsym/internal/logging"
	"helixsym/internal/metrics"
	"helixsym/internal/models"
)

// DefaultMaxIterations bounds local refinement when Params.MaxIterations is
// not set
const DefaultMaxIterations = 100

// Params holds the configuration of a local symmetry search
type Params struct {
	// Geometry defines the ROI used for scoring
	Geometry

	// Rise is the rise bracket in Angstroms
	Rise Range

	// Twist is the twist bracket in degrees
	Twist Range

	// RiseFloorA stops rise refinement once the step falls below it
	RiseFloorA float64

	// TwistFloorDeg stops twist refinement once the step falls below it
	TwistFloorDeg float64

	// MaxIterations caps the number of refinement iterations
	MaxIterations int

	// Workers is the number of goroutines used for scoring
	Workers int
}

// Result is the outcome of a local search
type Result struct {
	RiseA    float64
	RisePix  float64
	TwistDeg float64

	// CC is the correlation at the refined parameters
	CC float64

	// Iterations is the number of refinement iterations after the grid scan
	Iterations int

	// Evaluated is the number of distinct candidates scored
	Evaluated int
}

// Searcher refines helical symmetry parameters against a density map
type Searcher struct {
	params  *Params
	scorer  *Scorer
	logger  *slog.Logger
	report  io.Writer
	metrics *metrics.Recorder
}

// NewSearcher creates a searcher for the given parameters
func NewSearcher(params *Params) *Searcher {
	return &Searcher{
		params: params,
		scorer: NewScorer(params.Workers),
		logger: logging.Discard(),
	}
}

// SetLogger sets the structured logger
func (s *Searcher) SetLogger(l *slog.Logger) {
	s.logger = logging.OrDiscard(l)
}

// SetReporter sets the writer that receives one status line per iteration
func (s *Searcher) SetReporter(w io.Writer) {
	s.report = w
}

// SetMetrics sets the metrics recorder
func (s *Searcher) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

// validate checks every bound before any scoring happens
func (p *Params) validate(v *models.Volume) (ROI, error) {
	if err := p.Rise.validate("rise"); err != nil {
		return ROI{}, err
	}
	if err := p.Twist.validate("twist"); err != nil {
		return ROI{}, err
	}
	if !(p.PixelSize > 0) {
		return ROI{}, fmt.Errorf("%w: pixel size %g", ErrInvalidRange, p.PixelSize)
	}
	axial := float64(v.Depth) * p.PixelSize
	if !(p.Rise.Min > 0) || !(p.Rise.Max < axial) {
		return ROI{}, fmt.Errorf("%w: rise bracket [%g, %g] A outside (0, %g) A", ErrInvalidRange, p.Rise.Min, p.Rise.Max, axial)
	}
	if p.Rise.Search && !(p.RiseFloorA > 0) {
		return ROI{}, fmt.Errorf("%w: rise floor %g must be positive", ErrInvalidRange, p.RiseFloorA)
	}
	if p.Twist.Search && !(p.TwistFloorDeg > 0) {
		return ROI{}, fmt.Errorf("%w: twist floor %g must be positive", ErrInvalidRange, p.TwistFloorDeg)
	}
	return p.Geometry.ROI(v)
}

// CheckSearchRanges verifies that initial rise and twist values lie inside
// their brackets and that the brackets are well formed
func CheckSearchRanges(riseA, riseMinA, riseMaxA, twistDeg, twistMinDeg, twistMaxDeg float64) error {
	if !(riseMinA > 0) {
		return fmt.Errorf("%w: minimum rise %g A must be positive", ErrInvalidRange, riseMinA)
	}
	if riseMinA > riseMaxA {
		return fmt.Errorf("%w: rise min %g > max %g", ErrInvalidRange, riseMinA, riseMaxA)
	}
	if twistMinDeg > twistMaxDeg {
		return fmt.Errorf("%w: twist min %g > max %g", ErrInvalidRange, twistMinDeg, twistMaxDeg)
	}
	if riseA < riseMinA || riseA > riseMaxA {
		return fmt.Errorf("%w: initial rise %g A outside [%g, %g]", ErrInvalidRange, riseA, riseMinA, riseMaxA)
	}
	if twistDeg < twistMinDeg || twistDeg > twistMaxDeg {
		return fmt.Errorf("%w: initial twist %g deg outside [%g, %g]", ErrInvalidRange, twistDeg, twistMinDeg, twistMaxDeg)
	}
	return nil
}

type gridKey struct {
	rise, twist float64
}

type scored struct {
	dev float64
}

// searchState carries the memo and bounds of one LocalSearch call
type searchState struct {
	s       *Searcher
	v       *models.Volume
	roi     ROI
	rise    Range // pixels
	twist   Range
	memo    map[gridKey]scored
	riseRef float64 // normalization for tie distances
	twRef   float64
}

func (st *searchState) inside(c Candidate) bool {
	if !st.rise.Contains(c.RisePix) || !st.twist.Contains(c.TwistDeg) {
		return false
	}
	return c.RisePix > 0 && c.RisePix < float64(st.v.Depth)
}

// evaluate fills in the deviation of c, reusing earlier scores
func (st *searchState) evaluate(c *Candidate) error {
	key := gridKey{c.RisePix, c.TwistDeg}
	if sc, ok := st.memo[key]; ok {
		c.Deviation = sc.dev
		return nil
	}
	cc, _, err := st.s.scorer.Score(st.v, st.roi.InnerRadius, st.roi.OuterRadius, st.roi.ZPercentage, c.RisePix, c.TwistDeg)
	switch {
	case errors.Is(err, ErrDegenerateROI):
		c.Deviation = math.Inf(1)
		st.s.metrics.ObserveCandidate(true)
	case err != nil:
		return err
	default:
		c.Deviation = 1 - cc
		st.s.metrics.ObserveCandidate(false)
	}
	st.memo[key] = scored{dev: c.Deviation}
	return nil
}

// distance is the step-normalized squared distance used to break ties
func (st *searchState) distance(a, b Candidate) float64 {
	dr := (a.RisePix - b.RisePix) / st.riseRef
	dt := (a.TwistDeg - b.TwistDeg) / st.twRef
	return dr*dr + dt*dt
}

// better reports whether c should replace best, preferring candidates
// closer to ref when deviations are equal
func (st *searchState) better(c, best, ref Candidate) bool {
	if !c.Evaluated() {
		return false
	}
	if c.Deviation != best.Deviation {
		return c.Deviation < best.Deviation
	}
	return st.distance(c, ref) < st.distance(best, ref)
}

// neighbourOffsets lists the 8 neighbours of a grid point in a fixed order
var neighbourOffsets = [8][2]float64{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// LocalSearch scores a coarse grid over the rise and twist brackets, then
// refines the best candidate by scanning its neighbours and halving the
// step whenever no neighbour improves, until every searched axis has a step
// below its floor.
func (s *Searcher) LocalSearch(v *models.Volume) (Result, error) {
	start := time.Now()
	p := s.params
	roi, err := p.validate(v)
	if err != nil {
		return Result{}, err
	}

	toPix := 1 / p.PixelSize
	st := &searchState{
		s:       s,
		v:       v,
		roi:     roi,
		rise:    p.Rise.scale(toPix),
		twist:   p.Twist,
		memo:    make(map[gridKey]scored),
		riseRef: 1,
		twRef:   1,
	}
	if st.rise.Search {
		st.riseRef = st.rise.Step
	}
	if st.twist.Search {
		st.twRef = st.twist.Step
	}
	riseFloor := p.RiseFloorA * toPix
	maxIter := p.MaxIterations
	if maxIter < 1 {
		maxIter = DefaultMaxIterations
	}

	grid, err := MakeCandidateGrid(st.rise, st.twist)
	if err != nil {
		return Result{}, err
	}
	s.logger.Debug("scoring candidate grid",
		"candidates", len(grid),
		"r_min_px", roi.InnerRadius,
		"r_max_px", roi.OuterRadius,
		"z_percentage", roi.ZPercentage)

	ref := NewCandidate(st.twist.Mid(), st.rise.Mid())
	best := NewCandidate(math.NaN(), math.NaN())
	for i := range grid {
		if !st.inside(grid[i]) {
			continue
		}
		if err := st.evaluate(&grid[i]); err != nil {
			return Result{}, err
		}
		if st.better(grid[i], best, ref) {
			best = grid[i]
		}
	}
	if !best.Evaluated() {
		return Result{}, fmt.Errorf("%w: all %d grid candidates are degenerate", ErrNoValidCandidate, len(grid))
	}
	if err := WriteStatus(s.report, 0, best.RisePix*p.PixelSize, best.TwistDeg, 1-best.Deviation); err != nil {
		return Result{}, fmt.Errorf("failed to write search status: %w", err)
	}

	riseStep, twistStep := st.rise.Step, st.twist.Step
	converged := func() bool {
		return (!st.rise.Search || riseStep < riseFloor) && (!st.twist.Search || twistStep < p.TwistFloorDeg)
	}

	iter := 0
	for ; iter < maxIter && !converged(); iter++ {
		prev := best
		for _, off := range neighbourOffsets {
			if (off[0] != 0 && !st.rise.Search) || (off[1] != 0 && !st.twist.Search) {
				continue
			}
			c := NewCandidate(prev.TwistDeg+off[1]*twistStep, prev.RisePix+off[0]*riseStep)
			if !st.inside(c) {
				continue
			}
			if err := st.evaluate(&c); err != nil {
				return Result{}, err
			}
			if st.better(c, best, prev) {
				best = c
			}
		}
		if best == prev {
			if st.rise.Search {
				riseStep /= 2
			}
			if st.twist.Search {
				twistStep /= 2
			}
		}

		s.logger.Debug("refinement step",
			"iter", iter+1,
			"rise_px", best.RisePix,
			"twist_deg", best.TwistDeg,
			"deviation", best.Deviation,
			"rise_step_px", riseStep,
			"twist_step_deg", twistStep)
		if err := WriteStatus(s.report, iter+1, best.RisePix*p.PixelSize, best.TwistDeg, 1-best.Deviation); err != nil {
			return Result{}, fmt.Errorf("failed to write search status: %w", err)
		}
	}
	if !converged() {
		s.logger.Warn("symmetry search stopped at iteration limit", "iterations", iter)
	}

	res := Result{
		RiseA:      best.RisePix * p.PixelSize,
		RisePix:    best.RisePix,
		TwistDeg:   best.TwistDeg,
		CC:         1 - best.Deviation,
		Iterations: iter,
		Evaluated:  len(st.memo),
	}
	s.metrics.ObserveSearch(iter, time.Since(start))
	s.logger.Info("symmetry search finished",
		"rise_A", res.RiseA,
		"twist_deg", res.TwistDeg,
		"cc", res.CC,
		"iterations", res.Iterations,
		"evaluated", res.Evaluated)
	return res, nil
}
