package priors

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"

	"helixsym/internal/logging"
	"helixsym/internal/metrics"
	"helixsym/internal/models"
	"helixsym/pkg/coords"
)

const (
	// windowSigmas is the half width of the smoothing window in units of
	// SigmaSegmentDistPix
	windowSigmas = 3

	// maxOutlierPasses bounds the number of smoothing passes per tube
	maxOutlierPasses = 5
)

// Params configures a prior update pass
type Params struct {
	// SigmaSegmentDistPix is the width of the Gaussian window along the tube
	SigmaSegmentDistPix float64 `yaml:"sigmaSegmentDistPix" validate:"gt=0"`

	// Is3D selects 3D offsets and the 3D helical frame
	Is3D bool `yaml:"is3D"`

	// FullOrientationSearch disables trend priors for 3D data unless
	// LocalAngularSearch is set
	FullOrientationSearch bool `yaml:"fullOrientationSearch"`

	// LocalAngularSearch always uses the neighbour trend as angular prior
	LocalAngularSearch bool `yaml:"localAngularSearch"`

	// ExcludeOutOfRangeTrans adds the offset test to outlier detection
	ExcludeOutOfRangeTrans bool `yaml:"excludeOutOfRangeTrans"`

	// Variances of the psi, tilt and offset estimates. A zero variance
	// disables the corresponding outlier test.
	Sigma2Psi    float64 `yaml:"sigma2Psi" validate:"gte=0"`
	Sigma2Tilt   float64 `yaml:"sigma2Tilt" validate:"gte=0"`
	Sigma2Offset float64 `yaml:"sigma2Offset" validate:"gte=0"`

	// SigmaCutoff is the outlier threshold in standard deviations
	SigmaCutoff float64 `yaml:"sigmaCutoff" validate:"gt=0"`

	// Fixed angular priors used when trend priors are disabled
	FixedPsiPriorDeg  float64 `yaml:"fixedPsiPriorDeg"`
	FixedTiltPriorDeg float64 `yaml:"fixedTiltPriorDeg" validate:"gte=0,lte=180"`

	// Workers is the number of tubes processed concurrently, < 1 for one per CPU
	Workers int `yaml:"workers" validate:"gte=0"`
}

// DefaultParams returns the parameters of a 3D local refinement
func DefaultParams() Params {
	return Params{
		SigmaSegmentDistPix: 30,
		Is3D:                true,
		SigmaCutoff:         3,
		FixedTiltPriorDeg:   90,
	}
}

func (p *Params) validate() error {
	switch {
	case !(p.SigmaSegmentDistPix > 0):
		return fmt.Errorf("%w: segment distance sigma %g must be positive", ErrInvalidParams, p.SigmaSegmentDistPix)
	case !(p.SigmaCutoff > 0):
		return fmt.Errorf("%w: sigma cutoff %g must be positive", ErrInvalidParams, p.SigmaCutoff)
	case p.Sigma2Psi < 0 || p.Sigma2Tilt < 0 || p.Sigma2Offset < 0:
		return fmt.Errorf("%w: variances must not be negative", ErrInvalidParams)
	case p.FixedTiltPriorDeg < 0 || p.FixedTiltPriorDeg > 180:
		return fmt.Errorf("%w: fixed tilt prior %g outside [0, 180]", ErrInvalidParams, p.FixedTiltPriorDeg)
	}
	return nil
}

func (p *Params) dims() int {
	if p.Is3D {
		return 3
	}
	return 2
}

// axis is the index of the helical axis in a helical-frame vector
func (p *Params) axis() int {
	if p.Is3D {
		return 2
	}
	return 0
}

func (p *Params) trendPriors() bool {
	return (p.Is3D && !p.FullOrientationSearch) || p.LocalAngularSearch
}

// Summary reports the outcome of one prior update pass
type Summary struct {
	Tubes int
	Rows  int

	// OppositePolarity is the number of rows flagged HasWrongPolarity
	OppositePolarity int

	// Outliers is the number of rows excluded from neighbour smoothing
	Outliers int

	WrongPolarityRows []int
	OutlierRows       []int
}

// Tracker updates helical priors of a particle table
type Tracker struct {
	params  *Params
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewTracker creates a tracker with the given parameters
func NewTracker(params *Params) *Tracker {
	return &Tracker{params: params, logger: logging.Discard()}
}

// SetLogger sets the structured logger
func (tr *Tracker) SetLogger(l *slog.Logger) {
	tr.logger = logging.OrDiscard(l)
}

// SetMetrics sets the metrics recorder
func (tr *Tracker) SetMetrics(m *metrics.Recorder) {
	tr.metrics = m
}

// Update recomputes the psi, tilt and offset priors of every row from the
// estimates of its neighbours along the same tube and writes them back to
// the same rows. Rows are never added, removed or reordered. A row whose psi
// flip ratio lies outside [0, 0.5] fails the update with ErrInvalidParams
// before any row is written.
func (tr *Tracker) Update(t Table) (Summary, error) {
	p := tr.params
	if err := p.validate(); err != nil {
		return Summary{}, err
	}

	n := t.Len()
	entries := make([]Entry, n)
	var names []string
	groups := make(map[string][]int)
	for row := 0; row < n; row++ {
		e := entryFromRow(t, row)
		if !(e.PsiFlipRatio >= 0 && e.PsiFlipRatio <= 0.5) {
			return Summary{}, fmt.Errorf("row %d: %w: psi flip ratio %g outside [0, 0.5]", row, ErrInvalidParams, e.PsiFlipRatio)
		}
		axial, _, err := split(e.offset(p), e.Psi, e.Tilt, p.axis())
		if err != nil {
			return Summary{}, fmt.Errorf("row %d: %w", row, err)
		}
		e.TrackPos += axial
		entries[row] = e

		if _, ok := groups[e.TubeName]; !ok {
			names = append(names, e.TubeName)
		}
		groups[e.TubeName] = append(groups[e.TubeName], row)
	}

	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	updates := make([][]rowUpdate, len(names))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, name := range names {
		rows := groups[name]
		g.Go(func() error {
			tube := make([]Entry, len(rows))
			for k, row := range rows {
				tube[k] = entries[row]
			}
			u, err := tr.updateTube(tube)
			if err != nil {
				return fmt.Errorf("tube %q: %w", name, err)
			}
			updates[i] = u
			tr.logger.Debug("updated tube priors", "tube", name, "rows", len(rows))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	sum := Summary{Tubes: len(names), Rows: n}
	for _, tube := range updates {
		for _, u := range tube {
			u.write(t, p.Is3D)
			if u.wrong {
				sum.WrongPolarityRows = append(sum.WrongPolarityRows, u.row)
			}
			if u.outlier {
				sum.OutlierRows = append(sum.OutlierRows, u.row)
			}
		}
	}
	sort.Ints(sum.WrongPolarityRows)
	sort.Ints(sum.OutlierRows)
	sum.OppositePolarity = len(sum.WrongPolarityRows)
	sum.Outliers = len(sum.OutlierRows)

	tr.metrics.ObservePriors(sum.Tubes, sum.Rows, sum.OppositePolarity, sum.Outliers)
	tr.logger.Info("updated helical priors",
		"tubes", sum.Tubes,
		"rows", sum.Rows,
		"opposite_polarity", sum.OppositePolarity,
		"outliers", sum.Outliers)
	return sum, nil
}

// rowUpdate is the result computed for one row
type rowUpdate struct {
	row int

	psiPrior, tiltPrior float64
	offsetPrior         [3]float64

	// corrected is set for bimodal rows whose estimate was flipped
	corrected bool
	psi, tilt float64

	wrong   bool
	outlier bool
}

func (u rowUpdate) write(t Table, is3D bool) {
	t.Set(u.row, models.FieldAnglePsiPrior, u.psiPrior)
	t.Set(u.row, models.FieldAngleTiltPrior, u.tiltPrior)
	t.Set(u.row, models.FieldOriginXPrior, u.offsetPrior[0])
	t.Set(u.row, models.FieldOriginYPrior, u.offsetPrior[1])
	if is3D {
		t.Set(u.row, models.FieldOriginZPrior, u.offsetPrior[2])
	}
	if u.corrected {
		t.Set(u.row, models.FieldAnglePsi, u.psi)
		t.Set(u.row, models.FieldAngleTilt, u.tilt)
	}
}

// updateTube runs smoothing passes over one tube until the outlier set no
// longer changes. Entries are sorted by track position in place.
func (tr *Tracker) updateTube(tube []Entry) ([]rowUpdate, error) {
	sort.SliceStable(tube, func(a, b int) bool {
		return tube[a].TrackPos < tube[b].TrackPos
	})

	excluded := make([]bool, len(tube))
	var updates []rowUpdate
	for pass := 0; pass < maxOutlierPasses; pass++ {
		for i := range tube {
			tube[i].Excluded = excluded[i]
		}
		var err error
		updates, err = tr.smoothTube(tube)
		if err != nil {
			return nil, err
		}
		next := make([]bool, len(tube))
		for i, u := range updates {
			next[i] = u.outlier
		}
		if slices.Equal(next, excluded) {
			break
		}
		excluded = next
	}
	return updates, nil
}

// smoothTube computes the trend of every row from its neighbours, then
// compares each row against its trend
func (tr *Tracker) smoothTube(tube []Entry) ([]rowUpdate, error) {
	p := tr.params
	trends := make([]trend, len(tube))
	for i := range tube {
		tt, err := tr.trendAt(tube, i)
		if err != nil {
			return nil, err
		}
		trends[i] = tt
	}

	updates := make([]rowUpdate, len(tube))
	for i, e := range tube {
		tt := trends[i]
		u := rowUpdate{row: e.Row}

		psi, tilt := e.Psi, e.Tilt
		u.wrong = oppositePolarity(psi, tt.psi)
		if u.wrong {
			psi, tilt = FlipPsiTilt(psi, tilt)
			if e.PsiFlipRatio > 0 {
				u.corrected, u.psi, u.tilt = true, psi, tilt
			}
		}

		if p.trendPriors() {
			u.psiPrior, u.tiltPrior = tt.psi, tt.tilt
		} else {
			u.psiPrior, u.tiltPrior = p.FixedPsiPriorDeg, p.FixedTiltPriorDeg
		}
		u.offsetPrior = tt.offset

		off := e.offset(p)
		dev := 0.0
		for k := range off {
			dev += (off[k] - tt.offset[k]) * (off[k] - tt.offset[k])
		}
		u.outlier = exceeds(math.Abs(WrapDeg(psi-tt.psi)), p.Sigma2Psi, p.SigmaCutoff) ||
			exceeds(math.Abs(tilt-tt.tilt), p.Sigma2Tilt, p.SigmaCutoff) ||
			(p.ExcludeOutOfRangeTrans && exceeds(math.Sqrt(dev), p.Sigma2Offset, p.SigmaCutoff))
		updates[i] = u
	}
	return updates, nil
}

// exceeds reports whether dev is beyond cutoff standard deviations. A zero
// variance disables the test.
func exceeds(dev, sigma2, cutoff float64) bool {
	return sigma2 > 0 && dev > cutoff*math.Sqrt(sigma2)
}

// oppositePolarity reports whether psi points more than 90 degrees away from
// the reference direction
func oppositePolarity(psi, ref float64) bool {
	return math.Abs(WrapDeg(psi-ref)) > 90
}

// offset returns the offset vector of the entry in the dimension of p
func (e *Entry) offset(p *Params) []float64 {
	if p.Is3D {
		return []float64{e.Dx, e.Dy, e.Dz}
	}
	return []float64{e.Dx, e.Dy}
}

// split decomposes a Cartesian offset into its component along the helical
// axis and the Cartesian vector perpendicular to the axis
func split(off []float64, psi, tilt float64, axis int) (float64, []float64, error) {
	h, err := coords.Transform(off, psi, tilt, coords.CartesianToHelical)
	if err != nil {
		return 0, nil, err
	}
	axial := h[axis]
	h[axis] = 0
	cross, err := coords.Transform(h, psi, tilt, coords.HelicalToCartesian)
	if err != nil {
		return 0, nil, err
	}
	return axial, cross, nil
}
