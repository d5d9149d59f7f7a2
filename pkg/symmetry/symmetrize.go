package symmetry

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"helixsym/internal/logging"
	"helixsym/internal/metrics"
	"helixsym/internal/models"
	"helixsym/pkg/interpolation"
)

// Symmetrizer imposes helical symmetry on a density map in real space
type Symmetrizer struct {
	workers int
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// NewSymmetrizer creates a symmetrizer that uses the given number of
// goroutines. workers < 1 means one per CPU.
func NewSymmetrizer(workers int) *Symmetrizer {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Symmetrizer{workers: workers, logger: logging.Discard()}
}

// SetLogger sets the structured logger
func (s *Symmetrizer) SetLogger(l *slog.Logger) {
	s.logger = logging.OrDiscard(l)
}

// SetMetrics sets the metrics recorder
func (s *Symmetrizer) SetMetrics(m *metrics.Recorder) {
	s.metrics = m
}

// Apply returns a new map in which every voxel of the ROI is replaced by the
// mean of itself and all of its helical copies H^k p (k != 0) that stay inside
// the box along Z. The change is faded out with a raised cosine of width
// cosineWidthPix outside the radial and axial limits of the ROI. The input
// map is not modified.
func (s *Symmetrizer) Apply(v *models.Volume, geom Geometry, riseA, twistDeg, cosineWidthPix float64) (*models.Volume, error) {
	roi, err := geom.ROI(v)
	if err != nil {
		return nil, err
	}
	axial := float64(v.Depth) * geom.PixelSize
	if !(riseA > 0) || !(riseA < axial) {
		return nil, fmt.Errorf("%w: rise %g A outside (0, %g) A", ErrInvalidRange, riseA, axial)
	}
	if math.IsNaN(twistDeg) || math.IsInf(twistDeg, 0) {
		return nil, fmt.Errorf("%w: twist %g", ErrInvalidRange, twistDeg)
	}
	if !(cosineWidthPix >= 0) {
		return nil, fmt.Errorf("%w: cosine width %g must not be negative", ErrInvalidRange, cosineWidthPix)
	}

	risePix := riseA / geom.PixelSize
	copies := int(math.Ceil(float64(v.Depth)/risePix)) + 1
	ops := make([]operator, 0, 2*copies)
	for k := 1; k <= copies; k++ {
		for _, sign := range [2]float64{1, -1} {
			a := sign * float64(k) * twistDeg * math.Pi / 180
			ops = append(ops, operator{cos: math.Cos(a), sin: math.Sin(a), dz: sign * float64(k) * risePix})
		}
	}

	out := v.Clone()
	slabs := v.Slabs(s.workers * 2)
	touched := make([]int, len(slabs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, slab := range slabs {
		g.Go(func() error {
			touched[slab.Index] = symmetrizeSlab(v, out, slab, roi, cosineWidthPix, ops)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, t := range touched {
		n += t
	}
	s.metrics.ObserveSymmetrize(n)
	s.logger.Debug("imposed helical symmetry",
		"rise_A", riseA,
		"twist_deg", twistDeg,
		"copies", len(ops),
		"voxels", n)
	return out, nil
}

// operator is one power of the helical operator
type operator struct {
	cos, sin, dz float64
}

func symmetrizeSlab(v, out *models.Volume, slab models.Slab, roi ROI, width float64, ops []operator) int {
	cx, cy, cz := v.Center()
	zMax := roi.AxialHalfLength(v.Depth)
	touched := 0

	for z := slab.ZStart; z < slab.ZEnd; z++ {
		lz := float64(z - cz)
		wz := edgeWeight(math.Abs(lz)-zMax, width)
		if wz <= 0 {
			continue
		}
		for y := 0; y < v.Height; y++ {
			ly := float64(y - cy)
			for x := 0; x < v.Width; x++ {
				lx := float64(x - cx)
				r := math.Sqrt(lx*lx + ly*ly)
				w := wz * edgeWeight(math.Max(r-roi.OuterRadius, roi.InnerRadius-r), width)
				if w <= 0 {
					continue
				}

				idx := v.Index(x, y, z)
				sum, count := v.Data[idx], 1
				for _, op := range ops {
					val, ok := interpolation.TrilinearLogical(v, lx*op.cos-ly*op.sin, lx*op.sin+ly*op.cos, lz+op.dz)
					if !ok {
						continue
					}
					sum += val
					count++
				}
				out.Data[idx] = w*sum/float64(count) + (1-w)*v.Data[idx]
				touched++
			}
		}
	}
	return touched
}

// edgeWeight is 1 for d <= 0, falls to 0 with a raised cosine over
// 0 < d < width and is 0 beyond. A zero width gives a hard edge.
func edgeWeight(d, width float64) float64 {
	switch {
	case d <= 0:
		return 1
	case d >= width:
		return 0
	default:
		return 0.5 * (1 + math.Cos(math.Pi*d/width))
	}
}
