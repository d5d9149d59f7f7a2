package symmetry

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"helixsym/internal/models"
	"helixsym/pkg/interpolation"
)

// Scorer computes the real-space cross-correlation between a map and its
// copy transformed by a helical operator
type Scorer struct {
	workers int
}

// NewScorer creates a scorer that splits voxel work across the given number
// of goroutines. workers < 1 means one per CPU.
func NewScorer(workers int) *Scorer {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Scorer{workers: workers}
}

// samplePairs holds the values of ROI voxels and of their transformed
// positions, in scan order
type samplePairs struct {
	orig  []float64
	moved []float64
}

// Score returns the Pearson correlation between every voxel of the ROI and
// the map value at its position after rotating by twistDeg about Z and
// shifting by risePix along Z, together with the number of sampled pairs.
// Voxels whose transformed position falls outside the array are skipped.
//
// The ROI holds voxels with rMinPix <= r <= rMaxPix and
// |z| <= zPercentage*Depth/2, in coordinates relative to the box center.
func (s *Scorer) Score(v *models.Volume, rMinPix, rMaxPix, zPercentage, risePix, twistDeg float64) (float64, int, error) {
	roi := ROI{InnerRadius: rMinPix, OuterRadius: rMaxPix, ZPercentage: zPercentage}
	slabs := v.Slabs(s.workers * 2)
	parts := make([]samplePairs, len(slabs))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, slab := range slabs {
		g.Go(func() error {
			parts[slab.Index] = gatherPairs(v, slab, roi, risePix, twistDeg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, err
	}

	n := 0
	for _, p := range parts {
		n += len(p.orig)
	}
	if n < MinROIVoxels {
		return 0, n, fmt.Errorf("%w: %d voxel pairs sampled, need %d", ErrDegenerateROI, n, MinROIVoxels)
	}

	orig := make([]float64, 0, n)
	moved := make([]float64, 0, n)
	for _, p := range parts {
		orig = append(orig, p.orig...)
		moved = append(moved, p.moved...)
	}

	cc := stat.Correlation(orig, moved, nil)
	if math.IsNaN(cc) || math.IsInf(cc, 0) {
		return 0, n, fmt.Errorf("%w: zero variance over %d voxel pairs", ErrDegenerateROI, n)
	}
	return cc, n, nil
}

func gatherPairs(v *models.Volume, slab models.Slab, roi ROI, risePix, twistDeg float64) samplePairs {
	var out samplePairs
	if !(roi.OuterRadius >= 0) || roi.InnerRadius > roi.OuterRadius {
		return out
	}

	cx, cy, cz := v.Center()
	zMax := roi.AxialHalfLength(v.Depth)
	r2Min := math.Max(0, roi.InnerRadius) * math.Max(0, roi.InnerRadius)
	r2Max := roi.OuterRadius * roi.OuterRadius
	twist := twistDeg * math.Pi / 180
	cos, sin := math.Cos(twist), math.Sin(twist)

	for z := slab.ZStart; z < slab.ZEnd; z++ {
		lz := float64(z - cz)
		if math.Abs(lz) > zMax {
			continue
		}
		for y := 0; y < v.Height; y++ {
			ly := float64(y - cy)
			for x := 0; x < v.Width; x++ {
				lx := float64(x - cx)
				r2 := lx*lx + ly*ly
				if r2 < r2Min || r2 > r2Max {
					continue
				}
				moved, ok := interpolation.TrilinearLogical(v, lx*cos-ly*sin, lx*sin+ly*cos, lz+risePix)
				if !ok {
					continue
				}
				out.orig = append(out.orig, v.Data[v.Index(x, y, z)])
				out.moved = append(out.moved, moved)
			}
		}
	}
	return out
}
