// Package coords converts point coordinates between the Cartesian frame of a
// particle image or volume and the helical frame of the filament it belongs to.
//
// In 3D the helical frame is obtained by applying the ZYZ Euler rotation
// (rot = 0, tilt, psi) to the Cartesian point; the helical axis is the third
// component. In 2D the frame is rotated by psi and the helical axis is the
// first component. Both rotations are orthonormal, so the inverse transform
// uses the transposed matrix and the round trip is exact up to rounding.
package coords

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidDimension is returned for points that are neither 2D nor 3D
var ErrInvalidDimension = errors.New("invalid point dimension")

// Direction selects which way a transform goes
type Direction bool

const (
	// CartesianToHelical maps Cartesian coordinates into the helical frame
	CartesianToHelical Direction = true

	// HelicalToCartesian maps helical-frame coordinates back to Cartesian
	HelicalToCartesian Direction = false
)

func (d Direction) String() string {
	if d == CartesianToHelical {
		return "cartesian->helical"
	}
	return "helical->cartesian"
}

// rotation returns the rotation taking Cartesian coordinates to helical ones
func rotation(psiDeg, tiltDeg float64, dim int) (*mat.Dense, error) {
	psi := psiDeg * math.Pi / 180
	cg, sg := math.Cos(psi), math.Sin(psi)
	switch dim {
	case 2:
		return mat.NewDense(2, 2, []float64{
			cg, sg,
			-sg, cg,
		}), nil
	case 3:
		tilt := tiltDeg * math.Pi / 180
		cb, sb := math.Cos(tilt), math.Sin(tilt)
		return mat.NewDense(3, 3, []float64{
			cg * cb, sg, -cg * sb,
			-sg * cb, cg, sg * sb,
			sb, 0, cb,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
}

// Transform converts a single 2D or 3D point. The input slice is not modified.
func Transform(in []float64, psiDeg, tiltDeg float64, dir Direction) ([]float64, error) {
	dim := len(in)
	r, err := rotation(psiDeg, tiltDeg, dim)
	if err != nil {
		return nil, err
	}
	var m mat.Matrix = r
	if dir == HelicalToCartesian {
		m = r.T()
	}
	var out mat.VecDense
	out.MulVec(m, mat.NewVecDense(dim, append([]float64(nil), in...)))
	return out.RawVector().Data, nil
}

// TransformXYZ is the scalar form of Transform. For dim == 2 the z
// coordinate is ignored and returned as zero.
func TransformXYZ(x, y, z, psiDeg, tiltDeg float64, dim int, dir Direction) (float64, float64, float64, error) {
	var in []float64
	switch dim {
	case 2:
		in = []float64{x, y}
	case 3:
		in = []float64{x, y, z}
	default:
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrInvalidDimension, dim)
	}
	out, err := Transform(in, psiDeg, tiltDeg, dir)
	if err != nil {
		return 0, 0, 0, err
	}
	if dim == 2 {
		return out[0], out[1], 0, nil
	}
	return out[0], out[1], out[2], nil
}

// TransformPoints converts a batch of points that share one orientation.
// All points must have the same dimension.
func TransformPoints(points [][]float64, psiDeg, tiltDeg float64, dir Direction) ([][]float64, error) {
	if len(points) == 0 {
		return nil, nil
	}
	dim := len(points[0])
	r, err := rotation(psiDeg, tiltDeg, dim)
	if err != nil {
		return nil, err
	}

	flat := make([]float64, 0, len(points)*dim)
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: point %d has %d coordinates, want %d", ErrInvalidDimension, i, len(p), dim)
		}
		flat = append(flat, p...)
	}
	in := mat.NewDense(len(points), dim, flat)

	// Points are rows, so out = in * R^T for the forward direction.
	var m mat.Matrix = r.T()
	if dir == HelicalToCartesian {
		m = r
	}
	var out mat.Dense
	out.Mul(in, m)

	res := make([][]float64, len(points))
	for i := range res {
		res[i] = mat.Row(nil, i, &out)
	}
	return res, nil
}

// Cylindrical describes a helical-frame point by its distance from the axis,
// its azimuth and its height along the axis
type Cylindrical struct {
	Radius     float64
	AzimuthDeg float64
	Height     float64
}

// ToCylindrical expresses a 3D helical-frame point in cylindrical form
func ToCylindrical(h []float64) (Cylindrical, error) {
	if len(h) != 3 {
		return Cylindrical{}, fmt.Errorf("%w: %d", ErrInvalidDimension, len(h))
	}
	return Cylindrical{
		Radius:     math.Hypot(h[0], h[1]),
		AzimuthDeg: math.Atan2(h[1], h[0]) * 180 / math.Pi,
		Height:     h[2],
	}, nil
}

// FromCylindrical is the inverse of ToCylindrical
func FromCylindrical(c Cylindrical) []float64 {
	a := c.AzimuthDeg * math.Pi / 180
	return []float64{c.Radius * math.Cos(a), c.Radius * math.Sin(a), c.Height}
}
