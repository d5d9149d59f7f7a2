// Package reference builds synthetic density maps and soft masks used to
// set up and check helical processing.
package reference

import (
	"errors"
	"fmt"
	"math"

	"helixsym/internal/models"
	"helixsym/pkg/interpolation"
)

// ErrInvalidParams is returned for reference parameters that cannot produce a map
var ErrInvalidParams = errors.New("invalid reference parameters")

// HelixParams describes a synthetic helical assembly of Gaussian subunits
type HelixParams struct {
	// Box is the edge length of the cubic output map in voxels
	Box int

	// PixelSize is the voxel size in Angstroms
	PixelSize float64

	// TwistDeg is the rotation between consecutive subunits
	TwistDeg float64

	// RiseA is the axial shift between consecutive subunits
	RiseA float64

	// RadiusA is the distance of subunit centers from the helical axis
	RadiusA float64

	// BlobSigmaA is the standard deviation of each Gaussian subunit
	BlobSigmaA float64

	// SymCn adds n-fold rotational copies about the axis; 0 or 1 for none
	SymCn int
}

func (p HelixParams) validate() error {
	switch {
	case p.Box < 2:
		return fmt.Errorf("%w: box %d", ErrInvalidParams, p.Box)
	case !(p.PixelSize > 0):
		return fmt.Errorf("%w: pixel size %g", ErrInvalidParams, p.PixelSize)
	case !(p.RiseA > 0):
		return fmt.Errorf("%w: rise %g A must be positive", ErrInvalidParams, p.RiseA)
	case p.RadiusA < 0:
		return fmt.Errorf("%w: radius %g A must not be negative", ErrInvalidParams, p.RadiusA)
	case !(p.BlobSigmaA > 0):
		return fmt.Errorf("%w: blob sigma %g A must be positive", ErrInvalidParams, p.BlobSigmaA)
	case p.SymCn < 0:
		return fmt.Errorf("%w: Cn %d must not be negative", ErrInvalidParams, p.SymCn)
	}
	return nil
}

// blobCutoff is the distance, in blob sigmas, beyond which a subunit is
// ignored
const blobCutoff = 6

// HelicalReference3D returns a cubic map of Gaussian subunits placed at
// H^k p0, where H rotates by TwistDeg about Z and shifts by RiseA along Z
// and p0 lies on the X axis at RadiusA. Subunits are generated well past both
// ends of the box so the sampled map is symmetric under H wherever the
// transformed voxel stays in the box.
func HelicalReference3D(p HelixParams) (*models.Volume, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	v, err := models.NewVolume(p.Box, p.Box, p.Box, p.PixelSize)
	if err != nil {
		return nil, err
	}

	rise := p.RiseA / p.PixelSize
	radius := p.RadiusA / p.PixelSize
	sigma := p.BlobSigmaA / p.PixelSize
	cn := max(p.SymCn, 1)

	reach := float64(p.Box)/2 + blobCutoff*sigma + rise
	kMax := int(math.Ceil(reach / rise))
	blobs := make([][3]float64, 0, (2*kMax+1)*cn)
	for k := -kMax; k <= kMax; k++ {
		for j := 0; j < cn; j++ {
			a := (float64(k)*p.TwistDeg + float64(j)*360/float64(cn)) * math.Pi / 180
			blobs = append(blobs, [3]float64{radius * math.Cos(a), radius * math.Sin(a), float64(k) * rise})
		}
	}

	cx, cy, cz := v.Center()
	inv := 1 / (2 * sigma * sigma)
	cut2 := blobCutoff * blobCutoff * sigma * sigma
	for z := 0; z < v.Depth; z++ {
		lz := float64(z - cz)
		for y := 0; y < v.Height; y++ {
			ly := float64(y - cy)
			for x := 0; x < v.Width; x++ {
				lx := float64(x - cx)
				sum := 0.0
				for _, b := range blobs {
					dz := lz - b[2]
					if dz*dz > cut2 {
						continue
					}
					dx, dy := lx-b[0], ly-b[1]
					sum += math.Exp(-(dx*dx + dy*dy + dz*dz) * inv)
				}
				v.Data[v.Index(x, y, z)] = sum
			}
		}
	}
	return v, nil
}

// CutOutPartOfHelix returns a cubic map of edge newBox sampled from v after
// tilting the helical axis by angDeg about the Y axis. Only the central
// zPercentage of the input along Z contributes; everything else is zero.
func CutOutPartOfHelix(v *models.Volume, newBox int, angDeg, zPercentage float64) (*models.Volume, error) {
	if newBox < 1 {
		return nil, fmt.Errorf("%w: box %d must be positive", ErrInvalidParams, newBox)
	}
	if !(zPercentage > 0 && zPercentage <= 1) {
		return nil, fmt.Errorf("%w: z percentage %g outside (0, 1]", ErrInvalidParams, zPercentage)
	}

	out, err := models.NewVolume(newBox, newBox, newBox, v.PixelSize)
	if err != nil {
		return nil, err
	}
	a := angDeg * math.Pi / 180
	cos, sin := math.Cos(a), math.Sin(a)
	zMax := zPercentage * float64(v.Depth) / 2
	cx, cy, cz := out.Center()

	for z := 0; z < out.Depth; z++ {
		lz := float64(z - cz)
		for y := 0; y < out.Height; y++ {
			ly := float64(y - cy)
			for x := 0; x < out.Width; x++ {
				lx := float64(x - cx)
				sx := cos*lx + sin*lz
				sz := -sin*lx + cos*lz
				if math.Abs(sz) > zMax {
					continue
				}
				if val, ok := interpolation.TrilinearLogical(v, sx, ly, sz); ok {
					out.Set(x, y, z, val)
				}
			}
		}
	}
	return out, nil
}
