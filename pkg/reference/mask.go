package reference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"helixsym/internal/models"
)

// raisedCosine is 1 for d <= 0, 0 for d >= width and a half cosine between
func raisedCosine(d, width float64) float64 {
	switch {
	case d <= 0:
		return 1
	case d >= width:
		return 0
	default:
		return 0.5 * (1 + math.Cos(math.Pi*d/width))
	}
}

// CylindricalReference returns a cubic map that is 1 inside a hollow
// cylinder along Z and fades to 0 over cosineWidth pixels at both walls
func CylindricalReference(box int, pixelSize, innerDiameterPix, outerDiameterPix, cosineWidth float64) (*models.Volume, error) {
	if innerDiameterPix < 0 || !(outerDiameterPix > innerDiameterPix) {
		return nil, fmt.Errorf("%w: diameters %g and %g", ErrInvalidParams, innerDiameterPix, outerDiameterPix)
	}
	if outerDiameterPix > float64(box) {
		return nil, fmt.Errorf("%w: outer diameter %g exceeds box %d", ErrInvalidParams, outerDiameterPix, box)
	}
	if !(cosineWidth >= 0) {
		return nil, fmt.Errorf("%w: cosine width %g", ErrInvalidParams, cosineWidth)
	}
	v, err := models.NewVolume(box, box, box, pixelSize)
	if err != nil {
		return nil, err
	}

	rIn, rOut := innerDiameterPix/2, outerDiameterPix/2
	cx, cy, _ := v.Center()
	plane := make([]float64, box*box)
	for y := 0; y < box; y++ {
		for x := 0; x < box; x++ {
			r := math.Hypot(float64(x-cx), float64(y-cy))
			w := raisedCosine(r-rOut, cosineWidth)
			if rIn > 0 {
				w *= raisedCosine(rIn-r, cosineWidth)
			}
			plane[y*box+x] = w
		}
	}
	for z := 0; z < box; z++ {
		copy(v.Data[z*len(plane):(z+1)*len(plane)], plane)
	}
	return v, nil
}

// HelicalReference2D returns a single-slice image of a tube lying along X
// through the centre of the box. Inside the circle of particleDiameterA the
// tube band of tubeDiameterA is 1 and the rest 0 for a white tube, and the
// other way round for a black one. Pixels outside the circle are 0.
func HelicalReference2D(box int, particleDiameterA, tubeDiameterA, pixelSize float64, whiteTube bool) (*models.Volume, error) {
	if !(pixelSize > 0) {
		return nil, fmt.Errorf("%w: pixel size %g", ErrInvalidParams, pixelSize)
	}
	if !(tubeDiameterA > 0) || !(particleDiameterA > tubeDiameterA) {
		return nil, fmt.Errorf("%w: tube diameter %g must be positive and below particle diameter %g",
			ErrInvalidParams, tubeDiameterA, particleDiameterA)
	}
	if particleDiameterA/pixelSize > float64(box) {
		return nil, fmt.Errorf("%w: particle diameter %g A exceeds box %d", ErrInvalidParams, particleDiameterA, box)
	}
	v, err := models.NewVolume(box, box, 1, pixelSize)
	if err != nil {
		return nil, err
	}

	rParticle := particleDiameterA / pixelSize / 2
	rTube := tubeDiameterA / pixelSize / 2
	inside, outside := 1.0, 0.0
	if !whiteTube {
		inside, outside = 0, 1
	}
	cx, cy, _ := v.Center()
	for y := 0; y < box; y++ {
		dy := float64(y - cy)
		for x := 0; x < box; x++ {
			if math.Hypot(float64(x-cx), dy) > rParticle {
				continue
			}
			if math.Abs(dy) <= rTube {
				v.Data[y*box+x] = inside
			} else {
				v.Data[y*box+x] = outside
			}
		}
	}
	return v, nil
}

// ApplySoftSphericalMask returns a copy of v multiplied by a sphere of the
// given diameter with a raised cosine edge. A non-positive diameter uses
// the largest sphere that fits the box minus the edge width.
func ApplySoftSphericalMask(v *models.Volume, diameterPix, cosineWidth float64) (*models.Volume, error) {
	if !(cosineWidth >= 0) {
		return nil, fmt.Errorf("%w: cosine width %g", ErrInvalidParams, cosineWidth)
	}
	minBox := min(v.Width, v.Height, v.Depth)
	radius := diameterPix / 2
	if diameterPix <= 0 {
		radius = float64(minBox)/2 - cosineWidth
	}
	if radius+cosineWidth > float64(minBox)/2 {
		return nil, fmt.Errorf("%w: sphere radius %g with edge %g exceeds half box", ErrInvalidParams, radius, cosineWidth)
	}

	out := v.Clone()
	cx, cy, cz := v.Center()
	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				dx, dy, dz := float64(x-cx), float64(y-cy), float64(z-cz)
				r := math.Sqrt(dx*dx + dy*dy + dz*dz)
				out.Data[v.Index(x, y, z)] *= raisedCosine(r-radius, cosineWidth)
			}
		}
	}
	return out, nil
}

// CutZCentralPart returns a copy of v multiplied by a soft axial mask that
// keeps the central zPercentage of the box along Z
func CutZCentralPart(v *models.Volume, zPercentage, cosineWidth float64) (*models.Volume, error) {
	if !(zPercentage > 0 && zPercentage <= 1) {
		return nil, fmt.Errorf("%w: z percentage %g outside (0, 1]", ErrInvalidParams, zPercentage)
	}
	if !(cosineWidth >= 0) {
		return nil, fmt.Errorf("%w: cosine width %g", ErrInvalidParams, cosineWidth)
	}

	out := v.Clone()
	_, _, cz := v.Center()
	zMax := zPercentage * float64(v.Depth) / 2
	plane := v.Width * v.Height
	for z := 0; z < v.Depth; z++ {
		w := raisedCosine(math.Abs(float64(z-cz))-zMax, cosineWidth)
		if w == 1 {
			continue
		}
		floats.Scale(w, out.Data[z*plane:(z+1)*plane])
	}
	return out, nil
}

// RadialAverage returns the mean map value over all voxels at each integer
// distance from the Z axis, index 0 being the axis itself
func RadialAverage(v *models.Volume) []float64 {
	cx, cy, _ := v.Center()
	bin := func(x, y int) int {
		return int(math.Round(math.Hypot(float64(x-cx), float64(y-cy))))
	}
	n := max(bin(0, 0), bin(v.Width-1, 0), bin(0, v.Height-1), bin(v.Width-1, v.Height-1)) + 1

	sums := make([]float64, n)
	counts := make([]float64, n)
	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				b := bin(x, y)
				sums[b] += v.At(x, y, z)
				counts[b]++
			}
		}
	}
	for i := range sums {
		if counts[i] > 0 {
			sums[i] /= counts[i]
		}
	}
	return sums
}
