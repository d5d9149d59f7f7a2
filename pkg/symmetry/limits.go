package symmetry

import (
	"fmt"
	"math"
)

// MinAsymmetricUnits is the number of asymmetric units that must fit in the
// central part of a reference box
const MinAsymmetricUnits = 3

// MaxZPercentage returns the largest central Z fraction of a box of boxLen
// pixels for which a cylinder of radius cylOuterRadiusA still fits inside a
// sphere of radius sphereRadiusA. Parameters are assumed to be valid.
func MaxZPercentage(boxLen int, sphereRadiusA, cylOuterRadiusA, pixelSizeA float64) float64 {
	h := 2 * math.Sqrt(sphereRadiusA*sphereRadiusA-cylOuterRadiusA*cylOuterRadiusA)
	return math.Min(1, h/(float64(boxLen)*pixelSizeA))
}

// MaxRiseA returns the largest rise for which nrUnitsMin asymmetric units fit
// in the central zPercentage of the box
func MaxRiseA(boxLen int, pixelSizeA, zPercentage float64, nrUnitsMin int) float64 {
	return float64(boxLen) * pixelSizeA * zPercentage / float64(nrUnitsMin)
}

// ReferenceParams describes a reference map with helical symmetry
type ReferenceParams struct {
	BoxLen          int
	PixelSizeA      float64
	TwistDeg        float64
	RiseA           float64
	ZPercentage     float64
	SphereRadiusA   float64
	CylInnerRadiusA float64
	CylOuterRadiusA float64
}

// CheckReferenceParameters validates the geometry of a helical reference
func CheckReferenceParameters(p ReferenceParams) error {
	if p.BoxLen < 10 {
		return fmt.Errorf("%w: box size %d must be at least 10 pixels", ErrInvalidRange, p.BoxLen)
	}
	if !(p.PixelSizeA > 0) {
		return fmt.Errorf("%w: pixel size %g", ErrInvalidRange, p.PixelSizeA)
	}
	if !(p.ZPercentage >= 0.1 && p.ZPercentage <= 0.9) {
		return fmt.Errorf("%w: z percentage %g outside [0.1, 0.9]", ErrInvalidRange, p.ZPercentage)
	}
	halfBoxA := float64(p.BoxLen) * p.PixelSizeA / 2
	if !(p.SphereRadiusA > 0) || p.SphereRadiusA > halfBoxA {
		return fmt.Errorf("%w: sphere radius %g A outside (0, %g] A", ErrInvalidRange, p.SphereRadiusA, halfBoxA)
	}
	if !(p.CylOuterRadiusA > 0) || p.CylOuterRadiusA >= p.SphereRadiusA {
		return fmt.Errorf("%w: cylinder outer radius %g A must be in (0, %g) A", ErrInvalidRange, p.CylOuterRadiusA, p.SphereRadiusA)
	}
	if p.CylInnerRadiusA < 0 || p.CylInnerRadiusA >= p.CylOuterRadiusA {
		return fmt.Errorf("%w: cylinder inner radius %g A must be in [0, %g) A", ErrInvalidRange, p.CylInnerRadiusA, p.CylOuterRadiusA)
	}
	if zMax := MaxZPercentage(p.BoxLen, p.SphereRadiusA, p.CylOuterRadiusA, p.PixelSizeA); p.ZPercentage > zMax {
		return fmt.Errorf("%w: z percentage %g exceeds %g for this sphere and cylinder", ErrInvalidRange, p.ZPercentage, zMax)
	}
	if riseMax := MaxRiseA(p.BoxLen, p.PixelSizeA, p.ZPercentage, MinAsymmetricUnits); !(p.RiseA > 0.01) || p.RiseA > riseMax {
		return fmt.Errorf("%w: rise %g A outside (0.01, %g] A", ErrInvalidRange, p.RiseA, riseMax)
	}
	if !(math.Abs(p.TwistDeg) > 0.01 && math.Abs(p.TwistDeg) < 179.99) {
		return fmt.Errorf("%w: |twist| %g deg outside (0.01, 179.99)", ErrInvalidRange, p.TwistDeg)
	}
	return nil
}
