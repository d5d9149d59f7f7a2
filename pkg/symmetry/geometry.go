// Package symmetry estimates and imposes helical symmetry on density maps.
//
// A helical operator H rotates a point by twist about the Z axis and moves it
// by rise along Z. The Scorer measures how well a map agrees with a copy of
// itself transformed by H, the Searcher finds the (rise, twist) pair that
// maximizes that agreement, and the Symmetrizer averages a map over all
// copies H^k reachable inside the box.
//
// All work is restricted to a cylindrical region of interest (ROI) centered
// on the Z axis of the box.
package symmetry

import (
	"errors"
	"fmt"
	"math"

	"helixsym/internal/models"
)

var (
	// ErrInvalidRange is returned for malformed bounds, before any scoring
	ErrInvalidRange = errors.New("invalid range")

	// ErrDegenerateROI is returned when the ROI yields too few samples
	ErrDegenerateROI = errors.New("degenerate region of interest")

	// ErrNoValidCandidate is returned when every grid point is degenerate
	ErrNoValidCandidate = errors.New("no valid symmetry candidate")
)

// MinROIVoxels is the minimum number of sampled voxel pairs for a score to
// be meaningful
const MinROIVoxels = 100

// Geometry describes the ROI in physical units
type Geometry struct {
	// PixelSize is the voxel size in Angstroms
	PixelSize float64 `yaml:"pixelSize" validate:"gt=0"`

	// SphereRadiusA limits the outer radius when positive
	SphereRadiusA float64 `yaml:"sphereRadiusA" validate:"gte=0"`

	// CylInnerRadiusA is the inner radius of the cylinder, 0 for a solid one
	CylInnerRadiusA float64 `yaml:"cylInnerRadiusA" validate:"gte=0"`

	// CylOuterRadiusA is the outer radius; SphereRadiusA is used when <= 0
	CylOuterRadiusA float64 `yaml:"cylOuterRadiusA" validate:"gte=0"`

	// ZPercentage is the central fraction of the box length along Z
	ZPercentage float64 `yaml:"zPercentage" validate:"gt=0,lte=1"`
}

// ROI is the cylindrical region of interest in pixel units
type ROI struct {
	InnerRadius float64
	OuterRadius float64
	ZPercentage float64
}

// AxialHalfLength returns the largest |z| inside the ROI for a box of the
// given depth
func (r ROI) AxialHalfLength(depth int) float64 {
	return r.ZPercentage * float64(depth) / 2
}

// ROI converts the geometry into pixel units for the given map
func (g Geometry) ROI(v *models.Volume) (ROI, error) {
	if !(g.PixelSize > 0) {
		return ROI{}, fmt.Errorf("%w: pixel size %g", ErrInvalidRange, g.PixelSize)
	}
	if !(g.ZPercentage > 0 && g.ZPercentage <= 1) {
		return ROI{}, fmt.Errorf("%w: z percentage %g outside (0, 1]", ErrInvalidRange, g.ZPercentage)
	}

	outerA := g.CylOuterRadiusA
	if outerA <= 0 {
		outerA = g.SphereRadiusA
	}
	if g.SphereRadiusA > 0 && outerA > g.SphereRadiusA {
		outerA = g.SphereRadiusA
	}
	if !(outerA > 0) {
		return ROI{}, fmt.Errorf("%w: outer radius must be positive", ErrInvalidRange)
	}

	outer := outerA / g.PixelSize
	if half := float64(v.MinXY()) / 2; outer > half {
		return ROI{}, fmt.Errorf("%w: outer radius %.2f px exceeds half box %.1f px", ErrInvalidRange, outer, half)
	}
	inner := math.Max(0, g.CylInnerRadiusA/g.PixelSize)
	if inner >= outer {
		return ROI{}, fmt.Errorf("%w: inner radius %.2f px >= outer radius %.2f px", ErrInvalidRange, inner, outer)
	}
	return ROI{InnerRadius: inner, OuterRadius: outer, ZPercentage: g.ZPercentage}, nil
}

// Range is a search bracket for one symmetry parameter
type Range struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Step   float64 `yaml:"step" validate:"gte=0"`
	Search bool    `yaml:"search"`
}

// Mid returns the midpoint of the bracket, which is the value used when the
// parameter is not searched
func (r Range) Mid() float64 {
	return (r.Min + r.Max) / 2
}

// Contains reports whether x lies in the bracket, with a small slack for
// accumulated step arithmetic
func (r Range) Contains(x float64) bool {
	const slack = 1e-9
	return x >= r.Min-slack && x <= r.Max+slack
}

func (r Range) validate(name string) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsNaN(r.Step) {
		return fmt.Errorf("%w: %s bracket contains NaN", ErrInvalidRange, name)
	}
	if math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) || math.IsInf(r.Step, 0) {
		return fmt.Errorf("%w: %s bracket is not finite", ErrInvalidRange, name)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s min %g > max %g", ErrInvalidRange, name, r.Min, r.Max)
	}
	if r.Search && !(r.Step > 0) {
		return fmt.Errorf("%w: %s step %g must be positive when searching", ErrInvalidRange, name, r.Step)
	}
	return nil
}

// scale returns the bracket multiplied by f (Angstrom to pixel conversion)
func (r Range) scale(f float64) Range {
	return Range{Min: r.Min * f, Max: r.Max * f, Step: r.Step * f, Search: r.Search}
}
