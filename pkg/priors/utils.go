package priors

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"helixsym/internal/models"
)

// DefaultMaxDeviationDeg is the usual limit for RemoveBadTiltSegments and
// RemoveBadPsiSegments
const DefaultMaxDeviationDeg = 15

// UpdateAngularPriors copies the current psi and tilt estimates of every
// row into its priors
func UpdateAngularPriors(t Table) {
	for row := 0; row < t.Len(); row++ {
		t.Set(row, models.FieldAnglePsiPrior, t.Get(row, models.FieldAnglePsi))
		t.Set(row, models.FieldAngleTiltPrior, t.Get(row, models.FieldAngleTilt))
	}
}

// SetNullTiltPriors sets every tilt prior to 90 degrees, the tilt of a
// filament lying in the image plane
func SetNullTiltPriors(t Table) {
	for row := 0; row < t.Len(); row++ {
		t.Set(row, models.FieldAngleTiltPrior, 90)
	}
}

// RemoveBadTiltSegments returns a copy of t without the rows whose tilt
// differs from its prior by more than maxDevDeg, and the number of rows
// removed
func RemoveBadTiltSegments(t *models.ParticleTable, maxDevDeg float64) (*models.ParticleTable, int, error) {
	return keepRows(t, maxDevDeg, func(row int) float64 {
		return math.Abs(t.Get(row, models.FieldAngleTilt) - t.Get(row, models.FieldAngleTiltPrior))
	})
}

// RemoveBadPsiSegments returns a copy of t without the rows whose psi
// differs from its prior by more than maxDevDeg, and the number of rows
// removed
func RemoveBadPsiSegments(t *models.ParticleTable, maxDevDeg float64) (*models.ParticleTable, int, error) {
	return keepRows(t, maxDevDeg, func(row int) float64 {
		return math.Abs(WrapDeg(t.Get(row, models.FieldAnglePsi) - t.Get(row, models.FieldAnglePsiPrior)))
	})
}

func keepRows(t *models.ParticleTable, maxDevDeg float64, deviation func(row int) float64) (*models.ParticleTable, int, error) {
	if !(maxDevDeg >= 0 && maxDevDeg <= 180) {
		return nil, 0, fmt.Errorf("%w: max deviation %g outside [0, 180]", ErrInvalidParams, maxDevDeg)
	}
	var keep []int
	for row := 0; row < t.Len(); row++ {
		if deviation(row) <= maxDevDeg {
			keep = append(keep, row)
		}
	}
	return t.Subset(keep), t.Len() - len(keep), nil
}

// HelicalSigma2Rot returns the variance of the rot prior for a local search
// that samples translations along the helical axis every offsetStepPix and
// rot every rotStepDeg. A shift of x pixels along the axis is equivalent to
// a rotation of x*twist/rise, so the offsets within half a rise either side
// of the segment centre spread rot over the twist. The result never drops
// below oldSigma2Rot. A zero step, rise or twist returns oldSigma2Rot.
func HelicalSigma2Rot(risePix, twistDeg, offsetStepPix, rotStepDeg, oldSigma2Rot float64) (float64, error) {
	for _, v := range []float64{risePix, offsetStepPix, rotStepDeg, oldSigma2Rot} {
		if !(v >= 0) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: rise %g, offset step %g, rot step %g and old sigma2 rot %g must be finite and not negative",
				ErrInvalidParams, risePix, offsetStepPix, rotStepDeg, oldSigma2Rot)
		}
	}
	if math.IsNaN(twistDeg) || math.IsInf(twistDeg, 0) {
		return 0, fmt.Errorf("%w: twist %g", ErrInvalidParams, twistDeg)
	}
	const tiny = 1e-6
	twist := math.Abs(twistDeg)
	if offsetStepPix < tiny || rotStepDeg < tiny || risePix < tiny || twist < tiny {
		return oldSigma2Rot, nil
	}

	half := int(math.Floor(risePix/2/offsetStepPix + 1e-9))
	rots := make([]float64, 0, 2*half+1)
	for k := -half; k <= half; k++ {
		rots = append(rots, float64(k)*offsetStepPix*twist/risePix)
	}
	sigma2 := floats.Dot(rots, rots)/float64(len(rots)) + rotStepDeg*rotStepDeg
	return math.Max(sigma2, oldSigma2Rot), nil
}
