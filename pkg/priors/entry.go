// Package priors propagates angular and positional priors along helical
// tubes.
//
// Segments picked from the same filament share its local direction, so the
// orientation and offset of one segment can be predicted from its neighbours
// along the tube. The Tracker turns those predictions into priors, flags
// segments whose estimated polarity disagrees with the tube and excludes
// segments that deviate too far from the local trend.
package priors

import (
	"errors"
	"math"

	"helixsym/internal/models"
)

// ErrInvalidParams is returned when tracker parameters are out of range
var ErrInvalidParams = errors.New("invalid prior parameters")

// Table is the particle-record table read and updated by the tracker
type Table interface {
	Len() int
	TubeName(row int) string
	Get(row int, field string) float64
	Set(row int, field string, value float64)
}

// Entry holds the working state of one helical segment during a prior
// update pass. Angles are in degrees, offsets and positions in pixels.
type Entry struct {
	TubeName string
	Row      int

	Psi, Tilt           float64
	PsiPrior, TiltPrior float64

	Dx, Dy, Dz                float64
	DxPrior, DyPrior, DzPrior float64

	// TrackPos is the position of the segment along its tube
	TrackPos float64

	// HasWrongPolarity is set when the estimated direction opposes the tube
	HasWrongPolarity bool

	Subset int
	Class  int

	// PsiFlipRatio is 0 for unimodal and up to 0.5 for bimodal psi searches
	PsiFlipRatio float64

	// Excluded marks an outlier that does not contribute to its neighbours
	Excluded bool
}

// entryFromRow reads one table row
func entryFromRow(t Table, row int) Entry {
	return Entry{
		TubeName:     t.TubeName(row),
		Row:          row,
		Psi:          t.Get(row, models.FieldAnglePsi),
		Tilt:         t.Get(row, models.FieldAngleTilt),
		PsiPrior:     t.Get(row, models.FieldAnglePsiPrior),
		TiltPrior:    t.Get(row, models.FieldAngleTiltPrior),
		Dx:           t.Get(row, models.FieldOriginX),
		Dy:           t.Get(row, models.FieldOriginY),
		Dz:           t.Get(row, models.FieldOriginZ),
		DxPrior:      t.Get(row, models.FieldOriginXPrior),
		DyPrior:      t.Get(row, models.FieldOriginYPrior),
		DzPrior:      t.Get(row, models.FieldOriginZPrior),
		TrackPos:     t.Get(row, models.FieldHelicalTrackLength),
		Subset:       int(t.Get(row, models.FieldRandomSubset)),
		Class:        int(t.Get(row, models.FieldClassNumber)),
		PsiFlipRatio: t.Get(row, models.FieldAnglePsiFlipRatio),
	}
}

// CheckPolarity sets HasWrongPolarity when the psi estimate points away
// from the psi prior by more than 90 degrees
func (e *Entry) CheckPolarity() {
	e.HasWrongPolarity = oppositePolarity(e.Psi, e.PsiPrior)
}

// FlipPsiTilt returns the orientation of the same segment seen with the
// opposite polarity
func FlipPsiTilt(psiDeg, tiltDeg float64) (float64, float64) {
	return WrapDeg(psiDeg + 180), 180 - tiltDeg
}

// WrapDeg maps an angle to (-180, 180]
func WrapDeg(a float64) float64 {
	a = math.Mod(a, 360)
	switch {
	case a > 180:
		a -= 360
	case a <= -180:
		a += 360
	}
	return a
}
