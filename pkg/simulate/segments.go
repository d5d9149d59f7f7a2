// Package simulate generates particle tables of helical segments with known
// ground truth.
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"helixsym/internal/models"
	"helixsym/pkg/priors"
)

// ErrInvalidParams is returned for simulation parameters that cannot produce a table
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Params controls the simulated segments
type Params struct {
	// NrTubes is the number of filaments
	NrTubes int `yaml:"nrTubes" validate:"gt=0"`

	// NrSegments is the number of segments picked per filament
	NrSegments int `yaml:"nrSegments" validate:"gt=0"`

	// NrAsu is the number of asymmetric units between consecutive segments
	NrAsu int `yaml:"nrAsu" validate:"gt=0"`

	RisePix  float64 `yaml:"risePix" validate:"gt=0"`
	TwistDeg float64 `yaml:"twistDeg"`

	// SigmaPsi and SigmaTilt are the standard deviations of the angular noise
	SigmaPsi  float64 `yaml:"sigmaPsi" validate:"gte=0"`
	SigmaTilt float64 `yaml:"sigmaTilt" validate:"gte=0"`

	// SigmaOffset is the standard deviation of the in-plane offset noise
	SigmaOffset float64 `yaml:"sigmaOffset" validate:"gte=0"`

	// FlipFraction is the probability that a segment is estimated with the
	// opposite polarity
	FlipFraction float64 `yaml:"flipFraction" validate:"gte=0,lte=1"`

	// Bimodal marks every segment as searched with a bimodal psi prior
	Bimodal bool `yaml:"bimodal"`

	Seed int64 `yaml:"seed"`
}

// Truth is the ground-truth orientation of one simulated row
type Truth struct {
	Row     int
	Tube    string
	Psi     float64
	Tilt    float64
	Flipped bool
}

// tubeNamespace derives deterministic tube names
var tubeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("helixsym:simulated-tube"))

// TubeName returns the deterministic name of tube i for a seed
func TubeName(seed int64, i int) string {
	return uuid.NewSHA1(tubeNamespace, []byte(fmt.Sprintf("%d/%d", seed, i))).String()
}

// HelicalSegments builds a particle table of segments along NrTubes
// slowly bending filaments. Each filament gets a random direction and its
// segments are spaced NrAsu*RisePix apart and turned by NrAsu*TwistDeg
// about the axis; estimates are the true angles plus
// Gaussian noise, with a FlipFraction share of them turned to the opposite
// polarity. The same Params always produce the same table.
func HelicalSegments(p Params) (*models.ParticleTable, []Truth, error) {
	switch {
	case p.NrTubes < 1 || p.NrSegments < 1 || p.NrAsu < 1:
		return nil, nil, fmt.Errorf("%w: %d tubes of %d segments of %d units", ErrInvalidParams, p.NrTubes, p.NrSegments, p.NrAsu)
	case !(p.RisePix > 0):
		return nil, nil, fmt.Errorf("%w: rise %g must be positive", ErrInvalidParams, p.RisePix)
	case p.SigmaPsi < 0 || p.SigmaTilt < 0 || p.SigmaOffset < 0:
		return nil, nil, fmt.Errorf("%w: noise must not be negative", ErrInvalidParams)
	case !(p.FlipFraction >= 0 && p.FlipFraction <= 1):
		return nil, nil, fmt.Errorf("%w: flip fraction %g outside [0, 1]", ErrInvalidParams, p.FlipFraction)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	table := models.NewParticleTable()
	truth := make([]Truth, 0, p.NrTubes*p.NrSegments)
	step := float64(p.NrAsu) * p.RisePix
	flipRatio := 0.0
	if p.Bimodal {
		flipRatio = 0.5
	}

	for tube := 0; tube < p.NrTubes; tube++ {
		name := TubeName(p.Seed, tube)
		psi0 := rng.Float64()*360 - 180
		tilt0 := 80 + rng.Float64()*20
		bend := 5 + rng.Float64()*5
		subset := float64(tube%2 + 1)

		for i := 0; i < p.NrSegments; i++ {
			a := 2 * math.Pi * float64(i) / float64(p.NrSegments)
			tp := priors.WrapDeg(psi0 + bend*math.Sin(a))
			tt := tilt0 + 0.5*bend*math.Cos(a)

			psi := priors.WrapDeg(tp + rng.NormFloat64()*p.SigmaPsi)
			tilt := tt + rng.NormFloat64()*p.SigmaTilt
			flipped := rng.Float64() < p.FlipFraction
			if flipped {
				psi, tilt = priors.FlipPsiTilt(psi, tilt)
			}

			row := table.AppendRow(name, map[string]float64{
				models.FieldAngleRot:           priors.WrapDeg(float64(i*p.NrAsu) * p.TwistDeg),
				models.FieldAnglePsi:           psi,
				models.FieldAngleTilt:          tilt,
				models.FieldOriginX:            rng.NormFloat64() * p.SigmaOffset,
				models.FieldOriginY:            rng.NormFloat64() * p.SigmaOffset,
				models.FieldHelicalTrackLength: float64(i) * step,
				models.FieldAnglePsiFlipRatio:  flipRatio,
				models.FieldRandomSubset:       subset,
				models.FieldClassNumber:        1,
			})
			truth = append(truth, Truth{Row: row, Tube: name, Psi: tp, Tilt: tt, Flipped: flipped})
		}
	}
	return table, truth, nil
}

// AngularRMS returns the root-mean-square difference between the truth and
// the psi and tilt values stored in the given fields
func AngularRMS(t priors.Table, truth []Truth, psiField, tiltField string) (psi, tilt float64) {
	if len(truth) == 0 {
		return 0, 0
	}
	dPsi := make([]float64, len(truth))
	dTilt := make([]float64, len(truth))
	for i, tr := range truth {
		dp := priors.WrapDeg(t.Get(tr.Row, psiField) - tr.Psi)
		dt := t.Get(tr.Row, tiltField) - tr.Tilt
		dPsi[i], dTilt[i] = dp*dp, dt*dt
	}
	return math.Sqrt(stat.Mean(dPsi, nil)), math.Sqrt(stat.Mean(dTilt, nil))
}
