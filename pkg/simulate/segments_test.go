package simulate

import (
	"errors"
	"math"
	"slices"
	"testing"

	"helixsym/internal/models"
	"helixsym/pkg/priors"
)

func testParams() Params {
	return Params{
		NrTubes:      3,
		NrSegments:   60,
		NrAsu:        2,
		RisePix:      5,
		TwistDeg:     -1.4,
		SigmaPsi:     5,
		SigmaTilt:    5,
		SigmaOffset:  1,
		FlipFraction: 0.05,
		Seed:         17,
	}
}

func TestHelicalSegments(t *testing.T) {
	p := testParams()
	table, truth, err := HelicalSegments(p)
	if err != nil {
		t.Fatalf("HelicalSegments failed: %v", err)
	}
	if table.Len() != 180 || len(truth) != 180 {
		t.Fatalf("Expected 180 rows, got %d rows and %d truths", table.Len(), len(truth))
	}

	names := table.TubeNames()
	if len(names) != 3 {
		t.Fatalf("Expected 3 tubes, got %v", names)
	}
	for i, name := range names {
		if name != TubeName(p.Seed, i) {
			t.Errorf("Tube %d: expected name %s, got %s", i, TubeName(p.Seed, i), name)
		}
		rows := table.TubeRows(name)
		for k, row := range rows {
			if got := table.Get(row, models.FieldHelicalTrackLength); got != float64(k)*10 {
				t.Errorf("Row %d: expected track length %f, got %f", row, float64(k)*10, got)
			}
			if got, want := table.Get(row, models.FieldAngleRot), float64(2*k)*p.TwistDeg; math.Abs(got-want) > 1e-9 {
				t.Errorf("Row %d: expected rot %f, got %f", row, want, got)
			}
			if got := table.Get(row, models.FieldRandomSubset); got != float64(i%2+1) {
				t.Errorf("Row %d: expected subset %d, got %f", row, i%2+1, got)
			}
		}
	}

	for _, tr := range truth {
		psi := table.Get(tr.Row, models.FieldAnglePsi)
		d := priors.WrapDeg(psi - tr.Psi)
		if tr.Flipped && (d < 90 && d > -90) {
			t.Errorf("Row %d is marked flipped but psi %f is close to truth %f", tr.Row, psi, tr.Psi)
		}
		if !tr.Flipped && (d > 90 || d < -90) {
			t.Errorf("Row %d is not flipped but psi %f is opposite to truth %f", tr.Row, psi, tr.Psi)
		}
	}
}

func TestHelicalSegmentsDeterministic(t *testing.T) {
	p := testParams()
	a, _, err := HelicalSegments(p)
	if err != nil {
		t.Fatalf("HelicalSegments failed: %v", err)
	}
	b, _, err := HelicalSegments(p)
	if err != nil {
		t.Fatalf("HelicalSegments failed: %v", err)
	}
	for row := 0; row < a.Len(); row++ {
		if a.TubeName(row) != b.TubeName(row) || a.Get(row, models.FieldAnglePsi) != b.Get(row, models.FieldAnglePsi) {
			t.Fatalf("Row %d differs between runs with the same seed", row)
		}
	}

	p.Seed++
	c, _, err := HelicalSegments(p)
	if err != nil {
		t.Fatalf("HelicalSegments failed: %v", err)
	}
	if c.TubeName(0) == a.TubeName(0) {
		t.Error("Different seeds should give different tube names")
	}
}

func TestHelicalSegmentsBimodal(t *testing.T) {
	p := testParams()
	p.Bimodal = true
	table, _, err := HelicalSegments(p)
	if err != nil {
		t.Fatalf("HelicalSegments failed: %v", err)
	}
	for row := 0; row < table.Len(); row++ {
		if got := table.Get(row, models.FieldAnglePsiFlipRatio); got != 0.5 {
			t.Fatalf("Row %d: expected flip ratio 0.5, got %f", row, got)
		}
	}
}

func TestHelicalSegmentsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
	}{
		{"no tubes", func(p *Params) { p.NrTubes = 0 }},
		{"no segments", func(p *Params) { p.NrSegments = 0 }},
		{"zero rise", func(p *Params) { p.RisePix = 0 }},
		{"negative noise", func(p *Params) { p.SigmaPsi = -1 }},
		{"flip fraction above one", func(p *Params) { p.FlipFraction = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.modify(&p)
			if _, _, err := HelicalSegments(p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestTrackerOnSimulatedTubes(t *testing.T) {
	table, truth, err := HelicalSegments(testParams())
	if err != nil {
		t.Fatalf("HelicalSegments failed: %v", err)
	}

	pp := priors.DefaultParams()
	sum, err := priors.NewTracker(&pp).Update(table)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var flipped []int
	var straight []Truth
	for _, tr := range truth {
		if tr.Flipped {
			flipped = append(flipped, tr.Row)
		} else {
			straight = append(straight, tr)
		}
	}
	if !slices.Equal(sum.WrongPolarityRows, flipped) {
		t.Errorf("Expected wrong polarity rows %v, got %v", flipped, sum.WrongPolarityRows)
	}

	rawPsi, rawTilt := AngularRMS(table, straight, models.FieldAnglePsi, models.FieldAngleTilt)
	priorPsi, priorTilt := AngularRMS(table, truth, models.FieldAnglePsiPrior, models.FieldAngleTiltPrior)
	if priorPsi > 0.5*rawPsi {
		t.Errorf("Expected psi prior RMS below %f, got %f", 0.5*rawPsi, priorPsi)
	}
	if priorTilt > 0.5*rawTilt {
		t.Errorf("Expected tilt prior RMS below %f, got %f", 0.5*rawTilt, priorTilt)
	}
}
