package coords

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestRoundTrip3D(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	angles := []struct{ psi, tilt float64 }{
		{0, 0}, {0, 90}, {90, 90}, {-37.5, 12}, {179, 179}, {233.3, -45}, {45, 135},
	}
	for _, a := range angles {
		for i := 0; i < 20; i++ {
			p := []float64{rng.Float64()*200 - 100, rng.Float64()*200 - 100, rng.Float64()*200 - 100}
			h, err := Transform(p, a.psi, a.tilt, CartesianToHelical)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			back, err := Transform(h, a.psi, a.tilt, HelicalToCartesian)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			for k := range p {
				if math.Abs(back[k]-p[k]) > 1e-6 {
					t.Errorf("psi=%g tilt=%g: round trip %v -> %v -> %v", a.psi, a.tilt, p, h, back)
					break
				}
			}
		}
	}
}

func TestRoundTrip2D(t *testing.T) {
	for _, psi := range []float64{0, 30, 90, -120, 359} {
		x, y, _, err := TransformXYZ(3, -4, 99, psi, 0, 2, CartesianToHelical)
		if err != nil {
			t.Fatalf("TransformXYZ failed: %v", err)
		}
		if math.Abs(math.Hypot(x, y)-5) > 1e-9 {
			t.Errorf("psi=%g: rotation changed the length to %g", psi, math.Hypot(x, y))
		}
		bx, by, bz, err := TransformXYZ(x, y, 0, psi, 0, 2, HelicalToCartesian)
		if err != nil {
			t.Fatalf("TransformXYZ failed: %v", err)
		}
		if math.Abs(bx-3) > 1e-6 || math.Abs(by+4) > 1e-6 || bz != 0 {
			t.Errorf("psi=%g: round trip gave (%g,%g,%g)", psi, bx, by, bz)
		}
	}
}

func TestHelicalAxis(t *testing.T) {
	// With tilt=90 and psi=0 the helical axis lies along Cartesian X.
	h, err := Transform([]float64{1, 0, 0}, 0, 90, CartesianToHelical)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if math.Abs(h[2]-1) > 1e-12 || math.Abs(h[0]) > 1e-12 || math.Abs(h[1]) > 1e-12 {
		t.Errorf("Expected (0,0,1), got %v", h)
	}

	// In 2D the axis is the first helical component.
	x, y, _, _ := TransformXYZ(0, 1, 0, 90, 0, 2, CartesianToHelical)
	if math.Abs(x-1) > 1e-12 || math.Abs(y) > 1e-12 {
		t.Errorf("Expected (1,0), got (%g,%g)", x, y)
	}
}

func TestTransformPointsMatchesSingle(t *testing.T) {
	pts := [][]float64{{1, 2, 3}, {-4, 5, 0.5}, {0, 0, -7}}
	for _, dir := range []Direction{CartesianToHelical, HelicalToCartesian} {
		batch, err := TransformPoints(pts, 33, 71, dir)
		if err != nil {
			t.Fatalf("TransformPoints failed: %v", err)
		}
		for i, p := range pts {
			single, _ := Transform(p, 33, 71, dir)
			for k := range single {
				if math.Abs(single[k]-batch[i][k]) > 1e-12 {
					t.Errorf("%v point %d: batch %v, single %v", dir, i, batch[i], single)
					break
				}
			}
		}
	}
}

func TestInvalidDimension(t *testing.T) {
	if _, err := Transform([]float64{1}, 0, 0, CartesianToHelical); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for 1D point, got %v", err)
	}
	if _, err := Transform([]float64{1, 2, 3, 4}, 0, 0, CartesianToHelical); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for 4D point, got %v", err)
	}
	if _, _, _, err := TransformXYZ(1, 2, 3, 0, 0, 4, CartesianToHelical); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for dim=4, got %v", err)
	}
	if _, err := TransformPoints([][]float64{{1, 2, 3}, {1, 2}}, 0, 0, CartesianToHelical); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for ragged batch, got %v", err)
	}
	if _, err := ToCylindrical([]float64{1, 2}); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension for 2D cylindrical, got %v", err)
	}
}

func TestCylindrical(t *testing.T) {
	c, err := ToCylindrical([]float64{0, 2, 5})
	if err != nil {
		t.Fatalf("ToCylindrical failed: %v", err)
	}
	if math.Abs(c.Radius-2) > 1e-12 || math.Abs(c.AzimuthDeg-90) > 1e-12 || c.Height != 5 {
		t.Errorf("Unexpected cylindrical coordinates %+v", c)
	}
	p := FromCylindrical(c)
	if math.Abs(p[0]) > 1e-12 || math.Abs(p[1]-2) > 1e-12 || p[2] != 5 {
		t.Errorf("FromCylindrical gave %v", p)
	}
}
