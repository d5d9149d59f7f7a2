package reference

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"

	"helixsym/internal/models"
)

func testHelix() HelixParams {
	return HelixParams{
		Box:        32,
		PixelSize:  1,
		TwistDeg:   90,
		RiseA:      4,
		RadiusA:    7,
		BlobSigmaA: 2,
	}
}

func TestHelicalReference3DIsSymmetric(t *testing.T) {
	p := testHelix()
	v, err := HelicalReference3D(p)
	if err != nil {
		t.Fatalf("HelicalReference3D failed: %v", err)
	}
	if v.Width != p.Box || v.Height != p.Box || v.Depth != p.Box {
		t.Fatalf("Expected %d^3 box, got %dx%dx%d", p.Box, v.Width, v.Height, v.Depth)
	}
	if floats.Max(v.Data) <= 0.5 {
		t.Fatalf("Expected subunit peaks near 1, max is %f", floats.Max(v.Data))
	}

	// A 90 degree twist with an integer rise maps voxels onto voxels
	cx, cy, cz := v.Center()
	checked := 0
	for z := 2; z < v.Depth-6; z++ {
		for y := 4; y < v.Height-4; y++ {
			for x := 4; x < v.Width-4; x++ {
				lx, ly := x-cx, y-cy
				hx, hy, hz := -ly+cx, lx+cy, z+4
				if hx < 0 || hx >= v.Width || hy < 0 || hy >= v.Height {
					continue
				}
				a, b := v.At(x, y, z), v.At(hx, hy, hz)
				if math.Abs(a-b) > 1e-9 {
					t.Fatalf("Voxel (%d,%d,%d)=%g differs from its helical copy %g", x-cx, y-cy, z-cz, a, b)
				}
				checked++
			}
		}
	}
	if checked == 0 {
		t.Fatal("No voxel pairs checked")
	}
}

func TestHelicalReference3DCn(t *testing.T) {
	p := testHelix()
	p.SymCn = 2
	v, err := HelicalReference3D(p)
	if err != nil {
		t.Fatalf("HelicalReference3D failed: %v", err)
	}
	cx, cy, _ := v.Center()
	// C2 about Z maps (x, y) to (-x, -y)
	for z := 0; z < v.Depth; z++ {
		for y := 1; y < v.Height; y++ {
			for x := 1; x < v.Width; x++ {
				a := v.At(x, y, z)
				b := v.At(2*cx-x, 2*cy-y, z)
				if math.Abs(a-b) > 1e-9 {
					t.Fatalf("C2 copy mismatch at (%d,%d,%d): %g vs %g", x, y, z, a, b)
				}
			}
		}
	}
}

func TestHelicalReference3DInvalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*HelixParams)
	}{
		{"zero box", func(p *HelixParams) { p.Box = 0 }},
		{"zero pixel", func(p *HelixParams) { p.PixelSize = 0 }},
		{"zero rise", func(p *HelixParams) { p.RiseA = 0 }},
		{"negative radius", func(p *HelixParams) { p.RadiusA = -1 }},
		{"zero sigma", func(p *HelixParams) { p.BlobSigmaA = 0 }},
		{"negative Cn", func(p *HelixParams) { p.SymCn = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testHelix()
			tt.modify(&p)
			if _, err := HelicalReference3D(p); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestCylindricalReference(t *testing.T) {
	v, err := CylindricalReference(32, 1, 8, 20, 2)
	if err != nil {
		t.Fatalf("CylindricalReference failed: %v", err)
	}
	cx, cy, cz := v.Center()
	if got := v.At(cx, cy, cz); got != 0 {
		t.Errorf("Expected hollow center, got %f", got)
	}
	if got := v.At(cx+7, cy, 0); got != 1 {
		t.Errorf("Expected 1 inside the wall, got %f", got)
	}
	if got := v.At(0, 0, cz); got != 0 {
		t.Errorf("Expected 0 at the corner, got %f", got)
	}
	if got := v.At(cx+11, cy, cz); got <= 0 || got >= 1 {
		t.Errorf("Expected soft edge value in (0,1), got %f", got)
	}

	if _, err := CylindricalReference(32, 1, 20, 8, 2); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for inner > outer, got %v", err)
	}
	if _, err := CylindricalReference(32, 1, 0, 40, 2); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for diameter beyond box, got %v", err)
	}
}

func TestHelicalReference2D(t *testing.T) {
	tests := []struct {
		name          string
		white         bool
		tube, between float64
	}{
		{"white tube", true, 1, 0},
		{"black tube", false, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 50 A particle and 20 A tube at 2 A/pixel: radii of 12.5 and 5 pixels
			v, err := HelicalReference2D(32, 50, 20, 2, tt.white)
			if err != nil {
				t.Fatalf("HelicalReference2D failed: %v", err)
			}
			if v.Depth != 1 || v.Width != 32 || v.Height != 32 {
				t.Fatalf("Expected a 32x32x1 image, got %dx%dx%d", v.Width, v.Height, v.Depth)
			}
			cx, cy, _ := v.Center()
			checks := []struct {
				x, y int
				want float64
			}{
				{cx, cy, tt.tube},
				{cx + 10, cy, tt.tube},
				{cx - 11, cy + 5, tt.tube},
				{cx, cy + 8, tt.between},
				{cx, cy - 12, tt.between},
				{cx + 13, cy, 0},
				{0, 0, 0},
			}
			for _, c := range checks {
				if got := v.At(c.x, c.y, 0); got != c.want {
					t.Errorf("Pixel (%d, %d): expected %f, got %f", c.x, c.y, c.want, got)
				}
			}
		})
	}

	invalid := []struct {
		name                  string
		box                   int
		particle, tube, pixel float64
	}{
		{"tube wider than particle", 32, 20, 30, 1},
		{"zero tube", 32, 20, 0, 1},
		{"particle beyond box", 32, 80, 20, 2},
		{"zero pixel size", 32, 20, 10, 0},
	}
	for _, tt := range invalid {
		if _, err := HelicalReference2D(tt.box, tt.particle, tt.tube, tt.pixel, true); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("%s: expected ErrInvalidParams, got %v", tt.name, err)
		}
	}
}

func TestRadialAverage(t *testing.T) {
	v, err := CylindricalReference(32, 1, 8, 20, 0)
	if err != nil {
		t.Fatalf("CylindricalReference failed: %v", err)
	}
	avg := RadialAverage(v)
	if len(avg) < 16 {
		t.Fatalf("Expected at least 16 radial bins, got %d", len(avg))
	}
	if avg[0] != 0 || avg[2] != 0 {
		t.Errorf("Expected empty core, got %v", avg[:3])
	}
	for r := 5; r <= 9; r++ {
		if avg[r] != 1 {
			t.Errorf("Expected 1 inside the wall at r=%d, got %f", r, avg[r])
		}
	}
	if avg[len(avg)-1] != 0 {
		t.Errorf("Expected 0 in the outermost bin, got %f", avg[len(avg)-1])
	}
}

func filled(t *testing.T, box int, value float64) *models.Volume {
	t.Helper()
	v, err := models.NewVolume(box, box, box, 1)
	if err != nil {
		t.Fatalf("NewVolume failed: %v", err)
	}
	for i := range v.Data {
		v.Data[i] = value
	}
	return v
}

func TestApplySoftSphericalMask(t *testing.T) {
	v := filled(t, 24, 2)
	out, err := ApplySoftSphericalMask(v, 16, 3)
	if err != nil {
		t.Fatalf("ApplySoftSphericalMask failed: %v", err)
	}
	cx, cy, cz := v.Center()
	if got := out.At(cx, cy, cz); got != 2 {
		t.Errorf("Expected center unchanged, got %f", got)
	}
	if got := out.At(0, 0, 0); got != 0 {
		t.Errorf("Expected corner masked, got %f", got)
	}
	if floats.Min(v.Data) != 2 {
		t.Error("Input volume was modified")
	}
	if _, err := ApplySoftSphericalMask(v, 30, 3); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for oversized sphere, got %v", err)
	}
}

func TestCutZCentralPart(t *testing.T) {
	v := filled(t, 20, 1)
	out, err := CutZCentralPart(v, 0.5, 2)
	if err != nil {
		t.Fatalf("CutZCentralPart failed: %v", err)
	}
	_, _, cz := v.Center()
	if got := out.At(3, 3, cz); got != 1 {
		t.Errorf("Expected central section unchanged, got %f", got)
	}
	if got := out.At(3, 3, 0); got != 0 {
		t.Errorf("Expected first section zeroed, got %f", got)
	}
	if got := out.At(3, 3, cz+6); got <= 0 || got >= 1 {
		t.Errorf("Expected soft edge value in (0,1), got %f", got)
	}
	if _, err := CutZCentralPart(v, 0, 2); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams, got %v", err)
	}
}

func TestCutOutPartOfHelix(t *testing.T) {
	v, err := HelicalReference3D(testHelix())
	if err != nil {
		t.Fatalf("HelicalReference3D failed: %v", err)
	}

	same, err := CutOutPartOfHelix(v, v.Width, 0, 1)
	if err != nil {
		t.Fatalf("CutOutPartOfHelix failed: %v", err)
	}
	if !floats.EqualApprox(same.Data, v.Data, 1e-12) {
		t.Error("Expected an untilted full cut to reproduce the input")
	}

	part, err := CutOutPartOfHelix(v, 16, 0, 0.5)
	if err != nil {
		t.Fatalf("CutOutPartOfHelix failed: %v", err)
	}
	cx, cy, cz := v.Center()
	px, py, pz := part.Center()
	if got, want := part.At(px+3, py, pz), v.At(cx+3, cy, cz); got != want {
		t.Errorf("Expected %f at the center section, got %f", want, got)
	}

	if _, err := CutOutPartOfHelix(v, 0, 0, 1); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for empty box, got %v", err)
	}
}
