package models

import "testing"

func TestNewVolume(t *testing.T) {
	v, err := NewVolume(4, 5, 6, 1.5)
	if err != nil {
		t.Fatalf("NewVolume failed: %v", err)
	}
	if len(v.Data) != 4*5*6 {
		t.Errorf("Expected %d voxels, got %d", 4*5*6, len(v.Data))
	}
	if v.PixelSize != 1.5 {
		t.Errorf("Expected pixel size 1.5, got %g", v.PixelSize)
	}

	if _, err := NewVolume(0, 5, 6, 1); err == nil {
		t.Error("Expected error for zero width")
	}
	if _, err := NewVolume(4, 5, 6, 0); err == nil {
		t.Error("Expected error for zero pixel size")
	}
}

func TestVolumeIndexing(t *testing.T) {
	v, _ := NewVolume(3, 4, 5, 1)
	v.Set(2, 3, 4, 7)
	if got := v.Data[4*3*4+3*3+2]; got != 7 {
		t.Errorf("Set wrote to the wrong offset, got %g", got)
	}
	if got := v.At(2, 3, 4); got != 7 {
		t.Errorf("At(2,3,4) = %g, want 7", got)
	}

	cx, cy, cz := v.Center()
	if cx != 1 || cy != 2 || cz != 2 {
		t.Errorf("Center() = (%d,%d,%d), want (1,2,2)", cx, cy, cz)
	}
	if v.MinXY() != 3 {
		t.Errorf("MinXY() = %d, want 3", v.MinXY())
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	v, _ := NewVolume(2, 2, 2, 1)
	v.Data[0] = 1
	c := v.Clone()
	c.Data[0] = 2
	if v.Data[0] != 1 {
		t.Error("Clone should not share data with the original")
	}
	like := v.NewLike()
	if like.Data[0] != 0 || like.Width != 2 || like.PixelSize != 1 {
		t.Error("NewLike should allocate a zeroed volume of the same shape")
	}
}

func TestSlabs(t *testing.T) {
	v, _ := NewVolume(2, 2, 10, 1)

	tests := []struct {
		n         int
		wantSlabs int
	}{
		{1, 1},
		{3, 3},
		{4, 4},
		{10, 10},
		{32, 10},
		{0, 1},
	}
	for _, tt := range tests {
		slabs := v.Slabs(tt.n)
		if len(slabs) != tt.wantSlabs {
			t.Errorf("Slabs(%d) returned %d slabs, want %d", tt.n, len(slabs), tt.wantSlabs)
			continue
		}
		next := 0
		for i, s := range slabs {
			if s.Index != i {
				t.Errorf("Slabs(%d)[%d].Index = %d", tt.n, i, s.Index)
			}
			if s.ZStart != next || s.ZEnd <= s.ZStart {
				t.Errorf("Slabs(%d)[%d] = [%d,%d) does not continue from %d", tt.n, i, s.ZStart, s.ZEnd, next)
			}
			next = s.ZEnd
		}
		if next != v.Depth {
			t.Errorf("Slabs(%d) cover up to z=%d, want %d", tt.n, next, v.Depth)
		}
	}
}
