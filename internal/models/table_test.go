package models

import "testing"

func TestParticleTableRows(t *testing.T) {
	tbl := NewParticleTable()
	tbl.AppendRow("a", map[string]float64{FieldAnglePsi: 10})
	tbl.AppendRow("b", map[string]float64{FieldAngleTilt: 80})
	tbl.AppendRow("a", nil)

	if tbl.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", tbl.Len())
	}
	if got := tbl.Get(0, FieldAnglePsi); got != 10 {
		t.Errorf("Get(0, psi) = %g, want 10", got)
	}
	if got := tbl.Get(0, FieldAngleTilt); got != 0 {
		t.Errorf("Column created after row 0 should read as zero, got %g", got)
	}
	if got := tbl.Get(2, "Missing"); got != 0 {
		t.Errorf("Missing column should read as zero, got %g", got)
	}
	if !tbl.Has(FieldAngleTilt) || tbl.Has("Missing") {
		t.Error("Has() reports wrong column presence")
	}

	names := tbl.TubeNames()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("TubeNames() = %v, want [a b]", names)
	}
	rows := tbl.TubeRows("a")
	if len(rows) != 2 || rows[0] != 0 || rows[1] != 2 {
		t.Errorf("TubeRows(a) = %v, want [0 2]", rows)
	}
}

func TestSortByTube(t *testing.T) {
	tbl := NewParticleTable()
	tbl.AppendRow("b", map[string]float64{FieldHelicalTrackLength: 30, FieldAnglePsi: 3})
	tbl.AppendRow("a", map[string]float64{FieldHelicalTrackLength: 20, FieldAnglePsi: 2})
	tbl.AppendRow("b", map[string]float64{FieldHelicalTrackLength: 10, FieldAnglePsi: 1})
	tbl.AppendRow("a", map[string]float64{FieldHelicalTrackLength: 0, FieldAnglePsi: 0})

	tbl.SortByTube()

	wantTubes := []string{"b", "b", "a", "a"}
	wantPsi := []float64{1, 3, 0, 2}
	for i := range wantTubes {
		if tbl.TubeName(i) != wantTubes[i] {
			t.Errorf("row %d tube = %s, want %s", i, tbl.TubeName(i), wantTubes[i])
		}
		if tbl.Get(i, FieldAnglePsi) != wantPsi[i] {
			t.Errorf("row %d psi = %g, want %g", i, tbl.Get(i, FieldAnglePsi), wantPsi[i])
		}
	}
}

func TestSubsetCopies(t *testing.T) {
	tbl := NewParticleTable()
	tbl.AppendRow("a", map[string]float64{FieldAnglePsi: 1})
	tbl.AppendRow("a", map[string]float64{FieldAnglePsi: 2})

	sub := tbl.Subset([]int{1})
	sub.Set(0, FieldAnglePsi, 5)
	if tbl.Get(1, FieldAnglePsi) != 2 {
		t.Error("Subset should not alias the source columns")
	}
	if sub.Len() != 1 || len(sub.Fields()) != 1 {
		t.Errorf("Subset has %d rows and %d fields, want 1 and 1", sub.Len(), len(sub.Fields()))
	}
}
