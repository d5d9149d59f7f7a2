package models

import "sort"

// Record fields used by the helical prior machinery. Angles are in degrees,
// offsets and track lengths in pixels.
const (
	FieldAngleRot           = "AngleRot"
	FieldAnglePsi           = "AnglePsi"
	FieldAngleTilt          = "AngleTilt"
	FieldAnglePsiPrior      = "AnglePsiPrior"
	FieldAngleTiltPrior     = "AngleTiltPrior"
	FieldOriginX            = "OriginX"
	FieldOriginY            = "OriginY"
	FieldOriginZ            = "OriginZ"
	FieldOriginXPrior       = "OriginXPrior"
	FieldOriginYPrior       = "OriginYPrior"
	FieldOriginZPrior       = "OriginZPrior"
	FieldHelicalTrackLength = "HelicalTrackLength"
	FieldAnglePsiFlipRatio  = "AnglePsiFlipRatio"
	FieldRandomSubset       = "RandomSubset"
	FieldClassNumber        = "ClassNumber"
)

// ParticleTable is an insertion-ordered table of particle records. Every row
// belongs to one helical tube and carries named numeric fields.
type ParticleTable struct {
	// tubes holds the tube name of every row
	tubes []string

	// columns maps a field name to one value per row
	columns map[string][]float64

	// order keeps column names in first-use order
	order []string
}

// NewParticleTable creates an empty table
func NewParticleTable() *ParticleTable {
	return &ParticleTable{columns: make(map[string][]float64)}
}

// AppendRow adds a row for the given tube and returns its row id.
// Fields missing from values are stored as zero.
func (t *ParticleTable) AppendRow(tube string, values map[string]float64) int {
	row := len(t.tubes)
	t.tubes = append(t.tubes, tube)
	for _, name := range t.order {
		t.columns[name] = append(t.columns[name], 0)
	}
	for name, value := range values {
		t.Set(row, name, value)
	}
	return row
}

// Len returns the number of rows
func (t *ParticleTable) Len() int {
	return len(t.tubes)
}

// TubeName returns the tube the row belongs to
func (t *ParticleTable) TubeName(row int) string {
	return t.tubes[row]
}

// Has reports whether the field exists
func (t *ParticleTable) Has(field string) bool {
	_, ok := t.columns[field]
	return ok
}

// Fields returns the column names in first-use order
func (t *ParticleTable) Fields() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Get returns the value of a field, or zero if the field is absent
func (t *ParticleTable) Get(row int, field string) float64 {
	col, ok := t.columns[field]
	if !ok {
		return 0
	}
	return col[row]
}

// Set stores the value of a field, creating the column on first use
func (t *ParticleTable) Set(row int, field string, value float64) {
	col, ok := t.columns[field]
	if !ok {
		col = make([]float64, len(t.tubes))
		t.columns[field] = col
		t.order = append(t.order, field)
	}
	col[row] = value
}

// TubeNames returns the distinct tube names in first-appearance order
func (t *ParticleTable) TubeNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, name := range t.tubes {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// TubeRows returns the row ids of one tube in table order
func (t *ParticleTable) TubeRows(tube string) []int {
	var rows []int
	for i, name := range t.tubes {
		if name == tube {
			rows = append(rows, i)
		}
	}
	return rows
}

// SortByTube reorders rows so that each tube is a contiguous block sorted by
// track length. Tubes keep their first-appearance order.
func (t *ParticleTable) SortByTube() {
	rank := make(map[string]int)
	for _, name := range t.TubeNames() {
		rank[name] = len(rank)
	}
	perm := make([]int, len(t.tubes))
	for i := range perm {
		perm[i] = i
	}
	track := t.columns[FieldHelicalTrackLength]
	sort.SliceStable(perm, func(a, b int) bool {
		ra, rb := rank[t.tubes[perm[a]]], rank[t.tubes[perm[b]]]
		if ra != rb {
			return ra < rb
		}
		if track == nil {
			return false
		}
		return track[perm[a]] < track[perm[b]]
	})
	*t = *t.Subset(perm)
}

// Subset returns a new table holding the given rows in the given order
func (t *ParticleTable) Subset(rows []int) *ParticleTable {
	out := NewParticleTable()
	out.tubes = make([]string, len(rows))
	for i, row := range rows {
		out.tubes[i] = t.tubes[row]
	}
	for _, name := range t.order {
		src := t.columns[name]
		col := make([]float64, len(rows))
		for i, row := range rows {
			col[i] = src[row]
		}
		out.columns[name] = col
		out.order = append(out.order, name)
	}
	return out
}
