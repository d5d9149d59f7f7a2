package priors

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"helixsym/pkg/coords"
)

// trend is the orientation and offset predicted for a row by its neighbours
type trend struct {
	psi, tilt float64
	offset    [3]float64
}

// neighbour is a row inside the smoothing window of another row
type neighbour struct {
	idx int
	d   float64
	w   float64
}

// window returns the non-excluded rows within windowSigmas of row i, not
// including i itself. tube must be sorted by track position.
func (tr *Tracker) window(tube []Entry, i int) []neighbour {
	sigma := tr.params.SigmaSegmentDistPix
	reach := windowSigmas * sigma
	var nb []neighbour
	add := func(j int) bool {
		d := tube[j].TrackPos - tube[i].TrackPos
		if math.Abs(d) > reach {
			return false
		}
		if !tube[j].Excluded {
			nb = append(nb, neighbour{idx: j, d: d, w: math.Exp(-d * d / (2 * sigma * sigma))})
		}
		return true
	}
	for j := i - 1; j >= 0; j-- {
		if !add(j) {
			break
		}
	}
	for j := i + 1; j < len(tube); j++ {
		if !add(j) {
			break
		}
	}
	return nb
}

// trendAt estimates the orientation and offset of row i from its
// neighbours' estimates. Neighbour polarity is first brought to the
// weighted majority, then psi and tilt are fitted with a Gaussian-weighted
// local line evaluated at the row's position. A row without neighbours is
// its own trend.
func (tr *Tracker) trendAt(tube []Entry, i int) (trend, error) {
	p := tr.params
	e := tube[i]
	nb := tr.window(tube, i)
	if len(nb) == 0 {
		out := trend{psi: e.Psi, tilt: e.Tilt}
		copy(out.offset[:], e.offset(p))
		return out, nil
	}

	// Axis direction ignoring polarity, from doubled angles
	var s2, c2 float64
	for _, n := range nb {
		a := 2 * tube[n.idx].Psi * math.Pi / 180
		s2 += n.w * math.Sin(a)
		c2 += n.w * math.Cos(a)
	}
	axis := 0.5 * math.Atan2(s2, c2) * 180 / math.Pi

	vote := 0.0
	for _, n := range nb {
		if oppositePolarity(tube[n.idx].Psi, axis) {
			vote -= n.w
		} else {
			vote += n.w
		}
	}
	dir := axis
	if vote < 0 {
		dir = WrapDeg(axis + 180)
	}

	xs := make([]float64, len(nb))
	ws := make([]float64, len(nb))
	psis := make([]float64, len(nb))
	tilts := make([]float64, len(nb))
	axials := make([]float64, len(nb))
	cross := make([][]float64, len(nb))
	for k, n := range nb {
		ne := tube[n.idx]
		psi, tilt := ne.Psi, ne.Tilt
		if oppositePolarity(psi, dir) {
			psi, tilt = FlipPsiTilt(psi, tilt)
		}
		xs[k], ws[k] = n.d, n.w
		psis[k] = WrapDeg(psi - dir)
		tilts[k] = tilt

		// Split in the neighbour's own frame, turned to the majority polarity
		axial, c, err := split(ne.offset(p), psi, tilt, p.axis())
		if err != nil {
			return trend{}, err
		}
		axials[k] = axial
		cross[k] = c
	}

	out := trend{
		psi:  WrapDeg(dir + localFit(xs, psis, ws)),
		tilt: localFit(xs, tilts, ws),
	}

	// Axial offsets are smoothed as one scalar along the trend axis, the
	// rest per Cartesian component
	axialVec := make([]float64, p.dims())
	axialVec[p.axis()] = stat.Mean(axials, ws)
	base, err := coords.Transform(axialVec, out.psi, out.tilt, coords.HelicalToCartesian)
	if err != nil {
		return trend{}, err
	}
	comp := make([]float64, len(nb))
	for c := range base {
		for k := range cross {
			comp[k] = cross[k][c]
		}
		out.offset[c] = base[c] + stat.Mean(comp, ws)
	}
	return out, nil
}

// localFit returns the weighted local linear fit of y against x evaluated at
// x = 0, or the weighted mean when a line is not determined
func localFit(x, y, w []float64) float64 {
	if len(x) < 3 {
		return stat.Mean(y, w)
	}
	lo, hi := x[0], x[0]
	for _, v := range x[1:] {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if hi-lo < 1e-9 {
		return stat.Mean(y, w)
	}
	alpha, _ := stat.LinearRegression(x, y, w, false)
	return alpha
}
