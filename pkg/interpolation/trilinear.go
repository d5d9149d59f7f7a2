package interpolation

import (
	"math"

	"helixsym/internal/models"
)

// snapTolerance absorbs rounding in rotated integer coordinates so that
// positions such as -1e-15 are treated as lying on the grid
const snapTolerance = 1e-9

// Trilinear samples the volume at fractional array coordinates. It reports
// false when the interpolation cell is not fully inside the array.
func Trilinear(v *models.Volume, x, y, z float64) (float64, bool) {
	x0, fx, ok := cell(x, v.Width)
	if !ok {
		return 0, false
	}
	y0, fy, ok := cell(y, v.Height)
	if !ok {
		return 0, false
	}
	z0, fz, ok := cell(z, v.Depth)
	if !ok {
		return 0, false
	}

	// Degenerate axes (extent 1) only accept the exact grid position
	x1, y1, z1 := min(x0+1, v.Width-1), min(y0+1, v.Height-1), min(z0+1, v.Depth-1)

	plane := v.Width * v.Height
	d := v.Data
	c000 := d[z0*plane+y0*v.Width+x0]
	c100 := d[z0*plane+y0*v.Width+x1]
	c010 := d[z0*plane+y1*v.Width+x0]
	c110 := d[z0*plane+y1*v.Width+x1]
	c001 := d[z1*plane+y0*v.Width+x0]
	c101 := d[z1*plane+y0*v.Width+x1]
	c011 := d[z1*plane+y1*v.Width+x0]
	c111 := d[z1*plane+y1*v.Width+x1]

	c00 := c000 + fx*(c100-c000)
	c10 := c010 + fx*(c110-c010)
	c01 := c001 + fx*(c101-c001)
	c11 := c011 + fx*(c111-c011)
	c0 := c00 + fy*(c10-c00)
	c1 := c01 + fy*(c11-c01)
	return c0 + fz*(c1-c0), true
}

// TrilinearLogical samples the volume at coordinates relative to the box
// center returned by Volume.Center
func TrilinearLogical(v *models.Volume, x, y, z float64) (float64, bool) {
	cx, cy, cz := v.Center()
	return Trilinear(v, x+float64(cx), y+float64(cy), z+float64(cz))
}

// cell returns the lower grid index and fractional offset for one axis
func cell(p float64, n int) (int, float64, bool) {
	if r := math.Round(p); math.Abs(p-r) < snapTolerance {
		p = r
	}
	if math.IsNaN(p) || p < 0 || p > float64(n-1) {
		return 0, 0, false
	}
	i := int(math.Floor(p))
	f := p - float64(i)
	if i == n-1 && n > 1 {
		// Exactly on the last grid plane
		i, f = n-2, 1
	}
	return i, f, true
}
