// Package visualization renders sections and projections of density maps
// as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"

	"helixsym/internal/models"
)

// Viewer renders 2D views of a density map. Grey levels are scaled so that
// the minimum and maximum density of the whole map map to black and white.
type Viewer struct {
	// volume is the map being viewed
	volume *models.Volume

	// lo and hi are the density window of the grey scale
	lo, hi float64
}

// NewViewer creates a viewer for v
func NewViewer(v *models.Volume) *Viewer {
	return &Viewer{
		volume: v,
		lo:     floats.Min(v.Data),
		hi:     floats.Max(v.Data),
	}
}

// gray converts a density to a 16 bit grey level inside the [lo, hi] window
func gray(value, lo, hi float64) color.Gray16 {
	if hi <= lo {
		return color.Gray16{}
	}
	t := (value - lo) / (hi - lo)
	return color.Gray16{Y: uint16(math.Round(math.Max(0, math.Min(1, t)) * 65535))}
}

// planeSize returns the image size of a view perpendicular to axis
func (v *Viewer) planeSize(axis string) (w, h, n int, err error) {
	m := v.volume
	switch axis {
	case "x", "X":
		return m.Depth, m.Height, m.Width, nil
	case "y", "Y":
		return m.Width, m.Depth, m.Height, nil
	case "z", "Z":
		return m.Width, m.Height, m.Depth, nil
	default:
		return 0, 0, 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// at returns the density at image pixel (i, j) of plane k perpendicular to axis
func (v *Viewer) at(axis string, i, j, k int) float64 {
	m := v.volume
	switch axis {
	case "x", "X":
		return m.At(k, j, i)
	case "y", "Y":
		return m.At(i, k, j)
	default:
		return m.At(i, j, k)
	}
}

// ExtractSlice returns the section of the map at position along axis. Sections
// along X and Y show the helical axis horizontally and vertically.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	w, h, n, err := v.planeSize(axis)
	if err != nil {
		return nil, err
	}
	if position < 0 || position >= n {
		return nil, fmt.Errorf("position %d outside [0, %d) along %s", position, n, axis)
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			img.SetGray16(i, j, gray(v.at(axis, i, j, position), v.lo, v.hi))
		}
	}
	return img, nil
}

// Project returns the sum of the map along axis, scaled to its own range
func (v *Viewer) Project(axis string) (image.Image, error) {
	w, h, n, err := v.planeSize(axis)
	if err != nil {
		return nil, err
	}

	sums := make([]float64, w*h)
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			s := 0.0
			for k := 0; k < n; k++ {
				s += v.at(axis, i, j, k)
			}
			sums[j*w+i] = s
		}
	}

	lo, hi := floats.Min(sums), floats.Max(sums)
	img := image.NewGray16(image.Rect(0, 0, w, h))
	for j := 0; j < h; j++ {
		for i := 0; i < w; i++ {
			img.SetGray16(i, j, gray(sums[j*w+i], lo, hi))
		}
	}
	return img, nil
}

// SaveImage writes img as a PNG file
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SaveCentralSections writes the central section along each axis and the
// projection along Z to outputDir, naming the files <prefix>_<view>.png. It
// returns the paths written.
func (v *Viewer) SaveCentralSections(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	cx, cy, cz := v.volume.Center()
	var paths []string
	for _, view := range []struct {
		axis string
		pos  int
	}{
		{"x", cx}, {"y", cy}, {"z", cz},
	} {
		img, err := v.ExtractSlice(view.axis, view.pos)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s_section_%s.png", prefix, view.axis))
		if err := SaveImage(img, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	img, err := v.Project("z")
	if err != nil {
		return paths, err
	}
	path := filepath.Join(outputDir, prefix+"_projection_z.png")
	if err := SaveImage(img, path); err != nil {
		return paths, err
	}
	return append(paths, path), nil
}
