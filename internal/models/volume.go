package models

import "fmt"

// Volume represents a 3D density map
type Volume struct {
	// Data is the 3D volume data as a 1D array in row-major order
	// (index = z*Width*Height + y*Width + x)
	Data []float64

	// Width is the X extent of the box in voxels
	Width int

	// Height is the Y extent of the box in voxels
	Height int

	// Depth is the Z extent of the box in voxels. Z is the helical axis.
	Depth int

	// PixelSize is the physical size of each voxel in Angstroms
	PixelSize float64
}

// NewVolume allocates a zero-filled volume
func NewVolume(width, height, depth int, pixelSize float64) (*Volume, error) {
	if width < 1 || height < 1 || depth < 1 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d", width, height, depth)
	}
	if pixelSize <= 0 {
		return nil, fmt.Errorf("invalid pixel size %g", pixelSize)
	}
	return &Volume{
		Data:      make([]float64, width*height*depth),
		Width:     width,
		Height:    height,
		Depth:     depth,
		PixelSize: pixelSize,
	}, nil
}

// NewLike allocates a zero-filled volume with the same shape and pixel size
func (v *Volume) NewLike() *Volume {
	return &Volume{
		Data:      make([]float64, len(v.Data)),
		Width:     v.Width,
		Height:    v.Height,
		Depth:     v.Depth,
		PixelSize: v.PixelSize,
	}
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	out := v.NewLike()
	copy(out.Data, v.Data)
	return out
}

// Index converts array indices to the flat offset into Data
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the voxel value at array indices (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set stores a voxel value at array indices (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// Center returns the array indices of the logical origin. Logical
// coordinates are array indices minus the center.
func (v *Volume) Center() (cx, cy, cz int) {
	return v.Width / 2, v.Height / 2, v.Depth / 2
}

// MinXY returns the smaller of the two in-plane box edges
func (v *Volume) MinXY() int {
	if v.Width < v.Height {
		return v.Width
	}
	return v.Height
}

// Slab is a contiguous run of z-sections handed to one worker
type Slab struct {
	// Index is the position of this slab in the decomposition
	Index int

	// ZStart is the first array z index (inclusive)
	ZStart int

	// ZEnd is the last array z index (exclusive)
	ZEnd int
}

// Slabs divides the z extent into at most n contiguous slabs of near-equal
// thickness. Slabs are returned in z order.
func (v *Volume) Slabs(n int) []Slab {
	if n < 1 {
		n = 1
	}
	if n > v.Depth {
		n = v.Depth
	}
	per := (v.Depth + n - 1) / n
	slabs := make([]Slab, 0, n)
	for z := 0; z < v.Depth; z += per {
		end := z + per
		if end > v.Depth {
			end = v.Depth
		}
		slabs = append(slabs, Slab{Index: len(slabs), ZStart: z, ZEnd: end})
	}
	return slabs
}
