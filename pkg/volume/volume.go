// Package volume defines the in-memory 3D image exchanged between every
// pipeline stage, together with the error kinds stages raise when their
// input contract is violated.
package volume

import (
	"errors"
	"fmt"
)

// Error kinds shared across the pipeline. Stages wrap these with context so
// callers can classify a failure with errors.Is while still seeing which
// stage rejected which value.
var (
	// ErrMissingVolume is raised when a required input or output volume is nil.
	ErrMissingVolume = errors.New("missing required volume")

	// ErrInvalidRange is raised when a parameter lies outside its validated
	// domain, including threshold windows where min exceeds max.
	ErrInvalidRange = errors.New("parameter out of range")

	// ErrNotBinary is raised when an operation that requires a strictly
	// binary (0/1) labelmap is handed anything else.
	ErrNotBinary = errors.New("volume is not binary")
)

// VolumeBuffer is an in-memory 3D scalar or label image with geometric
// metadata. Voxel data is stored as a flat array in x-fastest order:
// index = z*Width*Height + y*Width + x.
//
// Pipeline stages never resample, so Spacing, Origin and Direction are
// carried unchanged from input to output. Stages allocate a fresh buffer
// for their result and never mutate their input; two stages may therefore
// safely share one input buffer.
type VolumeBuffer struct {
	// Data is the voxel data as a 1D array in x-fastest order
	Data []float64

	// Width, Height, Depth are the voxel counts along x, y, z
	Width  int
	Height int
	Depth  int

	// Spacing is the physical size of a voxel in mm along each axis
	Spacing [3]float64

	// Origin is the physical position of the center of voxel (0,0,0)
	Origin [3]float64

	// Direction holds the direction cosines mapping voxel axes to
	// physical axes, one row per voxel axis
	Direction [3][3]float64
}

// New creates a zero-filled volume with unit spacing, zero origin and an
// identity direction matrix.
func New(width, height, depth int) *VolumeBuffer {
	return &VolumeBuffer{
		Data:    make([]float64, width*height*depth),
		Width:   width,
		Height:  height,
		Depth:   depth,
		Spacing: [3]float64{1, 1, 1},
		Direction: [3][3]float64{
			{1, 0, 0},
			{0, 1, 0},
			{0, 0, 1},
		},
	}
}

// NewLike creates a zero-filled volume with the same dimensions and
// geometric metadata as ref. This is how stages allocate their output.
func NewLike(ref *VolumeBuffer) *VolumeBuffer {
	return &VolumeBuffer{
		Data:      make([]float64, len(ref.Data)),
		Width:     ref.Width,
		Height:    ref.Height,
		Depth:     ref.Depth,
		Spacing:   ref.Spacing,
		Origin:    ref.Origin,
		Direction: ref.Direction,
	}
}

// Clone returns a deep copy of the volume.
func (v *VolumeBuffer) Clone() *VolumeBuffer {
	out := NewLike(v)
	copy(out.Data, v.Data)
	return out
}

// Validate checks that the buffer's dimensions are positive and consistent
// with the data length.
func (v *VolumeBuffer) Validate() error {
	if v == nil {
		return ErrMissingVolume
	}
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("%w: dimensions %dx%dx%d", ErrInvalidRange, v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Width*v.Height*v.Depth {
		return fmt.Errorf("%w: data length %d does not match dimensions %dx%dx%d",
			ErrInvalidRange, len(v.Data), v.Width, v.Height, v.Depth)
	}
	return nil
}

// Index returns the flat data index of voxel (x, y, z). Bounds are not
// checked; use InBounds first when coordinates come from arithmetic that
// may leave the volume.
func (v *VolumeBuffer) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// InBounds reports whether (x, y, z) addresses a voxel inside the volume.
func (v *VolumeBuffer) InBounds(x, y, z int) bool {
	return x >= 0 && x < v.Width && y >= 0 && y < v.Height && z >= 0 && z < v.Depth
}

// At returns the value of voxel (x, y, z).
func (v *VolumeBuffer) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set assigns the value of voxel (x, y, z).
func (v *VolumeBuffer) Set(x, y, z int, value float64) {
	v.Data[v.Index(x, y, z)] = value
}

// NumVoxels returns the total voxel count.
func (v *VolumeBuffer) NumVoxels() int {
	return v.Width * v.Height * v.Depth
}

// PhysicalPosition maps voxel indices to the physical position of that
// voxel's center, applying origin, spacing and direction cosines.
func (v *VolumeBuffer) PhysicalPosition(x, y, z int) [3]float64 {
	step := [3]float64{
		float64(x) * v.Spacing[0],
		float64(y) * v.Spacing[1],
		float64(z) * v.Spacing[2],
	}
	var pos [3]float64
	for i := 0; i < 3; i++ {
		pos[i] = v.Origin[i]
		for j := 0; j < 3; j++ {
			pos[i] += v.Direction[j][i] * step[j]
		}
	}
	return pos
}

// ScalarRange returns the minimum and maximum voxel values. An empty
// volume yields (0, 0).
func (v *VolumeBuffer) ScalarRange() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min = v.Data[0]
	max = v.Data[0]
	for _, val := range v.Data {
		if val < min {
			min = val
		}
		if val > max {
			max = val
		}
	}
	return min, max
}

// IsBinary reports whether every voxel is exactly 0 or 1.
func (v *VolumeBuffer) IsBinary() bool {
	for _, val := range v.Data {
		if val != 0 && val != 1 {
			return false
		}
	}
	return true
}

// CountForeground returns the number of nonzero voxels.
func (v *VolumeBuffer) CountForeground() int {
	n := 0
	for _, val := range v.Data {
		if val != 0 {
			n++
		}
	}
	return n
}
