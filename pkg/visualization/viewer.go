// Package visualization renders grayscale slice images and crops subregions
// of a volume for quick inspection of pipeline results.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// Viewer extracts 2D slice images and 3D subregions from a volume. Voxel
// values are mapped to 16-bit grayscale through a window: values at or
// below the window minimum render black, values at or above the maximum
// render white.
type Viewer struct {
	vol *volume.VolumeBuffer

	// display window over the scalar values
	windowMin float64
	windowMax float64
}

// NewViewer creates a viewer over the given volume. The display window is
// initialized to the full scalar range of the data.
func NewViewer(vol *volume.VolumeBuffer) (*Viewer, error) {
	if vol == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "viewer")
	}
	if err := vol.Validate(); err != nil {
		return nil, errors.Wrap(err, "viewer")
	}

	min, max := vol.ScalarRange()
	if min == max {
		// A flat volume still needs a non-degenerate window
		max = min + 1
	}
	return &Viewer{vol: vol, windowMin: min, windowMax: max}, nil
}

// SetWindow overrides the display window used for grayscale mapping.
func (v *Viewer) SetWindow(min, max float64) error {
	if min >= max {
		return errors.Wrapf(volume.ErrInvalidRange,
			"display window [%g, %g] is empty", min, max)
	}
	v.windowMin = min
	v.windowMax = max
	return nil
}

// Window returns the current display window.
func (v *Viewer) Window() (min, max float64) {
	return v.windowMin, v.windowMax
}

// gray maps a voxel value through the display window to 16-bit grayscale.
func (v *Viewer) gray(value float64) color.Gray16 {
	t := (value - v.windowMin) / (v.windowMax - v.windowMin)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, t*65535)))}
}

// ExtractSlice extracts a 2D grayscale slice from the volume along the
// specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, errors.Wrapf(volume.ErrInvalidRange,
			"slice position must be non-negative, got: %d", position)
	}

	var img image.Gray16

	switch axis {
	case "x", "X":
		// Extract slice along YZ plane
		if position >= v.vol.Width {
			return nil, errors.Wrapf(volume.ErrInvalidRange,
				"position %d exceeds width %d", position, v.vol.Width)
		}

		img = *image.NewGray16(image.Rect(0, 0, v.vol.Depth, v.vol.Height))
		for y := 0; y < v.vol.Height; y++ {
			for z := 0; z < v.vol.Depth; z++ {
				img.SetGray16(z, y, v.gray(v.vol.At(position, y, z)))
			}
		}

	case "y", "Y":
		// Extract slice along XZ plane
		if position >= v.vol.Height {
			return nil, errors.Wrapf(volume.ErrInvalidRange,
				"position %d exceeds height %d", position, v.vol.Height)
		}

		img = *image.NewGray16(image.Rect(0, 0, v.vol.Width, v.vol.Depth))
		for z := 0; z < v.vol.Depth; z++ {
			for x := 0; x < v.vol.Width; x++ {
				img.SetGray16(x, z, v.gray(v.vol.At(x, position, z)))
			}
		}

	case "z", "Z":
		// Extract slice along XY plane
		if position >= v.vol.Depth {
			return nil, errors.Wrapf(volume.ErrInvalidRange,
				"position %d exceeds depth %d", position, v.vol.Depth)
		}

		img = *image.NewGray16(image.Rect(0, 0, v.vol.Width, v.vol.Height))
		for y := 0; y < v.vol.Height; y++ {
			for x := 0; x < v.vol.Width; x++ {
				img.SetGray16(x, y, v.gray(v.vol.At(x, y, position)))
			}
		}

	default:
		return nil, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return &img, nil
}

// ExtractRegion crops a 3D subregion into a new volume. The crop keeps the
// source spacing and orientation, and its origin is the physical position
// of the first cropped voxel, so physical coordinates agree between the
// crop and the source.
func (v *Viewer) ExtractRegion(startX, startY, startZ, sizeX, sizeY, sizeZ int) (*volume.VolumeBuffer, error) {
	if startX < 0 || startY < 0 || startZ < 0 {
		return nil, errors.Wrapf(volume.ErrInvalidRange,
			"region start (%d,%d,%d) must be non-negative", startX, startY, startZ)
	}
	if sizeX <= 0 || sizeY <= 0 || sizeZ <= 0 {
		return nil, errors.Wrapf(volume.ErrInvalidRange,
			"region size (%d,%d,%d) must be positive", sizeX, sizeY, sizeZ)
	}
	if startX+sizeX > v.vol.Width || startY+sizeY > v.vol.Height || startZ+sizeZ > v.vol.Depth {
		return nil, errors.Wrap(volume.ErrInvalidRange,
			"region extends beyond volume boundaries")
	}

	region := volume.New(sizeX, sizeY, sizeZ)
	region.Spacing = v.vol.Spacing
	region.Direction = v.vol.Direction
	region.Origin = v.vol.PhysicalPosition(startX, startY, startZ)

	for z := 0; z < sizeZ; z++ {
		for y := 0; y < sizeY; y++ {
			for x := 0; x < sizeX; x++ {
				region.Set(x, y, z, v.vol.At(startX+x, startY+y, startZ+z))
			}
		}
	}

	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves a sequence of slices along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.vol.Width
	case "y", "Y":
		maxPos = v.vol.Height
	case "z", "Z":
		maxPos = v.vol.Depth
	default:
		return errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
