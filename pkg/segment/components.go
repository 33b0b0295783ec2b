package segment

import (
	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// neighborOffsets enumerates the 6-connected neighborhood: voxels sharing a
// face with the center. Diagonal neighbors do not connect components.
var neighborOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Labeling holds the result of connected component analysis over a binary
// volume.
type Labeling struct {
	// Labels assigns a component id to every voxel in flat volume order,
	// with 0 marking background
	Labels []int32
	// Counts holds the voxel count per component id; index 0 is unused
	Counts []int
}

// NumComponents returns the number of distinct foreground components.
func (l *Labeling) NumComponents() int {
	return len(l.Counts) - 1
}

// LabelComponents performs connected component analysis on a binary volume
// using 6-connectivity. Component ids start at 1 and are assigned in scan
// order (ascending z, then y, then x of each component's first voxel), so
// the labeling is deterministic for a given input.
//
// Parameters:
//   - in: Binary volume with foreground voxels set to 1
//
// Returns:
//   - Labeling with per-voxel component ids and per-component sizes
//   - Error if the input is missing or not binary
func LabelComponents(in *volume.VolumeBuffer) (*Labeling, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "component labeling")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "component labeling")
	}
	if !in.IsBinary() {
		return nil, errors.Wrap(volume.ErrNotBinary, "component labeling")
	}

	labels := make([]int32, len(in.Data))
	counts := []int{0}
	next := int32(1)
	stack := make([]int, 0, 256)

	for z := 0; z < in.Depth; z++ {
		for y := 0; y < in.Height; y++ {
			for x := 0; x < in.Width; x++ {
				seed := in.Index(x, y, z)
				if in.Data[seed] == 0 || labels[seed] != 0 {
					continue
				}

				// Flood fill the component starting at this seed
				labels[seed] = next
				stack = append(stack[:0], seed)
				size := 0
				for len(stack) > 0 {
					cur := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					size++

					cx := cur % in.Width
					cy := (cur / in.Width) % in.Height
					cz := cur / (in.Width * in.Height)
					for _, d := range neighborOffsets {
						nx, ny, nz := cx+d[0], cy+d[1], cz+d[2]
						if !in.InBounds(nx, ny, nz) {
							continue
						}
						nidx := in.Index(nx, ny, nz)
						if in.Data[nidx] == 0 || labels[nidx] != 0 {
							continue
						}
						labels[nidx] = next
						stack = append(stack, nidx)
					}
				}

				counts = append(counts, size)
				next++
			}
		}
	}

	return &Labeling{Labels: labels, Counts: counts}, nil
}

// KeepLargestComponent returns a new binary volume containing only the
// largest connected component of the input. When several components tie for
// the largest size, the one with the lowest component id wins, which by the
// scan order of LabelComponents is the component encountered first. An
// input with no foreground voxels yields an all-background volume.
func KeepLargestComponent(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	labeling, err := LabelComponents(in)
	if err != nil {
		return nil, err
	}

	out := volume.NewLike(in)
	if labeling.NumComponents() == 0 {
		return out, nil
	}

	best := int32(1)
	for id := int32(2); id < int32(len(labeling.Counts)); id++ {
		if labeling.Counts[id] > labeling.Counts[best] {
			best = id
		}
	}
	for i, id := range labeling.Labels {
		if id == best {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// KeepComponentsAboveSize returns a new binary volume containing every
// connected component of at least minSize voxels. Smaller islands are
// cleared to background.
//
// Parameters:
//   - in: Binary volume with foreground voxels set to 1
//   - minSize: Minimum voxel count for a component to survive, at least 1
//
// Returns:
//   - Binary volume with small components removed
//   - Error if the input is missing, not binary, or minSize is below 1
func KeepComponentsAboveSize(in *volume.VolumeBuffer, minSize int) (*volume.VolumeBuffer, error) {
	if minSize < 1 {
		return nil, errors.Wrapf(volume.ErrInvalidRange,
			"minimum component size %d must be at least 1", minSize)
	}

	labeling, err := LabelComponents(in)
	if err != nil {
		return nil, err
	}

	keep := make([]bool, len(labeling.Counts))
	for id := 1; id < len(labeling.Counts); id++ {
		keep[id] = labeling.Counts[id] >= minSize
	}

	out := volume.NewLike(in)
	for i, id := range labeling.Labels {
		if id != 0 && keep[id] {
			out.Data[i] = 1
		}
	}
	return out, nil
}
