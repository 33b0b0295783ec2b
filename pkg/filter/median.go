package filter

import (
	"runtime"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// MedianStage replaces each voxel with the median of its cubic neighborhood.
// The radius is isotropic: a radius of 1 means a 3x3x3 neighborhood, a
// radius of 2 a 5x5x5 neighborhood. At the volume boundary the neighborhood
// is filled by replicating edge voxels, so no out-of-bounds access occurs
// and output dimensions always match the input.
//
// Median filtering is not idempotent in general: applying the stage twice is
// not equivalent to applying it once.
type MedianStage struct {
	// Radius is the neighborhood radius in voxels, at least 1
	Radius int

	// Workers bounds the number of goroutines processing z-slices.
	// Zero or negative means one worker per available CPU core.
	Workers int
}

// Name identifies the stage.
func (s *MedianStage) Name() string {
	return "median"
}

// Apply runs the median filter and returns a new volume. It fails with
// volume.ErrMissingVolume when the input is nil and volume.ErrInvalidRange
// when the radius is below 1.
func (s *MedianStage) Apply(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "median filter")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "median filter")
	}
	if s.Radius < 1 {
		return nil, errors.Wrapf(volume.ErrInvalidRange, "median filter: radius %d", s.Radius)
	}

	out := volume.NewLike(in)

	workers := s.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > in.Depth {
		workers = in.Depth
	}

	// Divide the z-slices among the workers. Every output voxel depends
	// only on the input, so the result does not depend on scheduling.
	var wg sync.WaitGroup
	slicesPerWorker := (in.Depth + workers - 1) / workers

	for w := 0; w < workers; w++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			startZ := workerID * slicesPerWorker
			endZ := startZ + slicesPerWorker
			if endZ > in.Depth {
				endZ = in.Depth
			}

			side := 2*s.Radius + 1
			window := make([]float64, 0, side*side*side)

			for z := startZ; z < endZ; z++ {
				for y := 0; y < in.Height; y++ {
					for x := 0; x < in.Width; x++ {
						window = window[:0]

						// Gather the neighborhood, replicating edge voxels
						for dz := -s.Radius; dz <= s.Radius; dz++ {
							nz := clampIndex(z+dz, in.Depth)
							for dy := -s.Radius; dy <= s.Radius; dy++ {
								ny := clampIndex(y+dy, in.Height)
								for dx := -s.Radius; dx <= s.Radius; dx++ {
									nx := clampIndex(x+dx, in.Width)
									window = append(window, in.At(nx, ny, nz))
								}
							}
						}

						// The window has an odd number of samples, so the
						// median is the middle element
						sort.Float64s(window)
						out.Set(x, y, z, window[len(window)/2])
					}
				}
			}
		}(w)
	}

	wg.Wait()
	return out, nil
}

// clampIndex limits an index to [0, size-1], replicating the edge voxel for
// neighborhoods that extend past the volume boundary.
func clampIndex(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}
