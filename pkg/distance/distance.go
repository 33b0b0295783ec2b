// Package distance implements a signed Euclidean distance transform for
// binary volumes. Distances are measured between voxel centers in physical
// units, honoring anisotropic spacing, with negative values inside the
// foreground and positive values outside.
package distance

import (
	"math"

	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// unreachable is the squared-distance sentinel for voxels that have not
// seen a source yet. It only survives all three axis passes when the
// source set is empty, which is handled before the transform runs.
const unreachable = 1e20

// ComputeSignedDistance returns a new volume holding, for every voxel, the
// physical Euclidean distance to the nearest voxel of the opposite set:
// background voxels carry the positive distance to the closest foreground
// voxel, foreground voxels the negated distance to the closest background
// voxel. A volume with no foreground yields +Inf everywhere and a volume
// with no background yields -Inf everywhere.
//
// Parameters:
//   - in: Binary volume with foreground voxels set to 1
//
// Returns:
//   - Signed distance field with the same dimensions and geometry
//   - Error if the input is missing or not binary
func ComputeSignedDistance(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "distance transform")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "distance transform")
	}
	if !in.IsBinary() {
		return nil, errors.Wrap(volume.ErrNotBinary, "distance transform")
	}

	out := volume.NewLike(in)
	foreground := in.CountForeground()
	switch {
	case foreground == 0:
		for i := range out.Data {
			out.Data[i] = math.Inf(1)
		}
		return out, nil
	case foreground == in.NumVoxels():
		for i := range out.Data {
			out.Data[i] = math.Inf(-1)
		}
		return out, nil
	}

	toForeground := squaredDistanceField(in, true)
	toBackground := squaredDistanceField(in, false)
	for i, val := range in.Data {
		if val == 0 {
			out.Data[i] = math.Sqrt(toForeground[i])
		} else {
			out.Data[i] = -math.Sqrt(toBackground[i])
		}
	}
	return out, nil
}

// squaredDistanceField computes, for every voxel, the squared physical
// distance to the nearest source voxel center. Sources are the foreground
// voxels when sourceIsForeground is set, the background voxels otherwise.
// The exact transform runs one separable pass per axis, each weighted by
// that axis' spacing.
func squaredDistanceField(in *volume.VolumeBuffer, sourceIsForeground bool) []float64 {
	w, h, d := in.Width, in.Height, in.Depth
	field := make([]float64, len(in.Data))
	for i, val := range in.Data {
		isSource := val != 0
		if !sourceIsForeground {
			isSource = !isSource
		}
		if isSource {
			field[i] = 0
		} else {
			field[i] = unreachable
		}
	}

	longest := w
	if h > longest {
		longest = h
	}
	if d > longest {
		longest = d
	}
	f := make([]float64, longest)
	dt := make([]float64, longest)
	v := make([]int, longest)
	z := make([]float64, longest+1)

	// Pass along x for every (y, z) row
	for zi := 0; zi < d; zi++ {
		for y := 0; y < h; y++ {
			base := zi*w*h + y*w
			copy(f[:w], field[base:base+w])
			dt1d(f[:w], dt[:w], v[:w], z[:w+1], in.Spacing[0])
			copy(field[base:base+w], dt[:w])
		}
	}

	// Pass along y for every (x, z) column
	for zi := 0; zi < d; zi++ {
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				f[y] = field[zi*w*h+y*w+x]
			}
			dt1d(f[:h], dt[:h], v[:h], z[:h+1], in.Spacing[1])
			for y := 0; y < h; y++ {
				field[zi*w*h+y*w+x] = dt[y]
			}
		}
	}

	// Pass along z for every (x, y) column
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for zi := 0; zi < d; zi++ {
				f[zi] = field[zi*w*h+y*w+x]
			}
			dt1d(f[:d], dt[:d], v[:d], z[:d+1], in.Spacing[2])
			for zi := 0; zi < d; zi++ {
				field[zi*w*h+y*w+x] = dt[zi]
			}
		}
	}

	return field
}

// dt1d computes the exact 1D squared distance transform of f, whose samples
// sit at physical positions i*step, using the lower envelope of parabolas
// described by Felzenszwalb and Huttenlocher. Results go to out; v and z
// are scratch buffers holding the envelope parabolas and their boundaries.
func dt1d(f, out []float64, v []int, z []float64, step float64) {
	n := len(f)
	if n == 1 {
		out[0] = f[0]
		return
	}

	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		var s float64
		for {
			p := v[k]
			xq := float64(q) * step
			xp := float64(p) * step
			s = ((f[q] + xq*xq) - (f[p] + xp*xp)) / (2 * (xq - xp))
			if s > z[k] {
				break
			}
			k--
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		x := float64(q) * step
		for z[k+1] < x {
			k++
		}
		p := v[k]
		diff := x - float64(p)*step
		out[q] = diff*diff + f[p]
	}
}

// Stage adapts the signed distance transform to the volume stage shape so
// a pipeline can run and log it like any other volume operation.
type Stage struct{}

// Name returns the stage identifier used in logs.
func (Stage) Name() string { return "signed-distance" }

// Apply runs the signed distance transform on the given binary volume.
func (Stage) Apply(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	return ComputeSignedDistance(in)
}
