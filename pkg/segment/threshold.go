// Package segment implements binary segmentation of scalar volumes:
// intensity thresholding followed by connected component analysis used to
// discard disconnected islands.
package segment

import (
	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// ThresholdSegmenter produces a binary mask from a scalar volume by keeping
// every voxel whose intensity falls inside a closed window.
type ThresholdSegmenter struct {
	// Min is the inclusive lower intensity bound
	Min float64
	// Max is the inclusive upper intensity bound
	Max float64
}

// Segment applies the threshold window and returns a new binary volume with
// foreground voxels set to 1 and background voxels set to 0. The input is
// never modified, so the same segmenter can be reapplied with different
// bounds against the same source volume.
//
// Parameters:
//   - in: Scalar volume to segment
//
// Returns:
//   - Binary volume of identical dimensions and geometry
//   - Error if the input is missing or the window is inverted
func (s *ThresholdSegmenter) Segment(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "threshold segmentation")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "threshold segmentation")
	}
	if s.Min > s.Max {
		return nil, errors.Wrapf(volume.ErrInvalidRange,
			"threshold window [%g, %g] is inverted", s.Min, s.Max)
	}

	out := volume.NewLike(in)
	for i, val := range in.Data {
		if val >= s.Min && val <= s.Max {
			out.Data[i] = 1
		}
	}
	return out, nil
}
