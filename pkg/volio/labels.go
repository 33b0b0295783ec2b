package volio

import (
	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// FlattenLabels collapses a multi-label segmentation into the binary form
// the pipeline consumes. Every voxel with a value above zero becomes
// foreground with value 1; everything else becomes background. The input
// is not modified.
func FlattenLabels(vol *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	if vol == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "flatten labels")
	}
	if err := vol.Validate(); err != nil {
		return nil, errors.Wrap(err, "flatten labels")
	}

	out := volume.NewLike(vol)
	for i, v := range vol.Data {
		if v > 0 {
			out.Data[i] = 1
		}
	}
	return out, nil
}

// SaveLabelmap writes a binary segmentation as an unsigned char NRRD file.
// Volumes holding values other than 0 and 1 are rejected; flatten them
// first.
func SaveLabelmap(vol *volume.VolumeBuffer, path string) error {
	if vol == nil {
		return errors.Wrap(volume.ErrMissingVolume, "save labelmap")
	}
	if err := vol.Validate(); err != nil {
		return errors.Wrap(err, "save labelmap")
	}
	if !vol.IsBinary() {
		return errors.Wrap(volume.ErrNotBinary, "save labelmap")
	}
	if err := writeNRRD(vol, path, "unsigned char"); err != nil {
		return errors.Wrapf(err, "save labelmap %s", path)
	}
	return nil
}

// LoadLabelmap reads a labelmap volume and flattens it to binary.
func LoadLabelmap(path string) (*volume.VolumeBuffer, error) {
	vol, err := LoadVolume(path)
	if err != nil {
		return nil, err
	}
	return FlattenLabels(vol)
}
