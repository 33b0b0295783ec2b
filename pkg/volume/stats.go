package volume

import (
	"math"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the intensity distribution of a volume. It is computed
// once per processed volume to seed the interactive threshold window and to
// report on intermediate artifacts.
type Stats struct {
	// Min and Max are the scalar range of the volume
	Min float64
	Max float64

	// Mean is the average voxel intensity
	Mean float64

	// StdDev is the standard deviation of voxel intensities
	StdDev float64

	// Median is the 50th percentile intensity
	Median float64
}

// ComputeStats calculates summary statistics over all voxels.
func ComputeStats(v *VolumeBuffer) (Stats, error) {
	if v == nil {
		return Stats{}, errors.Wrap(ErrMissingVolume, "compute stats")
	}
	if err := v.Validate(); err != nil {
		return Stats{}, errors.Wrap(err, "compute stats")
	}

	min, max := v.ScalarRange()

	sorted := make([]float64, len(v.Data))
	copy(sorted, v.Data)
	sort.Float64s(sorted)

	return Stats{
		Min:    min,
		Max:    max,
		Mean:   stat.Mean(v.Data, nil),
		StdDev: math.Sqrt(stat.Variance(v.Data, nil)),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}, nil
}

// DefaultThresholdQuantile is the intensity quantile used to seed the lower
// threshold bound when no explicit window has been chosen yet. Vessels
// occupy a small bright fraction of a contrast-enhanced volume, so the
// window starts high.
const DefaultThresholdQuantile = 0.95

// SuggestThresholdWindow proposes an initial [lo, hi] threshold window for a
// processed volume: lo at the given intensity quantile, hi at the scalar
// maximum. The quantile must lie in (0, 1).
func SuggestThresholdWindow(v *VolumeBuffer, quantile float64) (lo, hi float64, err error) {
	if v == nil {
		return 0, 0, errors.Wrap(ErrMissingVolume, "suggest threshold window")
	}
	if quantile <= 0 || quantile >= 1 {
		return 0, 0, errors.Wrapf(ErrInvalidRange, "suggest threshold window: quantile %g", quantile)
	}
	if err := v.Validate(); err != nil {
		return 0, 0, errors.Wrap(err, "suggest threshold window")
	}

	sorted := make([]float64, len(v.Data))
	copy(sorted, v.Data)
	sort.Float64s(sorted)

	lo = stat.Quantile(quantile, stat.Empirical, sorted, nil)
	hi = sorted[len(sorted)-1]
	return lo, hi, nil
}
