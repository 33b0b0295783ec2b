package pipeline

import (
	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/vesselness"
	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// Parameter domains and defaults for the extraction pipeline.
const (
	// AlphaMax bounds the sigmoid steepness parameter, valid in (0, AlphaMax]
	AlphaMax = 150.0

	// BetaMax bounds the sigmoid midpoint parameter, valid in [0, BetaMax]
	BetaMax = 500.0

	// MaxMedianRadius is the largest supported median neighborhood radius
	MaxMedianRadius = 2

	// DefaultAlpha is the default sigmoid steepness
	DefaultAlpha = 60.0

	// DefaultBeta is the default sigmoid midpoint intensity
	DefaultBeta = 200.0

	// DefaultThresholdMin is the default lower threshold on sigmoid output
	DefaultThresholdMin = 0.5

	// DefaultThresholdMax is the default upper threshold on sigmoid output
	DefaultThresholdMax = 1.0

	// DefaultMinimumIslandSize is the default minimum island size in voxels
	DefaultMinimumIslandSize = 1000
)

// Parameters configures a pipeline session. A zero MedianRadius disables the
// median prefilter; a nil Vesselness disables vessel enhancement.
type Parameters struct {
	// Alpha is the sigmoid steepness, in (0, AlphaMax]
	Alpha float64

	// Beta is the sigmoid midpoint intensity, in [0, BetaMax]
	Beta float64

	// MedianRadius is the median prefilter radius in voxels: 0 (disabled),
	// 1 or 2
	MedianRadius int

	// ThresholdMin is the initial lower segmentation threshold
	ThresholdMin float64

	// ThresholdMax is the initial upper segmentation threshold
	ThresholdMax float64

	// MinimumIslandSize is the smallest island kept at finalization, in
	// voxels
	MinimumIslandSize int

	// SaveIntermediate retains the median-filtered volume for inspection
	SaveIntermediate bool

	// Vesselness optionally enhances tubular structures before the sigmoid
	Vesselness *vesselness.Filter
}

// DefaultParameters returns the parameter set the interactive workflow
// starts from.
func DefaultParameters() Parameters {
	return Parameters{
		Alpha:             DefaultAlpha,
		Beta:              DefaultBeta,
		MedianRadius:      0,
		ThresholdMin:      DefaultThresholdMin,
		ThresholdMax:      DefaultThresholdMax,
		MinimumIslandSize: DefaultMinimumIslandSize,
	}
}

// Validate checks every parameter against its domain. Out-of-domain values
// fail; nothing is silently clamped.
func (p Parameters) Validate() error {
	if p.Alpha <= 0 || p.Alpha > AlphaMax {
		return errors.Wrapf(volume.ErrInvalidRange,
			"alpha must be between 0 (exclusive) and %g, got: %g", AlphaMax, p.Alpha)
	}
	if p.Beta < 0 || p.Beta > BetaMax {
		return errors.Wrapf(volume.ErrInvalidRange,
			"beta must be between 0 and %g, got: %g", BetaMax, p.Beta)
	}
	if p.MedianRadius < 0 || p.MedianRadius > MaxMedianRadius {
		return errors.Wrapf(volume.ErrInvalidRange,
			"median radius must be 0 (disabled), 1 or 2, got: %d", p.MedianRadius)
	}
	if p.ThresholdMin > p.ThresholdMax {
		return errors.Wrapf(volume.ErrInvalidRange,
			"threshold window [%g, %g] is inverted", p.ThresholdMin, p.ThresholdMax)
	}
	if p.MinimumIslandSize < 1 {
		return errors.Wrapf(volume.ErrInvalidRange,
			"minimum island size must be at least 1, got: %d", p.MinimumIslandSize)
	}
	if p.Vesselness != nil {
		if err := p.Vesselness.Validate(); err != nil {
			return err
		}
	}
	return nil
}
