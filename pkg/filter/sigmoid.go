package filter

import (
	"math"

	"github.com/pkg/errors"

	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// SigmoidStage remaps voxel intensities through a logistic curve:
//
//	O = (OutputMax - OutputMin) / (1 + exp(-(I - Beta) / Alpha)) + OutputMin
//
// Alpha controls the steepness of the transition and must be positive; Beta
// is the intensity at which the output crosses the midpoint of the output
// range. Every output value lies between OutputMin and OutputMax by
// construction, for any finite input.
type SigmoidStage struct {
	// Alpha is the steepness parameter, must be > 0
	Alpha float64

	// Beta is the intensity midpoint of the transition
	Beta float64

	// OutputMin and OutputMax bound the output range
	OutputMin float64
	OutputMax float64
}

// NewSigmoidStage creates a sigmoid stage with the default [0, 1] output
// range.
func NewSigmoidStage(alpha, beta float64) *SigmoidStage {
	return &SigmoidStage{
		Alpha:     alpha,
		Beta:      beta,
		OutputMin: 0,
		OutputMax: 1,
	}
}

// Name identifies the stage.
func (s *SigmoidStage) Name() string {
	return "sigmoid"
}

// Apply runs the intensity remapping and returns a new volume. It fails
// with volume.ErrMissingVolume when the input is nil and
// volume.ErrInvalidRange when alpha is not positive.
func (s *SigmoidStage) Apply(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error) {
	if in == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "sigmoid filter")
	}
	if err := in.Validate(); err != nil {
		return nil, errors.Wrap(err, "sigmoid filter")
	}
	if s.Alpha <= 0 {
		return nil, errors.Wrapf(volume.ErrInvalidRange, "sigmoid filter: alpha %g", s.Alpha)
	}

	out := volume.NewLike(in)
	span := s.OutputMax - s.OutputMin

	for i, val := range in.Data {
		out.Data[i] = span*logistic((val-s.Beta)/s.Alpha) + s.OutputMin
	}

	return out, nil
}

// logistic evaluates 1/(1+exp(-t)) without overflow for large |t|. The
// naive form computes exp of a large positive magnitude when t is very
// negative; branching on the sign keeps the exponent non-positive.
func logistic(t float64) float64 {
	if t >= 0 {
		return 1 / (1 + math.Exp(-t))
	}
	e := math.Exp(t)
	return e / (1 + e)
}
