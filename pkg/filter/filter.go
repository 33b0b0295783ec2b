// Package filter implements the preprocessing stages of the vessel
// extraction pipeline as pure transforms over volumes: a noise-reducing
// median filter and a sigmoid contrast enhancement.
package filter

import (
	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// Stage is a pure volume transform. An implementation never mutates its
// input, returns a freshly allocated output with identical dimensions and
// geometry, and produces identical output for identical input.
type Stage interface {
	// Name identifies the stage in logs and error context
	Name() string

	// Apply runs the transform and returns a new volume
	Apply(in *volume.VolumeBuffer) (*volume.VolumeBuffer, error)
}
