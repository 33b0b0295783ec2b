// Package pipeline orchestrates the vessel extraction stages into one
// session: preprocessing, repeatable threshold preview, island finalization
// and the two derived outputs, surface model and signed distance field.
//
// A session moves through explicit states. Preprocessing can start a fresh
// session at any time, the preview can be repeated with new thresholds while
// a processed volume exists, finalization consumes exactly the current
// preview, and both derived outputs require a finalized segmentation and can
// be recomputed in any order. Out-of-order operations fail with
// ErrInvalidState instead of working on stale buffers.
package pipeline

import (
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/joeFPV99/SEEGPlanner/pkg/distance"
	"github.com/joeFPV99/SEEGPlanner/pkg/filter"
	"github.com/joeFPV99/SEEGPlanner/pkg/segment"
	"github.com/joeFPV99/SEEGPlanner/pkg/surface"
	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

// ErrInvalidState is returned when an operation is requested in a pipeline
// state that cannot serve it.
var ErrInvalidState = errors.New("operation not valid in current pipeline state")

// State identifies how far the current session has progressed. After a
// finalized segmentation exists, the state tracks the most recent derived
// output; both derivations stay available.
type State int

const (
	// StateRaw means no volume has been processed yet
	StateRaw State = iota

	// StatePreprocessed means a processed volume is ready for segmentation
	StatePreprocessed

	// StateSegmentedPreview means a threshold preview is active
	StateSegmentedPreview

	// StateFinalized means islands have been filtered and the segmentation
	// is ready for derived outputs
	StateFinalized

	// StateSurfaceExported means a surface model was derived
	StateSurfaceExported

	// StateDistanceComputed means a signed distance field was derived
	StateDistanceComputed
)

// String returns a human-readable state name for logs and errors.
func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StatePreprocessed:
		return "preprocessed"
	case StateSegmentedPreview:
		return "segmented-preview"
	case StateFinalized:
		return "finalized"
	case StateSurfaceExported:
		return "surface-exported"
	case StateDistanceComputed:
		return "distance-computed"
	default:
		return "unknown"
	}
}

// Controller owns the buffers of one extraction session and enforces the
// stage ordering. It is not safe for concurrent use; interactive preview
// traffic belongs on a PreviewWorker instead.
type Controller struct {
	logger *logrus.Logger

	state  State
	params Parameters

	input        *volume.VolumeBuffer
	intermediate *volume.VolumeBuffer
	processed    *volume.VolumeBuffer

	preview    *volume.VolumeBuffer
	previewMin float64
	previewMax float64

	finalized     *volume.VolumeBuffer
	surfaceModel  *surface.SurfaceModel
	distanceField *volume.VolumeBuffer
}

// NewController creates a controller in the raw state. A nil logger
// disables logging.
func NewController(logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Controller{logger: logger, state: StateRaw}
}

// RunPreprocessing starts a fresh session from the given input volume. The
// median prefilter runs when the radius is 1 or 2, vessel enhancement runs
// when configured, and the sigmoid contrast stage always runs last. On
// success every buffer from a previous session is dropped; on failure the
// controller is left untouched.
//
// Parameters:
//   - input: Scalar volume, e.g. a contrast-enhanced CT
//   - params: Validated configuration for the whole session
//
// Returns:
//   - The processed volume with intensities mapped into [0, 1]
//   - Error if the input is missing or a parameter is out of its domain
func (c *Controller) RunPreprocessing(input *volume.VolumeBuffer, params Parameters) (*volume.VolumeBuffer, error) {
	if input == nil {
		return nil, errors.Wrap(volume.ErrMissingVolume, "preprocessing")
	}
	if err := input.Validate(); err != nil {
		return nil, errors.Wrap(err, "preprocessing")
	}
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "preprocessing")
	}

	start := time.Now()
	log := c.logger.WithFields(logrus.Fields{
		"stage":         "preprocessing",
		"median_radius": params.MedianRadius,
		"alpha":         params.Alpha,
		"beta":          params.Beta,
		"vesselness":    params.Vesselness != nil,
	})
	log.Info("Starting preprocessing")

	current := input
	var intermediate *volume.VolumeBuffer

	if params.MedianRadius > 0 {
		stage := &filter.MedianStage{Radius: params.MedianRadius}
		out, err := stage.Apply(current)
		if err != nil {
			return nil, errors.Wrap(err, "preprocessing")
		}
		if params.SaveIntermediate {
			intermediate = out
		}
		current = out
	}

	if params.Vesselness != nil {
		out, err := params.Vesselness.Apply(current)
		if err != nil {
			return nil, errors.Wrap(err, "preprocessing")
		}
		current = out
	}

	sigmoid := filter.NewSigmoidStage(params.Alpha, params.Beta)
	processed, err := sigmoid.Apply(current)
	if err != nil {
		return nil, errors.Wrap(err, "preprocessing")
	}

	// Commit only after every stage succeeded
	c.input = input
	c.params = params
	c.intermediate = intermediate
	c.processed = processed
	c.preview = nil
	c.previewMin, c.previewMax = 0, 0
	c.finalized = nil
	c.surfaceModel = nil
	c.distanceField = nil
	c.state = StatePreprocessed

	log.WithField("duration", time.Since(start).String()).Info("Preprocessing completed")
	return processed, nil
}

// RunSegmentationPreview thresholds the processed volume into a binary
// labelmap. It may be called repeatedly with new bounds; each call replaces
// the previous preview and drops any finalized segmentation and derived
// outputs, which would no longer match.
func (c *Controller) RunSegmentationPreview(thresholdMin, thresholdMax float64) (*volume.VolumeBuffer, error) {
	if c.processed == nil {
		return nil, errors.Wrapf(ErrInvalidState,
			"segmentation preview needs a preprocessed volume, pipeline is %s", c.state)
	}

	segmenter := &segment.ThresholdSegmenter{Min: thresholdMin, Max: thresholdMax}
	preview, err := segmenter.Segment(c.processed)
	if err != nil {
		return nil, errors.Wrap(err, "segmentation preview")
	}

	c.preview = preview
	c.previewMin = thresholdMin
	c.previewMax = thresholdMax
	c.finalized = nil
	c.surfaceModel = nil
	c.distanceField = nil
	c.state = StateSegmentedPreview

	// Preview runs on every slider move, so keep it out of the info logs
	c.logger.WithFields(logrus.Fields{
		"stage":         "segmentation-preview",
		"threshold_min": thresholdMin,
		"threshold_max": thresholdMax,
		"foreground":    preview.CountForeground(),
	}).Debug("Segmentation preview updated")
	return preview, nil
}

// RunFinalizeSegmentation filters islands out of the current preview and
// keeps the largest surviving connected component. It requires an active
// preview: previewing again after finalization discards the finalized
// segmentation, and finalizing twice in a row is rejected.
//
// When no component reaches minIslandSize the finalized volume is empty,
// which is a valid outcome for an over-tight threshold window.
func (c *Controller) RunFinalizeSegmentation(minIslandSize int) (*volume.VolumeBuffer, error) {
	if c.state != StateSegmentedPreview {
		return nil, errors.Wrapf(ErrInvalidState,
			"finalize segmentation needs an active preview, pipeline is %s", c.state)
	}

	start := time.Now()
	sized, err := segment.KeepComponentsAboveSize(c.preview, minIslandSize)
	if err != nil {
		return nil, errors.Wrap(err, "finalize segmentation")
	}
	finalized, err := segment.KeepLargestComponent(sized)
	if err != nil {
		return nil, errors.Wrap(err, "finalize segmentation")
	}

	c.finalized = finalized
	c.state = StateFinalized

	c.logger.WithFields(logrus.Fields{
		"stage":            "finalize-segmentation",
		"min_island_size":  minIslandSize,
		"preview_voxels":   c.preview.CountForeground(),
		"finalized_voxels": finalized.CountForeground(),
		"duration":         time.Since(start).String(),
	}).Info("Segmentation finalized")
	return finalized, nil
}

// RunSurfaceExport derives a closed surface model from the finalized
// segmentation. It can be repeated and combined with distance analysis in
// any order.
func (c *Controller) RunSurfaceExport() (*surface.SurfaceModel, error) {
	if c.finalized == nil {
		return nil, errors.Wrapf(ErrInvalidState,
			"surface export needs a finalized segmentation, pipeline is %s", c.state)
	}

	start := time.Now()
	extractor := &surface.Extractor{}
	model, err := extractor.ExtractSurface(c.finalized)
	if err != nil {
		return nil, errors.Wrap(err, "surface export")
	}

	c.surfaceModel = model
	c.state = StateSurfaceExported

	c.logger.WithFields(logrus.Fields{
		"stage":     "surface-export",
		"vertices":  model.NumVertices(),
		"triangles": model.NumTriangles(),
		"duration":  time.Since(start).String(),
	}).Info("Surface model extracted")
	return model, nil
}

// RunDistanceAnalysis derives the signed Euclidean distance field of the
// finalized segmentation, negative inside vessels and positive outside. It
// can be repeated and combined with surface export in any order.
func (c *Controller) RunDistanceAnalysis() (*volume.VolumeBuffer, error) {
	if c.finalized == nil {
		return nil, errors.Wrapf(ErrInvalidState,
			"distance analysis needs a finalized segmentation, pipeline is %s", c.state)
	}

	start := time.Now()
	field, err := distance.ComputeSignedDistance(c.finalized)
	if err != nil {
		return nil, errors.Wrap(err, "distance analysis")
	}

	c.distanceField = field
	c.state = StateDistanceComputed

	c.logger.WithFields(logrus.Fields{
		"stage":    "distance-analysis",
		"duration": time.Since(start).String(),
	}).Info("Signed distance field computed")
	return field, nil
}

// State returns the current session state.
func (c *Controller) State() State {
	return c.state
}

// Parameters returns the configuration committed by the last successful
// preprocessing run.
func (c *Controller) Parameters() Parameters {
	return c.params
}

// Input returns the session's input volume, or nil before preprocessing.
func (c *Controller) Input() *volume.VolumeBuffer {
	return c.input
}

// Intermediate returns the median-filtered volume when the session was
// configured to save it, or nil.
func (c *Controller) Intermediate() *volume.VolumeBuffer {
	return c.intermediate
}

// Processed returns the preprocessed volume, or nil before preprocessing.
func (c *Controller) Processed() *volume.VolumeBuffer {
	return c.processed
}

// Preview returns the current threshold preview, or nil if none is active.
func (c *Controller) Preview() *volume.VolumeBuffer {
	return c.preview
}

// PreviewWindow returns the thresholds of the current preview. ok is false
// when no preview is active.
func (c *Controller) PreviewWindow() (thresholdMin, thresholdMax float64, ok bool) {
	if c.preview == nil {
		return 0, 0, false
	}
	return c.previewMin, c.previewMax, true
}

// Finalized returns the finalized segmentation, or nil.
func (c *Controller) Finalized() *volume.VolumeBuffer {
	return c.finalized
}

// Surface returns the last derived surface model, or nil.
func (c *Controller) Surface() *surface.SurfaceModel {
	return c.surfaceModel
}

// DistanceField returns the last derived signed distance field, or nil.
func (c *Controller) DistanceField() *volume.VolumeBuffer {
	return c.distanceField
}
