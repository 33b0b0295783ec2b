// Package models holds the data carriers shared between the command-line
// front end and the processing pipeline.
package models

import (
	"fmt"
	"strings"
	"time"
)

// StageTiming records how long one pipeline stage took
type StageTiming struct {
	// Stage is the pipeline stage name
	Stage string

	// Duration is the wall-clock time the stage took
	Duration time.Duration
}

// RunReport collects the inputs, results and output artifacts of one batch
// run for the end-of-run summary
type RunReport struct {
	// InputPath is the volume file the run started from
	InputPath string

	// Width, Height and Depth are the input volume dimensions in voxels
	Width, Height, Depth int

	// Spacing is the physical voxel size along each axis in mm
	Spacing [3]float64

	// MedianRadius is the median prefilter radius used, 0 means disabled
	MedianRadius int

	// Alpha is the sigmoid steepness used
	Alpha float64

	// Beta is the sigmoid midpoint intensity used
	Beta float64

	// VesselnessEnabled records whether vessel enhancement ran
	VesselnessEnabled bool

	// ThresholdMin and ThresholdMax delimit the segmentation window
	ThresholdMin float64
	ThresholdMax float64

	// MinimumIslandSize is the island filter limit used at finalization
	MinimumIslandSize int

	// PreviewVoxels is the foreground count right after thresholding
	PreviewVoxels int

	// FinalVoxels is the foreground count after island filtering
	FinalVoxels int

	// SurfaceVertices and SurfaceTriangles describe the extracted mesh
	SurfaceVertices  int
	SurfaceTriangles int

	// Output artifact paths, empty when the artifact was not produced
	MeshPath         string
	LabelmapPath     string
	DistancePath     string
	IntermediatePath string
	SlicesDir        string

	// ProbeValid marks ProbePoint and ProbeDistance as meaningful
	ProbeValid bool

	// ProbePoint is the queried physical position in mm
	ProbePoint [3]float64

	// ProbeDistance is the distance from the probe to the nearest surface
	// vertex in mm
	ProbeDistance float64

	// Timings holds per-stage durations in execution order
	Timings []StageTiming

	// TotalDuration is the wall-clock time of the whole run
	TotalDuration time.Duration
}

// AddTiming appends one stage duration to the report
func (r *RunReport) AddTiming(stage string, d time.Duration) {
	r.Timings = append(r.Timings, StageTiming{Stage: stage, Duration: d})
}

// Summary formats the report as a human-readable block, opening with the
// same parameter recap the interactive workflow shows on completion
func (r *RunReport) Summary() string {
	var b strings.Builder

	b.WriteString("Vessel Tree successfully created!\n\n")

	medianRadius := "None"
	if r.MedianRadius > 0 {
		medianRadius = fmt.Sprintf("%d", r.MedianRadius)
	}
	fmt.Fprintf(&b, "Median radius: %s\n", medianRadius)
	fmt.Fprintf(&b, "Sigmoid Alpha: %g\n", r.Alpha)
	fmt.Fprintf(&b, "Sigmoid Beta: %g\n", r.Beta)
	fmt.Fprintf(&b, "Threshold Min: %g\n", r.ThresholdMin)
	fmt.Fprintf(&b, "Threshold Max: %g\n", r.ThresholdMax)
	if r.VesselnessEnabled {
		b.WriteString("Vesselness enhancement: on\n")
	}

	fmt.Fprintf(&b, "\nInput: %s (%dx%dx%d voxels, spacing %g/%g/%g mm)\n",
		r.InputPath, r.Width, r.Height, r.Depth,
		r.Spacing[0], r.Spacing[1], r.Spacing[2])
	fmt.Fprintf(&b, "Segmented voxels: %d (%d before island filtering, minimum island %d)\n",
		r.FinalVoxels, r.PreviewVoxels, r.MinimumIslandSize)
	fmt.Fprintf(&b, "Surface: %d vertices, %d triangles\n",
		r.SurfaceVertices, r.SurfaceTriangles)

	if r.MeshPath != "" {
		fmt.Fprintf(&b, "Mesh: %s\n", r.MeshPath)
	}
	if r.LabelmapPath != "" {
		fmt.Fprintf(&b, "Labelmap: %s\n", r.LabelmapPath)
	}
	if r.DistancePath != "" {
		fmt.Fprintf(&b, "Distance field: %s\n", r.DistancePath)
	}
	if r.IntermediatePath != "" {
		fmt.Fprintf(&b, "Intermediate volume: %s\n", r.IntermediatePath)
	}
	if r.SlicesDir != "" {
		fmt.Fprintf(&b, "Slice images: %s\n", r.SlicesDir)
	}
	if r.ProbeValid {
		fmt.Fprintf(&b, "Probe (%g, %g, %g): nearest vessel surface at %.2f mm\n",
			r.ProbePoint[0], r.ProbePoint[1], r.ProbePoint[2], r.ProbeDistance)
	}

	b.WriteString("\nTimings:\n")
	for _, t := range r.Timings {
		fmt.Fprintf(&b, "  %-16s %v\n", t.Stage+":", t.Duration.Round(time.Millisecond))
	}
	fmt.Fprintf(&b, "  %-16s %v\n", "total:", r.TotalDuration.Round(time.Millisecond))

	return b.String()
}
