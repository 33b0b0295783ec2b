package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/unixpickle/essentials"

	"github.com/joeFPV99/SEEGPlanner/internal/models"
	"github.com/joeFPV99/SEEGPlanner/pkg/config"
	"github.com/joeFPV99/SEEGPlanner/pkg/pipeline"
	"github.com/joeFPV99/SEEGPlanner/pkg/surface"
	"github.com/joeFPV99/SEEGPlanner/pkg/visualization"
	"github.com/joeFPV99/SEEGPlanner/pkg/volio"
	"github.com/joeFPV99/SEEGPlanner/pkg/volume"
)

func main() {
	// Parse command line arguments
	inputPath := flag.String("input", "", "Input volume in NRRD format")
	configPath := flag.String("config", "vesseltree.yaml", "YAML configuration file (missing file means defaults)")
	outputDir := flag.String("output-dir", "output", "Directory for meshes, labelmaps and reports")
	medianRadius := flag.Int("median", 0, "Median prefilter radius in voxels: 0 (off), 1 or 2")
	alpha := flag.Float64("alpha", pipeline.DefaultAlpha, "Sigmoid steepness")
	beta := flag.Float64("beta", pipeline.DefaultBeta, "Sigmoid midpoint intensity")
	thresholdMin := flag.Float64("threshold-min", pipeline.DefaultThresholdMin, "Lower segmentation threshold")
	thresholdMax := flag.Float64("threshold-max", pipeline.DefaultThresholdMax, "Upper segmentation threshold")
	autoThreshold := flag.Bool("auto-threshold", false, "Derive the threshold window from the processed intensity distribution")
	islands := flag.Int("islands", pipeline.DefaultMinimumIslandSize, "Minimum island size in voxels")
	saveIntermediate := flag.Bool("save-intermediate", false, "Save the median-filtered volume next to the results")
	enableVesselness := flag.Bool("vesselness", false, "Enhance tubular structures before contrast mapping")
	computeDistance := flag.Bool("distance", false, "Compute and save the signed distance field")
	extractSlices := flag.Bool("extract-slices", false, "Save slice images of the processed volume along all axes")
	probeFlag := flag.String("probe", "", "Physical point \"x,y,z\" in mm to measure against the vessel surface")
	debugMode := flag.Bool("debug", false, "Enable debug mode with verbose logging")
	flag.Parse()

	// Validate inputs
	if *inputPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	// Configuration file first, explicitly set flags override it
	cfg, err := config.LoadConfig(*configPath)
	essentials.Must(err)
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "median":
			cfg.Processing.MedianRadius = *medianRadius
		case "alpha":
			cfg.Processing.Alpha = *alpha
		case "beta":
			cfg.Processing.Beta = *beta
		case "threshold-min":
			cfg.Processing.ThresholdMin = *thresholdMin
		case "threshold-max":
			cfg.Processing.ThresholdMax = *thresholdMax
		case "islands":
			cfg.Processing.MinimumIslandSize = *islands
		case "save-intermediate":
			cfg.Processing.SaveIntermediateVolume = *saveIntermediate
		case "vesselness":
			cfg.Vesselness.Enabled = *enableVesselness
		case "output-dir":
			cfg.Output.Directory = *outputDir
		case "distance":
			cfg.Output.SaveDistanceField = *computeDistance
		case "debug":
			cfg.Output.Debug = *debugMode
		}
	})

	logger := initLogger(cfg.Output.Debug)

	params, err := cfg.PipelineParameters()
	essentials.Must(err)

	var probe [3]float64
	probeRequested := *probeFlag != ""
	if probeRequested {
		probe, err = parseProbe(*probeFlag)
		essentials.Must(err)
	}

	runStart := time.Now()
	report := &models.RunReport{
		InputPath:         *inputPath,
		MedianRadius:      params.MedianRadius,
		Alpha:             params.Alpha,
		Beta:              params.Beta,
		VesselnessEnabled: params.Vesselness != nil,
		MinimumIslandSize: params.MinimumIslandSize,
	}

	// Load the input volume
	stageStart := time.Now()
	vol, err := volio.LoadVolume(*inputPath)
	essentials.Must(err)
	report.AddTiming("load", time.Since(stageStart))
	report.Width, report.Height, report.Depth = vol.Width, vol.Height, vol.Depth
	report.Spacing = vol.Spacing
	logger.WithFields(logrus.Fields{
		"input":   *inputPath,
		"width":   vol.Width,
		"height":  vol.Height,
		"depth":   vol.Depth,
		"spacing": fmt.Sprintf("%g/%g/%g", vol.Spacing[0], vol.Spacing[1], vol.Spacing[2]),
	}).Info("Input volume loaded")

	controller := pipeline.NewController(logger)

	// Preprocess: optional median and vesselness, then sigmoid contrast
	stageStart = time.Now()
	processed, err := controller.RunPreprocessing(vol, params)
	essentials.Must(err)
	report.AddTiming("preprocess", time.Since(stageStart))

	outDir := cfg.Output.Directory
	essentials.Must(os.MkdirAll(outDir, 0755))

	if controller.Intermediate() != nil {
		path := filepath.Join(outDir, "intermediate_median.nrrd")
		essentials.Must(volio.SaveVolume(controller.Intermediate(), path))
		report.IntermediatePath = path
	}

	// Threshold window from flags and config, or derived from the data
	thMin, thMax := params.ThresholdMin, params.ThresholdMax
	if *autoThreshold {
		thMin, thMax, err = volume.SuggestThresholdWindow(processed, volume.DefaultThresholdQuantile)
		essentials.Must(err)
		logger.WithFields(logrus.Fields{
			"threshold_min": thMin,
			"threshold_max": thMax,
		}).Info("Derived threshold window")
	}
	report.ThresholdMin, report.ThresholdMax = thMin, thMax

	// Segment and finalize
	stageStart = time.Now()
	preview, err := controller.RunSegmentationPreview(thMin, thMax)
	essentials.Must(err)
	report.PreviewVoxels = preview.CountForeground()

	finalized, err := controller.RunFinalizeSegmentation(params.MinimumIslandSize)
	essentials.Must(err)
	report.AddTiming("segment", time.Since(stageStart))
	report.FinalVoxels = finalized.CountForeground()

	labelPath := filepath.Join(outDir, "vessels_labelmap.nrrd")
	essentials.Must(volio.SaveLabelmap(finalized, labelPath))
	report.LabelmapPath = labelPath

	// Surface model
	stageStart = time.Now()
	model, err := controller.RunSurfaceExport()
	essentials.Must(err)
	report.AddTiming("surface", time.Since(stageStart))
	report.SurfaceVertices = model.NumVertices()
	report.SurfaceTriangles = model.NumTriangles()

	if model.IsEmpty() {
		logger.Warn("Segmentation is empty, no mesh was written")
	} else {
		meshPath, err := surface.ExportSurface(model, filepath.Join(outDir, "mesh"), cfg.Output.MeshFormat)
		essentials.Must(err)
		report.MeshPath = meshPath
	}

	// Signed distance field
	if cfg.Output.SaveDistanceField {
		stageStart = time.Now()
		field, err := controller.RunDistanceAnalysis()
		essentials.Must(err)
		path := filepath.Join(outDir, "maurer_distance.nrrd")
		essentials.Must(volio.SaveVolume(field, path))
		report.AddTiming("distance", time.Since(stageStart))
		report.DistancePath = path
	}

	// Probe clearance against the vessel wall
	if probeRequested {
		if model.IsEmpty() {
			logger.Warn("Segmentation is empty, probe clearance is undefined")
		} else {
			index, err := surface.NewProximityIndex(model)
			essentials.Must(err)
			_, dist := index.Nearest(probe)
			report.ProbeValid = true
			report.ProbePoint = probe
			report.ProbeDistance = dist
			logger.WithFields(logrus.Fields{
				"probe":       *probeFlag,
				"distance_mm": dist,
			}).Info("Probe clearance measured")
		}
	}

	// Slice images of the processed volume
	if *extractSlices {
		stageStart = time.Now()
		viewer, err := visualization.NewViewer(processed)
		essentials.Must(err)

		slicesDir := filepath.Join(outDir, "slices")
		for _, axis := range []string{"x", "y", "z"} {
			essentials.Must(viewer.SaveSliceSequence(axis, filepath.Join(slicesDir, axis)))
		}
		report.AddTiming("slices", time.Since(stageStart))
		report.SlicesDir = slicesDir
	}

	report.TotalDuration = time.Since(runStart)
	fmt.Println(report.Summary())
}

// parseProbe reads a "x,y,z" physical coordinate triple.
func parseProbe(s string) ([3]float64, error) {
	var p [3]float64
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return p, fmt.Errorf("probe must be \"x,y,z\", got %q", s)
	}
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return p, fmt.Errorf("invalid probe coordinate %q", part)
		}
		p[i] = v
	}
	return p, nil
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
