// Package config provides configuration loading and management for the
// vessel extraction pipeline. It handles loading configuration from YAML
// files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/joeFPV99/SEEGPlanner/pkg/pipeline"
	"github.com/joeFPV99/SEEGPlanner/pkg/vesselness"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// MedianRadius is the median prefilter radius in voxels, 0 disables
		// the prefilter
		MedianRadius int `yaml:"medianRadius"`

		// Alpha is the sigmoid contrast steepness parameter
		Alpha float64 `yaml:"alpha"`

		// Beta is the sigmoid midpoint intensity
		Beta float64 `yaml:"beta"`

		// ThresholdMin is the initial lower segmentation threshold
		ThresholdMin float64 `yaml:"thresholdMin"`

		// ThresholdMax is the initial upper segmentation threshold
		ThresholdMax float64 `yaml:"thresholdMax"`

		// MinimumIslandSize is the smallest voxel island kept at finalization
		MinimumIslandSize int `yaml:"minimumIslandSize"`

		// SaveIntermediateVolume determines whether the median-filtered
		// volume is kept and written next to the results
		SaveIntermediateVolume bool `yaml:"saveIntermediateVolume"`
	} `yaml:"processing"`

	// Vesselness enhancement parameters
	Vesselness struct {
		// Enabled switches the vesselness enhancement stage on
		Enabled bool `yaml:"enabled"`

		// MinDiameter is the smallest vessel diameter to enhance, in mm
		MinDiameter float64 `yaml:"minDiameter"`

		// MaxDiameter is the largest vessel diameter to enhance, in mm
		MaxDiameter float64 `yaml:"maxDiameter"`

		// Alpha controls suppression of plate-like structures
		Alpha float64 `yaml:"alpha"`

		// Beta controls suppression of blob-like structures
		Beta float64 `yaml:"beta"`

		// Contrast is the intensity scale separating structure from noise
		Contrast float64 `yaml:"contrast"`

		// Scales is the number of analysis scales between the diameter bounds
		Scales int `yaml:"scales"`
	} `yaml:"vesselness"`

	// Output parameters
	Output struct {
		// Directory receives meshes, labelmaps and reports
		Directory string `yaml:"directory"`

		// MeshFormat selects the surface file format
		MeshFormat string `yaml:"meshFormat"`

		// SaveDistanceField determines whether the signed distance volume
		// is computed and written
		SaveDistanceField bool `yaml:"saveDistanceField"`

		// Debug enables verbose logging
		Debug bool `yaml:"debug"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.MedianRadius = 0
	cfg.Processing.Alpha = pipeline.DefaultAlpha
	cfg.Processing.Beta = pipeline.DefaultBeta
	cfg.Processing.ThresholdMin = pipeline.DefaultThresholdMin
	cfg.Processing.ThresholdMax = pipeline.DefaultThresholdMax
	cfg.Processing.MinimumIslandSize = pipeline.DefaultMinimumIslandSize
	cfg.Processing.SaveIntermediateVolume = false

	// Set default vesselness parameters
	filter := vesselness.DefaultFilter()
	cfg.Vesselness.Enabled = false
	cfg.Vesselness.MinDiameter = filter.MinDiameter
	cfg.Vesselness.MaxDiameter = filter.MaxDiameter
	cfg.Vesselness.Alpha = filter.Alpha
	cfg.Vesselness.Beta = filter.Beta
	cfg.Vesselness.Contrast = filter.Contrast
	cfg.Vesselness.Scales = filter.Scales

	// Set default output parameters
	cfg.Output.Directory = "output"
	cfg.Output.MeshFormat = "stl"
	cfg.Output.SaveDistanceField = false
	cfg.Output.Debug = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// PipelineParameters converts the processing and vesselness sections into a
// validated pipeline parameter set.
func (c *Config) PipelineParameters() (pipeline.Parameters, error) {
	params := pipeline.Parameters{
		Alpha:             c.Processing.Alpha,
		Beta:              c.Processing.Beta,
		MedianRadius:      c.Processing.MedianRadius,
		ThresholdMin:      c.Processing.ThresholdMin,
		ThresholdMax:      c.Processing.ThresholdMax,
		MinimumIslandSize: c.Processing.MinimumIslandSize,
		SaveIntermediate:  c.Processing.SaveIntermediateVolume,
	}
	if c.Vesselness.Enabled {
		params.Vesselness = &vesselness.Filter{
			MinDiameter: c.Vesselness.MinDiameter,
			MaxDiameter: c.Vesselness.MaxDiameter,
			Alpha:       c.Vesselness.Alpha,
			Beta:        c.Vesselness.Beta,
			Contrast:    c.Vesselness.Contrast,
			Scales:      c.Vesselness.Scales,
		}
	}
	if err := params.Validate(); err != nil {
		return pipeline.Parameters{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return params, nil
}
