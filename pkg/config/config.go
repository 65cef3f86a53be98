// Package config provides configuration loading and management for neuritesim.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"neuritesim/internal/models"
	"neuritesim/pkg/volume"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Volume describes the buffer that trees are rendered into
	Volume struct {
		// Dims is the number of spatial axes, 2 or 3
		Dims int `yaml:"dims"`

		// Channels is the number of image channels
		Channels int `yaml:"channels"`

		// Size is the extent of each spatial axis in pixels
		Size []int `yaml:"size"`

		// Spacing is the physical size of a pixel along each axis
		Spacing []float64 `yaml:"spacing"`

		// Fill is the initial value of every pixel
		Fill float64 `yaml:"fill"`
	} `yaml:"volume"`

	// Rendering parameters
	Render struct {
		// Binary thresholds each composited segment into a hard mask
		Binary bool `yaml:"binary"`

		// Channel is the default target channel; negative counts from the end
		Channel int `yaml:"channel"`

		// Workers is the number of trees rendered concurrently
		Workers int `yaml:"workers"`
	} `yaml:"render"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// Preview prints a maximum-intensity projection to the terminal
		Preview bool `yaml:"preview"`

		// PreviewAxis is the axis projected away in the preview
		PreviewAxis int `yaml:"previewAxis"`

		// PreviewColumns is the width of the preview in characters
		PreviewColumns int `yaml:"previewColumns"`
	} `yaml:"output"`

	// Scene lists the neurite trees to draw
	Scene struct {
		Trees []TreeConfig `yaml:"trees"`
	} `yaml:"scene"`
}

// TreeConfig is one neurite tree in the scene
type TreeConfig struct {
	Name string `yaml:"name"`

	// Channel overrides Render.Channel for this tree when set
	Channel *int `yaml:"channel,omitempty"`

	Segments []SegmentConfig `yaml:"segments"`
}

// SegmentConfig is a straight piece of a tree given by two points and a width
type SegmentConfig struct {
	Points [][]float64 `yaml:"points,flow"`
	Width  float64     `yaml:"width"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default volume parameters
	cfg.Volume.Dims = 3
	cfg.Volume.Channels = 3
	cfg.Volume.Size = []int{64, 64, 64}
	cfg.Volume.Spacing = []float64{1, 1, 1}
	cfg.Volume.Fill = 0

	// Set default render parameters
	cfg.Render.Binary = false
	cfg.Render.Channel = -1
	cfg.Render.Workers = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.Verbose = false
	cfg.Output.Preview = false
	cfg.Output.PreviewAxis = 0
	cfg.Output.PreviewColumns = 64

	// A single straight neurite through the middle of the volume
	cfg.Scene.Trees = []TreeConfig{{
		Name: "example",
		Segments: []SegmentConfig{
			{Points: [][]float64{{32, 32, 16}, {32, 32, 48}}, Width: 1},
		},
	}}

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// A scene in the file replaces the example scene rather than merging
	// with it.
	cfg.Scene.Trees = nil

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

// NewVolume creates the buffer described by the volume section.
func (c *Config) NewVolume() (*volume.Buffer, error) {
	buf, err := volume.New(volume.Dims(c.Volume.Dims), c.Volume.Channels, c.Volume.Size, c.Volume.Spacing)
	if err != nil {
		return nil, fmt.Errorf("invalid volume section: %w", err)
	}
	if c.Volume.Fill != 0 {
		buf.Fill(c.Volume.Fill)
	}
	return buf, nil
}

// Trees converts the scene into neurite trees, checking that every segment
// has exactly two points with one coordinate per spatial axis.
func (c *Config) Trees() ([]models.Tree, error) {
	trees := make([]models.Tree, 0, len(c.Scene.Trees))
	for ti, tc := range c.Scene.Trees {
		name := tc.Name
		if name == "" {
			name = fmt.Sprintf("tree-%d", ti)
		}
		tree := models.Tree{Name: name, Channel: tc.Channel}
		for si, sc := range tc.Segments {
			if len(sc.Points) != 2 {
				return nil, fmt.Errorf("tree %q segment %d: expected 2 points, got %d", name, si, len(sc.Points))
			}
			for _, p := range sc.Points {
				if len(p) != c.Volume.Dims {
					return nil, fmt.Errorf("tree %q segment %d: point %v has %d coordinates, volume has %d axes", name, si, p, len(p), c.Volume.Dims)
				}
			}
			tree.Segments = append(tree.Segments, models.Segment{
				A:     models.Point(sc.Points[0]),
				B:     models.Point(sc.Points[1]),
				Width: sc.Width,
			})
		}
		trees = append(trees, tree)
	}
	return trees, nil
}

// Validate checks the configuration for values that cannot be rendered.
func (c *Config) Validate() error {
	if err := volume.CheckShape(volume.Dims(c.Volume.Dims), c.Volume.Channels, c.Volume.Size, c.Volume.Spacing); err != nil {
		return fmt.Errorf("invalid volume section: %w", err)
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("render.workers must be at least 1, got %d", c.Render.Workers)
	}
	if c.Render.Channel < -c.Volume.Channels || c.Render.Channel >= c.Volume.Channels {
		return fmt.Errorf("render.channel %d out of range for %d channels", c.Render.Channel, c.Volume.Channels)
	}
	if c.Output.PreviewAxis < 0 || c.Output.PreviewAxis >= c.Volume.Dims {
		return fmt.Errorf("output.previewAxis %d out of range for %d axes", c.Output.PreviewAxis, c.Volume.Dims)
	}
	if c.Output.PreviewColumns < 1 {
		return fmt.Errorf("output.previewColumns must be positive, got %d", c.Output.PreviewColumns)
	}
	_, err := c.Trees()
	return err
}
