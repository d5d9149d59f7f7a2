// Package config provides configuration loading and management for helixsym.
// It handles loading configuration from YAML files, provides default values
// and validates the result before any processing starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"helixsym/internal/logging"
	"helixsym/pkg/priors"
	"helixsym/pkg/reference"
	"helixsym/pkg/simulate"
	"helixsym/pkg/symmetry"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers is the number of goroutines used for scoring and
		// symmetrization, 0 for one per CPU
		NumWorkers int `yaml:"numWorkers" validate:"gte=0"`
	} `yaml:"processing"`

	// Reference describes the synthetic helix the search command works on
	Reference struct {
		// Box is the edge length of the cubic map in voxels
		Box int `yaml:"box" validate:"gte=10"`

		TwistDeg   float64 `yaml:"twistDeg"`
		RiseA      float64 `yaml:"riseA" validate:"gt=0"`
		RadiusA    float64 `yaml:"radiusA" validate:"gt=0"`
		BlobSigmaA float64 `yaml:"blobSigmaA" validate:"gt=0"`
		SymCn      int     `yaml:"symCn" validate:"gte=0"`

		// NoiseSigma is the standard deviation of Gaussian noise added to the
		// map, relative to its maximum
		NoiseSigma float64 `yaml:"noiseSigma" validate:"gte=0"`

		Seed int64 `yaml:"seed"`
	} `yaml:"reference"`

	// Search parameters
	Search struct {
		Geometry symmetry.Geometry `yaml:"geometry"`

		// Rise and Twist are the brackets in Angstroms and degrees
		Rise  symmetry.Range `yaml:"riseA"`
		Twist symmetry.Range `yaml:"twistDeg"`

		// Refinement stops once both steps fall below these floors
		RiseFloorA    float64 `yaml:"riseFloorA" validate:"gt=0"`
		TwistFloorDeg float64 `yaml:"twistFloorDeg" validate:"gt=0"`

		MaxIterations int `yaml:"maxIterations" validate:"gte=0"`

		// StatusFile receives one progress line per refinement iteration
		StatusFile string `yaml:"statusFile"`
	} `yaml:"search"`

	// Symmetrize parameters
	Symmetrize struct {
		// Enabled imposes the refined symmetry on the map after the search
		Enabled bool `yaml:"enabled"`

		// CosineWidthPix is the width of the soft edge of the ROI
		CosineWidthPix float64 `yaml:"cosineWidthPix" validate:"gte=0"`
	} `yaml:"symmetrize"`

	// Priors holds the parameters of the prior update
	Priors priors.Params `yaml:"priors"`

	// Simulation describes the particle table the priors command works on
	Simulation simulate.Params `yaml:"simulation"`

	// Output parameters
	Output struct {
		// LogLevel is one of debug, info, warn, error
		LogLevel string `yaml:"logLevel" validate:"oneof=debug info warn error"`

		// LogFormat is text or json
		LogFormat string `yaml:"logFormat" validate:"oneof=text json"`

		// Verbose forces debug logging
		Verbose bool `yaml:"verbose"`

		// MetricsFile receives the Prometheus metrics of the run when set
		MetricsFile string `yaml:"metricsFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumWorkers = 0

	// A 60 degree, 4.5 A helix in a 48 voxel box
	cfg.Reference.Box = 48
	cfg.Reference.TwistDeg = 60
	cfg.Reference.RiseA = 4.5
	cfg.Reference.RadiusA = 8
	cfg.Reference.BlobSigmaA = 2.5
	cfg.Reference.SymCn = 1
	cfg.Reference.NoiseSigma = 0.05
	cfg.Reference.Seed = 1

	cfg.Search.Geometry = symmetry.Geometry{
		PixelSize:       1,
		SphereRadiusA:   20,
		CylOuterRadiusA: 14,
		ZPercentage:     0.5,
	}
	cfg.Search.Rise = symmetry.Range{Min: 3.5, Max: 5.5, Step: 0.5, Search: true}
	cfg.Search.Twist = symmetry.Range{Min: 50, Max: 70, Step: 5, Search: true}
	cfg.Search.RiseFloorA = 0.05
	cfg.Search.TwistFloorDeg = 0.2
	cfg.Search.MaxIterations = symmetry.DefaultMaxIterations

	cfg.Symmetrize.Enabled = true
	cfg.Symmetrize.CosineWidthPix = 3

	cfg.Priors = priors.DefaultParams()

	cfg.Simulation = simulate.Params{
		NrTubes:      4,
		NrSegments:   50,
		NrAsu:        2,
		RisePix:      4.5,
		TwistDeg:     60,
		SigmaPsi:     5,
		SigmaTilt:    5,
		SigmaOffset:  1,
		FlipFraction: 0.05,
		Seed:         1,
	}

	cfg.Output.LogLevel = "info"
	cfg.Output.LogFormat = "text"

	return cfg
}

// Validate checks every field and the relations between them
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, r := range []struct {
		name string
		rng  symmetry.Range
	}{
		{"search.riseA", c.Search.Rise},
		{"search.twistDeg", c.Search.Twist},
	} {
		if r.rng.Min > r.rng.Max {
			return fmt.Errorf("%w: %s min %g > max %g", ErrInvalidConfig, r.name, r.rng.Min, r.rng.Max)
		}
		if r.rng.Search && !(r.rng.Step > 0) {
			return fmt.Errorf("%w: %s is searched with step %g", ErrInvalidConfig, r.name, r.rng.Step)
		}
	}
	if g := c.Search.Geometry; g.CylOuterRadiusA > 0 && g.CylInnerRadiusA >= g.CylOuterRadiusA {
		return fmt.Errorf("%w: inner radius %g >= outer radius %g", ErrInvalidConfig, g.CylInnerRadiusA, g.CylOuterRadiusA)
	}
	return nil
}

// SearchParams returns the symmetry search parameters
func (c *Config) SearchParams() *symmetry.Params {
	return &symmetry.Params{
		Geometry:      c.Search.Geometry,
		Rise:          c.Search.Rise,
		Twist:         c.Search.Twist,
		RiseFloorA:    c.Search.RiseFloorA,
		TwistFloorDeg: c.Search.TwistFloorDeg,
		MaxIterations: c.Search.MaxIterations,
		Workers:       c.Processing.NumWorkers,
	}
}

// ReferenceParams returns the search geometry as reference parameters,
// with the bracket midpoints as rise and twist
func (c *Config) ReferenceParams() symmetry.ReferenceParams {
	g := c.Search.Geometry
	return symmetry.ReferenceParams{
		BoxLen:          c.Reference.Box,
		PixelSizeA:      g.PixelSize,
		TwistDeg:        c.Search.Twist.Mid(),
		RiseA:           c.Search.Rise.Mid(),
		ZPercentage:     g.ZPercentage,
		SphereRadiusA:   g.SphereRadiusA,
		CylInnerRadiusA: g.CylInnerRadiusA,
		CylOuterRadiusA: g.CylOuterRadiusA,
	}
}

// HelixParams returns the parameters of the synthetic reference map
func (c *Config) HelixParams() reference.HelixParams {
	return reference.HelixParams{
		Box:        c.Reference.Box,
		PixelSize:  c.Search.Geometry.PixelSize,
		TwistDeg:   c.Reference.TwistDeg,
		RiseA:      c.Reference.RiseA,
		RadiusA:    c.Reference.RadiusA,
		BlobSigmaA: c.Reference.BlobSigmaA,
		SymCn:      c.Reference.SymCn,
	}
}

// PriorParams returns the prior update parameters
func (c *Config) PriorParams() *priors.Params {
	p := c.Priors
	if p.Workers == 0 {
		p.Workers = c.Processing.NumWorkers
	}
	return &p
}

// LoggerConfig returns the logger settings
func (c *Config) LoggerConfig() logging.Config {
	level := c.Output.LogLevel
	if c.Output.Verbose {
		level = "debug"
	}
	return logging.Config{
		Level:   level,
		Format:  logging.Format(c.Output.LogFormat),
		Service: "helixsym",
	}
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
