// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	Physics     PhysicsConfig     `yaml:"physics"`
	Run         RunConfig         `yaml:"run"`
	Observables ObservablesConfig `yaml:"observables"`
	Noise       NoiseConfig       `yaml:"noise"`
	Parallel    ParallelConfig    `yaml:"parallel"`
	Output      OutputConfig      `yaml:"output"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds the physical parameters of the particle system.
type PhysicsConfig struct {
	Rho         float64 `yaml:"rho"`          // Number density; box length derived as sqrt(n_parts/rho)
	Length      float64 `yaml:"length"`       // Explicit box length (0 = derive from rho)
	NParts      int     `yaml:"n_parts"`      // Number of particles
	PotStrength float64 `yaml:"pot_strength"` // Strength of the interparticle potential
	Temperature float64 `yaml:"temperature"`  // Translational noise temperature
	RotDif      float64 `yaml:"rot_dif"`      // Rotational diffusivity
	Activity    float64 `yaml:"activity"`     // Self-propulsion speed
	DT          float64 `yaml:"dt"`           // Timestep
}

// RunConfig holds the time-loop parameters.
type RunConfig struct {
	NIters        int `yaml:"n_iters"`        // Number of sampled iterations
	NItersTh      int `yaml:"n_iters_th"`     // Thermalization iterations before sampling
	Skip          int `yaml:"skip"`           // Sample observables every skip iterations
	SleepMS       int `yaml:"sleep_ms"`       // Milliseconds to sleep between iterations (0 = none)
	ProgressEvery int `yaml:"progress_every"` // Log progress every N iterations (0 = no progress logs)
}

// ObservablesConfig holds the correlation-histogram parameters.
type ObservablesConfig struct {
	StepR     float64 `yaml:"step_r"`    // Width of a radial (or cartesian) division
	DivAngle  int     `yaml:"div_angle"` // Number of angular divisions
	Less      bool    `yaml:"less"`      // Only (r, theta) correlations
	Cartesian bool    `yaml:"cartesian"` // Correlations in cartesian coordinates
}

// NoiseConfig selects the random-number backend.
type NoiseConfig struct {
	Backend string `yaml:"backend"` // "scalar" or "batch"
}

// ParallelConfig holds the force-pass worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers"`   // Worker goroutines for the force pass (0 = serial)
	Threshold int `yaml:"threshold"` // Minimum particle count before workers kick in
}

// OutputConfig holds export destinations.
type OutputConfig struct {
	File string `yaml:"file"` // Path of the final HDF5 file
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Length float64 // Effective box length
	Rho    float64 // Effective density
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Validate rejects configurations the simulation cannot run with.
// Invalid values are reported, never clamped.
func (c *Config) Validate() error {
	p := c.Physics
	if p.NParts <= 0 {
		return fmt.Errorf("config: n_parts must be strictly positive, got %d", p.NParts)
	}
	if p.Length <= 0 && p.Rho <= 0 {
		return fmt.Errorf("config: either length or rho must be strictly positive")
	}
	if p.PotStrength <= 0 {
		return fmt.Errorf("config: pot_strength must be strictly positive, got %g", p.PotStrength)
	}
	if p.DT <= 0 {
		return fmt.Errorf("config: dt must be strictly positive, got %g", p.DT)
	}
	if p.Temperature < 0 {
		return fmt.Errorf("config: temperature must be positive, got %g", p.Temperature)
	}
	if p.RotDif < 0 {
		return fmt.Errorf("config: rot_dif must be positive, got %g", p.RotDif)
	}
	if p.Activity < 0 {
		return fmt.Errorf("config: activity must be positive, got %g", p.Activity)
	}
	if c.Run.NIters <= 0 {
		return fmt.Errorf("config: n_iters must be strictly positive, got %d", c.Run.NIters)
	}
	if c.Run.NItersTh < 0 {
		return fmt.Errorf("config: n_iters_th must be positive, got %d", c.Run.NItersTh)
	}
	if c.Run.Skip <= 0 {
		return fmt.Errorf("config: skip must be strictly positive, got %d", c.Run.Skip)
	}
	if c.Observables.StepR <= 0 {
		return fmt.Errorf("config: step_r must be strictly positive, got %g", c.Observables.StepR)
	}
	if c.Observables.DivAngle <= 0 {
		return fmt.Errorf("config: div_angle must be strictly positive, got %d", c.Observables.DivAngle)
	}
	switch c.Noise.Backend {
	case "scalar", "batch":
	default:
		return fmt.Errorf("config: unknown noise backend %q", c.Noise.Backend)
	}
	if c.Parallel.Workers < 0 {
		return fmt.Errorf("config: workers must be positive, got %d", c.Parallel.Workers)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
// An explicit length wins over rho; the other quantity is back-filled.
func (c *Config) computeDerived() {
	if c.Physics.Length > 0 {
		c.Derived.Length = c.Physics.Length
		c.Derived.Rho = float64(c.Physics.NParts) / (c.Physics.Length * c.Physics.Length)
	} else {
		c.Derived.Length = math.Sqrt(float64(c.Physics.NParts) / c.Physics.Rho)
		c.Derived.Rho = c.Physics.Rho
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
