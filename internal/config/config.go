package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/fluidsim/internal/compute"
	"github.com/san-kum/fluidsim/internal/fluid"
	"github.com/san-kum/fluidsim/internal/grid"
	"github.com/san-kum/fluidsim/internal/tuner"
)

const (
	DefaultBackend  = "auto"
	DefaultPipeline = "fused"
	DefaultProfile  = "cpu"
	DefaultDataDir  = "data"
	DefaultLogLevel = "info"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Compute    ComputeConfig    `yaml:"compute"`
	Tuner      TunerConfig      `yaml:"tuner"`
	Log        LogConfig        `yaml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Output     OutputConfig     `yaml:"output"`
}

type SimulationConfig struct {
	N           int     `yaml:"n"`
	Dim         int     `yaml:"dim"`
	SolverSteps int     `yaml:"solver_steps"`
	Dt          float64 `yaml:"dt"`
	Viscosity   float64 `yaml:"viscosity"`
	Diffusion   float64 `yaml:"diffusion"`
	FluidSeed   []int   `yaml:"fluid_seed"`
	ForceSeed   []int   `yaml:"force_seed"`
	FluidAmount float64 `yaml:"fluid_amount"`
	ForceAmount float64 `yaml:"force_amount"`
	FluidSplat  int     `yaml:"fluid_splat"`
	Resample    string  `yaml:"resample"`
}

type ComputeConfig struct {
	Backend  string `yaml:"backend"`
	Pipeline string `yaml:"pipeline"`
	Workers  int    `yaml:"workers"`
	Device   string `yaml:"device"`
}

type TunerConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Profile   string        `yaml:"profile"`
	TargetFPS int           `yaml:"target_fps"`
	History   int           `yaml:"history"`
	Interval  time.Duration `yaml:"interval"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	Disabled bool   `yaml:"disabled"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set, e.g. ":9090".
	Addr string `yaml:"addr"`
}

type OutputConfig struct {
	DataDir string `yaml:"data_dir"`
	Frames  bool   `yaml:"frames"`
	Profile bool   `yaml:"profile"`
}

func DefaultConfig() *Config {
	p := fluid.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{
			N:           p.N,
			Dim:         p.Dim,
			SolverSteps: p.SolverSteps,
			Dt:          p.Dt,
			Viscosity:   p.Viscosity,
			Diffusion:   p.Diffusion,
			FluidSeed:   p.FluidSeed[:],
			ForceSeed:   p.ForceSeed[:],
			FluidAmount: p.FluidAmount,
			ForceAmount: p.ForceAmount,
			FluidSplat:  p.FluidSplat,
			Resample:    string(p.Resample),
		},
		Compute: ComputeConfig{
			Backend:  DefaultBackend,
			Pipeline: DefaultPipeline,
		},
		Tuner: TunerConfig{
			Enabled:   true,
			Profile:   DefaultProfile,
			TargetFPS: tuner.DefaultTargetFPS,
			History:   tuner.DefaultHistory,
			Interval:  tuner.DefaultInterval,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: "console",
		},
		Output: OutputConfig{
			DataDir: DefaultDataDir,
			Frames:  true,
		},
	}
}

// Load reads a yaml file over the defaults, so a file only needs the keys
// it changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.Simulation.FluidSeed = append([]int(nil), c.Simulation.FluidSeed...)
	out.Simulation.ForceSeed = append([]int(nil), c.Simulation.ForceSeed...)
	return &out
}

func (c *Config) Validate() error {
	if _, err := c.Params(); err != nil {
		return err
	}
	switch c.Compute.Backend {
	case "", "auto", "cpu", "opencl":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Compute.Backend)
	}
	switch c.Compute.Pipeline {
	case "", "fused", "staged":
	default:
		return fmt.Errorf("%w: unknown pipeline %q", ErrInvalidConfig, c.Compute.Pipeline)
	}
	if c.Compute.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}
	if _, err := tuner.ParseProfile(c.Tuner.Profile); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Tuner.Enabled {
		if c.Tuner.TargetFPS < 1 || c.Tuner.History < 1 || c.Tuner.Interval <= 0 {
			return fmt.Errorf("%w: tuner needs positive target_fps, history and interval", ErrInvalidConfig)
		}
	}
	return nil
}

// Params converts the simulation section. Seeds may list two or three
// coordinates; missing ones default to 1.
func (c *Config) Params() (fluid.Params, error) {
	s := c.Simulation
	p := fluid.Params{
		N:           s.N,
		Dim:         s.Dim,
		SolverSteps: s.SolverSteps,
		Dt:          s.Dt,
		Viscosity:   s.Viscosity,
		Diffusion:   s.Diffusion,
		FluidAmount: s.FluidAmount,
		ForceAmount: s.ForceAmount,
		FluidSplat:  s.FluidSplat,
		Resample:    grid.ResampleMode(s.Resample),
	}
	if p.Resample == "" {
		p.Resample = grid.ResampleCopy
	}

	var err error
	if p.FluidSeed, err = seed(s.FluidSeed); err != nil {
		return p, fmt.Errorf("%w: fluid_seed: %v", ErrInvalidConfig, err)
	}
	if p.ForceSeed, err = seed(s.ForceSeed); err != nil {
		return p, fmt.Errorf("%w: force_seed: %v", ErrInvalidConfig, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return p, nil
}

func seed(v []int) ([3]int, error) {
	out := [3]int{1, 1, 1}
	if len(v) > 3 {
		return out, fmt.Errorf("expected at most 3 coordinates, got %d", len(v))
	}
	copy(out[:], v)
	return out, nil
}

// BackendOptions maps the compute section onto compute.Options.
func (c *Config) BackendOptions() compute.Options {
	return compute.Options{Workers: c.Compute.Workers, Device: c.Compute.Device}
}
