package config

import "sort"

func preset(modify func(*Config)) *Config {
	cfg := DefaultConfig()
	modify(cfg)
	return cfg
}

var Presets = map[string]*Config{
	"default": DefaultConfig(),
	"tiny": preset(func(c *Config) {
		c.Simulation.N = 4
		c.Tuner.Enabled = false
	}),
	"fluid2d": preset(func(c *Config) {
		c.Simulation.N = 100
		c.Simulation.Dim = 2
		c.Simulation.FluidSeed = []int{50, 50}
		c.Simulation.ForceSeed = []int{50, 50}
		c.Simulation.FluidSplat = 2
		c.Simulation.FluidAmount = 500
		c.Simulation.ForceAmount = 500
	}),
	"gpu": preset(func(c *Config) {
		c.Simulation.N = 64
		c.Compute.Backend = "opencl"
		c.Compute.Pipeline = "staged"
		c.Compute.Device = "gpu"
		c.Tuner.Profile = "gpu"
		c.Tuner.TargetFPS = 30
	}),
	"benchmark": preset(func(c *Config) {
		c.Simulation.N = 32
		c.Compute.Pipeline = "staged"
		c.Tuner.Enabled = false
		c.Output.Profile = true
	}),
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
