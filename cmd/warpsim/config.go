package main

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one simulation run.
type Config struct {
	Grid struct {
		Resolution []int     `yaml:"resolution"` // cells per axis, y then x
		Size       []float64 `yaml:"size"`       // physical extent per axis
	} `yaml:"grid"`
	Solver    string  `yaml:"solver"` // "spectral" or "cg"
	Nu        float64 `yaml:"nu"`
	DT        float64 `yaml:"dt"`
	Steps     int     `yaml:"steps"`
	Seed      int64   `yaml:"seed"`
	Amplitude float64 `yaml:"amplitude"` // initial perturbation strength
	LogEvery  int     `yaml:"log_every"`
}

// DefaultConfig returns a small, stable run.
func DefaultConfig() Config {
	cfg := Config{
		Solver:    "spectral",
		Nu:        1,
		DT:        0.05,
		Steps:     100,
		Seed:      1,
		Amplitude: 0.01,
		LogEvery:  10,
	}
	cfg.Grid.Resolution = []int{64, 64}
	cfg.Grid.Size = []float64{6.283185307179586, 6.283185307179586}
	return cfg
}

// LoadConfig reads a YAML config, applying defaults for absent keys.
// Unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("warpsim: read config: %w", err)
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("warpsim: parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("warpsim: config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for values the simulation cannot run with.
func (c Config) Validate() error {
	if len(c.Grid.Resolution) != 2 {
		return fmt.Errorf("grid.resolution needs 2 entries, got %d", len(c.Grid.Resolution))
	}
	for i, n := range c.Grid.Resolution {
		if n < 4 {
			return fmt.Errorf("grid.resolution[%d] = %d, need at least 4 cells", i, n)
		}
	}
	if len(c.Grid.Size) != 2 {
		return fmt.Errorf("grid.size needs 2 entries, got %d", len(c.Grid.Size))
	}
	for i, l := range c.Grid.Size {
		if l <= 0 {
			return fmt.Errorf("grid.size[%d] = %g, must be positive", i, l)
		}
	}
	switch c.Solver {
	case "spectral", "cg":
	default:
		return fmt.Errorf("solver %q, want \"spectral\" or \"cg\"", c.Solver)
	}
	if c.DT == 0 {
		return fmt.Errorf("dt must be non-zero")
	}
	if c.Steps < 0 {
		return fmt.Errorf("steps = %d, must not be negative", c.Steps)
	}
	if c.LogEvery < 0 {
		return fmt.Errorf("log_every = %d, must not be negative", c.LogEvery)
	}
	return nil
}
