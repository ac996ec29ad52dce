package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
grid:
  resolution: [32, 48]
  size: [1.0, 1.5]
solver: cg
nu: 2.5
dt: 0.01
steps: 5
seed: 7
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []int{32, 48}, cfg.Grid.Resolution)
	assert.Equal(t, []float64{1.0, 1.5}, cfg.Grid.Size)
	assert.Equal(t, "cg", cfg.Solver)
	assert.Equal(t, 2.5, cfg.Nu)
	assert.Equal(t, 0.01, cfg.DT)
	assert.Equal(t, 5, cfg.Steps)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 0.01, cfg.Amplitude, "absent keys keep their defaults")
	assert.Equal(t, 10, cfg.LogEvery)
}

func TestLoadConfigDefaultsOnly(t *testing.T) {
	path := writeConfig(t, "steps: 3\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Grid.Resolution, cfg.Grid.Resolution)
	assert.Equal(t, 3, cfg.Steps)
}

func TestLoadConfigUnknownKey(t *testing.T) {
	path := writeConfig(t, "stepz: 3\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := DefaultConfig()
	require.NoError(t, base.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short resolution", func(c *Config) { c.Grid.Resolution = []int{8} }},
		{"tiny grid", func(c *Config) { c.Grid.Resolution = []int{2, 8} }},
		{"short size", func(c *Config) { c.Grid.Size = []float64{1} }},
		{"negative size", func(c *Config) { c.Grid.Size = []float64{-1, 1} }},
		{"unknown solver", func(c *Config) { c.Solver = "magic" }},
		{"zero dt", func(c *Config) { c.DT = 0 }},
		{"negative steps", func(c *Config) { c.Steps = -1 }},
		{"negative log cadence", func(c *Config) { c.LogEvery = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
