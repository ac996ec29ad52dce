package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "warpsim "+version)
}

func TestRunSimSmoke(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.Resolution = []int{8, 8}
	cfg.Steps = 2
	cfg.LogEvery = 1
	require.NoError(t, cfg.Validate())
	require.NoError(t, runSim(context.Background(), zap.NewNop(), cfg))
}

func TestRunSimCGSolver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.Resolution = []int{8, 8}
	cfg.Solver = "cg"
	cfg.Steps = 1
	cfg.LogEvery = 0
	require.NoError(t, runSim(context.Background(), zap.NewNop(), cfg))
}

func TestRunSimCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Grid.Resolution = []int{8, 8}
	cfg.Steps = 50
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, runSim(ctx, zap.NewNop(), cfg))
}
