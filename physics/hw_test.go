package physics

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/field"
	"github.com/openfluke/warp/tensor"
)

func plasma2D(t *testing.T, n int, seed int64) PlasmaState {
	t.Helper()
	box, err := field.NewBox([]float64{0, 0}, []float64{2 * math.Pi, 2 * math.Pi})
	require.NoError(t, err)
	shape := dims.Spatial(fmt.Sprintf("y=%d,x=%d", n, n))
	rng := rand.New(rand.NewSource(seed))
	mk := func(values *tensor.Tensor) field.CenteredGrid {
		g, err := field.NewCenteredGrid(values, box)
		require.NoError(t, err)
		return g
	}
	density := tensor.AddScalar(tensor.Scale(tensor.Randn(shape, rng), 0.01), 1)
	return PlasmaState{
		Density: mk(density),
		Phi:     mk(tensor.Zeros(shape)),
		Omega:   mk(tensor.Scale(tensor.Randn(shape, rng), 0.01)),
	}
}

func TestStepPlasma2D(t *testing.T) {
	s := plasma2D(t, 16, 1)
	hw := HasegawaWakatani{Solver: Spectral{}}

	next, err := hw.StepPlasma(s, 0.05)
	require.NoError(t, err)
	assert.True(t, next.Omega.Shape().Equal(s.Omega.Shape()))
	assert.True(t, next.Density.Shape().Equal(s.Density.Shape()))
	assert.True(t, next.Phi.Shape().Equal(s.Phi.Shape()))
	assert.Equal(t, 0.05, next.Age)
	assert.False(t, math.IsNaN(tensor.AbsMax(next.Omega.Data)))
	assert.False(t, math.IsNaN(tensor.AbsMax(next.Density.Data)))
}

func TestStepPlasmaPotentialFollowsVorticity(t *testing.T) {
	// With omega = sin(x) the solved potential is -sin(x), regardless of
	// the rest of the state.
	s := plasma2D(t, 16, 2)
	omega := sineGrid(t, 16, 16, 0, 1)
	s.Omega = omega
	hw := HasegawaWakatani{Solver: Spectral{}}

	next, err := hw.StepPlasma(s, 0.01)
	require.NoError(t, err)
	want := tensor.Scale(omega.Data, -1)
	assert.True(t, tensor.ApproxEqual(next.Phi.Data, want, 1e-9))
}

func TestStepPlasma3D(t *testing.T) {
	// A z column of perpendicular planes: the solve runs per plane and
	// the parallel term couples them.
	box, err := field.NewBox([]float64{0, 0, 0}, []float64{1, 2 * math.Pi, 2 * math.Pi})
	require.NoError(t, err)
	shape := dims.Spatial("z=2,y=8,x=8")
	rng := rand.New(rand.NewSource(3))
	mk := func(values *tensor.Tensor) field.CenteredGrid {
		g, err := field.NewCenteredGrid(values, box)
		require.NoError(t, err)
		return g
	}
	s := PlasmaState{
		Density: mk(tensor.AddScalar(tensor.Scale(tensor.Randn(shape, rng), 0.01), 1)),
		Phi:     mk(tensor.Zeros(shape)),
		Omega:   mk(tensor.Scale(tensor.Randn(shape, rng), 0.01)),
	}
	hw := HasegawaWakatani{Solver: Spectral{}}

	next, err := hw.StepPlasma(s, 0.01)
	require.NoError(t, err)
	assert.True(t, next.Omega.Shape().Equal(shape))
	assert.True(t, next.Phi.Shape().Equal(shape), "z returns to the spatial group")
	assert.Equal(t, 3, next.Phi.Bounds.Rank())
}

func TestStepPlasmaEnsemble(t *testing.T) {
	// States are composites, so stacking two of them builds an ensemble
	// that steps as one batched state.
	a := plasma2D(t, 8, 4)
	b := plasma2D(t, 8, 5)
	stacked, err := dims.Stack([]any{a, b}, dims.Batch("cases"))
	require.NoError(t, err)
	ensemble := stacked.(PlasmaState)
	require.True(t, ensemble.Omega.Shape().Has("cases"))

	hw := HasegawaWakatani{Solver: Spectral{}}
	next, err := hw.StepPlasma(ensemble, 0.01)
	require.NoError(t, err)
	assert.True(t, next.Omega.Shape().Equal(ensemble.Omega.Shape()))

	// Each member must evolve exactly as it would alone, up to the
	// density normalization which is global across the ensemble.
	parts, err := dims.Unstack(next, "cases")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	soloA, err := hw.StepPlasma(a, 0.01)
	require.NoError(t, err)
	assert.True(t, tensor.ApproxEqual(parts[0].(PlasmaState).Omega.Data, soloA.Omega.Data, 1e-9))
}

func TestStepPlasmaErrors(t *testing.T) {
	s := plasma2D(t, 8, 6)
	_, err := HasegawaWakatani{}.StepPlasma(s, 0.1)
	assert.Error(t, err)

	hw := HasegawaWakatani{Solver: Spectral{}}
	_, err = hw.Step("not a state", 0.1)
	assert.Error(t, err)
}
