package physics

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/field"
	"github.com/openfluke/warp/tensor"
)

// sineGrid samples sin(kx*x + ky*y) on an ny*nx grid over [0,2pi]^2.
func sineGrid(t *testing.T, ny, nx int, ky, kx float64) field.CenteredGrid {
	t.Helper()
	box, err := field.NewBox([]float64{0, 0}, []float64{2 * math.Pi, 2 * math.Pi})
	require.NoError(t, err)
	data := make([]float64, ny*nx)
	dy := 2 * math.Pi / float64(ny)
	dx := 2 * math.Pi / float64(nx)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			data[j*nx+i] = math.Sin(ky*float64(j)*dy + kx*float64(i)*dx)
		}
	}
	values, err := tensor.FromData(dims.Spatial(fmt.Sprintf("y=%d,x=%d", ny, nx)), data)
	require.NoError(t, err)
	g, err := field.NewCenteredGrid(values, box)
	require.NoError(t, err)
	return g
}

func TestSpectralSingleMode(t *testing.T) {
	// laplace(phi) = sin(x) has the exact solution phi = -sin(x) on
	// [0,2pi] with k = 1, which the spectral solve recovers to machine
	// precision.
	rhs := sineGrid(t, 16, 16, 0, 1)
	phi, err := Spectral{}.Solve(rhs)
	require.NoError(t, err)
	want := tensor.Scale(rhs.Data, -1)
	assert.True(t, tensor.ApproxEqual(phi.Data, want, 1e-9))
}

func TestSpectralHigherMode(t *testing.T) {
	// k = (2, 3): phi = -rhs / 13.
	rhs := sineGrid(t, 32, 32, 2, 3)
	phi, err := Spectral{}.Solve(rhs)
	require.NoError(t, err)
	want := tensor.Scale(rhs.Data, -1.0/13.0)
	assert.True(t, tensor.ApproxEqual(phi.Data, want, 1e-9))
}

func TestSpectralBatch(t *testing.T) {
	a := sineGrid(t, 16, 16, 0, 1)
	b := sineGrid(t, 16, 16, 1, 0)
	stacked, err := dims.Stack([]any{a, b}, dims.Batch("cases"))
	require.NoError(t, err)
	phi, err := Spectral{}.Solve(stacked.(field.CenteredGrid))
	require.NoError(t, err)

	parts, err := dims.Unstack(phi, "cases")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.True(t, tensor.ApproxEqual(parts[0].(field.CenteredGrid).Data, tensor.Scale(a.Data, -1), 1e-9))
	assert.True(t, tensor.ApproxEqual(parts[1].(field.CenteredGrid).Data, tensor.Scale(b.Data, -1), 1e-9))
}

func TestSpectralRejectsWrongRank(t *testing.T) {
	box, err := field.NewBox([]float64{0}, []float64{1})
	require.NoError(t, err)
	g, err := field.NewCenteredGrid(tensor.Zeros(dims.Spatial("x=8")), box)
	require.NoError(t, err)
	_, err = Spectral{}.Solve(g)
	assert.ErrorIs(t, err, dims.ErrIncompatibleShapes)
}

func TestConjugateGradient(t *testing.T) {
	// Build the right-hand side by applying the discrete laplacian to a
	// known zero-mean potential; the solver must recover it.
	phi0 := sineGrid(t, 8, 8, 1, 1)
	rhs, err := field.Laplace(phi0)
	require.NoError(t, err)

	phi, err := ConjugateGradient{}.Solve(phi0.WithData(rhs.Data))
	require.NoError(t, err)
	assert.True(t, tensor.ApproxEqual(phi.Data, phi0.Data, 1e-6))
}

func TestConjugateGradientZeroRHS(t *testing.T) {
	box, err := field.NewBox([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)
	g, err := field.NewCenteredGrid(tensor.Zeros(dims.Spatial("y=4,x=4")), box)
	require.NoError(t, err)
	phi, err := ConjugateGradient{}.Solve(g)
	require.NoError(t, err)
	assert.Equal(t, 0.0, tensor.AbsMax(phi.Data))
}

func TestConjugateGradientIterationCap(t *testing.T) {
	phi0 := sineGrid(t, 8, 8, 1, 1)
	rhs, err := field.Laplace(phi0)
	require.NoError(t, err)
	_, err = ConjugateGradient{MaxIter: 1, Tol: 1e-14}.Solve(phi0.WithData(rhs.Data))
	assert.Error(t, err)
}
