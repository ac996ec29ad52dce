// Package physics provides PDE models and solvers on centered grids,
// plus a world registry that steps several coupled systems together.
package physics

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/field"
	"github.com/openfluke/warp/tensor"
)

// PoissonSolver inverts the Laplacian: Solve returns phi with
// laplace(phi) = rhs on the grid's spatial dimensions, periodic
// boundaries. The constant mode is unconstrained on a periodic domain;
// solvers pin it by returning a zero-mean solution.
type PoissonSolver interface {
	Solve(rhs field.CenteredGrid) (field.CenteredGrid, error)
}

// Spectral solves the Poisson equation by Fourier transform. It requires
// exactly two spatial dimensions; batch dimensions are solved slice by
// slice.
type Spectral struct{}

func (Spectral) Solve(rhs field.CenteredGrid) (field.CenteredGrid, error) {
	spatial := rhs.Resolution()
	if spatial.Len() != 2 {
		return field.CenteredGrid{}, fmt.Errorf("%w: spectral solve needs 2 spatial dims, got %v",
			dims.ErrIncompatibleShapes, rhs.Shape())
	}
	if rhs.Shape().ByType(dims.TypeChannel).Len() != 0 {
		return field.CenteredGrid{}, fmt.Errorf("%w: spectral solve needs a scalar field, got %v",
			dims.ErrIncompatibleShapes, rhs.Shape())
	}
	ny := spatial.Dim(0).Size
	nx := spatial.Dim(1).Size
	ly := rhs.Bounds.Size(0)
	lx := rhs.Bounds.Size(1)

	// Canonical layout puts batch dims in front of the two spatial dims,
	// so the data is a sequence of contiguous ny*nx planes.
	src := rhs.Data.Data()
	plane := ny * nx
	out := make([]float64, len(src))
	for off := 0; off < len(src); off += plane {
		grid := make([][]complex128, ny)
		for j := 0; j < ny; j++ {
			row := make([]complex128, nx)
			for i := 0; i < nx; i++ {
				row[i] = complex(src[off+j*nx+i], 0)
			}
			grid[j] = row
		}
		hat := fft.FFT2(grid)
		for j := 0; j < ny; j++ {
			ky := waveNumber(j, ny, ly)
			for i := 0; i < nx; i++ {
				kx := waveNumber(i, nx, lx)
				k2 := ky*ky + kx*kx
				if k2 == 0 {
					hat[j][i] = 0
					continue
				}
				hat[j][i] /= complex(-k2, 0)
			}
		}
		phi := fft.IFFT2(hat)
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				out[off+j*nx+i] = real(phi[j][i])
			}
		}
	}
	data, err := tensor.FromData(rhs.Shape(), out)
	if err != nil {
		return field.CenteredGrid{}, err
	}
	return rhs.WithData(data), nil
}

// waveNumber returns the angular wave number of Fourier index i on a
// periodic axis of n samples spanning length l.
func waveNumber(i, n int, l float64) float64 {
	m := i
	if i > n/2 {
		m = i - n
	}
	return 2 * math.Pi * float64(m) / l
}

// ConjugateGradient solves the discrete (finite-difference) Poisson
// system iteratively and matrix-free. It works for any spatial rank and
// solves all batch slices jointly.
type ConjugateGradient struct {
	MaxIter int     // 0 means the number of cells
	Tol     float64 // residual 2-norm target, 0 means 1e-10
	Logger  *zap.Logger
}

func (cg ConjugateGradient) Solve(rhs field.CenteredGrid) (field.CenteredGrid, error) {
	log := cg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxIter := cg.MaxIter
	if maxIter == 0 {
		maxIter = rhs.Data.Len()
	}
	tol := cg.Tol
	if tol == 0 {
		tol = 1e-10
	}

	apply := func(v []float64) ([]float64, error) {
		t, err := tensor.FromData(rhs.Shape(), v)
		if err != nil {
			return nil, err
		}
		lap, err := field.Laplace(rhs.WithData(t))
		if err != nil {
			return nil, err
		}
		return lap.Data.Data(), nil
	}

	// The periodic Laplacian annihilates constants, so the system is only
	// solvable for zero-mean right-hand sides. Project the offending
	// component out before iterating.
	b := append([]float64(nil), rhs.Data.Data()...)
	floats.AddConst(-floats.Sum(b)/float64(len(b)), b)

	x := make([]float64, len(b))
	r := append([]float64(nil), b...)
	p := append([]float64(nil), b...)
	rs := floats.Dot(r, r)
	iterations := 0
	for ; iterations < maxIter && math.Sqrt(rs) > tol; iterations++ {
		ap, err := apply(p)
		if err != nil {
			return field.CenteredGrid{}, err
		}
		pap := floats.Dot(p, ap)
		if pap == 0 {
			break
		}
		alpha := rs / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)
		rsNew := floats.Dot(r, r)
		beta := rsNew / rs
		rs = rsNew
		for i := range p {
			p[i] = r[i] + beta*p[i]
		}
	}
	if math.Sqrt(rs) > tol {
		return field.CenteredGrid{}, fmt.Errorf("physics: poisson solve did not converge after %d iterations, residual %g",
			iterations, math.Sqrt(rs))
	}
	log.Debug("poisson solve converged",
		zap.Int("iterations", iterations),
		zap.Float64("residual", math.Sqrt(rs)))

	// Pin the free constant mode to zero mean.
	floats.AddConst(-floats.Sum(x)/float64(len(x)), x)
	data, err := tensor.FromData(rhs.Shape(), x)
	if err != nil {
		return field.CenteredGrid{}, err
	}
	return rhs.WithData(data), nil
}
