package physics

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/field"
	"github.com/openfluke/warp/tensor"
)

// PlasmaState is the state of a Hasegawa-Wakatani plasma: particle
// density, electric potential and vorticity, sampled on the same grid.
// It is a composite, so the dims combinators apply to whole states:
// stacking states builds an ensemble, slicing selects a single case.
type PlasmaState struct {
	Density field.CenteredGrid
	Phi     field.CenteredGrid
	Omega   field.CenteredGrid
	Age     float64
}

// Values exposes the three grids to composite traversal.
func (s PlasmaState) Values() []any { return []any{s.Density, s.Phi, s.Omega} }

// WithValues rebuilds the state around replacement grids.
func (s PlasmaState) WithValues(values []any) (any, error) {
	out := s
	grids := []*field.CenteredGrid{&out.Density, &out.Phi, &out.Omega}
	for i, v := range values {
		g, ok := v.(field.CenteredGrid)
		if !ok {
			return nil, fmt.Errorf("physics: plasma state payload %d must be a grid, got %T", i, v)
		}
		*grids[i] = g
	}
	return out, nil
}

var _ dims.TreeNode = PlasmaState{}

// HasegawaWakatani models drift-wave turbulence in a magnetized plasma:
//
//	d/dt omega = (1/nu) dz²(n - phi) - {phi, omega} + laplace(omega)
//	d/dt n     = (1/nu) dz²(n - phi) - {phi, n} - kappa dy(phi) + laplace(n)
//
// with phi recovered from omega through a Poisson solve and {a, b} the
// Poisson bracket dx(a) dy(b) - dy(a) dx(b). Grids may carry a spatial z
// dimension; the perpendicular dynamics then run per z-plane by moving z
// to a batch dimension, and the parallel term couples the planes.
type HasegawaWakatani struct {
	Solver PoissonSolver
	Nu     float64 // resistive coupling, 1 when zero
	Logger *zap.Logger
}

// StepPlasma advances the state by one explicit Euler step.
func (hw HasegawaWakatani) StepPlasma(s PlasmaState, dt float64) (PlasmaState, error) {
	if hw.Solver == nil {
		return PlasmaState{}, fmt.Errorf("physics: hasegawa-wakatani needs a poisson solver")
	}
	log := hw.Logger
	if log == nil {
		log = zap.NewNop()
	}
	nu := hw.Nu
	if nu == 0 {
		nu = 1
	}

	omega, density := s.Omega, s.Density
	threeD := omega.Resolution().Has("z")

	// The potential follows the vorticity: phi = laplace⁻¹(omega),
	// solved per perpendicular plane.
	rhs := omega
	if threeD {
		var err error
		rhs, err = zToBatch(omega)
		if err != nil {
			return PlasmaState{}, err
		}
	}
	phi, err := hw.Solver.Solve(rhs)
	if err != nil {
		return PlasmaState{}, err
	}
	if threeD {
		phi, err = zToSpatial(phi, omega.Bounds)
		if err != nil {
			return PlasmaState{}, err
		}
	}

	c := &calc{}
	dxP, dyP := c.gradXY(phi)
	dxO, dyO := c.gradXY(omega)
	dxN, dyN := c.gradXY(density)
	nabla2O := c.laplace(omega, "y", "x")
	nabla2N := c.laplace(density, "y", "x")

	var dzdz *tensor.Tensor
	if threeD {
		diff := c.sub(density.Data, phi.Data)
		dzdz = c.laplace(density.WithData(diff), "z")
	} else {
		dzdz = tensor.Zeros(omega.Shape())
	}
	parallel := tensor.Scale(dzdz, 1/nu)

	// d/dt omega = parallel - dx(phi) dy(omega) + dy(phi) dx(omega) + diffusion
	omegaDot := c.add(c.sub(parallel, c.mul(dxP, dyO)), c.mul(dyP, dxO))
	omegaDot = c.add(omegaDot, nabla2O)

	// d/dt n = parallel - dx(phi) dy(n) + dy(phi) dx(n) - kappa dy(phi) + diffusion
	kappa := tensor.Scale(dxN, 1/tensor.Sum(density.Data))
	densityDot := c.add(c.sub(parallel, c.mul(dxP, dyN)), c.mul(dyP, dxN))
	densityDot = c.sub(densityDot, c.mul(kappa, dyP))
	densityDot = c.add(densityDot, nabla2N)
	if c.err != nil {
		return PlasmaState{}, c.err
	}

	next := PlasmaState{
		Density: density.WithData(c.add(density.Data, tensor.Scale(densityDot, dt))),
		Phi:     phi,
		Omega:   omega.WithData(c.add(omega.Data, tensor.Scale(omegaDot, dt))),
		Age:     s.Age + dt,
	}
	if c.err != nil {
		return PlasmaState{}, c.err
	}
	log.Debug("hasegawa-wakatani step",
		zap.Float64("age", next.Age),
		zap.Float64("omega_max", tensor.AbsMax(next.Omega.Data)),
		zap.Float64("density_max", tensor.AbsMax(next.Density.Data)),
		zap.Float64("parallel_max", tensor.AbsMax(parallel)))
	return next, nil
}

// Step implements Physics.
func (hw HasegawaWakatani) Step(state any, dt float64) (any, error) {
	s, ok := state.(PlasmaState)
	if !ok {
		return nil, fmt.Errorf("physics: hasegawa-wakatani steps PlasmaState, got %T", state)
	}
	return hw.StepPlasma(s, dt)
}

// zToBatch moves the spatial z dimension into the batch group so the
// perpendicular operators and the Poisson solve act per z-plane, and
// drops z's box axis.
func zToBatch(g field.CenteredGrid) (field.CenteredGrid, error) {
	zi := -1
	for i, d := range g.Resolution().Dims() {
		if d.Name == "z" {
			zi = i
		}
	}
	if zi < 0 {
		return field.CenteredGrid{}, fmt.Errorf("%w: spatial z in %v", dims.ErrDimensionNotFound, g.Shape())
	}
	out, err := dims.RenameDims(g.Data, "z", dims.Batch("z"))
	if err != nil {
		return field.CenteredGrid{}, err
	}
	return field.NewCenteredGrid(out.(*tensor.Tensor), g.Bounds.WithoutAxis(zi))
}

// zToSpatial is the inverse of zToBatch, restoring the full 3D bounds.
func zToSpatial(g field.CenteredGrid, bounds field.Box) (field.CenteredGrid, error) {
	out, err := dims.RenameDims(g.Data, "z", dims.Spatial("z"))
	if err != nil {
		return field.CenteredGrid{}, err
	}
	return field.NewCenteredGrid(out.(*tensor.Tensor), bounds)
}

// calc chains tensor arithmetic and keeps the first error.
type calc struct{ err error }

func (c *calc) mul(a, b *tensor.Tensor) *tensor.Tensor {
	if c.err != nil {
		return nil
	}
	out, err := tensor.Mul(a, b)
	c.err = err
	return out
}

func (c *calc) add(a, b *tensor.Tensor) *tensor.Tensor {
	if c.err != nil {
		return nil
	}
	out, err := tensor.Add(a, b)
	c.err = err
	return out
}

func (c *calc) sub(a, b *tensor.Tensor) *tensor.Tensor {
	if c.err != nil {
		return nil
	}
	out, err := tensor.Sub(a, b)
	c.err = err
	return out
}

func (c *calc) gradXY(g field.CenteredGrid) (dx, dy *tensor.Tensor) {
	if c.err != nil {
		return nil, nil
	}
	gx, err := field.Derivative(g, "x")
	if err != nil {
		c.err = err
		return nil, nil
	}
	gy, err := field.Derivative(g, "y")
	if err != nil {
		c.err = err
		return nil, nil
	}
	return gx.Data, gy.Data
}

func (c *calc) laplace(g field.CenteredGrid, axes ...string) *tensor.Tensor {
	if c.err != nil {
		return nil
	}
	out, err := field.Laplace(g, axes...)
	if err != nil {
		c.err = err
		return nil
	}
	return out.Data
}
