package field

import (
	"fmt"
	"math"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/tensor"
)

// Differential operators on centered grids. All stencils use central
// differences with periodic boundaries; derivatives are scaled by the
// grid's physical cell size.

// Derivative returns the central-difference derivative along one spatial
// dimension.
func Derivative(g CenteredGrid, dim string) (CenteredGrid, error) {
	dx, err := g.Dx(dim)
	if err != nil {
		return CenteredGrid{}, err
	}
	fwd, err := tensor.Shift(g.Data, dim, 1)
	if err != nil {
		return CenteredGrid{}, err
	}
	bwd, err := tensor.Shift(g.Data, dim, -1)
	if err != nil {
		return CenteredGrid{}, err
	}
	diff, err := tensor.Sub(fwd, bwd)
	if err != nil {
		return CenteredGrid{}, err
	}
	return g.WithData(tensor.Scale(diff, 1/(2*dx))), nil
}

// Gradient returns all spatial derivatives stacked into a "gradient"
// channel whose item names are the spatial dimensions, in shape order.
func Gradient(g CenteredGrid) (CenteredGrid, error) {
	spatial := g.Resolution()
	if spatial.Len() == 0 {
		return CenteredGrid{}, fmt.Errorf("%w: gradient of a grid without spatial dims", dims.ErrIncompatibleShapes)
	}
	keys := spatial.Names()
	parts := make([]any, len(keys))
	for i, name := range keys {
		d, err := Derivative(g, name)
		if err != nil {
			return CenteredGrid{}, err
		}
		parts[i] = d.Data
	}
	stacked, err := dims.StackNamed(keys, parts, dims.Channel("gradient"))
	if err != nil {
		return CenteredGrid{}, err
	}
	return g.WithData(stacked.(*tensor.Tensor)), nil
}

// Laplace returns the sum of second derivatives along the given spatial
// dimensions, all of them when none are named.
func Laplace(g CenteredGrid, axes ...string) (CenteredGrid, error) {
	if len(axes) == 0 {
		axes = g.Resolution().Names()
	}
	if len(axes) == 0 {
		return CenteredGrid{}, fmt.Errorf("%w: laplace of a grid without spatial dims", dims.ErrIncompatibleShapes)
	}
	var total *tensor.Tensor
	for _, name := range axes {
		dx, err := g.Dx(name)
		if err != nil {
			return CenteredGrid{}, err
		}
		fwd, err := tensor.Shift(g.Data, name, 1)
		if err != nil {
			return CenteredGrid{}, err
		}
		bwd, err := tensor.Shift(g.Data, name, -1)
		if err != nil {
			return CenteredGrid{}, err
		}
		term, err := tensor.Add(fwd, bwd)
		if err != nil {
			return CenteredGrid{}, err
		}
		term, err = tensor.Sub(term, tensor.Scale(g.Data, 2))
		if err != nil {
			return CenteredGrid{}, err
		}
		term = tensor.Scale(term, 1/(dx*dx))
		if total == nil {
			total = term
			continue
		}
		total, err = tensor.Add(total, term)
		if err != nil {
			return CenteredGrid{}, err
		}
	}
	return g.WithData(total), nil
}

// Divergence contracts a vector-valued grid: the "vector" channel must
// name the spatial dimensions, and each component is differentiated along
// its own axis.
func Divergence(v CenteredGrid) (CenteredGrid, error) {
	items, err := v.Shape().ItemNames("vector")
	if err != nil {
		return CenteredGrid{}, err
	}
	if items == nil {
		return CenteredGrid{}, fmt.Errorf("%w: divergence needs a vector channel with item names", dims.ErrIncompatibleShapes)
	}
	var total *tensor.Tensor
	for _, name := range items {
		c, err := v.Data.Slice(dims.Dict{"vector": dims.Names(name)})
		if err != nil {
			return CenteredGrid{}, err
		}
		d, err := Derivative(v.WithData(c.(*tensor.Tensor)), name)
		if err != nil {
			return CenteredGrid{}, err
		}
		if total == nil {
			total = d.Data
			continue
		}
		total, err = tensor.Add(total, d.Data)
		if err != nil {
			return CenteredGrid{}, err
		}
	}
	return v.WithData(total), nil
}

// Advect transports g through the velocity field for one time step using
// semi-Lagrangian back-tracing with linear interpolation and periodic
// wrap. The velocity's "vector" channel must name g's spatial dimensions
// and each component must match g's shape.
func Advect(g, velocity CenteredGrid, dt float64) (CenteredGrid, error) {
	spatial := g.Resolution()
	m := spatial.Len()
	if m == 0 {
		return g, nil
	}
	comps := make([]*tensor.Tensor, m)
	dxs := make([]float64, m)
	for i, d := range spatial.Dims() {
		c, err := velocity.Data.Slice(dims.Dict{"vector": dims.Names(d.Name)})
		if err != nil {
			return CenteredGrid{}, err
		}
		ct := c.(*tensor.Tensor)
		if !ct.Shape().Equal(g.Shape()) {
			return CenteredGrid{}, fmt.Errorf("%w: velocity component %q has shape %v, want %v",
				dims.ErrIncompatibleShapes, d.Name, ct.Shape(), g.Shape())
		}
		comps[i] = ct
		dxs[i], _ = g.Dx(d.Name)
	}

	ax := axesFor(g.Shape())
	spatialAxis := make([]int, m)
	for i, d := range spatial.Dims() {
		spatialAxis[i] = ax.find(d.Name)
	}
	src := g.Data.Data()
	out := make([]float64, len(src))
	coords := make([]int, len(ax.names))
	corner := make([]int, len(ax.names))
	lo := make([]int, m)
	frac := make([]float64, m)
	for lin := range out {
		ax.decode(lin, coords)
		for i, k := range spatialAxis {
			u := comps[i].Data()[lin]
			departure := float64(coords[k]) - u*dt/dxs[i]
			f := math.Floor(departure)
			lo[i] = int(f)
			frac[i] = departure - f
		}
		copy(corner, coords)
		val := 0.0
		for mask := 0; mask < 1<<m; mask++ {
			w := 1.0
			for i, k := range spatialAxis {
				c := lo[i]
				if mask&(1<<i) != 0 {
					c++
					w *= frac[i]
				} else {
					w *= 1 - frac[i]
				}
				size := ax.sizes[k]
				corner[k] = ((c % size) + size) % size
			}
			if w != 0 {
				val += w * src[ax.index(corner)]
			}
		}
		out[lin] = val
	}
	data, err := tensor.FromData(g.Shape(), out)
	if err != nil {
		return CenteredGrid{}, err
	}
	return g.WithData(data), nil
}

// gridAxes is the positional view the stencil loops index with.
type gridAxes struct {
	names   []string
	sizes   []int
	strides []int
}

func axesFor(s dims.Shape) gridAxes {
	ds := s.Dims()
	a := gridAxes{
		names:   make([]string, len(ds)),
		sizes:   make([]int, len(ds)),
		strides: make([]int, len(ds)),
	}
	for i, d := range ds {
		a.names[i] = d.Name
		a.sizes[i] = d.Size
	}
	stride := 1
	for i := len(ds) - 1; i >= 0; i-- {
		a.strides[i] = stride
		stride *= a.sizes[i]
	}
	return a
}

func (a gridAxes) index(coords []int) int {
	idx := 0
	for i, c := range coords {
		idx += c * a.strides[i]
	}
	return idx
}

func (a gridAxes) decode(linear int, coords []int) {
	for i := range a.sizes {
		coords[i] = linear / a.strides[i]
		linear %= a.strides[i]
	}
}

func (a gridAxes) find(name string) int {
	for i, n := range a.names {
		if n == name {
			return i
		}
	}
	return -1
}
