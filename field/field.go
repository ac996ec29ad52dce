// Package field provides sampled fields on bounded domains. A
// CenteredGrid pairs a labeled tensor with the physical box it samples,
// cell-centered. Grids participate in the dims combinators both directly
// (Shaped, Sliceable) and as composites carrying a tensor payload.
package field

import (
	"fmt"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/tensor"
)

// Box is an axis-aligned bounding box. Axis i pairs with the i-th
// spatial dimension of the grid's shape in canonical order.
type Box struct {
	Lower []float64
	Upper []float64
}

// NewBox builds a box from per-axis bounds.
func NewBox(lower, upper []float64) (Box, error) {
	if len(lower) != len(upper) {
		return Box{}, fmt.Errorf("field: box needs matching bounds, got %d lower and %d upper", len(lower), len(upper))
	}
	for i := range lower {
		if upper[i] <= lower[i] {
			return Box{}, fmt.Errorf("field: box axis %d is empty: [%g, %g]", i, lower[i], upper[i])
		}
	}
	return Box{
		Lower: append([]float64(nil), lower...),
		Upper: append([]float64(nil), upper...),
	}, nil
}

// UnitBox returns the n-dimensional box [0,1]^n.
func UnitBox(n int) Box {
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i := range upper {
		upper[i] = 1
	}
	return Box{Lower: lower, Upper: upper}
}

// Rank returns the number of axes.
func (b Box) Rank() int { return len(b.Lower) }

// Size returns the extent of axis i.
func (b Box) Size(i int) float64 { return b.Upper[i] - b.Lower[i] }

// WithoutAxis returns the box with axis i removed.
func (b Box) WithoutAxis(i int) Box {
	lower := make([]float64, 0, len(b.Lower)-1)
	upper := make([]float64, 0, len(b.Upper)-1)
	for j := range b.Lower {
		if j != i {
			lower = append(lower, b.Lower[j])
			upper = append(upper, b.Upper[j])
		}
	}
	return Box{Lower: lower, Upper: upper}
}

// CenteredGrid samples values at cell centers of a regular grid spanning
// Bounds. Non-spatial dimensions of the data (batch, channel) are carried
// through all operations unchanged.
type CenteredGrid struct {
	Data   *tensor.Tensor
	Bounds Box
}

// NewCenteredGrid pairs sampled values with their bounds. The box must
// have one axis per spatial dimension of the data.
func NewCenteredGrid(data *tensor.Tensor, bounds Box) (CenteredGrid, error) {
	spatial := data.Shape().ByType(dims.TypeSpatial)
	if spatial.Len() != bounds.Rank() {
		return CenteredGrid{}, fmt.Errorf("field: %d spatial dims in %v but box has %d axes",
			spatial.Len(), data.Shape(), bounds.Rank())
	}
	return CenteredGrid{Data: data, Bounds: bounds}, nil
}

// Shape returns the shape of the sampled values.
func (g CenteredGrid) Shape() dims.Shape { return g.Data.Shape() }

// Resolution returns only the spatial dimensions of the shape.
func (g CenteredGrid) Resolution() dims.Shape { return g.Shape().ByType(dims.TypeSpatial) }

// Dx returns the cell size along the named spatial dimension.
func (g CenteredGrid) Dx(dim string) (float64, error) {
	spatial := g.Resolution()
	for i, d := range spatial.Dims() {
		if d.Name == dim {
			return g.Bounds.Size(i) / float64(d.Size), nil
		}
	}
	return 0, fmt.Errorf("%w: spatial %q in %v", dims.ErrDimensionNotFound, dim, g.Shape())
}

// WithData returns the grid with replacement values on the same bounds.
func (g CenteredGrid) WithData(data *tensor.Tensor) CenteredGrid {
	return CenteredGrid{Data: data, Bounds: g.Bounds}
}

// Slice selects from the sampled values. Indexing a spatial dimension
// away drops its box axis; a contiguous range narrows the axis to the
// covered cells.
func (g CenteredGrid) Slice(sel dims.Dict) (dims.Sliceable, error) {
	out, err := g.Data.Slice(sel)
	if err != nil {
		return nil, err
	}
	bounds := g.Bounds
	spatial := g.Resolution()
	// Walk axes back to front so removals do not shift pending indices.
	for i := spatial.Len() - 1; i >= 0; i-- {
		d := spatial.Dim(i)
		choice, ok := sel[d.Name]
		if !ok {
			continue
		}
		idx, _, keep, err := choice.Indices(d)
		if err != nil {
			return nil, err
		}
		if !keep {
			bounds = bounds.WithoutAxis(i)
			continue
		}
		dx := bounds.Size(i) / float64(d.Size)
		lower := make([]float64, len(bounds.Lower))
		upper := make([]float64, len(bounds.Upper))
		copy(lower, bounds.Lower)
		copy(upper, bounds.Upper)
		lower[i] = bounds.Lower[i] + float64(idx[0])*dx
		upper[i] = bounds.Lower[i] + float64(idx[len(idx)-1]+1)*dx
		bounds = Box{Lower: lower, Upper: upper}
	}
	return CenteredGrid{Data: out.(*tensor.Tensor), Bounds: bounds}, nil
}

// Values exposes the sampled tensor to composite traversal.
func (g CenteredGrid) Values() []any { return []any{g.Data} }

// WithValues rebuilds the grid around a replacement tensor.
func (g CenteredGrid) WithValues(values []any) (any, error) {
	data, ok := values[0].(*tensor.Tensor)
	if !ok {
		return nil, fmt.Errorf("field: grid payload must be a tensor, got %T", values[0])
	}
	return CenteredGrid{Data: data, Bounds: g.Bounds}, nil
}

var (
	_ dims.Sliceable = CenteredGrid{}
	_ dims.TreeNode  = CenteredGrid{}
)

func (g CenteredGrid) String() string {
	return fmt.Sprintf("CenteredGrid%v", g.Shape())
}
