package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/openfluke/warp/dims"
)

// Element-wise arithmetic with dimension-name broadcasting: operands are
// aligned by dimension name, the result shape is the merge of both
// shapes, and missing dimensions broadcast. Equal-shaped operands take a
// flat fast path through gonum.

// Add returns a + b.
func Add(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, floats.Add, func(x, y float64) float64 { return x + y })
}

// Sub returns a - b.
func Sub(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, floats.Sub, func(x, y float64) float64 { return x - y })
}

// Mul returns the element-wise product a * b.
func Mul(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, floats.Mul, func(x, y float64) float64 { return x * y })
}

// Div returns the element-wise quotient a / b.
func Div(a, b *Tensor) (*Tensor, error) {
	return binary(a, b, floats.Div, func(x, y float64) float64 { return x / y })
}

func binary(a, b *Tensor, flat func(dst, s []float64), f func(x, y float64) float64) (*Tensor, error) {
	if a.shape.Equal(b.shape) {
		out := a.clone()
		flat(out.data, b.data)
		return out, nil
	}
	merged, err := dims.MergeShapes(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	out := Zeros(merged)
	ra := axesOf(merged)
	aa := axesOf(a.shape)
	ba := axesOf(b.shape)
	toA := project(ra, aa)
	toB := project(ra, ba)
	coords := make([]int, len(ra.names))
	ca := make([]int, len(aa.names))
	cb := make([]int, len(ba.names))
	for lin := range out.data {
		ra.decode(lin, coords)
		for i, j := range toA {
			if j >= 0 {
				ca[j] = coords[i]
			}
		}
		for i, j := range toB {
			if j >= 0 {
				cb[j] = coords[i]
			}
		}
		out.data[lin] = f(a.data[aa.index(ca)], b.data[ba.index(cb)])
	}
	return out, nil
}

// project maps each axis of from to its position in to, -1 if absent.
func project(from, to axes) []int {
	m := make([]int, len(from.names))
	for i, name := range from.names {
		m[i] = to.find(name)
	}
	return m
}

// Scale returns t * factor.
func Scale(t *Tensor, factor float64) *Tensor {
	out := t.clone()
	floats.Scale(factor, out.data)
	return out
}

// AddScalar returns t + value.
func AddScalar(t *Tensor, value float64) *Tensor {
	out := t.clone()
	floats.AddConst(value, out.data)
	return out
}

// Neg returns -t.
func Neg(t *Tensor) *Tensor { return Scale(t, -1) }

// Apply returns f mapped over every element.
func Apply(t *Tensor, f func(float64) float64) *Tensor {
	out := t.clone()
	for i, v := range out.data {
		out.data[i] = f(v)
	}
	return out
}

// Exp returns e**t element-wise.
func Exp(t *Tensor) *Tensor { return Apply(t, math.Exp) }

// Sum returns the sum of all elements.
func Sum(t *Tensor) float64 { return floats.Sum(t.data) }

// Mean returns the arithmetic mean of all elements.
func Mean(t *Tensor) float64 { return floats.Sum(t.data) / float64(len(t.data)) }

// Max returns the largest element.
func Max(t *Tensor) float64 { return floats.Max(t.data) }

// Min returns the smallest element.
func Min(t *Tensor) float64 { return floats.Min(t.data) }

// AbsMax returns the largest absolute element, the usual stability
// indicator in solver logs.
func AbsMax(t *Tensor) float64 { return floats.Norm(t.data, math.Inf(1)) }

// Shift returns t circularly shifted by offset along dim: element i of
// the result is element (i+offset) mod size of t. Finite-difference
// stencils with periodic boundaries are built from shifts.
func Shift(t *Tensor, dim string, offset int) (*Tensor, error) {
	ax := axesOf(t.shape)
	k := ax.find(dim)
	if k < 0 {
		return nil, fmt.Errorf("%w: %q in %v", dims.ErrDimensionNotFound, dim, t.shape)
	}
	size := ax.sizes[k]
	out := Zeros(t.shape)
	coords := make([]int, len(ax.names))
	for lin := range out.data {
		ax.decode(lin, coords)
		coords[k] = ((coords[k]+offset)%size + size) % size
		out.data[lin] = t.data[ax.index(coords)]
	}
	return out, nil
}

// ApproxEqual reports whether a and b have equal shapes and element-wise
// agree within tol.
func ApproxEqual(a, b *Tensor, tol float64) bool {
	if !a.shape.Equal(b.shape) {
		return false
	}
	return floats.EqualApprox(a.data, b.data, tol)
}
