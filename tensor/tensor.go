// Package tensor provides a dense, row-major numeric container addressed
// by named dimensions. It is the reference backend for the dims shape
// algebra: it implements every native combinator hook, so field and
// physics code built on it always takes the fast paths of the dispatcher.
//
// Tensors are immutable: all operations return new tensors and never
// modify their operands.
package tensor

import (
	"fmt"
	"math/rand"

	"github.com/openfluke/warp/dims"
)

// Tensor is a dense float64 array whose axes are the dimensions of a
// labeled shape, stored row-major in the shape's canonical order.
type Tensor struct {
	shape dims.Shape
	data  []float64
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() dims.Shape { return t.shape }

// Data exposes the underlying buffer in row-major canonical order. It
// must be treated as read-only.
func (t *Tensor) Data() []float64 { return t.data }

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// FromData wraps a buffer with a shape. The buffer is copied.
func FromData(shape dims.Shape, data []float64) (*Tensor, error) {
	n, err := shape.Volume()
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", dims.ErrIncompatibleShapes, len(data), shape)
	}
	return &Tensor{shape: shape, data: append([]float64(nil), data...)}, nil
}

// Zeros returns a zero-filled tensor. It panics on shapes with undefined
// sizes, mirroring the dims factories.
func Zeros(shape dims.Shape) *Tensor {
	n, err := shape.Volume()
	if err != nil {
		panic(err)
	}
	return &Tensor{shape: shape, data: make([]float64, n)}
}

// Ones returns a one-filled tensor.
func Ones(shape dims.Shape) *Tensor { return Full(shape, 1) }

// Full returns a tensor filled with value.
func Full(shape dims.Shape, value float64) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Scalar wraps a plain number as a dimensionless tensor.
func Scalar(value float64) *Tensor {
	return &Tensor{shape: dims.EmptyShape, data: []float64{value}}
}

// Randn returns a tensor of normally distributed samples from rng.
func Randn(shape dims.Shape, rng *rand.Rand) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = rng.NormFloat64()
	}
	return t
}

// Linspace returns size evenly spaced values from start to stop
// (inclusive) along the single dimension dim.
func Linspace(start, stop float64, dim dims.Shape) *Tensor {
	t := Zeros(dim)
	n := len(t.data)
	if n == 1 {
		t.data[0] = start
		return t
	}
	step := (stop - start) / float64(n-1)
	for i := range t.data {
		t.data[i] = start + float64(i)*step
	}
	return t
}

// At reads one element by named coordinates. Dimensions of size 1 may be
// omitted.
func (t *Tensor) At(coords map[string]int) (float64, error) {
	ax := axesOf(t.shape)
	idx := make([]int, len(ax.names))
	for i, name := range ax.names {
		c, ok := coords[name]
		if !ok {
			if ax.sizes[i] == 1 {
				continue
			}
			return 0, fmt.Errorf("%w: coordinate for %q", dims.ErrDimensionNotFound, name)
		}
		if c < 0 || c >= ax.sizes[i] {
			return 0, fmt.Errorf("%w: index %d out of range for %q", dims.ErrIncompatibleShapes, c, name)
		}
		idx[i] = c
	}
	return t.data[ax.index(idx)], nil
}

// clone returns a deep copy sharing nothing with t.
func (t *Tensor) clone() *Tensor {
	return &Tensor{shape: t.shape, data: append([]float64(nil), t.data...)}
}

// axes is the positional view of a shape used by the indexing loops.
type axes struct {
	names   []string
	sizes   []int
	strides []int
}

func axesOf(s dims.Shape) axes {
	ds := s.Dims()
	a := axes{
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

func (a axes) volume() int {
	n := 1
	for _, s := range a.sizes {
		n *= s
	}
	return n
}

func (a axes) index(coords []int) int {
	idx := 0
	for i, c := range coords {
		idx += c * a.strides[i]
	}
	return idx
}

func (a axes) decode(linear int, coords []int) {
	for i := range a.sizes {
		coords[i] = linear / a.strides[i]
		linear %= a.strides[i]
	}
}

func (a axes) find(name string) int {
	for i, n := range a.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (t *Tensor) String() string {
	if t.shape.IsEmpty() {
		return fmt.Sprintf("%g", t.data[0])
	}
	return fmt.Sprintf("Tensor%v", t.shape)
}
