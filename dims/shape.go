package dims

import (
	"fmt"
	"sort"
	"strings"
)

// Shape is an ordered collection of uniquely named dimensions. Shapes are
// always held in canonical order: batch, instance, spatial, channel, with
// insertion order preserved inside each group. The zero value is the empty
// shape.
type Shape struct {
	ds []Dim
}

// EmptyShape is the identity element for MergeShapes.
var EmptyShape = Shape{}

// NewShape builds a shape from dimensions, enforcing name uniqueness
// eagerly and normalizing to canonical order.
func NewShape(dimensions ...Dim) (Shape, error) {
	seen := make(map[string]struct{}, len(dimensions))
	ds := make([]Dim, 0, len(dimensions))
	for _, d := range dimensions {
		if d.Name == "" {
			return Shape{}, fmt.Errorf("%w: dimension with empty name", ErrIncompatibleShapes)
		}
		if _, dup := seen[d.Name]; dup {
			return Shape{}, fmt.Errorf("%w: duplicate dimension %q", ErrIncompatibleShapes, d.Name)
		}
		if d.Items != nil && len(d.Items) != d.Size {
			d.Size = len(d.Items)
		}
		seen[d.Name] = struct{}{}
		ds = append(ds, d.clone())
	}
	canonicalize(ds)
	return Shape{ds: ds}, nil
}

// shapeOf wraps already-validated dimensions.
func shapeOf(ds []Dim) Shape {
	canonicalize(ds)
	return Shape{ds: ds}
}

func canonicalize(ds []Dim) {
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Type < ds[j].Type })
}

// Len returns the number of dimensions.
func (s Shape) Len() int { return len(s.ds) }

// IsEmpty reports whether the shape has no dimensions.
func (s Shape) IsEmpty() bool { return len(s.ds) == 0 }

// Dims returns a copy of the dimensions in canonical order.
func (s Shape) Dims() []Dim {
	out := make([]Dim, len(s.ds))
	for i, d := range s.ds {
		out[i] = d.clone()
	}
	return out
}

// Dim returns the i-th dimension in canonical order.
func (s Shape) Dim(i int) Dim { return s.ds[i].clone() }

// IndexOf returns the position of name, or -1.
func (s Shape) IndexOf(name string) int {
	for i, d := range s.ds {
		if d.Name == name {
			return i
		}
	}
	return -1
}

// Has reports whether the shape contains the named dimension.
func (s Shape) Has(name string) bool { return s.IndexOf(name) >= 0 }

// Get returns the named dimension.
func (s Shape) Get(name string) (Dim, error) {
	if i := s.IndexOf(name); i >= 0 {
		return s.ds[i].clone(), nil
	}
	return Dim{}, fmt.Errorf("%w: %q in %v", ErrDimensionNotFound, name, s)
}

// GetSize returns the size of the named dimension.
func (s Shape) GetSize(name string) (int, error) {
	d, err := s.Get(name)
	if err != nil {
		return 0, err
	}
	return d.Size, nil
}

// ItemNames returns the item names of the named dimension, or nil if the
// dimension is anonymous.
func (s Shape) ItemNames(name string) ([]string, error) {
	d, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return d.Items, nil
}

// Names lists dimension names in canonical order.
func (s Shape) Names() []string {
	out := make([]string, len(s.ds))
	for i, d := range s.ds {
		out[i] = d.Name
	}
	return out
}

// Volume returns the product of all sizes. It fails if any size is
// undefined.
func (s Shape) Volume() (int, error) {
	v := 1
	for _, d := range s.ds {
		if !d.Defined() {
			return 0, fmt.Errorf("%w: size of %q is undefined", ErrIncompatibleShapes, d.Name)
		}
		v *= d.Size
	}
	return v, nil
}

// WithDimSize replaces one dimension's size, dropping its item names and
// preserving its position.
func (s Shape) WithDimSize(name string, size int) (Shape, error) {
	i := s.IndexOf(name)
	if i < 0 {
		return Shape{}, fmt.Errorf("%w: %q in %v", ErrDimensionNotFound, name, s)
	}
	ds := s.Dims()
	ds[i].Size = size
	ds[i].Items = nil
	return Shape{ds: ds}, nil
}

// WithItemNames replaces one dimension's item names (and hence its size),
// preserving its position.
func (s Shape) WithItemNames(name string, items ...string) (Shape, error) {
	i := s.IndexOf(name)
	if i < 0 {
		return Shape{}, fmt.Errorf("%w: %q in %v", ErrDimensionNotFound, name, s)
	}
	ds := s.Dims()
	ds[i].Items = append([]string(nil), items...)
	ds[i].Size = len(items)
	return Shape{ds: ds}, nil
}

// Without returns the shape with the listed dimensions removed. Names not
// present are ignored.
func (s Shape) Without(names ...string) Shape {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	var ds []Dim
	for _, d := range s.ds {
		if _, gone := drop[d.Name]; !gone {
			ds = append(ds, d.clone())
		}
	}
	return Shape{ds: ds}
}

// ByType keeps only dimensions of the given type.
func (s Shape) ByType(t DimType) Shape {
	var ds []Dim
	for _, d := range s.ds {
		if d.Type == t {
			ds = append(ds, d.clone())
		}
	}
	return Shape{ds: ds}
}

// Except drops all dimensions of the given type.
func (s Shape) Except(t DimType) Shape {
	var ds []Dim
	for _, d := range s.ds {
		if d.Type != t {
			ds = append(ds, d.clone())
		}
	}
	return Shape{ds: ds}
}

// Equal compares dimensions positionally. Because shapes are always kept
// in canonical order, this is the natural equality.
func (s Shape) Equal(other Shape) bool {
	if len(s.ds) != len(other.ds) {
		return false
	}
	for i := range s.ds {
		if !s.ds[i].Equal(other.ds[i]) {
			return false
		}
	}
	return true
}

// EqualIgnoringOrder compares the dimension sets by name, disregarding
// position.
func (s Shape) EqualIgnoringOrder(other Shape) bool {
	if len(s.ds) != len(other.ds) {
		return false
	}
	for _, d := range s.ds {
		i := other.IndexOf(d.Name)
		if i < 0 || !d.Equal(other.ds[i]) {
			return false
		}
	}
	return true
}

// And merges shapes, panicking on conflicts. It is the convenience form of
// MergeShapes for building shapes from the typed factories:
//
//	dims.Spatial("x=5").And(dims.Batch("b=2"))
func (s Shape) And(others ...Shape) Shape {
	merged, err := MergeShapes(append([]Shape{s}, others...)...)
	if err != nil {
		panic(err)
	}
	return merged
}

// MergeShapes unions all dimensions of the given shapes. Same-named
// dimensions must unify: equal sizes, or one side undefined, or item names
// against a matching anonymous size. The result is in canonical order with
// first-seen order inside each type group.
func MergeShapes(shapes ...Shape) (Shape, error) {
	var ds []Dim
	index := map[string]int{}
	for _, s := range shapes {
		for _, d := range s.ds {
			if i, ok := index[d.Name]; ok {
				u, err := unifyDims(ds[i], d)
				if err != nil {
					return Shape{}, err
				}
				ds[i] = u
			} else {
				index[d.Name] = len(ds)
				ds = append(ds, d.clone())
			}
		}
	}
	return shapeOf(ds), nil
}

func unifyDims(a, b Dim) (Dim, error) {
	if a.Type != b.Type {
		return Dim{}, fmt.Errorf("%w: %q is %s and %s", ErrIncompatibleShapes, a.Name, a.Type, b.Type)
	}
	switch {
	case !a.Defined():
		return b.clone(), nil
	case !b.Defined():
		return a.clone(), nil
	case a.Size != b.Size:
		return Dim{}, fmt.Errorf("%w: %q has sizes %d and %d", ErrIncompatibleShapes, a.Name, a.Size, b.Size)
	}
	if a.Items != nil && b.Items != nil {
		for i := range a.Items {
			if a.Items[i] != b.Items[i] {
				return Dim{}, fmt.Errorf("%w: %q has item names %v and %v",
					ErrIncompatibleShapes, a.Name, a.Items, b.Items)
			}
		}
	}
	if a.Items == nil && b.Items != nil {
		return b.clone(), nil
	}
	return a.clone(), nil
}

func (s Shape) String() string {
	if len(s.ds) == 0 {
		return "()"
	}
	parts := make([]string, len(s.ds))
	for i, d := range s.ds {
		parts[i] = d.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
