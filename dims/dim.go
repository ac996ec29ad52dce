// Package dims implements a labeled-dimension shape algebra for numeric
// field data. Values are described by named, typed dimensions (batch,
// instance, spatial, channel) instead of positional axes, and generic
// combinators (Stack, Concat, Expand, Unstack, PackDims, UnpackDim, ...)
// operate polymorphically over any container type that exposes the
// capability interfaces in capability.go.
//
// Shapes and dimensions are immutable value objects: every operation
// returns a fresh Shape and never mutates its inputs, so concurrent use
// needs no synchronization.
//
// Example:
//
//	s := dims.Spatial("x=64,y=64").And(dims.Batch("b=8"))
//	grid := tensor.Zeros(s)
//	parts, _ := dims.Unstack(grid, "b")        // 8 values of shape (x=64, y=64)
//	flat, _ := dims.Flatten(grid, dims.Instance("points"), false)
package dims

import (
	"fmt"
	"strconv"
	"strings"
)

// DimType tags a dimension with its broadcast/merge role.
type DimType uint8

const (
	TypeBatch    DimType = 0 // independent parallel instances
	TypeInstance DimType = 1 // unordered collections (particles, points)
	TypeSpatial  DimType = 2 // ordered grid axes
	TypeChannel  DimType = 3 // per-element components (vector fields)
)

// typeNames is indexed by DimType and also fixes the canonical group order.
var typeNames = [...]string{"batch", "instance", "spatial", "channel"}

func (t DimType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("DimType(%d)", uint8(t))
}

// SizeUndefined marks a dimension whose size is determined later, e.g. a
// stack target created with Batch("b").
const SizeUndefined = -1

// Dim is a single named axis. Items, when non-nil, gives an identity to
// every slot along the axis and implies Size == len(Items). A Dim with
// nil Items is anonymous.
type Dim struct {
	Name  string
	Type  DimType
	Size  int
	Items []string
}

// NewDim builds a dimension. Passing item names overrides size.
func NewDim(name string, t DimType, size int, items ...string) Dim {
	d := Dim{Name: name, Type: t, Size: size}
	if len(items) > 0 {
		d.Items = append([]string(nil), items...)
		d.Size = len(d.Items)
	}
	return d
}

// Defined reports whether the size is known.
func (d Dim) Defined() bool { return d.Size != SizeUndefined }

// Equal compares name, type, size and item names.
func (d Dim) Equal(other Dim) bool {
	if d.Name != other.Name || d.Type != other.Type || d.Size != other.Size {
		return false
	}
	if len(d.Items) != len(other.Items) {
		return false
	}
	for i := range d.Items {
		if d.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}

func (d Dim) String() string {
	switch {
	case d.Items != nil:
		return fmt.Sprintf("%s=(%s) %s", d.Name, strings.Join(d.Items, ","), d.Type)
	case !d.Defined():
		return fmt.Sprintf("%s=? %s", d.Name, d.Type)
	default:
		return fmt.Sprintf("%s=%d %s", d.Name, d.Size, d.Type)
	}
}

// clone returns a deep copy so derived shapes never alias item slices.
func (d Dim) clone() Dim {
	if d.Items != nil {
		d.Items = append([]string(nil), d.Items...)
	}
	return d
}

// Batch parses a spec string into a batch-typed shape.
//
// Spec syntax (shared by all four factories):
//
//	"b"              one dimension, size undefined
//	"b=2"            one dimension, size 2
//	"a=3,b=2"        two dimensions
//	"vector=(x,y,z)" one dimension with item names x, y, z
//
// The factories panic on malformed specs; specs are written by the
// programmer, not parsed from input.
func Batch(spec string) Shape { return parseSpec(TypeBatch, spec) }

// Instance parses a spec string into an instance-typed shape.
func Instance(spec string) Shape { return parseSpec(TypeInstance, spec) }

// Spatial parses a spec string into a spatial-typed shape.
func Spatial(spec string) Shape { return parseSpec(TypeSpatial, spec) }

// Channel parses a spec string into a channel-typed shape.
func Channel(spec string) Shape { return parseSpec(TypeChannel, spec) }

func parseSpec(t DimType, spec string) Shape {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return EmptyShape
	}
	var ds []Dim
	for _, token := range splitTopLevel(spec) {
		name, value, hasValue := strings.Cut(token, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			panic(fmt.Sprintf("dims: empty dimension name in spec %q", spec))
		}
		d := Dim{Name: name, Type: t, Size: SizeUndefined}
		if hasValue {
			value = strings.TrimSpace(value)
			if strings.HasPrefix(value, "(") && strings.HasSuffix(value, ")") {
				inner := value[1 : len(value)-1]
				for _, item := range strings.Split(inner, ",") {
					d.Items = append(d.Items, strings.TrimSpace(item))
				}
				d.Size = len(d.Items)
			} else {
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					panic(fmt.Sprintf("dims: invalid size %q in spec %q", value, spec))
				}
				d.Size = n
			}
		}
		ds = append(ds, d)
	}
	s, err := NewShape(ds...)
	if err != nil {
		panic(fmt.Sprintf("dims: invalid spec %q: %v", spec, err))
	}
	return s
}

// splitTopLevel splits on commas that are not inside parentheses.
func splitTopLevel(spec string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range spec {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(spec[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(spec[start:]))
	return parts
}

// ParseDimOrder splits a comma-separated dimension list such as "x,b".
// An empty string yields no names.
func ParseDimOrder(order string) []string {
	order = strings.TrimSpace(order)
	if order == "" {
		return nil
	}
	parts := strings.Split(order, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
