package dims

import (
	"errors"
	"fmt"
	"strings"
)

// Generic combinators over shapable values. Every function follows the
// same dispatch ladder: try the operand's native hook, fall back to a
// generic strategy built from the other capabilities, recurse into
// composite values, and only then give up with ErrNotShapable. A native
// hook that returns errors.ErrUnsupported is treated exactly like a
// missing hook; the sentinel never escapes these functions.

// ShapeOf derives the shape of any shaped value. For composites it is the
// merge of the children's shapes.
func ShapeOf(v any) (Shape, error) {
	if s, ok := v.(Shaped); ok {
		return s.Shape(), nil
	}
	if children, _, ok := treeChildren(v); ok {
		shapes := make([]Shape, 0, len(children))
		for _, child := range children {
			cs, err := ShapeOf(child)
			if err != nil {
				return Shape{}, err
			}
			shapes = append(shapes, cs)
		}
		return MergeShapes(shapes...)
	}
	return Shape{}, fmt.Errorf("%w: %T has no shape", ErrNotShapable, v)
}

// Slice applies a keyed selection to any sliceable value. Composites
// slice each child by the part of the selection its shape mentions.
func Slice(value any, sel Dict) (any, error) {
	if sl, ok := value.(Sliceable); ok {
		out, err := sl.Slice(sel)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	if _, _, ok := treeChildren(value); ok {
		s, err := ShapeOf(value)
		if err != nil {
			return nil, err
		}
		for name := range sel {
			if !s.Has(name) {
				return nil, fmt.Errorf("%w: %q in %v", ErrDimensionNotFound, name, s)
			}
		}
		return mapTree(value, func(child any) (any, error) {
			cs, err := ShapeOf(child)
			if err != nil {
				return nil, err
			}
			sub := Dict{}
			for name, choice := range sel {
				if cs.Has(name) {
					sub[name] = choice
				}
			}
			if len(sub) == 0 {
				return child, nil
			}
			return Slice(child, sub)
		})
	}
	return nil, fmt.Errorf("%w: cannot slice %T", ErrNotShapable, value)
}

// =============================================================================
// Unstack
// =============================================================================

// Unstack splits value along one or more named dimensions into a flat
// slice. Dimensions are iterated in the order given, so "d1,d2" yields
// d1-major ordering with size(d1)*size(d2) entries.
func Unstack(value any, order string) ([]any, error) {
	names := ParseDimOrder(order)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no dimensions to unstack", ErrDimensionNotFound)
	}
	result := []any{value}
	for _, name := range names {
		next := make([]any, 0, len(result))
		for _, v := range result {
			parts, err := unstackSingle(v, name)
			if err != nil {
				return nil, err
			}
			next = append(next, parts...)
		}
		result = next
	}
	return result, nil
}

func unstackSingle(value any, dim string) ([]any, error) {
	if u, ok := value.(Unstacker); ok {
		parts, err := u.UnstackAlong(dim)
		if err == nil {
			out := make([]any, len(parts))
			for i, p := range parts {
				out[i] = p
			}
			return out, nil
		}
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
	}
	s, err := ShapeOf(value)
	if err != nil {
		return nil, err
	}
	size, err := s.GetSize(dim)
	if err != nil {
		return nil, err
	}
	if sl, ok := value.(Sliceable); ok {
		out := make([]any, size)
		for i := 0; i < size; i++ {
			part, err := sl.Slice(Dict{dim: At(i)})
			if err != nil {
				return nil, err
			}
			out[i] = part
		}
		return out, nil
	}
	if children, rebuild, ok := treeChildren(value); ok {
		parts := make([][]any, len(children))
		for k, child := range children {
			cs, err := ShapeOf(child)
			if err != nil {
				return nil, err
			}
			if !cs.Has(dim) {
				continue
			}
			p, err := unstackSingle(child, dim)
			if err != nil {
				return nil, err
			}
			parts[k] = p
		}
		out := make([]any, size)
		for i := 0; i < size; i++ {
			repl := make([]any, len(children))
			for k, child := range children {
				if parts[k] == nil {
					repl[k] = child
				} else {
					repl[k] = parts[k][i]
				}
			}
			node, err := rebuild(repl)
			if err != nil {
				return nil, err
			}
			out[i] = node
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: cannot unstack %T", ErrNotShapable, value)
}

// =============================================================================
// Stack
// =============================================================================

// Stack combines same-shaped values into one higher-rank value with the
// new dimension dim. If dim has no size yet it becomes len(values); a
// multi-dimension dim consumes the values in row-major order.
func Stack(values []any, dim Shape) (any, error) {
	return stack(values, dim, nil, false)
}

// StackNamed is Stack with explicit item names for the new dimension, the
// ordered-mapping form: keys[i] labels values[i].
func StackNamed(keys []string, values []any, dim Shape) (any, error) {
	return stack(values, dim, keys, false)
}

// StackExpand is Stack with value expansion: lower-rank operands are
// first broadcast to the merged shape of all operands.
func StackExpand(values []any, dim Shape) (any, error) {
	return stack(values, dim, nil, true)
}

func stack(values []any, dim Shape, keys []string, expandValues bool) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: stack of no values", ErrIncompatibleShapes)
	}
	if dim.Len() == 0 {
		return nil, fmt.Errorf("%w: stack needs a target dimension", ErrIncompatibleShapes)
	}
	if dim.Len() > 1 {
		if keys != nil {
			return nil, fmt.Errorf("%w: item names need a single target dimension, got %v", ErrIncompatibleShapes, dim)
		}
		vol, err := dim.Volume()
		if err != nil {
			return nil, err
		}
		if vol != len(values) {
			return nil, fmt.Errorf("%w: %d values do not fill %v", ErrIncompatibleShapes, len(values), dim)
		}
		first := dim.Dim(0)
		flat := Dim{Name: first.Name, Type: first.Type, Size: len(values)}
		stacked, err := stack(values, shapeOfDim(flat), nil, expandValues)
		if err != nil {
			return nil, err
		}
		return UnpackDim(stacked, flat.Name, dim)
	}

	d := dim.Dim(0)
	if keys != nil {
		if len(keys) != len(values) {
			return nil, fmt.Errorf("%w: %d keys for %d values", ErrIncompatibleShapes, len(keys), len(values))
		}
		d.Items = append([]string(nil), keys...)
		d.Size = len(keys)
	} else if !d.Defined() {
		d.Size = len(values)
	} else if d.Size != len(values) {
		return nil, fmt.Errorf("%w: %d values for %v", ErrIncompatibleShapes, len(values), d)
	}

	shapes := make([]Shape, len(values))
	for i, v := range values {
		s, err := ShapeOf(v)
		if err != nil {
			return nil, err
		}
		shapes[i] = s
	}
	merged, err := MergeShapes(shapes...)
	if err != nil {
		return nil, err
	}
	if expandValues {
		values = append([]any(nil), values...)
		for i, v := range values {
			ev, err := Expand(v, merged)
			if err != nil {
				return nil, err
			}
			values[i] = ev
		}
	} else {
		for i, s := range shapes {
			if !s.EqualIgnoringOrder(merged) {
				return nil, fmt.Errorf("%w: operand %d has shape %v, want %v", ErrIncompatibleShapes, i, s, merged)
			}
		}
	}

	dimShape := shapeOfDim(d)

	// Native hook on the first operand.
	if st, ok := values[0].(Stacker); ok {
		if svals, ok := asSliceables(values); ok {
			out, err := st.StackAlong(svals, dimShape)
			if err == nil {
				return out, nil
			}
			if !errors.Is(err, errors.ErrUnsupported) {
				return nil, err
			}
		}
	}

	// Generic path: broadcast every operand to a unit slot and join them.
	if out, ok, err := stackByConcat(values, d); ok || err != nil {
		return out, err
	}

	// Composite path: stack the payloads and reconstruct.
	if _, _, ok := treeChildren(values[0]); ok {
		return zipTree(values, func(children []any) (any, error) {
			return stack(children, dimShape, nil, false)
		})
	}
	return nil, fmt.Errorf("%w: cannot stack %T", ErrNotShapable, values[0])
}

// stackByConcat builds a stack from native expand + concat hooks: each
// operand is expanded with a size-1 slot of the new dimension, then all
// slots are concatenated. ok is false when the operands lack the hooks.
func stackByConcat(values []any, d Dim) (any, bool, error) {
	expanded := make([]Sliceable, len(values))
	for i, v := range values {
		e, ok := v.(Expander)
		if !ok {
			return nil, false, nil
		}
		one := Dim{Name: d.Name, Type: d.Type, Size: 1}
		if d.Items != nil {
			one.Items = []string{d.Items[i]}
		}
		ev, err := e.ExpandTo(shapeOfDim(one))
		if err != nil {
			if errors.Is(err, errors.ErrUnsupported) {
				return nil, false, nil
			}
			return nil, false, err
		}
		expanded[i] = ev
	}
	c, ok := expanded[0].(Concater)
	if !ok {
		return nil, false, nil
	}
	out, err := c.ConcatAlong(expanded, d.Name)
	if err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return out, true, nil
}

// =============================================================================
// Concat
// =============================================================================

// Concat joins values end-to-end along dim. Sizes along dim sum; all
// other dimensions must match exactly. Operands that lack dim are given a
// size-1 slot first.
func Concat(values []any, dim string) (any, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: concat of no values", ErrIncompatibleShapes)
	}
	shapes := make([]Shape, len(values))
	var along *Dim
	for i, v := range values {
		s, err := ShapeOf(v)
		if err != nil {
			return nil, err
		}
		shapes[i] = s
		if along == nil && s.Has(dim) {
			d, _ := s.Get(dim)
			along = &d
		}
	}
	if along == nil {
		return nil, fmt.Errorf("%w: %q in any operand", ErrDimensionNotFound, dim)
	}
	values = append([]any(nil), values...)
	for i, v := range values {
		if !shapes[i].Has(dim) {
			ev, err := Expand(v, shapeOfDim(Dim{Name: dim, Type: along.Type, Size: 1}))
			if err != nil {
				return nil, err
			}
			values[i] = ev
			shapes[i], err = ShapeOf(ev)
			if err != nil {
				return nil, err
			}
		}
	}
	rest := shapes[0].Without(dim)
	for i, s := range shapes[1:] {
		if !s.Without(dim).EqualIgnoringOrder(rest) {
			return nil, fmt.Errorf("%w: operand %d has shape %v, incompatible with %v along %q",
				ErrIncompatibleShapes, i+1, s, shapes[0], dim)
		}
	}

	if c, ok := values[0].(Concater); ok {
		if svals, ok := asSliceables(values); ok {
			out, err := c.ConcatAlong(svals, dim)
			if err == nil {
				return out, nil
			}
			if !errors.Is(err, errors.ErrUnsupported) {
				return nil, err
			}
		}
	}

	if _, _, ok := treeChildren(values[0]); ok {
		return zipTree(values, func(children []any) (any, error) {
			return Concat(children, dim)
		})
	}

	// Generic path: split every operand and restack all slices.
	var pieces []any
	total := 0
	var items []string
	haveItems := true
	for i, v := range values {
		parts, err := Unstack(v, dim)
		if err != nil {
			return nil, err
		}
		pieces = append(pieces, parts...)
		size, _ := shapes[i].GetSize(dim)
		total += size
		if names, _ := shapes[i].ItemNames(dim); names != nil {
			items = append(items, names...)
		} else {
			haveItems = false
		}
	}
	nd := Dim{Name: dim, Type: along.Type, Size: total}
	if haveItems && len(items) == total {
		nd.Items = items
	}
	return stack(pieces, shapeOfDim(nd), nil, false)
}

// =============================================================================
// Expand
// =============================================================================

// Expand broadcasts value to additionally cover extra, merged with the
// current shape. Expanding by dimensions already present is a no-op.
func Expand(value any, extra Shape) (any, error) {
	cur, err := ShapeOf(value)
	if err != nil {
		return nil, err
	}
	merged, err := MergeShapes(cur, extra)
	if err != nil {
		return nil, err
	}
	if merged.EqualIgnoringOrder(cur) {
		return value, nil
	}
	if e, ok := value.(Expander); ok {
		out, err := e.ExpandTo(extra)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
	}
	if _, _, ok := treeChildren(value); ok {
		return mapTree(value, func(child any) (any, error) {
			return Expand(child, extra)
		})
	}
	// Generic path: stack copies of the value along each missing dimension.
	out := value
	for _, d := range merged.Dims() {
		if cur.Has(d.Name) {
			continue
		}
		if !d.Defined() {
			return nil, fmt.Errorf("%w: cannot expand by %v with undefined size", ErrIncompatibleShapes, d)
		}
		copies := make([]any, d.Size)
		for i := range copies {
			copies[i] = out
		}
		stacked, err := stack(copies, shapeOfDim(d), nil, false)
		if err != nil {
			return nil, err
		}
		out = stacked
	}
	return out, nil
}

// =============================================================================
// Rename / retype
// =============================================================================

// RenameDims renames and retypes the dimension old according to the
// single-dimension shape to, keeping size and item names unless to
// carries its own. Only metadata changes; element data is untouched.
func RenameDims(value any, old string, to Shape) (any, error) {
	if to.Len() != 1 {
		return nil, fmt.Errorf("%w: rename target must be a single dimension, got %v", ErrIncompatibleShapes, to)
	}
	s, err := ShapeOf(value)
	if err != nil {
		return nil, err
	}
	od, err := s.Get(old)
	if err != nil {
		return nil, err
	}
	td := to.Dim(0)
	if td.Items != nil && len(td.Items) != od.Size {
		return nil, fmt.Errorf("%w: cannot rename %v to %v with %d item names",
			ErrIncompatibleShapes, od, td, len(td.Items))
	}
	nd := Dim{Name: td.Name, Type: td.Type, Size: od.Size, Items: od.Items}
	if td.Items != nil {
		nd.Items = td.Items
	}
	return renameDim(value, old, nd)
}

func renameDim(value any, old string, nd Dim) (any, error) {
	if r, ok := value.(Renamer); ok {
		out, err := r.RenameDim(old, nd)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
	}
	if _, _, ok := treeChildren(value); ok {
		return mapTree(value, func(child any) (any, error) {
			cs, err := ShapeOf(child)
			if err != nil {
				return nil, err
			}
			if !cs.Has(old) {
				return child, nil
			}
			return renameDim(child, old, nd)
		})
	}
	// Generic path: split along the old dimension and restack along the new.
	parts, err := Unstack(value, old)
	if err != nil {
		return nil, err
	}
	return stack(parts, shapeOfDim(nd), nil, false)
}

// =============================================================================
// Pack / unpack
// =============================================================================

// PackDims merges the dimensions listed in order (not necessarily
// contiguous) into one new dimension whose size is the product of the
// merged sizes, consuming them first-listed-major. An empty order
// broadcasts the packed dimension in instead (un-squeeze).
func PackDims(value any, order string, packed Shape) (any, error) {
	if packed.Len() != 1 {
		return nil, fmt.Errorf("%w: pack target must be a single dimension, got %v", ErrIncompatibleShapes, packed)
	}
	pd := packed.Dim(0)
	names := ParseDimOrder(order)
	if len(names) == 0 {
		if !pd.Defined() {
			pd.Size = 1
		}
		return Expand(value, shapeOfDim(pd))
	}
	s, err := ShapeOf(value)
	if err != nil {
		return nil, err
	}
	prod := 1
	for _, name := range names {
		size, err := s.GetSize(name)
		if err != nil {
			return nil, fmt.Errorf("%w: pack of %v: %q missing from %v", ErrIncompatibleShapes, names, name, s)
		}
		prod *= size
	}
	if len(names) == 1 {
		return RenameDims(value, names[0], packed)
	}
	if pd.Defined() && pd.Size != prod {
		return nil, fmt.Errorf("%w: packed size %d != product %d", ErrIncompatibleShapes, pd.Size, prod)
	}
	pd.Size = prod
	pd.Items = nil

	if p, ok := value.(Packer); ok {
		out, err := p.PackInto(names, pd)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
	}
	if _, _, ok := treeChildren(value); ok {
		return mapTree(value, func(child any) (any, error) {
			cs, err := ShapeOf(child)
			if err != nil {
				return nil, err
			}
			var missing []Shape
			present := false
			for _, name := range names {
				if cs.Has(name) {
					present = true
				} else {
					d, _ := s.Get(name)
					missing = append(missing, shapeOfDim(d))
				}
			}
			if !present {
				return child, nil
			}
			if len(missing) > 0 {
				child, err = Expand(child, EmptyShape.And(missing...))
				if err != nil {
					return nil, err
				}
			}
			return PackDims(child, order, packed)
		})
	}
	// Generic path: split along all packed dimensions in the given order
	// and restack flat.
	parts, err := Unstack(value, strings.Join(names, ","))
	if err != nil {
		return nil, err
	}
	return stack(parts, shapeOfDim(pd), nil, false)
}

// UnpackDim is the inverse of PackDims: it splits dim into the
// dimensions of unpacked, whose sizes must multiply to the original
// size. An empty unpacked shape squeezes a size-1 dimension away; a
// single target dimension degenerates to a rename.
func UnpackDim(value any, dim string, unpacked Shape) (any, error) {
	s, err := ShapeOf(value)
	if err != nil {
		return nil, err
	}
	size, err := s.GetSize(dim)
	if err != nil {
		return nil, err
	}
	if unpacked.Len() == 0 {
		if size != 1 {
			return nil, fmt.Errorf("%w: cannot squeeze %q of size %d", ErrIncompatibleShapes, dim, size)
		}
		return Slice(value, Dict{dim: At(0)})
	}
	if unpacked.Len() == 1 {
		return RenameDims(value, dim, unpacked)
	}
	vol, err := unpacked.Volume()
	if err != nil {
		return nil, err
	}
	if vol != size {
		return nil, fmt.Errorf("%w: cannot unpack %q of size %d into %v", ErrIncompatibleShapes, dim, size, unpacked)
	}

	if u, ok := value.(Unpacker); ok {
		out, err := u.UnpackInto(dim, unpacked)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, errors.ErrUnsupported) {
			return nil, err
		}
	}
	if _, _, ok := treeChildren(value); ok {
		return mapTree(value, func(child any) (any, error) {
			cs, err := ShapeOf(child)
			if err != nil {
				return nil, err
			}
			if !cs.Has(dim) {
				return child, nil
			}
			return UnpackDim(child, dim, unpacked)
		})
	}
	// Generic path: split along dim and regroup, first target dimension
	// varying slowest.
	parts, err := Unstack(value, dim)
	if err != nil {
		return nil, err
	}
	return regroup(parts, unpacked.Dims())
}

func regroup(parts []any, targets []Dim) (any, error) {
	if len(targets) == 1 {
		return stack(parts, shapeOfDim(targets[0]), nil, false)
	}
	group := len(parts) / targets[0].Size
	subs := make([]any, targets[0].Size)
	for g := range subs {
		sub, err := regroup(parts[g*group:(g+1)*group], targets[1:])
		if err != nil {
			return nil, err
		}
		subs[g] = sub
	}
	return stack(subs, shapeOfDim(targets[0]), nil, false)
}

// Flatten collapses all non-batch dimensions (or all dimensions when
// flattenBatch is set) into the single dimension flat, in shape order.
func Flatten(value any, flat Shape, flattenBatch bool) (any, error) {
	s, err := ShapeOf(value)
	if err != nil {
		return nil, err
	}
	pool := s
	if !flattenBatch {
		pool = s.Except(TypeBatch)
	}
	return PackDims(value, strings.Join(pool.Names(), ","), flat)
}

// =============================================================================
// Helpers
// =============================================================================

func shapeOfDim(d Dim) Shape {
	return shapeOf([]Dim{d.clone()})
}

func asSliceables(values []any) ([]Sliceable, bool) {
	out := make([]Sliceable, len(values))
	for i, v := range values {
		sl, ok := v.(Sliceable)
		if !ok {
			return nil, false
		}
		out[i] = sl
	}
	return out, true
}

// zipTree combines several composites of identical structure child by
// child and reconstructs using the first composite.
func zipTree(values []any, combine func(children []any) (any, error)) (any, error) {
	first, rebuild, ok := treeChildren(values[0])
	if !ok {
		return nil, fmt.Errorf("%w: %T is not traversable", ErrNotShapable, values[0])
	}
	rows := make([][]any, len(values))
	rows[0] = first
	for i, v := range values[1:] {
		children, _, ok := treeChildren(v)
		if !ok || len(children) != len(first) {
			return nil, fmt.Errorf("%w: mismatched composite structure %T", ErrIncompatibleShapes, v)
		}
		rows[i+1] = children
	}
	repl := make([]any, len(first))
	for k := range first {
		column := make([]any, len(values))
		for i := range values {
			column[i] = rows[i][k]
		}
		out, err := combine(column)
		if err != nil {
			return nil, err
		}
		repl[k] = out
	}
	return rebuild(repl)
}
