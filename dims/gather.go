package dims

import "fmt"

type selKind uint8

const (
	selIndex selKind = iota
	selSpan
	selNames
)

// Selection picks elements along one dimension: a single index, a
// half-open span, or a list of item names. A single index (and a single
// item name) removes the dimension from the result; spans and multi-name
// selections keep it.
type Selection struct {
	kind        selKind
	index       int
	start, stop int
	names       []string
}

// At selects one element by index, removing the dimension.
func At(i int) Selection { return Selection{kind: selIndex, index: i} }

// Span selects the half-open index range [start, stop), keeping the
// dimension with the reduced size.
func Span(start, stop int) Selection { return Selection{kind: selSpan, start: start, stop: stop} }

// Names selects elements by item name. A single name removes the
// dimension; several keep it with exactly those item names, in order.
func Names(names ...string) Selection { return Selection{kind: selNames, names: names} }

// Dict maps dimension names to selections, the keyed form all slicing
// goes through.
type Dict = map[string]Selection

// Indices resolves the selection against a dimension to concrete element
// indices and the dimension kept in the result (keep=false when the
// dimension is consumed).
func (sel Selection) Indices(d Dim) (idx []int, kept Dim, keep bool, err error) {
	switch sel.kind {
	case selIndex:
		i := sel.index
		if i < 0 {
			i += d.Size
		}
		if i < 0 || i >= d.Size {
			return nil, Dim{}, false, fmt.Errorf("%w: index %d out of range for %v", ErrIncompatibleShapes, sel.index, d)
		}
		return []int{i}, Dim{}, false, nil
	case selSpan:
		start, stop := sel.start, sel.stop
		if start < 0 {
			start += d.Size
		}
		if stop < 0 {
			stop += d.Size
		}
		if start < 0 || stop > d.Size || start > stop {
			return nil, Dim{}, false, fmt.Errorf("%w: span [%d:%d) out of range for %v", ErrIncompatibleShapes, sel.start, sel.stop, d)
		}
		idx = make([]int, 0, stop-start)
		for i := start; i < stop; i++ {
			idx = append(idx, i)
		}
		kept = d.clone()
		kept.Size = len(idx)
		if d.Items != nil {
			kept.Items = append([]string(nil), d.Items[start:stop]...)
		}
		return idx, kept, true, nil
	case selNames:
		if d.Items == nil {
			return nil, Dim{}, false, fmt.Errorf("%w: dimension %q has no item names", ErrIncompatibleShapes, d.Name)
		}
		for _, n := range sel.names {
			found := -1
			for i, item := range d.Items {
				if item == n {
					found = i
					break
				}
			}
			if found < 0 {
				return nil, Dim{}, false, fmt.Errorf("%w: item %q in %v", ErrDimensionNotFound, n, d)
			}
			idx = append(idx, found)
		}
		if len(idx) == 1 {
			return idx, Dim{}, false, nil
		}
		kept = Dim{Name: d.Name, Type: d.Type, Size: len(idx), Items: append([]string(nil), sel.names...)}
		return idx, kept, true, nil
	}
	return nil, Dim{}, false, fmt.Errorf("%w: invalid selection", ErrIncompatibleShapes)
}

// AfterGather computes the shape that results from indexing with sel.
// Dimensions selected down to a single element by index or single item
// name are removed; spans and multi-name selections keep the dimension
// with its reduced size and names.
func (s Shape) AfterGather(sel Dict) (Shape, error) {
	var ds []Dim
	for _, d := range s.ds {
		choice, ok := sel[d.Name]
		if !ok {
			ds = append(ds, d.clone())
			continue
		}
		_, kept, keep, err := choice.Indices(d)
		if err != nil {
			return Shape{}, err
		}
		if keep {
			ds = append(ds, kept)
		}
	}
	for name := range sel {
		if !s.Has(name) {
			return Shape{}, fmt.Errorf("%w: %q in %v", ErrDimensionNotFound, name, s)
		}
	}
	return Shape{ds: ds}, nil
}

// SliceSpec resolves an item-name spec such as "x" or "y,z" against a
// value's shape: it finds the dimension whose item names contain every
// listed name and returns the selection dict for it. This is the loose,
// name-only form of slicing used by field code.
func SliceSpec(v Shaped, spec string) (Dict, error) {
	names := ParseDimOrder(spec)
	if len(names) == 0 {
		return Dict{}, nil
	}
	s := v.Shape()
	for _, d := range s.ds {
		if d.Items == nil {
			continue
		}
		all := true
		for _, n := range names {
			found := false
			for _, item := range d.Items {
				if item == n {
					found = true
					break
				}
			}
			if !found {
				all = false
				break
			}
		}
		if all {
			return Dict{d.Name: Names(names...)}, nil
		}
	}
	return nil, fmt.Errorf("%w: no dimension with items %v in %v", ErrDimensionNotFound, names, s)
}
