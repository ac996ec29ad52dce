package dims

// Capability interfaces. A container type opts into the dispatcher by
// implementing Shaped and Sliceable, plus any subset of the native
// combinator hooks. The dispatcher always asks for a native hook first
// and falls back to a generic strategy built on slicing when the hook is
// missing or declines by returning errors.ErrUnsupported.

// Shaped is anything that can report its shape.
type Shaped interface {
	Shape() Shape
}

// Sliceable is a Shaped value supporting keyed item selection. Slice must
// return a value of the same kind whose shape is Shape().AfterGather(sel).
type Sliceable interface {
	Shaped
	Slice(sel Dict) (Sliceable, error)
}

// Stacker provides a native stack implementation. values includes the
// receiver; dim is the new dimension (possibly with item names).
type Stacker interface {
	Sliceable
	StackAlong(values []Sliceable, dim Shape) (Sliceable, error)
}

// Concater provides a native concatenation along an existing dimension.
type Concater interface {
	Sliceable
	ConcatAlong(values []Sliceable, dim string) (Sliceable, error)
}

// Expander provides native broadcasting to additional dimensions.
type Expander interface {
	Sliceable
	ExpandTo(extra Shape) (Sliceable, error)
}

// Unstacker provides a native split along one dimension. Returning
// errors.ErrUnsupported makes the dispatcher slice index by index instead.
type Unstacker interface {
	UnstackAlong(dim string) ([]Sliceable, error)
}

// Renamer provides a metadata-only dimension replacement.
type Renamer interface {
	RenameDim(old string, to Dim) (Sliceable, error)
}

// Packer provides a native merge of several dimensions into one.
type Packer interface {
	PackInto(order []string, packed Dim) (Sliceable, error)
}

// Unpacker provides a native split of one dimension into several.
type Unpacker interface {
	UnpackInto(dim string, unpacked Shape) (Sliceable, error)
}

// Capability is a bitmask describing which operations a value supports,
// either natively or through the generic fallbacks.
type Capability uint16

const (
	CanShape Capability = 1 << iota
	CanSlice
	CanStack
	CanConcat
	CanExpand
	CanUnstack
	CanRename
	CanPack
	CanUnpack
	CanTraverse
)

// Has reports whether all bits of want are set.
func (c Capability) Has(want Capability) bool { return c&want == want }

// Capabilities inspects a value and reports what it supports. Composite
// values (TreeNode, []any, map[string]any) report the intersection of
// their children's capabilities plus CanTraverse.
func Capabilities(v any) Capability {
	var c Capability
	if _, ok := v.(Shaped); ok {
		c |= CanShape
	}
	if _, ok := v.(Sliceable); ok {
		c |= CanSlice
	}
	if _, ok := v.(Stacker); ok {
		c |= CanStack
	}
	if _, ok := v.(Concater); ok {
		c |= CanConcat
	}
	if _, ok := v.(Expander); ok {
		c |= CanExpand
	}
	if _, ok := v.(Unstacker); ok {
		c |= CanUnstack
	}
	if _, ok := v.(Renamer); ok {
		c |= CanRename
	}
	if _, ok := v.(Packer); ok {
		c |= CanPack
	}
	if _, ok := v.(Unpacker); ok {
		c |= CanUnpack
	}
	if kids, _, ok := treeChildren(v); ok {
		c |= CanTraverse
		if len(kids) > 0 {
			common := ^Capability(0)
			for _, kid := range kids {
				common &= Capabilities(kid)
			}
			c |= common & (CanShape | CanSlice)
		}
	}
	return c
}

// IsShaped reports whether a shape can be derived from v, directly or by
// merging the shapes of a composite's children.
func IsShaped(v any) bool {
	_, err := ShapeOf(v)
	return err == nil
}

// IsSliceable reports whether v supports keyed item selection, directly
// or through composite traversal.
func IsSliceable(v any) bool {
	if _, ok := v.(Sliceable); ok {
		return true
	}
	kids, _, ok := treeChildren(v)
	if !ok || len(kids) == 0 {
		return false
	}
	for _, kid := range kids {
		if !IsSliceable(kid) {
			return false
		}
	}
	return true
}

// IsShapable reports whether v can participate in the combinators: it is
// sliceable and has at least one of the stack, concat or expand hooks, or
// is a composite of such values.
func IsShapable(v any) bool {
	if !IsSliceable(v) {
		return false
	}
	c := Capabilities(v)
	if c&(CanStack|CanConcat|CanExpand) != 0 {
		return true
	}
	if c.Has(CanTraverse) {
		kids, _, _ := treeChildren(v)
		if len(kids) == 0 {
			return false
		}
		for _, kid := range kids {
			if !IsShapable(kid) {
				return false
			}
		}
		return true
	}
	return false
}
