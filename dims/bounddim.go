package dims

// BoundDim is a lightweight cursor binding one dimension of one value.
// It adds no semantics of its own: every method is direct dispatch to
// the package-level combinators, scoped to the bound dimension.
type BoundDim struct {
	Value any
	Name  string
}

// BindDim binds a dimension of a shaped value by name.
func BindDim(value any, name string) BoundDim {
	return BoundDim{Value: value, Name: name}
}

// Dim returns the bound dimension.
func (b BoundDim) Dim() (Dim, error) {
	s, err := ShapeOf(b.Value)
	if err != nil {
		return Dim{}, err
	}
	return s.Get(b.Name)
}

// Size returns the bound dimension's size.
func (b BoundDim) Size() (int, error) {
	d, err := b.Dim()
	if err != nil {
		return 0, err
	}
	return d.Size, nil
}

// Items returns the bound dimension's item names, nil if anonymous.
func (b BoundDim) Items() ([]string, error) {
	d, err := b.Dim()
	if err != nil {
		return nil, err
	}
	return d.Items, nil
}

// Rename renames the bound dimension, keeping its type, size and items.
func (b BoundDim) Rename(newName string) (any, error) {
	d, err := b.Dim()
	if err != nil {
		return nil, err
	}
	return RenameDims(b.Value, b.Name, shapeOfDim(Dim{Name: newName, Type: d.Type, Size: SizeUndefined}))
}

// Retype changes the bound dimension's type, keeping name, size and items.
func (b BoundDim) Retype(t DimType) (any, error) {
	return RenameDims(b.Value, b.Name, shapeOfDim(Dim{Name: b.Name, Type: t, Size: SizeUndefined}))
}

// Replace substitutes the bound dimension with the given single-dimension
// shape.
func (b BoundDim) Replace(to Shape) (any, error) {
	return RenameDims(b.Value, b.Name, to)
}

// Unpack splits the bound dimension into the dimensions of to.
func (b BoundDim) Unpack(to Shape) (any, error) {
	return UnpackDim(b.Value, b.Name, to)
}

// Unstack splits the value along the bound dimension.
func (b BoundDim) Unstack() ([]any, error) {
	return Unstack(b.Value, b.Name)
}
