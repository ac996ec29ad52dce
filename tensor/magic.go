package tensor

import (
	"errors"
	"fmt"

	"github.com/openfluke/warp/dims"
)

// Native combinator hooks. Tensors implement the full capability surface
// of the dims dispatcher; a hook returns errors.ErrUnsupported only when
// handed operands that are not tensors, which sends the dispatcher down
// its generic path.

var (
	_ dims.Sliceable = (*Tensor)(nil)
	_ dims.Stacker   = (*Tensor)(nil)
	_ dims.Concater  = (*Tensor)(nil)
	_ dims.Expander  = (*Tensor)(nil)
	_ dims.Unstacker = (*Tensor)(nil)
	_ dims.Renamer   = (*Tensor)(nil)
	_ dims.Packer    = (*Tensor)(nil)
	_ dims.Unpacker  = (*Tensor)(nil)
)

// Slice selects elements per the keyed selection, removing dimensions
// indexed down to a single element.
func (t *Tensor) Slice(sel dims.Dict) (dims.Sliceable, error) {
	rs, err := t.shape.AfterGather(sel)
	if err != nil {
		return nil, err
	}
	sa := axesOf(t.shape)
	ra := axesOf(rs)
	out := Zeros(rs)

	type plan struct {
		resAxis int   // axis in the result, -1 if consumed
		idx     []int // chosen source indices, nil when passed through
	}
	plans := make([]plan, len(sa.names))
	for i, name := range sa.names {
		choice, ok := sel[name]
		if !ok {
			plans[i] = plan{resAxis: ra.find(name)}
			continue
		}
		d, _ := t.shape.Get(name)
		idx, _, keep, err := choice.Indices(d)
		if err != nil {
			return nil, err
		}
		if keep {
			plans[i] = plan{resAxis: ra.find(name), idx: idx}
		} else {
			plans[i] = plan{resAxis: -1, idx: idx}
		}
	}

	rc := make([]int, len(ra.names))
	sc := make([]int, len(sa.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		for i, p := range plans {
			switch {
			case p.idx == nil:
				sc[i] = rc[p.resAxis]
			case p.resAxis < 0:
				sc[i] = p.idx[0]
			default:
				sc[i] = p.idx[rc[p.resAxis]]
			}
		}
		out.data[lin] = t.data[sa.index(sc)]
	}
	return out, nil
}

// StackAlong joins equal-shaped tensors into one with the new dimension.
func (t *Tensor) StackAlong(values []dims.Sliceable, dim dims.Shape) (dims.Sliceable, error) {
	if dim.Len() != 1 {
		return nil, errors.ErrUnsupported
	}
	tensors, ok := toTensors(values)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	d := dim.Dim(0)
	if d.Size != len(tensors) {
		return nil, fmt.Errorf("%w: %d values for %v", dims.ErrIncompatibleShapes, len(tensors), d)
	}
	for _, v := range tensors {
		if !v.shape.Equal(t.shape) {
			return nil, fmt.Errorf("%w: stack of %v and %v", dims.ErrIncompatibleShapes, t.shape, v.shape)
		}
	}
	rs, err := dims.MergeShapes(t.shape, dim)
	if err != nil {
		return nil, err
	}
	ra := axesOf(rs)
	va := axesOf(t.shape)
	proj := project(ra, va)
	k := ra.find(d.Name)
	out := Zeros(rs)
	rc := make([]int, len(ra.names))
	vc := make([]int, len(va.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		for i, j := range proj {
			if j >= 0 {
				vc[j] = rc[i]
			}
		}
		out.data[lin] = tensors[rc[k]].data[va.index(vc)]
	}
	return out, nil
}

// ConcatAlong joins tensors end-to-end along an existing dimension.
func (t *Tensor) ConcatAlong(values []dims.Sliceable, dim string) (dims.Sliceable, error) {
	tensors, ok := toTensors(values)
	if !ok {
		return nil, errors.ErrUnsupported
	}
	rest := t.shape.Without(dim)
	total := 0
	offsets := make([]int, len(tensors))
	var items []string
	haveItems := true
	for i, v := range tensors {
		d, err := v.shape.Get(dim)
		if err != nil {
			return nil, err
		}
		if !v.shape.Without(dim).EqualIgnoringOrder(rest) {
			return nil, fmt.Errorf("%w: concat of %v and %v along %q", dims.ErrIncompatibleShapes, t.shape, v.shape, dim)
		}
		offsets[i] = total
		total += d.Size
		if d.Items != nil {
			items = append(items, d.Items...)
		} else {
			haveItems = false
		}
	}
	var rs dims.Shape
	var err error
	if haveItems {
		rs, err = t.shape.WithItemNames(dim, items...)
	} else {
		rs, err = t.shape.WithDimSize(dim, total)
	}
	if err != nil {
		return nil, err
	}
	ra := axesOf(rs)
	k := ra.find(dim)
	vas := make([]axes, len(tensors))
	projs := make([][]int, len(tensors))
	for i, v := range tensors {
		vas[i] = axesOf(v.shape)
		projs[i] = project(ra, vas[i])
	}
	out := Zeros(rs)
	rc := make([]int, len(ra.names))
	vc := make([]int, len(ra.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		v := len(tensors) - 1
		for v > 0 && rc[k] < offsets[v] {
			v--
		}
		va := vas[v]
		for i, j := range projs[v] {
			if j < 0 {
				continue
			}
			if i == k {
				vc[j] = rc[i] - offsets[v]
			} else {
				vc[j] = rc[i]
			}
		}
		out.data[lin] = tensors[v].data[va.index(vc[:len(va.names)])]
	}
	return out, nil
}

// ExpandTo broadcasts the tensor to additionally cover extra.
func (t *Tensor) ExpandTo(extra dims.Shape) (dims.Sliceable, error) {
	merged, err := dims.MergeShapes(t.shape, extra)
	if err != nil {
		return nil, err
	}
	if merged.Equal(t.shape) {
		return t, nil
	}
	if _, err := merged.Volume(); err != nil {
		return nil, err
	}
	ra := axesOf(merged)
	sa := axesOf(t.shape)
	proj := project(ra, sa)
	out := Zeros(merged)
	rc := make([]int, len(ra.names))
	sc := make([]int, len(sa.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		for i, j := range proj {
			if j >= 0 {
				sc[j] = rc[i]
			}
		}
		out.data[lin] = t.data[sa.index(sc)]
	}
	return out, nil
}

// UnstackAlong splits the tensor into its slices along dim.
func (t *Tensor) UnstackAlong(dim string) ([]dims.Sliceable, error) {
	size, err := t.shape.GetSize(dim)
	if err != nil {
		return nil, err
	}
	parts := make([]dims.Sliceable, size)
	for i := 0; i < size; i++ {
		p, err := t.Slice(dims.Dict{dim: dims.At(i)})
		if err != nil {
			return nil, err
		}
		parts[i] = p
	}
	return parts, nil
}

// RenameDim replaces one dimension's name and type. When the canonical
// position is unchanged this is metadata-only and shares the buffer;
// a type change that reorders the shape transposes once.
func (t *Tensor) RenameDim(old string, to dims.Dim) (dims.Sliceable, error) {
	od, err := t.shape.Get(old)
	if err != nil {
		return nil, err
	}
	nd := to
	if !nd.Defined() {
		nd.Size = od.Size
	}
	if nd.Items == nil {
		nd.Items = od.Items
		nd.Size = od.Size
	} else if len(nd.Items) != od.Size {
		return nil, fmt.Errorf("%w: cannot rename %v to %v with %d item names",
			dims.ErrIncompatibleShapes, od, to, len(nd.Items))
	}
	replaced := t.shape.Dims()
	for i := range replaced {
		if replaced[i].Name == old {
			replaced[i] = nd
		}
	}
	rs, err := dims.NewShape(replaced...)
	if err != nil {
		return nil, err
	}

	sameOrder := true
	rds := rs.Dims()
	for i, d := range t.shape.Dims() {
		want := d.Name
		if want == old {
			want = nd.Name
		}
		if rds[i].Name != want {
			sameOrder = false
			break
		}
	}
	if sameOrder {
		return &Tensor{shape: rs, data: t.data}, nil
	}

	ra := axesOf(rs)
	sa := axesOf(t.shape)
	out := Zeros(rs)
	rc := make([]int, len(ra.names))
	sc := make([]int, len(sa.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		for i, name := range ra.names {
			src := name
			if src == nd.Name {
				src = old
			}
			sc[sa.find(src)] = rc[i]
		}
		out.data[lin] = t.data[sa.index(sc)]
	}
	return out, nil
}

// PackInto merges the listed dimensions into packed, first-listed-major.
func (t *Tensor) PackInto(order []string, packed dims.Dim) (dims.Sliceable, error) {
	sa := axesOf(t.shape)
	ordAxes := make([]int, len(order))
	for i, name := range order {
		j := sa.find(name)
		if j < 0 {
			return nil, fmt.Errorf("%w: %q in %v", dims.ErrDimensionNotFound, name, t.shape)
		}
		ordAxes[i] = j
	}
	ordStrides := make([]int, len(order))
	stride := 1
	for i := len(order) - 1; i >= 0; i-- {
		ordStrides[i] = stride
		stride *= sa.sizes[ordAxes[i]]
	}
	rs, err := dims.MergeShapes(t.shape.Without(order...), shapeOfDim(packed))
	if err != nil {
		return nil, err
	}
	ra := axesOf(rs)
	k := ra.find(packed.Name)
	proj := project(ra, sa)
	out := Zeros(rs)
	rc := make([]int, len(ra.names))
	sc := make([]int, len(sa.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		for i, j := range proj {
			if j >= 0 && i != k {
				sc[j] = rc[i]
			}
		}
		p := rc[k]
		for x, j := range ordAxes {
			sc[j] = (p / ordStrides[x]) % sa.sizes[j]
		}
		out.data[lin] = t.data[sa.index(sc)]
	}
	return out, nil
}

// UnpackInto splits dim into the dimensions of unpacked, row-major in
// the unpacked shape's canonical order.
func (t *Tensor) UnpackInto(dim string, unpacked dims.Shape) (dims.Sliceable, error) {
	size, err := t.shape.GetSize(dim)
	if err != nil {
		return nil, err
	}
	vol, err := unpacked.Volume()
	if err != nil {
		return nil, err
	}
	if vol != size {
		return nil, fmt.Errorf("%w: cannot unpack %q of size %d into %v", dims.ErrIncompatibleShapes, dim, size, unpacked)
	}
	rs, err := dims.MergeShapes(t.shape.Without(dim), unpacked)
	if err != nil {
		return nil, err
	}
	sa := axesOf(t.shape)
	ra := axesOf(rs)
	ua := axesOf(unpacked)
	k := sa.find(dim)
	out := Zeros(rs)
	rc := make([]int, len(ra.names))
	sc := make([]int, len(sa.names))
	for lin := range out.data {
		ra.decode(lin, rc)
		packed := 0
		for x, name := range ua.names {
			packed += rc[ra.find(name)] * ua.strides[x]
		}
		for i, name := range sa.names {
			if i == k {
				sc[i] = packed
			} else {
				sc[i] = rc[ra.find(name)]
			}
		}
		out.data[lin] = t.data[sa.index(sc)]
	}
	return out, nil
}

func toTensors(values []dims.Sliceable) ([]*Tensor, bool) {
	out := make([]*Tensor, len(values))
	for i, v := range values {
		t, ok := v.(*Tensor)
		if !ok {
			return nil, false
		}
		out[i] = t
	}
	return out, true
}

func shapeOfDim(d dims.Dim) dims.Shape {
	s, err := dims.NewShape(d)
	if err != nil {
		panic(err)
	}
	return s
}
