package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfluke/warp/dims"
)

func TestCreation(t *testing.T) {
	t.Run("from data", func(t *testing.T) {
		v, err := FromData(dims.Spatial("x=3"), []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, 3, v.Len())

		_, err = FromData(dims.Spatial("x=3"), []float64{1, 2})
		assert.ErrorIs(t, err, dims.ErrIncompatibleShapes)
	})

	t.Run("from data copies the buffer", func(t *testing.T) {
		buf := []float64{1, 2, 3}
		v, err := FromData(dims.Spatial("x=3"), buf)
		require.NoError(t, err)
		buf[0] = 99
		assert.Equal(t, 1.0, v.Data()[0])
	})

	t.Run("zeros panics on undefined sizes", func(t *testing.T) {
		assert.Panics(t, func() { Zeros(dims.Batch("b")) })
	})

	t.Run("full", func(t *testing.T) {
		v := Full(dims.Spatial("x=2").And(dims.Batch("b=2")), 7)
		assert.Equal(t, []float64{7, 7, 7, 7}, v.Data())
	})

	t.Run("scalar", func(t *testing.T) {
		v := Scalar(3.5)
		assert.True(t, v.Shape().IsEmpty())
		assert.Equal(t, []float64{3.5}, v.Data())
	})

	t.Run("linspace", func(t *testing.T) {
		v := Linspace(0, 1, dims.Spatial("x=5"))
		assert.Equal(t, []float64{0, 0.25, 0.5, 0.75, 1}, v.Data())

		v = Linspace(2, 9, dims.Spatial("x=1"))
		assert.Equal(t, []float64{2}, v.Data())
	})

	t.Run("randn is deterministic per seed", func(t *testing.T) {
		a := Randn(dims.Spatial("x=4"), rand.New(rand.NewSource(1)))
		b := Randn(dims.Spatial("x=4"), rand.New(rand.NewSource(1)))
		assert.Equal(t, a.Data(), b.Data())
	})
}

func TestAt(t *testing.T) {
	v, err := FromData(dims.Spatial("x=3").And(dims.Batch("b=2")), []float64{0, 1, 2, 3, 4, 5})
	require.NoError(t, err)

	got, err := v.At(map[string]int{"b": 1, "x": 2})
	require.NoError(t, err)
	assert.Equal(t, 5.0, got)

	_, err = v.At(map[string]int{"b": 1})
	assert.ErrorIs(t, err, dims.ErrDimensionNotFound)

	_, err = v.At(map[string]int{"b": 1, "x": 7})
	assert.ErrorIs(t, err, dims.ErrIncompatibleShapes)

	// Size-1 dimensions may be omitted.
	u, err := FromData(dims.Spatial("x=2").And(dims.Batch("b=1")), []float64{1, 2})
	require.NoError(t, err)
	got, err = u.At(map[string]int{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestArithmetic(t *testing.T) {
	x := dims.Spatial("x=3")
	a, err := FromData(x, []float64{1, 2, 3})
	require.NoError(t, err)
	b, err := FromData(x, []float64{4, 5, 6})
	require.NoError(t, err)

	t.Run("equal shapes", func(t *testing.T) {
		sum, err := Add(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float64{5, 7, 9}, sum.Data())

		diff, err := Sub(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float64{-3, -3, -3}, diff.Data())

		prod, err := Mul(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 10, 18}, prod.Data())

		quot, err := Div(b, a)
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 2.5, 2}, quot.Data())
	})

	t.Run("operands stay untouched", func(t *testing.T) {
		_, err := Add(a, b)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, a.Data())
	})

	t.Run("broadcast by name", func(t *testing.T) {
		c, err := FromData(dims.Batch("b=2"), []float64{10, 20})
		require.NoError(t, err)
		sum, err := Add(a, c)
		require.NoError(t, err)
		assert.True(t, sum.Shape().Equal(x.And(dims.Batch("b=2"))))
		// Canonical order (b, x).
		assert.Equal(t, []float64{11, 12, 13, 21, 22, 23}, sum.Data())
	})

	t.Run("scalar broadcast", func(t *testing.T) {
		sum, err := Add(a, Scalar(1))
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 3, 4}, sum.Data())
	})

	t.Run("size conflict", func(t *testing.T) {
		c := Zeros(dims.Spatial("x=4"))
		_, err := Add(a, c)
		assert.ErrorIs(t, err, dims.ErrIncompatibleShapes)
	})

	t.Run("scalar ops", func(t *testing.T) {
		assert.Equal(t, []float64{2, 4, 6}, Scale(a, 2).Data())
		assert.Equal(t, []float64{2, 3, 4}, AddScalar(a, 1).Data())
		assert.Equal(t, []float64{-1, -2, -3}, Neg(a).Data())
		sq := Apply(a, func(v float64) float64 { return v * v })
		assert.Equal(t, []float64{1, 4, 9}, sq.Data())
	})
}

func TestReductions(t *testing.T) {
	v, err := FromData(dims.Spatial("x=4"), []float64{-3, 1, 2, -1})
	require.NoError(t, err)
	assert.Equal(t, -1.0, Sum(v))
	assert.Equal(t, -0.25, Mean(v))
	assert.Equal(t, 2.0, Max(v))
	assert.Equal(t, -3.0, Min(v))
	assert.Equal(t, 3.0, AbsMax(v))
}

func TestShift(t *testing.T) {
	v, err := FromData(dims.Spatial("x=4"), []float64{0, 1, 2, 3})
	require.NoError(t, err)

	r, err := Shift(v, "x", 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 0}, r.Data())

	r, err = Shift(v, "x", -1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 0, 1, 2}, r.Data())

	r, err = Shift(v, "x", 4)
	require.NoError(t, err)
	assert.Equal(t, v.Data(), r.Data())

	_, err = Shift(v, "y", 1)
	assert.ErrorIs(t, err, dims.ErrDimensionNotFound)
}

func TestApproxEqual(t *testing.T) {
	a, err := FromData(dims.Spatial("x=2"), []float64{1, 2})
	require.NoError(t, err)
	b, err := FromData(dims.Spatial("x=2"), []float64{1 + 1e-12, 2})
	require.NoError(t, err)
	assert.True(t, ApproxEqual(a, b, 1e-9))
	assert.False(t, ApproxEqual(a, b, 1e-15))
	assert.False(t, ApproxEqual(a, Zeros(dims.Spatial("x=3")), 1))
}

func TestSliceSpan(t *testing.T) {
	v, err := FromData(dims.Spatial("x=5"), []float64{0, 1, 2, 3, 4})
	require.NoError(t, err)
	out, err := v.Slice(dims.Dict{"x": dims.Span(1, 4)})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, out.(*Tensor).Data())
}

func TestExpandCoversExisting(t *testing.T) {
	v := Zeros(dims.Spatial("x=3"))
	out, err := v.ExpandTo(dims.Spatial("x=3"))
	require.NoError(t, err)
	assert.Same(t, v, out, "expanding by present dims returns the receiver")
}

func TestPackUnpackRoundtrip(t *testing.T) {
	shape := dims.Spatial("x=3").And(dims.Batch("b=2"), dims.Channel("c=2"))
	data := make([]float64, 12)
	for i := range data {
		data[i] = float64(i)
	}
	v, err := FromData(shape, data)
	require.NoError(t, err)

	packed, err := v.PackInto([]string{"x", "c"}, dims.Dim{Name: "flat", Type: dims.TypeInstance, Size: 6})
	require.NoError(t, err)
	back, err := packed.(*Tensor).UnpackInto("flat", dims.Spatial("x=3").And(dims.Channel("c=2")))
	require.NoError(t, err)
	assert.True(t, ApproxEqual(v, back.(*Tensor), 0))
}
