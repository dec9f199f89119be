package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minijvm/minijvm/internal/classloader"
	"github.com/minijvm/minijvm/internal/types"
)

func pointClass() *classloader.Class {
	return &classloader.Class{
		Name: "Point",
		InstanceLayout: []classloader.FieldSlot{
			{Name: "x", Descriptor: "I", Kind: types.KindInt, Offset: 0},
			{Name: "y", Descriptor: "I", Kind: types.KindInt, Offset: 1},
		},
		InstanceSize: 2,
	}
}

func TestAllocateDefaultsFields(t *testing.T) {
	h := New(0, nil)
	ref, err := h.Allocate(pointClass())
	require.NoError(t, err)

	v, err := h.GetField(ref, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.AsInt32())
}

func TestSetGetField(t *testing.T) {
	h := New(0, nil)
	ref, err := h.Allocate(pointClass())
	require.NoError(t, err)

	require.NoError(t, h.SetField(ref, 0, types.IntValue(42)))
	v, err := h.GetField(ref, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(42), v.AsInt32())
}

func TestArrayElementsAndCopy(t *testing.T) {
	h := New(0, nil)
	src, err := h.AllocateArray(types.ElemInt, 5, nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.SetElement(src, i, types.IntValue(int32(i))))
	}

	dst, err := h.AllocateArray(types.ElemInt, 5, nil)
	require.NoError(t, err)
	require.NoError(t, h.CopyElements(src, 1, dst, 0, 4))

	want := []int32{1, 2, 3, 4, 0}
	for i, w := range want {
		v, err := h.GetElement(dst, i)
		require.NoError(t, err)
		assert.Equal(t, w, v.AsInt32())
	}
}

func TestArrayOutOfBounds(t *testing.T) {
	h := New(0, nil)
	ref, err := h.AllocateArray(types.ElemInt, 3, nil)
	require.NoError(t, err)

	_, err = h.GetElement(ref, 3)
	assert.Error(t, err)
	_, ok := err.(IndexOutOfBoundsError)
	assert.True(t, ok)
}

func TestNegativeArraySize(t *testing.T) {
	h := New(0, nil)
	_, err := h.AllocateArray(types.ElemInt, -1, nil)
	assert.Error(t, err)
	_, ok := err.(NegativeArraySizeError)
	assert.True(t, ok)
}

func TestCollectReclaimsUnreachable(t *testing.T) {
	h := New(0, nil)
	class := pointClass()

	kept, err := h.Allocate(class)
	require.NoError(t, err)
	discarded, err := h.Allocate(class)
	require.NoError(t, err)

	h.SetRoots(func() []types.Value {
		return []types.Value{types.RefValue(kept)}
	})

	h.Collect()

	_, ok := h.Object(kept)
	assert.True(t, ok, "rooted object must survive collection")
	_, ok = h.Object(discarded)
	assert.False(t, ok, "unrooted object must be reclaimed")
}

func TestCollectFollowsFieldReferences(t *testing.T) {
	h := New(0, nil)

	wrapperClass := &classloader.Class{
		Name: "Wrapper",
		InstanceLayout: []classloader.FieldSlot{
			{Name: "inner", Descriptor: "LPoint;", Kind: types.KindRef, Offset: 0},
		},
		InstanceSize: 1,
	}

	inner, err := h.Allocate(pointClass())
	require.NoError(t, err)
	wrapper, err := h.Allocate(wrapperClass)
	require.NoError(t, err)
	require.NoError(t, h.SetField(wrapper, 0, types.RefValue(inner)))

	h.SetRoots(func() []types.Value {
		return []types.Value{types.RefValue(wrapper)}
	})
	h.Collect()

	_, ok := h.Object(wrapper)
	assert.True(t, ok)
	_, ok = h.Object(inner)
	assert.True(t, ok, "object reachable only via a field must survive")
}

func TestFreeSlotsAreReused(t *testing.T) {
	h := New(0, nil)
	class := pointClass()

	_, err := h.Allocate(class) // will be collected
	require.NoError(t, err)

	h.SetRoots(func() []types.Value { return nil })
	h.Collect()

	_, _, liveBefore, _ := h.Stats()
	assert.Equal(t, 0, liveBefore)

	_, err = h.Allocate(class)
	require.NoError(t, err)
	_, _, liveAfter, _ := h.Stats()
	assert.Equal(t, 1, liveAfter)
}
