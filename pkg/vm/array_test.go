package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intArrayClass() *Class {
	return &Class{Def: &ClassDef{Name: "[I", IsArray: true, ElemKind: KindInt}, StaticFields: map[fieldKey]Value{}}
}

func TestInstantiateArrayDefaultInitializes(t *testing.T) {
	arr, err := InstantiateArray(intArrayClass(), 4)
	require.NoError(t, err)
	h, ok := AsArray(arr)
	require.True(t, ok)
	assert.Equal(t, 4, h.Length())
	v, err := h.LoadOne(2)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v.AsInt())
}

func TestInstantiateArrayRejectsNegativeLength(t *testing.T) {
	_, err := InstantiateArray(intArrayClass(), -1)
	require.Error(t, err)
	var nas *NegativeArraySize
	assert.ErrorAs(t, err, &nas)
}

func TestArrayHandleStoreLoadRoundTrip(t *testing.T) {
	arr, err := InstantiateArray(intArrayClass(), 3)
	require.NoError(t, err)
	h, _ := AsArray(arr)
	require.NoError(t, h.Store(0, []Value{IntValue(1), IntValue(2), IntValue(3)}))
	got, err := h.Load(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, []int32{got[0].AsInt(), got[1].AsInt(), got[2].AsInt()})
}

func TestArrayHandleOutOfBounds(t *testing.T) {
	arr, err := InstantiateArray(intArrayClass(), 2)
	require.NoError(t, err)
	h, _ := AsArray(arr)

	_, err = h.LoadOne(2)
	require.Error(t, err)
	var oob *ArrayOutOfBounds
	assert.ErrorAs(t, err, &oob)

	err = h.StoreOne(-1, IntValue(0))
	require.Error(t, err)
	assert.ErrorAs(t, err, &oob)
}

func TestAsArrayRejectsNonArray(t *testing.T) {
	plain := NewInstance(&Class{Def: &ClassDef{Name: "java/lang/Object"}, StaticFields: map[fieldKey]Value{}})
	_, ok := AsArray(plain)
	assert.False(t, ok)
}

func byteArrayClass() *Class {
	return &Class{Def: &ClassDef{Name: "[B", IsArray: true, ElemKind: KindByte}, StaticFields: map[fieldKey]Value{}}
}

func TestByteArrayFastPathRoundTrip(t *testing.T) {
	arr, err := InstantiateArray(byteArrayClass(), 4)
	require.NoError(t, err)
	h, _ := AsArray(arr)
	require.NoError(t, h.StoreByteArray(1, []byte{0xaa, 0xbb}))

	data, ok := h.LoadByteArray()
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0xaa, 0xbb, 0x00}, data)
}

func TestLoadByteArrayRejectsNonByteArray(t *testing.T) {
	arr, err := InstantiateArray(intArrayClass(), 1)
	require.NoError(t, err)
	h, _ := AsArray(arr)
	_, ok := h.LoadByteArray()
	assert.False(t, ok)
}
