package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueConstructorsRoundTrip(t *testing.T) {
	assert.Equal(t, int32(1), IntValue(1).AsInt())
	assert.Equal(t, int64(42), LongValue(42).AsLong())
	assert.Equal(t, float32(1.5), FloatValue(1.5).AsFloat())
	assert.Equal(t, 2.5, DoubleValue(2.5).AsDouble())
	assert.True(t, BooleanValue(true).AsBool())
	assert.False(t, BooleanValue(false).AsBool())
	assert.True(t, NullValue().IsNull())
	assert.False(t, IntValue(0).IsNull())
}

func TestValueCategory2(t *testing.T) {
	assert.True(t, LongValue(1).IsCategory2())
	assert.True(t, DoubleValue(1).IsCategory2())
	assert.False(t, IntValue(1).IsCategory2())
	assert.False(t, FloatValue(1).IsCategory2())
	assert.False(t, NullValue().IsCategory2())
}

func TestValueDefaultValue(t *testing.T) {
	assert.Equal(t, int32(0), DefaultValue(KindInt).AsInt())
	assert.False(t, DefaultValue(KindBoolean).AsBool())
	assert.True(t, DefaultValue(KindObject).IsNull())
}

func TestValueMismatchPanics(t *testing.T) {
	v := IntValue(1)
	require.Panics(t, func() { v.AsObject() })
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "object", KindObject.String())
}
