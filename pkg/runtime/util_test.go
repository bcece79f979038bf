package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthvm/hearthvm/pkg/vm"
)

func newSeededRandom(t *testing.T, m *vm.VM, seed int64) *vm.Instance {
	t.Helper()
	r, err := m.InstantiateClass("java/util/Random")
	require.NoError(t, err)
	_, err = m.InvokeVirtual(r, "<init>", "(J)V", []vm.Value{vm.LongValue(seed)})
	require.NoError(t, err)
	return r
}

func TestRandomSeededSequencesAreReproducible(t *testing.T) {
	m, _ := newTestVM(t)
	a := newSeededRandom(t, m, 42)
	b := newSeededRandom(t, m, 42)

	for i := 0; i < 16; i++ {
		va, err := m.InvokeVirtual(a, "nextInt", "()I", nil)
		require.NoError(t, err)
		vb, err := m.InvokeVirtual(b, "nextInt", "()I", nil)
		require.NoError(t, err)
		assert.Equal(t, va.AsInt(), vb.AsInt(), "draw %d", i)
	}
}

func TestRandomSetSeedRestartsSequence(t *testing.T) {
	m, _ := newTestVM(t)
	r := newSeededRandom(t, m, 7)

	first, err := m.InvokeVirtual(r, "nextLong", "()J", nil)
	require.NoError(t, err)
	_, err = m.InvokeVirtual(r, "nextLong", "()J", nil)
	require.NoError(t, err)

	_, err = m.InvokeVirtual(r, "setSeed", "(J)V", []vm.Value{vm.LongValue(7)})
	require.NoError(t, err)
	again, err := m.InvokeVirtual(r, "nextLong", "()J", nil)
	require.NoError(t, err)
	assert.Equal(t, first.AsLong(), again.AsLong())
}

func TestRandomNextIntBoundStaysInRange(t *testing.T) {
	m, _ := newTestVM(t)
	r := newSeededRandom(t, m, 1)
	for i := 0; i < 100; i++ {
		v, err := m.InvokeVirtual(r, "nextInt", "(I)I", []vm.Value{vm.IntValue(10)})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.AsInt(), int32(0))
		assert.Less(t, v.AsInt(), int32(10))
	}

	_, err := m.InvokeVirtual(r, "nextInt", "(I)I", []vm.Value{vm.IntValue(0)})
	require.Error(t, err)
	var thrown *vm.Throwable
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "java/lang/IllegalArgumentException", thrown.ClassName)
}

func TestVectorAddSizeElementAt(t *testing.T) {
	m, _ := newTestVM(t)
	v, err := m.InstantiateClass("java/util/Vector")
	require.NoError(t, err)
	_, err = m.InvokeVirtual(v, "<init>", "()V", nil)
	require.NoError(t, err)

	empty, err := m.InvokeVirtual(v, "isEmpty", "()Z", nil)
	require.NoError(t, err)
	assert.True(t, empty.AsBool())

	for _, s := range []string{"a", "b", "c"} {
		_, err = m.InvokeVirtual(v, "addElement", "(Ljava/lang/Object;)V", []vm.Value{newString(t, m, s)})
		require.NoError(t, err)
	}

	size, err := m.InvokeVirtual(v, "size", "()I", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), size.AsInt())

	second, err := m.InvokeVirtual(v, "elementAt", "(I)Ljava/lang/Object;", []vm.Value{vm.IntValue(1)})
	require.NoError(t, err)
	assert.Equal(t, "b", vm.MustStringOf(second))

	_, err = m.InvokeVirtual(v, "elementAt", "(I)Ljava/lang/Object;", []vm.Value{vm.IntValue(3)})
	require.Error(t, err)
	var thrown *vm.Throwable
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "java/lang/ArrayIndexOutOfBoundsException", thrown.ClassName)
}

func TestVectorElementsEnumeratesInInsertionOrder(t *testing.T) {
	m, _ := newTestVM(t)
	v, err := m.InstantiateClass("java/util/Vector")
	require.NoError(t, err)
	_, err = m.InvokeVirtual(v, "<init>", "()V", nil)
	require.NoError(t, err)
	for _, s := range []string{"x", "y"} {
		_, err = m.InvokeVirtual(v, "addElement", "(Ljava/lang/Object;)V", []vm.Value{newString(t, m, s)})
		require.NoError(t, err)
	}

	enum, err := m.InvokeVirtual(v, "elements", "()Ljava/util/Enumeration;", nil)
	require.NoError(t, err)

	var got []string
	for {
		more, err := m.InvokeVirtual(enum.AsObject(), "hasMoreElements", "()Z", nil)
		require.NoError(t, err)
		if !more.AsBool() {
			break
		}
		e, err := m.InvokeVirtual(enum.AsObject(), "nextElement", "()Ljava/lang/Object;", nil)
		require.NoError(t, err)
		got = append(got, vm.MustStringOf(e))
	}
	assert.Equal(t, []string{"x", "y"}, got)
}

func TestDateReadsPlatformClock(t *testing.T) {
	m, platform := newTestVM(t)
	platform.now = 1234

	d, err := m.InstantiateClass("java/util/Date")
	require.NoError(t, err)
	_, err = m.InvokeVirtual(d, "<init>", "()V", nil)
	require.NoError(t, err)

	tm, err := m.InvokeVirtual(d, "getTime", "()J", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), tm.AsLong())
}

func TestThreadSleepGoesThroughPlatform(t *testing.T) {
	m, platform := newTestVM(t)
	_, err := m.InvokeStatic("java/lang/Thread", "sleep", "(J)V", []vm.Value{vm.LongValue(50)})
	require.NoError(t, err)
	assert.Equal(t, []int64{50}, platform.slept)
}
