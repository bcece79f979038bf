package vm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildTrivialClassFile hand-assembles the raw bytes of a minimal, valid
// class file: no fields, no methods, superclass java/lang/Object. Mirrors
// classfile's own classBuilder fixture style (pkg/classfile/testhelpers_test.go),
// but at the wire level since DefineClass's contract starts from raw bytes.
func buildTrivialClassFile(t *testing.T, name string) []byte {
	t.Helper()
	var pool [][]byte
	intern := func(entry []byte) uint16 {
		pool = append(pool, entry)
		return uint16(len(pool))
	}
	utf8 := func(s string) uint16 {
		e := []byte{1} // TagUtf8
		e = binary.BigEndian.AppendUint16(e, uint16(len(s)))
		e = append(e, s...)
		return intern(e)
	}
	classRef := func(nameIdx uint16) uint16 {
		e := []byte{7} // TagClass
		e = binary.BigEndian.AppendUint16(e, nameIdx)
		return intern(e)
	}

	nameIdx := utf8(name)
	thisIdx := classRef(nameIdx)
	superNameIdx := utf8("java/lang/Object")
	superIdx := classRef(superNameIdx)

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0xCAFEBABE))
	binary.Write(&buf, binary.BigEndian, uint16(0))  // minor
	binary.Write(&buf, binary.BigEndian, uint16(52)) // major
	binary.Write(&buf, binary.BigEndian, uint16(len(pool)+1))
	for _, e := range pool {
		buf.Write(e)
	}
	binary.Write(&buf, binary.BigEndian, uint16(0x0021)) // access flags: public super
	binary.Write(&buf, binary.BigEndian, thisIdx)
	binary.Write(&buf, binary.BigEndian, superIdx)
	binary.Write(&buf, binary.BigEndian, uint16(0)) // interfaces_count
	binary.Write(&buf, binary.BigEndian, uint16(0)) // fields_count
	binary.Write(&buf, binary.BigEndian, uint16(0)) // methods_count
	binary.Write(&buf, binary.BigEndian, uint16(0)) // attributes_count
	return buf.Bytes()
}

func TestRegisterShimClassRequiresRegisteredSuper(t *testing.T) {
	m := NewVM(newFakePlatform())
	_, err := m.RegisterShimClass(&ClassDef{Name: "test/Orphan", SuperName: "java/lang/Object"})
	assert.Error(t, err)
}

func TestRegisterShimClassThenLookup(t *testing.T) {
	m := newTestVM()
	_, err := m.RegisterShimClass(&ClassDef{Name: "test/Thing", SuperName: "java/lang/Object"})
	require.NoError(t, err)

	c, ok := m.lookupClass("test/Thing")
	require.True(t, ok)
	assert.Equal(t, "java/lang/Object", c.Super.Def.Name)
}

func TestResolveClassConsultsSourcesInOrder(t *testing.T) {
	m := newTestVM()
	var order []string

	m.AddClassSource(func(name string) ([]byte, bool) {
		order = append(order, "first")
		return nil, false
	})
	m.AddClassSource(func(name string) ([]byte, bool) {
		order = append(order, "second")
		return nil, false
	})

	_, err := m.ResolveClass("does/not/Exist")
	require.Error(t, err)
	var notFound *ClassNotFound
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestResolveClassCachesAlreadyRegistered(t *testing.T) {
	m := newTestVM()
	calls := 0
	m.AddClassSource(func(name string) ([]byte, bool) {
		calls++
		return nil, false
	})

	c, err := m.ResolveClass("java/lang/Object")
	require.NoError(t, err)
	assert.Equal(t, "java/lang/Object", c.Def.Name)
	assert.Equal(t, 0, calls, "an already-registered class must never consult sources")
}

func TestResolveClassSynthesizesPrimitiveArray(t *testing.T) {
	m := newTestVM()
	c, err := m.ResolveClass("[I")
	require.NoError(t, err)
	assert.True(t, c.Def.IsArray)
	assert.Equal(t, KindInt, c.Def.ElemKind)
	assert.Equal(t, "java/lang/Object", c.Super.Def.Name)
}

func TestResolveClassSynthesizesObjectArrayResolvingElement(t *testing.T) {
	m := newTestVM()
	_, err := m.RegisterShimClass(&ClassDef{Name: "test/Widget", SuperName: "java/lang/Object"})
	require.NoError(t, err)

	c, err := m.ResolveClass("[Ltest/Widget;")
	require.NoError(t, err)
	assert.True(t, c.Def.IsArray)
	assert.Equal(t, "test/Widget", c.Def.ElemClass)
}

func TestResolveClassObjectArrayFailsOnUnresolvableElement(t *testing.T) {
	m := newTestVM()
	_, err := m.ResolveClass("[Ldoes/not/Exist;")
	assert.Error(t, err)
}

func TestJavaClassDefersUntilClassClassRegistered(t *testing.T) {
	m := newTestVM()
	_, err := m.RegisterShimClass(&ClassDef{Name: "test/Widget", SuperName: "java/lang/Object"})
	require.NoError(t, err)
	widget, _ := m.lookupClass("test/Widget")

	mirror, err := m.JavaClass(widget)
	require.NoError(t, err)
	assert.Nil(t, mirror, "mirror must be deferred until java/lang/Class registers")

	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/Class", SuperName: "java/lang/Object"})
	require.NoError(t, err)

	mirror, err = m.JavaClass(widget)
	require.NoError(t, err)
	require.NotNil(t, mirror)

	back, ok := m.ClassOfMirror(mirror)
	require.True(t, ok)
	assert.Same(t, widget, back)
}

func TestJavaClassIsCachedOnSecondCall(t *testing.T) {
	m := newTestVM()
	_, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/Class", SuperName: "java/lang/Object"})
	require.NoError(t, err)

	m1, err := m.JavaClass(m.mustClass("java/lang/Object"))
	require.NoError(t, err)
	m2, err := m.JavaClass(m.mustClass("java/lang/Object"))
	require.NoError(t, err)
	assert.Same(t, m1, m2)
}

func (vm *VM) mustClass(name string) *Class {
	c, ok := vm.lookupClass(name)
	if !ok {
		panic("missing class: " + name)
	}
	return c
}

func TestDefineClassRejectsNameMismatch(t *testing.T) {
	m := newTestVM()
	raw := buildTrivialClassFile(t, "test/Actual")
	_, err := m.DefineClass("test/Expected", raw)
	assert.Error(t, err)
}

func TestResolveClassDelegatesToUserLoaderAfterBootstrapDeclines(t *testing.T) {
	m := newTestVM()
	_, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/Class", SuperName: "java/lang/Object"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/String", SuperName: "java/lang/Object"})
	require.NoError(t, err)

	var sourceAsked bool
	m.AddClassSource(func(name string) ([]byte, bool) {
		sourceAsked = true
		return nil, false
	})

	// findClass defines "test/Loadable" lazily, the moment the registry asks
	// for it, rather than it being pre-registered — the realistic shape of a
	// user loader that decodes bytes it alone knows how to find.
	_, err = m.RegisterShimClass(&ClassDef{
		Name:      "test/Loader",
		SuperName: "java/lang/Object",
		Methods: []MethodDef{
			{
				Name: "findClass", Descriptor: "(Ljava/lang/String;)Ljava/lang/Class;",
				Native: func(m *VM, this *Instance, args []Value) (Value, error) {
					target, err := m.RegisterShimClass(&ClassDef{Name: "test/Loadable", SuperName: "java/lang/Object"})
					if err != nil {
						return Value{}, err
					}
					mirror, err := m.JavaClass(target)
					if err != nil {
						return Value{}, err
					}
					return ObjectValue(mirror), nil
				},
			},
		},
	})
	require.NoError(t, err)
	loaderClass, ok := m.lookupClass("test/Loader")
	require.True(t, ok)
	loader := NewInstance(loaderClass)
	m.AddUserLoader(loader)

	c, err := m.ResolveClass("test/Loadable")
	require.NoError(t, err)
	assert.Equal(t, "test/Loadable", c.Def.Name)
	assert.True(t, sourceAsked, "bootstrap sources must be asked before any user loader")
	assert.Equal(t, loader.ID(), c.loaderTag)
}

func TestResolveClassFallsThroughClassNotFoundWhenLoaderDeclines(t *testing.T) {
	m := newTestVM()
	_, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/String", SuperName: "java/lang/Object"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/ClassNotFoundException", SuperName: "java/lang/Object"})
	require.NoError(t, err)

	_, err = m.RegisterShimClass(&ClassDef{
		Name:      "test/DecliningLoader",
		SuperName: "java/lang/Object",
		Methods: []MethodDef{
			{
				Name: "findClass", Descriptor: "(Ljava/lang/String;)Ljava/lang/Class;",
				Native: func(m *VM, this *Instance, args []Value) (Value, error) {
					return Value{}, m.Raise("java/lang/ClassNotFoundException", "nope")
				},
			},
		},
	})
	require.NoError(t, err)
	loaderClass, ok := m.lookupClass("test/DecliningLoader")
	require.True(t, ok)
	m.AddUserLoader(NewInstance(loaderClass))

	_, err = m.ResolveClass("does/not/Exist")
	require.Error(t, err)
	var notFound *ClassNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestDefineClassRegistersAndIsIdempotent(t *testing.T) {
	m := newTestVM()
	raw := buildTrivialClassFile(t, "test/Defined")

	c1, err := m.DefineClass("test/Defined", raw)
	require.NoError(t, err)
	assert.Equal(t, "test/Defined", c1.Def.Name)

	c2, err := m.DefineClass("test/Defined", raw)
	require.NoError(t, err)
	assert.Same(t, c1, c2, "a second DefineClass for an already-registered name returns the same Class")
}
