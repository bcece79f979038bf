package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthvm/hearthvm/pkg/classfile"
)

// codeOf decodes raw bytecode with an empty constant pool (1-indexed, slot 0
// unused) into a CodeAttribute, for fixtures that never touch the pool.
func codeOf(t *testing.T, maxStack, maxLocals uint16, raw []byte, handlers []classfile.ExceptionHandler) *classfile.CodeAttribute {
	t.Helper()
	instrs, err := classfile.DecodeCode(raw, classfile.Pool{nil})
	require.NoError(t, err)
	return &classfile.CodeAttribute{MaxStack: maxStack, MaxLocals: maxLocals, Instrs: instrs, Handlers: handlers}
}

func withExceptionHierarchy(t *testing.T, m *VM) {
	t.Helper()
	_, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/String", SuperName: "java/lang/Object"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{
		Name: "java/lang/Throwable", SuperName: "java/lang/Object",
		Fields: []FieldDef{{Name: "message", Descriptor: "Ljava/lang/String;"}},
	})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/Exception", SuperName: "java/lang/Throwable"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/RuntimeException", SuperName: "java/lang/Exception"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/ArithmeticException", SuperName: "java/lang/RuntimeException"})
	require.NoError(t, err)
}

func TestInvokeReturnsConstant(t *testing.T) {
	m := newTestVM()
	code := codeOf(t, 1, 0, []byte{0x04, 0xac}, nil) // iconst_1, ireturn
	class := &Class{Def: &ClassDef{Name: "test/C"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "one", Descriptor: "()I", Static: true, Code: code}

	ret, err := m.Invoke(class, method, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ret.AsInt())
}

func TestInvokeArithmeticOverLocals(t *testing.T) {
	m := newTestVM()
	// iload_0, iload_1, iadd, ireturn
	code := codeOf(t, 2, 2, []byte{0x1a, 0x1b, 0x60, 0xac}, nil)
	class := &Class{Def: &ClassDef{Name: "test/C"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "add", Descriptor: "(II)I", Static: true, Code: code}

	ret, err := m.Invoke(class, method, []Value{IntValue(3), IntValue(4)})
	require.NoError(t, err)
	assert.Equal(t, int32(7), ret.AsInt())
}

func TestInvokeDivByZeroRaisesArithmeticException(t *testing.T) {
	m := newTestVM()
	withExceptionHierarchy(t, m)
	// iconst_1, iconst_0, idiv, ireturn
	code := codeOf(t, 2, 0, []byte{0x04, 0x03, 0x6c, 0xac}, nil)
	class := &Class{Def: &ClassDef{Name: "test/C"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "boom", Descriptor: "()I", Static: true, Code: code}

	_, err := m.Invoke(class, method, nil)
	require.Error(t, err)
	thrown, ok := err.(*Throwable)
	require.True(t, ok)
	assert.Equal(t, "java/lang/ArithmeticException", thrown.ClassName)
}

func TestInvokeExceptionTableCatchesAndResumes(t *testing.T) {
	m := newTestVM()
	withExceptionHierarchy(t, m)
	// pc0: iconst_1 (0x04)
	// pc1: iconst_0 (0x03)
	// pc2: idiv     (0x6c)  -- throws, handler kicks in
	// pc3: goto +6  (0xa7 0x00 0x06) -> jumps past the handler to pc9
	// pc6: pop      (0x57)  -- handler target: discard the caught throwable
	// pc7: iconst_2 (0x05)
	// pc8: ireturn  (0xac)
	// pc9: iconst_m1(0x02) -- unreachable fallthrough guard
	// pc10: ireturn (0xac)
	raw := []byte{0x04, 0x03, 0x6c, 0xa7, 0x00, 0x06, 0x57, 0x05, 0xac, 0x02, 0xac}
	handlers := []classfile.ExceptionHandler{
		{StartPC: 0, EndPC: 3, HandlerPC: 6, CatchType: "java/lang/ArithmeticException"},
	}
	code := codeOf(t, 2, 0, raw, handlers)
	class := &Class{Def: &ClassDef{Name: "test/C"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "guarded", Descriptor: "()I", Static: true, Code: code}

	ret, err := m.Invoke(class, method, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), ret.AsInt())
}

func TestInvokeUncaughtExceptionPropagates(t *testing.T) {
	m := newTestVM()
	withExceptionHierarchy(t, m)
	raw := []byte{0x04, 0x03, 0x6c, 0xac}
	handlers := []classfile.ExceptionHandler{
		{StartPC: 0, EndPC: 1, HandlerPC: 0, CatchType: "java/lang/ArithmeticException"},
	}
	code := codeOf(t, 2, 0, raw, handlers)
	class := &Class{Def: &ClassDef{Name: "test/C"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "unguarded", Descriptor: "()I", Static: true, Code: code}

	_, err := m.Invoke(class, method, nil)
	require.Error(t, err)
	var thrown *Throwable
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "java/lang/ArithmeticException", thrown.ClassName)
}

func TestInvokeNativeMethodDispatch(t *testing.T) {
	m := newTestVM()
	called := false
	method := &MethodDef{
		Name: "hello", Descriptor: "()V", Static: true,
		Native: func(vm *VM, this *Instance, args []Value) (Value, error) {
			called = true
			return VoidValue(), nil
		},
	}
	class := &Class{Def: &ClassDef{Name: "test/C"}, StaticFields: map[fieldKey]Value{}}

	_, err := m.Invoke(class, method, nil)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestInvokeAbstractMethodRaises(t *testing.T) {
	m := newTestVM()
	withExceptionHierarchy(t, m)
	_, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/Error", SuperName: "java/lang/Throwable"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/AbstractMethodError", SuperName: "java/lang/Error"})
	require.NoError(t, err)

	class := &Class{Def: &ClassDef{Name: "test/Abstract"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "doIt", Descriptor: "()V", Abstract: true}

	_, err = m.Invoke(class, method, nil)
	require.Error(t, err)
	var thrown *Throwable
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "java/lang/AbstractMethodError", thrown.ClassName)
}

func TestEnsureInitializedRunsClinitOnce(t *testing.T) {
	m := newTestVM()
	runs := 0
	clinit := MethodDef{
		Name: "<clinit>", Descriptor: "()V", Static: true,
		Native: func(vm *VM, this *Instance, args []Value) (Value, error) {
			runs++
			return VoidValue(), nil
		},
	}
	c := &Class{
		Def:          &ClassDef{Name: "test/Inited", SuperName: "java/lang/Object", Methods: []MethodDef{clinit}},
		StaticFields: map[fieldKey]Value{},
	}
	obj, _ := m.lookupClass("java/lang/Object")
	c.Super = obj

	require.NoError(t, m.EnsureInitialized(c))
	require.NoError(t, m.EnsureInitialized(c))
	assert.Equal(t, 1, runs)
	assert.Equal(t, Initialized, c.State)
}

func TestEnsureInitializedInitializesSuperFirst(t *testing.T) {
	m := newTestVM()
	var order []string
	superClinit := MethodDef{Name: "<clinit>", Descriptor: "()V", Static: true, Native: func(vm *VM, this *Instance, args []Value) (Value, error) {
		order = append(order, "super")
		return VoidValue(), nil
	}}
	subClinit := MethodDef{Name: "<clinit>", Descriptor: "()V", Static: true, Native: func(vm *VM, this *Instance, args []Value) (Value, error) {
		order = append(order, "sub")
		return VoidValue(), nil
	}}
	obj, _ := m.lookupClass("java/lang/Object")
	super := &Class{
		Def:          &ClassDef{Name: "test/Super", SuperName: "java/lang/Object", Methods: []MethodDef{superClinit}},
		Super:        obj,
		StaticFields: map[fieldKey]Value{},
	}
	sub := &Class{
		Def:          &ClassDef{Name: "test/Sub", SuperName: "test/Super", Methods: []MethodDef{subClinit}},
		Super:        super,
		StaticFields: map[fieldKey]Value{},
	}

	require.NoError(t, m.EnsureInitialized(sub))
	assert.Equal(t, []string{"super", "sub"}, order)
}

// buildRefPool assembles a one-entry-family constant pool (ClassRef +
// NameAndType + Methodref) for a single invokestatic target, returning the
// pool and the Methodref's 1-based index.
func buildRefPool(t *testing.T, owner, name, descriptor string) (classfile.Pool, uint16) {
	t.Helper()
	var items []classfile.Item
	intern := func(it classfile.Item) uint16 {
		items = append(items, it)
		return uint16(len(items))
	}
	ownerNameIdx := intern(&classfile.Utf8{Value: owner})
	ownerIdx := intern(&classfile.ClassRef{NameIndex: ownerNameIdx})
	methNameIdx := intern(&classfile.Utf8{Value: name})
	descIdx := intern(&classfile.Utf8{Value: descriptor})
	natIdx := intern(&classfile.NameAndType{NameIndex: methNameIdx, DescriptorIndex: descIdx})
	methodrefIdx := intern(&classfile.Methodref{ClassIndex: ownerIdx, NameAndTypeIndex: natIdx})

	pool := make(classfile.Pool, len(items)+1)
	for i, it := range items {
		pool[i+1] = it
	}
	return pool, methodrefIdx
}

func TestInvokeStackOverflowRaisesCatchableError(t *testing.T) {
	m := newTestVM()
	withExceptionHierarchy(t, m)
	_, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/Error", SuperName: "java/lang/Throwable"})
	require.NoError(t, err)
	_, err = m.RegisterShimClass(&ClassDef{Name: "java/lang/StackOverflowError", SuperName: "java/lang/Error"})
	require.NoError(t, err)

	pool, idx := buildRefPool(t, "test/Recur", "recur", "()V")
	// invokestatic idx, return
	raw := append([]byte{0xb8}, byte(idx>>8), byte(idx)) //nolint:gocritic
	raw = append(raw, 0xb1)

	instrs, err := classfile.DecodeCode(raw, pool)
	require.NoError(t, err)
	code := &classfile.CodeAttribute{MaxStack: 0, MaxLocals: 0, Instrs: instrs}

	class := &Class{Def: &ClassDef{Name: "test/Recur"}, StaticFields: map[fieldKey]Value{}}
	method := &MethodDef{Name: "recur", Descriptor: "()V", Static: true, Code: code}
	class.Def.Methods = []MethodDef{*method}
	m.registerClass(class)

	_, err = m.Invoke(class, method, nil)
	require.Error(t, err)
	var thrown *Throwable
	require.ErrorAs(t, err, &thrown)
	assert.Equal(t, "java/lang/StackOverflowError", thrown.ClassName)
}
