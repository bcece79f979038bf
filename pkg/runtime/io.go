package runtime

import (
	"github.com/hearthvm/hearthvm/pkg/vm"
)

// ioProtos builds java/io/*: the minimal stream hierarchy the classpath and
// jar shims (classpath.go, jar.go) read class bytes through, plus the
// System.out sink wired in lang.go's systemProto.
func ioProtos() []*vm.ClassDef {
	return []*vm.ClassDef{
		inputStreamProto(),
		outputStreamProto(),
		printStreamProto(),
		byteArrayInputStreamProto(),
		fileProto(),
		exceptionProto("java/io/IOException", "java/lang/Exception"),
		exceptionProto("java/io/EOFException", "java/io/IOException"),
		exceptionProto("java/io/FileNotFoundException", "java/io/IOException"),
	}
}

func inputStreamProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/io/InputStream",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			{Name: "read", Descriptor: "()I", Abstract: true},
			method("read", "([B)I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				buf, ok := vm.AsArray(args[0].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "read target is null")
				}
				n := 0
				for n < buf.Length() {
					b, err := m.InvokeVirtual(this, "read", "()I", nil)
					if err != nil {
						return vm.Value{}, err
					}
					if b.AsInt() < 0 {
						break
					}
					if err := buf.StoreOne(n, vm.IntValue(b.AsInt())); err != nil {
						return vm.Value{}, err
					}
					n++
				}
				if n == 0 {
					return vm.IntValue(-1), nil
				}
				return vm.IntValue(int32(n)), nil
			}),
			method("available", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(0), nil
			}),
			method("close", "()V", false, noop),
		},
	}
}

func outputStreamProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/io/OutputStream",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			{Name: "write", Descriptor: "(I)V", Abstract: true},
			method("write", "([B)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				buf, ok := vm.AsArray(args[0].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "write source is null")
				}
				for i := 0; i < buf.Length(); i++ {
					b, err := buf.LoadOne(i)
					if err != nil {
						return vm.Value{}, err
					}
					if _, err := m.InvokeVirtual(this, "write", "(I)V", []vm.Value{vm.IntValue(b.AsInt())}); err != nil {
						return vm.Value{}, err
					}
				}
				return vm.VoidValue(), nil
			}),
			method("flush", "()V", false, noop),
			method("close", "()V", false, noop),
		},
	}
}

// printStreamProto backs System.out (lang.go's systemProto <clinit>). The
// embedder's Platform only exposes a line-oriented Println, so every
// print/println overload funnels through it — there is no raw unbuffered
// write to a host byte sink.
func printStreamProto() *vm.ClassDef {
	asString := func(m *vm.VM, v vm.Value) string {
		switch v.Kind {
		case vm.KindObject:
			if v.IsNull() {
				return "null"
			}
			s, err := m.InvokeVirtual(v.AsObject(), "toString", "()Ljava/lang/String;", nil)
			if err != nil {
				return ""
			}
			return vm.MustStringOf(s)
		case vm.KindBoolean:
			return boolString(v.AsBool())
		case vm.KindChar:
			return string(rune(v.AsInt()))
		case vm.KindLong:
			return int64String(v.AsLong())
		default:
			return int64String(int64(v.AsInt()))
		}
	}
	return &vm.ClassDef{
		Name:      "java/io/PrintStream",
		SuperName: "java/io/OutputStream",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			method("println", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println("")
				return vm.VoidValue(), nil
			}),
			method("println", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s := args[0]
				if s.IsNull() {
					m.Platform.Println("null")
				} else {
					m.Platform.Println(vm.MustStringOf(s))
				}
				return vm.VoidValue(), nil
			}),
			method("println", "(Ljava/lang/Object;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println(asString(m, args[0]))
				return vm.VoidValue(), nil
			}),
			method("println", "(I)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println(asString(m, args[0]))
				return vm.VoidValue(), nil
			}),
			method("println", "(J)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println(asString(m, args[0]))
				return vm.VoidValue(), nil
			}),
			method("println", "(Z)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println(asString(m, args[0]))
				return vm.VoidValue(), nil
			}),
			method("println", "(C)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println(asString(m, args[0]))
				return vm.VoidValue(), nil
			}),
			method("print", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s := args[0]
				if s.IsNull() {
					m.Platform.Println("null")
				} else {
					m.Platform.Println(vm.MustStringOf(s))
				}
				return vm.VoidValue(), nil
			}),
			method("write", "(I)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Platform.Println(string(rune(args[0].AsInt())))
				return vm.VoidValue(), nil
			}),
			method("flush", "()V", false, noop),
		},
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func int64String(v int64) string {
	neg := v < 0
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	u := uint64(v)
	if neg {
		u = uint64(-v)
	}
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// byteReader is the Native backing of a ByteArrayInputStream instance.
type byteReader struct {
	data []byte
	pos  int
}

func byteArrayInputStreamProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/io/ByteArrayInputStream",
		SuperName: "java/io/InputStream",
		Methods: []vm.MethodDef{
			method("<init>", "([B)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				buf, ok := vm.AsArray(args[0].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "ByteArrayInputStream(byte[])")
				}
				data, _ := buf.LoadByteArray()
				this.Native = &byteReader{data: data}
				return vm.VoidValue(), nil
			}),
			method("read", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				br, _ := this.Native.(*byteReader)
				if br == nil || br.pos >= len(br.data) {
					return vm.IntValue(-1), nil
				}
				b := br.data[br.pos]
				br.pos++
				return vm.IntValue(int32(b)), nil
			}),
			method("available", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				br, _ := this.Native.(*byteReader)
				if br == nil {
					return vm.IntValue(0), nil
				}
				return vm.IntValue(int32(len(br.data) - br.pos)), nil
			}),
		},
	}
}

// newByteArrayInputStream wraps data as a ready-to-use ByteArrayInputStream,
// used by lang.go's Class.getResourceAsStream and classpath.go's resource
// lookups — the embedder never constructs one from bytecode directly.
func newByteArrayInputStream(m *vm.VM, data []byte) (vm.Value, error) {
	class, err := m.ResolveClass("java/io/ByteArrayInputStream")
	if err != nil {
		return vm.Value{}, err
	}
	inst, err := m.InstantiateClass(class.Def.Name)
	if err != nil {
		return vm.Value{}, err
	}
	inst.Native = &byteReader{data: data}
	return vm.ObjectValue(inst), nil
}

func fileProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/io/File",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native, _ = vm.StringOf(args[0].AsObject())
				return vm.VoidValue(), nil
			}),
			method("getName", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				path, _ := this.Native.(string)
				return m.NewString(path), nil
			}),
			method("exists", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				path, _ := this.Native.(string)
				var ok bool
				m.Suspend(func() { _, ok = m.Platform.LoadResource(path) })
				return vm.BooleanValue(ok), nil
			}),
		},
	}
}
