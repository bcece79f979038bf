package runtime

import (
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hearthvm/hearthvm/pkg/classfile"
	"github.com/hearthvm/hearthvm/pkg/vm"
)

// langProtos builds java/lang/* in dependency order: Object first (every
// other class's SuperName chain bottoms out there), then the Throwable
// family the interpreter's raise* helpers (pkg/vm/exception.go) name.
func langProtos() []*vm.ClassDef {
	return []*vm.ClassDef{
		objectProto(),
		cloneableProto(),
		classProto(),
		classLoaderProto(),
		stringProto(),
		stringBufferProto(),
		integerProto(),
		runnableProto(),
		threadProto(),
		systemProto(),
		throwableProto(),
		exceptionProto("java/lang/Exception", "java/lang/Throwable"),
		exceptionProto("java/lang/RuntimeException", "java/lang/Exception"),
		exceptionProto("java/lang/NullPointerException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/IllegalArgumentException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/ArithmeticException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/ArrayIndexOutOfBoundsException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/ClassCastException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/NegativeArraySizeException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/UnsupportedOperationException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/StringIndexOutOfBoundsException", "java/lang/RuntimeException"),
		exceptionProto("java/lang/NumberFormatException", "java/lang/IllegalArgumentException"),
		exceptionProto("java/lang/ClassNotFoundException", "java/lang/Exception"),
		exceptionProto("java/lang/CloneNotSupportedException", "java/lang/Exception"),
		exceptionProto("java/lang/Error", "java/lang/Throwable"),
		exceptionProto("java/lang/AbstractMethodError", "java/lang/Error"),
		exceptionProto("java/lang/NoSuchFieldError", "java/lang/Error"),
		exceptionProto("java/lang/NoSuchMethodError", "java/lang/Error"),
		exceptionProto("java/lang/StackOverflowError", "java/lang/Error"),
		exceptionProto("java/lang/OutOfMemoryError", "java/lang/Error"),
		exceptionProto("java/lang/VerifyError", "java/lang/Error"),
		exceptionProto("java/lang/NoClassDefFoundError", "java/lang/Error"),
	}
}

func objectProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.VoidValue(), nil
			}),
			method("hashCode", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.IntValue(this.IdentityHash()), nil
			}),
			method("equals", "(Ljava/lang/Object;)Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.BooleanValue(this == args[0].AsObject()), nil
			}),
			method("toString", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return m.NewString(fmt.Sprintf("%s@%x", this.Class.Def.Name, uint32(this.IdentityHash()))), nil
			}),
			method("getClass", "()Ljava/lang/Class;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				mirror, err := m.JavaClass(this.Class)
				if err != nil {
					return vm.Value{}, err
				}
				return vm.ObjectValue(mirror), nil
			}),
			method("notify", "()V", false, noop),
			method("notifyAll", "()V", false, noop),
			method("wait", "()V", false, noop),
			method("wait", "(J)V", false, noop),
			// clone resolves spec.md §9's Open Question: a shallow,
			// field-for-field copy for both arrays and plain objects,
			// gated on java/lang/Cloneable exactly as the JLS requires.
			method("clone", "()Ljava/lang/Object;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				if this.IsArray() {
					return vm.ObjectValue(this.Clone()), nil
				}
				cloneable, err := m.ResolveClass("java/lang/Cloneable")
				if err != nil || !m.IsInstance(this, cloneable) {
					return vm.Value{}, m.Raise("java/lang/CloneNotSupportedException", "%s", this.Class.Def.Name)
				}
				return vm.ObjectValue(this.Clone()), nil
			}),
		},
	}
}

// cloneableProto is java/lang/Cloneable: a marker interface with no methods,
// checked by Object.clone() via the interpreter's shallow interface-name
// predicate.
func cloneableProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:        "java/lang/Cloneable",
		IsInterface: true,
	}
}

func noop(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) { return vm.VoidValue(), nil }

func classProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/lang/Class",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("getName", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				c, ok := m.ClassOfMirror(this)
				if !ok {
					return m.NewString(""), nil
				}
				return m.NewString(c.Def.Name), nil
			}),
			method("isInterface", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				c, _ := m.ClassOfMirror(this)
				return vm.BooleanValue(c != nil && c.Def.IsInterface), nil
			}),
			method("isArray", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				c, _ := m.ClassOfMirror(this)
				return vm.BooleanValue(c != nil && c.Def.IsArray), nil
			}),
			method("forName", "(Ljava/lang/String;)Ljava/lang/Class;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				c, err := m.ResolveClass(internalName(name))
				if err != nil {
					return vm.Value{}, m.Raise("java/lang/ClassNotFoundException", "%s", name)
				}
				mirror, err := m.JavaClass(c)
				if err != nil {
					return vm.Value{}, err
				}
				return vm.ObjectValue(mirror), nil
			}),
			method("getResourceAsStream", "(Ljava/lang/String;)Ljava/io/InputStream;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				var data []byte
				var ok bool
				m.Suspend(func() { data, ok = m.Platform.LoadResource(name) })
				if !ok {
					return vm.NullValue(), nil
				}
				return newByteArrayInputStream(m, data)
			}),
		},
	}
}

// internalName converts a Class.forName-style dotted name to the decoder's
// slash-separated internal form.
func internalName(dotted string) string {
	out := []byte(dotted)
	for i, b := range out {
		if b == '.' {
			out[i] = '/'
		}
	}
	return string(out)
}

func classLoaderProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/lang/ClassLoader",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			method("getSystemClassLoader", "()Ljava/lang/ClassLoader;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				inst, err := m.InstantiateClass("rustjava/ClassPathClassLoader")
				if err != nil {
					return vm.Value{}, err
				}
				return vm.ObjectValue(inst), nil
			}),
			// findClass/findResource are left unimplemented here: spec.md
			// §4.6 has user loaders provide bodies for these in bytecode,
			// dispatched virtually by the registry's resolution chain.
			method("loadClass", "(Ljava/lang/String;)Ljava/lang/Class;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				ret, err := m.InvokeVirtual(this, "findClass", "(Ljava/lang/String;)Ljava/lang/Class;", []vm.Value{args[0]})
				if err != nil {
					return vm.Value{}, err
				}
				_ = name
				return ret, nil
			}),
		},
	}
}

func stringProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/lang/String",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = ""
				return vm.VoidValue(), nil
			}),
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native, _ = vm.StringOf(args[0].AsObject())
				return vm.VoidValue(), nil
			}),
			method("length", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(this)
				return vm.IntValue(int32(len([]rune(s)))), nil
			}),
			method("charAt", "(I)C", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(this)
				r := []rune(s)
				i := args[0].AsInt()
				if i < 0 || int(i) >= len(r) {
					return vm.Value{}, m.Raise("java/lang/StringIndexOutOfBoundsException", "%d", i)
				}
				return vm.CharValue(uint16(r[i])), nil
			}),
			method("equals", "(Ljava/lang/Object;)Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(this)
				other := args[0].AsObject()
				if other == nil || other.Class.Def.Name != "java/lang/String" {
					return vm.BooleanValue(false), nil
				}
				o, _ := vm.StringOf(other)
				return vm.BooleanValue(s == o), nil
			}),
			method("hashCode", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(this)
				var h int32
				for _, r := range s {
					h = 31*h + int32(r)
				}
				return vm.IntValue(h), nil
			}),
			method("toString", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.ObjectValue(this), nil
			}),
			method("concat", "(Ljava/lang/String;)Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(this)
				o, _ := vm.StringOf(args[0].AsObject())
				return m.NewString(s + o), nil
			}),
			method("intern", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.ObjectValue(this), nil
			}),
		},
	}
}

func stringBufferProto() *vm.ClassDef {
	appendStr := func(m *vm.VM, this *vm.Instance, s string) (vm.Value, error) {
		cur, _ := this.Native.(string)
		this.Native = cur + s
		return vm.ObjectValue(this), nil
	}
	return &vm.ClassDef{
		Name:      "java/lang/StringBuffer",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = ""
				return vm.VoidValue(), nil
			}),
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(args[0].AsObject())
				this.Native = s
				return vm.VoidValue(), nil
			}),
			method("append", "(Ljava/lang/String;)Ljava/lang/StringBuffer;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(args[0].AsObject())
				return appendStr(m, this, s)
			}),
			method("append", "(I)Ljava/lang/StringBuffer;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return appendStr(m, this, strconv.FormatInt(int64(args[0].AsInt()), 10))
			}),
			method("append", "(J)Ljava/lang/StringBuffer;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return appendStr(m, this, strconv.FormatInt(args[0].AsLong(), 10))
			}),
			method("append", "(C)Ljava/lang/StringBuffer;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return appendStr(m, this, string(rune(args[0].AsInt())))
			}),
			method("length", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := this.Native.(string)
				return vm.IntValue(int32(len([]rune(s)))), nil
			}),
			method("toString", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := this.Native.(string)
				return m.NewString(s), nil
			}),
		},
	}
}

func integerProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/lang/Integer",
		SuperName: "java/lang/Object",
		Fields: []vm.FieldDef{
			{Name: "MAX_VALUE", Descriptor: "I", Static: true, Constant: &classfile.ConstantValue{Kind: classfile.ConstantValueInt, Int: 2147483647}},
			{Name: "MIN_VALUE", Descriptor: "I", Static: true, Constant: &classfile.ConstantValue{Kind: classfile.ConstantValueInt, Int: -2147483648}},
			field("value", "I", false),
		},
		Methods: []vm.MethodDef{
			method("<init>", "(I)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.PutField("value", "I", args[0])
				return vm.VoidValue(), nil
			}),
			method("intValue", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				v, _ := this.GetField("value", "I")
				return v, nil
			}),
			method("parseInt", "(Ljava/lang/String;)I", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				s, _ := vm.StringOf(args[0].AsObject())
				n, err := strconv.ParseInt(s, 10, 32)
				if err != nil {
					return vm.Value{}, m.Raise("java/lang/NumberFormatException", "For input string: %q", s)
				}
				return vm.IntValue(int32(n)), nil
			}),
			method("toString", "(I)Ljava/lang/String;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return m.NewString(strconv.FormatInt(int64(args[0].AsInt()), 10)), nil
			}),
			method("valueOf", "(I)Ljava/lang/Integer;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				inst, err := m.InstantiateClass("java/lang/Integer")
				if err != nil {
					return vm.Value{}, err
				}
				inst.PutField("value", "I", args[0])
				return vm.ObjectValue(inst), nil
			}),
		},
	}
}

func runnableProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:        "java/lang/Runnable",
		IsInterface: true,
		Methods: []vm.MethodDef{
			{Name: "run", Descriptor: "()V", Abstract: true},
		},
	}
}

// threadState backs a Thread instance's Native field: the errgroup tracking
// its spawned run() callback, so join() can wait on it (SPEC_FULL.md's
// DOMAIN STACK table: "Tracks goroutines spawned by Thread.start").
type threadState struct {
	group *errgroup.Group
}

func threadProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:       "java/lang/Thread",
		SuperName:  "java/lang/Object",
		Interfaces: []string{"java/lang/Runnable"},
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			method("run", "()V", false, noop),
			method("start", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				g := &errgroup.Group{}
				this.Native = &threadState{group: g}
				g.Go(func() error {
					done := make(chan error, 1)
					m.Platform.Spawn(func() {
						m.AcquireTurn()
						_, err := m.InvokeVirtual(this, "run", "()V", nil)
						m.ReleaseTurn()
						done <- err
					})
					return <-done
				})
				return vm.VoidValue(), nil
			}),
			method("join", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				ts, ok := this.Native.(*threadState)
				if !ok || ts.group == nil {
					return vm.VoidValue(), nil
				}
				// Wait must release the turn: the joined thread needs it to run.
				var err error
				m.Suspend(func() { err = ts.group.Wait() })
				if err != nil {
					return vm.Value{}, err
				}
				return vm.VoidValue(), nil
			}),
			method("setPriority", "(I)V", false, noop),
			method("setName", "(Ljava/lang/String;)V", false, noop),
			method("currentThread", "()Ljava/lang/Thread;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				inst, err := m.InstantiateClass("java/lang/Thread")
				if err != nil {
					return vm.Value{}, err
				}
				return vm.ObjectValue(inst), nil
			}),
			method("sleep", "(J)V", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Suspend(func() { m.Platform.Sleep(args[0].AsLong()) })
				return vm.VoidValue(), nil
			}),
			method("yield", "()V", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Suspend(func() { m.Platform.Yield() })
				return vm.VoidValue(), nil
			}),
		},
	}
}

func systemProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/lang/System",
		SuperName: "java/lang/Object",
		Fields: []vm.FieldDef{
			field("out", "Ljava/io/PrintStream;", true),
		},
		Methods: []vm.MethodDef{
			method("<clinit>", "()V", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				out, err := m.InstantiateClass("java/io/PrintStream")
				if err != nil {
					return vm.Value{}, err
				}
				if _, err := m.InvokeVirtual(out, "<init>", "()V", nil); err != nil {
					return vm.Value{}, err
				}
				if err := m.PutStaticField("java/lang/System", "out", "Ljava/io/PrintStream;", vm.ObjectValue(out)); err != nil {
					return vm.Value{}, err
				}
				return vm.VoidValue(), nil
			}),
			method("currentTimeMillis", "()J", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.LongValue(m.Platform.Now()), nil
			}),
			method("nanoTime", "()J", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return vm.LongValue(m.Platform.Now() * 1e6), nil
			}),
			method("arraycopy", "(Ljava/lang/Object;ILjava/lang/Object;II)V", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				src, srcPos, dst, dstPos, length := args[0].AsObject(), args[1].AsInt(), args[2].AsObject(), args[3].AsInt(), args[4].AsInt()
				vs, err := m.LoadArray(src, int(srcPos), int(length))
				if err != nil {
					return vm.Value{}, err
				}
				if err := m.StoreArray(dst, int(dstPos), vs); err != nil {
					return vm.Value{}, err
				}
				return vm.VoidValue(), nil
			}),
			method("gc", "()V", true, noop),
			method("exit", "(I)V", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Log().Warn("System.exit called; ignored by the embedded VM")
				return vm.VoidValue(), nil
			}),
		},
	}
}

func throwableProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/lang/Throwable",
		SuperName: "java/lang/Object",
		Fields: []vm.FieldDef{
			field("message", "Ljava/lang/String;", false),
		},
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.PutField("message", "Ljava/lang/String;", args[0])
				return vm.VoidValue(), nil
			}),
			method("getMessage", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				v, _ := this.GetField("message", "Ljava/lang/String;")
				return v, nil
			}),
			method("toString", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				msg, _ := this.GetField("message", "Ljava/lang/String;")
				if msg.IsNull() {
					return m.NewString(this.Class.Def.Name), nil
				}
				return m.NewString(this.Class.Def.Name + ": " + vm.MustStringOf(msg)), nil
			}),
			method("printStackTrace", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				msg, _ := this.GetField("message", "Ljava/lang/String;")
				m.Platform.Println(this.Class.Def.Name + ": " + vm.MustStringOf(msg))
				return vm.VoidValue(), nil
			}),
		},
	}
}

// exceptionProto declares a Throwable subclass that only needs the two
// standard constructors — every concrete exception/error named in the
// java/lang, java/io, and java/util trees except Throwable itself.
func exceptionProto(name, superName string) *vm.ClassDef {
	return &vm.ClassDef{
		Name:      name,
		SuperName: superName,
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, noop),
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.PutField("message", "Ljava/lang/String;", args[0])
				return vm.VoidValue(), nil
			}),
		},
	}
}
