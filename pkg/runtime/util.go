package runtime

import (
	"github.com/hearthvm/hearthvm/pkg/vm"
)

// utilProtos builds java/util/*: Random (the java.util.Random 48-bit LCG,
// grounded on original_source's java_runtime random.rs), and the Vector +
// Enumeration pair jar.go uses to back JarFile/ZipFile entry iteration.
func utilProtos() []*vm.ClassDef {
	return []*vm.ClassDef{
		randomProto(),
		vectorProto(),
		enumerationProto(),
		vectorEnumerationProto(),
		dateProto(),
		calendarProto(),
		gregorianCalendarProto(),
		timerTaskProto(),
		exceptionProto("java/util/NoSuchElementException", "java/lang/RuntimeException"),
	}
}

// javaRandom reproduces java.util.Random's 48-bit linear congruential
// generator so seeded sequences match the reference JDK bit for bit.
type javaRandom struct {
	seed uint64
}

const (
	randMultiplier = 0x5DEECE66D
	randAddend     = 0xB
	randMask       = (1 << 48) - 1
)

func newJavaRandom(seed int64) *javaRandom {
	return &javaRandom{seed: (uint64(seed) ^ randMultiplier) & randMask}
}

func (r *javaRandom) setSeed(seed int64) {
	r.seed = (uint64(seed) ^ randMultiplier) & randMask
}

func (r *javaRandom) next(bits uint) int32 {
	r.seed = (r.seed*randMultiplier + randAddend) & randMask
	return int32(r.seed >> (48 - bits))
}

func (r *javaRandom) nextInt() int32 { return r.next(32) }

func (r *javaRandom) nextIntBound(bound int32) int32 {
	if bound <= 0 {
		return 0
	}
	if bound&(bound-1) == 0 {
		return int32((int64(bound) * int64(r.next(31))) >> 31)
	}
	for {
		bits := r.next(31)
		val := bits % bound
		if bits-val+(bound-1) >= 0 {
			return val
		}
	}
}

func (r *javaRandom) nextLong() int64 {
	return (int64(r.next(32)) << 32) + int64(r.next(32))
}

func (r *javaRandom) nextBoolean() bool { return r.next(1) != 0 }

func (r *javaRandom) nextFloat() float32 {
	return float32(r.next(24)) / float32(1<<24)
}

func (r *javaRandom) nextDouble() float64 {
	hi := int64(r.next(26))
	lo := int64(r.next(27))
	return float64((hi<<27)+lo) / float64(int64(1)<<53)
}

func randomProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/Random",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = newJavaRandom(m.Platform.Now())
				return vm.VoidValue(), nil
			}),
			method("<init>", "(J)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = newJavaRandom(args[0].AsLong())
				return vm.VoidValue(), nil
			}),
			method("setSeed", "(J)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r, _ := this.Native.(*javaRandom)
				if r != nil {
					r.setSeed(args[0].AsLong())
				}
				return vm.VoidValue(), nil
			}),
			method("nextInt", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r := this.Native.(*javaRandom)
				return vm.IntValue(r.nextInt()), nil
			}),
			method("nextInt", "(I)I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r := this.Native.(*javaRandom)
				if args[0].AsInt() <= 0 {
					return vm.Value{}, m.Raise("java/lang/IllegalArgumentException", "bound must be positive")
				}
				return vm.IntValue(r.nextIntBound(args[0].AsInt())), nil
			}),
			method("nextLong", "()J", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r := this.Native.(*javaRandom)
				return vm.LongValue(r.nextLong()), nil
			}),
			method("nextBoolean", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r := this.Native.(*javaRandom)
				return vm.BooleanValue(r.nextBoolean()), nil
			}),
			method("nextFloat", "()F", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r := this.Native.(*javaRandom)
				return vm.FloatValue(r.nextFloat()), nil
			}),
			method("nextDouble", "()D", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				r := this.Native.(*javaRandom)
				return vm.DoubleValue(r.nextDouble()), nil
			}),
		},
	}
}

// vectorState backs java/util/Vector: an ordered, host-side element list.
// Kept as a Go slice rather than routed through array Instances, the same
// simplification StringBuffer makes by keeping its characters in a plain Go
// string.
type vectorState struct {
	elems []vm.Value
}

func vectorProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/Vector",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = &vectorState{}
				return vm.VoidValue(), nil
			}),
			method("addElement", "(Ljava/lang/Object;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				vs := this.Native.(*vectorState)
				vs.elems = append(vs.elems, args[0])
				return vm.VoidValue(), nil
			}),
			method("elementAt", "(I)Ljava/lang/Object;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				vs := this.Native.(*vectorState)
				i := args[0].AsInt()
				if i < 0 || int(i) >= len(vs.elems) {
					return vm.Value{}, m.Raise("java/lang/ArrayIndexOutOfBoundsException", "%d >= %d", i, len(vs.elems))
				}
				return vs.elems[i], nil
			}),
			method("size", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				vs := this.Native.(*vectorState)
				return vm.IntValue(int32(len(vs.elems))), nil
			}),
			method("isEmpty", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				vs := this.Native.(*vectorState)
				return vm.BooleanValue(len(vs.elems) == 0), nil
			}),
			method("elements", "()Ljava/util/Enumeration;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return newEnumeration(m, this.Native.(*vectorState).elems)
			}),
		},
	}
}

func enumerationProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:        "java/util/Enumeration",
		IsInterface: true,
		Methods: []vm.MethodDef{
			{Name: "hasMoreElements", Descriptor: "()Z", Abstract: true},
			{Name: "nextElement", Descriptor: "()Ljava/lang/Object;", Abstract: true},
		},
	}
}

// enumerationState backs the concrete enumeration Vector.elements() returns.
// It isn't a named shim class of its own in spec.md; it's synthesized here
// as an anonymous java/util/Enumeration implementor the same way the
// original wraps a Vec<JValue> iterator.
type enumerationState struct {
	elems []vm.Value
	pos   int
}

func newEnumeration(m *vm.VM, elems []vm.Value) (vm.Value, error) {
	class, err := m.ResolveClass("rustjava/VectorEnumeration")
	if err != nil {
		return vm.Value{}, err
	}
	inst, err := m.InstantiateClass(class.Def.Name)
	if err != nil {
		return vm.Value{}, err
	}
	inst.Native = &enumerationState{elems: elems}
	return vm.ObjectValue(inst), nil
}

// vectorEnumerationProto is the concrete Enumeration implementation backing
// Vector.elements(); registered under the rustjava namespace alongside the
// classpath loader shims (classpath.go), since neither is a real JDK class.
func vectorEnumerationProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:       "rustjava/VectorEnumeration",
		SuperName:  "java/lang/Object",
		Interfaces: []string{"java/util/Enumeration"},
		Methods: []vm.MethodDef{
			method("hasMoreElements", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				es := this.Native.(*enumerationState)
				return vm.BooleanValue(es.pos < len(es.elems)), nil
			}),
			method("nextElement", "()Ljava/lang/Object;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				es := this.Native.(*enumerationState)
				if es.pos >= len(es.elems) {
					return vm.Value{}, m.Raise("java/util/NoSuchElementException", "")
				}
				v := es.elems[es.pos]
				es.pos++
				return v, nil
			}),
		},
	}
}

func dateProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/Date",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = m.Platform.Now()
				return vm.VoidValue(), nil
			}),
			method("<init>", "(J)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = args[0].AsLong()
				return vm.VoidValue(), nil
			}),
			method("getTime", "()J", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				t, _ := this.Native.(int64)
				return vm.LongValue(t), nil
			}),
			method("toString", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				t, _ := this.Native.(int64)
				return m.NewString(int64String(t)), nil
			}),
		},
	}
}

// calendarProto is a stub matching original_source's calendar.rs: its only
// real behavior is getInstance() handing back a GregorianCalendar, logged as
// a warning the way the original's tracing::warn! call flags it as unfinished.
func calendarProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/Calendar",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("getInstance", "()Ljava/util/Calendar;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Log().Warn("stub java/util/Calendar.getInstance")
				inst, err := m.InstantiateClass("java/util/GregorianCalendar")
				if err != nil {
					return vm.Value{}, err
				}
				if _, err := m.InvokeVirtual(inst, "<init>", "()V", nil); err != nil {
					return vm.Value{}, err
				}
				return vm.ObjectValue(inst), nil
			}),
		},
	}
}

// gregorianCalendarProto mirrors original_source's gregorian_calendar.rs: a
// stub subclass whose constructor does nothing beyond a debug log.
func gregorianCalendarProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/GregorianCalendar",
		SuperName: "java/util/Calendar",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				m.Log().Debug("stub java/util/GregorianCalendar.<init>")
				return vm.VoidValue(), nil
			}),
		},
	}
}

// timerTaskProto mirrors original_source's timer_task.rs: an empty base
// class with no native behavior of its own, present so bytecode that
// subclasses it for scheduling purposes resolves.
func timerTaskProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/TimerTask",
		SuperName: "java/lang/Object",
	}
}
