// Package runtime is hearthvm's shim library (spec.md §4.8): the minimal
// set of java/lang, java/io, java/util, java/util/jar, java/util/zip, and
// rustjava classes whose methods are host-native Go callbacks rather than
// decoded bytecode. Every class here is a capability the interpreter
// consumes through the same vm.Class/vm.MethodDef shape a bytecode-backed
// class uses (spec.md §9: "lets the shim library insert native bodies next
// to bytecode bodies transparently").
package runtime

import (
	"fmt"

	"github.com/hearthvm/hearthvm/pkg/vm"
)

// Register installs every shim class this package knows about into vm, in
// dependency order (java/lang/Object first, since every other class's
// SuperName chain bottoms out there). Call this once per VM before
// resolving any bootstrap or user class.
func Register(m *vm.VM) error {
	groups := [][]*vm.ClassDef{
		langProtos(),
		ioProtos(),
		utilProtos(),
		jarProtos(),
		classpathProtos(),
	}
	for _, protos := range groups {
		if err := m.RegisterBootstrapClasses(protos); err != nil {
			return fmt.Errorf("runtime.Register: %w", err)
		}
	}
	return nil
}

// method is a small constructor to keep the per-class proto tables in
// lang.go/io.go/util.go/jar.go/classpath.go terse — the same role the
// original's JavaMethodProto::new plays in every classes/java/... file in
// original_source/java_runtime.
func method(name, descriptor string, static bool, fn vm.NativeMethod) vm.MethodDef {
	return vm.MethodDef{Name: name, Descriptor: descriptor, Static: static, Native: fn}
}

func field(name, descriptor string, static bool) vm.FieldDef {
	return vm.FieldDef{Name: name, Descriptor: descriptor, Static: static}
}
