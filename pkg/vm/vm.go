package vm

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Platform is the host embedding surface spec.md §6 names: the clock, sleep,
// yield, spawn, resource loader, and line sink a shim class's native body
// reaches through to. The VM never touches the operating system directly —
// every shim method that needs the outside world goes through this.
type Platform interface {
	// Println is PrintStream's line sink.
	Println(text string)
	// LoadResource backs Class.getResourceAsStream; ok is false if no
	// resource by that name is available.
	LoadResource(name string) ([]byte, bool)
	// Now returns milliseconds since the epoch.
	Now() int64
	// Sleep suspends the calling goroutine for the given duration in
	// milliseconds. A suspension point per spec.md §5.
	Sleep(millis int64)
	// Yield cooperatively hands off to other runnable tasks.
	Yield()
	// Spawn fires off cb as an independent, fire-and-forget task — the
	// primitive Thread.start is implemented on top of.
	Spawn(cb func())
}

// VM is the embeddable virtual machine: the class registry plus the
// interpreter's transient per-call state. One VM corresponds to spec.md §9's
// "process-wide state... from new_vm to the VM's drop".
type VM struct {
	reg      *registry
	Platform Platform
	log      *logrus.Logger

	frameDepth int

	// turn is the single-threaded-cooperative scheduling token SPEC_FULL.md's
	// CONCURRENCY MODEL describes: a buffered channel of capacity 1 that
	// holds exactly one token whenever some goroutine is entitled to run
	// Java code. The goroutine that called NewVM owns it from the start;
	// Thread.start's spawned goroutine (runtime.threadProto in pkg/runtime)
	// acquires it via AcquireTurn before invoking run(), and every
	// suspension-point native (Thread.sleep, Thread.yield,
	// Class.getResourceAsStream) releases it for the duration of the
	// blocking Platform call via Suspend so a waiting thread can make
	// progress in the meantime.
	turn chan struct{}
}

// NewVM creates a VM bound to the given host platform. The caller still must
// install at least one class source (AddClassSource) and the shim library
// (runtime.Register, or equivalent) before resolving any class.
func NewVM(platform Platform) *VM {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	turn := make(chan struct{}, 1)
	turn <- struct{}{}
	return &VM{
		reg:      newRegistry(),
		Platform: platform,
		log:      log,
		turn:     turn,
	}
}

// AcquireTurn blocks until the calling goroutine holds the cooperative
// scheduling token. The goroutine that constructed the VM holds it already;
// call this once at the top of any other goroutine before it runs Java code
// (Thread.start's spawned callback).
func (vm *VM) AcquireTurn() { <-vm.turn }

// ReleaseTurn hands the token back: permanently, when a goroutine is done
// running Java code (a Thread.start callback returning), or temporarily
// around a suspension point, paired with a later AcquireTurn.
func (vm *VM) ReleaseTurn() { vm.turn <- struct{}{} }

// Suspend releases the turn for the duration of fn and reacquires it
// before returning, so another goroutine waiting on AcquireTurn (a spawned
// Java thread) can run while fn blocks on the host platform.
func (vm *VM) Suspend(fn func()) {
	vm.ReleaseTurn()
	defer vm.AcquireTurn()
	fn()
}

// Log exposes the VM's logger so embedders and the shim library can log at
// the VM's configured level without threading a separate logger through.
func (vm *VM) Log() *logrus.Logger { return vm.log }

// SetLogLevel adjusts verbosity; the CLI's --verbose flag calls through to
// this (spec.md §6 names no logging knob — this is purely an ambient-stack
// convenience, see SPEC_FULL.md's Logging section).
func (vm *VM) SetLogLevel(level logrus.Level) { vm.log.SetLevel(level) }

// Execute is the thin embedding entry point spec.md §6 leaves out of scope:
// resolve mainClass, initialize it, and invoke its
// main([Ljava/lang/String;)V with a null args array.
func (vm *VM) Execute(mainClass string) error {
	class, err := vm.ResolveClass(mainClass)
	if err != nil {
		return err
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return err
	}
	method := class.Def.FindMethod("main", "([Ljava/lang/String;)V")
	if method == nil {
		return fmt.Errorf("main method not found in %s", mainClass)
	}
	_, err = vm.Invoke(class, method, []Value{NullValue()})
	return err
}

// InvokeStatic is the embedder API spec.md §6 names:
// "jvm.invoke_static(class, name, descriptor, args) -> async Value".
func (vm *VM) InvokeStatic(className, name, descriptor string, args []Value) (Value, error) {
	class, err := vm.ResolveClass(className)
	if err != nil {
		return Value{}, err
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return Value{}, err
	}
	method := class.Def.FindMethod(name, descriptor)
	if method == nil {
		return Value{}, vm.raiseNoSuchMethod(className, name, descriptor)
	}
	return vm.Invoke(class, method, args)
}

// InvokeVirtual is spec.md §6's
// "jvm.invoke_virtual(instance, name, descriptor, args) -> async Value": the
// embedder-facing counterpart of the interpreter's own invokevirtual.
func (vm *VM) InvokeVirtual(instance *Instance, name, descriptor string, args []Value) (Value, error) {
	if instance == nil {
		return Value{}, vm.raiseNPE("invokeVirtual on null")
	}
	class, method := instance.Class.ResolveVirtual(name, descriptor)
	if method == nil {
		return Value{}, vm.raiseAbstractMethod(instance.Class.Def.Name, name, descriptor)
	}
	full := append([]Value{ObjectValue(instance)}, args...)
	return vm.Invoke(class, method, full)
}

// InstantiateClass is spec.md §6's "jvm.instantiate_class(name) ->
// async Instance": allocate and default-initialize an instance without
// running a constructor (callers that need <init> run it themselves via
// InvokeSpecial-equivalent InvokeStatic-style lookup, matching the
// interpreter's own `new` + invokespecial two-step).
func (vm *VM) InstantiateClass(name string) (*Instance, error) {
	class, err := vm.ResolveClass(name)
	if err != nil {
		return nil, err
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return nil, err
	}
	return NewInstance(class), nil
}

// InstantiateArray is spec.md §6's
// "jvm.instantiate_array(element_descriptor, length) -> async Array".
func (vm *VM) InstantiateArray(elemDescriptor string, length int) (*Instance, error) {
	class, err := vm.ResolveClass(arrayClassName(elemDescriptor))
	if err != nil {
		return nil, err
	}
	inst, err := InstantiateArray(class, length)
	if err != nil {
		return nil, vm.arrayErrToThrowable(err)
	}
	return inst, nil
}

// GetField / PutField are spec.md §6's
// "jvm.{get,put}_field(instance, name, descriptor[, value])".
func (vm *VM) GetField(instance *Instance, name, descriptor string) (Value, error) {
	if instance == nil {
		return Value{}, vm.raiseNPE("getField on null")
	}
	v, ok := instance.GetField(name, descriptor)
	if !ok {
		return Value{}, vm.raiseNoSuchField(instance.Class.Def.Name, name, descriptor)
	}
	return v, nil
}

func (vm *VM) PutField(instance *Instance, name, descriptor string, value Value) error {
	if instance == nil {
		return vm.raiseNPE("putField on null")
	}
	if !instance.PutField(name, descriptor, value) {
		return vm.raiseNoSuchField(instance.Class.Def.Name, name, descriptor)
	}
	return nil
}

// GetStaticField / PutStaticField are spec.md §6's
// "jvm.{get,put}_static_field(class, name, descriptor[, value])".
func (vm *VM) GetStaticField(className, name, descriptor string) (Value, error) {
	class, err := vm.ResolveClass(className)
	if err != nil {
		return Value{}, err
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return Value{}, err
	}
	return vm.readStatic(class, name, descriptor)
}

func (vm *VM) PutStaticField(className, name, descriptor string, value Value) error {
	class, err := vm.ResolveClass(className)
	if err != nil {
		return err
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return err
	}
	return vm.writeStatic(class, name, descriptor, value)
}

// LoadArray / StoreArray / ArrayLength are spec.md §6's
// "jvm.load_array / store_array / array_length".
func (vm *VM) LoadArray(arr *Instance, offset, count int) ([]Value, error) {
	h, ok := AsArray(arr)
	if !ok {
		return nil, vm.raiseVerify("LoadArray on non-array")
	}
	vs, err := h.Load(offset, count)
	if err != nil {
		return nil, vm.arrayErrToThrowable(err)
	}
	return vs, nil
}

func (vm *VM) StoreArray(arr *Instance, offset int, values []Value) error {
	h, ok := AsArray(arr)
	if !ok {
		return vm.raiseVerify("StoreArray on non-array")
	}
	if err := h.Store(offset, values); err != nil {
		return vm.arrayErrToThrowable(err)
	}
	return nil
}

func (vm *VM) ArrayLength(arr *Instance) (int, error) {
	h, ok := AsArray(arr)
	if !ok {
		return 0, vm.raiseVerify("ArrayLength on non-array")
	}
	return h.Length(), nil
}

// IsInstance exposes the interpreter's instanceof/checkcast predicate to
// embedders and shim packages (e.g. Object.clone()'s Cloneable check).
func (vm *VM) IsInstance(obj *Instance, target *Class) bool {
	return vm.isInstance(obj, target)
}
