package vm

import "fmt"

// Throwable is a thrown Java exception crossing Go's error interface,
// per spec.md §7: "Thrown Java exceptions are carried as a distinguished Go
// error type (*vm.Throwable)... so errors.As can recover the Java-side class
// name and message at the embedder boundary."
type Throwable struct {
	ClassName string
	Message   string
	Instance  *Instance // the live exception object; nil only for throws raised before java/lang/Object exists
}

func (t *Throwable) Error() string {
	if t.Message == "" {
		return t.ClassName
	}
	return fmt.Sprintf("%s: %s", t.ClassName, t.Message)
}

// NewThrowable resolves className, allocates an instance, and stores message
// in its "message" field if declared (java/lang/Throwable's detailMessage in
// the shim library). Resolution failure here is a bootstrap bug — every
// throwable class named in spec.md §7 is a required shim class — so it's
// wrapped rather than silently downgraded.
func (vm *VM) NewThrowable(className, message string) (*Throwable, error) {
	class, err := vm.ResolveClass(className)
	if err != nil {
		return nil, fmt.Errorf("raising %s: %w", className, err)
	}
	inst := NewInstance(class)
	inst.PutField("message", "Ljava/lang/String;", vm.NewString(message))
	return &Throwable{ClassName: className, Message: message, Instance: inst}, nil
}

// Raise is a convenience that builds and returns a Throwable as a Go error,
// for natives and the interpreter's own runtime checks.
func (vm *VM) Raise(className, format string, args ...interface{}) error {
	t, err := vm.NewThrowable(className, fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	return t
}

func (vm *VM) raiseNPE(detail string) error { return vm.Raise("java/lang/NullPointerException", "%s", detail) }

func (vm *VM) raiseArithmetic(detail string) error {
	return vm.Raise("java/lang/ArithmeticException", "%s", detail)
}

func (vm *VM) raiseArrayBounds(index, length int) error {
	return vm.Raise("java/lang/ArrayIndexOutOfBoundsException",
		"Index %d out of bounds for length %d", index, length)
}

func (vm *VM) raiseClassCast(from, to string) error {
	return vm.Raise("java/lang/ClassCastException",
		"class %s cannot be cast to class %s", from, to)
}

func (vm *VM) raiseNegativeArraySize(length int) error {
	return vm.Raise("java/lang/NegativeArraySizeException", "%d", length)
}

func (vm *VM) raiseStackOverflow() error {
	return vm.Raise("java/lang/StackOverflowError", "")
}

func (vm *VM) raiseUnsupported(op string) error {
	return vm.Raise("java/lang/UnsupportedOperationException", "%s", op)
}

func (vm *VM) raiseNoClassDef(name string) error {
	return vm.Raise("java/lang/NoClassDefFoundError", "%s", name)
}

func (vm *VM) raiseAbstractMethod(class, name, descriptor string) error {
	return vm.Raise("java/lang/AbstractMethodError", "%s.%s%s", class, name, descriptor)
}

func (vm *VM) raiseNoSuchField(class, name, descriptor string) error {
	return vm.Raise("java/lang/NoSuchFieldError", "%s.%s:%s", class, name, descriptor)
}

func (vm *VM) raiseNoSuchMethod(class, name, descriptor string) error {
	return vm.Raise("java/lang/NoSuchMethodError", "%s.%s%s", class, name, descriptor)
}

func (vm *VM) raiseVerify(detail string) error {
	return vm.Raise("java/lang/VerifyError", "%s", detail)
}
