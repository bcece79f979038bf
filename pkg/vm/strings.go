package vm

// NewString allocates a java/lang/String instance backed by s. Strings are
// represented as plain Go strings in Instance.Native rather than UTF-16 char
// arrays — see DESIGN.md's Open Question decision on string encoding.
func (vm *VM) NewString(s string) Value {
	class, err := vm.ResolveClass("java/lang/String")
	if err != nil {
		// Bootstrap ordering bug: java/lang/String must be registered before
		// any shim or bytecode runs. Panicking here surfaces it immediately
		// rather than propagating a confusing nil-object downstream.
		panic("hearthvm: java/lang/String not registered: " + err.Error())
	}
	inst := NewInstance(class)
	inst.Native = s
	return ObjectValue(inst)
}

// StringOf extracts the Go string backing a java/lang/String instance. ok is
// false if obj is nil (null) or not a String instance.
func StringOf(obj *Instance) (string, bool) {
	if obj == nil {
		return "", false
	}
	s, ok := obj.Native.(string)
	return s, ok
}

// MustStringOf is StringOf for call sites that already verified obj is a
// String (e.g. after a checkcast); it returns "" for null.
func MustStringOf(v Value) string {
	if v.IsNull() {
		return ""
	}
	s, _ := StringOf(v.Obj)
	return s
}
