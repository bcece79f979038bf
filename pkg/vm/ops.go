package vm

import (
	"fmt"

	"github.com/hearthvm/hearthvm/pkg/classfile"
)

// popArgs pops count values off frame's operand stack, returning them in
// call order (the order they were originally pushed).
func popArgs(frame *Frame, count int) []Value {
	args := make([]Value, count)
	for i := count - 1; i >= 0; i-- {
		args[i] = frame.Pop()
	}
	return args
}

// readStatic / writeStatic walk the superclass chain looking for a declared
// static field, so access through a subclass name (legal in Java) resolves
// to the class that actually declares the field.
func (vm *VM) readStatic(class *Class, name, descriptor string) (Value, error) {
	key := fieldKey{Name: name, Descriptor: descriptor}
	for cur := class; cur != nil; cur = cur.Super {
		if v, ok := cur.StaticFields[key]; ok {
			return v, nil
		}
	}
	return Value{}, vm.raiseNoSuchField(class.Def.Name, name, descriptor)
}

func (vm *VM) writeStatic(class *Class, name, descriptor string, v Value) error {
	key := fieldKey{Name: name, Descriptor: descriptor}
	for cur := class; cur != nil; cur = cur.Super {
		if _, ok := cur.StaticFields[key]; ok {
			cur.StaticFields[key] = v
			return nil
		}
	}
	return vm.raiseNoSuchField(class.Def.Name, name, descriptor)
}

// getStatic / putStatic implement getstatic/putstatic, including the
// <clinit> trigger spec.md §4.5 lists for both opcodes.
func (vm *VM) getStatic(ref classfile.Reference) (Value, error) {
	class, err := vm.ResolveClass(ref.Owner)
	if err != nil {
		return Value{}, vm.raiseNoClassDef(ref.Owner)
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return Value{}, err
	}
	return vm.readStatic(class, ref.Name, ref.Descriptor)
}

func (vm *VM) putStatic(ref classfile.Reference, v Value) error {
	class, err := vm.ResolveClass(ref.Owner)
	if err != nil {
		return vm.raiseNoClassDef(ref.Owner)
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return err
	}
	return vm.writeStatic(class, ref.Name, ref.Descriptor, v)
}

// invokeStaticRef implements invokestatic: resolve the method on the named
// class (walking superclasses, since an inherited static method may be
// called through a subclass's name), initialize, pop args, invoke.
func (vm *VM) invokeStaticRef(frame *Frame, ref classfile.Reference) (Value, error) {
	class, err := vm.ResolveClass(ref.Owner)
	if err != nil {
		return Value{}, vm.raiseNoClassDef(ref.Owner)
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return Value{}, err
	}
	defClass, method := class.ResolveVirtual(ref.Name, ref.Descriptor)
	if method == nil {
		return Value{}, vm.raiseNoSuchMethod(ref.Owner, ref.Name, ref.Descriptor)
	}
	mt, merr := classfile.ParseMethodDescriptor(ref.Descriptor)
	if merr != nil {
		return Value{}, merr
	}
	args := popArgs(frame, len(mt.Params))
	return vm.Invoke(defClass, method, args)
}

// invokeSpecialRef implements invokespecial: non-virtual dispatch against
// the named class, used for <init>, private methods, and super calls
// (spec.md §4.7).
func (vm *VM) invokeSpecialRef(frame *Frame, ref classfile.Reference) (Value, error) {
	owner, err := vm.ResolveClass(ref.Owner)
	if err != nil {
		return Value{}, vm.raiseNoClassDef(ref.Owner)
	}
	defClass, method := owner.ResolveVirtual(ref.Name, ref.Descriptor)
	if method == nil {
		return Value{}, vm.raiseAbstractMethod(ref.Owner, ref.Name, ref.Descriptor)
	}
	mt, merr := classfile.ParseMethodDescriptor(ref.Descriptor)
	if merr != nil {
		return Value{}, merr
	}
	args := popArgs(frame, len(mt.Params))
	recv := frame.Pop()
	if recv.IsNull() {
		return Value{}, vm.raiseNPE("invokespecial " + ref.Name + " on null")
	}
	full := append([]Value{recv}, args...)
	return vm.Invoke(defClass, method, full)
}

// invokeVirtualRef implements invokevirtual/invokeinterface: dispatch
// against the receiver's own runtime class, walking its superclass chain for
// the first (name, descriptor) match (spec.md §4.7).
func (vm *VM) invokeVirtualRef(frame *Frame, ref classfile.Reference) (Value, error) {
	mt, merr := classfile.ParseMethodDescriptor(ref.Descriptor)
	if merr != nil {
		return Value{}, merr
	}
	args := popArgs(frame, len(mt.Params))
	recv := frame.Pop()
	if recv.IsNull() {
		return Value{}, vm.raiseNPE("invoke " + ref.Name + " on null")
	}
	defClass, method := recv.Obj.Class.ResolveVirtual(ref.Name, ref.Descriptor)
	if method == nil {
		return Value{}, vm.raiseAbstractMethod(recv.Obj.Class.Def.Name, ref.Name, ref.Descriptor)
	}
	full := append([]Value{recv}, args...)
	return vm.Invoke(defClass, method, full)
}

// newInstance implements `new`: resolve, initialize, allocate. Fields come
// out default-initialized; the bytecode that follows is responsible for
// running invokespecial <init> itself, matching the two-step the JVMS
// prescribes.
func (vm *VM) newInstance(className string) (Value, error) {
	class, err := vm.ResolveClass(className)
	if err != nil {
		return Value{}, vm.raiseNoClassDef(className)
	}
	if class.Def.IsInterface || class.Def.Name == "" {
		return Value{}, vm.raiseVerify("cannot instantiate " + className)
	}
	if err := vm.EnsureInitialized(class); err != nil {
		return Value{}, err
	}
	return ObjectValue(NewInstance(class)), nil
}

// primitiveArrayDescriptor maps newarray's atype operand (JVMS Table 6.5) to
// its element field descriptor.
func primitiveArrayDescriptor(atype int32) (string, error) {
	switch atype {
	case 4:
		return "Z", nil
	case 5:
		return "C", nil
	case 6:
		return "F", nil
	case 7:
		return "D", nil
	case 8:
		return "B", nil
	case 9:
		return "S", nil
	case 10:
		return "I", nil
	case 11:
		return "J", nil
	default:
		return "", fmt.Errorf("unknown newarray atype %d", atype)
	}
}

func (vm *VM) newPrimitiveArray(atype int32, length int) (Value, error) {
	desc, derr := primitiveArrayDescriptor(atype)
	if derr != nil {
		return Value{}, derr
	}
	class, err := vm.ResolveClass(arrayClassName(desc))
	if err != nil {
		return Value{}, err
	}
	inst, ierr := InstantiateArray(class, length)
	if ierr != nil {
		return Value{}, vm.arrayErrToThrowable(ierr)
	}
	return ObjectValue(inst), nil
}

// newObjectArray implements anewarray: className names the element class
// (not an array descriptor), per classfile.Instruction.ClassName's doc.
func (vm *VM) newObjectArray(className string, length int) (Value, error) {
	var elemDescriptor string
	if len(className) > 0 && className[0] == '[' {
		elemDescriptor = className
	} else {
		elemDescriptor = "L" + className + ";"
	}
	class, err := vm.ResolveClass(arrayClassName(elemDescriptor))
	if err != nil {
		return Value{}, err
	}
	inst, ierr := InstantiateArray(class, length)
	if ierr != nil {
		return Value{}, vm.arrayErrToThrowable(ierr)
	}
	return ObjectValue(inst), nil
}

// newMultiArray implements multianewarray: className is the full array
// class name (e.g. "[[Ljava/lang/String;"); dims counts were pushed
// outermost-first, so popping reverses them back into call order.
func (vm *VM) newMultiArray(frame *Frame, className string, dims int) (Value, error) {
	counts := make([]int32, dims)
	for i := dims - 1; i >= 0; i-- {
		counts[i] = frame.Pop().AsInt()
	}
	return vm.buildMultiArray(className, counts)
}

func (vm *VM) buildMultiArray(className string, counts []int32) (Value, error) {
	length := counts[0]
	if length < 0 {
		return Value{}, vm.raiseNegativeArraySize(int(length))
	}
	class, err := vm.ResolveClass(className)
	if err != nil {
		return Value{}, vm.raiseNoClassDef(className)
	}
	inst, ierr := InstantiateArray(class, int(length))
	if ierr != nil {
		return Value{}, vm.arrayErrToThrowable(ierr)
	}
	if len(counts) > 1 {
		elemClassName, ok := elementDescriptorOf(className)
		if !ok {
			return Value{}, fmt.Errorf("multianewarray: %s has no element array type", className)
		}
		h, _ := AsArray(inst)
		for i := 0; i < int(length); i++ {
			ev, berr := vm.buildMultiArray(elemClassName, counts[1:])
			if berr != nil {
				return Value{}, berr
			}
			_ = h.StoreOne(i, ev)
		}
	}
	return ObjectValue(inst), nil
}

// isInstance implements the instanceof/checkcast predicate: class identity
// up the superclass chain, or a shallow interface-name match at any
// ancestor (spec.md §4.7's "shallow, name-based check").
func (vm *VM) isInstance(obj *Instance, target *Class) bool {
	if obj == nil {
		return false
	}
	if obj.Class.IsSubclassOf(target) {
		return true
	}
	for cur := obj.Class; cur != nil; cur = cur.Super {
		if cur.Implements(target.Def.Name) {
			return true
		}
	}
	return false
}
