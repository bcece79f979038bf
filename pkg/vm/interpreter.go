package vm

import (
	"fmt"

	"github.com/hearthvm/hearthvm/pkg/classfile"
)

// maxFrameDepth bounds hearthvm's use of ordinary Go-stack recursion for the
// frame stack (SPEC_FULL.md's CONCURRENCY MODEL decision on spec.md §9's
// Open Question) — generalized from the teacher's hard process-crashing
// constant into a catchable StackOverflowError.
const maxFrameDepth = 1024

// EnsureInitialized runs a class's <clinit>, initializing its superclass
// first, exactly once (spec.md §3/§4.5). Re-entrant calls during an
// in-progress initialization return immediately, matching the JVMS's
// self-recursion rule.
func (vm *VM) EnsureInitialized(c *Class) error {
	if c.State == Initialized || c.State == InProgress {
		return nil
	}
	if c.Super != nil {
		if err := vm.EnsureInitialized(c.Super); err != nil {
			return err
		}
	}
	c.State = InProgress
	clinit := c.Def.FindMethod("<clinit>", "()V")
	if clinit != nil {
		if _, err := vm.Invoke(c, clinit, nil); err != nil {
			return fmt.Errorf("<clinit> of %s: %w", c.Def.Name, err)
		}
	}
	c.State = Initialized
	return nil
}

// Invoke runs method on class with the given argument values already in
// call order (this first for instance methods), returning its return value.
// This is the single entry point both the embedder and the interpreter's
// own invoke* dispatch call through.
func (vm *VM) Invoke(class *Class, method *MethodDef, args []Value) (Value, error) {
	if method.Native != nil {
		var this *Instance
		if !method.Static && len(args) > 0 {
			this = args[0].Obj
			args = args[1:]
		}
		vm.log.WithFields(map[string]interface{}{
			"class": class.Def.Name, "method": method.Name,
		}).Debug("invoking native method")
		return method.Native(vm, this, args)
	}
	if method.Abstract || method.Code == nil {
		return Value{}, vm.raiseAbstractMethod(class.Def.Name, method.Name, method.Descriptor)
	}

	vm.frameDepth++
	if vm.frameDepth > maxFrameDepth {
		vm.frameDepth--
		return Value{}, vm.raiseStackOverflow()
	}
	defer func() { vm.frameDepth-- }()

	frame := NewFrame(method.Code.MaxLocals, method.Code.MaxStack, method.Code.Instrs, method.Code.Handlers, method, class)
	for i, a := range args {
		frame.SetLocal(i, a)
	}

	vm.log.WithFields(map[string]interface{}{
		"class": class.Def.Name, "method": method.Name, "descriptor": method.Descriptor,
	}).Debug("entering frame")

	return vm.run(frame)
}

// run drives one frame's instruction loop: dispatch, exception-table
// routing on a thrown Throwable, and the four terminal outcomes spec.md
// §4.7 names (Completed/Threw collapse to the (Value, error) return; Running
// and Suspended-at-callee are folded into ordinary Go call/return, the
// Go-idiomatic reading SPEC_FULL.md's CONCURRENCY MODEL section commits to).
func (vm *VM) run(frame *Frame) (Value, error) {
	offset := frame.Code.First()
	for {
		instr, ok := frame.Code.At(offset)
		if !ok {
			return Value{}, vm.raiseVerify(fmt.Sprintf("no instruction at offset %d", offset))
		}
		frame.PC = offset
		next, hasNext := frame.Code.Next(offset)

		ret, done, control, err := vm.dispatch(frame, instr)
		if err != nil {
			handled, handlerPC := vm.handleThrow(frame, offset, err)
			if !handled {
				return Value{}, err
			}
			offset = handlerPC
			continue
		}
		if done {
			return ret, nil
		}
		if control >= 0 {
			offset = control
			continue
		}
		if !hasNext {
			// Fell off the end of the code array: implicit return for void
			// methods whose last instruction wasn't itself a return (not
			// legal bytecode, but fail soft rather than loop forever).
			return VoidValue(), nil
		}
		offset = next
	}
}

// handleThrow walks the frame's exception table per spec.md §4.7: first
// entry whose [start_pc, end_pc) contains pc and whose catch class matches
// (or a universal catch for a zero catch class) wins.
func (vm *VM) handleThrow(frame *Frame, pc int, err error) (bool, int) {
	t, ok := err.(*Throwable)
	if !ok {
		return false, 0
	}
	for _, h := range frame.Handlers {
		if pc < h.StartPC || pc >= h.EndPC {
			continue
		}
		if h.CatchType == "" {
			frame.clearStack()
			frame.Push(ObjectValue(t.Instance))
			return true, h.HandlerPC
		}
		catchClass, cerr := vm.ResolveClass(h.CatchType)
		if cerr != nil {
			continue
		}
		if t.Instance != nil && t.Instance.Class.IsSubclassOf(catchClass) {
			frame.clearStack()
			frame.Push(ObjectValue(t.Instance))
			return true, h.HandlerPC
		}
	}
	return false, 0
}

// classNameOf turns a classfile.ResolvedConstant class literal into the
// mirror value ldc must produce (spec.md §4.7: "ldc of a class literal
// returns the mirror of the named class"); dispatch.go's
// resolvedConstantValue is its only caller.
func (vm *VM) classNameOf(rc classfile.ResolvedConstant) (Value, error) {
	c, err := vm.ResolveClass(rc.ClassName)
	if err != nil {
		return Value{}, vm.raiseNoClassDef(rc.ClassName)
	}
	mirror, err := vm.JavaClass(c)
	if err != nil {
		return Value{}, err
	}
	return ObjectValue(mirror), nil
}
