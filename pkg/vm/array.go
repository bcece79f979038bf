package vm

import "fmt"

// ArrayOutOfBounds is raised as an *ArrayIndexOutOfBoundsException by the
// interpreter; kept as a distinct Go type so arrayErrToThrowable
// (dispatch.go) can map it without string-matching the message.
type ArrayOutOfBounds struct {
	Index, Length int
}

func (e *ArrayOutOfBounds) Error() string {
	return fmt.Sprintf("Index %d out of bounds for length %d", e.Index, e.Length)
}

// ArrayHandle is a bounds-checked view over an array Instance's backing
// slice. Construct with AsArray; the zero value is never valid.
type ArrayHandle struct {
	inst *Instance
}

// AsArray downcasts inst to an array view, mirroring spec.md §3's "exposes a
// downcast to an array view if its class is an array class". ok is false for
// non-array instances.
func AsArray(inst *Instance) (ArrayHandle, bool) {
	if inst == nil || !inst.IsArray() {
		return ArrayHandle{}, false
	}
	return ArrayHandle{inst: inst}, true
}

// InstantiateArray allocates a fixed-length array instance of the given
// array class, default-initializing every element by the class's element
// kind (spec.md §4.4).
func InstantiateArray(class *Class, length int) (*Instance, error) {
	if length < 0 {
		return nil, &NegativeArraySize{Length: length}
	}
	if !class.Def.IsArray {
		return nil, fmt.Errorf("class %s is not an array class", class.Def.Name)
	}
	elems := make([]Value, length)
	def := DefaultValue(class.Def.ElemKind)
	for i := range elems {
		elems[i] = def
	}
	return &Instance{
		Class:    class,
		Fields:   make(map[fieldKey]Value),
		elements: elems,
		elemKind: class.Def.ElemKind,
	}, nil
}

// NegativeArraySize is raised as *NegativeArraySizeException.
type NegativeArraySize struct{ Length int }

func (e *NegativeArraySize) Error() string {
	return fmt.Sprintf("negative array size: %d", e.Length)
}

// Length reports the array's fixed length.
func (a ArrayHandle) Length() int { return len(a.inst.elements) }

// ElemKind reports the array's element kind.
func (a ArrayHandle) ElemKind() Kind { return a.inst.elemKind }

func (a ArrayHandle) checkBounds(offset, count int) error {
	if offset < 0 || count < 0 || offset+count > len(a.inst.elements) {
		return &ArrayOutOfBounds{Index: offset, Length: len(a.inst.elements)}
	}
	return nil
}

// Load reads count elements starting at offset.
func (a ArrayHandle) Load(offset, count int) ([]Value, error) {
	if err := a.checkBounds(offset, count); err != nil {
		return nil, err
	}
	out := make([]Value, count)
	copy(out, a.inst.elements[offset:offset+count])
	return out, nil
}

// LoadOne reads a single element, the path every a*load instruction uses.
func (a ArrayHandle) LoadOne(index int) (Value, error) {
	if index < 0 || index >= len(a.inst.elements) {
		return Value{}, &ArrayOutOfBounds{Index: index, Length: len(a.inst.elements)}
	}
	return a.inst.elements[index], nil
}

// Store writes values starting at offset.
func (a ArrayHandle) Store(offset int, values []Value) error {
	if err := a.checkBounds(offset, len(values)); err != nil {
		return err
	}
	copy(a.inst.elements[offset:offset+len(values)], values)
	return nil
}

// StoreOne writes a single element, the path every a*store instruction uses.
func (a ArrayHandle) StoreOne(index int, v Value) error {
	if index < 0 || index >= len(a.inst.elements) {
		return &ArrayOutOfBounds{Index: index, Length: len(a.inst.elements)}
	}
	a.inst.elements[index] = v
	return nil
}

// LoadByteArray returns the array's backing storage as a contiguous byte
// buffer, the fast path spec.md §4.4 calls out for byte arrays (used by
// java/io stream shims to avoid a Value round trip per byte).
func (a ArrayHandle) LoadByteArray() ([]byte, bool) {
	if a.inst.elemKind != KindByte {
		return nil, false
	}
	out := make([]byte, len(a.inst.elements))
	for i, v := range a.inst.elements {
		out[i] = byte(v.AsInt())
	}
	return out, true
}

// StoreByteArray writes raw bytes into a byte array, bounds-checked against
// the array's length starting at offset.
func (a ArrayHandle) StoreByteArray(offset int, data []byte) error {
	if a.inst.elemKind != KindByte {
		return fmt.Errorf("StoreByteArray: not a byte array")
	}
	if err := a.checkBounds(offset, len(data)); err != nil {
		return err
	}
	for i, b := range data {
		a.inst.elements[offset+i] = ByteValue(int8(b))
	}
	return nil
}
