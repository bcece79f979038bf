package vm

import "github.com/google/uuid"

// fieldKey identifies one instance or static field slot. Both name and
// descriptor must match (spec.md §4.5): a get/put against the wrong
// descriptor is NoSuchField, not a silent reinterpretation.
type fieldKey struct {
	Name       string
	Descriptor string
}

// Instance is a live object: a class reference, its instance-field storage,
// and a stable identity. Array instances reuse this type — elements is
// non-nil iff Class.Def.IsArray.
type Instance struct {
	Class  *Class
	Fields map[fieldKey]Value

	// id backs the default identity hashCode/toString and is stable for the
	// instance's lifetime, the same role github.com/google/uuid plays for
	// ProbeChain-go-probe's connection identities.
	id uuid.UUID

	// elements is non-nil for array instances; ArrayHandle wraps access to
	// it with bounds checking. nil for ordinary object instances.
	elements []Value
	elemKind Kind

	// Native holds host-side backing state for shim classes whose "fields"
	// aren't expressible as Value — a Go string for java/lang/String and
	// StringBuffer, a slice-backed state struct for java/util/Vector, the
	// 48-bit LCG state for java/util/Random, and so on. Shim packages type-assert this
	// themselves; the interpreter never reads it.
	Native interface{}
}

// NewInstance allocates an instance of class c with every declared instance
// field (including inherited ones) default-initialized.
func NewInstance(c *Class) *Instance {
	inst := &Instance{
		Class:  c,
		Fields: make(map[fieldKey]Value),
		id:     uuid.New(),
	}
	for cur := c; cur != nil; cur = cur.Super {
		for _, f := range cur.Def.Fields {
			if f.Static {
				continue
			}
			key := fieldKey{Name: f.Name, Descriptor: f.Descriptor}
			if _, exists := inst.Fields[key]; !exists {
				inst.Fields[key] = DefaultValue(kindOfDescriptor(f.Descriptor))
			}
		}
	}
	return inst
}

// ID returns the instance's stable uuid as a string — used to tag which
// user ClassLoader instance resolved a given Class (Class.loaderTag).
func (i *Instance) ID() string { return i.id.String() }

// IdentityHash derives the default Object.hashCode() from the instance's
// stable id, truncated the way a real JVM's identity hash is a 31-bit
// non-negative int.
func (i *Instance) IdentityHash() int32 {
	var h uint32
	for _, b := range i.id {
		h = h*31 + uint32(b)
	}
	return int32(h & 0x7fffffff)
}

// GetField reads an instance field. ok is false if no field with that exact
// (name, descriptor) pair is declared anywhere in the class's hierarchy.
func (i *Instance) GetField(name, descriptor string) (Value, bool) {
	v, ok := i.Fields[fieldKey{Name: name, Descriptor: descriptor}]
	return v, ok
}

// PutField writes an instance field; ok is false under the same condition as
// GetField.
func (i *Instance) PutField(name, descriptor string, v Value) bool {
	key := fieldKey{Name: name, Descriptor: descriptor}
	if _, exists := i.Fields[key]; !exists {
		return false
	}
	i.Fields[key] = v
	return true
}

// IsArray reports whether this instance is an array instance. make([]Value,
// n) is non-nil even for n == 0, so this is accurate for empty arrays too.
func (i *Instance) IsArray() bool { return i.elements != nil }

// Clone returns a shallow copy of i: a fresh identity over a fresh copy of
// its field/element storage, object references (including Native) shared
// with the original rather than deep-copied. This is spec.md §9's Open
// Question on clone() semantics, resolved the way java.lang.Object.clone()
// itself is specified — field-for-field, not deep.
func (i *Instance) Clone() *Instance {
	clone := &Instance{
		Class:    i.Class,
		id:       uuid.New(),
		elemKind: i.elemKind,
		Native:   i.Native,
	}
	if i.elements != nil {
		clone.elements = append([]Value(nil), i.elements...)
	}
	if i.Fields != nil {
		clone.Fields = make(map[fieldKey]Value, len(i.Fields))
		for k, v := range i.Fields {
			clone.Fields[k] = v
		}
	}
	return clone
}
