package vm

import (
	"strings"

	"github.com/hearthvm/hearthvm/pkg/classfile"
)

// InitState is a class's <clinit> lifecycle state (spec.md §3's invariant:
// "<clinit> for a class runs at most once").
type InitState uint8

const (
	Uninitialized InitState = iota
	InProgress
	Initialized
)

// FieldDef is one declared field, from either a decoded class file or a
// synthesized array/shim class.
type FieldDef struct {
	Name       string
	Descriptor string
	Static     bool
	Access     uint16
	Constant   *classfile.ConstantValue // non-nil for ConstantValue-attributed static finals
}

// NativeMethod is a host-native method body, the shim library's unit of
// implementation (spec.md §4.8: "method protos bind a name/descriptor/
// access-flags triple to a host-native async callback"). It receives the
// running VM so it can resolve classes, raise exceptions, or suspend via the
// platform, plus the receiver (nil for static) and arguments in slot order.
type NativeMethod func(vm *VM, this *Instance, args []Value) (Value, error)

// MethodDef is one declared method: either bytecode-backed (Code non-nil) or
// native (Native non-nil). Exactly one of the two is set, except for
// abstract/interface methods where both are nil.
type MethodDef struct {
	Name       string
	Descriptor string
	Static     bool
	Abstract   bool
	Access     uint16
	Code       *classfile.CodeAttribute
	Native     NativeMethod
}

// ClassDef is the immutable, decoded shape of a class: everything that
// doesn't change across instances or after registration (spec.md §3: "The
// definition is immutable after registration").
type ClassDef struct {
	Name       string
	SuperName  string // "" for java/lang/Object and primitives
	Interfaces []string
	Fields     []FieldDef
	Methods    []MethodDef
	Pool       classfile.Pool // nil for synthesized (array/shim) classes

	IsInterface bool
	IsArray     bool
	ElemKind    Kind   // valid iff IsArray
	ElemClass   string // element class name for object arrays; "" for primitive arrays
}

// FindMethod looks up a method declared directly on this definition (no
// superclass walk — callers needing virtual dispatch use Class.Resolve*).
func (d *ClassDef) FindMethod(name, descriptor string) *MethodDef {
	for i := range d.Methods {
		if d.Methods[i].Name == name && d.Methods[i].Descriptor == descriptor {
			return &d.Methods[i]
		}
	}
	return nil
}

func (d *ClassDef) FindField(name, descriptor string) *FieldDef {
	for i := range d.Fields {
		if d.Fields[i].Name == name && d.Fields[i].Descriptor == descriptor {
			return &d.Fields[i]
		}
	}
	return nil
}

// Class is the runtime object behind a registered class: its immutable
// definition plus the mutable state spec.md §3 describes — init flag,
// static storage, and a lazily-materialized mirror.
type Class struct {
	Def   *ClassDef
	Super *Class

	State        InitState
	StaticFields map[fieldKey]Value
	mirror       *Instance

	// loaderTag identifies which source produced this class: "" for
	// bootstrap, otherwise the uuid of the user ClassLoader instance that
	// resolved it. Used only for diagnostics and findLoadedClass-style
	// bookkeeping; resolution itself is delegation-ordered, not identity-based.
	loaderTag string
}

// IsSubclassOf reports whether c is class target or a (possibly indirect)
// subclass of it, walking the superclass chain.
func (c *Class) IsSubclassOf(target *Class) bool {
	for cur := c; cur != nil; cur = cur.Super {
		if cur == target {
			return true
		}
	}
	return false
}

// Implements reports whether c or any ancestor declares interfaceName among
// its direct interfaces. This is a shallow, name-based check — hearthvm
// doesn't track interface supertype chains beyond what instanceof/checkcast
// in the tested surface need.
func (c *Class) Implements(interfaceName string) bool {
	for cur := c; cur != nil; cur = cur.Super {
		for _, ifc := range cur.Def.Interfaces {
			if ifc == interfaceName {
				return true
			}
		}
	}
	return false
}

// ResolveVirtual walks the superclass chain starting at c for the first
// (name, descriptor) match (spec.md §4.7's invokevirtual/invokeinterface
// rule).
func (c *Class) ResolveVirtual(name, descriptor string) (*Class, *MethodDef) {
	for cur := c; cur != nil; cur = cur.Super {
		if m := cur.Def.FindMethod(name, descriptor); m != nil {
			return cur, m
		}
	}
	return nil, nil
}

// kindOfDescriptor maps a field descriptor string to its runtime Kind,
// collapsing every object and array descriptor to KindObject (arrays are
// objects at the Value level; their element type lives on the array Class).
func kindOfDescriptor(descriptor string) Kind {
	if descriptor == "" {
		return KindVoid
	}
	switch descriptor[0] {
	case 'B':
		return KindByte
	case 'S':
		return KindShort
	case 'I':
		return KindInt
	case 'J':
		return KindLong
	case 'F':
		return KindFloat
	case 'D':
		return KindDouble
	case 'C':
		return KindChar
	case 'Z':
		return KindBoolean
	case 'V':
		return KindVoid
	case 'L', '[':
		return KindObject
	default:
		return KindObject
	}
}

// arrayClassName synthesizes the internal name of the array class whose
// element descriptor is elemDescriptor, e.g. "I" -> "[I", "Ljava/lang/String;"
// -> "[Ljava/lang/String;".
func arrayClassName(elemDescriptor string) string {
	return "[" + elemDescriptor
}

// elementDescriptorOf strips one leading '[' from an array class name,
// returning the element descriptor ("I" for "[I", "[I" for "[[I").
func elementDescriptorOf(arrayClassName string) (string, bool) {
	if !strings.HasPrefix(arrayClassName, "[") {
		return "", false
	}
	return arrayClassName[1:], true
}
