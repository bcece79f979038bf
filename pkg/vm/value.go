package vm

import "fmt"

// Kind discriminates the tagged Value union. The original source keeps a
// native i32 for byte/short/char too; hearthvm follows spec.md's closed sum
// instead so conversions fail loudly rather than silently truncating.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindBoolean:
		return "boolean"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the interpreter's tagged value domain. Long and Double are carried
// whole in a single Value — occupying one logical operand-stack/local slot,
// per the Open Question in spec.md §9 resolved in SPEC_FULL.md (see DESIGN.md).
//
// Category-1 integral kinds (Boolean/Byte/Char/Short) are all backed by Int:
// the JVMS widens them to int on the operand stack, and bytecode never
// distinguishes them once loaded.
type Value struct {
	Kind   Kind
	Int    int32
	Long   int64
	Float  float32
	Double float64
	Obj    *Instance // nil means Java null when Kind == KindObject
}

func VoidValue() Value { return Value{Kind: KindVoid} }

func BooleanValue(b bool) Value {
	if b {
		return Value{Kind: KindBoolean, Int: 1}
	}
	return Value{Kind: KindBoolean, Int: 0}
}

func ByteValue(v int8) Value   { return Value{Kind: KindByte, Int: int32(v)} }
func CharValue(v uint16) Value { return Value{Kind: KindChar, Int: int32(v)} }
func ShortValue(v int16) Value { return Value{Kind: KindShort, Int: int32(v)} }
func IntValue(v int32) Value   { return Value{Kind: KindInt, Int: v} }
func LongValue(v int64) Value  { return Value{Kind: KindLong, Long: v} }
func FloatValue(v float32) Value { return Value{Kind: KindFloat, Float: v} }
func DoubleValue(v float64) Value { return Value{Kind: KindDouble, Double: v} }

// ObjectValue wraps an instance reference (nil for Java null).
func ObjectValue(obj *Instance) Value { return Value{Kind: KindObject, Obj: obj} }

// NullValue is the typed null reference.
func NullValue() Value { return Value{Kind: KindObject, Obj: nil} }

// IsNull reports whether v is a null object reference.
func (v Value) IsNull() bool { return v.Kind == KindObject && v.Obj == nil }

// mismatch panics the way a failed type assertion would: converting a Value
// to the wrong primitive kind is a verifier-level bug, not a recoverable
// runtime condition (spec.md §4.4: "fails loudly").
func (v Value) mismatch(want Kind) {
	panic(fmt.Sprintf("value conversion mismatch: have %s, want %s", v.Kind, want))
}

// AsInt returns the int32 payload of a category-1 integral value.
func (v Value) AsInt() int32 {
	switch v.Kind {
	case KindBoolean, KindByte, KindChar, KindShort, KindInt:
		return v.Int
	default:
		v.mismatch(KindInt)
		return 0
	}
}

func (v Value) AsBool() bool {
	if v.Kind != KindBoolean {
		v.mismatch(KindBoolean)
	}
	return v.Int != 0
}

func (v Value) AsLong() int64 {
	if v.Kind != KindLong {
		v.mismatch(KindLong)
	}
	return v.Long
}

func (v Value) AsFloat() float32 {
	if v.Kind != KindFloat {
		v.mismatch(KindFloat)
	}
	return v.Float
}

func (v Value) AsDouble() float64 {
	if v.Kind != KindDouble {
		v.mismatch(KindDouble)
	}
	return v.Double
}

// AsObject returns the object payload (nil for null). Panics if v does not
// carry an object kind.
func (v Value) AsObject() *Instance {
	if v.Kind != KindObject {
		v.mismatch(KindObject)
	}
	return v.Obj
}

// IsCategory2 reports whether v occupies two JVMS-accounted stack slots
// (long, double). No interpreter path consults it, since hearthvm gives
// every Value one physical slot regardless (see the Open Question decision
// above).
func (v Value) IsCategory2() bool {
	return v.Kind == KindLong || v.Kind == KindDouble
}

// DefaultValue returns the zero value for a descriptor's kind, used to
// default-initialize fields and array elements per spec.md §3.
func DefaultValue(kind Kind) Value {
	switch kind {
	case KindBoolean:
		return BooleanValue(false)
	case KindByte:
		return ByteValue(0)
	case KindChar:
		return CharValue(0)
	case KindShort:
		return ShortValue(0)
	case KindInt:
		return IntValue(0)
	case KindLong:
		return LongValue(0)
	case KindFloat:
		return FloatValue(0)
	case KindDouble:
		return DoubleValue(0)
	case KindObject:
		return NullValue()
	default:
		return VoidValue()
	}
}
