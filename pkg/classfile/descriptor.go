package classfile

import "strings"

// TypeKind discriminates the primitive/object/array tags a field descriptor
// can carry.
type TypeKind uint8

const (
	KindByte TypeKind = iota
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindChar
	KindBoolean
	KindObject
	KindArray
	KindVoid
)

// FieldType is one parsed field-descriptor component: a primitive kind, an
// object kind carrying the referenced class's internal name, or an array
// kind carrying its element type and dimension count.
type FieldType struct {
	Kind      TypeKind
	ClassName string // valid when Kind == KindObject
	Elem      *FieldType
	Dims      int // valid when Kind == KindArray; number of leading '['
}

// IsCategory2 reports whether this type occupies two stack/local slots in
// the JVMS's own accounting (long, double). hearthvm's frame model gives
// every value one logical slot regardless, and neither the decoder nor the
// interpreter calls this.
func (t FieldType) IsCategory2() bool {
	return t.Kind == KindLong || t.Kind == KindDouble
}

// MethodType is a parsed method descriptor: ordered parameter types and a
// return type (KindVoid for "V").
type MethodType struct {
	Params []FieldType
	Return FieldType
}

// ParseFieldDescriptor parses a single field-descriptor string, e.g. "I",
// "Ljava/lang/String;", "[[I".
func ParseFieldDescriptor(s string) (FieldType, error) {
	t, rest, err := parseFieldType(s)
	if err != nil {
		return FieldType{}, err
	}
	if rest != "" {
		return FieldType{}, &MalformedDescriptor{Descriptor: s}
	}
	return t, nil
}

// ParseMethodDescriptor parses a method descriptor string, e.g.
// "(ILjava/lang/String;)V".
func ParseMethodDescriptor(s string) (MethodType, error) {
	if !strings.HasPrefix(s, "(") {
		return MethodType{}, &MalformedDescriptor{Descriptor: s}
	}
	rest := s[1:]
	var params []FieldType
	for {
		if rest == "" {
			return MethodType{}, &MalformedDescriptor{Descriptor: s}
		}
		if rest[0] == ')' {
			rest = rest[1:]
			break
		}
		t, r, err := parseFieldType(rest)
		if err != nil {
			return MethodType{}, err
		}
		params = append(params, t)
		rest = r
	}
	ret, rest, err := parseReturnType(rest)
	if err != nil {
		return MethodType{}, err
	}
	if rest != "" {
		return MethodType{}, &MalformedDescriptor{Descriptor: s}
	}
	return MethodType{Params: params, Return: ret}, nil
}

func parseReturnType(s string) (FieldType, string, error) {
	if strings.HasPrefix(s, "V") {
		return FieldType{Kind: KindVoid}, s[1:], nil
	}
	return parseFieldType(s)
}

// parseFieldType consumes one field type from the front of s and returns the
// remainder.
func parseFieldType(s string) (FieldType, string, error) {
	if s == "" {
		return FieldType{}, "", &MalformedDescriptor{Descriptor: s}
	}
	switch s[0] {
	case 'B':
		return FieldType{Kind: KindByte}, s[1:], nil
	case 'S':
		return FieldType{Kind: KindShort}, s[1:], nil
	case 'I':
		return FieldType{Kind: KindInt}, s[1:], nil
	case 'J':
		return FieldType{Kind: KindLong}, s[1:], nil
	case 'F':
		return FieldType{Kind: KindFloat}, s[1:], nil
	case 'D':
		return FieldType{Kind: KindDouble}, s[1:], nil
	case 'C':
		return FieldType{Kind: KindChar}, s[1:], nil
	case 'Z':
		return FieldType{Kind: KindBoolean}, s[1:], nil
	case 'L':
		end := strings.IndexByte(s, ';')
		if end < 0 {
			return FieldType{}, "", &MalformedDescriptor{Descriptor: s}
		}
		return FieldType{Kind: KindObject, ClassName: s[1:end]}, s[end+1:], nil
	case '[':
		elem, rest, err := parseFieldType(s[1:])
		if err != nil {
			return FieldType{}, "", err
		}
		dims := 1
		e := elem
		if e.Kind == KindArray {
			dims += e.Dims
		}
		return FieldType{Kind: KindArray, Elem: &elem, Dims: dims}, rest, nil
	default:
		return FieldType{}, "", &MalformedDescriptor{Descriptor: s}
	}
}

// Descriptor reconstructs the descriptor string for a FieldType.
func (t FieldType) Descriptor() string {
	switch t.Kind {
	case KindByte:
		return "B"
	case KindShort:
		return "S"
	case KindInt:
		return "I"
	case KindLong:
		return "J"
	case KindFloat:
		return "F"
	case KindDouble:
		return "D"
	case KindChar:
		return "C"
	case KindBoolean:
		return "Z"
	case KindVoid:
		return "V"
	case KindObject:
		return "L" + t.ClassName + ";"
	case KindArray:
		return "[" + t.Elem.Descriptor()
	default:
		return ""
	}
}
