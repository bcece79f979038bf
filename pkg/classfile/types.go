package classfile

// Class access and member access flags (the subset this decoder cares about;
// unrecognized bits are preserved but never interpreted).
const (
	AccPublic     = 0x0001
	AccPrivate    = 0x0002
	AccProtected  = 0x0004
	AccStatic     = 0x0008
	AccFinal      = 0x0010
	AccSuper      = 0x0020
	AccVolatile   = 0x0040
	AccBridge     = 0x0040
	AccTransient  = 0x0080
	AccVarargs    = 0x0080
	AccNative     = 0x0100
	AccInterface  = 0x0200
	AccAbstract   = 0x0400
	AccStrict     = 0x0800
	AccSynthetic  = 0x1000
	AccAnnotation = 0x2000
	AccEnum       = 0x4000
)

// ClassFile is the fully decoded structure produced by Parse: constant pool,
// access flags, this/super, interfaces, fields, methods, and the attributes
// recognized at the class level.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         Pool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []FieldInfo
	Methods      []MethodInfo
	SourceFile   string // empty if absent
}

// FieldInfo describes one declared field.
type FieldInfo struct {
	AccessFlags   uint16
	Name          string
	Descriptor    string
	ConstantValue *ConstantValue // nil unless a ConstantValue attribute was present
}

// ConstantValue holds the decoded value of a field's ConstantValue attribute.
// Its Kind determines which payload field is meaningful; the field's own
// descriptor determines Kind at decode time.
type ConstantValue struct {
	Int    int32
	Long   int64
	Float  float32
	Double float64
	String string
	Kind   ConstantValueKind
}

// ConstantValueKind discriminates ConstantValue's payload.
type ConstantValueKind uint8

const (
	ConstantValueInt ConstantValueKind = iota
	ConstantValueLong
	ConstantValueFloat
	ConstantValueDouble
	ConstantValueString
)

// MethodInfo describes one declared method.
type MethodInfo struct {
	AccessFlags uint16
	Name        string
	Descriptor  string
	Code        *CodeAttribute // nil for abstract/native methods
}

// ClassName returns the fully qualified internal name of this class.
func (cf *ClassFile) ClassName() (string, error) {
	return cf.Pool.ClassName(cf.ThisClass)
}

// SuperClassName returns the internal name of the superclass, or "" if this
// class has none (only java/lang/Object has no superclass).
func (cf *ClassFile) SuperClassName() (string, error) {
	if cf.SuperClass == 0 {
		return "", nil
	}
	return cf.Pool.ClassName(cf.SuperClass)
}

// InterfaceNames resolves every entry of the interfaces table to its name.
func (cf *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, len(cf.Interfaces))
	for i, idx := range cf.Interfaces {
		n, err := cf.Pool.ClassName(idx)
		if err != nil {
			return nil, err
		}
		names[i] = n
	}
	return names, nil
}

// FindMethod finds a method by name and descriptor.
func (cf *ClassFile) FindMethod(name, descriptor string) *MethodInfo {
	for i := range cf.Methods {
		if cf.Methods[i].Name == name && cf.Methods[i].Descriptor == descriptor {
			return &cf.Methods[i]
		}
	}
	return nil
}

// IsInterface reports whether ACC_INTERFACE is set.
func (cf *ClassFile) IsInterface() bool {
	return cf.AccessFlags&AccInterface != 0
}
