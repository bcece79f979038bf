package classfile

import "encoding/binary"

// classBuilder assembles a minimal, valid class-file byte stream by hand.
// There are no compiled .class fixtures in this tree, so decoder tests
// synthesize the bytes they need directly — this mirrors how the opcode
// table itself is exercised below, one instruction at a time.
//
// Usage: intern every constant pool entry the method body needs with the
// add* helpers first, then call build with the resulting indices.
type classBuilder struct {
	pool [][]byte // constant pool entries in wire form, 1-indexed (index 0 unused)
}

func newClassBuilder() *classBuilder {
	return &classBuilder{pool: [][]byte{nil}}
}

func (b *classBuilder) intern(entry []byte) uint16 {
	b.pool = append(b.pool, entry)
	return uint16(len(b.pool) - 1)
}

func (b *classBuilder) addUtf8(s string) uint16 {
	entry := []byte{TagUtf8}
	entry = binary.BigEndian.AppendUint16(entry, uint16(len(s)))
	entry = append(entry, s...)
	return b.intern(entry)
}

func (b *classBuilder) addClass(name string) uint16 {
	nameIdx := b.addUtf8(name)
	entry := []byte{TagClass}
	entry = binary.BigEndian.AppendUint16(entry, nameIdx)
	return b.intern(entry)
}

func (b *classBuilder) addNameAndType(name, descriptor string) uint16 {
	nameIdx := b.addUtf8(name)
	descIdx := b.addUtf8(descriptor)
	entry := []byte{TagNameAndType}
	entry = binary.BigEndian.AppendUint16(entry, nameIdx)
	entry = binary.BigEndian.AppendUint16(entry, descIdx)
	return b.intern(entry)
}

func (b *classBuilder) addMethodref(class, name, descriptor string) uint16 {
	classIdx := b.addClass(class)
	natIdx := b.addNameAndType(name, descriptor)
	entry := []byte{TagMethodref}
	entry = binary.BigEndian.AppendUint16(entry, classIdx)
	entry = binary.BigEndian.AppendUint16(entry, natIdx)
	return b.intern(entry)
}

func (b *classBuilder) addFieldref(class, name, descriptor string) uint16 {
	classIdx := b.addClass(class)
	natIdx := b.addNameAndType(name, descriptor)
	entry := []byte{TagFieldref}
	entry = binary.BigEndian.AppendUint16(entry, classIdx)
	entry = binary.BigEndian.AppendUint16(entry, natIdx)
	return b.intern(entry)
}

func (b *classBuilder) addString(s string) uint16 {
	utf8Idx := b.addUtf8(s)
	entry := []byte{TagString}
	entry = binary.BigEndian.AppendUint16(entry, utf8Idx)
	return b.intern(entry)
}

func (b *classBuilder) addInteger(v int32) uint16 {
	entry := []byte{TagInteger}
	entry = binary.BigEndian.AppendUint32(entry, uint32(v))
	return b.intern(entry)
}

// method describes one method to emit in build's methods table.
type method struct {
	name, descriptor string
	access           uint16
	code             []byte // nil for an abstract/native method (no Code attribute)
}

// codeAttr builds the raw bytes of a Code attribute's payload (the part
// after its own name index / length header).
func codeAttr(maxStack, maxLocals uint16, code []byte) []byte {
	var out []byte
	out = binary.BigEndian.AppendUint16(out, maxStack)
	out = binary.BigEndian.AppendUint16(out, maxLocals)
	out = binary.BigEndian.AppendUint32(out, uint32(len(code)))
	out = append(out, code...)
	out = binary.BigEndian.AppendUint16(out, 0) // exception_table_length
	out = binary.BigEndian.AppendUint16(out, 0) // attributes_count
	return out
}

// build finishes the class file: this/super names (already interned via
// addClass), access flags, and the given methods. build interns the "Code"
// attribute name and each method's name and descriptor itself.
func (b *classBuilder) build(thisClass, superClass, accessFlags uint16, methods []method) []byte {
	// Intern every pool entry a method needs before the pool is serialized.
	codeNameIdx := b.addUtf8("Code")
	nameIdxs := make([]uint16, len(methods))
	descIdxs := make([]uint16, len(methods))
	for i, m := range methods {
		nameIdxs[i] = b.addUtf8(m.name)
		descIdxs[i] = b.addUtf8(m.descriptor)
	}

	var out []byte
	out = binary.BigEndian.AppendUint32(out, classMagic)
	out = binary.BigEndian.AppendUint16(out, 0)  // minor
	out = binary.BigEndian.AppendUint16(out, 61) // major

	out = binary.BigEndian.AppendUint16(out, uint16(len(b.pool)))
	for i := 1; i < len(b.pool); i++ {
		out = append(out, b.pool[i]...)
	}

	out = binary.BigEndian.AppendUint16(out, accessFlags)
	out = binary.BigEndian.AppendUint16(out, thisClass)
	out = binary.BigEndian.AppendUint16(out, superClass)
	out = binary.BigEndian.AppendUint16(out, 0) // interfaces_count
	out = binary.BigEndian.AppendUint16(out, 0) // fields_count

	out = binary.BigEndian.AppendUint16(out, uint16(len(methods)))
	for i, m := range methods {
		out = binary.BigEndian.AppendUint16(out, m.access)
		out = binary.BigEndian.AppendUint16(out, nameIdxs[i])
		out = binary.BigEndian.AppendUint16(out, descIdxs[i])
		if m.code == nil {
			out = binary.BigEndian.AppendUint16(out, 0) // attributes_count
			continue
		}
		out = binary.BigEndian.AppendUint16(out, 1) // attributes_count
		out = binary.BigEndian.AppendUint16(out, codeNameIdx)
		codeBytes := codeAttr(8, 4, m.code)
		out = binary.BigEndian.AppendUint32(out, uint32(len(codeBytes)))
		out = append(out, codeBytes...)
	}

	out = binary.BigEndian.AppendUint16(out, 0) // class attributes_count

	return out
}
