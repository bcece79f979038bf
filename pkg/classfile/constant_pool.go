package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Constant pool tags, per the JVM class-file format.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagDynamic            = 17
	TagInvokeDynamic      = 18
)

// Item is implemented by every constant pool entry kind.
type Item interface {
	Tag() uint8
}

type Utf8 struct{ Value string }

func (c *Utf8) Tag() uint8 { return TagUtf8 }

type Integer struct{ Value int32 }

func (c *Integer) Tag() uint8 { return TagInteger }

type Float struct{ Value float32 }

func (c *Float) Tag() uint8 { return TagFloat }

type Long struct{ Value int64 }

func (c *Long) Tag() uint8 { return TagLong }

type Double struct{ Value float64 }

func (c *Double) Tag() uint8 { return TagDouble }

type ClassRef struct{ NameIndex uint16 }

func (c *ClassRef) Tag() uint8 { return TagClass }

type StringRef struct{ Utf8Index uint16 }

func (c *StringRef) Tag() uint8 { return TagString }

type Fieldref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *Fieldref) Tag() uint8 { return TagFieldref }

type Methodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *Methodref) Tag() uint8 { return TagMethodref }

type InterfaceMethodref struct {
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *InterfaceMethodref) Tag() uint8 { return TagInterfaceMethodref }

type NameAndType struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *NameAndType) Tag() uint8 { return TagNameAndType }

// placeholder covers MethodHandle/MethodType/Dynamic/InvokeDynamic entries,
// which the core never needs to resolve (invokedynamic bootstrap is a
// documented non-goal) but which must still occupy a pool slot so that
// indices into surrounding entries stay correct.
type placeholder struct{ tag uint8 }

func (c *placeholder) Tag() uint8 { return c.tag }

// Pool is a 1-indexed constant pool; Pool[0] is always nil.
type Pool []Item

// ErrPoolIndexOutOfRange means an index fell outside [1, len(pool)).
type ErrPoolIndexOutOfRange struct{ Index uint16 }

func (e *ErrPoolIndexOutOfRange) Error() string {
	return fmt.Sprintf("constant pool index %d out of range", e.Index)
}

// ErrPoolTypeMismatch means an index resolved to an entry of the wrong kind.
type ErrPoolTypeMismatch struct {
	Index uint16
	Tag   uint8
	Want  string
}

func (e *ErrPoolTypeMismatch) Error() string {
	return fmt.Sprintf("constant pool index %d: expected %s, got tag %d", e.Index, e.Want, e.Tag)
}

// At returns the raw entry at a 1-based index.
func (p Pool) At(index uint16) (Item, error) {
	if int(index) >= len(p) || p[index] == nil {
		return nil, &ErrPoolIndexOutOfRange{Index: index}
	}
	return p[index], nil
}

// Utf8At returns the string of a CONSTANT_Utf8 entry.
func (p Pool) Utf8At(index uint16) (string, error) {
	item, err := p.At(index)
	if err != nil {
		return "", err
	}
	u, ok := item.(*Utf8)
	if !ok {
		return "", &ErrPoolTypeMismatch{Index: index, Tag: item.Tag(), Want: "Utf8"}
	}
	return u.Value, nil
}

// ClassName resolves a CONSTANT_Class entry to its internal name.
func (p Pool) ClassName(index uint16) (string, error) {
	item, err := p.At(index)
	if err != nil {
		return "", err
	}
	c, ok := item.(*ClassRef)
	if !ok {
		return "", &ErrPoolTypeMismatch{Index: index, Tag: item.Tag(), Want: "Class"}
	}
	return p.Utf8At(c.NameIndex)
}

// Reference is the resolved (owner, name, descriptor) triple shared by
// field and method references.
type Reference struct {
	Owner      string
	Name       string
	Descriptor string
}

// ResolveReference resolves a Fieldref/Methodref/InterfaceMethodref entry.
func (p Pool) ResolveReference(index uint16) (Reference, error) {
	item, err := p.At(index)
	if err != nil {
		return Reference{}, err
	}

	var classIndex, natIndex uint16
	switch r := item.(type) {
	case *Fieldref:
		classIndex, natIndex = r.ClassIndex, r.NameAndTypeIndex
	case *Methodref:
		classIndex, natIndex = r.ClassIndex, r.NameAndTypeIndex
	case *InterfaceMethodref:
		classIndex, natIndex = r.ClassIndex, r.NameAndTypeIndex
	default:
		return Reference{}, &ErrPoolTypeMismatch{Index: index, Tag: item.Tag(), Want: "Fieldref/Methodref/InterfaceMethodref"}
	}

	owner, err := p.ClassName(classIndex)
	if err != nil {
		return Reference{}, fmt.Errorf("resolving reference owner: %w", err)
	}

	natItem, err := p.At(natIndex)
	if err != nil {
		return Reference{}, fmt.Errorf("resolving NameAndType: %w", err)
	}
	nat, ok := natItem.(*NameAndType)
	if !ok {
		return Reference{}, &ErrPoolTypeMismatch{Index: natIndex, Tag: natItem.Tag(), Want: "NameAndType"}
	}

	name, err := p.Utf8At(nat.NameIndex)
	if err != nil {
		return Reference{}, fmt.Errorf("resolving reference name: %w", err)
	}
	descriptor, err := p.Utf8At(nat.DescriptorIndex)
	if err != nil {
		return Reference{}, fmt.Errorf("resolving reference descriptor: %w", err)
	}

	return Reference{Owner: owner, Name: name, Descriptor: descriptor}, nil
}

// parsePool reads constant_pool_count-1 entries from r into a 1-indexed Pool.
func parsePool(r io.Reader, count uint16) (Pool, error) {
	pool := make(Pool, count)

	for i := uint16(1); i < count; i++ {
		var tag uint8
		if err := binary.Read(r, binary.BigEndian, &tag); err != nil {
			return nil, fmt.Errorf("reading tag at index %d: %w", i, err)
		}

		switch tag {
		case TagUtf8:
			var length uint16
			if err := binary.Read(r, binary.BigEndian, &length); err != nil {
				return nil, fmt.Errorf("reading Utf8 length at index %d: %w", i, err)
			}
			buf := make([]byte, length)
			if _, err := io.ReadFull(r, buf); err != nil {
				return nil, fmt.Errorf("reading Utf8 bytes at index %d: %w", i, err)
			}
			pool[i] = &Utf8{Value: string(buf)}

		case TagInteger:
			var v int32
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return nil, fmt.Errorf("reading Integer at index %d: %w", i, err)
			}
			pool[i] = &Integer{Value: v}

		case TagFloat:
			var bits uint32
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Float at index %d: %w", i, err)
			}
			pool[i] = &Float{Value: math.Float32frombits(bits)}

		case TagLong:
			var v int64
			if err := binary.Read(r, binary.BigEndian, &v); err != nil {
				return nil, fmt.Errorf("reading Long at index %d: %w", i, err)
			}
			pool[i] = &Long{Value: v}
			i++ // long/double occupy two pool slots; skip the phantom second slot

		case TagDouble:
			var bits uint64
			if err := binary.Read(r, binary.BigEndian, &bits); err != nil {
				return nil, fmt.Errorf("reading Double at index %d: %w", i, err)
			}
			pool[i] = &Double{Value: math.Float64frombits(bits)}
			i++

		case TagClass:
			var nameIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading Class at index %d: %w", i, err)
			}
			pool[i] = &ClassRef{NameIndex: nameIndex}

		case TagString:
			var utf8Index uint16
			if err := binary.Read(r, binary.BigEndian, &utf8Index); err != nil {
				return nil, fmt.Errorf("reading String at index %d: %w", i, err)
			}
			pool[i] = &StringRef{Utf8Index: utf8Index}

		case TagFieldref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading Fieldref at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading Fieldref at index %d: %w", i, err)
			}
			pool[i] = &Fieldref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagMethodref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading Methodref at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading Methodref at index %d: %w", i, err)
			}
			pool[i] = &Methodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagInterfaceMethodref:
			var classIndex, natIndex uint16
			if err := binary.Read(r, binary.BigEndian, &classIndex); err != nil {
				return nil, fmt.Errorf("reading InterfaceMethodref at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &natIndex); err != nil {
				return nil, fmt.Errorf("reading InterfaceMethodref at index %d: %w", i, err)
			}
			pool[i] = &InterfaceMethodref{ClassIndex: classIndex, NameAndTypeIndex: natIndex}

		case TagNameAndType:
			var nameIndex, descIndex uint16
			if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType at index %d: %w", i, err)
			}
			if err := binary.Read(r, binary.BigEndian, &descIndex); err != nil {
				return nil, fmt.Errorf("reading NameAndType at index %d: %w", i, err)
			}
			pool[i] = &NameAndType{NameIndex: nameIndex, DescriptorIndex: descIndex}

		case TagMethodHandle:
			skip := make([]byte, 3) // reference_kind u1 + reference_index u2
			if _, err := io.ReadFull(r, skip); err != nil {
				return nil, fmt.Errorf("reading MethodHandle at index %d: %w", i, err)
			}
			pool[i] = &placeholder{tag: tag}

		case TagMethodType:
			skip := make([]byte, 2) // descriptor_index u2
			if _, err := io.ReadFull(r, skip); err != nil {
				return nil, fmt.Errorf("reading MethodType at index %d: %w", i, err)
			}
			pool[i] = &placeholder{tag: tag}

		case TagDynamic, TagInvokeDynamic:
			skip := make([]byte, 4) // bootstrap_method_attr_index u2 + name_and_type_index u2
			if _, err := io.ReadFull(r, skip); err != nil {
				return nil, fmt.Errorf("reading Dynamic/InvokeDynamic at index %d: %w", i, err)
			}
			pool[i] = &placeholder{tag: tag}

		default:
			return nil, &Malformed{Reason: fmt.Sprintf("unknown constant pool tag %d at index %d", tag, i)}
		}
	}

	return pool, nil
}
