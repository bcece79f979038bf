package classfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ExceptionHandler is one entry of a Code attribute's exception table.
type ExceptionHandler struct {
	StartPC   int
	EndPC     int
	HandlerPC int
	CatchType string // "" for the universal catch-all (catch_type == 0)
}

// LineNumberEntry is one entry of a LineNumberTable attribute.
type LineNumberEntry struct {
	StartPC    int
	LineNumber int
}

// CodeAttribute is the decoded form of a method's Code attribute: the
// opcode-decoded instruction stream plus the exception table and whatever
// nested attributes were recognized.
type CodeAttribute struct {
	MaxStack    uint16
	MaxLocals   uint16
	Instrs      *Code
	Handlers    []ExceptionHandler
	LineNumbers []LineNumberEntry // nil if no LineNumberTable was present
}

// rawAttribute is an (name, data) pair read straight off the wire, before
// any attribute-specific interpretation.
type rawAttribute struct {
	Name string
	Data []byte
}

func readRawAttributes(r io.Reader, pool Pool, count uint16) ([]rawAttribute, error) {
	attrs := make([]rawAttribute, count)
	for i := uint16(0); i < count; i++ {
		var nameIndex uint16
		if err := binary.Read(r, binary.BigEndian, &nameIndex); err != nil {
			return nil, fmt.Errorf("reading attribute %d name index: %w", i, err)
		}
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("reading attribute %d length: %w", i, err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading attribute %d data: %w", i, err)
		}
		name, err := pool.Utf8At(nameIndex)
		if err != nil {
			return nil, fmt.Errorf("resolving attribute %d name: %w", i, err)
		}
		attrs[i] = rawAttribute{Name: name, Data: data}
	}
	return attrs, nil
}

// parseCodeAttribute decodes a Code attribute's payload: max_stack,
// max_locals, the instruction stream (via DecodeCode), the exception table,
// and any recognized nested attributes (LineNumberTable; anything else is
// skipped silently).
func parseCodeAttribute(data []byte, pool Pool) (*CodeAttribute, error) {
	if len(data) < 8 {
		return nil, &Malformed{Reason: fmt.Sprintf("Code attribute too short: %d bytes", len(data))}
	}

	maxStack := binary.BigEndian.Uint16(data[0:2])
	maxLocals := binary.BigEndian.Uint16(data[2:4])
	codeLength := binary.BigEndian.Uint32(data[4:8])

	offset := 8
	if len(data) < offset+int(codeLength) {
		return nil, &Malformed{Reason: fmt.Sprintf("Code attribute too short for code_length %d", codeLength)}
	}
	codeBytes := data[offset : offset+int(codeLength)]
	offset += int(codeLength)

	instrs, err := DecodeCode(codeBytes, pool)
	if err != nil {
		return nil, fmt.Errorf("decoding instructions: %w", err)
	}

	if offset+2 > len(data) {
		return nil, &Malformed{Reason: "Code attribute truncated before exception_table_length"}
	}
	exTableLen := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	handlers := make([]ExceptionHandler, exTableLen)
	for i := uint16(0); i < exTableLen; i++ {
		if offset+8 > len(data) {
			return nil, &Malformed{Reason: "Code attribute truncated in exception_table"}
		}
		startPC := binary.BigEndian.Uint16(data[offset : offset+2])
		endPC := binary.BigEndian.Uint16(data[offset+2 : offset+4])
		handlerPC := binary.BigEndian.Uint16(data[offset+4 : offset+6])
		catchIndex := binary.BigEndian.Uint16(data[offset+6 : offset+8])
		offset += 8

		var catchType string
		if catchIndex != 0 {
			catchType, err = pool.ClassName(catchIndex)
			if err != nil {
				return nil, fmt.Errorf("resolving exception handler %d catch type: %w", i, err)
			}
		}
		handlers[i] = ExceptionHandler{
			StartPC:   int(startPC),
			EndPC:     int(endPC),
			HandlerPC: int(handlerPC),
			CatchType: catchType,
		}
	}

	if offset+2 > len(data) {
		return nil, &Malformed{Reason: "Code attribute truncated before attributes_count"}
	}
	nestedCount := binary.BigEndian.Uint16(data[offset : offset+2])
	offset += 2

	var lineNumbers []LineNumberEntry
	for i := uint16(0); i < nestedCount; i++ {
		if offset+2 > len(data) {
			return nil, &Malformed{Reason: "Code attribute truncated in nested attribute name"}
		}
		nameIndex := binary.BigEndian.Uint16(data[offset : offset+2])
		offset += 2
		if offset+4 > len(data) {
			return nil, &Malformed{Reason: "Code attribute truncated in nested attribute length"}
		}
		length := binary.BigEndian.Uint32(data[offset : offset+4])
		offset += 4
		if offset+int(length) > len(data) {
			return nil, &Malformed{Reason: "Code attribute truncated in nested attribute data"}
		}
		nestedData := data[offset : offset+int(length)]
		offset += int(length)

		name, err := pool.Utf8At(nameIndex)
		if err != nil {
			continue // unresolvable nested attribute name: skip silently
		}
		if name != "LineNumberTable" {
			continue // unrecognized nested attributes are skipped silently
		}
		entries, err := parseLineNumberTable(nestedData)
		if err != nil {
			return nil, fmt.Errorf("parsing LineNumberTable: %w", err)
		}
		lineNumbers = entries
	}

	return &CodeAttribute{
		MaxStack:    maxStack,
		MaxLocals:   maxLocals,
		Instrs:      instrs,
		Handlers:    handlers,
		LineNumbers: lineNumbers,
	}, nil
}

func parseLineNumberTable(data []byte) ([]LineNumberEntry, error) {
	if len(data) < 2 {
		return nil, &Malformed{Reason: "LineNumberTable too short"}
	}
	count := binary.BigEndian.Uint16(data[0:2])
	if len(data) < 2+int(count)*4 {
		return nil, &Malformed{Reason: "LineNumberTable truncated"}
	}
	entries := make([]LineNumberEntry, count)
	for i := uint16(0); i < count; i++ {
		off := 2 + int(i)*4
		entries[i] = LineNumberEntry{
			StartPC:    int(binary.BigEndian.Uint16(data[off : off+2])),
			LineNumber: int(binary.BigEndian.Uint16(data[off+2 : off+4])),
		}
	}
	return entries, nil
}

// parseConstantValue interprets a ConstantValue attribute's payload
// according to the owning field's descriptor.
func parseConstantValue(data []byte, pool Pool, fieldDescriptor string) (*ConstantValue, error) {
	if len(data) < 2 {
		return nil, &Malformed{Reason: "ConstantValue attribute too short"}
	}
	index := binary.BigEndian.Uint16(data[0:2])
	item, err := pool.At(index)
	if err != nil {
		return nil, fmt.Errorf("resolving ConstantValue: %w", err)
	}

	switch fieldDescriptor {
	case "J":
		v, ok := item.(*Long)
		if !ok {
			return nil, &Malformed{Reason: "ConstantValue type mismatch for long field"}
		}
		return &ConstantValue{Kind: ConstantValueLong, Long: v.Value}, nil
	case "F":
		v, ok := item.(*Float)
		if !ok {
			return nil, &Malformed{Reason: "ConstantValue type mismatch for float field"}
		}
		return &ConstantValue{Kind: ConstantValueFloat, Float: v.Value}, nil
	case "D":
		v, ok := item.(*Double)
		if !ok {
			return nil, &Malformed{Reason: "ConstantValue type mismatch for double field"}
		}
		return &ConstantValue{Kind: ConstantValueDouble, Double: v.Value}, nil
	case "Ljava/lang/String;":
		v, ok := item.(*StringRef)
		if !ok {
			return nil, &Malformed{Reason: "ConstantValue type mismatch for String field"}
		}
		s, err := pool.Utf8At(v.Utf8Index)
		if err != nil {
			return nil, err
		}
		return &ConstantValue{Kind: ConstantValueString, String: s}, nil
	default: // B, S, I, C, Z all wire through CONSTANT_Integer
		v, ok := item.(*Integer)
		if !ok {
			return nil, &Malformed{Reason: "ConstantValue type mismatch for integral field"}
		}
		return &ConstantValue{Kind: ConstantValueInt, Int: v.Value}, nil
	}
}
