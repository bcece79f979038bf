package classfile

import (
	"encoding/binary"
	"fmt"
)

// Op is a canonicalized instruction mnemonic. Short forms present in the raw
// bytecode (iconst_0, aload_1, dload_2, ...) are folded into their indexed
// counterpart at decode time; the interpreter never sees a short form.
type Op int

const (
	OpAaload Op = iota
	OpAastore
	OpAconstNull
	OpAload
	OpAnewarray
	OpAreturn
	OpArraylength
	OpAstore
	OpAthrow
	OpBaload
	OpBastore
	OpBipush
	OpCaload
	OpCastore
	OpCheckcast
	OpD2f
	OpD2i
	OpD2l
	OpDadd
	OpDaload
	OpDastore
	OpDcmpg
	OpDcmpl
	OpDconst
	OpDdiv
	OpDload
	OpDmul
	OpDneg
	OpDrem
	OpDreturn
	OpDstore
	OpDsub
	OpDup
	OpDupX1
	OpDupX2
	OpDup2
	OpDup2X1
	OpDup2X2
	OpF2d
	OpF2i
	OpF2l
	OpFadd
	OpFaload
	OpFastore
	OpFcmpg
	OpFcmpl
	OpFconst
	OpFdiv
	OpFload
	OpFmul
	OpFneg
	OpFrem
	OpFreturn
	OpFstore
	OpFsub
	OpGetfield
	OpGetstatic
	OpGoto
	OpI2b
	OpI2c
	OpI2d
	OpI2f
	OpI2l
	OpI2s
	OpIadd
	OpIaload
	OpIand
	OpIastore
	OpIconst
	OpIdiv
	OpIfAcmpeq
	OpIfAcmpne
	OpIfIcmpeq
	OpIfIcmpne
	OpIfIcmplt
	OpIfIcmpge
	OpIfIcmpgt
	OpIfIcmple
	OpIfeq
	OpIfne
	OpIflt
	OpIfge
	OpIfgt
	OpIfle
	OpIfnonnull
	OpIfnull
	OpIinc
	OpIload
	OpImul
	OpIneg
	OpInstanceof
	OpInvokedynamic
	OpInvokeinterface
	OpInvokespecial
	OpInvokestatic
	OpInvokevirtual
	OpIor
	OpIrem
	OpIreturn
	OpIshl
	OpIshr
	OpIstore
	OpIsub
	OpIushr
	OpIxor
	OpJsr
	OpL2d
	OpL2f
	OpL2i
	OpLadd
	OpLaload
	OpLand
	OpLastore
	OpLcmp
	OpLconst
	OpLdc
	OpLdiv
	OpLload
	OpLmul
	OpLneg
	OpLookupswitch
	OpLor
	OpLrem
	OpLreturn
	OpLshl
	OpLshr
	OpLstore
	OpLsub
	OpLushr
	OpLxor
	OpMonitorenter
	OpMonitorexit
	OpMultianewarray
	OpNew
	OpNewarray
	OpNop
	OpPop
	OpPop2
	OpPutfield
	OpPutstatic
	OpRet
	OpReturn
	OpSaload
	OpSastore
	OpSipush
	OpSwap
	OpTableswitch
)

// ConstKind discriminates the payload of a ResolvedConstant.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstLong
	ConstFloat
	ConstDouble
	ConstString
	ConstClass
)

// ResolvedConstant is what ldc/ldc_w/ldc2_w carry after decode-time
// resolution: the pool lookup has already happened, so the interpreter
// never indexes the pool for these.
type ResolvedConstant struct {
	Kind      ConstKind
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	String    string
	ClassName string
}

// SwitchEntry is one (match, target) pair of a lookupswitch.
type SwitchEntry struct {
	Match  int32
	Target int
}

// Instruction is one decoded, canonicalized bytecode instruction. Only the
// fields relevant to Op are meaningful; see the comment above each Op group
// in the decoder for which fields it populates.
type Instruction struct {
	Op Op

	Var    int   // local variable index: *load/*store/ret/iinc
	Iinc   int32 // iinc's signed increment
	Int    int32 // bipush/sipush/iconst immediate; multianewarray's dimension count
	Long   int64 // lconst immediate
	Float  float32
	Double float64

	Target int // absolute byte offset: goto/jsr/if*

	ClassName string // anewarray/checkcast/instanceof/new/multianewarray element class

	Ref Reference // getfield/putfield/getstatic/putstatic/invoke*; InvokeinterfaceCount for invokeinterface

	Const ResolvedConstant // ldc/ldc_w/ldc2_w

	// tableswitch
	Default      int
	Low, High    int32
	JumpTable    []int
	// lookupswitch
	LookupTable []SwitchEntry

	InvokeinterfaceCount uint8 // declared arg-slot count, informational only (spec: "ignored")
}

// PositionedInstruction pairs a decoded instruction with the byte offset it
// started at — the key the interpreter and exception table use.
type PositionedInstruction struct {
	Offset int
	Instr  Instruction
}

// Code is the ordered offset→instruction map produced by DecodeCode.
type Code struct {
	order []PositionedInstruction
	index map[int]int
}

// At resolves a byte offset to its decoded instruction. ok is false if
// offset does not name the start of a decoded instruction (an illegal
// branch target — the caller should raise VerifyError).
func (c *Code) At(offset int) (Instruction, bool) {
	i, ok := c.index[offset]
	if !ok {
		return Instruction{}, false
	}
	return c.order[i].Instr, true
}

// Next returns the offset of the instruction following the one at offset,
// or (0, false) if offset is the last instruction.
func (c *Code) Next(offset int) (int, bool) {
	i, ok := c.index[offset]
	if !ok || i+1 >= len(c.order) {
		return 0, false
	}
	return c.order[i+1].Offset, true
}

// First returns the offset of the first instruction (always 0 for
// non-empty code).
func (c *Code) First() int {
	if len(c.order) == 0 {
		return 0
	}
	return c.order[0].Offset
}

// Len reports the number of decoded instructions.
func (c *Code) Len() int { return len(c.order) }

// DecodeCode decodes a raw Code-attribute instruction stream into an
// ordered offset→instruction map, resolving every constant-pool-bearing
// operand eagerly against pool.
func DecodeCode(code []byte, pool Pool) (*Code, error) {
	c := &Code{index: make(map[int]int)}
	pos := 0
	wide := false
	instrStart := 0 // offset of the instruction as a unit, including a wide prefix

	for pos < len(code) {
		start := pos
		if !wide {
			instrStart = start
		}
		opByte := code[pos]
		pos++

		instr, n, err := decodeOne(opByte, code[pos:], start, wide, pool)
		if err != nil {
			return nil, fmt.Errorf("decoding opcode at offset %d: %w", start, err)
		}
		pos += n

		if opByte == 0xc4 {
			wide = true
			continue
		}

		c.index[instrStart] = len(c.order)
		c.order = append(c.order, PositionedInstruction{Offset: instrStart, Instr: instr})
		wide = false
	}

	return c, nil
}

func u8At(b []byte, i int) (uint8, error) {
	if i >= len(b) {
		return 0, &Malformed{Reason: "truncated instruction operand"}
	}
	return b[i], nil
}

func u16At(b []byte, i int) (uint16, error) {
	if i+2 > len(b) {
		return 0, &Malformed{Reason: "truncated instruction operand"}
	}
	return binary.BigEndian.Uint16(b[i : i+2]), nil
}

func i32At(b []byte, i int) (int32, error) {
	if i+4 > len(b) {
		return 0, &Malformed{Reason: "truncated instruction operand"}
	}
	return int32(binary.BigEndian.Uint32(b[i : i+4])), nil
}

// resolveClassOperand resolves a u16 constant-pool index (via u16At at
// position i) to the class name it names.
func resolveClassOperand(b []byte, i int, pool Pool) (string, int, error) {
	idx, err := u16At(b, i)
	if err != nil {
		return "", 0, err
	}
	name, err := pool.ClassName(idx)
	if err != nil {
		return "", 0, fmt.Errorf("resolving class operand: %w", err)
	}
	return name, 2, nil
}

func resolveRefOperand(b []byte, i int, pool Pool) (Reference, int, error) {
	idx, err := u16At(b, i)
	if err != nil {
		return Reference{}, 0, err
	}
	ref, err := pool.ResolveReference(idx)
	if err != nil {
		return Reference{}, 0, fmt.Errorf("resolving reference operand: %w", err)
	}
	return ref, 2, nil
}

func resolveLdcOperand(index uint16, pool Pool) (ResolvedConstant, error) {
	item, err := pool.At(index)
	if err != nil {
		return ResolvedConstant{}, err
	}
	switch v := item.(type) {
	case *Integer:
		return ResolvedConstant{Kind: ConstInt, Int: v.Value}, nil
	case *Float:
		return ResolvedConstant{Kind: ConstFloat, Float: v.Value}, nil
	case *Long:
		return ResolvedConstant{Kind: ConstLong, Long: v.Value}, nil
	case *Double:
		return ResolvedConstant{Kind: ConstDouble, Double: v.Value}, nil
	case *StringRef:
		s, err := pool.Utf8At(v.Utf8Index)
		if err != nil {
			return ResolvedConstant{}, err
		}
		return ResolvedConstant{Kind: ConstString, String: s}, nil
	case *ClassRef:
		name, err := pool.Utf8At(v.NameIndex)
		if err != nil {
			return ResolvedConstant{}, err
		}
		return ResolvedConstant{Kind: ConstClass, ClassName: name}, nil
	default:
		return ResolvedConstant{}, &Malformed{Reason: fmt.Sprintf("ldc of non-loadable constant pool tag %d", item.Tag())}
	}
}

// decodeOne decodes the instruction beginning at opByte; rest is the byte
// slice immediately following the opcode byte; base is the offset opByte
// itself occupies. Returns the instruction, the number of operand bytes
// consumed from rest, and any error. The wide-prefixed decode path for 0xc4
// is handled inline: decodeOne returns a synthetic Nop for the 0xc4 byte
// itself and the caller re-enters with wide=true for the following opcode.
func decodeOne(opByte byte, rest []byte, base int, wide bool, pool Pool) (Instruction, int, error) {
	branch := func(offset int32) int { return base + int(offset) }

	if opByte == 0xc4 { // wide prefix
		return Instruction{Op: OpNop}, 0, nil
	}

	if wide {
		// Under wide, fload/dload/aload/fstore/dstore/astore carry a 2-byte
		// local index, the same as the iload/istore family below.
		if op, ok := map[byte]Op{0x17: OpFload, 0x18: OpDload, 0x19: OpAload, 0x38: OpFstore, 0x39: OpDstore, 0x3a: OpAstore}[opByte]; ok {
			v, err := u16At(rest, 0)
			return Instruction{Op: op, Var: int(v)}, 2, err
		}
	}

	switch opByte {
	case 0x32:
		return Instruction{Op: OpAaload}, 0, nil
	case 0x53:
		return Instruction{Op: OpAastore}, 0, nil
	case 0x01:
		return Instruction{Op: OpAconstNull}, 0, nil
	case 0x19:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpAload, Var: int(v)}, 1, err
	case 0x2a:
		return Instruction{Op: OpAload, Var: 0}, 0, nil
	case 0x2b:
		return Instruction{Op: OpAload, Var: 1}, 0, nil
	case 0x2c:
		return Instruction{Op: OpAload, Var: 2}, 0, nil
	case 0x2d:
		return Instruction{Op: OpAload, Var: 3}, 0, nil
	case 0xbd:
		name, n, err := resolveClassOperand(rest, 0, pool)
		return Instruction{Op: OpAnewarray, ClassName: name}, n, err
	case 0xb0:
		return Instruction{Op: OpAreturn}, 0, nil
	case 0xbe:
		return Instruction{Op: OpArraylength}, 0, nil
	case 0x3a:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpAstore, Var: int(v)}, 1, err
	case 0x4b:
		return Instruction{Op: OpAstore, Var: 0}, 0, nil
	case 0x4c:
		return Instruction{Op: OpAstore, Var: 1}, 0, nil
	case 0x4d:
		return Instruction{Op: OpAstore, Var: 2}, 0, nil
	case 0x4e:
		return Instruction{Op: OpAstore, Var: 3}, 0, nil
	case 0xbf:
		return Instruction{Op: OpAthrow}, 0, nil
	case 0x33:
		return Instruction{Op: OpBaload}, 0, nil
	case 0x54:
		return Instruction{Op: OpBastore}, 0, nil
	case 0x10:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpBipush, Int: int32(int8(v))}, 1, err
	case 0x34:
		return Instruction{Op: OpCaload}, 0, nil
	case 0x55:
		return Instruction{Op: OpCastore}, 0, nil
	case 0xc0:
		name, n, err := resolveClassOperand(rest, 0, pool)
		return Instruction{Op: OpCheckcast, ClassName: name}, n, err
	case 0x90:
		return Instruction{Op: OpD2f}, 0, nil
	case 0x8e:
		return Instruction{Op: OpD2i}, 0, nil
	case 0x8f:
		return Instruction{Op: OpD2l}, 0, nil
	case 0x63:
		return Instruction{Op: OpDadd}, 0, nil
	case 0x31:
		return Instruction{Op: OpDaload}, 0, nil
	case 0x52:
		return Instruction{Op: OpDastore}, 0, nil
	case 0x98:
		return Instruction{Op: OpDcmpg}, 0, nil
	case 0x97:
		return Instruction{Op: OpDcmpl}, 0, nil
	case 0x0e:
		return Instruction{Op: OpDconst, Double: 0}, 0, nil
	case 0x0f:
		return Instruction{Op: OpDconst, Double: 1}, 0, nil
	case 0x6f:
		return Instruction{Op: OpDdiv}, 0, nil
	case 0x18:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpDload, Var: int(v)}, 1, err
	case 0x26:
		return Instruction{Op: OpDload, Var: 0}, 0, nil
	case 0x27:
		return Instruction{Op: OpDload, Var: 1}, 0, nil
	case 0x28:
		return Instruction{Op: OpDload, Var: 2}, 0, nil
	case 0x29:
		return Instruction{Op: OpDload, Var: 3}, 0, nil
	case 0x6b:
		return Instruction{Op: OpDmul}, 0, nil
	case 0x77:
		return Instruction{Op: OpDneg}, 0, nil
	case 0x73:
		return Instruction{Op: OpDrem}, 0, nil
	case 0xaf:
		return Instruction{Op: OpDreturn}, 0, nil
	case 0x39:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpDstore, Var: int(v)}, 1, err
	case 0x47:
		return Instruction{Op: OpDstore, Var: 0}, 0, nil
	case 0x48:
		return Instruction{Op: OpDstore, Var: 1}, 0, nil
	case 0x49:
		return Instruction{Op: OpDstore, Var: 2}, 0, nil
	case 0x4a:
		return Instruction{Op: OpDstore, Var: 3}, 0, nil
	case 0x67:
		return Instruction{Op: OpDsub}, 0, nil
	case 0x59:
		return Instruction{Op: OpDup}, 0, nil
	case 0x5a:
		return Instruction{Op: OpDupX1}, 0, nil
	case 0x5b:
		return Instruction{Op: OpDupX2}, 0, nil
	case 0x5c:
		return Instruction{Op: OpDup2}, 0, nil
	case 0x5d:
		return Instruction{Op: OpDup2X1}, 0, nil
	case 0x5e:
		return Instruction{Op: OpDup2X2}, 0, nil
	case 0x8d:
		return Instruction{Op: OpF2d}, 0, nil
	case 0x8b:
		return Instruction{Op: OpF2i}, 0, nil
	case 0x8c:
		return Instruction{Op: OpF2l}, 0, nil
	case 0x62:
		return Instruction{Op: OpFadd}, 0, nil
	case 0x30:
		return Instruction{Op: OpFaload}, 0, nil
	case 0x51:
		return Instruction{Op: OpFastore}, 0, nil
	case 0x96:
		return Instruction{Op: OpFcmpg}, 0, nil
	case 0x95:
		return Instruction{Op: OpFcmpl}, 0, nil
	case 0x0b:
		return Instruction{Op: OpFconst, Float: 0}, 0, nil
	case 0x0c:
		return Instruction{Op: OpFconst, Float: 1}, 0, nil
	case 0x0d:
		return Instruction{Op: OpFconst, Float: 2}, 0, nil
	case 0x6e:
		return Instruction{Op: OpFdiv}, 0, nil
	case 0x17:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpFload, Var: int(v)}, 1, err
	case 0x22:
		return Instruction{Op: OpFload, Var: 0}, 0, nil
	case 0x23:
		return Instruction{Op: OpFload, Var: 1}, 0, nil
	case 0x24:
		return Instruction{Op: OpFload, Var: 2}, 0, nil
	case 0x25:
		return Instruction{Op: OpFload, Var: 3}, 0, nil
	case 0x6a:
		return Instruction{Op: OpFmul}, 0, nil
	case 0x76:
		return Instruction{Op: OpFneg}, 0, nil
	case 0x72:
		return Instruction{Op: OpFrem}, 0, nil
	case 0xae:
		return Instruction{Op: OpFreturn}, 0, nil
	case 0x38:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpFstore, Var: int(v)}, 1, err
	case 0x43:
		return Instruction{Op: OpFstore, Var: 0}, 0, nil
	case 0x44:
		return Instruction{Op: OpFstore, Var: 1}, 0, nil
	case 0x45:
		return Instruction{Op: OpFstore, Var: 2}, 0, nil
	case 0x46:
		return Instruction{Op: OpFstore, Var: 3}, 0, nil
	case 0x66:
		return Instruction{Op: OpFsub}, 0, nil
	case 0xb4:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpGetfield, Ref: ref}, n, err
	case 0xb2:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpGetstatic, Ref: ref}, n, err
	case 0xa7:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpGoto, Target: branch(int32(int16(u)))}, 2, err
	case 0xc8:
		v, err := i32At(rest, 0)
		return Instruction{Op: OpGoto, Target: branch(v)}, 4, err
	case 0x91:
		return Instruction{Op: OpI2b}, 0, nil
	case 0x92:
		return Instruction{Op: OpI2c}, 0, nil
	case 0x87:
		return Instruction{Op: OpI2d}, 0, nil
	case 0x86:
		return Instruction{Op: OpI2f}, 0, nil
	case 0x85:
		return Instruction{Op: OpI2l}, 0, nil
	case 0x93:
		return Instruction{Op: OpI2s}, 0, nil
	case 0x60:
		return Instruction{Op: OpIadd}, 0, nil
	case 0x2e:
		return Instruction{Op: OpIaload}, 0, nil
	case 0x7e:
		return Instruction{Op: OpIand}, 0, nil
	case 0x4f:
		return Instruction{Op: OpIastore}, 0, nil
	case 0x02:
		return Instruction{Op: OpIconst, Int: -1}, 0, nil
	case 0x03:
		return Instruction{Op: OpIconst, Int: 0}, 0, nil
	case 0x04:
		return Instruction{Op: OpIconst, Int: 1}, 0, nil
	case 0x05:
		return Instruction{Op: OpIconst, Int: 2}, 0, nil
	case 0x06:
		return Instruction{Op: OpIconst, Int: 3}, 0, nil
	case 0x07:
		return Instruction{Op: OpIconst, Int: 4}, 0, nil
	case 0x08:
		return Instruction{Op: OpIconst, Int: 5}, 0, nil
	case 0x6c:
		return Instruction{Op: OpIdiv}, 0, nil
	case 0xa5:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfAcmpeq, Target: branch(int32(int16(u)))}, 2, err
	case 0xa6:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfAcmpne, Target: branch(int32(int16(u)))}, 2, err
	case 0x9f:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfIcmpeq, Target: branch(int32(int16(u)))}, 2, err
	case 0xa0:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfIcmpne, Target: branch(int32(int16(u)))}, 2, err
	case 0xa1:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfIcmplt, Target: branch(int32(int16(u)))}, 2, err
	case 0xa2:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfIcmpge, Target: branch(int32(int16(u)))}, 2, err
	case 0xa3:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfIcmpgt, Target: branch(int32(int16(u)))}, 2, err
	case 0xa4:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfIcmple, Target: branch(int32(int16(u)))}, 2, err
	case 0x99:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfeq, Target: branch(int32(int16(u)))}, 2, err
	case 0x9a:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfne, Target: branch(int32(int16(u)))}, 2, err
	case 0x9b:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIflt, Target: branch(int32(int16(u)))}, 2, err
	case 0x9c:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfge, Target: branch(int32(int16(u)))}, 2, err
	case 0x9d:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfgt, Target: branch(int32(int16(u)))}, 2, err
	case 0x9e:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfle, Target: branch(int32(int16(u)))}, 2, err
	case 0xc7:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfnonnull, Target: branch(int32(int16(u)))}, 2, err
	case 0xc6:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpIfnull, Target: branch(int32(int16(u)))}, 2, err
	case 0x84:
		if wide {
			idx, err := u16At(rest, 0)
			if err != nil {
				return Instruction{}, 0, err
			}
			c, err := u16At(rest, 2)
			return Instruction{Op: OpIinc, Var: int(idx), Iinc: int32(int16(c))}, 4, err
		}
		idx, err := u8At(rest, 0)
		if err != nil {
			return Instruction{}, 0, err
		}
		c, err := u8At(rest, 1)
		return Instruction{Op: OpIinc, Var: int(idx), Iinc: int32(int8(c))}, 2, err
	case 0x15:
		if wide {
			v, err := u16At(rest, 0)
			return Instruction{Op: OpIload, Var: int(v)}, 2, err
		}
		v, err := u8At(rest, 0)
		return Instruction{Op: OpIload, Var: int(v)}, 1, err
	case 0x1a:
		return Instruction{Op: OpIload, Var: 0}, 0, nil
	case 0x1b:
		return Instruction{Op: OpIload, Var: 1}, 0, nil
	case 0x1c:
		return Instruction{Op: OpIload, Var: 2}, 0, nil
	case 0x1d:
		return Instruction{Op: OpIload, Var: 3}, 0, nil
	case 0x68:
		return Instruction{Op: OpImul}, 0, nil
	case 0x74:
		return Instruction{Op: OpIneg}, 0, nil
	case 0xc1:
		name, n, err := resolveClassOperand(rest, 0, pool)
		return Instruction{Op: OpInstanceof, ClassName: name}, n, err
	case 0xba:
		// The InvokeDynamic pool entry is never resolved; executing the
		// instruction raises UnsupportedOperationException in the interpreter.
		_, err := u16At(rest, 0)
		return Instruction{Op: OpInvokedynamic}, 4, err // index + 2 reserved zero bytes
	case 0xb9:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		if err != nil {
			return Instruction{}, 0, err
		}
		count, err := u8At(rest, n)
		return Instruction{Op: OpInvokeinterface, Ref: ref, InvokeinterfaceCount: count}, n + 2, err // count byte + reserved zero byte
	case 0xb7:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpInvokespecial, Ref: ref}, n, err
	case 0xb8:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpInvokestatic, Ref: ref}, n, err
	case 0xb6:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpInvokevirtual, Ref: ref}, n, err
	case 0x80:
		return Instruction{Op: OpIor}, 0, nil
	case 0x70:
		return Instruction{Op: OpIrem}, 0, nil
	case 0xac:
		return Instruction{Op: OpIreturn}, 0, nil
	case 0x78:
		return Instruction{Op: OpIshl}, 0, nil
	case 0x7a:
		return Instruction{Op: OpIshr}, 0, nil
	case 0x36:
		if wide {
			v, err := u16At(rest, 0)
			return Instruction{Op: OpIstore, Var: int(v)}, 2, err
		}
		v, err := u8At(rest, 0)
		return Instruction{Op: OpIstore, Var: int(v)}, 1, err
	case 0x3b:
		return Instruction{Op: OpIstore, Var: 0}, 0, nil
	case 0x3c:
		return Instruction{Op: OpIstore, Var: 1}, 0, nil
	case 0x3d:
		return Instruction{Op: OpIstore, Var: 2}, 0, nil
	case 0x3e:
		return Instruction{Op: OpIstore, Var: 3}, 0, nil
	case 0x64:
		return Instruction{Op: OpIsub}, 0, nil
	case 0x7c:
		return Instruction{Op: OpIushr}, 0, nil
	case 0x82:
		return Instruction{Op: OpIxor}, 0, nil
	case 0xa8:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpJsr, Target: branch(int32(int16(u)))}, 2, err
	case 0xc9:
		v, err := i32At(rest, 0)
		return Instruction{Op: OpJsr, Target: branch(v)}, 4, err
	case 0x8a:
		return Instruction{Op: OpL2d}, 0, nil
	case 0x89:
		return Instruction{Op: OpL2f}, 0, nil
	case 0x88:
		return Instruction{Op: OpL2i}, 0, nil
	case 0x61:
		return Instruction{Op: OpLadd}, 0, nil
	case 0x2f:
		return Instruction{Op: OpLaload}, 0, nil
	case 0x7f:
		return Instruction{Op: OpLand}, 0, nil
	case 0x50:
		return Instruction{Op: OpLastore}, 0, nil
	case 0x94:
		return Instruction{Op: OpLcmp}, 0, nil
	case 0x09:
		return Instruction{Op: OpLconst, Long: 0}, 0, nil
	case 0x0a:
		return Instruction{Op: OpLconst, Long: 1}, 0, nil
	case 0x12:
		idx, err := u8At(rest, 0)
		if err != nil {
			return Instruction{}, 0, err
		}
		cst, err := resolveLdcOperand(uint16(idx), pool)
		return Instruction{Op: OpLdc, Const: cst}, 1, err
	case 0x13:
		idx, err := u16At(rest, 0)
		if err != nil {
			return Instruction{}, 0, err
		}
		cst, err := resolveLdcOperand(idx, pool)
		return Instruction{Op: OpLdc, Const: cst}, 2, err
	case 0x14:
		idx, err := u16At(rest, 0)
		if err != nil {
			return Instruction{}, 0, err
		}
		cst, err := resolveLdcOperand(idx, pool)
		return Instruction{Op: OpLdc, Const: cst}, 2, err
	case 0x6d:
		return Instruction{Op: OpLdiv}, 0, nil
	case 0x16:
		if wide {
			v, err := u16At(rest, 0)
			return Instruction{Op: OpLload, Var: int(v)}, 2, err
		}
		v, err := u8At(rest, 0)
		return Instruction{Op: OpLload, Var: int(v)}, 1, err
	case 0x1e:
		return Instruction{Op: OpLload, Var: 0}, 0, nil
	case 0x1f:
		return Instruction{Op: OpLload, Var: 1}, 0, nil
	case 0x20:
		return Instruction{Op: OpLload, Var: 2}, 0, nil
	case 0x21:
		return Instruction{Op: OpLload, Var: 3}, 0, nil
	case 0x69:
		return Instruction{Op: OpLmul}, 0, nil
	case 0x75:
		return Instruction{Op: OpLneg}, 0, nil
	case 0xab:
		return decodeLookupswitch(rest, base)
	case 0x81:
		return Instruction{Op: OpLor}, 0, nil
	case 0x71:
		return Instruction{Op: OpLrem}, 0, nil
	case 0xad:
		return Instruction{Op: OpLreturn}, 0, nil
	case 0x79:
		return Instruction{Op: OpLshl}, 0, nil
	case 0x7b:
		return Instruction{Op: OpLshr}, 0, nil
	case 0x37:
		if wide {
			v, err := u16At(rest, 0)
			return Instruction{Op: OpLstore, Var: int(v)}, 2, err
		}
		v, err := u8At(rest, 0)
		return Instruction{Op: OpLstore, Var: int(v)}, 1, err
	case 0x3f:
		return Instruction{Op: OpLstore, Var: 0}, 0, nil
	case 0x40:
		return Instruction{Op: OpLstore, Var: 1}, 0, nil
	case 0x41:
		return Instruction{Op: OpLstore, Var: 2}, 0, nil
	case 0x42:
		return Instruction{Op: OpLstore, Var: 3}, 0, nil
	case 0x65:
		return Instruction{Op: OpLsub}, 0, nil
	case 0x7d:
		return Instruction{Op: OpLushr}, 0, nil
	case 0x83:
		return Instruction{Op: OpLxor}, 0, nil
	case 0xc2:
		return Instruction{Op: OpMonitorenter}, 0, nil
	case 0xc3:
		return Instruction{Op: OpMonitorexit}, 0, nil
	case 0xc5:
		name, n, err := resolveClassOperand(rest, 0, pool)
		if err != nil {
			return Instruction{}, 0, err
		}
		dims, err := u8At(rest, n)
		return Instruction{Op: OpMultianewarray, ClassName: name, Int: int32(dims)}, n + 1, err
	case 0xbb:
		name, n, err := resolveClassOperand(rest, 0, pool)
		return Instruction{Op: OpNew, ClassName: name}, n, err
	case 0xbc:
		v, err := u8At(rest, 0)
		return Instruction{Op: OpNewarray, Int: int32(v)}, 1, err
	case 0x00:
		return Instruction{Op: OpNop}, 0, nil
	case 0x57:
		return Instruction{Op: OpPop}, 0, nil
	case 0x58:
		return Instruction{Op: OpPop2}, 0, nil
	case 0xb5:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpPutfield, Ref: ref}, n, err
	case 0xb3:
		ref, n, err := resolveRefOperand(rest, 0, pool)
		return Instruction{Op: OpPutstatic, Ref: ref}, n, err
	case 0xa9:
		if wide {
			v, err := u16At(rest, 0)
			return Instruction{Op: OpRet, Var: int(v)}, 2, err
		}
		v, err := u8At(rest, 0)
		return Instruction{Op: OpRet, Var: int(v)}, 1, err
	case 0xb1:
		return Instruction{Op: OpReturn}, 0, nil
	case 0x35:
		return Instruction{Op: OpSaload}, 0, nil
	case 0x56:
		return Instruction{Op: OpSastore}, 0, nil
	case 0x11:
		u, err := u16At(rest, 0)
		return Instruction{Op: OpSipush, Int: int32(int16(u))}, 2, err
	case 0x5f:
		return Instruction{Op: OpSwap}, 0, nil
	case 0xaa:
		return decodeTableswitch(rest, base)
	default:
		return Instruction{}, 0, &Malformed{Reason: fmt.Sprintf("unknown opcode 0x%02x", opByte)}
	}
}

// decodeTableswitch reads the 4-byte-aligned tableswitch operand block.
// rest begins immediately after the opcode byte (at offset base+1); the
// padding is computed from base+1, per JVMS §6.5.tableswitch.
func decodeTableswitch(rest []byte, base int) (Instruction, int, error) {
	pad := (4 - (base+1)%4) % 4
	i := pad
	def, err := i32At(rest, i)
	if err != nil {
		return Instruction{}, 0, err
	}
	i += 4
	low, err := i32At(rest, i)
	if err != nil {
		return Instruction{}, 0, err
	}
	i += 4
	high, err := i32At(rest, i)
	if err != nil {
		return Instruction{}, 0, err
	}
	i += 4
	n := int(high-low) + 1
	if n < 0 {
		return Instruction{}, 0, &Malformed{Reason: "tableswitch high < low"}
	}
	table := make([]int, n)
	for j := 0; j < n; j++ {
		off, err := i32At(rest, i)
		if err != nil {
			return Instruction{}, 0, err
		}
		table[j] = base + int(off)
		i += 4
	}
	return Instruction{
		Op:        OpTableswitch,
		Default:   base + int(def),
		Low:       low,
		High:      high,
		JumpTable: table,
	}, i, nil
}

func decodeLookupswitch(rest []byte, base int) (Instruction, int, error) {
	pad := (4 - (base+1)%4) % 4
	i := pad
	def, err := i32At(rest, i)
	if err != nil {
		return Instruction{}, 0, err
	}
	i += 4
	count, err := i32At(rest, i)
	if err != nil {
		return Instruction{}, 0, err
	}
	i += 4
	if count < 0 {
		return Instruction{}, 0, &Malformed{Reason: "lookupswitch negative pair count"}
	}
	pairs := make([]SwitchEntry, count)
	for j := int32(0); j < count; j++ {
		match, err := i32At(rest, i)
		if err != nil {
			return Instruction{}, 0, err
		}
		i += 4
		target, err := i32At(rest, i)
		if err != nil {
			return Instruction{}, 0, err
		}
		i += 4
		pairs[j] = SwitchEntry{Match: match, Target: base + int(target)}
	}
	return Instruction{
		Op:          OpLookupswitch,
		Default:     base + int(def),
		LookupTable: pairs,
	}, i, nil
}
