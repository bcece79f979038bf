package classfile

import "testing"

func TestDecodeCanonicalizesShortForms(t *testing.T) {
	b := newClassBuilder()
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}

	code := []byte{0x2a, 0x1a, 0x04, 0xac} // aload_0, iload_0, iconst_1, ireturn
	decoded, err := DecodeCode(code, pool)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	if decoded.Len() != 4 {
		t.Fatalf("instruction count: got %d, want 4", decoded.Len())
	}

	want := []struct {
		op  Op
		idx int
	}{
		{OpAload, 0},
		{OpIload, 0},
		{OpIconst, 1},
		{OpIreturn, 0},
	}
	offset := 0
	for i, w := range want {
		instr, ok := decoded.At(offset)
		if !ok {
			t.Fatalf("instruction %d: no decoded instruction at offset %d", i, offset)
		}
		if instr.Op != w.op {
			t.Errorf("instruction %d: op = %v, want %v", i, instr.Op, w.op)
		}
		switch w.op {
		case OpAload, OpIload:
			if instr.Var != w.idx {
				t.Errorf("instruction %d: Var = %d, want %d", i, instr.Var, w.idx)
			}
		case OpIconst:
			if int(instr.Int) != w.idx {
				t.Errorf("instruction %d: Int = %d, want %d", i, instr.Int, w.idx)
			}
		}
		next, ok := decoded.Next(offset)
		if i < len(want)-1 {
			if !ok {
				t.Fatalf("instruction %d: expected a next instruction", i)
			}
			offset = next
		}
	}
}

func TestDecodeResolvesReferencesAtDecodeTime(t *testing.T) {
	b := newClassBuilder()
	ref := b.addMethodref("Helper", "add", "(II)I")
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}

	code := make([]byte, 0, 3)
	code = append(code, 0xb8) // invokestatic
	code = append(code, byte(ref>>8), byte(ref))

	decoded, err := DecodeCode(code, pool)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	instr, ok := decoded.At(0)
	if !ok {
		t.Fatal("no instruction at offset 0")
	}
	if instr.Op != OpInvokestatic {
		t.Fatalf("op = %v, want OpInvokestatic", instr.Op)
	}
	if instr.Ref.Owner != "Helper" || instr.Ref.Name != "add" || instr.Ref.Descriptor != "(II)I" {
		t.Errorf("resolved reference = %+v", instr.Ref)
	}
}

func TestDecodeGotoComputesAbsoluteTarget(t *testing.T) {
	b := newClassBuilder()
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	// at offset 0: goto +3 -> target offset 3
	code := []byte{0xa7, 0x00, 0x03, 0x00}
	decoded, err := DecodeCode(code, pool)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	instr, ok := decoded.At(0)
	if !ok {
		t.Fatal("no instruction at offset 0")
	}
	if instr.Target != 3 {
		t.Errorf("Target = %d, want 3", instr.Target)
	}
}

func TestDecodeGotoWComputesAbsoluteTarget(t *testing.T) {
	b := newClassBuilder()
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	// at offset 0: goto_w +5 -> target offset 5
	code := []byte{0xc8, 0x00, 0x00, 0x00, 0x05, 0x00}
	decoded, err := DecodeCode(code, pool)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	instr, ok := decoded.At(0)
	if !ok {
		t.Fatal("no instruction at offset 0")
	}
	if instr.Op != OpGoto {
		t.Fatalf("op = %v, want OpGoto", instr.Op)
	}
	if instr.Target != 5 {
		t.Errorf("Target = %d, want 5", instr.Target)
	}
}

func TestDecodeUnknownOpcodeIsMalformed(t *testing.T) {
	b := newClassBuilder()
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	_, err = DecodeCode([]byte{0xff}, pool) // 0xff is unassigned
	if err == nil {
		t.Fatal("expected error for unknown opcode")
	}
}

func TestDecodeWidePrefixExtendsImmediate(t *testing.T) {
	b := newClassBuilder()
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	// wide iload 300
	code := []byte{0xc4, 0x15, 0x01, 0x2c}
	decoded, err := DecodeCode(code, pool)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	if decoded.Len() != 1 {
		t.Fatalf("instruction count: got %d, want 1", decoded.Len())
	}
	instr, ok := decoded.At(0)
	if !ok {
		t.Fatal("no instruction at offset 0 (wide prefix should key the combined instruction)")
	}
	if instr.Op != OpIload || instr.Var != 300 {
		t.Errorf("got %+v, want Iload(300)", instr)
	}
}

func TestDecodeTableswitchAlignment(t *testing.T) {
	b := newClassBuilder()
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	// tableswitch at offset 1 (after a 1-byte nop), so padding to 4-byte
	// alignment from offset 2 needs 2 pad bytes.
	var code []byte
	code = append(code, 0x00) // nop, offset 0
	// tableswitch opcode at offset 1; operand block starts at offset 2,
	// needs padding to offset 4
	code = append(code, 0xaa)
	code = append(code, 0x00, 0x00) // 2 pad bytes
	code = append(code, 0x00, 0x00, 0x00, 0x0a) // default = +10 -> target 11
	code = append(code, 0x00, 0x00, 0x00, 0x00) // low = 0
	code = append(code, 0x00, 0x00, 0x00, 0x01) // high = 1
	code = append(code, 0x00, 0x00, 0x00, 0x0b) // table[0] = +11 -> target 12
	code = append(code, 0x00, 0x00, 0x00, 0x0c) // table[1] = +12 -> target 13

	decoded, err := DecodeCode(code, pool)
	if err != nil {
		t.Fatalf("DecodeCode: %v", err)
	}
	instr, ok := decoded.At(1)
	if !ok {
		t.Fatal("no instruction at offset 1")
	}
	if instr.Op != OpTableswitch {
		t.Fatalf("op = %v, want OpTableswitch", instr.Op)
	}
	if instr.Default != 11 {
		t.Errorf("Default = %d, want 11", instr.Default)
	}
	if len(instr.JumpTable) != 2 || instr.JumpTable[0] != 12 || instr.JumpTable[1] != 13 {
		t.Errorf("JumpTable = %v, want [12 13]", instr.JumpTable)
	}
}
