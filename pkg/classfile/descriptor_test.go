package classfile

import "testing"

func TestParseFieldDescriptor(t *testing.T) {
	cases := []struct {
		in   string
		kind TypeKind
	}{
		{"I", KindInt},
		{"J", KindLong},
		{"Z", KindBoolean},
		{"Ljava/lang/String;", KindObject},
		{"[I", KindArray},
		{"[[Ljava/lang/String;", KindArray},
	}
	for _, c := range cases {
		got, err := ParseFieldDescriptor(c.in)
		if err != nil {
			t.Errorf("ParseFieldDescriptor(%q): %v", c.in, err)
			continue
		}
		if got.Kind != c.kind {
			t.Errorf("ParseFieldDescriptor(%q).Kind = %v, want %v", c.in, got.Kind, c.kind)
		}
		if got.Descriptor() != c.in {
			t.Errorf("round-trip Descriptor() = %q, want %q", got.Descriptor(), c.in)
		}
	}
}

func TestParseFieldDescriptorObjectName(t *testing.T) {
	got, err := ParseFieldDescriptor("Ljava/lang/String;")
	if err != nil {
		t.Fatalf("ParseFieldDescriptor: %v", err)
	}
	if got.ClassName != "java/lang/String" {
		t.Errorf("ClassName = %q, want %q", got.ClassName, "java/lang/String")
	}
}

func TestParseFieldDescriptorArrayDims(t *testing.T) {
	got, err := ParseFieldDescriptor("[[[I")
	if err != nil {
		t.Fatalf("ParseFieldDescriptor: %v", err)
	}
	if got.Dims != 3 {
		t.Errorf("Dims = %d, want 3", got.Dims)
	}
}

func TestParseFieldDescriptorMalformed(t *testing.T) {
	cases := []string{"", "Q", "L", "Ljava/lang/String", "["}
	for _, c := range cases {
		if _, err := ParseFieldDescriptor(c); err == nil {
			t.Errorf("ParseFieldDescriptor(%q): expected error", c)
		}
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	got, err := ParseMethodDescriptor("(ILjava/lang/String;[I)V")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(got.Params) != 3 {
		t.Fatalf("param count: got %d, want 3", len(got.Params))
	}
	if got.Params[0].Kind != KindInt {
		t.Errorf("param 0 kind = %v, want KindInt", got.Params[0].Kind)
	}
	if got.Params[1].Kind != KindObject || got.Params[1].ClassName != "java/lang/String" {
		t.Errorf("param 1 = %+v", got.Params[1])
	}
	if got.Params[2].Kind != KindArray {
		t.Errorf("param 2 kind = %v, want KindArray", got.Params[2].Kind)
	}
	if got.Return.Kind != KindVoid {
		t.Errorf("return kind = %v, want KindVoid", got.Return.Kind)
	}
}

func TestParseMethodDescriptorNoParams(t *testing.T) {
	got, err := ParseMethodDescriptor("()I")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor: %v", err)
	}
	if len(got.Params) != 0 {
		t.Errorf("param count: got %d, want 0", len(got.Params))
	}
	if got.Return.Kind != KindInt {
		t.Errorf("return kind = %v, want KindInt", got.Return.Kind)
	}
}

func TestIsCategory2(t *testing.T) {
	long, _ := ParseFieldDescriptor("J")
	dbl, _ := ParseFieldDescriptor("D")
	i, _ := ParseFieldDescriptor("I")
	if !long.IsCategory2() || !dbl.IsCategory2() {
		t.Error("long/double should be category 2")
	}
	if i.IsCategory2() {
		t.Error("int should not be category 2")
	}
}
