package classfile

import (
	"bytes"
	"errors"
	"os"
	"testing"
)

func TestParseMinimalClass(t *testing.T) {
	b := newClassBuilder()
	thisClass := b.addClass("Hello")
	superClass := b.addClass("java/lang/Object")

	code := []byte{
		byte(0x04), // iconst_1
		byte(0xac), // ireturn
	}

	raw := b.build(thisClass, superClass, AccPublic|AccSuper, []method{
		{name: "run", descriptor: "()I", access: AccPublic, code: code},
	})

	cf, err := Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cf.MajorVersion != 61 {
		t.Errorf("major version: got %d, want 61", cf.MajorVersion)
	}

	name, err := cf.ClassName()
	if err != nil {
		t.Fatalf("ClassName: %v", err)
	}
	if name != "Hello" {
		t.Errorf("ClassName: got %q, want %q", name, "Hello")
	}

	super, err := cf.SuperClassName()
	if err != nil {
		t.Fatalf("SuperClassName: %v", err)
	}
	if super != "java/lang/Object" {
		t.Errorf("SuperClassName: got %q, want %q", super, "java/lang/Object")
	}

	m := cf.FindMethod("run", "()I")
	if m == nil {
		t.Fatal("method run()I not found")
	}
	if m.Code == nil {
		t.Fatal("method has no decoded Code attribute")
	}
	if m.Code.Instrs.Len() != 2 {
		t.Errorf("decoded instruction count: got %d, want 2", m.Code.Instrs.Len())
	}

	first, ok := m.Code.Instrs.At(0)
	if !ok || first.Op != OpIconst || first.Int != 1 {
		t.Errorf("first instruction: got %+v (ok=%v), want Iconst(1)", first, ok)
	}
}

func TestParseAbstractMethodHasNoCode(t *testing.T) {
	b := newClassBuilder()
	thisClass := b.addClass("AbstractThing")
	superClass := b.addClass("java/lang/Object")

	raw := b.build(thisClass, superClass, AccPublic|AccAbstract, []method{
		{name: "doIt", descriptor: "()V", access: AccPublic | AccAbstract, code: nil},
	})

	cf, err := Parse(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	m := cf.FindMethod("doIt", "()V")
	if m == nil {
		t.Fatal("method doIt()V not found")
	}
	if m.Code != nil {
		t.Error("abstract method should have no Code attribute")
	}
}

func TestParseInvalidMagic(t *testing.T) {
	f, err := os.CreateTemp("", "invalid*.class")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	defer os.Remove(f.Name())

	f.Write([]byte{0xDE, 0xAD, 0xBE, 0xEF})
	f.Close()

	r, err := os.Open(f.Name())
	if err != nil {
		t.Fatalf("opening temp file: %v", err)
	}
	defer r.Close()

	_, err = Parse(r)
	if err == nil {
		t.Error("expected error for invalid magic number, got nil")
	}
	var malformed *Malformed
	if !errors.As(err, &malformed) {
		t.Errorf("expected *Malformed, got %T: %v", err, err)
	}
}
