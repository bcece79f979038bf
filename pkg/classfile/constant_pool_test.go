package classfile

import (
	"bytes"
	"testing"
)

func TestPoolResolveReference(t *testing.T) {
	b := newClassBuilder()
	ref := b.addMethodref("java/lang/Object", "hashCode", "()I")

	parsed, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}

	resolved, err := parsed.ResolveReference(ref)
	if err != nil {
		t.Fatalf("ResolveReference: %v", err)
	}
	if resolved.Owner != "java/lang/Object" || resolved.Name != "hashCode" || resolved.Descriptor != "()I" {
		t.Errorf("ResolveReference: got %+v", resolved)
	}
}

func TestPoolIndexOutOfRange(t *testing.T) {
	b := newClassBuilder()
	b.addUtf8("x")
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	if _, err := pool.At(99); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestPoolTypeMismatch(t *testing.T) {
	b := newClassBuilder()
	idx := b.addUtf8("not a class")
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	if _, err := pool.ClassName(idx); err == nil {
		t.Error("expected type mismatch error resolving Utf8 as Class")
	}
}

func TestLongOccupiesTwoSlots(t *testing.T) {
	b := newClassBuilder()
	longIdx := b.intern(append([]byte{TagLong}, 0, 0, 0, 0, 0, 0, 0, 42))
	b.intern(nil) // the phantom second slot a long occupies
	afterLong := b.addUtf8("after")
	pool, err := parsePoolFromEntries(b.pool)
	if err != nil {
		t.Fatalf("parsePoolFromEntries: %v", err)
	}
	item, err := pool.At(longIdx)
	if err != nil {
		t.Fatalf("At(long): %v", err)
	}
	if l, ok := item.(*Long); !ok || l.Value != 42 {
		t.Errorf("At(long) = %#v, want Long(42)", item)
	}
	if _, err := pool.At(longIdx + 1); err == nil {
		t.Error("the phantom slot after a long must not resolve")
	}
	s, err := pool.Utf8At(afterLong)
	if err != nil {
		t.Fatalf("Utf8At: %v", err)
	}
	if s != "after" {
		t.Errorf("got %q, want %q", s, "after")
	}
}

// parsePoolFromEntries wraps parsePool for tests that only want to feed
// already-built wire-form pool entries, bypassing the full class-file header.
func parsePoolFromEntries(entries [][]byte) (Pool, error) {
	var buf []byte
	for i := 1; i < len(entries); i++ {
		buf = append(buf, entries[i]...)
	}
	return parsePool(bytes.NewReader(buf), uint16(len(entries)))
}
