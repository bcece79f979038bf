package classfile

// Malformed reports a class-file or opcode decode failure. Per spec, decode
// failures never partially commit a class: the caller receives either a
// fully-formed ClassFile or a Malformed error, never a half-built one.
type Malformed struct{ Reason string }

func (e *Malformed) Error() string { return "malformed class file: " + e.Reason }

// MalformedDescriptor reports a failure to parse a field or method descriptor
// string.
type MalformedDescriptor struct{ Descriptor string }

func (e *MalformedDescriptor) Error() string {
	return "malformed descriptor: " + e.Descriptor
}
