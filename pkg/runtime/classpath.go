package runtime

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/hearthvm/hearthvm/pkg/vm"
)

// classpathProtos builds the rustjava/* namespace: shim classes with no real
// JDK counterpart that bridge the host's classpath configuration into
// bytecode-visible java/lang/ClassLoader and java/net/URL objects. Grounded
// on original_source's ClassPathClassLoader and ClassPathEntry (the Rust
// original's bridge between a list of directory/jar roots and JVM-visible
// class resolution, plus its "backdoor" addClassFile/addJarFile ingestion
// pair for classes supplied directly as bytes rather than discovered via a
// filesystem root).
func classpathProtos() []*vm.ClassDef {
	return []*vm.ClassDef{
		classPathEntryProto(),
		classPathClassLoaderProto(),
		urlProto(),
		byteArrayURLHandlerProto(),
	}
}

// classPathEntryProto is original_source's rustjava/ClassPathEntry: a named
// byte blob added to a ClassPathClassLoader one file (addClassFile) or one
// whole jar (addJarFile) at a time.
func classPathEntryProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "rustjava/ClassPathEntry",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "(Ljava/lang/String;[B)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				buf, ok := vm.AsArray(args[1].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "ClassPathEntry(String, byte[])")
				}
				data, _ := buf.LoadByteArray()
				this.Native = &classPathEntry{name: name, data: data}
				return vm.VoidValue(), nil
			}),
			method("getName", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				e := this.Native.(*classPathEntry)
				return m.NewString(e.name), nil
			}),
		},
	}
}

// classPathEntry is the Go-side payload a rustjava/ClassPathEntry instance
// carries in its Native field.
type classPathEntry struct {
	name string
	data []byte
}

// classPathState backs a ClassPathClassLoader instance: the entries
// addClassFile/addJarFile have accumulated. findClass searches them before
// falling back to the VM's own bootstrap ClassSource chain (registered via
// vm.AddClassSource at embed time, typically one entry per --classpath
// directory/jar in cmd/hearthvm); findResource searches only these entries
// and returns null when none matches.
type classPathState struct {
	entries []*classPathEntry
}

func classPathClassLoaderProto() *vm.ClassDef {
	newEntry := func(m *vm.VM, this *vm.Instance, name string, data []byte) {
		st, _ := this.Native.(*classPathState)
		if st == nil {
			st = &classPathState{}
			this.Native = st
		}
		st.entries = append(st.entries, &classPathEntry{name: name, data: data})
	}
	return &vm.ClassDef{
		Name:      "rustjava/ClassPathClassLoader",
		SuperName: "java/lang/ClassLoader",
		Methods: []vm.MethodDef{
			method("<init>", "()V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				this.Native = &classPathState{}
				return vm.VoidValue(), nil
			}),
			// findClass first consults any classes added via addClassFile/
			// addJarFile, then falls back to the VM's bootstrap ClassSource
			// chain (the simpler path cmd/hearthvm's --classpath wiring uses
			// for classes discovered straight from disk).
			method("findClass", "(Ljava/lang/String;)Ljava/lang/Class;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				internal := internalName(name)
				if st, ok := this.Native.(*classPathState); ok {
					fileName := internal + ".class"
					for _, e := range st.entries {
						if e.name == fileName {
							c, err := m.DefineClass(internal, e.data)
							if err != nil {
								return vm.Value{}, m.Raise("java/lang/ClassNotFoundException", "%s", name)
							}
							mirror, merr := m.JavaClass(c)
							if merr != nil {
								return vm.Value{}, merr
							}
							return vm.ObjectValue(mirror), nil
						}
					}
				}
				// Falls back to the VM's bootstrap ClassSource chain only —
				// not the full ResolveClass, which would dispatch straight
				// back into this very findClass and recurse forever.
				c, err := m.ResolveBootstrapClass(internal)
				if err != nil {
					return vm.Value{}, m.Raise("java/lang/ClassNotFoundException", "%s", name)
				}
				mirror, err := m.JavaClass(c)
				if err != nil {
					return vm.Value{}, err
				}
				return vm.ObjectValue(mirror), nil
			}),
			method("findResource", "(Ljava/lang/String;)Ljava/net/URL;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				st, ok := this.Native.(*classPathState)
				if !ok {
					return vm.NullValue(), nil
				}
				for _, e := range st.entries {
					if e.name != name {
						continue
					}
					return wrapByteArrayURL(m, name, e.data)
				}
				return vm.NullValue(), nil
			}),
			// addClassFile is original_source's "backdoor to add classes to
			// loader" since there is no real classpath discovery yet for
			// loader-local entries (the VM-level ClassSource chain is the
			// faster path; this one stays bytecode-addressable, the way a
			// user ClassLoader subclass built on top of this one would use
			// it to stage classes it downloaded or generated on the fly).
			method("addClassFile", "(Ljava/lang/String;[B)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				buf, ok := vm.AsArray(args[1].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "addClassFile: data")
				}
				data, _ := buf.LoadByteArray()
				newEntry(m, this, name, data)
				return vm.VoidValue(), nil
			}),
			// addJarFile unpacks a whole jar's central directory into
			// entries and returns the Main-Class manifest attribute, per
			// original_source's add_jar_file.
			method("addJarFile", "([B)Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				buf, ok := vm.AsArray(args[0].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "addJarFile: data")
				}
				data, _ := buf.LoadByteArray()
				r, zerr := zip.NewReader(bytes.NewReader(data), int64(len(data)))
				if zerr != nil {
					return vm.Value{}, m.Raise("java/util/zip/ZipException", "%v", zerr)
				}
				var mainClass string
				for _, f := range r.File {
					if f.FileInfo().IsDir() {
						continue
					}
					rc, oerr := f.Open()
					if oerr != nil {
						return vm.Value{}, m.Raise("java/io/IOException", "%s: %v", f.Name, oerr)
					}
					content, rerr := io.ReadAll(rc)
					rc.Close()
					if rerr != nil {
						return vm.Value{}, m.Raise("java/io/IOException", "%s: %v", f.Name, rerr)
					}
					newEntry(m, this, f.Name, content)
					if f.Name == "META-INF/MANIFEST.MF" {
						mainClass = mainClassFromManifest(content)
					}
				}
				return m.NewString(mainClass), nil
			}),
		},
	}
}

// mainClassFromManifest reads the Main-Class: line out of a raw
// META-INF/MANIFEST.MF blob. It is a simpler scan than jar.go's
// parseManifest: it returns the first Main-Class: line, trimmed, and does
// not join continuation lines.
func mainClassFromManifest(data []byte) string {
	for _, line := range strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n") {
		if rest, ok := strings.CutPrefix(line, "Main-Class: "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// wrapByteArrayURL instantiates java/net/URL directly over data, sharing the
// urlState plumbing byteArrayURLHandlerProto's wrap() establishes for
// bytecode-visible callers.
func wrapByteArrayURL(m *vm.VM, name string, data []byte) (vm.Value, error) {
	inst, err := m.InstantiateClass("java/net/URL")
	if err != nil {
		return vm.Value{}, err
	}
	inst.Native = &urlState{spec: name, data: data}
	return vm.ObjectValue(inst), nil
}

// urlState backs a java/net/URL instance: either a plain spec string (for
// informational toString/getPath use) or in-memory byte content served by
// ByteArrayURLHandler.
type urlState struct {
	spec string
	data []byte
}

func urlProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/net/URL",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				spec, _ := vm.StringOf(args[0].AsObject())
				this.Native = &urlState{spec: spec}
				return vm.VoidValue(), nil
			}),
			method("toString", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				us, _ := this.Native.(*urlState)
				if us == nil {
					return m.NewString(""), nil
				}
				return m.NewString(us.spec), nil
			}),
			method("openStream", "()Ljava/io/InputStream;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				us, _ := this.Native.(*urlState)
				if us != nil && us.data != nil {
					return newByteArrayInputStream(m, us.data)
				}
				if us == nil {
					return vm.Value{}, m.Raise("java/io/IOException", "URL not initialized")
				}
				var data []byte
				var ok bool
				m.Suspend(func() { data, ok = m.Platform.LoadResource(us.spec) })
				if !ok {
					return vm.Value{}, m.Raise("java/io/FileNotFoundException", "%s", us.spec)
				}
				return newByteArrayInputStream(m, data)
			}),
		},
	}
}

// byteArrayURLHandlerProto models a URL backed directly by in-memory bytes —
// the shape ClassPathEntry resolution produces for a class pulled out of a
// jar already read into memory, avoiding a second host filesystem round trip
// to serve the same bytes back out through openStream().
func byteArrayURLHandlerProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "rustjava/ByteArrayURLHandler",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("wrap", "(Ljava/lang/String;[B)Ljava/net/URL;", true, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				spec, _ := vm.StringOf(args[0].AsObject())
				buf, ok := vm.AsArray(args[1].AsObject())
				if !ok {
					return vm.Value{}, m.Raise("java/lang/NullPointerException", "wrap: data")
				}
				data, _ := buf.LoadByteArray()
				inst, err := m.InstantiateClass("java/net/URL")
				if err != nil {
					return vm.Value{}, err
				}
				inst.Native = &urlState{spec: spec, data: data}
				return vm.ObjectValue(inst), nil
			}),
		},
	}
}
