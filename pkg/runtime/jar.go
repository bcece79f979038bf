package runtime

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/hearthvm/hearthvm/pkg/vm"
)

// init registers klauspost/compress's flate implementation as archive/zip's
// DEFLATE decompressor, per SPEC_FULL.md's domain stack wiring — the
// standard library's own flate reader works too, but the rest of this
// project's compressed-stream handling goes through klauspost/compress, so
// jar and zip entries decode through the same code path.
func init() {
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// jarProtos builds java/util/zip/* and java/util/jar/*: JarFile extends
// ZipFile the way the real JDK does, both backed by archive/zip over bytes
// the embedder's Platform.LoadResource supplies.
func jarProtos() []*vm.ClassDef {
	return []*vm.ClassDef{
		zipEntryProto(),
		zipFileProto(),
		jarEntryProto(),
		jarFileProto(),
		attributesProto(),
		manifestProto(),
		exceptionProto("java/util/zip/ZipException", "java/io/IOException"),
	}
}

// zipReaderState backs a ZipFile (or JarFile) instance's Native field.
type zipReaderState struct {
	reader   *zip.Reader
	manifest map[string]string // parsed META-INF/MANIFEST.MF main attributes, lazily filled
}

func openZipReader(m *vm.VM, this *vm.Instance, path string) error {
	var data []byte
	var ok bool
	m.Suspend(func() { data, ok = m.Platform.LoadResource(path) })
	if !ok {
		return m.Raise("java/io/FileNotFoundException", "%s", path)
	}
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return m.Raise("java/util/zip/ZipException", "%s: %v", path, err)
	}
	this.Native = &zipReaderState{reader: r}
	return nil
}

func zipFileProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/zip/ZipFile",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				path, _ := vm.StringOf(args[0].AsObject())
				if err := openZipReader(m, this, path); err != nil {
					return vm.Value{}, err
				}
				return vm.VoidValue(), nil
			}),
			method("entries", "()Ljava/util/Enumeration;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return zipEntryEnumeration(m, this, "java/util/zip/ZipEntry")
			}),
			method("getEntry", "(Ljava/lang/String;)Ljava/util/zip/ZipEntry;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				return findZipEntry(m, this, name, "java/util/zip/ZipEntry")
			}),
			method("getInputStream", "(Ljava/util/zip/ZipEntry;)Ljava/io/InputStream;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return zipEntryInputStream(m, this, args[0].AsObject())
			}),
			method("size", "()I", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				zs := this.Native.(*zipReaderState)
				return vm.IntValue(int32(len(zs.reader.File))), nil
			}),
			method("close", "()V", false, noop),
		},
	}
}

func zipEntryEnumeration(m *vm.VM, zipInst *vm.Instance, entryClassName string) (vm.Value, error) {
	zs := zipInst.Native.(*zipReaderState)
	entries := make([]vm.Value, len(zs.reader.File))
	for i, f := range zs.reader.File {
		inst, err := newZipEntry(m, f, entryClassName)
		if err != nil {
			return vm.Value{}, err
		}
		entries[i] = inst
	}
	return newEnumeration(m, entries)
}

func findZipEntry(m *vm.VM, zipInst *vm.Instance, name, entryClassName string) (vm.Value, error) {
	zs := zipInst.Native.(*zipReaderState)
	for _, f := range zs.reader.File {
		if f.Name == name {
			return newZipEntry(m, f, entryClassName)
		}
	}
	return vm.NullValue(), nil
}

func zipEntryInputStream(m *vm.VM, zipInst *vm.Instance, entryInst *vm.Instance) (vm.Value, error) {
	if entryInst == nil {
		return vm.Value{}, m.Raise("java/lang/NullPointerException", "entry")
	}
	f, _ := entryInst.Native.(*zip.File)
	if f == nil {
		return vm.Value{}, m.Raise("java/io/IOException", "entry not backed by a zip.File")
	}
	rc, err := f.Open()
	if err != nil {
		return vm.Value{}, m.Raise("java/io/IOException", "%s: %v", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return vm.Value{}, m.Raise("java/io/IOException", "%s: %v", f.Name, err)
	}
	return newByteArrayInputStream(m, data)
}

func zipEntryProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/zip/ZipEntry",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("getName", "()Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				f := this.Native.(*zip.File)
				return m.NewString(f.Name), nil
			}),
			method("getSize", "()J", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				f := this.Native.(*zip.File)
				return vm.LongValue(int64(f.UncompressedSize64)), nil
			}),
			method("isDirectory", "()Z", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				f := this.Native.(*zip.File)
				return vm.BooleanValue(strings.HasSuffix(f.Name, "/")), nil
			}),
		},
	}
}

func newZipEntry(m *vm.VM, f *zip.File, className string) (vm.Value, error) {
	inst, err := m.InstantiateClass(className)
	if err != nil {
		return vm.Value{}, err
	}
	inst.Native = f
	return vm.ObjectValue(inst), nil
}

func jarEntryProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/jar/JarEntry",
		SuperName: "java/util/zip/ZipEntry",
	}
}

func jarFileProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/jar/JarFile",
		SuperName: "java/util/zip/ZipFile",
		Methods: []vm.MethodDef{
			method("<init>", "(Ljava/lang/String;)V", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				path, _ := vm.StringOf(args[0].AsObject())
				if err := openZipReader(m, this, path); err != nil {
					return vm.Value{}, err
				}
				return vm.VoidValue(), nil
			}),
			method("entries", "()Ljava/util/Enumeration;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				return zipEntryEnumeration(m, this, "java/util/jar/JarEntry")
			}),
			method("getJarEntry", "(Ljava/lang/String;)Ljava/util/jar/JarEntry;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				return findZipEntry(m, this, name, "java/util/jar/JarEntry")
			}),
			method("getManifest", "()Ljava/util/jar/Manifest;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				zs := this.Native.(*zipReaderState)
				if zs.manifest == nil {
					attrs, err := parseManifest(zs)
					if err != nil {
						return vm.Value{}, err
					}
					zs.manifest = attrs
				}
				mf, err := m.InstantiateClass("java/util/jar/Manifest")
				if err != nil {
					return vm.Value{}, err
				}
				mf.Native = zs.manifest
				return vm.ObjectValue(mf), nil
			}),
		},
	}
}

// parseManifest extracts the key: value pairs of META-INF/MANIFEST.MF, per
// the JAR spec's line-folding format (a continuation line begins with a
// single space). Sections are not told apart: pairs from every section land
// in one map, and a later key overwrites an earlier one of the same name.
func parseManifest(zs *zipReaderState) (map[string]string, error) {
	attrs := map[string]string{}
	for _, f := range zs.reader.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
		var key string
		for _, line := range lines {
			if strings.HasPrefix(line, " ") && key != "" {
				attrs[key] += strings.TrimPrefix(line, " ")
				continue
			}
			idx := strings.Index(line, ": ")
			if idx < 0 {
				key = ""
				continue
			}
			key = line[:idx]
			attrs[key] = line[idx+2:]
		}
		break
	}
	return attrs, nil
}

func manifestProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/jar/Manifest",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("getMainAttributes", "()Ljava/util/jar/Attributes;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				attrs, _ := this.Native.(map[string]string)
				inst, err := m.InstantiateClass("java/util/jar/Attributes")
				if err != nil {
					return vm.Value{}, err
				}
				inst.Native = attrs
				return vm.ObjectValue(inst), nil
			}),
		},
	}
}

func attributesProto() *vm.ClassDef {
	return &vm.ClassDef{
		Name:      "java/util/jar/Attributes",
		SuperName: "java/lang/Object",
		Methods: []vm.MethodDef{
			method("getValue", "(Ljava/lang/String;)Ljava/lang/String;", false, func(m *vm.VM, this *vm.Instance, args []vm.Value) (vm.Value, error) {
				name, _ := vm.StringOf(args[0].AsObject())
				attrs, _ := this.Native.(map[string]string)
				v, ok := attrs[name]
				if !ok {
					return vm.NullValue(), nil
				}
				return m.NewString(v), nil
			}),
		},
	}
}
