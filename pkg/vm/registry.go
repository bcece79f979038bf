package vm

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/hearthvm/hearthvm/pkg/classfile"
)

// ClassNotFound propagates as NoClassDefFoundError when it reaches bytecode
// (spec.md §7); at the embedder boundary it surfaces as a plain Go error.
type ClassNotFound struct{ Name string }

func (e *ClassNotFound) Error() string { return "class not found: " + e.Name }

// ClassSource is a bootstrap class source: a name -> raw bytes lookup,
// spec.md §4.6's "function name -> Option<raw class bytes>". Sources are
// tried in registration order, mirroring the teacher's UserClassLoader's
// parent-first delegation (pkg/vm/classloader.go in the prior revision of
// this tree) generalized from a fixed two-level chain into an ordered list.
type ClassSource func(name string) ([]byte, bool)

// registry is the class-table half of VM: the delegating resolution chain,
// mirror lifecycle, and the reader-writer discipline spec.md §5 requires
// ("permit concurrent readers with exclusive writers... every registry write
// is serialized against all other writes").
type registry struct {
	mu      sync.RWMutex
	classes map[string]*Class
	sources []ClassSource

	// userLoaders are bytecode java/lang/ClassLoader instances registered via
	// AddUserLoader, consulted in registration order once every bootstrap
	// source has declined (spec.md §4.6's resolution algorithm: parent —
	// here, the bootstrap sources — asked first, then each local loader).
	userLoaders []*Instance

	mirrorOf      map[*Instance]*Class
	pendingMirror []*Class
}

func newRegistry() *registry {
	return &registry{
		classes:  make(map[string]*Class),
		mirrorOf: make(map[*Instance]*Class),
	}
}

// AddClassSource registers a bootstrap class source. Sources are consulted
// in the order added when resolving a name not already registered.
func (vm *VM) AddClassSource(src ClassSource) {
	vm.reg.mu.Lock()
	defer vm.reg.mu.Unlock()
	vm.reg.sources = append(vm.reg.sources, src)
}

// AddUserLoader registers a bytecode java/lang/ClassLoader instance into
// ResolveClass's resolution chain (spec.md §4.6: "zero or more user loader
// instances, each itself a bytecode object... implement findClass(name) ->
// Class... the registry calls them by virtual dispatch"). loader must
// already be constructed (its <init> run) by the caller. Loaders are tried
// in registration order after every bootstrap source has declined.
func (vm *VM) AddUserLoader(loader *Instance) {
	vm.reg.mu.Lock()
	defer vm.reg.mu.Unlock()
	vm.reg.userLoaders = append(vm.reg.userLoaders, loader)
}

// registerClass installs an already-built Class directly, bypassing
// decode — the path RegisterBootstrapClasses uses for shim classes, and
// array-class synthesis uses for "[I"-style names.
func (vm *VM) registerClass(c *Class) {
	vm.reg.mu.Lock()
	vm.reg.classes[c.Def.Name] = c
	vm.reg.mu.Unlock()
	vm.onClassRegistered(c)
}

// onClassRegistered materializes any mirrors that were deferred waiting for
// java/lang/Class to become available (spec.md §4.6: "classes registered
// before the mirror class can retroactively receive their mirror").
func (vm *VM) onClassRegistered(c *Class) {
	if c.Def.Name != "java/lang/Class" {
		return
	}
	vm.reg.mu.Lock()
	pending := vm.reg.pendingMirror
	vm.reg.pendingMirror = nil
	vm.reg.mu.Unlock()
	for _, pc := range pending {
		if _, err := vm.JavaClass(pc); err != nil {
			vm.log.WithError(err).WithField("class", pc.Def.Name).
				Warn("failed to materialize deferred mirror")
		}
	}
}

// lookupClass returns an already-registered class without attempting
// resolution.
func (vm *VM) lookupClass(name string) (*Class, bool) {
	vm.reg.mu.RLock()
	defer vm.reg.mu.RUnlock()
	c, ok := vm.reg.classes[name]
	return c, ok
}

// ResolveClass implements spec.md §4.6's resolution algorithm in full:
// already registered, then array synthesis, then each bootstrap class
// source in order (ResolveBootstrapClass covers these first three steps —
// the "parent" of every user loader, asked first per the parent-first
// rule), and only once every bootstrap source has declined does each
// registered user ClassLoader instance get a turn, by virtual dispatch to
// its findClass.
func (vm *VM) ResolveClass(name string) (*Class, error) {
	c, err := vm.ResolveBootstrapClass(name)
	if err == nil {
		return c, nil
	}
	if _, notFound := err.(*ClassNotFound); !notFound {
		return nil, err
	}

	vm.reg.mu.RLock()
	loaders := append([]*Instance(nil), vm.reg.userLoaders...)
	vm.reg.mu.RUnlock()

	for _, loader := range loaders {
		c, err := vm.resolveViaUserLoader(loader, name)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}
	}
	return nil, &ClassNotFound{Name: name}
}

// ResolveBootstrapClass covers spec.md §4.6's resolution steps 1–3:
// already registered, array synthesis, then each bootstrap ClassSource in
// registration order. It never consults a user loader, so a shim's findClass
// body that falls back to "the VM's own bootstrap chain"
// (rustjava/ClassPathClassLoader.findClass, pkg/runtime/classpath.go) calls
// this directly rather than ResolveClass, which would otherwise dispatch
// straight back into the same loader and recurse forever.
func (vm *VM) ResolveBootstrapClass(name string) (*Class, error) {
	if c, ok := vm.lookupClass(name); ok {
		return c, nil
	}
	if elemDesc, ok := elementDescriptorOf(name); ok {
		return vm.resolveArrayClass(name, elemDesc)
	}

	vm.reg.mu.RLock()
	sources := append([]ClassSource(nil), vm.reg.sources...)
	vm.reg.mu.RUnlock()

	for _, src := range sources {
		raw, found := src(name)
		if !found {
			continue
		}
		cf, err := classfile.Parse(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		return vm.registerFromClassFile(cf)
	}
	return nil, &ClassNotFound{Name: name}
}

// resolveViaUserLoader asks loader to resolve name by virtual dispatch to
// findClass, the entry point spec.md §4.6 names. A thrown
// ClassNotFoundException (or any other Java-level throwable) means this
// loader declined, so the next loader — or the ultimate ClassNotFound —
// gets a turn; a non-Throwable Go error (an interpreter bug) still
// propagates. On success the resolved Class is tagged with loader's id.
func (vm *VM) resolveViaUserLoader(loader *Instance, name string) (*Class, error) {
	arg := vm.NewString(name)
	ret, err := vm.InvokeVirtual(loader, "findClass", "(Ljava/lang/String;)Ljava/lang/Class;", []Value{arg})
	if err != nil {
		if _, ok := err.(*Throwable); ok {
			return nil, nil
		}
		return nil, err
	}
	if ret.IsNull() {
		return nil, nil
	}
	c, ok := vm.ClassOfMirror(ret.Obj)
	if !ok {
		return nil, nil
	}
	c.loaderTag = loader.ID()
	return c, nil
}

// DefineClass decodes raw class bytes and registers the result directly,
// bypassing the ClassSource chain — the path a user ClassLoader's
// findClass uses once it has located bytes itself (spec.md §4.6's "user
// loaders implement findClass(name) -> Class... by virtual dispatch").
// expectedName is checked against the decoded class's own name so a caller
// can catch a mismatched file without inspecting the result.
func (vm *VM) DefineClass(expectedName string, raw []byte) (*Class, error) {
	if c, ok := vm.lookupClass(expectedName); ok {
		return c, nil
	}
	cf, err := classfile.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("defining %s: %w", expectedName, err)
	}
	c, err := vm.registerFromClassFile(cf)
	if err != nil {
		return nil, err
	}
	if c.Def.Name != expectedName {
		return nil, fmt.Errorf("defining %s: decoded class is named %s", expectedName, c.Def.Name)
	}
	return c, nil
}

// registerFromClassFile turns a decoded class file into a registered Class,
// resolving its superclass and interfaces first (spec.md §3's invariant:
// "every non-root class references a superclass that is also registered").
func (vm *VM) registerFromClassFile(cf *classfile.ClassFile) (*Class, error) {
	name, err := cf.ClassName()
	if err != nil {
		return nil, err
	}
	if c, ok := vm.lookupClass(name); ok {
		return c, nil
	}

	def := &ClassDef{
		Name:        name,
		IsInterface: cf.IsInterface(),
		Pool:        cf.Pool,
	}

	var super *Class
	superName, _ := cf.SuperClassName()
	if superName != "" {
		super, err = vm.ResolveClass(superName)
		if err != nil {
			return nil, fmt.Errorf("resolving superclass %s of %s: %w", superName, name, err)
		}
		def.SuperName = superName
	}

	ifaceNames, _ := cf.InterfaceNames()
	for _, ifn := range ifaceNames {
		if _, err := vm.ResolveClass(ifn); err != nil {
			return nil, fmt.Errorf("resolving interface %s of %s: %w", ifn, name, err)
		}
		def.Interfaces = append(def.Interfaces, ifn)
	}

	for _, f := range cf.Fields {
		def.Fields = append(def.Fields, FieldDef{
			Name:       f.Name,
			Descriptor: f.Descriptor,
			Static:     f.AccessFlags&classfile.AccStatic != 0,
			Access:     f.AccessFlags,
			Constant:   f.ConstantValue,
		})
	}
	for _, m := range cf.Methods {
		def.Methods = append(def.Methods, MethodDef{
			Name:       m.Name,
			Descriptor: m.Descriptor,
			Static:     m.AccessFlags&classfile.AccStatic != 0,
			Abstract:   m.AccessFlags&classfile.AccAbstract != 0,
			Access:     m.AccessFlags,
			Code:       m.Code,
		})
	}

	c := &Class{Def: def, Super: super, StaticFields: make(map[fieldKey]Value)}
	for _, f := range def.Fields {
		if f.Static {
			c.StaticFields[fieldKey{Name: f.Name, Descriptor: f.Descriptor}] = vm.defaultStaticValue(f)
		}
	}
	vm.registerClass(c)
	vm.log.WithField("class", name).Debug("registered class")
	return c, nil
}

func (vm *VM) defaultStaticValue(f FieldDef) Value {
	if f.Constant == nil {
		return DefaultValue(kindOfDescriptor(f.Descriptor))
	}
	switch f.Constant.Kind {
	case classfile.ConstantValueInt:
		return IntValue(f.Constant.Int)
	case classfile.ConstantValueLong:
		return LongValue(f.Constant.Long)
	case classfile.ConstantValueFloat:
		return FloatValue(f.Constant.Float)
	case classfile.ConstantValueDouble:
		return DoubleValue(f.Constant.Double)
	case classfile.ConstantValueString:
		// Only the shim bootstrap registers classes before java/lang/String
		// exists, and none of those carry String constants; any later class
		// gets its constant materialized right away.
		if _, ok := vm.lookupClass("java/lang/String"); ok {
			return vm.NewString(f.Constant.String)
		}
		return NullValue()
	default:
		return DefaultValue(kindOfDescriptor(f.Descriptor))
	}
}

// RegisterShimClass installs a shim class definition (spec.md §4.8): a class
// whose methods are host-native callbacks rather than bytecode. Its
// superclass, if any, must already be registered — shim libraries install
// class definitions in dependency order, java/lang/Object first.
func (vm *VM) RegisterShimClass(def *ClassDef) (*Class, error) {
	var super *Class
	if def.SuperName != "" {
		var err error
		super, err = vm.ResolveClass(def.SuperName)
		if err != nil {
			return nil, fmt.Errorf("registering shim class %s: %w", def.Name, err)
		}
	}
	c := &Class{Def: def, Super: super, StaticFields: make(map[fieldKey]Value)}
	for _, f := range def.Fields {
		if f.Static {
			c.StaticFields[fieldKey{Name: f.Name, Descriptor: f.Descriptor}] = vm.defaultStaticValue(f)
		}
	}
	vm.registerClass(c)
	return c, nil
}

// RegisterBootstrapClasses installs a batch of shim class definitions in
// order, the embedder-facing bulk form of RegisterShimClass. Definitions must
// arrive in dependency order (a SuperName before its subclasses).
func (vm *VM) RegisterBootstrapClasses(defs []*ClassDef) error {
	for _, def := range defs {
		if _, err := vm.RegisterShimClass(def); err != nil {
			return err
		}
	}
	return nil
}

// resolveArrayClass synthesizes the array class named by name (e.g. "[I",
// "[Ljava/lang/Object;"), per spec.md §4.6: "superclass is java/lang/Object,
// method table empty beyond inherited methods". An array class exists iff
// its element class exists (spec.md §3); for object arrays this recursively
// resolves the element class first.
func (vm *VM) resolveArrayClass(name, elemDescriptor string) (*Class, error) {
	objectClass, err := vm.ResolveClass("java/lang/Object")
	if err != nil {
		return nil, fmt.Errorf("resolving array class %s: %w", name, err)
	}

	elemKind := kindOfDescriptor(elemDescriptor)
	var elemClassName string
	if elemKind == KindObject {
		ft, err := classfile.ParseFieldDescriptor(elemDescriptor)
		if err != nil {
			return nil, fmt.Errorf("resolving array class %s: %w", name, err)
		}
		if ft.Kind == classfile.KindObject {
			elemClassName = ft.ClassName
		} else {
			elemClassName = elemDescriptor
		}
		if _, err := vm.ResolveClass(elemClassName); err != nil {
			return nil, fmt.Errorf("resolving element class of %s: %w", name, err)
		}
	}

	def := &ClassDef{
		Name:      name,
		SuperName: "java/lang/Object",
		IsArray:   true,
		ElemKind:  elemKind,
		ElemClass: elemClassName,
	}
	c := &Class{Def: def, Super: objectClass, StaticFields: make(map[fieldKey]Value)}
	vm.registerClass(c)
	return c, nil
}

// JavaClass returns (creating and caching on first call) the java/lang/Class
// mirror for c. If java/lang/Class itself is not yet registered, the request
// is deferred and retried automatically once it is (see onClassRegistered).
func (vm *VM) JavaClass(c *Class) (*Instance, error) {
	if c.mirror != nil {
		return c.mirror, nil
	}
	classClass, ok := vm.lookupClass("java/lang/Class")
	if !ok {
		vm.reg.mu.Lock()
		vm.reg.pendingMirror = append(vm.reg.pendingMirror, c)
		vm.reg.mu.Unlock()
		return nil, nil
	}
	inst := NewInstance(classClass)
	c.mirror = inst
	vm.reg.mu.Lock()
	vm.reg.mirrorOf[inst] = c
	vm.reg.mu.Unlock()
	return inst, nil
}

// ClassOfMirror recovers the Class a java/lang/Class instance mirrors —
// the back-edge spec.md §9 calls out as "a lookup, not ownership".
func (vm *VM) ClassOfMirror(mirror *Instance) (*Class, bool) {
	vm.reg.mu.RLock()
	defer vm.reg.mu.RUnlock()
	c, ok := vm.reg.mirrorOf[mirror]
	return c, ok
}
