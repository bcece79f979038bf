package vm

// fakePlatform is a minimal, deterministic Platform for tests: no real clock,
// no real filesystem, println captured in memory.
type fakePlatform struct {
	printed   []string
	resources map[string][]byte
	now       int64
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{resources: make(map[string][]byte)}
}

func (p *fakePlatform) Println(text string) { p.printed = append(p.printed, text) }

func (p *fakePlatform) LoadResource(name string) ([]byte, bool) {
	data, ok := p.resources[name]
	return data, ok
}

func (p *fakePlatform) Now() int64 { return p.now }

func (p *fakePlatform) Sleep(millis int64) {}

func (p *fakePlatform) Yield() {}

func (p *fakePlatform) Spawn(cb func()) { cb() }

// newTestVM returns a VM with java/lang/Object already registered as a shim
// class, the minimum every other fixture class's SuperName chain needs.
func newTestVM() *VM {
	m := NewVM(newFakePlatform())
	if _, err := m.RegisterShimClass(&ClassDef{Name: "java/lang/Object"}); err != nil {
		panic(err)
	}
	return m
}
