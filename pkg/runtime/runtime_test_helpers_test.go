package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hearthvm/hearthvm/pkg/vm"
)

// fakePlatform is a deterministic, in-memory vm.Platform for shim tests: no
// real clock or filesystem, println captured for assertions.
type fakePlatform struct {
	printed   []string
	resources map[string][]byte
	now       int64
	slept     []int64
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

func (p *fakePlatform) Sleep(millis int64) { p.slept = append(p.slept, millis) }

func (p *fakePlatform) Yield() {}

func (p *fakePlatform) Spawn(cb func()) { go cb() }

// newTestVM builds a VM with the full shim library installed, the same way
// cmd/hearthvm wires one up minus the host filesystem classpath.
func newTestVM(t *testing.T) (*vm.VM, *fakePlatform) {
	t.Helper()
	platform := newFakePlatform()
	m := vm.NewVM(platform)
	require.NoError(t, Register(m))
	return m, platform
}

func newString(t *testing.T, m *vm.VM, s string) vm.Value {
	t.Helper()
	return m.NewString(s)
}
