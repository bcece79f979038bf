package main

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hearthvm/hearthvm/pkg/vm"
)

// classpath resolves resource and class bytes across an ordered list of
// roots, each either a directory or a .jar/.zip archive — the host-side
// counterpart of the VM's class source chain and Platform.LoadResource.
type classpath struct {
	roots []string
}

func newClasspath(roots []string) *classpath {
	return &classpath{roots: roots}
}

// Load looks up name (a resource path, e.g. "com/example/Foo.class") across
// every root in order, first match wins.
func (c *classpath) Load(name string) ([]byte, bool) {
	for _, root := range c.roots {
		if data, ok := loadFrom(root, name); ok {
			return data, true
		}
	}
	return nil, false
}

func loadFrom(root, name string) ([]byte, bool) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, false
	}
	if info.IsDir() {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			return nil, false
		}
		return data, true
	}
	if !strings.HasSuffix(strings.ToLower(root), ".jar") && !strings.HasSuffix(strings.ToLower(root), ".zip") {
		return nil, false
	}
	r, err := zip.OpenReader(root)
	if err != nil {
		return nil, false
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, false
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

// ClassSource adapts the classpath into a vm.ClassSource: "Foo/Bar" ->
// "Foo/Bar.class".
func (c *classpath) ClassSource() vm.ClassSource {
	return func(name string) ([]byte, bool) {
		return c.Load(name + ".class")
	}
}

// hostPlatform is the CLI's vm.Platform implementation: stdout for
// PrintStream, the classpath for getResourceAsStream-style lookups, and the
// real wall clock / scheduler for everything else.
type hostPlatform struct {
	cp *classpath
}

func newHostPlatform(cp *classpath) *hostPlatform { return &hostPlatform{cp: cp} }

func (p *hostPlatform) Println(text string) { fmt.Println(text) }

func (p *hostPlatform) LoadResource(name string) ([]byte, bool) { return p.cp.Load(name) }

func (p *hostPlatform) Now() int64 { return time.Now().UnixMilli() }

func (p *hostPlatform) Sleep(millis int64) { time.Sleep(time.Duration(millis) * time.Millisecond) }

func (p *hostPlatform) Yield() { runtime.Gosched() }

func (p *hostPlatform) Spawn(cb func()) { go cb() }
