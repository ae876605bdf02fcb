// Package module implements the registry side of Blade's module ABI:
// resolving an import path to a source file on disk, and the
// native-module factory table internal/natives registers concrete
// drivers (database/sql, gorilla/websocket, bcrypt, ...) against.
// Compiling and executing a resolved source file stays in internal/vm,
// which is the only package that can run bytecode; Registry only
// resolves paths and caches the result.
package module

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blade-lang/blade/internal/value"
)

// NativeFactory builds a native module's exported Values table once,
// the first time it's imported; vm.loadNativeModule caches the result
// for the life of the VM.
type NativeFactory func(vm value.NativeVM) (*value.Module, error)

// Registry owns the native-module factory table and the source-module
// search path/cache. A fresh Registry has no native modules registered
// and, unless given search paths, resolves imports only relative to the
// importing file; cmd/blade wires in internal/natives before
// constructing the VM.
type Registry struct {
	mu          sync.Mutex
	natives     map[string]NativeFactory
	nativeCache map[string]*value.Module
	sourceCache map[string]*value.Module
	searchPaths []string
}

func NewRegistry(searchPaths ...string) *Registry {
	return &Registry{
		natives:     make(map[string]NativeFactory),
		nativeCache: make(map[string]*value.Module),
		sourceCache: make(map[string]*value.Module),
		searchPaths: searchPaths,
	}
}

// RegisterNative adds a native module under name (e.g. "db", "socket",
// "crypto", "fmtutil"); internal/natives calls this once per driver it
// wraps.
func (r *Registry) RegisterNative(name string, factory NativeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.natives[name] = factory
}

func (r *Registry) AddSearchPath(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchPaths = append(r.searchPaths, path)
}

// NativeFactory returns the registered factory for name, if any.
func (r *Registry) NativeFactory(name string) (NativeFactory, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.natives[name]
	return f, ok
}

// CachedNative/CacheNative and CachedSource/CacheSource let the VM
// memoize an already-loaded module across repeated `import`s of the
// same path within one run.
func (r *Registry) CachedNative(name string) (*value.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.nativeCache[name]
	return m, ok
}

func (r *Registry) CacheNative(name string, m *value.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nativeCache[name] = m
}

// EachCached visits every currently loaded module, native and source.
// The VM's GC root scan walks these so a cached module (and everything
// its Values table reaches) survives collection even after its global
// binding is overwritten; shutdown uses the same walk to run native
// unloaders exactly once.
func (r *Registry) EachCached(fn func(*value.Module)) {
	r.mu.Lock()
	mods := make([]*value.Module, 0, len(r.nativeCache)+len(r.sourceCache))
	for _, m := range r.nativeCache {
		mods = append(mods, m)
	}
	for _, m := range r.sourceCache {
		mods = append(mods, m)
	}
	r.mu.Unlock()
	for _, m := range mods {
		fn(m)
	}
}

func (r *Registry) CachedSource(path string) (*value.Module, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sourceCache[path]
	return m, ok
}

func (r *Registry) CacheSource(path string, m *value.Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sourceCache[path] = m
}

// Resolve finds the source file a source-level `import "name"` refers
// to: a direct ".b" file relative to fromDir, a directory's
// "index.b", or the same two candidates down every registered search
// path, in order (relative imports always win over stdlib-root ones).
func (r *Registry) Resolve(name, fromDir string) (string, error) {
	candidates := []string{
		filepath.Join(fromDir, name+".b"),
		filepath.Join(fromDir, name, "index.b"),
	}
	r.mu.Lock()
	paths := append([]string{}, r.searchPaths...)
	r.mu.Unlock()
	for _, dir := range paths {
		candidates = append(candidates,
			filepath.Join(dir, name+".b"),
			filepath.Join(dir, name, "index.b"),
		)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(c)
			if err != nil {
				return c, nil
			}
			return abs, nil
		}
	}
	return "", fmt.Errorf("module '%s' not found", name)
}
