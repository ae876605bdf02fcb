package module

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blade-lang/blade/internal/value"
)

func TestResolvePrefersRelativeOverSearchPath(t *testing.T) {
	rel := t.TempDir()
	stdlib := t.TempDir()
	if err := os.WriteFile(filepath.Join(rel, "util.b"), []byte("var a = 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stdlib, "util.b"), []byte("var a = 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry(stdlib)
	got, err := reg.Resolve("util", rel)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	wantPrefix, _ := filepath.Abs(rel)
	if filepath.Dir(got) != wantPrefix {
		t.Fatalf("resolved %q, want the relative candidate under %q", got, wantPrefix)
	}
}

func TestResolveDirectoryIndex(t *testing.T) {
	dir := t.TempDir()
	pkg := filepath.Join(dir, "web")
	if err := os.MkdirAll(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pkg, "index.b"), []byte("var ok = true"), 0o644); err != nil {
		t.Fatal(err)
	}
	reg := NewRegistry()
	got, err := reg.Resolve("web", dir)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if filepath.Base(got) != "index.b" {
		t.Fatalf("resolved %q, want the directory's index.b", got)
	}
}

func TestResolveMissingModuleErrors(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Resolve("no_such_module", t.TempDir()); err == nil {
		t.Fatal("expected an error for a missing module")
	}
}

func TestNativeRegistrationAndCache(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.RegisterNative("probe", func(vm value.NativeVM) (*value.Module, error) {
		calls++
		return &value.Module{Name: "probe", Path: "probe", Values: value.NewTable()}, nil
	})
	f, ok := reg.NativeFactory("probe")
	if !ok {
		t.Fatal("factory not registered")
	}
	m, err := f(nil)
	if err != nil {
		t.Fatal(err)
	}
	reg.CacheNative("probe", m)
	if cached, ok := reg.CachedNative("probe"); !ok || cached != m {
		t.Fatal("cache miss after CacheNative")
	}
	seen := 0
	reg.EachCached(func(*value.Module) { seen++ })
	if seen != 1 {
		t.Fatalf("EachCached visited %d modules, want 1", seen)
	}
}
