package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blade-lang/blade/internal/compiler"
	bladeerrors "github.com/blade-lang/blade/internal/errors"
	"github.com/blade-lang/blade/internal/value"
)

// loadNativeModule resolves an `import` of a module registered
// through internal/natives (db, socket, crypto, fmtutil, ...): the
// factory runs once per VM, and its Values table is cached for every
// later import of the same name.
func (v *VM) loadNativeModule(name string) (*value.Module, error) {
	if mod, ok := v.modules.CachedNative(name); ok {
		return mod, nil
	}
	factory, ok := v.modules.NativeFactory(name)
	if !ok {
		return nil, bladeerrors.NewImportError(fmt.Sprintf("no native module named '%s'", name), v.scriptPath, 0, 0)
	}
	mod, err := factory(v)
	if err != nil {
		return nil, bladeerrors.NewImportError(err.Error(), v.scriptPath, 0, 0)
	}
	v.gc.Track(&mod.Object, 48)
	if mod.Preload != nil {
		if err := mod.Preload(v); err != nil {
			return nil, bladeerrors.NewImportError(err.Error(), v.scriptPath, 0, 0)
		}
	}
	v.modules.CacheNative(name, mod)
	return mod, nil
}

// loadModule resolves and runs a source-level `import`, caching the
// result so a module's top-level statements run exactly once even if
// several other modules import it. Each module body executes against
// its own fresh globals table rather than the importer's, matching
// the language's per-module scope; the importer's scriptPath and try
// handlers are restored once the nested run finishes (normally or
// via an escaping exception).
func (v *VM) loadModule(name string) (*value.Module, error) {
	path, err := v.modules.Resolve(name, filepath.Dir(v.scriptPath))
	if err != nil {
		// No source file anywhere on the search path; a registered
		// native module of the same name is the last candidate.
		if _, ok := v.modules.NativeFactory(name); ok {
			return v.loadNativeModule(name)
		}
		return nil, bladeerrors.NewImportError(err.Error(), v.scriptPath, 0, 0)
	}
	if selfPath, aerr := filepath.Abs(v.scriptPath); aerr == nil && selfPath == path {
		return nil, bladeerrors.NewImportError(fmt.Sprintf("module '%s' cannot import itself", name), v.scriptPath, 0, 0)
	}
	if mod, ok := v.modules.CachedSource(path); ok {
		return mod, nil
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, bladeerrors.NewImportError(fmt.Sprintf("failed to read module '%s': %s", name, err), v.scriptPath, 0, 0)
	}

	mod := &value.Module{Name: moduleDisplayName(name), Path: path, Values: value.NewTable()}
	fn, errs := compiler.Compile(string(source), mod.Name, mod)
	if errs != nil {
		return nil, bladeerrors.NewCompileErrorList(errs, path)
	}
	v.gc.Track(&mod.Object, 48)

	// The module body's top-level names land in mod.Values through its
	// functions' module back-reference. Its run happens with the
	// importer's try handlers parked: an exception escaping a module's
	// top level surfaces to the importer as an ImportError at the
	// import site, never as a half-initialized module caught mid-body.
	prevScript := v.scriptPath
	prevHandlers := v.handlers
	v.scriptPath = path
	v.handlers = nil
	_, rerr := v.runNested(fn)
	v.scriptPath = prevScript
	v.handlers = prevHandlers
	if rerr != nil {
		return nil, bladeerrors.NewImportError(rerr.Error(), path, 0, 0)
	}

	v.modules.CacheSource(path, mod)
	return mod, nil
}

func moduleDisplayName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, ".b")
}

// Shutdown runs every loaded native module's unloader exactly once.
// Native modules are never unloaded mid-run; this is the single
// teardown point the CLI and REPL call on their way out.
func (v *VM) Shutdown() {
	v.modules.EachCached(func(m *value.Module) {
		if m.Unload != nil {
			_ = m.Unload(v)
			m.Unload = nil
		}
	})
}
