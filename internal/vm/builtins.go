package vm

import (
	"github.com/blade-lang/blade/internal/builtins"
	"github.com/blade-lang/blade/internal/value"
)

// callBuiltinMethod dispatches a method call against one of the
// builtin value kinds (list/dict/string/bytes/range/file) through
// internal/builtins. ok is false when the receiver's type has no such
// method, letting invoke() fall back to its own "no such method"
// error.
func (v *VM) callBuiltinMethod(receiver value.Value, name string, argc int) (value.Value, error, bool) {
	m, ok := builtins.Lookup(receiver, name)
	if !ok {
		return value.Nil, nil, false
	}
	args := make([]value.Value, argc)
	copy(args, v.stack[v.sp-argc:v.sp])
	result, err := m(v, receiver, args)
	return result, err, true
}

// bindBuiltinMethod reifies a builtin-table method read off a value as
// a property (rather than invoked directly): the result is a
// BoundMethod pairing the receiver with a method-kind Native, so the
// receiver stays visible to the collector and callNativeMethod threads
// it back in as the Go function's first argument at call time.
func (v *VM) bindBuiltinMethod(receiver value.Value, name string) (value.Value, bool) {
	m, ok := builtins.Lookup(receiver, name)
	if !ok {
		return value.Nil, false
	}
	n := &value.Native{Name: name, Kind: value.NativeMethodKind, Fn: func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		return m(nv, argv[0], argv[1:])
	}}
	v.gc.Track(&n.Object, 32)
	bm := &value.BoundMethod{Receiver: receiver, Method: value.Obj(&n.Object)}
	v.gc.Track(&bm.Object, 32)
	return value.Obj(&bm.Object), true
}
