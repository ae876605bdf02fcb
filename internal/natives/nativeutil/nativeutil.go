// Package nativeutil is the shared scaffolding every concrete native
// module (dbmod, socketmod, cryptomod, fmtmod) builds its class
// descriptors and instances on top of: a tiny class builder mirroring
// what OpClass/OpMethod assemble for script-defined classes, plus
// Foreign-pointer and ok/error result helpers.
package nativeutil

import (
	"github.com/blade-lang/blade/internal/value"
	"github.com/google/uuid"
)

// ClassBuilder accumulates native methods and field defaults for a
// native class descriptor.
type ClassBuilder struct {
	vm      value.NativeVM
	name    string
	methods *value.Table
	fields  *value.Table
}

func NewClass(vm value.NativeVM, name string) *ClassBuilder {
	return &ClassBuilder{vm: vm, name: name, methods: value.NewTable(), fields: value.NewTable()}
}

// Method registers a NativeMethodKind entry: GET_PROPERTY on an
// instance of this class binds it to a BoundMethod exactly like a
// script method, and the VM's callNativeMethod threads the receiver in
// as the Go function's first argument.
func (cb *ClassBuilder) Method(name string, fn value.NativeFn) *ClassBuilder {
	n := &value.Native{Name: name, Kind: value.NativeMethodKind, Fn: fn}
	cb.vm.Track(&n.Object, 32)
	cb.methods.Set(cb.vm.NewString(name), value.Obj(&n.Object))
	return cb
}

func (cb *ClassBuilder) Field(name string, v value.Value) *ClassBuilder {
	cb.fields.Set(cb.vm.NewString(name), v)
	return cb
}

func (cb *ClassBuilder) Build() *value.Class {
	cls := &value.Class{
		Name:          cb.name,
		Fields:        cb.fields,
		StaticFields:  value.NewTable(),
		Methods:       cb.methods,
		StaticMethods: value.NewTable(),
	}
	cb.vm.Track(&cls.Object, 128)
	return cls
}

// NewInstance allocates an Instance of cls, seeding props over the
// class's field defaults — the same order `instantiate` in
// internal/vm/frames.go follows, mirrored here since native modules
// build their own instances without going through OpCall/OpClass.
func NewInstance(vm value.NativeVM, cls *value.Class, props map[string]value.Value) value.Value {
	inst := &value.Instance{Class: cls, Properties: value.NewTable()}
	inst.Properties.AddAll(cls.Fields)
	for k, v := range props {
		inst.Properties.Set(vm.NewString(k), v)
	}
	vm.Track(&inst.Object, 48)
	return value.Obj(&inst.Object)
}

// NewForeign wraps an opaque Go resource (a *sql.DB, a *websocket.Conn)
// so the GC's sweep phase runs destroy once the owning instance becomes
// unreachable.
func NewForeign(vm value.NativeVM, tag string, ptr interface{}, destroy func(interface{})) value.Value {
	f := &value.Foreign{Tag: tag, Ptr: ptr, Destroy: destroy}
	vm.Track(&f.Object, 16)
	return value.Obj(&f.Object)
}

// NewID stamps a resource with a fresh UUID, the opaque-but-comparable
// identity open connections/sockets carry for logging and debugging.
func NewID(vm value.NativeVM) value.Value {
	return vm.NewString(uuid.NewString())
}

// ErrResult and OkResult build ok/error-shaped instances: I/O failures
// from a native module surface as a return value (an instance with
// ok/error fields) rather than an exception, unless they're programmer
// errors (bad arity, wrong types), which still raise via vm.RaiseError
// at the call site.
func ErrResult(vm value.NativeVM, cls *value.Class, msg string) value.Value {
	return NewInstance(vm, cls, map[string]value.Value{
		"ok":    value.False,
		"error": vm.NewString(msg),
	})
}

func OkResult(vm value.NativeVM, cls *value.Class, fields map[string]value.Value) value.Value {
	fields["ok"] = value.True
	fields["error"] = value.Nil
	return NewInstance(vm, cls, fields)
}

func NativeFunc(vm value.NativeVM, name string, fn value.NativeFn) value.Value {
	n := &value.Native{Name: name, Kind: value.NativeFunctionKind, Fn: fn}
	vm.Track(&n.Object, 32)
	return value.Obj(&n.Object)
}
