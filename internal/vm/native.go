package vm

import (
	bladeerrors "github.com/blade-lang/blade/internal/errors"
	"github.com/blade-lang/blade/internal/value"
)

// The methods in this file implement value.NativeVM, the sliver of VM
// behavior every native function (builtin method or natives/* module)
// is handed instead of the concrete *VM, so internal/builtins and
// internal/natives never need to import internal/vm.

func (v *VM) GCProtect(val value.Value)       { v.gc.GCProtect(val) }
func (v *VM) ClearProtection()                { v.gc.ClearProtection() }
func (v *VM) NewString(s string) value.Value  { return v.newString(s) }
func (v *VM) Track(o *value.Object, size int) { v.gc.Track(o, size) }

// RaiseError lets a native function construct a typed exception by
// class name without reaching back into the vm package's error
// taxonomy; invoke()/callNative() propagate the returned error through
// the same throwErr() unwinding path as any opcode-level failure.
func (v *VM) RaiseError(class, msg string) error {
	e := bladeerrors.NewRuntimeError(msg, v.scriptPath, 0, 0)
	e.Type = bladeerrors.ErrorType(class)
	return e
}
