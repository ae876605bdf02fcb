// Package builtins implements the per-type method tables every
// builtin value (list, dict, string, bytes, range, file) answers
// OP_INVOKE with, plus the @iter/@itern iterator-protocol methods the
// compiler's for-in desugaring calls on every iterable.
package builtins

import "github.com/blade-lang/blade/internal/value"

// Method is the shape every builtin method call takes: the receiver
// (already known to be the right concrete type by Lookup's dispatch),
// plus the argument values already popped off the VM's stack.
type Method func(vm value.NativeVM, receiver value.Value, args []value.Value) (value.Value, error)

// Lookup finds the method table for receiver's concrete type and
// returns the named entry, if any. invoke() in internal/vm falls back
// to a "no such method" runtime error when ok is false.
func Lookup(receiver value.Value, name string) (Method, bool) {
	var table map[string]Method
	switch {
	case receiver.IsList():
		table = listMethods
	case receiver.IsDict():
		table = dictMethods
	case receiver.IsString():
		table = stringMethods
	case receiver.IsBytes():
		table = bytesMethods
	case receiver.IsRange():
		table = rangeMethods
	case receiver.IsFile():
		table = fileMethods
	default:
		return nil, false
	}
	m, ok := table[name]
	return m, ok
}

func argErr(vm value.NativeVM, method, want string) (value.Value, error) {
	return value.Nil, vm.RaiseError("ArgumentError", method+" expects "+want)
}
