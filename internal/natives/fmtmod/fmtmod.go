// Package fmtmod is the `fmtutil` native module: small pure
// value-formatting helpers built on github.com/dustin/go-humanize, a
// real fit for a dependency that otherwise has no home in the core —
// a scripting language's stdlib commonly ships exactly this kind of
// "bytes(n)"/"comma(n)"/"ordinal(n)" helper set.
package fmtmod

import (
	"github.com/dustin/go-humanize"

	"github.com/blade-lang/blade/internal/natives/nativeutil"
	"github.com/blade-lang/blade/internal/value"
)

func Factory(vm value.NativeVM) (*value.Module, error) {
	values := value.NewTable()
	values.Set(vm.NewString("bytes"), nativeutil.NativeFunc(vm, "bytes", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 || !argv[0].IsNumber() {
			return value.Nil, nv.RaiseError("ArgumentError", "bytes() expects a number")
		}
		return nv.NewString(humanize.Bytes(uint64(argv[0].AsNumber()))), nil
	}))
	values.Set(vm.NewString("comma"), nativeutil.NativeFunc(vm, "comma", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 || !argv[0].IsNumber() {
			return value.Nil, nv.RaiseError("ArgumentError", "comma() expects a number")
		}
		return nv.NewString(humanize.Comma(int64(argv[0].AsNumber()))), nil
	}))
	values.Set(vm.NewString("ordinal"), nativeutil.NativeFunc(vm, "ordinal", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 || !argv[0].IsNumber() {
			return value.Nil, nv.RaiseError("ArgumentError", "ordinal() expects a number")
		}
		return nv.NewString(humanize.Ordinal(int(argv[0].AsNumber()))), nil
	}))
	return &value.Module{Name: "fmtutil", Path: "fmtutil", Values: values}, nil
}
