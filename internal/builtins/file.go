package builtins

import (
	"io"

	"github.com/blade-lang/blade/internal/value"
)

var fileMethods = map[string]Method{
	"name": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(r.AsFile().Path), nil
	},
	"mode": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		return vm.NewString(r.AsFile().Mode), nil
	},
	"read": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		f := r.AsFile()
		if !f.Open || f.Handle == nil {
			return value.Nil, vm.RaiseError("RuntimeError", "file is closed")
		}
		data, err := io.ReadAll(f.Handle)
		if err != nil {
			return value.Nil, vm.RaiseError("RuntimeError", err.Error())
		}
		return vm.NewString(string(data)), nil
	},
	"write": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		f := r.AsFile()
		if !f.Open || f.Handle == nil {
			return value.Nil, vm.RaiseError("RuntimeError", "file is closed")
		}
		if len(a) != 1 || !a[0].IsString() {
			return argErr(vm, "write()", "1 string argument")
		}
		n, err := f.Handle.WriteString(a[0].AsString().Chars)
		if err != nil {
			return value.Nil, vm.RaiseError("RuntimeError", err.Error())
		}
		return value.Number(float64(n)), nil
	},
	"seek": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		f := r.AsFile()
		if !f.Open || f.Handle == nil {
			return value.Nil, vm.RaiseError("RuntimeError", "file is closed")
		}
		if len(a) != 2 || !a[0].IsNumber() || !a[1].IsNumber() {
			return argErr(vm, "seek()", "(offset, whence)")
		}
		pos, err := f.Handle.Seek(int64(a[0].AsNumber()), int(a[1].AsNumber()))
		if err != nil {
			return value.Nil, vm.RaiseError("RuntimeError", err.Error())
		}
		return value.Number(float64(pos)), nil
	},
	"close": func(vm value.NativeVM, r value.Value, a []value.Value) (value.Value, error) {
		f := r.AsFile()
		if f.Std || !f.Open || f.Handle == nil {
			return value.False, nil
		}
		f.Handle.Close()
		f.Open = false
		return value.True, nil
	},
}
