// Package cryptomod is the `crypto` native module: a thin
// golang.org/x/crypto/bcrypt wrapper, exposed via the native-function
// ABI rather than a class since password hashing needs no persistent
// receiver.
package cryptomod

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/blade-lang/blade/internal/natives/nativeutil"
	"github.com/blade-lang/blade/internal/value"
)

func Factory(vm value.NativeVM) (*value.Module, error) {
	values := value.NewTable()
	values.Set(vm.NewString("hash_password"), nativeutil.NativeFunc(vm, "hash_password", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 1 || !argv[0].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "hash_password() expects a string")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(argv[0].AsString().Chars), bcrypt.DefaultCost)
		if err != nil {
			return value.Nil, nv.RaiseError("RuntimeError", err.Error())
		}
		return nv.NewString(string(hash)), nil
	}))
	values.Set(vm.NewString("verify_password"), nativeutil.NativeFunc(vm, "verify_password", func(nv value.NativeVM, argv []value.Value) (value.Value, error) {
		if len(argv) != 2 || !argv[0].IsString() || !argv[1].IsString() {
			return value.Nil, nv.RaiseError("ArgumentError", "verify_password() expects (password, hash)")
		}
		err := bcrypt.CompareHashAndPassword([]byte(argv[1].AsString().Chars), []byte(argv[0].AsString().Chars))
		return value.Bool(err == nil), nil
	}))
	return &value.Module{Name: "crypto", Path: "crypto", Values: values}, nil
}
