package cryptomod

import (
	"testing"

	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/value"
	"github.com/blade-lang/blade/internal/vm"
)

func TestHashAndVerifyPassword(t *testing.T) {
	machine := vm.New(module.NewRegistry())
	mod, err := Factory(machine)
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}

	hashFn, ok := mod.Values.Get(machine.NewString("hash_password"))
	if !ok {
		t.Fatal("expected hash_password to be registered")
	}
	native := hashFn.AsNative()
	hashed, err := native.Fn(machine, []value.Value{machine.NewString("s3cret")})
	if err != nil {
		t.Fatalf("hash_password error: %v", err)
	}
	if !hashed.IsString() || hashed.AsString().Chars == "s3cret" {
		t.Fatalf("expected a bcrypt hash distinct from the input, got %v", value.ToString(hashed))
	}

	verifyFn, _ := mod.Values.Get(machine.NewString("verify_password"))
	verifyNative := verifyFn.AsNative()

	ok1, err := verifyNative.Fn(machine, []value.Value{machine.NewString("s3cret"), hashed})
	if err != nil {
		t.Fatalf("verify_password error: %v", err)
	}
	if !ok1.IsBool() || !ok1.AsBool() {
		t.Fatalf("expected verify_password to succeed for the correct password")
	}

	ok2, err := verifyNative.Fn(machine, []value.Value{machine.NewString("wrong"), hashed})
	if err != nil {
		t.Fatalf("verify_password error: %v", err)
	}
	if ok2.AsBool() {
		t.Fatal("expected verify_password to fail for the wrong password")
	}
}
