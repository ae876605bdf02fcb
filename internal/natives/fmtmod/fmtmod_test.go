package fmtmod

import (
	"testing"

	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/value"
	"github.com/blade-lang/blade/internal/vm"
)

func TestCommaAndOrdinal(t *testing.T) {
	machine := vm.New(module.NewRegistry())
	mod, err := Factory(machine)
	if err != nil {
		t.Fatalf("factory error: %v", err)
	}

	commaFn, _ := mod.Values.Get(machine.NewString("comma"))
	result, err := commaFn.AsNative().Fn(machine, []value.Value{value.Number(1234567)})
	if err != nil {
		t.Fatalf("comma error: %v", err)
	}
	if !result.IsString() || result.AsString().Chars != "1,234,567" {
		t.Fatalf("expected 1,234,567, got %v", value.ToString(result))
	}

	ordinalFn, _ := mod.Values.Get(machine.NewString("ordinal"))
	result, err = ordinalFn.AsNative().Fn(machine, []value.Value{value.Number(2)})
	if err != nil {
		t.Fatalf("ordinal error: %v", err)
	}
	if !result.IsString() || result.AsString().Chars != "2nd" {
		t.Fatalf("expected 2nd, got %v", value.ToString(result))
	}
}
