package compiler

import (
	"testing"

	"github.com/kr/pretty"

	"github.com/blade-lang/blade/internal/bytecode"
	"github.com/blade-lang/blade/internal/value"
)

func compileOK(t *testing.T, src string) *value.Function {
	t.Helper()
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := Compile(src, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("unexpected compile errors: %v", errs)
	}
	return fn
}

func TestCompileSimpleArithmeticEmitsConstantsAndAdd(t *testing.T) {
	fn := compileOK(t, "1 + 2")
	found := false
	for _, b := range fn.Blob.Code {
		if bytecode.Op(b) == bytecode.OpAdd {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected OpAdd in compiled code, got %v", fn.Blob.Code)
	}
}

func TestCompileReturnOutsideFunctionIsError(t *testing.T) {
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	_, errs := Compile("return 1", "test", mod)
	if len(errs) == 0 {
		t.Fatal("expected a compile error for top-level return")
	}
}

func TestCompileCapturingFunctionEmitsClosure(t *testing.T) {
	fn := compileOK(t, `
def make_adder(a) {
  def adder(b) {
    return a + b
  }
  return adder
}
make_adder(1)
`)
	var makeAdder *value.Function
	for _, c := range fn.Blob.Constants {
		if c.IsFunction() && c.AsFunction().Name == "make_adder" {
			makeAdder = c.AsFunction()
		}
	}
	if makeAdder == nil {
		t.Fatalf("expected make_adder function constant in top-level blob, constants: %s", pretty.Sprint(fn.Blob.Constants))
	}
	foundClosure := false
	for _, b := range makeAdder.Blob.Code {
		if bytecode.Op(b) == bytecode.OpClosure {
			foundClosure = true
		}
	}
	if !foundClosure {
		t.Fatalf("expected OpClosure inside make_adder for the capturing inner function")
	}
}

func TestCompileBareCatchWithoutBinding(t *testing.T) {
	compileOK(t, `
try {
  1 / 1
} catch Exception {
  echo "caught"
}
`)
}
