package vm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blade-lang/blade/internal/compiler"
	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/value"
)

func runSource(t *testing.T, src string) string {
	t.Helper()
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile(src, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	reg := module.NewRegistry()
	machine := New(reg)
	var out bytes.Buffer
	machine.Stdout = &out
	_, err := machine.Interpret(fn)
	if err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	return out.String()
}

func TestArithmeticExpression(t *testing.T) {
	got := runSource(t, "echo 1 + 2 * 3")
	if strings.TrimSpace(got) != "7" {
		t.Fatalf("expected 7, got %q", got)
	}
}

func TestLocalsAndClosures(t *testing.T) {
	got := runSource(t, `
def make_counter() {
  var n = 0
  def inc() {
    n = n + 1
    return n
  }
  return inc
}

var counter = make_counter()
counter()
counter()
echo counter()
`)
	if strings.TrimSpace(got) != "3" {
		t.Fatalf("expected 3, got %q", got)
	}
}

func TestClassInstanceMethod(t *testing.T) {
	got := runSource(t, `
class Counter {
  Counter() {
    self.n = 0
  }
  inc() {
    self.n = self.n + 1
    return self.n
  }
}

var c = Counter()
c.inc()
echo c.inc()
`)
	if strings.TrimSpace(got) != "2" {
		t.Fatalf("expected 2, got %q", got)
	}
}

func TestTryCatchHandlesRuntimeError(t *testing.T) {
	got := runSource(t, `
var caught = false
try {
  var x = nil
  x.foo()
} catch Exception as e {
  caught = true
}
echo caught
`)
	if strings.TrimSpace(got) != "true" {
		t.Fatalf("expected true, got %q", got)
	}
}

func TestStackOverflowReturnsRuntimeError(t *testing.T) {
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile(`
def recurse() {
  return recurse()
}
recurse()
`, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	reg := module.NewRegistry()
	machine := New(reg)
	_, err := machine.Interpret(fn)
	if err == nil {
		t.Fatal("expected stack overflow error")
	}
}

func TestAssignToUndeclaredGlobalRaises(t *testing.T) {
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile("undeclared_name = 1", "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	reg := module.NewRegistry()
	machine := New(reg)
	_, err := machine.Interpret(fn)
	if err == nil {
		t.Fatal("expected a runtime error assigning to an undeclared global")
	}
}

func TestListBuiltinMethods(t *testing.T) {
	got := runSource(t, `
var items = [3, 1, 2]
items.append(4)
items.sort()
echo items.length()
echo items.contains(4)
echo items.index_of(2)
`)
	want := "4\ntrue\n1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStringBuiltinMethods(t *testing.T) {
	got := runSource(t, `
var s = "  Hello World  "
echo s.trim()
echo s.trim().upper()
echo s.trim().lower()
echo s.trim().starts_with("Hello")
`)
	want := "Hello World\nHELLO WORLD\nhello world\ntrue\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDictBuiltinMethods(t *testing.T) {
	got := runSource(t, `
var d = {a: 1, b: 2}
echo d.contains("a")
echo d.get("b")
d.remove("a")
echo d.keys().length()
`)
	want := "true\n2\n1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestForInOverList(t *testing.T) {
	got := runSource(t, `
var total = 0
for item in [1, 2, 3, 4] {
  total = total + item
}
echo total
`)
	want := "10\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestClosureCounterSequence(t *testing.T) {
	got := runSource(t, `
def make() { var n = 0; def inc() { n = n + 1; return n } return inc }
var c = make(); echo c(); echo c(); echo c()
`)
	if got != "1\n2\n3\n" {
		t.Fatalf("got %q, want 1 2 3 lines", got)
	}
}

func TestMethodDispatchWithInheritance(t *testing.T) {
	got := runSource(t, `
class A { greet() { return "A" } }
class B < A { greet() { return parent.greet() + "B" } }
echo B().greet()
`)
	if got != "AB\n" {
		t.Fatalf("got %q, want %q", got, "AB\n")
	}
}

func TestForInOverDictInsertionOrder(t *testing.T) {
	got := runSource(t, `for k, v in {a:1, b:2, c:3} { echo k + "=" + v }`)
	if got != "a=1\nb=2\nc=3\n" {
		t.Fatalf("got %q, want insertion-ordered keys", got)
	}
}

func TestExceptionWithFinally(t *testing.T) {
	got := runSource(t, `
try { die Exception("boom") }
catch Exception as e { echo "caught:" + e.message }
finally { echo "done" }
`)
	if got != "caught:boom\ndone\n" {
		t.Fatalf("got %q", got)
	}
}

func TestFinallyRunsWhileExceptionPropagates(t *testing.T) {
	got := runSource(t, `
try {
  try { die Exception("inner") }
  finally { echo "cleanup" }
} catch Exception as e {
  echo "outer:" + e.message
}
`)
	if got != "cleanup\nouter:inner\n" {
		t.Fatalf("got %q, want finally before the outer catch", got)
	}
}

func TestCatchClassFilterSkipsNonMatching(t *testing.T) {
	got := runSource(t, `
try {
  try { die Exception("x") }
  catch AssertionError as e { echo "wrong handler" }
  finally { echo "first finally" }
} catch Exception as e {
  echo "matched:" + e.message
}
`)
	if got != "first finally\nmatched:x\n" {
		t.Fatalf("got %q", got)
	}
}

func TestUsingWithLiteralLabels(t *testing.T) {
	got := runSource(t, `using 2 { when 1 { echo "a" } when 2 { echo "b" } default { echo "c" } }`)
	if got != "b\n" {
		t.Fatalf("got %q, want %q", got, "b\n")
	}
}

func TestFloorDivisionAndCompound(t *testing.T) {
	got := runSource(t, `
echo 7 // 2
echo -7 // 2
var n = 9
n //= 4
echo n
`)
	if got != "3\n-4\n2\n" {
		t.Fatalf("got %q", got)
	}
}

func TestSelfPropertyFastPaths(t *testing.T) {
	got := runSource(t, `
class Counter {
  Counter() { self.n = 0 }
  bump() { self.n += 1; return self.n }
  double() { return self.bump() + self.bump() }
}
var c = Counter()
echo c.double()
echo c.n
`)
	if got != "3\n2\n" {
		t.Fatalf("got %q", got)
	}
}

func TestIterLoopWithStep(t *testing.T) {
	got := runSource(t, `
var total = 0
iter var i = 0; i < 5; i++ {
  total += i
}
echo total
`)
	if got != "10\n" {
		t.Fatalf("got %q", got)
	}
}

func TestUsingDefaultAndFallbackChain(t *testing.T) {
	got := runSource(t, `using (9) { when 1 { echo "a" } default { echo "dflt" } }`)
	if got != "dflt\n" {
		t.Fatalf("literal default: got %q", got)
	}
	got = runSource(t, `
var two = 2
using (2) { when two { echo "matched" } default { echo "no" } }
echo "after"
`)
	if got != "matched\nafter\n" {
		t.Fatalf("non-literal fallback: got %q", got)
	}
}

func TestStringInterpolationAndSlicing(t *testing.T) {
	got := runSource(t, `var s = "Hello"; echo "${s[1,4]}!"`)
	if got != "ell!\n" {
		t.Fatalf("got %q, want %q", got, "ell!\n")
	}
}

func TestRangeIterationBothDirections(t *testing.T) {
	got := runSource(t, `
for i in 2..5 { echo i }
for i in 5..2 { echo i }
for i in 3..3 { echo i }
echo "end"
`)
	if got != "2\n3\n4\n5\n4\n3\nend\n" {
		t.Fatalf("got %q", got)
	}
}

func TestNegativeIndexingAndClampedSlices(t *testing.T) {
	got := runSource(t, `
var l = [10, 20, 30]
echo l[-1]
echo "hello"[-4]
echo "hello"[1,99].length()
echo [1,2,3][2,1].length()
`)
	if got != "30\ne\n4\n0\n" {
		t.Fatalf("got %q", got)
	}
}

func TestDictMissingKeyIndexRaisesButGetReturnsNil(t *testing.T) {
	got := runSource(t, `
var d = {a: 1}
echo d.get("missing")
try { echo d["missing"] } catch KeyError { echo "raised" }
`)
	if got != "nil\nraised\n" {
		t.Fatalf("got %q", got)
	}
}

func TestArityPaddingAndParameterDefaults(t *testing.T) {
	got := runSource(t, `
def pair(a, b) { return to_string(a) + "," + to_string(b) }
echo pair(1)
def greet(name = "world") { return "hi " + name }
echo greet()
echo greet("blade")
`)
	if got != "1,nil\nhi world\nhi blade\n" {
		t.Fatalf("got %q", got)
	}
}

func TestVariadicCollectsTail(t *testing.T) {
	got := runSource(t, `
def count(first, ...rest) { return rest.length() }
echo count(1)
echo count(1, 2, 3)
`)
	if got != "0\n2\n" {
		t.Fatalf("got %q", got)
	}
}

func TestBreakAndContinueInForIn(t *testing.T) {
	got := runSource(t, `
for x in [1, 2, 3, 4, 5] {
  if (x == 2) continue
  if (x == 4) break
  echo x
}
echo "done"
`)
	if got != "1\n3\ndone\n" {
		t.Fatalf("got %q", got)
	}
}

func TestCompoundIndexAssignment(t *testing.T) {
	got := runSource(t, `
var l = [1, 2, 3]
l[0] += 10
echo l[0]
var d = {n: 5}
d["n"] += 1
echo d["n"]
`)
	if got != "11\n6\n" {
		t.Fatalf("got %q", got)
	}
}

func TestBytesStringRoundTrip(t *testing.T) {
	got := runSource(t, `
var b = bytes([104, 105])
echo b.to_string()
echo b.to_string().to_bytes().length()
`)
	if got != "hi\n2\n" {
		t.Fatalf("got %q", got)
	}
}

func TestUserClassIteratorProtocol(t *testing.T) {
	got := runSource(t, `
class Two {
  @iter(i) {
    if (i < 2) return i * 10
    return empty
  }
  @itern(k) { return k }
}
for x in Two() { echo x }
`)
	if got != "0\n10\n" {
		t.Fatalf("got %q", got)
	}
}

func TestStaticMethodsAndClassProperties(t *testing.T) {
	got := runSource(t, `
class Math {
  static var pi = 3
  static double(n) { return n * 2 }
}
echo Math.pi
echo Math.double(21)
`)
	if got != "3\n42\n" {
		t.Fatalf("got %q", got)
	}
}

func TestInterpretPreservesOutputUnderAggressiveGC(t *testing.T) {
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile(`
def make() { var n = 0; def inc() { n = n + 1; return n } return inc }
var c = make()
var words = []
for i in 0..50 {
  words.append("w" + to_string(c()))
}
echo words[49]
`, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	reg := module.NewRegistry()
	machine := NewWithGC(reg, 1) // collect at nearly every allocation
	var out bytes.Buffer
	machine.Stdout = &out
	if _, err := machine.Interpret(fn); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if out.String() != "w50\n" {
		t.Fatalf("got %q, want %q", out.String(), "w50\n")
	}
}

func TestUnhandledDieReportsClassAndMessage(t *testing.T) {
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile(`die RuntimeError("busted")`, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	machine := New(module.NewRegistry())
	_, err := machine.Interpret(fn)
	if err == nil {
		t.Fatal("expected the uncaught exception to surface")
	}
	msg := err.Error()
	if !strings.Contains(msg, "RuntimeError") || !strings.Contains(msg, "busted") {
		t.Fatalf("error %q should carry class and message", msg)
	}
}

func TestDieRejectsNonExceptionValues(t *testing.T) {
	got := runSource(t, `
try { die 42 } catch TypeError { echo "typed" }
`)
	if got != "typed\n" {
		t.Fatalf("got %q", got)
	}
}

func TestAssertRaisesAssertionError(t *testing.T) {
	got := runSource(t, `
try { assert 1 == 2, "numbers drifted" }
catch AssertionError as e { echo e.message }
`)
	if got != "numbers drifted\n" {
		t.Fatalf("got %q", got)
	}
}

func TestModuleImportRunsOnceAndExposesGlobals(t *testing.T) {
	dir := t.TempDir()
	modPath := filepath.Join(dir, "shapes.b")
	if err := os.WriteFile(modPath, []byte(`
var sides = 4
def area(w, h) { return w * h }
echo "loaded"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile(`
import shapes
echo shapes.sides
echo shapes.area(3, 5)
import shapes as again
echo again.sides
`, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	reg := module.NewRegistry(dir)
	machine := New(reg)
	machine.SetScriptPath(filepath.Join(dir, "main.b"))
	var out bytes.Buffer
	machine.Stdout = &out
	if _, err := machine.Interpret(fn); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	want := "loaded\n4\n15\n4\n"
	if out.String() != want {
		t.Fatalf("got %q, want %q (module body must run once)", out.String(), want)
	}
}

func TestFileIntrinsicWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	got := runSource(t, `
var out = file("`+path+`", "w")
out.write("persisted")
out.close()
var src = file("`+path+`")
echo src.read()
src.close()
echo src.close()
`)
	if got != "persisted\nfalse\n" {
		t.Fatalf("got %q (second close must be an idempotent false)", got)
	}
}

func TestSelectiveImportBindsChosenNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "util.b"), []byte(`
def twice(n) { return n * 2 }
var tag = "u"
`), 0o644); err != nil {
		t.Fatal(err)
	}
	mod := &value.Module{Name: "test", Path: "test", Values: value.NewTable()}
	fn, errs := compiler.Compile(`
import util { twice as dbl }
echo dbl(8)
`, "test", mod)
	if len(errs) > 0 {
		t.Fatalf("compile errors: %v", errs)
	}
	reg := module.NewRegistry(dir)
	machine := New(reg)
	machine.SetScriptPath(filepath.Join(dir, "main.b"))
	var out bytes.Buffer
	machine.Stdout = &out
	if _, err := machine.Interpret(fn); err != nil {
		t.Fatalf("runtime error: %v", err)
	}
	if out.String() != "16\n" {
		t.Fatalf("got %q", out.String())
	}
}
