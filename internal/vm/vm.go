// Package vm implements Blade's stack-based bytecode interpreter: the
// dispatch loop, call frames, the string intern table, and the GC root
// set the tracing collector walks every cycle.
package vm

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/blade-lang/blade/internal/bytecode"
	bladeerrors "github.com/blade-lang/blade/internal/errors"
	"github.com/blade-lang/blade/internal/gc"
	"github.com/blade-lang/blade/internal/module"
	"github.com/blade-lang/blade/internal/value"
)

const maxFrames = 1024

// frame is one activation record: which closure is executing, the
// instruction pointer into its Blob, and where its locals begin in
// the shared value stack.
type frame struct {
	closure  *value.Closure
	ip       int
	slotBase int
}

// tryHandler is one registered try/catch/finally region; FrameIndex
// and StackDepth record where to unwind to if an exception is raised
// while this handler is active.
type tryHandler struct {
	classNameIdx int
	catchIP      int
	finallyIP    int
	frameIndex   int
	stackDepth   int
	hasClassIdx  bool
	hasCatch     bool
}

// VM owns the value stack, call frames, globals, and the intern table;
// it implements gc.Roots so the collector can find every live
// reference, and value.NativeVM so native module functions can call
// back into it safely.
type VM struct {
	stack   []value.Value
	sp      int
	frames  []frame
	globals *value.Table
	strings *value.Table // intern table: String Value -> itself (via key)

	openUpvalues *value.Upvalue // sorted by descending stack index

	gc      *gc.Collector
	modules *module.Registry

	handlers []tryHandler
	// pending is an in-flight exception routed through a finally block
	// whose handler had no matching catch; PUBLISH_TRY resumes its
	// unwinding once the finally code completes.
	pending    value.Value
	hasPending bool

	Stdout io.Writer
	Stderr io.Writer

	scriptPath string
	lastError  *bladeerrors.BladeError

	// Trace backs the CLI's -j flag: when set, run() writes one line per
	// dispatched opcode (frame depth, ip, opcode, stack depth) to Stderr.
	Trace bool
}

func New(modules *module.Registry) *VM {
	return NewWithGC(modules, 0)
}

// NewWithGC is New with an explicit minimum-heap-before-first-collection
// size, backing the CLI's -g flag.
func NewWithGC(modules *module.Registry, minHeapBytes int64) *VM {
	v := &VM{
		stack:   make([]value.Value, maxStack),
		globals: value.NewTable(),
		strings: value.NewTable(),
		gc:      gc.New(minHeapBytes),
		modules: modules,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}
	v.gc.SetRoots(v)
	registerCoreGlobals(v)
	return v
}

// maxStack is fixed rather than grown on demand: open upvalues hold raw
// *Value pointers into v.stack, which a reallocating grow would
// invalidate. A script that overflows this hits a runtime stack
// overflow error instead of OOM-ing an ever-growing slice.
const maxStack = 1 << 16

func (v *VM) push(val value.Value) {
	if v.sp >= len(v.stack) {
		panic(stackOverflow{})
	}
	v.stack[v.sp] = val
	v.sp++
}

// stackOverflow is recovered at the top of run() and reported as a
// normal runtime error rather than crashing the embedding host.
type stackOverflow struct{}

func (v *VM) pop() value.Value {
	v.sp--
	return v.stack[v.sp]
}

func (v *VM) peek(distance int) value.Value {
	return v.stack[v.sp-1-distance]
}

func (v *VM) curFrame() *frame { return &v.frames[len(v.frames)-1] }

// moduleValues is where a frame's module-level names live: the values
// table of the function's owning module, with the VM-wide globals as
// the fallback for functions compiled without one.
func (v *VM) moduleValues(fr *frame) *value.Table {
	if m := fr.closure.Fn.Module; m != nil && m.Values != nil {
		return m.Values
	}
	return v.globals
}

// SetScriptPath records the file a top-level script was loaded from,
// used for error locations and resolving relative imports.
func (v *VM) SetScriptPath(path string) { v.scriptPath = path }

// Interpret runs a freshly compiled top-level function to completion
// and returns the value its top frame returns. The compiler ends every
// script with an implicit `return nil` and pops the value of each
// expression statement, so for a compiled script the result is nil.
func (v *VM) Interpret(fn *value.Function) (result value.Value, err error) {
	v.handlers = v.handlers[:0]
	v.hasPending = false
	v.pending = value.Nil
	closure := &value.Closure{Fn: fn}
	v.gc.Track(&closure.Object, 64)
	v.sp = 0
	v.frames = v.frames[:0]
	v.openUpvalues = nil
	v.push(value.Obj(&closure.Object))
	v.frames = append(v.frames, frame{closure: closure, slotBase: 0})
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stackOverflow); ok {
				err = v.runtimeErr("stack overflow")
				result = value.Nil
			} else {
				panic(r)
			}
		}
		v.sp = 0
		v.frames = v.frames[:0]
		v.openUpvalues = nil
	}()
	return v.run(0)
}

// runNested executes fn in a fresh frame pushed on top of the current
// call stack and runs the dispatch loop until that frame (and only
// that frame) returns. Module bodies use this so importing a module
// mid-script doesn't re-enter run() at floor 0 and double-drive the
// importer's own frames.
func (v *VM) runNested(fn *value.Function) (result value.Value, err error) {
	closure := &value.Closure{Fn: fn}
	v.gc.Track(&closure.Object, 64)
	base := v.sp
	floor := len(v.frames)
	v.push(value.Obj(&closure.Object))
	v.frames = append(v.frames, frame{closure: closure, slotBase: base})
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(stackOverflow); ok {
				err = v.runtimeErr("stack overflow")
				result = value.Nil
			} else {
				panic(r)
			}
		}
		// The caller's stack must come back exactly as it was: the
		// nested body's callee slot and anything it left behind are
		// torn down here, not by the dispatch loop's floor return.
		v.closeUpvalues(base)
		v.sp = base
		v.frames = v.frames[:floor]
	}()
	return v.run(floor)
}

// run is the opcode dispatch loop. floor is the frame-stack depth that
// signals completion: 0 for the top-level script, or the depth
// captured by runNested for a module body running inside it.
func (v *VM) run(floor int) (value.Value, error) {
	for {
		fr := v.curFrame()
		blob := fr.closure.Fn.Blob
		if fr.ip >= len(blob.Code) {
			return value.Nil, nil
		}
		op := bytecode.Op(blob.Code[fr.ip])
		fr.ip++

		if v.Trace {
			fmt.Fprintf(v.Stderr, "frame=%d ip=%04d op=%-18s sp=%d\n", len(v.frames)-1, fr.ip-1, op.String(), v.sp)
		}

		switch op {
		case bytecode.OpConstant:
			idx := v.readU16()
			v.push(blob.Constants[idx])

		case bytecode.OpNil:
			v.push(value.Nil)
		case bytecode.OpTrue:
			v.push(value.True)
		case bytecode.OpFalse:
			v.push(value.False)
		case bytecode.OpEmpty:
			v.push(value.Empty)
		case bytecode.OpOne:
			v.push(value.Number(1))

		case bytecode.OpAdd:
			if err := v.binaryAdd(); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpSub:
			if err := v.numericBinary(func(a, b float64) float64 { return a - b }); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpMul:
			if err := v.binaryMul(); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpDiv:
			if err := v.numericBinary(func(a, b float64) float64 { return a / b }); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpFloorDivide:
			if err := v.numericBinary(func(a, b float64) float64 { return math.Floor(a / b) }); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpReminder:
			if err := v.numericBinary(math.Mod); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpPow:
			if err := v.numericBinary(math.Pow); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpNegate:
			if !v.peek(0).IsNumber() {
				if handled, herr := v.throwErr(v.runtimeErr("operand must be a number")); !handled {
					return value.Nil, herr
				}
				continue
			}
			v.push(value.Number(-v.pop().AsNumber()))

		case bytecode.OpBitAnd:
			v.intBinary(func(a, b int64) int64 { return a & b })
		case bytecode.OpBitOr:
			v.intBinary(func(a, b int64) int64 { return a | b })
		case bytecode.OpBitXor:
			v.intBinary(func(a, b int64) int64 { return a ^ b })
		case bytecode.OpLShift:
			v.intBinary(func(a, b int64) int64 { return a << uint(b) })
		case bytecode.OpRShift:
			v.intBinary(func(a, b int64) int64 { return a >> uint(b) })
		case bytecode.OpBitNot:
			v.push(value.Number(float64(^int64(v.pop().AsNumber()))))

		case bytecode.OpEqual:
			b := v.pop()
			a := v.pop()
			v.push(value.Bool(value.Equal(a, b)))
		case bytecode.OpGreater:
			if err := v.comparison(func(a, b float64) bool { return a > b }); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpLess:
			if err := v.comparison(func(a, b float64) bool { return a < b }); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpNot:
			v.push(value.Bool(value.IsFalsey(v.pop())))

		case bytecode.OpPop:
			v.pop()
		case bytecode.OpPopN:
			n := blob.Code[fr.ip]
			fr.ip++
			v.sp -= int(n)
		case bytecode.OpDup:
			v.push(v.peek(0))
		case bytecode.OpCloseUpvalue:
			v.closeUpvalues(v.sp - 1)
			v.pop()

		case bytecode.OpJump:
			off := v.readU16()
			fr.ip += int(off)
		case bytecode.OpJumpIfFalse:
			off := v.readU16()
			if value.IsFalsey(v.peek(0)) {
				fr.ip += int(off)
			}
		case bytecode.OpLoop:
			off := v.readU16()
			fr.ip -= int(off)
		case bytecode.OpBreakPlaceholder:
			off := v.readU16()
			fr.ip += int(off)

		case bytecode.OpDefineGlobal:
			idx := v.readU16()
			name := blob.Constants[idx].AsString()
			v.moduleValues(fr).Set(v.internedKey(name), v.pop())
		case bytecode.OpGetGlobal:
			idx := v.readU16()
			name := blob.Constants[idx].AsString()
			key := v.internedKey(name)
			// Module global first, then the process-wide table holding
			// the core natives and the Exception hierarchy.
			val, ok := v.moduleValues(fr).Get(key)
			if !ok {
				val, ok = v.globals.Get(key)
			}
			if !ok {
				if handled, herr := v.throwErr(v.runtimeErr(fmt.Sprintf("undefined global '%s'", name.Chars))); !handled {
					return value.Nil, herr
				}
				continue
			}
			v.push(val)
		case bytecode.OpSetGlobal:
			idx := v.readU16()
			name := blob.Constants[idx].AsString()
			key := v.internedKey(name)
			mv := v.moduleValues(fr)
			if _, ok := mv.Get(key); ok {
				mv.Set(key, v.peek(0))
			} else if _, ok := v.globals.Get(key); ok {
				v.globals.Set(key, v.peek(0))
			} else {
				if handled, herr := v.throwErr(v.runtimeErr(fmt.Sprintf("undefined global '%s'", name.Chars))); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpGetLocal:
			slot := blob.Code[fr.ip]
			fr.ip++
			v.push(v.stack[fr.slotBase+int(slot)])
		case bytecode.OpSetLocal:
			slot := blob.Code[fr.ip]
			fr.ip++
			v.stack[fr.slotBase+int(slot)] = v.peek(0)
		case bytecode.OpGetUpvalue:
			slot := blob.Code[fr.ip]
			fr.ip++
			v.push(*fr.closure.Upvalues[slot].Location)
		case bytecode.OpSetUpvalue:
			slot := blob.Code[fr.ip]
			fr.ip++
			*fr.closure.Upvalues[slot].Location = v.peek(0)
		case bytecode.OpGetProperty:
			idx := v.readU16()
			if err := v.getProperty(blob.Constants[idx].AsString()); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpSetProperty:
			idx := v.readU16()
			if err := v.setProperty(blob.Constants[idx].AsString()); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpGetSelfProperty:
			idx := v.readU16()
			self := v.stack[fr.slotBase]
			v.push(self)
			if err := v.getProperty(blob.Constants[idx].AsString()); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}

		case bytecode.OpCall:
			argc := int(blob.Code[fr.ip])
			fr.ip++
			if err := v.callValue(v.peek(argc), argc); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpInvoke:
			idx := v.readU16()
			argc := int(blob.Code[fr.ip])
			fr.ip++
			if err := v.invoke(blob.Constants[idx].AsString(), argc); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpInvokeSelf:
			idx := v.readU16()
			argc := int(blob.Code[fr.ip])
			fr.ip++
			self := v.stack[fr.slotBase]
			v.stack[v.sp-argc-1] = self
			if err := v.invoke(blob.Constants[idx].AsString(), argc); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpSuperInvoke:
			idx := v.readU16()
			argc := int(blob.Code[fr.ip])
			fr.ip++
			parent := v.pop()
			if err := v.invokeFromClass(parent.AsClass(), blob.Constants[idx].AsString(), argc); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpSuperInvokeSelf:
			idx := v.readU16()
			argc := int(blob.Code[fr.ip])
			fr.ip++
			parent := v.pop()
			self := v.stack[fr.slotBase]
			v.stack[v.sp-argc-1] = self
			if err := v.invokeFromClass(parent.AsClass(), blob.Constants[idx].AsString(), argc); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpReturn:
			result := v.pop()
			v.closeUpvalues(fr.slotBase)
			finishedBase := fr.slotBase
			poppedIndex := len(v.frames) - 1
			v.frames = v.frames[:len(v.frames)-1]
			for len(v.handlers) > 0 && v.handlers[len(v.handlers)-1].frameIndex >= poppedIndex {
				v.handlers = v.handlers[:len(v.handlers)-1]
			}
			if len(v.frames) == floor {
				return result, nil
			}
			v.sp = finishedBase
			v.push(result)

		case bytecode.OpClosure:
			idx := v.readU16()
			fn := blob.Constants[idx].AsFunction()
			cl := &value.Closure{Fn: fn}
			v.gc.Track(&cl.Object, 64)
			cl.Upvalues = make([]*value.Upvalue, fn.UpvalCount)
			for i := 0; i < fn.UpvalCount; i++ {
				isLocal := blob.Code[fr.ip]
				fr.ip++
				index := blob.Code[fr.ip]
				fr.ip++
				if isLocal == 1 {
					cl.Upvalues[i] = v.captureUpvalue(fr.slotBase + int(index))
				} else {
					cl.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
			v.push(value.Obj(&cl.Object))

		case bytecode.OpClass:
			idx := v.readU16()
			name := blob.Constants[idx].AsString()
			cls := &value.Class{Name: name.Chars, Fields: value.NewTable(), StaticFields: value.NewTable(), Methods: value.NewTable(), StaticMethods: value.NewTable()}
			v.gc.Track(&cls.Object, 128)
			v.push(value.Obj(&cls.Object))
		case bytecode.OpInherit:
			sub := v.peek(0)
			parent := v.peek(1)
			if !parent.IsClass() {
				if handled, herr := v.throwErr(v.runtimeErr("parent must be a class")); !handled {
					return value.Nil, herr
				}
				continue
			}
			subCls := sub.AsClass()
			parentCls := parent.AsClass()
			subCls.Super = parentCls
			subCls.Methods.AddAll(parentCls.Methods)
			subCls.StaticMethods.AddAll(parentCls.StaticMethods)
			subCls.Fields.AddAll(parentCls.Fields)
			// Construction falls back to the parent's initializer until
			// (unless) the subclass installs its own via OpMethod.
			subCls.Initializer = parentCls.Initializer
		case bytecode.OpMethod:
			idx := v.readU16()
			static := blob.Code[fr.ip] == 1
			fr.ip++
			name := blob.Constants[idx].AsString()
			methodVal := v.pop()
			cls := v.peek(0).AsClass()
			if static {
				cls.StaticMethods.Set(v.internedKey(name), methodVal)
			} else {
				if name.Chars == cls.Name {
					cls.Initializer = methodVal
				}
				cls.Methods.Set(v.internedKey(name), methodVal)
			}
		case bytecode.OpClassProperty:
			idx := v.readU16()
			static := blob.Code[fr.ip] == 1
			fr.ip++
			name := blob.Constants[idx].AsString()
			val := v.pop()
			cls := v.peek(0).AsClass()
			if static {
				cls.StaticFields.Set(v.internedKey(name), val)
			} else {
				cls.Fields.Set(v.internedKey(name), val)
			}
		case bytecode.OpGetSuper:
			idx := v.readU16()
			parent := v.pop().AsClass()
			name := blob.Constants[idx].AsString()
			method, ok := parent.Methods.Get(v.internedKey(name))
			if !ok {
				if handled, herr := v.throwErr(v.runtimeErr(fmt.Sprintf("undefined method '%s'", name.Chars))); !handled {
					return value.Nil, herr
				}
				continue
			}
			receiver := v.pop()
			bm := &value.BoundMethod{Receiver: receiver, Method: method}
			v.gc.Track(&bm.Object, 32)
			v.push(value.Obj(&bm.Object))

		case bytecode.OpList:
			count := int(v.readU16())
			elems := make([]value.Value, count)
			copy(elems, v.stack[v.sp-count:v.sp])
			v.sp -= count
			l := &value.List{Elems: elems}
			v.gc.Track(&l.Object, 16+count*8)
			v.push(value.Obj(&l.Object))
		case bytecode.OpRange:
			upper := v.pop()
			lower := v.pop()
			if !lower.IsNumber() || !upper.IsNumber() {
				if handled, herr := v.throwErr(v.runtimeErr("range bounds must be numbers")); !handled {
					return value.Nil, herr
				}
				continue
			}
			r := &value.Range{Lower: int64(lower.AsNumber()), Upper: int64(upper.AsNumber())}
			v.gc.Track(&r.Object, 24)
			v.push(value.Obj(&r.Object))
		case bytecode.OpDict:
			count := int(v.readU16())
			d := &value.Dict{Items: value.NewTable()}
			base := v.sp - count*2
			for i := 0; i < count; i++ {
				k := v.stack[base+i*2]
				val := v.stack[base+i*2+1]
				if _, existed := d.Items.Get(k); !existed {
					d.Names = append(d.Names, k)
				}
				d.Items.Set(k, val)
			}
			v.sp = base
			v.gc.Track(&d.Object, 32+count*16)
			v.push(value.Obj(&d.Object))
		case bytecode.OpGetIndex:
			willAssign := blob.Code[fr.ip] == 1
			fr.ip++
			if err := v.getIndex(willAssign); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpGetRangedIndex:
			if err := v.getRangedIndex(); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpSetIndex:
			if err := v.setIndex(); err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}

		case bytecode.OpCallImport:
			idx := v.readU16()
			path := blob.Constants[idx].AsString().Chars
			mod, err := v.loadModule(path)
			if err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
			v.push(value.Obj(&mod.Object))
		case bytecode.OpNativeModule:
			idx := v.readU16()
			path := blob.Constants[idx].AsString().Chars
			mod, err := v.loadNativeModule(path)
			if err != nil {
				if handled, herr := v.throwErr(err); !handled {
					return value.Nil, herr
				}
				continue
			}
			v.push(value.Obj(&mod.Object))
		case bytecode.OpSelectImport, bytecode.OpSelectNativeImport:
			idx := v.readU16()
			name := blob.Constants[idx].AsString()
			mod := v.pop().AsModule()
			val, ok := mod.Values.Get(v.internedKey(name))
			if !ok {
				if handled, herr := v.throwErr(v.runtimeErr(fmt.Sprintf("module '%s' has no member '%s'", mod.Name, name.Chars))); !handled {
					return value.Nil, herr
				}
				continue
			}
			v.push(val)
		case bytecode.OpImportAll, bytecode.OpImportAllNative:
			mod := v.pop().AsModule()
			v.moduleValues(fr).AddAll(mod.Values)
		case bytecode.OpEjectImport, bytecode.OpEjectNativeImport:
			v.pop()

		case bytecode.OpTry:
			classIdx := v.readU16()
			catchIP := v.readU16()
			finallyIP := v.readU16()
			hasCatch := blob.Code[fr.ip]
			fr.ip++
			v.handlers = append(v.handlers, tryHandler{
				classNameIdx: int(classIdx),
				hasClassIdx:  classIdx != 0xffff,
				catchIP:      int(catchIP),
				finallyIP:    int(finallyIP),
				hasCatch:     hasCatch == 1,
				frameIndex:   len(v.frames) - 1,
				stackDepth:   v.sp,
			})
		case bytecode.OpPopTry:
			if len(v.handlers) > 0 {
				v.handlers = v.handlers[:len(v.handlers)-1]
			}
		case bytecode.OpPublishTry:
			if v.hasPending {
				exc := v.pending
				v.hasPending = false
				v.pending = value.Nil
				handled, herr := v.raiseException(exc)
				if !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpBeginCatch:
			// exception instance already pushed by raiseException's unwind.
		case bytecode.OpEndCatch:
			// catch block completed normally; nothing extra to clean up.
		case bytecode.OpDie:
			errVal := v.pop()
			handled, herr := v.raiseValue(errVal)
			if !handled {
				return value.Nil, herr
			}
			continue

		case bytecode.OpEcho:
			fmt.Fprintln(v.Stdout, value.ToString(v.pop()))
		case bytecode.OpStringify:
			top := v.pop()
			v.push(v.newString(value.ToString(top)))
		case bytecode.OpAssert:
			msg := v.pop()
			cond := v.pop()
			if value.IsFalsey(cond) {
				text := "assertion failed"
				if !msg.IsNil() {
					text = value.ToString(msg)
				}
				if handled, herr := v.throwErr(v.assertErr(text)); !handled {
					return value.Nil, herr
				}
				continue
			}
		case bytecode.OpSwitch:
			idx := v.readU16()
			st := blob.Constants[idx].AsSwitch()
			subject := v.pop()
			if off, ok := st.Cases.Get(subject); ok {
				fr.ip += int(off.AsNumber())
			} else {
				fr.ip += st.Default
			}
		case bytecode.OpChoice:
			elseVal := v.pop()
			thenVal := v.pop()
			cond := v.pop()
			if value.IsFalsey(cond) {
				v.push(elseVal)
			} else {
				v.push(thenVal)
			}

		default:
			if handled, herr := v.throwErr(v.runtimeErr(fmt.Sprintf("unimplemented opcode %s", op))); !handled {
				return value.Nil, herr
			}
		}

		if v.gc.ShouldCollect() {
			v.gc.Collect()
		}
	}
}

func (v *VM) readU16() uint16 {
	fr := v.curFrame()
	blob := fr.closure.Fn.Blob
	hi := blob.Code[fr.ip]
	lo := blob.Code[fr.ip+1]
	fr.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (v *VM) runtimeErr(msg string) error {
	fr := v.curFrame()
	line := 0
	if fr.ip-1 >= 0 && fr.ip-1 < len(fr.closure.Fn.Blob.Lines) {
		line = fr.closure.Fn.Blob.Lines[fr.ip-1]
	}
	return bladeerrors.NewRuntimeError(msg, v.scriptPath, line, 0)
}

func (v *VM) assertErr(msg string) error {
	e := bladeerrors.NewRuntimeError(msg, v.scriptPath, 0, 0)
	e.Type = bladeerrors.AssertionError
	return e
}
