// Package compiler implements Blade's single-pass compiler: a Pratt
// expression parser fused directly to statement parsing and bytecode
// emission, with no intermediate AST. Locals, upvalues, loops, and
// class scope are all tracked on an explicit compiler-frame stack, the
// same structure the virtual machine will later walk as call frames.
package compiler

import (
	"fmt"

	"github.com/blade-lang/blade/internal/bytecode"
	"github.com/blade-lang/blade/internal/lexer"
	"github.com/blade-lang/blade/internal/value"
)

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precConditional
	precOr
	precAnd
	precEquality
	precComparison
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precRange
	precTerm
	precFactor
	precPower
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

type local struct {
	name       string
	depth      int
	isCaptured bool
	isConst    bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

type loopCtx struct {
	enclosing      *loopCtx
	continueTarget int   // backward target, or -1 when the step is emitted after the body
	continueJumps  []int // forward jumps patched to the step when continueTarget is -1
	breakJumps     []int
	scopeDepth     int
}

type classCtx struct {
	enclosing *classCtx
	name      string
	hasSuper  bool
}

// FuncType records why a frame was opened, driving `self`/`parent`
// slot reservation and implicit-return-of-self for initializers.
type FuncType int

const (
	FuncScript FuncType = iota
	FuncFunction
	FuncMethod
	FuncInitializer
	FuncStatic
)

type frame struct {
	enclosing       *frame
	fn              *value.Function
	fnType          FuncType
	locals          []local
	upvalues        []upvalueRef
	scopeDepth      int
	loop            *loopCtx
	pendingDefaults []pendingDefault
}

// Compiler drives one compilation unit (a script or a module source
// file). Nested function/class bodies push and pop frame/classCtx
// values rather than recursing into a separate type.
type Compiler struct {
	scanner *lexer.Scanner
	cur     lexer.Token
	prev    lexer.Token
	hadErr  bool
	panic   bool
	errs    []string

	fr    *frame
	class *classCtx

	module *value.Module
}

// Compile parses and compiles source into a top-level Function of kind
// FnScript, ready to be wrapped in a Closure and run. Errors are
// collected, not raised immediately, so the caller can report all
// syntax errors found in one pass.
func Compile(source string, moduleName string, mod *value.Module) (*value.Function, []string) {
	c := &Compiler{
		scanner: lexer.New(source),
		module:  mod,
	}
	fn := &value.Function{Name: moduleName, Blob: value.NewBlob(), Kind: value.FnScript, Module: mod}
	c.fr = &frame{fn: fn, fnType: FuncScript}
	// Slot 0 is reserved for the running closure/self, matching the
	// convention every subsequent function frame also follows.
	c.fr.locals = append(c.fr.locals, local{name: "", depth: 0})

	c.advance()
	for !c.check(lexer.TokEOF) {
		c.skipNewlines()
		if c.check(lexer.TokEOF) {
			break
		}
		c.declaration()
		c.skipNewlines()
	}
	c.emitReturn()
	if c.hadErr {
		return fn, c.errs
	}
	return fn, nil
}

// --- token stream plumbing -------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.scanner.Next()
		if c.cur.Type != lexer.TokError {
			break
		}
		c.errAt(c.cur, c.cur.Lexeme)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.cur.Type == t }

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, msg string) {
	if c.cur.Type == t {
		c.advance()
		return
	}
	c.errAt(c.cur, msg)
}

// skipNewlines lets statement boundaries tolerate blank lines; a
// single newline still terminates a statement inside block() and
// declaration()'s callers.
func (c *Compiler) skipNewlines() {
	for c.check(lexer.TokNewline) {
		c.advance()
	}
}

func (c *Compiler) endStatement() {
	if c.check(lexer.TokEOF) || c.check(lexer.TokRBrace) {
		return
	}
	if c.match(lexer.TokNewline) || c.match(lexer.TokSemicolon) {
		c.skipNewlines()
		return
	}
	c.errAt(c.cur, "expected end of statement")
}

func (c *Compiler) errAt(t lexer.Token, msg string) {
	if c.panic {
		return
	}
	c.panic = true
	c.hadErr = true
	c.errs = append(c.errs, fmt.Sprintf("%d:%d: %s (at %q)", t.Line, t.Col, msg, t.Lexeme))
}

func (c *Compiler) synchronize() {
	c.panic = false
	for !c.check(lexer.TokEOF) {
		if c.prev.Type == lexer.TokNewline || c.prev.Type == lexer.TokSemicolon {
			return
		}
		switch c.cur.Type {
		case lexer.TokClass, lexer.TokDef, lexer.TokVar, lexer.TokFor, lexer.TokIf,
			lexer.TokWhile, lexer.TokReturn, lexer.TokEcho, lexer.TokIter, lexer.TokImport:
			return
		}
		c.advance()
	}
}

// --- emission helpers -------------------------------------------------------

func (c *Compiler) blob() *value.Blob { return c.fr.fn.Blob }

func (c *Compiler) emit(op bytecode.Op) int { return c.blob().WriteOp(op, c.prev.Line) }
func (c *Compiler) emitByte(b byte) int     { return c.blob().WriteByte(b, c.prev.Line) }
func (c *Compiler) emitU16(v uint16) int    { return c.blob().WriteU16(v, c.prev.Line) }

func (c *Compiler) emitConstant(v value.Value) {
	idx := c.blob().AddConstant(v)
	c.emit(bytecode.OpConstant)
	c.emitU16(uint16(idx))
}

func (c *Compiler) emitReturn() {
	if c.fr.fnType == FuncInitializer {
		c.emit(bytecode.OpGetLocal)
		c.emitByte(0)
	} else {
		c.emit(bytecode.OpNil)
	}
	c.emit(bytecode.OpReturn)
}

// emitJump writes the opcode plus a two-byte placeholder, returning
// the offset of the placeholder for a later patchJump.
func (c *Compiler) emitJump(op bytecode.Op) int {
	c.emit(op)
	return c.emitU16(0xffff)
}

func (c *Compiler) patchJump(off int) {
	dist := len(c.blob().Code) - (off + 2)
	if dist > 0xffff {
		c.errAt(c.prev, "jump distance too large")
	}
	c.blob().PatchU16(off, uint16(dist))
}

func (c *Compiler) emitLoop(start int) {
	c.emit(bytecode.OpLoop)
	dist := len(c.blob().Code) - start + 2
	if dist > 0xffff {
		c.errAt(c.prev, "loop body too large")
	}
	c.emitU16(uint16(dist))
}

func (c *Compiler) identConstant(name string) uint16 {
	return uint16(c.blob().AddConstant(c.internedString(name)))
}

func (c *Compiler) internedString(s string) value.Value {
	str := &value.String{Chars: s, RuneLen: len([]rune(s)), Hash: value.FNV1a32(s)}
	return value.Obj(&str.Object)
}
