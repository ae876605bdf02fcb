package compiler

import (
	"github.com/blade-lang/blade/internal/bytecode"
	"github.com/blade-lang/blade/internal/lexer"
	"github.com/blade-lang/blade/internal/value"
)

func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokVar):
		c.varDeclaration()
	case c.match(lexer.TokDef):
		c.funcDeclaration()
	case c.match(lexer.TokClass):
		c.classDeclaration()
	default:
		c.statement()
	}
	if c.panic {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	for {
		c.consume(lexer.TokIdent, "expected variable name")
		name := c.prev.Lexeme
		global := uint16(0)
		isGlobal := c.fr.scopeDepth == 0
		if isGlobal {
			global = c.identConstant(name)
		} else {
			c.declareLocal(name, false)
		}
		if c.match(lexer.TokAssign) {
			c.expression()
		} else {
			c.emit(bytecode.OpNil)
		}
		if isGlobal {
			c.emit(bytecode.OpDefineGlobal)
			c.emitU16(global)
		} else {
			c.markInitialized()
		}
		if !c.match(lexer.TokComma) {
			break
		}
	}
	c.endStatement()
}

func (c *Compiler) funcDeclaration() {
	c.consume(lexer.TokIdent, "expected function name")
	name := c.prev.Lexeme
	isGlobal := c.fr.scopeDepth == 0
	var global uint16
	if isGlobal {
		global = c.identConstant(name)
	} else {
		c.declareLocal(name, false)
		c.markInitialized()
	}
	c.functionBody(FuncFunction, name)
	if isGlobal {
		c.emit(bytecode.OpDefineGlobal)
		c.emitU16(global)
	}
}

// functionBody compiles `(params) { body }` into a nested frame,
// leaving on the outer stack either a plain function constant (no
// captures) or a CLOSURE plus its upvalue descriptor pairs.
func (c *Compiler) functionBody(fnType FuncType, name string) {
	fn := &value.Function{Name: name, Blob: value.NewBlob(), Module: c.module}
	switch fnType {
	case FuncMethod:
		fn.Kind = value.FnMethod
	case FuncInitializer:
		fn.Kind = value.FnInitializer
	case FuncStatic:
		fn.Kind = value.FnStatic
	default:
		fn.Kind = value.FnFunction
	}

	enclosing := c.fr
	c.fr = &frame{enclosing: enclosing, fn: fn, fnType: fnType}
	// Slot 0: `self` for methods, otherwise the function's own closure
	// value (unused by scripts but keeps slot numbering uniform).
	c.fr.locals = append(c.fr.locals, local{name: "", depth: 0})
	c.beginScope()

	c.consume(lexer.TokLParen, "expected '(' after function name")
	if !c.check(lexer.TokRParen) {
		for {
			c.skipNewlines()
			if c.match(lexer.TokDotDot) && c.match(lexer.TokDot) {
				c.consume(lexer.TokIdent, "expected parameter name after '...'")
				fn.Variadic = true
				c.declareLocal(c.prev.Lexeme, false)
				c.markInitialized()
				fn.Arity++
				break
			}
			c.consume(lexer.TokIdent, "expected parameter name")
			pname := c.prev.Lexeme
			c.declareLocal(pname, false)
			c.markInitialized()
			fn.Arity++
			if c.match(lexer.TokAssign) {
				// Default parameter values: compiled as
				// `if arg == nil: arg = default` at the top of the
				// body, so the bytecode form doesn't need a distinct
				// opcode. The default expression is parsed now but
				// emitted at the start of the body by emitParamDefaults
				// via a deferred list.
				c.fr.pendingDefaults = append(c.fr.pendingDefaults, pendingDefault{
					slot: len(c.fr.locals) - 1,
				})
				c.parseDefaultExpr(&c.fr.pendingDefaults[len(c.fr.pendingDefaults)-1])
			}
			if !c.match(lexer.TokComma) {
				break
			}
		}
	}
	c.consume(lexer.TokRParen, "expected ')' after parameters")
	c.skipNewlines()
	c.consume(lexer.TokLBrace, "expected '{' before function body")

	c.emitParamDefaults()
	c.blockBody()

	c.emitReturn()
	fn.UpvalCount = len(c.fr.upvalues)
	upvals := c.fr.upvalues
	c.fr = enclosing

	if len(upvals) == 0 {
		c.emitConstant(value.Obj(&fn.Object))
		return
	}
	idx := c.blob().AddConstant(value.Obj(&fn.Object))
	c.emit(bytecode.OpClosure)
	c.emitU16(uint16(idx))
	for _, u := range upvals {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.index)
	}
}

type pendingDefault struct {
	slot     int
	startTok lexer.Token
	hasValue bool
	constVal value.Value
}

// parseDefaultExpr only supports literal defaults (numbers, strings,
// true/false/nil/empty) to keep the parameter list itself a single
// forward scan with no speculative backtracking; anything more
// complex should be written `if name == nil { name = ... }` in the
// body.
func (c *Compiler) parseDefaultExpr(pd *pendingDefault) {
	switch c.cur.Type {
	case lexer.TokNumber:
		c.advance()
		lit := literalNumber(c.prev.Lexeme)
		pd.constVal = value.Number(lit)
		pd.hasValue = true
	case lexer.TokString:
		c.advance()
		pd.constVal = c.internedString(c.prev.Lexeme)
		pd.hasValue = true
	case lexer.TokTrue:
		c.advance()
		pd.constVal = value.True
		pd.hasValue = true
	case lexer.TokFalse:
		c.advance()
		pd.constVal = value.False
		pd.hasValue = true
	case lexer.TokNil:
		c.advance()
		pd.constVal = value.Nil
		pd.hasValue = true
	case lexer.TokEmpty:
		c.advance()
		pd.constVal = value.Empty
		pd.hasValue = true
	default:
		c.errAt(c.cur, "default parameter value must be a literal")
	}
}

// emitParamDefaults runs at the top of a function body: a missing
// argument arrives as nil (the arity-padding rule), and any parameter
// with a declared default replaces that nil before the body proper.
func (c *Compiler) emitParamDefaults() {
	for _, pd := range c.fr.pendingDefaults {
		if !pd.hasValue {
			continue
		}
		c.emit(bytecode.OpGetLocal)
		c.emitByte(byte(pd.slot))
		c.emit(bytecode.OpNil)
		c.emit(bytecode.OpEqual)
		skip := c.emitJump(bytecode.OpJumpIfFalse)
		c.emit(bytecode.OpPop)
		c.emitConstant(pd.constVal)
		c.emit(bytecode.OpSetLocal)
		c.emitByte(byte(pd.slot))
		c.emit(bytecode.OpPop)
		end := c.emitJump(bytecode.OpJump)
		c.patchJump(skip)
		c.emit(bytecode.OpPop)
		c.patchJump(end)
	}
	c.fr.pendingDefaults = nil
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokIdent, "expected class name")
	name := c.prev.Lexeme
	nameIdx := c.identConstant(name)
	isGlobal := c.fr.scopeDepth == 0
	classSlot := -1
	if !isGlobal {
		c.declareLocal(name, false)
		classSlot = len(c.fr.locals) - 1
	}

	c.emit(bytecode.OpClass)
	c.emitU16(nameIdx)
	if isGlobal {
		c.emit(bytecode.OpDefineGlobal)
		c.emitU16(nameIdx)
	} else {
		c.markInitialized()
	}

	cls := &classCtx{enclosing: c.class, name: name}
	c.class = cls

	// The parent is pushed (and bound to the synthetic local `parent`)
	// before the class reference the member opcodes peek at, so the
	// local's slot index and its stack position agree.
	if c.match(lexer.TokLt) {
		c.consume(lexer.TokIdent, "expected parent class name")
		if c.prev.Lexeme == name {
			c.errAt(c.prev, "a class cannot inherit from itself")
		}
		parentGet, _, parentSlot := c.resolveVariable(c.prev.Lexeme)
		c.beginScope()
		emitVarOp(c, parentGet, parentSlot)
		c.declareLocal("parent", true)
		c.markInitialized()
		cls.hasSuper = true
	}

	if isGlobal {
		c.emit(bytecode.OpGetGlobal)
		c.emitU16(nameIdx)
	} else {
		c.emit(bytecode.OpGetLocal)
		c.emitByte(byte(classSlot))
	}
	if cls.hasSuper {
		c.emit(bytecode.OpInherit)
	}

	c.skipNewlines()
	c.consume(lexer.TokLBrace, "expected '{' before class body")
	c.skipNewlines()
	for !c.check(lexer.TokRBrace) && !c.check(lexer.TokEOF) {
		c.classMember()
		c.skipNewlines()
	}
	c.consume(lexer.TokRBrace, "expected '}' after class body")

	c.emit(bytecode.OpPop) // drop the class reference pushed for member ops
	if cls.hasSuper {
		c.endScope()
	}

	c.class = cls.enclosing
}

func (c *Compiler) classMember() {
	static := c.match(lexer.TokStatic)
	if c.match(lexer.TokVar) {
		c.consume(lexer.TokIdent, "expected field name")
		fname := c.identConstant(c.prev.Lexeme)
		if c.match(lexer.TokAssign) {
			c.expression()
		} else {
			c.emit(bytecode.OpNil)
		}
		c.emit(bytecode.OpClassProperty)
		c.emitU16(fname)
		c.emitByte(boolByte(static))
		c.endStatement()
		return
	}
	c.consume(lexer.TokIdent, "expected method name")
	name := c.prev.Lexeme
	nameIdx := c.identConstant(name)

	// The initializer is the method whose name equals the class name,
	// invoked implicitly on construction.
	fnType := FuncMethod
	if static {
		fnType = FuncStatic
	} else if name == c.class.name {
		fnType = FuncInitializer
	}
	c.functionBody(fnType, name)
	c.emit(bytecode.OpMethod)
	c.emitU16(nameIdx)
	c.emitByte(boolByte(static))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// --- statements --------------------------------------------------------

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokLBrace):
		c.beginScope()
		c.blockBody()
		c.endScope()
	case c.match(lexer.TokIf):
		c.ifStatement()
	case c.match(lexer.TokWhile):
		c.whileStatement()
	case c.match(lexer.TokIter):
		c.iterStatement()
	case c.match(lexer.TokFor):
		c.forInStatement()
	case c.match(lexer.TokUsing):
		c.usingStatement()
	case c.match(lexer.TokTry):
		c.tryStatement()
	case c.match(lexer.TokDie):
		c.dieStatement()
	case c.match(lexer.TokReturn):
		c.returnStatement()
	case c.match(lexer.TokEcho):
		c.echoStatement()
	case c.match(lexer.TokAssert):
		c.assertStatement()
	case c.match(lexer.TokBreak):
		c.breakStatement()
	case c.match(lexer.TokContinue):
		c.continueStatement()
	case c.match(lexer.TokImport):
		c.importStatement()
	case c.match(lexer.TokNewline), c.match(lexer.TokSemicolon):
		// empty statement
	default:
		c.expressionStatement()
	}
}

// blockBody compiles statements up to (not including) the closing '}'.
func (c *Compiler) blockBody() {
	c.skipNewlines()
	for !c.check(lexer.TokRBrace) && !c.check(lexer.TokEOF) {
		c.declaration()
		c.skipNewlines()
	}
	c.consume(lexer.TokRBrace, "expected '}' after block")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.emit(bytecode.OpPop)
	c.endStatement()
}

// condition parses an optionally parenthesized statement condition:
// `if x {`, `while (x) {`, and `using x {` are all accepted forms.
func (c *Compiler) condition() {
	if c.match(lexer.TokLParen) {
		c.expression()
		c.consume(lexer.TokRParen, "expected ')' after condition")
		return
	}
	c.expression()
}

func (c *Compiler) ifStatement() {
	c.condition()
	c.skipNewlines()

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emit(bytecode.OpPop)

	c.skipNewlinesBeforeElse()
	if c.match(lexer.TokElse) {
		c.skipNewlines()
		c.statement()
	}
	c.patchJump(elseJump)
}

// skipNewlinesBeforeElse allows `}` and `else` to sit on separate
// lines without the newline being mistaken for a statement terminator.
func (c *Compiler) skipNewlinesBeforeElse() {
	for c.check(lexer.TokNewline) {
		c.advance()
	}
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.blob().Code)
	c.condition()
	c.skipNewlines()

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)

	lp := &loopCtx{enclosing: c.fr.loop, continueTarget: loopStart, scopeDepth: c.fr.scopeDepth}
	c.fr.loop = lp
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emit(bytecode.OpPop)
	c.patchBreaks(lp)
	c.fr.loop = lp.enclosing
}

func (c *Compiler) patchBreaks(lp *loopCtx) {
	for _, b := range lp.breakJumps {
		c.patchJump(b)
	}
}

// iterStatement compiles `iter init; cond; step { body }`: the step
// clause is parsed first but its bytecode is emitted after the body,
// reached by a forward jump around it on the loop's first entry and a
// backward loop from the body straight into it thereafter.
func (c *Compiler) iterStatement() {
	hasParen := c.match(lexer.TokLParen)
	stepEnd := lexer.TokLBrace
	if hasParen {
		stepEnd = lexer.TokRParen
	}
	c.beginScope()

	if !c.check(lexer.TokSemicolon) {
		if c.match(lexer.TokVar) {
			c.varDeclInline()
		} else {
			c.expression()
			c.emit(bytecode.OpPop)
		}
	}
	c.consume(lexer.TokSemicolon, "expected ';' after iter initializer")

	loopStart := len(c.blob().Code)
	exitJump := -1
	if !c.check(lexer.TokSemicolon) {
		c.expression()
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emit(bytecode.OpPop)
	}
	c.consume(lexer.TokSemicolon, "expected ';' after iter condition")

	bodyJump := c.emitJump(bytecode.OpJump)
	incrStart := len(c.blob().Code)
	if !c.check(stepEnd) {
		c.expression()
		c.emit(bytecode.OpPop)
	}
	if hasParen {
		c.consume(lexer.TokRParen, "expected ')' after iter clauses")
	}
	c.emitLoop(loopStart)
	c.patchJump(bodyJump)

	c.skipNewlines()
	lp := &loopCtx{enclosing: c.fr.loop, continueTarget: incrStart, scopeDepth: c.fr.scopeDepth}
	c.fr.loop = lp
	c.statement()
	c.emitLoop(incrStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emit(bytecode.OpPop)
	}
	c.patchBreaks(lp)
	c.fr.loop = lp.enclosing
	c.endScope()
}

func (c *Compiler) varDeclInline() {
	c.consume(lexer.TokIdent, "expected variable name")
	name := c.prev.Lexeme
	c.declareLocal(name, false)
	if c.match(lexer.TokAssign) {
		c.expression()
	} else {
		c.emit(bytecode.OpNil)
	}
	c.markInitialized()
}

// forInStatement desugars `for key[, value] in expr`: an implicit
// `tmp` holds the iterable, `key`/index advance via the @iter/@itern
// protocol methods.
func (c *Compiler) forInStatement() {
	c.consume(lexer.TokIdent, "expected loop variable name")
	keyName := c.prev.Lexeme
	valueName := ""
	if c.match(lexer.TokComma) {
		c.consume(lexer.TokIdent, "expected second loop variable name")
		valueName = c.prev.Lexeme
	}
	c.consume(lexer.TokIn, "expected 'in' after loop variables")
	c.expression()
	c.consume(lexer.TokLBrace, "expected '{' before loop body")

	c.beginScope()
	c.declareLocal(" tmp", false)
	c.markInitialized()
	tmpSlot := len(c.fr.locals) - 1

	c.emit(bytecode.OpConstant)
	c.emitU16(uint16(c.blob().AddConstant(value.Number(0))))
	c.declareLocal(" i", false)
	c.markInitialized()
	iSlot := len(c.fr.locals) - 1

	iterName := c.identConstant("@iter")
	iternName := c.identConstant("@itern")

	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(tmpSlot))
	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(iSlot))
	c.emit(bytecode.OpInvoke)
	c.emitU16(iterName)
	c.emitByte(1)
	c.declareLocal(keyName, false)
	c.markInitialized()
	keySlot := len(c.fr.locals) - 1

	loopStart := len(c.blob().Code)
	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(keySlot))
	c.emit(bytecode.OpEmpty)
	c.emit(bytecode.OpEqual)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	breakOut := c.emitJump(bytecode.OpJump)
	c.patchJump(exitJump)
	c.emit(bytecode.OpPop)

	loopDepth := c.fr.scopeDepth
	c.beginScope()
	if valueName != "" {
		c.emit(bytecode.OpGetLocal)
		c.emitByte(byte(tmpSlot))
		c.emit(bytecode.OpGetLocal)
		c.emitByte(byte(keySlot))
		c.emit(bytecode.OpInvoke)
		c.emitU16(iternName)
		c.emitByte(1)
		c.declareLocal(valueName, false)
		c.markInitialized()
	}

	lp := &loopCtx{enclosing: c.fr.loop, continueTarget: -1, scopeDepth: loopDepth}
	c.fr.loop = lp
	c.blockBody()
	c.endScope()

	// `continue` lands here: the advancing step runs, then the loop
	// re-tests its condition.
	for _, j := range lp.continueJumps {
		c.patchJump(j)
	}

	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(iSlot))
	c.emit(bytecode.OpOne)
	c.emit(bytecode.OpAdd)
	c.emit(bytecode.OpSetLocal)
	c.emitByte(byte(iSlot))
	c.emit(bytecode.OpPop)

	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(tmpSlot))
	c.emit(bytecode.OpGetLocal)
	c.emitByte(byte(iSlot))
	c.emit(bytecode.OpInvoke)
	c.emitU16(iterName)
	c.emitByte(1)
	c.emit(bytecode.OpSetLocal)
	c.emitByte(byte(keySlot))
	c.emit(bytecode.OpPop)

	c.emitLoop(loopStart)
	c.patchJump(breakOut)
	c.patchBreaks(lp)
	c.fr.loop = lp.enclosing
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if c.fr.loop == nil {
		c.errAt(c.prev, "'break' outside a loop")
		c.endStatement()
		return
	}
	for i := len(c.fr.locals) - 1; i >= 0 && c.fr.locals[i].depth > c.fr.loop.scopeDepth; i-- {
		c.emit(bytecode.OpPop)
	}
	j := c.emitJump(bytecode.OpBreakPlaceholder)
	c.fr.loop.breakJumps = append(c.fr.loop.breakJumps, j)
	c.endStatement()
}

func (c *Compiler) continueStatement() {
	if c.fr.loop == nil {
		c.errAt(c.prev, "'continue' outside a loop")
		c.endStatement()
		return
	}
	for i := len(c.fr.locals) - 1; i >= 0 && c.fr.locals[i].depth > c.fr.loop.scopeDepth; i-- {
		c.emit(bytecode.OpPop)
	}
	if c.fr.loop.continueTarget >= 0 {
		c.emitLoop(c.fr.loop.continueTarget)
	} else {
		j := c.emitJump(bytecode.OpJump)
		c.fr.loop.continueJumps = append(c.fr.loop.continueJumps, j)
	}
	c.endStatement()
}

func (c *Compiler) returnStatement() {
	if c.fr.fnType == FuncScript {
		c.errAt(c.prev, "'return' outside a function")
	}
	if c.check(lexer.TokNewline) || c.check(lexer.TokSemicolon) || c.check(lexer.TokEOF) || c.check(lexer.TokRBrace) {
		c.emitReturn()
	} else {
		if c.fr.fnType == FuncInitializer {
			c.errAt(c.prev, "cannot return a value from an initializer")
		}
		c.expression()
		c.emit(bytecode.OpReturn)
	}
	c.endStatement()
}

func (c *Compiler) echoStatement() {
	c.expression()
	for c.match(lexer.TokComma) {
		c.emit(bytecode.OpStringify)
		c.expression()
		c.emit(bytecode.OpStringify)
		c.emit(bytecode.OpAdd)
	}
	c.emit(bytecode.OpEcho)
	c.endStatement()
}

func (c *Compiler) assertStatement() {
	c.expression()
	if c.match(lexer.TokComma) {
		c.expression()
	} else {
		c.emit(bytecode.OpNil)
	}
	c.emit(bytecode.OpAssert)
	c.endStatement()
}

func (c *Compiler) dieStatement() {
	c.expression()
	c.emit(bytecode.OpDie)
	c.endStatement()
}

func (c *Compiler) importStatement() {
	c.consume(lexer.TokIdent, "expected module path")
	path := c.prev.Lexeme
	for c.match(lexer.TokDot) {
		c.consume(lexer.TokIdent, "expected module path segment")
		path = path + "/" + c.prev.Lexeme
	}
	pathIdx := c.identConstant(path)

	if c.match(lexer.TokLBrace) {
		// import foo { a, b as c } — or { * } to splat every export
		// into the importer's globals.
		c.skipNewlines()
		if c.match(lexer.TokStar) {
			c.emit(bytecode.OpCallImport)
			c.emitU16(pathIdx)
			c.emit(bytecode.OpImportAll)
			c.skipNewlines()
			c.consume(lexer.TokRBrace, "expected '}' after import list")
			c.endStatement()
			return
		}
		for {
			c.skipNewlines()
			c.consume(lexer.TokIdent, "expected imported name")
			selName := c.identConstant(c.prev.Lexeme)
			asName := selName
			if c.match(lexer.TokAs) {
				c.consume(lexer.TokIdent, "expected alias name")
				asName = c.identConstant(c.prev.Lexeme)
			}
			c.emit(bytecode.OpCallImport)
			c.emitU16(pathIdx)
			c.emit(bytecode.OpSelectImport)
			c.emitU16(selName)
			c.emit(bytecode.OpDefineGlobal)
			c.emitU16(asName)
			c.skipNewlines()
			if !c.match(lexer.TokComma) {
				break
			}
		}
		c.skipNewlines()
		c.consume(lexer.TokRBrace, "expected '}' after import list")
		c.endStatement()
		return
	}

	alias := pathIdx
	if c.match(lexer.TokAs) {
		c.consume(lexer.TokIdent, "expected alias name")
		alias = c.identConstant(c.prev.Lexeme)
	}
	c.emit(bytecode.OpCallImport)
	c.emitU16(pathIdx)
	c.emit(bytecode.OpDefineGlobal)
	c.emitU16(alias)
	c.endStatement()
}

// usingStatement compiles `using expr { when a {...} when b {...}
// default {...} }`. When every `when` label is a literal, a
// switch-table constant is built and SWITCH dispatches directly;
// otherwise it falls back to a DUP/EQUAL/JUMP_IF_FALSE chain.
func (c *Compiler) usingStatement() {
	c.condition()
	c.skipNewlines()
	c.consume(lexer.TokLBrace, "expected '{' before using body")
	c.skipNewlines()

	if c.allWhenLabelsLiteral() {
		c.usingSwitchTable()
		return
	}

	var endJumps []int
	nextJump := -1

	for c.check(lexer.TokWhen) {
		c.advance()
		if nextJump != -1 {
			c.patchJump(nextJump)
			c.emit(bytecode.OpPop)
		}
		c.emit(bytecode.OpDup)
		c.parsePrecedence(precAssignment)
		c.emit(bytecode.OpEqual)
		nextJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emit(bytecode.OpPop) // comparison result
		c.emit(bytecode.OpPop) // the subject, done with once a clause matches
		c.skipNewlines()
		c.consume(lexer.TokLBrace, "expected '{' after when label")
		c.beginScope()
		c.blockBody()
		c.endScope()
		endJumps = append(endJumps, c.emitJump(bytecode.OpJump))
		c.skipNewlines()
	}
	if nextJump != -1 {
		c.patchJump(nextJump)
		c.emit(bytecode.OpPop)
	}
	c.emit(bytecode.OpPop) // subject, on the no-clause-matched path
	if c.match(lexer.TokDefault) {
		c.skipNewlines()
		c.consume(lexer.TokLBrace, "expected '{' after 'default'")
		c.beginScope()
		c.blockBody()
		c.endScope()
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.skipNewlines()
	c.consume(lexer.TokRBrace, "expected '}' after using body")
}

// allWhenLabelsLiteral peeks ahead through the using body (without
// consuming it) and reports whether every `when` label is a
// compile-time literal, the precondition for the switch-table
// strategy. The scanner clone makes the probe side-effect free.
func (c *Compiler) allWhenLabelsLiteral() bool {
	sc := c.scanner.Clone()
	tok := c.cur
	next := func() {
		for {
			tok = sc.Next()
			if tok.Type != lexer.TokNewline {
				return
			}
		}
	}
	sawWhen := false
	depth := 0
	for {
		switch tok.Type {
		case lexer.TokEOF, lexer.TokError:
			return false
		case lexer.TokLBrace:
			depth++
			next()
		case lexer.TokRBrace:
			if depth == 0 {
				return sawWhen
			}
			depth--
			next()
		case lexer.TokWhen:
			if depth != 0 {
				next()
				continue
			}
			sawWhen = true
			next()
			neg := false
			if tok.Type == lexer.TokMinus {
				neg = true
				next()
			}
			switch tok.Type {
			case lexer.TokNumber:
			case lexer.TokString, lexer.TokTrue, lexer.TokFalse, lexer.TokNil:
				if neg {
					return false
				}
			default:
				return false
			}
			next()
			if tok.Type != lexer.TokLBrace {
				return false
			}
		default:
			next()
		}
	}
}

// usingSwitchTable is the literal-label strategy: the subject is
// consumed once by SWITCH, which jumps straight to the matching case
// (or the default/end) through a switch-table constant.
func (c *Compiler) usingSwitchTable() {
	st := &value.SwitchTable{Cases: value.NewTable()}
	idx := c.blob().AddConstant(value.Obj(&st.Object))
	c.emit(bytecode.OpSwitch)
	c.emitU16(uint16(idx))
	opEnd := len(c.blob().Code)

	var endJumps []int
	for c.check(lexer.TokWhen) {
		c.advance()
		label := c.whenLiteral()
		st.Cases.Set(label, value.Number(float64(len(c.blob().Code)-opEnd)))
		c.skipNewlines()
		c.consume(lexer.TokLBrace, "expected '{' after when label")
		c.beginScope()
		c.blockBody()
		c.endScope()
		endJumps = append(endJumps, c.emitJump(bytecode.OpJump))
		c.skipNewlines()
	}
	if c.match(lexer.TokDefault) {
		st.Default = len(c.blob().Code) - opEnd
		c.skipNewlines()
		c.consume(lexer.TokLBrace, "expected '{' after 'default'")
		c.beginScope()
		c.blockBody()
		c.endScope()
	} else {
		st.Default = len(c.blob().Code) - opEnd
	}
	for _, j := range endJumps {
		c.patchJump(j)
	}
	c.skipNewlines()
	c.consume(lexer.TokRBrace, "expected '}' after using body")
}

// whenLiteral parses the literal label of a `when` clause into its
// constant value; allWhenLabelsLiteral has already vetted the token.
func (c *Compiler) whenLiteral() value.Value {
	neg := c.match(lexer.TokMinus)
	switch {
	case c.match(lexer.TokNumber):
		n := parseNumberLiteral(c.prev.Lexeme)
		if neg {
			n = -n
		}
		return value.Number(n)
	case c.match(lexer.TokString):
		return c.internedString(c.prev.Lexeme)
	case c.match(lexer.TokTrue):
		return value.True
	case c.match(lexer.TokFalse):
		return value.False
	case c.match(lexer.TokNil):
		return value.Nil
	}
	c.errAt(c.cur, "expected literal when label")
	return value.Nil
}

// tryStatement compiles `try { A } catch Class as e { B } finally { C }`.
func (c *Compiler) tryStatement() {
	c.emit(bytecode.OpTry)
	classIdxOff := c.emitU16(0xffff)
	catchJumpOff := c.emitU16(0xffff)
	finallyJumpOff := c.emitU16(0xffff)
	hasCatchOff := c.emitByte(0)

	c.skipNewlines()
	c.consume(lexer.TokLBrace, "expected '{' after 'try'")
	c.beginScope()
	c.blockBody()
	c.endScope()
	c.emit(bytecode.OpPopTry)
	afterTry := c.emitJump(bytecode.OpJump)

	catchStart := len(c.blob().Code)
	c.blob().PatchU16(catchJumpOff, uint16(catchStart))

	c.skipNewlines()
	if c.match(lexer.TokCatch) {
		c.blob().Code[hasCatchOff] = 1
		if c.check(lexer.TokIdent) {
			c.advance()
			exClass := c.identConstant(c.prev.Lexeme)
			c.blob().PatchU16(classIdxOff, exClass)
		}
		c.emit(bytecode.OpBeginCatch)
		c.beginScope()
		if c.match(lexer.TokAs) {
			c.consume(lexer.TokIdent, "expected exception binding name")
			c.declareLocal(c.prev.Lexeme, false)
			c.markInitialized()
		} else {
			c.declareLocal(" exc", false)
			c.markInitialized()
		}
		c.skipNewlines()
		c.consume(lexer.TokLBrace, "expected '{' after catch clause")
		c.blockBody()
		c.endScope()
		c.emit(bytecode.OpEndCatch)
	}
	c.patchJump(afterTry)

	finallyStart := len(c.blob().Code)
	c.blob().PatchU16(finallyJumpOff, uint16(finallyStart))
	c.skipNewlines()
	if c.match(lexer.TokFinally) {
		c.skipNewlines()
		c.consume(lexer.TokLBrace, "expected '{' after 'finally'")
		c.beginScope()
		c.blockBody()
		c.endScope()
	}
	// Every path through the region ends here: normal fall-through,
	// a completed catch, and an exception routed to the finally code
	// because no catch matched. PUBLISH_TRY resumes unwinding in that
	// last case and is a no-op otherwise.
	c.emit(bytecode.OpPublishTry)
}

func literalNumber(lex string) float64 {
	return parseNumberLiteral(lex)
}
