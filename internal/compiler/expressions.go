package compiler

import (
	"strconv"
	"strings"

	"github.com/blade-lang/blade/internal/bytecode"
	"github.com/blade-lang/blade/internal/lexer"
	"github.com/blade-lang/blade/internal/value"
)

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokLParen:       {prefix: grouping, infix: call, precedence: precCall},
		lexer.TokLBracket:     {prefix: listLiteral, infix: index, precedence: precCall},
		lexer.TokLBrace:       {prefix: dictLiteral},
		lexer.TokDot:          {infix: dot, precedence: precCall},
		lexer.TokMinus:        {prefix: unary, infix: binary, precedence: precTerm},
		lexer.TokPlus:         {infix: binary, precedence: precTerm},
		lexer.TokStar:         {infix: binary, precedence: precFactor},
		lexer.TokSlash:        {infix: binary, precedence: precFactor},
		lexer.TokSlashSlash:   {infix: binary, precedence: precFactor},
		lexer.TokPercent:      {infix: binary, precedence: precFactor},
		lexer.TokStarStar:     {infix: binary, precedence: precPower},
		lexer.TokBang:         {prefix: unary},
		lexer.TokTilde:        {prefix: unary},
		lexer.TokEq:           {infix: binary, precedence: precEquality},
		lexer.TokNotEq:        {infix: binary, precedence: precEquality},
		lexer.TokGt:           {infix: binary, precedence: precComparison},
		lexer.TokGe:           {infix: binary, precedence: precComparison},
		lexer.TokLt:           {infix: binary, precedence: precComparison},
		lexer.TokLe:           {infix: binary, precedence: precComparison},
		lexer.TokAmp:          {infix: binary, precedence: precBitAnd},
		lexer.TokPipe:         {infix: binary, precedence: precBitOr},
		lexer.TokCaret:        {infix: binary, precedence: precBitXor},
		lexer.TokShl:          {infix: binary, precedence: precShift},
		lexer.TokShr:          {infix: binary, precedence: precShift},
		lexer.TokDotDot:       {infix: rangeExpr, precedence: precRange},
		lexer.TokAnd:          {infix: and_, precedence: precAnd},
		lexer.TokOr:           {infix: or_, precedence: precOr},
		lexer.TokQuestion:     {infix: ternary, precedence: precConditional},
		lexer.TokNumber:       {prefix: number},
		lexer.TokString:       {prefix: stringLit},
		lexer.TokInterpString: {prefix: stringLit},
		lexer.TokTrue:         {prefix: literal},
		lexer.TokFalse:        {prefix: literal},
		lexer.TokNil:          {prefix: literal},
		lexer.TokEmpty:        {prefix: literal},
		lexer.TokIdent:        {prefix: variable},
		lexer.TokSelf:         {prefix: selfExpr},
		lexer.TokParent:       {prefix: parentExpr},
		lexer.TokDef:          {prefix: lambda},
	}
}

func getRule(t lexer.TokenType) parseRule { return rules[t] }

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	rule := getRule(c.prev.Type)
	if rule.prefix == nil {
		c.errAt(c.prev, "expected expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(c, canAssign)

	for prec <= getRule(c.cur.Type).precedence {
		c.advance()
		infix := getRule(c.prev.Type).infix
		if infix == nil {
			c.errAt(c.prev, "unexpected token in expression")
			return
		}
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokAssign) {
		c.errAt(c.prev, "invalid assignment target")
	}
}

func number(c *Compiler, _ bool) {
	c.emitConstant(value.Number(parseNumberLiteral(c.prev.Lexeme)))
}

// parseNumberLiteral shares the prefix-aware parsing between the
// expression-position `number` rule and default-parameter literals.
func parseNumberLiteral(lex string) float64 {
	lex = strings.ReplaceAll(lex, "_", "")
	switch {
	case strings.HasPrefix(lex, "0b") || strings.HasPrefix(lex, "0B"):
		iv, _ := strconv.ParseInt(lex[2:], 2, 64)
		return float64(iv)
	case strings.HasPrefix(lex, "0c") || strings.HasPrefix(lex, "0C"):
		iv, _ := strconv.ParseInt(lex[2:], 8, 64)
		return float64(iv)
	case strings.HasPrefix(lex, "0x") || strings.HasPrefix(lex, "0X"):
		iv, _ := strconv.ParseInt(lex[2:], 16, 64)
		return float64(iv)
	default:
		n, _ := strconv.ParseFloat(lex, 64)
		return n
	}
}

func literal(c *Compiler, _ bool) {
	switch c.prev.Type {
	case lexer.TokTrue:
		c.emit(bytecode.OpTrue)
	case lexer.TokFalse:
		c.emit(bytecode.OpFalse)
	case lexer.TokNil:
		c.emit(bytecode.OpNil)
	case lexer.TokEmpty:
		c.emit(bytecode.OpEmpty)
	}
}

// stringLit compiles both a plain string and, when the lexer split a
// `"...${expr}..."` literal into TokInterpString segments, the whole
// interpolation chain: each literal chunk is pushed, then ADD folds
// the following expression's (auto-stringified) value in, left to
// right, terminating at the plain TokString segment the scanner
// resumes into once the matching `}` closes the embedded expression.
func stringLit(c *Compiler, _ bool) {
	c.emitConstant(c.internedString(c.prev.Lexeme))
	for c.prev.Type == lexer.TokInterpString {
		c.expression()
		c.emit(bytecode.OpAdd)
		if !c.match(lexer.TokString) && !c.match(lexer.TokInterpString) {
			c.errAt(c.cur, "unterminated string interpolation")
			return
		}
		c.emitConstant(c.internedString(c.prev.Lexeme))
		c.emit(bytecode.OpAdd)
	}
}

func grouping(c *Compiler, _ bool) {
	c.expression()
	c.consume(lexer.TokRParen, "expected ')' after expression")
}

func unary(c *Compiler, _ bool) {
	op := c.prev.Type
	c.parsePrecedence(precUnary)
	switch op {
	case lexer.TokMinus:
		c.emit(bytecode.OpNegate)
	case lexer.TokBang:
		c.emit(bytecode.OpNot)
	case lexer.TokTilde:
		c.emit(bytecode.OpBitNot)
	}
}

func binary(c *Compiler, _ bool) {
	op := c.prev.Type
	rule := getRule(op)
	c.parsePrecedence(rule.precedence + 1)
	switch op {
	case lexer.TokPlus:
		c.emit(bytecode.OpAdd)
	case lexer.TokMinus:
		c.emit(bytecode.OpSub)
	case lexer.TokStar:
		c.emit(bytecode.OpMul)
	case lexer.TokSlash:
		c.emit(bytecode.OpDiv)
	case lexer.TokSlashSlash:
		c.emit(bytecode.OpFloorDivide)
	case lexer.TokPercent:
		c.emit(bytecode.OpReminder)
	case lexer.TokStarStar:
		c.emit(bytecode.OpPow)
	case lexer.TokEq:
		c.emit(bytecode.OpEqual)
	case lexer.TokNotEq:
		c.emit(bytecode.OpEqual)
		c.emit(bytecode.OpNot)
	case lexer.TokGt:
		c.emit(bytecode.OpGreater)
	case lexer.TokGe:
		c.emit(bytecode.OpLess)
		c.emit(bytecode.OpNot)
	case lexer.TokLt:
		c.emit(bytecode.OpLess)
	case lexer.TokLe:
		c.emit(bytecode.OpGreater)
		c.emit(bytecode.OpNot)
	case lexer.TokAmp:
		c.emit(bytecode.OpBitAnd)
	case lexer.TokPipe:
		c.emit(bytecode.OpBitOr)
	case lexer.TokCaret:
		c.emit(bytecode.OpBitXor)
	case lexer.TokShl:
		c.emit(bytecode.OpLShift)
	case lexer.TokShr:
		c.emit(bytecode.OpRShift)
	}
}

func and_(c *Compiler, _ bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func or_(c *Compiler, _ bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emit(bytecode.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func ternary(c *Compiler, _ bool) {
	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emit(bytecode.OpPop)
	c.parsePrecedence(precAssignment)
	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emit(bytecode.OpPop)
	c.consume(lexer.TokColon, "expected ':' in conditional expression")
	c.parsePrecedence(precConditional)
	c.patchJump(elseJump)
}

func rangeExpr(c *Compiler, _ bool) {
	c.parsePrecedence(precRange + 1)
	c.emit(bytecode.OpRange)
}

func listLiteral(c *Compiler, _ bool) {
	count := 0
	c.skipNewlines()
	for !c.check(lexer.TokRBracket) {
		c.expression()
		count++
		c.skipNewlines()
		if !c.match(lexer.TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.skipNewlines()
	c.consume(lexer.TokRBracket, "expected ']' after list elements")
	c.emit(bytecode.OpList)
	c.emitU16(uint16(count))
}

func dictLiteral(c *Compiler, _ bool) {
	count := 0
	c.skipNewlines()
	for !c.check(lexer.TokRBrace) {
		// A bare identifier key is taken as its own name ({name: 1}).
		// Anything else, including a parenthesized variable, compiles
		// as a normal key expression.
		if c.check(lexer.TokIdent) {
			c.emitConstant(c.internedString(c.cur.Lexeme))
			c.advance()
		} else {
			c.expression()
		}
		c.consume(lexer.TokColon, "expected ':' after dict key")
		c.skipNewlines()
		c.expression()
		count++
		c.skipNewlines()
		if !c.match(lexer.TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.skipNewlines()
	c.consume(lexer.TokRBrace, "expected '}' after dict entries")
	c.emit(bytecode.OpDict)
	c.emitU16(uint16(count))
}

func call(c *Compiler, _ bool) {
	argc := c.argumentList(lexer.TokRParen)
	c.emit(bytecode.OpCall)
	c.emitByte(byte(argc))
}

func (c *Compiler) argumentList(end lexer.TokenType) int {
	count := 0
	c.skipNewlines()
	for !c.check(end) {
		c.expression()
		count++
		if count > 255 {
			c.errAt(c.prev, "too many arguments")
		}
		c.skipNewlines()
		if !c.match(lexer.TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.skipNewlines()
	c.consume(end, "expected closing delimiter after arguments")
	return count
}

func index(c *Compiler, canAssign bool) {
	if c.match(lexer.TokColon) {
		// `[:upper]`, slice with omitted lower bound.
		c.emit(bytecode.OpNil)
		c.expression()
		c.consume(lexer.TokRBracket, "expected ']' after slice")
		c.emit(bytecode.OpGetRangedIndex)
		return
	}
	c.expression()
	if c.match(lexer.TokComma) || c.match(lexer.TokColon) {
		// `a[lo,hi]` (and the `a[lo:hi]` spelling) slices rather than
		// indexes; bounds are clamped at runtime, never raising.
		if c.check(lexer.TokRBracket) {
			c.emit(bytecode.OpNil)
		} else {
			c.expression()
		}
		c.consume(lexer.TokRBracket, "expected ']' after slice")
		c.emit(bytecode.OpGetRangedIndex)
		return
	}
	c.consume(lexer.TokRBracket, "expected ']' after index")
	if canAssign && isAssignToken(c.cur.Type) {
		c.compileIndexAssign()
		return
	}
	c.emit(bytecode.OpGetIndex)
	c.emitByte(0)
}

// compileIndexAssign handles `a[i] = v` and `a[i] op= v`. The
// collection and index are already on the stack (one each). Plain
// assignment just needs a third value pushed before OpSetIndex; a
// compound op reads the current element with GET_INDEX's will_assign
// form, which leaves the collection and index in place beneath the
// loaded value so SET_INDEX can consume them again.
func (c *Compiler) compileIndexAssign() {
	op := c.cur.Type
	c.advance()
	if op == lexer.TokAssign {
		c.expression()
		c.emit(bytecode.OpSetIndex)
		return
	}
	c.emit(bytecode.OpGetIndex)
	c.emitByte(1)
	c.compoundTail(op)
	c.emit(bytecode.OpSetIndex)
}

func dot(c *Compiler, canAssign bool) {
	c.consume(lexer.TokIdent, "expected property name after '.'")
	nameIdx := c.identConstant(c.prev.Lexeme)
	c.dotRest(nameIdx, canAssign)
}

// dotRest compiles everything after `.name` with the receiver already
// on the stack: a fused invoke, an (compound) assignment, ++/--, or a
// plain property read. selfExpr shares it for the slow paths its
// SELF-fused opcodes don't cover.
func (c *Compiler) dotRest(nameIdx uint16, canAssign bool) {
	if c.match(lexer.TokLParen) {
		argc := c.argumentList(lexer.TokRParen)
		c.emit(bytecode.OpInvoke)
		c.emitU16(nameIdx)
		c.emitByte(byte(argc))
		return
	}

	if canAssign && (c.check(lexer.TokIncr) || c.check(lexer.TokDecr)) {
		binOp := bytecode.OpAdd
		if c.cur.Type == lexer.TokDecr {
			binOp = bytecode.OpSub
		}
		c.advance()
		c.emit(bytecode.OpDup)
		c.emit(bytecode.OpGetProperty)
		c.emitU16(nameIdx)
		c.emit(bytecode.OpOne)
		c.emit(binOp)
		c.emit(bytecode.OpSetProperty)
		c.emitU16(nameIdx)
		return
	}

	if canAssign && isAssignToken(c.cur.Type) {
		op := c.cur.Type
		if op == lexer.TokAssign {
			c.advance()
			c.expression()
			c.emit(bytecode.OpSetProperty)
			c.emitU16(nameIdx)
			return
		}
		c.advance()
		// Receiver is on the stack once; duplicate it so GetProperty
		// can consume a copy while the original survives for SetProperty.
		c.emit(bytecode.OpDup)
		c.emit(bytecode.OpGetProperty)
		c.emitU16(nameIdx)
		c.compoundTail(op)
		c.emit(bytecode.OpSetProperty)
		c.emitU16(nameIdx)
		return
	}

	c.emit(bytecode.OpGetProperty)
	c.emitU16(nameIdx)
}

func selfExpr(c *Compiler, canAssign bool) {
	if c.class == nil {
		c.errAt(c.prev, "'self' used outside a class method")
	}
	// `self.name(...)` and a plain `self.name` read fuse into the SELF
	// opcode forms; assignments and ++/-- fall back to the generic
	// property path with the receiver pushed explicitly.
	if c.match(lexer.TokDot) {
		c.consume(lexer.TokIdent, "expected property name after '.'")
		nameIdx := c.identConstant(c.prev.Lexeme)
		if c.match(lexer.TokLParen) {
			c.emit(bytecode.OpNil) // callee slot, rewritten to self at dispatch
			argc := c.argumentList(lexer.TokRParen)
			c.emit(bytecode.OpInvokeSelf)
			c.emitU16(nameIdx)
			c.emitByte(byte(argc))
			return
		}
		if canAssign && (isAssignToken(c.cur.Type) || c.check(lexer.TokIncr) || c.check(lexer.TokDecr)) {
			c.emit(bytecode.OpGetLocal)
			c.emitByte(0)
			c.dotRest(nameIdx, canAssign)
			return
		}
		c.emit(bytecode.OpGetSelfProperty)
		c.emitU16(nameIdx)
		return
	}
	c.emit(bytecode.OpGetLocal)
	c.emitByte(0)
}

func parentExpr(c *Compiler, _ bool) {
	if c.class == nil {
		c.errAt(c.prev, "'parent' used outside a class method")
		return
	}
	if !c.class.hasSuper {
		c.errAt(c.prev, "class has no parent class")
	}
	c.consume(lexer.TokDot, "expected '.' after 'parent'")
	c.consume(lexer.TokIdent, "expected parent method name")
	nameIdx := c.identConstant(c.prev.Lexeme)

	c.emit(bytecode.OpGetLocal)
	c.emitByte(0)
	superGet, _, superSlot := c.resolveVariable("parent")
	if c.match(lexer.TokLParen) {
		argc := c.argumentList(lexer.TokRParen)
		emitVarOp(c, superGet, superSlot)
		c.emit(bytecode.OpSuperInvoke)
		c.emitU16(nameIdx)
		c.emitByte(byte(argc))
		return
	}
	emitVarOp(c, superGet, superSlot)
	c.emit(bytecode.OpGetSuper)
	c.emitU16(nameIdx)
}

func variable(c *Compiler, canAssign bool) {
	name := c.prev.Lexeme
	getOp, setOp, slot := c.resolveVariable(name)

	if canAssign && (c.check(lexer.TokIncr) || c.check(lexer.TokDecr)) {
		op := bytecode.OpAdd
		if c.cur.Type == lexer.TokDecr {
			op = bytecode.OpSub
		}
		c.advance()
		emitVarOp(c, getOp, slot)
		c.emit(bytecode.OpOne)
		c.emit(op)
		emitVarOp(c, setOp, slot)
		return
	}

	if canAssign && isAssignToken(c.cur.Type) {
		op := c.cur.Type
		if op == lexer.TokAssign {
			c.advance()
			c.expression()
			emitVarOp(c, setOp, slot)
			return
		}
		c.advance()
		emitVarOp(c, getOp, slot)
		c.compoundTail(op)
		emitVarOp(c, setOp, slot)
		return
	}
	emitVarOp(c, getOp, slot)
}

func emitVarOp(c *Compiler, op bytecode.Op, slot int) {
	c.emit(op)
	if op == bytecode.OpGetGlobal || op == bytecode.OpSetGlobal {
		c.emitU16(uint16(slot))
	} else {
		c.emitByte(byte(slot))
	}
}

func isAssignToken(t lexer.TokenType) bool {
	switch t {
	case lexer.TokAssign, lexer.TokPlusEq, lexer.TokMinusEq, lexer.TokStarEq, lexer.TokStarStarEq,
		lexer.TokSlashEq, lexer.TokSlashSlashEq, lexer.TokPercentEq, lexer.TokAmpEq, lexer.TokPipeEq,
		lexer.TokCaretEq, lexer.TokShlEq, lexer.TokShrEq:
		return true
	}
	return false
}

// compoundTail compiles the right-hand side of a compound assignment
// (`+=` and friends) and emits the matching binary opcode, leaving the
// combined value on the stack for the caller's set to consume. The
// target's current value must already be on the stack.
func (c *Compiler) compoundTail(op lexer.TokenType) {
	c.expression()
	switch op {
	case lexer.TokPlusEq:
		c.emit(bytecode.OpAdd)
	case lexer.TokMinusEq:
		c.emit(bytecode.OpSub)
	case lexer.TokStarEq:
		c.emit(bytecode.OpMul)
	case lexer.TokStarStarEq:
		c.emit(bytecode.OpPow)
	case lexer.TokSlashEq:
		c.emit(bytecode.OpDiv)
	case lexer.TokSlashSlashEq:
		c.emit(bytecode.OpFloorDivide)
	case lexer.TokPercentEq:
		c.emit(bytecode.OpReminder)
	case lexer.TokAmpEq:
		c.emit(bytecode.OpBitAnd)
	case lexer.TokPipeEq:
		c.emit(bytecode.OpBitOr)
	case lexer.TokCaretEq:
		c.emit(bytecode.OpBitXor)
	case lexer.TokShlEq:
		c.emit(bytecode.OpLShift)
	case lexer.TokShrEq:
		c.emit(bytecode.OpRShift)
	}
}

func lambda(c *Compiler, _ bool) {
	c.functionBody(FuncFunction, "<anonymous>")
}
