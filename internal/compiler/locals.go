package compiler

import "github.com/blade-lang/blade/internal/bytecode"

func (c *Compiler) beginScope() { c.fr.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fr.scopeDepth--
	pending := 0
	flush := func() {
		switch {
		case pending == 1:
			c.emit(bytecode.OpPop)
		case pending > 1:
			c.emit(bytecode.OpPopN)
			c.emitByte(byte(pending))
		}
		pending = 0
	}
	for len(c.fr.locals) > 0 && c.fr.locals[len(c.fr.locals)-1].depth > c.fr.scopeDepth {
		last := c.fr.locals[len(c.fr.locals)-1]
		if last.isCaptured {
			flush()
			c.emit(bytecode.OpCloseUpvalue)
		} else {
			pending++
		}
		c.fr.locals = c.fr.locals[:len(c.fr.locals)-1]
	}
	flush()
}

// declareLocal registers name in the current scope; duplicate names in
// the same scope are a compile error (shadowing across scopes is
// allowed).
func (c *Compiler) declareLocal(name string, isConst bool) {
	if c.fr.scopeDepth == 0 {
		return
	}
	for i := len(c.fr.locals) - 1; i >= 0; i-- {
		l := c.fr.locals[i]
		if l.depth != -1 && l.depth < c.fr.scopeDepth {
			break
		}
		if l.name == name {
			c.errAt(c.prev, "variable with this name already declared in this scope")
			return
		}
	}
	if len(c.fr.locals) >= 256 {
		c.errAt(c.prev, "too many local variables in one function")
		return
	}
	c.fr.locals = append(c.fr.locals, local{name: name, depth: -1, isConst: isConst})
}

func (c *Compiler) markInitialized() {
	if c.fr.scopeDepth == 0 {
		return
	}
	c.fr.locals[len(c.fr.locals)-1].depth = c.fr.scopeDepth
}

// resolveLocal searches this frame's own locals; returns -1 if not
// found here (the caller then tries resolveUpvalue on the enclosing
// frame chain). Locals still mid-initialization (depth -1) are
// skipped, so `var a = a` reads the enclosing binding instead of the
// slot being defined.
func resolveLocal(fr *frame, name string) int {
	for i := len(fr.locals) - 1; i >= 0; i-- {
		if fr.locals[i].depth != -1 && fr.locals[i].name == name {
			return i
		}
	}
	return -1
}

func addUpvalue(fr *frame, index byte, isLocal bool) int {
	for i, u := range fr.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	fr.upvalues = append(fr.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fr.upvalues) - 1
}

// resolveUpvalue walks the enclosing frame chain, threading a chain of
// upvalue slots through every intermediate frame so a deeply nested
// closure can still reach an outer local.
func resolveUpvalue(fr *frame, name string) int {
	if fr.enclosing == nil {
		return -1
	}
	if idx := resolveLocal(fr.enclosing, name); idx != -1 {
		fr.enclosing.locals[idx].isCaptured = true
		return addUpvalue(fr, byte(idx), true)
	}
	if idx := resolveUpvalue(fr.enclosing, name); idx != -1 {
		return addUpvalue(fr, byte(idx), false)
	}
	return -1
}

// resolveVariable returns the get/set opcode pair and operand for an
// identifier, resolving local, then upvalue, then global in that
// order; the caller emits whichever of the two it needs.
func (c *Compiler) resolveVariable(name string) (getOp, setOp bytecode.Op, slot int) {
	if idx := resolveLocal(c.fr, name); idx != -1 {
		return bytecode.OpGetLocal, bytecode.OpSetLocal, idx
	}
	if idx := resolveUpvalue(c.fr, name); idx != -1 {
		return bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, idx
	}
	return bytecode.OpGetGlobal, bytecode.OpSetGlobal, int(c.identConstant(name))
}
