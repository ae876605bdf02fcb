package vm

import (
	"unicode/utf8"

	"github.com/blade-lang/blade/internal/gc"
	"github.com/blade-lang/blade/internal/value"
)

// internedKey returns the canonical runtime Value for a compiler-emitted
// identifier constant, deduplicating against every other string of the
// same bytes seen so far. s is normally an unlinked String built by the
// compiler's own internedString helper, never GC-tracked on its own;
// the first occurrence becomes the canonical copy.
func (v *VM) internedKey(s *value.String) value.Value {
	if found := v.strings.FindString(s.Chars, s.Hash); found != nil {
		return value.Obj(&found.Object)
	}
	val := value.Obj(&s.Object)
	v.strings.Set(val, val)
	return val
}

// newString builds (or reuses) the interned String for s, tracking a
// brand-new allocation with the collector. Used by STRINGIFY, string
// concatenation, and native functions that hand back text.
func (v *VM) newString(s string) value.Value {
	hash := value.FNV1a32(s)
	if found := v.strings.FindString(s, hash); found != nil {
		return value.Obj(&found.Object)
	}
	str := &value.String{Chars: s, RuneLen: utf8.RuneCountInString(s), Hash: hash}
	v.gc.Track(&str.Object, 32+len(s))
	val := value.Obj(&str.Object)
	v.strings.Set(val, val)
	return val
}

// MarkRoots implements gc.Roots: the value stack up to sp, every
// frame's closure, every open upvalue, globals, cached modules, the
// running frames' module tables and any pending exception are all live
// by definition. The intern table is not a root (PruneInternTable
// drops its unmarked entries), and GCProtect'd values are marked by
// the collector itself before it calls this.
func (v *VM) MarkRoots(c *gc.Collector) {
	for i := 0; i < v.sp; i++ {
		c.MarkValue(v.stack[i])
	}
	for i := range v.frames {
		c.MarkObject(&v.frames[i].closure.Object)
	}
	for up := v.openUpvalues; up != nil; up = up.NextOpen {
		c.MarkObject(&up.Object)
		c.MarkValue(*up.Location)
	}
	v.globals.Each(func(k, val value.Value) {
		c.MarkValue(k)
		c.MarkValue(val)
	})
	v.modules.EachCached(func(m *value.Module) {
		c.MarkObject(&m.Object)
	})
	// Module values tables are mutable roots: the entry script's module
	// (created by the embedder, outside the collector's own allocation
	// list) accumulates globals at runtime, so its table is walked
	// directly every cycle rather than through the object graph.
	seen := map[*value.Module]bool{}
	for i := range v.frames {
		m := v.frames[i].closure.Fn.Module
		if m == nil || seen[m] {
			continue
		}
		seen[m] = true
		if m.Values != nil {
			m.Values.Each(func(k, val value.Value) {
				c.MarkValue(k)
				c.MarkValue(val)
			})
		}
	}
	if v.hasPending {
		c.MarkValue(v.pending)
	}
}

// PruneInternTable drops intern-table entries for strings the mark
// phase didn't reach through any other root, so the table doesn't pin
// every string ever seen for the life of the process.
func (v *VM) PruneInternTable(c *gc.Collector) {
	for _, k := range v.strings.Keys() {
		if !c.IsMarked(k.AsObject()) {
			v.strings.Delete(k)
		}
	}
}
