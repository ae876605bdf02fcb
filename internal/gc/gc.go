// Package gc implements Blade's tracing collector: mark-and-sweep over
// the intrusive object list declared in internal/value, triggered from
// allocation once bytesAllocated crosses nextGC.
package gc

import "github.com/blade-lang/blade/internal/value"

// Roots is implemented by the VM: it knows the stack, call frames, open
// upvalues, globals, and the module/compiler chain the collector cannot
// see on its own.
type Roots interface {
	// MarkRoots pushes every GC root onto the collector's gray worklist.
	MarkRoots(c *Collector)
	// PruneInternTable runs after marking completes but before sweep,
	// so strings referenced only from the intern table can be dropped
	// from it (and then collected) rather than kept alive forever.
	PruneInternTable(c *Collector)
}

// Collector owns the intrusive allocation list and the gray worklist.
// bytesAllocated is a running estimate (Go doesn't expose real heap
// accounting per-object), sized by each Track call's caller-supplied
// estimate, close enough to drive the growth-factor trigger policy.
type Collector struct {
	head           *value.Object
	gray           []*value.Object
	bytesAllocated int64
	nextGC         int64
	growthFactor   int64
	minimumGC      int64
	protected      []value.Value
	roots          Roots
	// Disabled suspends collection triggering while allocations are
	// being made whose roots are not yet wired up.
	Disabled bool

	Collections int // count of completed cycles, surfaced for tests
}

func New(minimumBytes int64) *Collector {
	if minimumBytes <= 0 {
		minimumBytes = 1 << 20
	}
	return &Collector{
		nextGC:       minimumBytes,
		growthFactor: 2,
		minimumGC:    minimumBytes,
	}
}

func (c *Collector) SetRoots(r Roots) { c.roots = r }

// Track registers a freshly allocated object on the intrusive list and
// accounts for its estimated size.
func (c *Collector) Track(o *value.Object, size int) {
	o.Next = c.head
	o.Size = int32(size)
	c.head = o
	c.bytesAllocated += int64(size)
}

// ShouldCollect reports whether the next allocation should trigger a
// cycle; the VM calls this (then Collect) from every allocation path.
func (c *Collector) ShouldCollect() bool {
	return !c.Disabled && c.roots != nil && c.bytesAllocated >= c.nextGC
}

// GCProtect keeps a freshly allocated value reachable across a native
// call that hasn't yet stored it anywhere the normal root scan would
// see (e.g. before it's pushed back onto the VM stack).
func (c *Collector) GCProtect(v value.Value) {
	c.protected = append(c.protected, v)
}

// ClearProtection drops every value pushed since the call began; native
// dispatch calls this unconditionally on return.
func (c *Collector) ClearProtection() {
	c.protected = c.protected[:0]
}

// MarkValue marks v if it is a heap object not already marked, pushing
// it onto the gray worklist for later blackening.
func (c *Collector) MarkValue(v value.Value) {
	if !v.IsObject() {
		return
	}
	c.MarkObject(v.AsObject())
}

func (c *Collector) MarkObject(o *value.Object) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	c.gray = append(c.gray, o)
}

func (c *Collector) IsMarked(o *value.Object) bool {
	return o != nil && o.Marked
}

// Collect runs one full mark-and-sweep cycle.
func (c *Collector) Collect() {
	if c.roots == nil {
		return
	}
	c.gray = c.gray[:0]
	for _, p := range c.protected {
		c.MarkValue(p)
	}
	c.roots.MarkRoots(c)
	for len(c.gray) > 0 {
		o := c.gray[len(c.gray)-1]
		c.gray = c.gray[:len(c.gray)-1]
		c.blacken(o)
	}
	c.roots.PruneInternTable(c)
	c.sweep()
	if c.bytesAllocated*c.growthFactor > c.minimumGC {
		c.nextGC = c.bytesAllocated * c.growthFactor
	} else {
		c.nextGC = c.minimumGC
	}
	c.Collections++
}

// blacken traces a single object's outgoing references, marking
// everything it points to.
func (c *Collector) blacken(o *value.Object) {
	v := value.Obj(o)
	switch v.ObjType() {
	case value.ObjList:
		for _, e := range v.AsList().Elems {
			c.MarkValue(e)
		}
	case value.ObjDict:
		d := v.AsDict()
		for _, k := range d.Names {
			c.MarkValue(k)
		}
		d.Items.Each(func(k, val value.Value) {
			c.MarkValue(k)
			c.MarkValue(val)
		})
	case value.ObjFunction:
		fn := v.AsFunction()
		if fn.Blob != nil {
			for _, k := range fn.Blob.Constants {
				c.MarkValue(k)
			}
		}
		if fn.Module != nil {
			c.MarkObject(&fn.Module.Object)
		}
	case value.ObjClosure:
		cl := v.AsClosure()
		if cl.Fn != nil {
			c.MarkObject(&cl.Fn.Object)
		}
		for _, u := range cl.Upvalues {
			c.MarkObject(&u.Object)
		}
	case value.ObjUpvalue:
		// Location points either into the VM stack (open, also a root)
		// or at the upvalue's own Closed field; marking through it
		// covers both without distinguishing the two states.
		if loc := v.AsUpvalue().Location; loc != nil {
			c.MarkValue(*loc)
		}
	case value.ObjClass:
		cls := v.AsClass()
		if cls.Super != nil {
			c.MarkObject(&cls.Super.Object)
		}
		markTable(c, cls.Fields)
		markTable(c, cls.StaticFields)
		markTable(c, cls.Methods)
		markTable(c, cls.StaticMethods)
		c.MarkValue(cls.Initializer)
	case value.ObjInstance:
		inst := v.AsInstance()
		c.MarkObject(&inst.Class.Object)
		markTable(c, inst.Properties)
	case value.ObjBoundMethod:
		bm := v.AsBoundMethod()
		c.MarkValue(bm.Receiver)
		c.MarkValue(bm.Method)
	case value.ObjModule:
		m := v.AsModule()
		markTable(c, m.Values)
	case value.ObjSwitch:
		markTable(c, v.AsSwitch().Cases)
	}
}

func markTable(c *Collector, t *value.Table) {
	if t == nil {
		return
	}
	t.Each(func(k, v value.Value) {
		c.MarkValue(k)
		c.MarkValue(v)
	})
}

// sweep walks the intrusive list, frees (unlinks) every unmarked
// object, running its destructor if it owns an external resource, and
// clears the mark bit on every survivor for the next cycle.
func (c *Collector) sweep() {
	var prev *value.Object
	obj := c.head
	for obj != nil {
		if obj.Marked {
			obj.Marked = false
			prev = obj
			obj = obj.Next
			continue
		}
		unreached := obj
		obj = obj.Next
		if prev != nil {
			prev.Next = obj
		} else {
			c.head = obj
		}
		c.bytesAllocated -= int64(unreached.Size)
		destroy(unreached)
	}
}

func destroy(o *value.Object) {
	v := value.Obj(o)
	switch v.ObjType() {
	case value.ObjFile:
		f := v.AsFile()
		if f.Open && !f.Std && f.Handle != nil {
			f.Handle.Close()
			f.Open = false
		}
	case value.ObjForeign:
		fo := v.AsForeign()
		if fo.Destroy != nil {
			fo.Destroy(fo.Ptr)
		}
	}
}

// BytesAllocated exposes the running estimate, mostly for tests and the
// -j trace summary.
func (c *Collector) BytesAllocated() int64 { return c.bytesAllocated }
func (c *Collector) NextGC() int64         { return c.nextGC }
