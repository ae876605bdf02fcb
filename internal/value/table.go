package value

// Table is the open-addressed, linear-probing value-to-value map used
// for globals, dict storage, class method/field tables, and module
// exports. Max load factor is 6/7; growth doubles capacity (minimum 8).
type Table struct {
	entries []entry
	count   int // live entries, including tombstones
}

type entry struct {
	key   Value
	value Value
	used  bool
	tomb  bool
}

const tableMaxLoad = 6.0 / 7.0
const tableMinCapacity = 8

func NewTable() *Table {
	return &Table{}
}

func (t *Table) Len() int {
	return t.count
}

// findEntry returns the slot a key belongs in: an exact match, the
// first tombstone seen along the probe chain (so inserts can reuse it),
// or the first genuinely empty slot if the key is absent and no
// tombstone was seen.
func findEntry(entries []entry, key Value) int {
	cap := len(entries)
	idx := int(Hash(key) % uint32(cap))
	tombstone := -1
	for i := 0; i < cap; i++ {
		e := &entries[idx]
		if !e.used {
			if !e.tomb {
				if tombstone != -1 {
					return tombstone
				}
				return idx
			}
			if tombstone == -1 {
				tombstone = idx
			}
		} else if Equal(e.key, key) {
			return idx
		}
		idx = (idx + 1) % cap
	}
	// Table is saturated with tombstones and no empty slot remains;
	// the growth policy keeps this from happening for Set, and Get
	// callers check `used` on the returned (tombstone) slot and treat
	// it as a miss.
	return tombstone
}

func (t *Table) adjustCapacity(newCap int) {
	newEntries := make([]entry, newCap)
	t.count = 0
	for _, e := range t.entries {
		if !e.used {
			continue
		}
		idx := findEntry(newEntries, e.key)
		newEntries[idx] = entry{key: e.key, value: e.value, used: true}
		t.count++
	}
	t.entries = newEntries
}

// Get returns the stored value and whether the key was present.
func (t *Table) Get(key Value) (Value, bool) {
	if len(t.entries) == 0 {
		return Nil, false
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	if !e.used {
		return Nil, false
	}
	return e.value, true
}

// Set inserts or overwrites key -> value. Returns true if this created
// a brand-new entry (as opposed to overwriting one).
func (t *Table) Set(key Value, val Value) bool {
	if float64(t.count+1) > float64(len(t.entries))*tableMaxLoad {
		newCap := tableMinCapacity
		if len(t.entries) > 0 {
			newCap = len(t.entries) * 2
		}
		t.adjustCapacity(newCap)
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	isNew := !e.used
	if isNew && !e.tomb {
		t.count++
	}
	*e = entry{key: key, value: val, used: true}
	return isNew
}

// Delete removes key, leaving a tombstone so later probe chains that
// passed through this slot remain intact.
func (t *Table) Delete(key Value) bool {
	if len(t.entries) == 0 {
		return false
	}
	idx := findEntry(t.entries, key)
	e := &t.entries[idx]
	if !e.used {
		return false
	}
	*e = entry{used: false, tomb: true}
	return true
}

// FindString tolerates raw, non-interned bytes: it's used by string
// interning itself to look up a candidate before an allocation is made.
func (t *Table) FindString(chars string, hash uint32) *String {
	if len(t.entries) == 0 {
		return nil
	}
	cap := len(t.entries)
	idx := int(hash % uint32(cap))
	for i := 0; i < cap; i++ {
		e := &t.entries[idx]
		if !e.used {
			if !e.tomb {
				return nil
			}
		} else if e.key.IsString() {
			s := e.key.AsString()
			if s.Hash == hash && s.Chars == chars {
				return s
			}
		}
		idx = (idx + 1) % cap
	}
	return nil
}

// Keys returns every live key, in probe-table order (not insertion
// order — callers needing insertion order use Dict.Names instead).
func (t *Table) Keys() []Value {
	out := make([]Value, 0, t.count)
	for _, e := range t.entries {
		if e.used {
			out = append(out, e.key)
		}
	}
	return out
}

// Each calls fn for every live key/value pair.
func (t *Table) Each(fn func(k, v Value)) {
	for _, e := range t.entries {
		if e.used {
			fn(e.key, e.value)
		}
	}
}

// AddAll copies every entry of src into t, used by class inheritance
// (copying parent fields/methods) and IMPORT_ALL.
func (t *Table) AddAll(src *Table) {
	src.Each(func(k, v Value) {
		t.Set(k, v)
	})
}
