package value

import "testing"

func str(s string) Value {
	obj := &String{Chars: s, RuneLen: len([]rune(s)), Hash: FNV1a32(s)}
	return Obj(&obj.Object)
}

func TestTableSetGetOverwrite(t *testing.T) {
	tab := NewTable()
	if !tab.Set(Number(1), str("one")) {
		t.Fatal("first insert should report a new entry")
	}
	if tab.Set(Number(1), str("uno")) {
		t.Fatal("overwrite should not report a new entry")
	}
	got, ok := tab.Get(Number(1))
	if !ok || got.AsString().Chars != "uno" {
		t.Fatalf("got %v, want uno", ToString(got))
	}
}

func TestTableStringKeysCompareByContent(t *testing.T) {
	tab := NewTable()
	tab.Set(str("key"), Number(7))
	// A distinct allocation with the same bytes must find the entry.
	got, ok := tab.Get(str("key"))
	if !ok || got.AsNumber() != 7 {
		t.Fatal("content-equal string key should hit")
	}
}

func TestTableTombstonesKeepProbeChainsIntact(t *testing.T) {
	tab := NewTable()
	keys := make([]Value, 32)
	for i := range keys {
		keys[i] = Number(float64(i))
		tab.Set(keys[i], Number(float64(i*10)))
	}
	for i := 0; i < 16; i++ {
		if !tab.Delete(keys[i]) {
			t.Fatalf("delete %d failed", i)
		}
	}
	for i := 16; i < 32; i++ {
		got, ok := tab.Get(keys[i])
		if !ok || got.AsNumber() != float64(i*10) {
			t.Fatalf("key %d lost after deletions", i)
		}
	}
	// Deleted slots must be reusable without growing.
	for i := 0; i < 16; i++ {
		tab.Set(keys[i], Number(float64(-i)))
	}
	if got, ok := tab.Get(keys[3]); !ok || got.AsNumber() != -3 {
		t.Fatal("tombstone slot not reused correctly")
	}
}

func TestFindStringToleratesUninternedBytes(t *testing.T) {
	tab := NewTable()
	s := str("interned")
	tab.Set(s, s)
	found := tab.FindString("interned", FNV1a32("interned"))
	if found == nil || found.Chars != "interned" {
		t.Fatal("FindString should locate the entry by raw bytes")
	}
	if tab.FindString("missing", FNV1a32("missing")) != nil {
		t.Fatal("FindString should miss for absent content")
	}
}

func TestValueEqualityAndHashing(t *testing.T) {
	if !Equal(Nil, Nil) || Equal(Nil, Empty) {
		t.Fatal("nil/empty identity rules violated")
	}
	if !Equal(Number(2), Number(2)) || Equal(Number(2), Number(3)) {
		t.Fatal("number equality broken")
	}
	if !Equal(str("a"), str("a")) {
		t.Fatal("strings must compare by content")
	}
	l1 := &List{}
	l2 := &List{}
	if Equal(Obj(&l1.Object), Obj(&l2.Object)) {
		t.Fatal("distinct lists must not be equal")
	}
	if Hash(Number(5)) == Hash(Number(6)) {
		t.Fatal("suspicious hash collision between adjacent integers")
	}
}

func TestNumberFormattingRoundTrips(t *testing.T) {
	cases := map[float64]string{
		0:     "0",
		42:    "42",
		-3:    "-3",
		2.5:   "2.5",
		1e21:  "1e+21",
		0.125: "0.125",
	}
	for n, want := range cases {
		if got := ToString(Number(n)); got != want {
			t.Fatalf("ToString(%v) = %q, want %q", n, got, want)
		}
	}
}

func TestFalseyValues(t *testing.T) {
	for _, v := range []Value{Nil, Empty, False, Number(0), str("")} {
		if !IsFalsey(v) {
			t.Fatalf("%s should be falsey", ToString(v))
		}
	}
	for _, v := range []Value{True, Number(1), str("x")} {
		if IsFalsey(v) {
			t.Fatalf("%s should be truthy", ToString(v))
		}
	}
}
