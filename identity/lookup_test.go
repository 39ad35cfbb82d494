package identity

import "testing"

func TestLookup_IndexDisambiguates(t *testing.T) {
	a := LookupOf("orders.ix_user", int64(1))
	b := LookupOf("orders.ix_user", int64(1))
	c := LookupOf("orders.ix_reviewer", int64(1))

	if !a.Equal(b) || a != b {
		t.Fatal("same index and values should be equal")
	}
	if a.Hash() != b.Hash() {
		t.Fatal("equal lookups should share a hash")
	}
	if a.Equal(c) || a == c {
		t.Fatal("same values through different indices must differ")
	}
}

func TestLookup_ElementwiseValues(t *testing.T) {
	a := LookupOf("t.ix", "x", int32(1))
	b := LookupOf("t.ix", "x", int32(2))
	if a.Equal(b) {
		t.Fatal("different tuples should differ")
	}
	if got := a.Key(); got != FromValues("x", int32(1)) {
		t.Fatalf("Key() = %v", got)
	}
	if a.Index() != "t.ix" {
		t.Fatalf("Index() = %v", a.Index())
	}
}

func TestLookup_AsMapKey(t *testing.T) {
	m := map[Lookup]int{}
	m[LookupOf("t.ix", []byte("k"))] = 1
	if m[LookupOf("t.ix", []byte("k"))] != 1 {
		t.Fatal("lookup built from equal bytes did not hit the map entry")
	}
}
