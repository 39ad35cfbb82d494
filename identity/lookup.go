package identity

import "github.com/cespare/xxhash/v2"

// IndexID names an index uniquely within a schema ("table.index").
type IndexID string

// Lookup is a foreign-key lookup handle: an ordered value tuple bound to the
// index it is looked up through. The same tuple looked up through two indices
// never compares equal. Lookup is comparable and carries a hash computed once
// at construction.
type Lookup struct {
	index IndexID
	key   Key
	hash  uint64
}

// NewLookup binds key to index.
func NewLookup(index IndexID, key Key) Lookup {
	d := xxhash.New()
	_, _ = d.WriteString(string(index))
	_, _ = d.Write([]byte{0})
	var buf [48]byte
	_, _ = d.Write(key.AppendBinary(buf[:0]))
	return Lookup{index: index, key: key, hash: d.Sum64()}
}

// LookupOf is NewLookup(index, FromValues(values...)).
func LookupOf(index IndexID, values ...any) Lookup {
	return NewLookup(index, FromValues(values...))
}

func (l Lookup) Index() IndexID { return l.index }
func (l Lookup) Key() Key       { return l.key }
func (l Lookup) Hash() uint64   { return l.hash }

// Equal requires both the same index and elementwise-equal values.
func (l Lookup) Equal(other Lookup) bool {
	return l.hash == other.hash && l.index == other.index && l.key == other.key
}

func (l Lookup) String() string {
	return string(l.index) + l.key.String()
}
