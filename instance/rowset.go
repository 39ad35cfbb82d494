package instance

import (
	"iter"
	"slices"

	"github.com/goliatone/go-rowcache/identity"
)

// RowSet is an immutable identity-keyed set of rows that keeps fetch order.
type RowSet struct {
	keys []identity.Key
	rows map[identity.Key]*Immutable
}

var emptyRowSet = &RowSet{}

// NewRowSet indexes rows by identity. Later duplicates of an identity are
// dropped.
func NewRowSet(rows []*Immutable) *RowSet {
	if len(rows) == 0 {
		return emptyRowSet
	}
	s := &RowSet{
		keys: make([]identity.Key, 0, len(rows)),
		rows: make(map[identity.Key]*Immutable, len(rows)),
	}
	for _, r := range rows {
		id := r.Identity()
		if _, dup := s.rows[id]; dup {
			continue
		}
		s.keys = append(s.keys, id)
		s.rows[id] = r
	}
	return s
}

func (s *RowSet) Len() int { return len(s.keys) }

func (s *RowSet) Get(key identity.Key) (*Immutable, bool) {
	r, ok := s.rows[key]
	return r, ok
}

func (s *RowSet) Contains(key identity.Key) bool {
	_, ok := s.rows[key]
	return ok
}

func (s *RowSet) Keys() []identity.Key { return slices.Clone(s.keys) }

// Values returns the rows in fetch order.
func (s *RowSet) Values() []*Immutable {
	out := make([]*Immutable, len(s.keys))
	for i, k := range s.keys {
		out[i] = s.rows[k]
	}
	return out
}

// Map returns a fresh identity -> row map.
func (s *RowSet) Map() map[identity.Key]*Immutable {
	out := make(map[identity.Key]*Immutable, len(s.rows))
	for k, v := range s.rows {
		out[k] = v
	}
	return out
}

func (s *RowSet) All() iter.Seq2[identity.Key, *Immutable] {
	return func(yield func(identity.Key, *Immutable) bool) {
		for _, k := range s.keys {
			if !yield(k, s.rows[k]) {
				return
			}
		}
	}
}
