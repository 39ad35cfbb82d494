package instance

import (
	"context"
	"fmt"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/row"
	"github.com/goliatone/go-rowcache/schema"
)

// Immutable is a read-only instance over a row snapshot. Its identity and the
// lookup key of every relation are computed once at construction, since the
// snapshot cannot change.
//
// An Immutable is safe for concurrent use.
type Immutable struct {
	snap      *row.Snapshot
	scope     Scope
	id        identity.Key
	relations []relationSlot
}

type relationSlot struct {
	key  identity.Key
	ok   bool // all relation columns are in the projection
	one  *One
	many *Many
}

// New wraps snap. scope is used for every relation lookup made through the
// instance.
func New(snap *row.Snapshot, scope Scope) *Immutable {
	table := snap.Table()
	inst := &Immutable{
		snap:      snap,
		scope:     scope,
		id:        identityOf(table, snap.Lookup),
		relations: make([]relationSlot, len(table.Relations())),
	}
	for _, rel := range table.Relations() {
		slot := &inst.relations[rel.Ordinal()]
		slot.key, slot.ok = relationKey(snap, rel)
		if !slot.ok {
			continue
		}
		if rel.IsToOne() {
			slot.one = NewOne(slot.key, rel, scope)
		} else {
			slot.many = NewMany(slot.key, rel, scope)
		}
	}
	return inst
}

func relationKey(snap *row.Snapshot, rel *schema.Relation) (identity.Key, bool) {
	cols := rel.Columns()
	vals := make([]any, len(cols))
	for i, c := range cols {
		v, ok := snap.Lookup(c)
		if !ok {
			return identity.Null, false
		}
		vals[i] = v
	}
	return identity.FromValues(vals...), true
}

func (r *Immutable) Snapshot() *row.Snapshot { return r.snap }
func (r *Immutable) Scope() Scope            { return r.scope }
func (r *Immutable) Table() *schema.Table    { return r.snap.Table() }
func (r *Immutable) Identity() identity.Key  { return r.id }

// HasIdentity reports whether the row carries primary key values.
func (r *Immutable) HasIdentity() bool { return !r.id.IsNull() }

// Get reads a value column. It panics when col is not in the snapshot.
func (r *Immutable) Get(col *schema.Column) any { return r.snap.Get(col) }

// GetByName is Get by column name.
func (r *Immutable) GetByName(name string) any {
	return r.snap.Get(r.Table().MustColumn(name))
}

// Values returns a fresh column name -> value map.
func (r *Immutable) Values() map[string]any { return r.snap.Map() }

func (r *Immutable) slot(rel *schema.Relation) *relationSlot {
	if rel.Table() != r.Table() {
		panic(fmt.Sprintf("instance: relation %s does not belong to table %s", rel, r.Table()))
	}
	s := &r.relations[rel.Ordinal()]
	if !s.ok {
		panic(fmt.Sprintf("instance: columns of relation %s are not part of the snapshot", rel))
	}
	return s
}

// RelationKey returns the key the other side of rel is looked up by.
func (r *Immutable) RelationKey(rel *schema.Relation) identity.Key {
	return r.slot(rel).key
}

// One resolves a to-one relation. A null foreign key resolves to nil without
// touching any cache.
func (r *Immutable) One(ctx context.Context, rel *schema.Relation) (*Immutable, error) {
	s := r.slot(rel)
	if s.one == nil {
		panic(fmt.Sprintf("instance: relation %s is %s", rel, rel.Kind()))
	}
	return s.one.Value(ctx)
}

// Many resolves a to-many relation, possibly to an empty set.
func (r *Immutable) Many(ctx context.Context, rel *schema.Relation) (*RowSet, error) {
	s := r.slot(rel)
	if s.many == nil {
		panic(fmt.Sprintf("instance: relation %s is %s", rel, rel.Kind()))
	}
	return s.many.Value(ctx)
}

// OneByName and ManyByName resolve relations by name.
func (r *Immutable) OneByName(ctx context.Context, name string) (*Immutable, error) {
	return r.One(ctx, r.Table().MustRelation(name))
}

func (r *Immutable) ManyByName(ctx context.Context, name string) (*RowSet, error) {
	return r.Many(ctx, r.Table().MustRelation(name))
}

// Edit starts a mutable copy. Writes to it never reach r's snapshot.
func (r *Immutable) Edit() *Mutable {
	return &Mutable{
		table:   r.Table(),
		overlay: row.NewOverlay(r.snap),
		origin:  r,
	}
}

// Release drops the relation caches' change subscriptions and cached
// targets. The instance stays usable; a later relation access fetches and
// subscribes again. Table caches release the instances they drop; relation
// caches of an unreachable instance unsubscribe once they are collected.
func (r *Immutable) Release() {
	for i := range r.relations {
		s := &r.relations[i]
		if s.one != nil {
			s.one.Release()
		}
		if s.many != nil {
			s.many.Release()
		}
	}
}

func (r *Immutable) String() string {
	return r.Table().Name() + r.id.String()
}
