package instance

import (
	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/row"
	"github.com/goliatone/go-rowcache/schema"
)

// Mutable is an editable instance. Writes land in a mutation overlay; the
// baseline snapshot, which may be shared with immutable instances, is never
// modified.
//
// A Mutable is owned by one caller and is not safe for concurrent use.
type Mutable struct {
	table   *schema.Table
	overlay *row.Overlay
	origin  *Immutable
	isNew   bool
	deleted bool
}

// NewMutable starts a record that does not exist in the store yet.
func NewMutable(table *schema.Table) *Mutable {
	return &Mutable{
		table:   table,
		overlay: row.NewOverlay(row.Empty(table)),
		isNew:   true,
	}
}

func (m *Mutable) Table() *schema.Table { return m.table }

// Origin is the immutable instance m was derived from, or nil.
func (m *Mutable) Origin() *Immutable { return m.origin }

// Baseline is the snapshot the overlay currently sits on.
func (m *Mutable) Baseline() *row.Snapshot { return m.overlay.Base() }

func (m *Mutable) Get(col *schema.Column) any { return m.overlay.Get(col) }

func (m *Mutable) GetByName(name string) any {
	return m.overlay.Get(m.table.MustColumn(name))
}

// Set writes col. The value is converted to the column's type.
func (m *Mutable) Set(col *schema.Column, v any) error {
	return m.overlay.Set(col, v)
}

func (m *Mutable) SetByName(name string, v any) error {
	return m.overlay.Set(m.table.MustColumn(name), v)
}

// Changes lists the written columns, including writes of unchanged values.
func (m *Mutable) Changes() []row.Change { return m.overlay.Changes() }

func (m *Mutable) IsChanged(col *schema.Column) bool { return m.overlay.IsChanged(col) }

// IsNew reports whether m was created without a stored baseline row.
func (m *Mutable) IsNew() bool { return m.isNew }

func (m *Mutable) IsDeleted() bool { return m.deleted }

// MarkDeleted flags the record for deletion on the next write-back.
func (m *Mutable) MarkDeleted() { m.deleted = true }

// Reset discards every write and the deletion mark.
func (m *Mutable) Reset() {
	m.overlay.Reset()
	m.deleted = false
}

// ResetTo adopts base, typically the row as re-read after a write-back, and
// discards every write. Other holders of the previous baseline are unaffected.
func (m *Mutable) ResetTo(base *row.Snapshot) {
	m.overlay.ResetTo(base)
	m.isNew = false
	m.deleted = false
}

// Merged returns a snapshot of the current values.
func (m *Mutable) Merged() *row.Snapshot { return m.overlay.Merged() }

func (m *Mutable) Identity() identity.Key {
	return identityOf(m.table, m.overlay.Lookup)
}

func (m *Mutable) HasIdentity() bool { return !m.Identity().IsNull() }

// Values returns a fresh column name -> value map of the current values.
func (m *Mutable) Values() map[string]any { return m.overlay.Merged().Map() }
