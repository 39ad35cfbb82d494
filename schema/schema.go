package schema

import (
	"fmt"

	"github.com/goliatone/go-rowcache/identity"
)

// Schema is an immutable, fully resolved description of a set of tables and
// the relations between them. Build one with Builder.
type Schema struct {
	tables []*Table
	byName map[string]*Table
}

func (s *Schema) Tables() []*Table { return s.tables }

// Table returns the named table, or nil.
func (s *Schema) Table(name string) *Table { return s.byName[name] }

// MustTable is Table that panics on unknown names.
func (s *Schema) MustTable(name string) *Table {
	t := s.byName[name]
	if t == nil {
		panic(fmt.Sprintf("schema: unknown table %q", name))
	}
	return t
}

// Table describes one table. Slices returned by its accessors are shared and
// must not be modified.
type Table struct {
	schema    *Schema
	name      string
	columns   []*Column
	byName    map[string]*Column
	pk        []*Column
	indexes   []*Index
	relations []*Relation
	relByName map[string]*Relation
}

func (t *Table) Schema() *Schema            { return t.schema }
func (t *Table) Name() string               { return t.name }
func (t *Table) Columns() []*Column         { return t.columns }
func (t *Table) PrimaryKey() []*Column      { return t.pk }
func (t *Table) Indexes() []*Index          { return t.indexes }
func (t *Table) Relations() []*Relation     { return t.relations }
func (t *Table) Column(name string) *Column { return t.byName[name] }
func (t *Table) Relation(name string) *Relation {
	return t.relByName[name]
}

// MustColumn is Column that panics on unknown names.
func (t *Table) MustColumn(name string) *Column {
	c := t.byName[name]
	if c == nil {
		panic(fmt.Sprintf("schema: table %s has no column %q", t.name, name))
	}
	return c
}

// MustRelation is Relation that panics on unknown names.
func (t *Table) MustRelation(name string) *Relation {
	r := t.relByName[name]
	if r == nil {
		panic(fmt.Sprintf("schema: table %s has no relation %q", t.name, name))
	}
	return r
}

// PrimaryIndex returns the index over the primary key columns.
func (t *Table) PrimaryIndex() *Index {
	for _, idx := range t.indexes {
		if idx.primary {
			return idx
		}
	}
	return nil
}

// AutoIncrementColumn returns the single auto-increment primary key column, if
// the table has one.
func (t *Table) AutoIncrementColumn() *Column {
	if len(t.pk) == 1 && t.pk[0].autoIncrement {
		return t.pk[0]
	}
	return nil
}

func (t *Table) String() string { return t.name }

// Column describes one column of a table.
type Column struct {
	table         *Table
	name          string
	typ           ColumnType
	nullable      bool
	autoIncrement bool
	ordinal       int
}

func (c *Column) Table() *Table         { return c.table }
func (c *Column) Name() string          { return c.name }
func (c *Column) Type() ColumnType      { return c.typ }
func (c *Column) Nullable() bool        { return c.nullable }
func (c *Column) AutoIncrement() bool   { return c.autoIncrement }
func (c *Column) Ordinal() int          { return c.ordinal }
func (c *Column) QualifiedName() string { return c.table.name + "." + c.name }
func (c *Column) String() string        { return c.QualifiedName() }

// Coerce converts v into the column's Go representation.
func (c *Column) Coerce(v any) (any, error) {
	out, err := c.typ.Coerce(v)
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", c.QualifiedName(), err)
	}
	return out, nil
}

// Index describes an ordered set of columns that rows can be looked up by.
type Index struct {
	table   *Table
	name    string
	columns []*Column
	unique  bool
	primary bool
}

func (i *Index) Table() *Table      { return i.table }
func (i *Index) Name() string       { return i.name }
func (i *Index) Columns() []*Column { return i.columns }
func (i *Index) Unique() bool       { return i.unique }
func (i *Index) Primary() bool      { return i.primary }

// ID identifies the index within its schema.
func (i *Index) ID() identity.IndexID {
	return identity.IndexID(i.table.name + "." + i.name)
}

// RelationKind tells whether a relation resolves to at most one row or to a
// set of rows.
type RelationKind uint8

const (
	ToOne RelationKind = iota + 1
	ToMany
)

func (k RelationKind) String() string {
	switch k {
	case ToOne:
		return "to-one"
	case ToMany:
		return "to-many"
	default:
		return fmt.Sprintf("RelationKind(%d)", uint8(k))
	}
}

// Relation is a navigation property. Columns are the local columns whose
// values form the lookup key; TargetColumns are the matching columns on the
// target table, covered by TargetIndex.
type Relation struct {
	table         *Table
	name          string
	kind          RelationKind
	columns       []*Column
	target        *Table
	targetColumns []*Column
	targetIndex   *Index
	otherSide     *Relation
	ordinal       int
}

func (r *Relation) Table() *Table            { return r.table }
func (r *Relation) Name() string             { return r.name }
func (r *Relation) Kind() RelationKind       { return r.kind }
func (r *Relation) IsToOne() bool            { return r.kind == ToOne }
func (r *Relation) IsToMany() bool           { return r.kind == ToMany }
func (r *Relation) Columns() []*Column       { return r.columns }
func (r *Relation) Target() *Table           { return r.target }
func (r *Relation) TargetColumns() []*Column { return r.targetColumns }
func (r *Relation) TargetIndex() *Index      { return r.targetIndex }
func (r *Relation) OtherSide() *Relation     { return r.otherSide }

// Ordinal is the position of the relation within its table's Relations.
func (r *Relation) Ordinal() int { return r.ordinal }

func (r *Relation) String() string { return r.table.name + "." + r.name }
