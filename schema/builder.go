package schema

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Builder accumulates table and relation declarations and resolves them into
// an immutable Schema.
//
//	b := schema.NewBuilder()
//	b.Table("users", func(t *schema.TableBuilder) {
//		t.Column("id", schema.Int64).PrimaryKey().AutoIncrement()
//		t.Column("name", schema.String)
//	})
//	b.Table("orders", func(t *schema.TableBuilder) {
//		t.Column("id", schema.Int64).PrimaryKey().AutoIncrement()
//		t.Column("user_id", schema.Int64).Nullable()
//	})
//	b.Reference("orders", []string{"user_id"}, "users") // orders.user, users.orders
//	s, err := b.Build()
type Builder struct {
	tables []*TableBuilder
	refs   []*refSpec
}

// NewBuilder returns an empty schema builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// TableBuilder collects the columns and indexes of one table.
type TableBuilder struct {
	name    string
	columns []*ColumnBuilder
	indexes []indexSpec
}

// ColumnBuilder configures one column.
type ColumnBuilder struct {
	name          string
	typ           ColumnType
	nullable      bool
	primaryKey    bool
	autoIncrement bool
}

type indexSpec struct {
	name    string
	unique  bool
	columns []string
}

type refSpec struct {
	from    string
	columns []string
	to      string
	name    string
	inverse string
}

// RefOption customizes a Reference declaration.
type RefOption func(*refSpec)

// Named sets the name of the to-one relation on the referencing table.
func Named(name string) RefOption {
	return func(r *refSpec) { r.name = name }
}

// Inverse sets the name of the relation created on the referenced table.
func Inverse(name string) RefOption {
	return func(r *refSpec) { r.inverse = name }
}

// Table declares a table; fn declares its columns and indexes.
func (b *Builder) Table(name string, fn func(t *TableBuilder)) *Builder {
	tb := &TableBuilder{name: name}
	if fn != nil {
		fn(tb)
	}
	b.tables = append(b.tables, tb)
	return b
}

// Reference declares that columns of table from reference the primary key of
// table to. It produces a to-one relation on from and its other side on to:
// to-many, or to-one when columns are covered by a unique index.
func (b *Builder) Reference(from string, columns []string, to string, opts ...RefOption) *Builder {
	r := &refSpec{from: from, columns: append([]string(nil), columns...), to: to}
	for _, opt := range opts {
		opt(r)
	}
	b.refs = append(b.refs, r)
	return b
}

// Column declares a column. Columns keep their declaration order.
func (t *TableBuilder) Column(name string, typ ColumnType) *ColumnBuilder {
	c := &ColumnBuilder{name: name, typ: typ}
	t.columns = append(t.columns, c)
	return c
}

// Index declares a secondary index.
func (t *TableBuilder) Index(name string, unique bool, columns ...string) *TableBuilder {
	t.indexes = append(t.indexes, indexSpec{name: name, unique: unique, columns: columns})
	return t
}

func (c *ColumnBuilder) Nullable() *ColumnBuilder {
	c.nullable = true
	return c
}

func (c *ColumnBuilder) PrimaryKey() *ColumnBuilder {
	c.primaryKey = true
	return c
}

func (c *ColumnBuilder) AutoIncrement() *ColumnBuilder {
	c.autoIncrement = true
	return c
}

func (t *TableBuilder) validate() error {
	var pk int
	for _, c := range t.columns {
		if c.primaryKey {
			pk++
		}
	}
	errs := validation.Errors{
		"name":    validation.Validate(t.name, validation.Required, validation.Match(identRe)),
		"columns": validation.Validate(t.columns, validation.Required),
	}
	if len(t.columns) > 0 && pk == 0 {
		errs["primary_key"] = validation.NewError("validation_primary_key", "at least one primary key column is required")
	}
	seen := map[string]bool{}
	for _, c := range t.columns {
		key := "column." + c.name
		if err := validation.Validate(c.name, validation.Required, validation.Match(identRe)); err != nil {
			errs[key] = err
			continue
		}
		if seen[c.name] {
			errs[key] = validation.NewError("validation_duplicate", "duplicate column")
			continue
		}
		seen[c.name] = true
		if err := validation.Validate(c.typ, validation.By(validColumnType)); err != nil {
			errs[key] = err
		}
		if c.primaryKey && c.nullable {
			errs[key] = validation.NewError("validation_nullable_pk", "primary key columns cannot be nullable")
		}
	}
	return errs.Filter()
}

func validColumnType(v any) error {
	if t, ok := v.(ColumnType); !ok || !t.Valid() {
		return validation.NewError("validation_column_type", "unknown column type")
	}
	return nil
}

func schemaError(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryValidation).
		WithTextCode("SCHEMA_INVALID")
}

// Build validates the declarations and resolves them into a Schema.
func (b *Builder) Build() (*Schema, error) {
	s := &Schema{byName: make(map[string]*Table, len(b.tables))}

	for _, tb := range b.tables {
		if err := tb.validate(); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid table "+tb.name).
				WithTextCode("SCHEMA_INVALID")
		}
		if s.byName[tb.name] != nil {
			return nil, schemaError("duplicate table %q", tb.name)
		}
		t, err := tb.build(s)
		if err != nil {
			return nil, err
		}
		s.tables = append(s.tables, t)
		s.byName[t.name] = t
	}

	for _, ref := range b.refs {
		if err := s.resolveReference(ref); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (tb *TableBuilder) build(s *Schema) (*Table, error) {
	t := &Table{
		schema:    s,
		name:      tb.name,
		byName:    make(map[string]*Column, len(tb.columns)),
		relByName: make(map[string]*Relation),
	}
	for i, cb := range tb.columns {
		c := &Column{
			table:         t,
			name:          cb.name,
			typ:           cb.typ,
			nullable:      cb.nullable,
			autoIncrement: cb.autoIncrement,
			ordinal:       i,
		}
		t.columns = append(t.columns, c)
		t.byName[c.name] = c
		if cb.primaryKey {
			t.pk = append(t.pk, c)
		}
	}
	t.indexes = append(t.indexes, &Index{table: t, name: "pk", columns: t.pk, unique: true, primary: true})
	for _, is := range tb.indexes {
		cols, err := t.resolveColumns(is.columns)
		if err != nil {
			return nil, err
		}
		if t.indexByName(is.name) != nil {
			return nil, schemaError("table %s: duplicate index %q", t.name, is.name)
		}
		t.indexes = append(t.indexes, &Index{table: t, name: is.name, columns: cols, unique: is.unique})
	}
	return t, nil
}

func (t *Table) resolveColumns(names []string) ([]*Column, error) {
	if len(names) == 0 {
		return nil, schemaError("table %s: empty column list", t.name)
	}
	cols := make([]*Column, len(names))
	for i, n := range names {
		c := t.byName[n]
		if c == nil {
			return nil, schemaError("table %s: unknown column %q", t.name, n)
		}
		cols[i] = c
	}
	return cols, nil
}

func (t *Table) indexByName(name string) *Index {
	for _, idx := range t.indexes {
		if idx.name == name {
			return idx
		}
	}
	return nil
}

// indexOver finds an index whose columns are exactly cols, in order.
func (t *Table) indexOver(cols []*Column) *Index {
	for _, idx := range t.indexes {
		if len(idx.columns) != len(cols) {
			continue
		}
		match := true
		for i := range cols {
			if idx.columns[i] != cols[i] {
				match = false
				break
			}
		}
		if match {
			return idx
		}
	}
	return nil
}

func (t *Table) addRelation(r *Relation) error {
	if t.relByName[r.name] != nil || t.byName[r.name] != nil {
		return schemaError("table %s: relation name %q is already taken", t.name, r.name)
	}
	if err := validation.Validate(r.name, validation.Required, validation.Match(identRe)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid relation name on "+t.name).
			WithTextCode("SCHEMA_INVALID")
	}
	r.ordinal = len(t.relations)
	t.relations = append(t.relations, r)
	t.relByName[r.name] = r
	return nil
}

func (s *Schema) resolveReference(ref *refSpec) error {
	from, to := s.byName[ref.from], s.byName[ref.to]
	if from == nil || to == nil {
		return schemaError("reference %s -> %s: unknown table", ref.from, ref.to)
	}
	fk, err := from.resolveColumns(ref.columns)
	if err != nil {
		return err
	}
	if len(fk) != len(to.pk) {
		return schemaError("reference %s(%s) -> %s: expected %d columns", from.name, strings.Join(ref.columns, ","), to.name, len(to.pk))
	}
	for i := range fk {
		if fk[i].typ != to.pk[i].typ {
			return schemaError("reference %s -> %s: column %s is %s, %s is %s",
				from.name, to.name, fk[i].name, fk[i].typ, to.pk[i].QualifiedName(), to.pk[i].typ)
		}
	}

	fkIndex := from.indexOver(fk)
	if fkIndex == nil {
		fkIndex = &Index{table: from, name: "ix_" + strings.Join(ref.columns, "_"), columns: fk}
		from.indexes = append(from.indexes, fkIndex)
	}

	name := ref.name
	if name == "" {
		name = toOneName(ref.columns, to.name)
	}
	inverseKind := ToMany
	inverse := ref.inverse
	if fkIndex.unique {
		inverseKind = ToOne
		if inverse == "" {
			inverse = inverseOneName(from.name)
		}
	} else if inverse == "" {
		inverse = toManyName(from.name)
	}

	one := &Relation{
		table:         from,
		name:          name,
		kind:          ToOne,
		columns:       fk,
		target:        to,
		targetColumns: to.pk,
		targetIndex:   to.PrimaryIndex(),
	}
	other := &Relation{
		table:         to,
		name:          inverse,
		kind:          inverseKind,
		columns:       to.pk,
		target:        from,
		targetColumns: fk,
		targetIndex:   fkIndex,
	}
	one.otherSide, other.otherSide = other, one

	if err := from.addRelation(one); err != nil {
		return err
	}
	return to.addRelation(other)
}
