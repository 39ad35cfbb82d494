package row

import (
	"fmt"
	"iter"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-rowcache/schema"
)

// Source is anything a single row can be scanned from, typically *sql.Rows.
type Source interface {
	Scan(dest ...any) error
}

// Snapshot is an immutable column -> value mapping for one fetched row. It is
// built once and may be shared by any number of instances; nothing mutates it
// after construction.
type Snapshot struct {
	table   *schema.Table
	columns []*schema.Column
	values  []any
	slots   []int // column ordinal -> index into values, -1 when not projected
	size    int
}

// NewSnapshot builds a snapshot of the given projection. values are coerced
// into each column's Go representation. A nil columns slice means every column
// of the table, in declaration order.
func NewSnapshot(table *schema.Table, columns []*schema.Column, values []any) (*Snapshot, error) {
	if columns == nil {
		columns = table.Columns()
	}
	if len(columns) != len(values) {
		return nil, goerrors.New(
			fmt.Sprintf("table %s: %d values for %d columns", table.Name(), len(values), len(columns)),
			goerrors.CategoryValidation,
		).WithTextCode("ROW_ARITY")
	}

	s := &Snapshot{
		table:   table,
		columns: columns,
		values:  make([]any, len(values)),
		slots:   newSlots(table),
	}
	for i, col := range columns {
		if col.Table() != table {
			panic(fmt.Sprintf("row: column %s does not belong to table %s", col, table.Name()))
		}
		v, err := col.Coerce(values[i])
		if err != nil {
			return nil, err
		}
		s.values[i] = v
		s.slots[col.Ordinal()] = i
		s.size += col.Type().MeasureValue(v)
	}
	return s, nil
}

// Scan reads one row of the given projection from src.
func Scan(table *schema.Table, columns []*schema.Column, src Source) (*Snapshot, error) {
	if columns == nil {
		columns = table.Columns()
	}
	raw := make([]any, len(columns))
	dest := make([]any, len(columns))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := src.Scan(dest...); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "scan row of "+table.Name()).
			WithTextCode("ROW_SCAN")
	}
	return NewSnapshot(table, columns, raw)
}

// Empty returns an all-null snapshot covering every column of table. It is the
// baseline of records that have not been persisted yet.
func Empty(table *schema.Table) *Snapshot {
	cols := table.Columns()
	s := &Snapshot{
		table:   table,
		columns: cols,
		values:  make([]any, len(cols)),
		slots:   newSlots(table),
	}
	for i, c := range cols {
		s.slots[c.Ordinal()] = i
	}
	return s
}

func newSlots(table *schema.Table) []int {
	slots := make([]int, len(table.Columns()))
	for i := range slots {
		slots[i] = -1
	}
	return slots
}

func (s *Snapshot) Table() *schema.Table { return s.table }

// Columns returns the projection in read order. The slice must not be modified.
func (s *Snapshot) Columns() []*schema.Column { return s.columns }

// Size is the approximate memory footprint of the values, for the benefit of
// cache accounting.
func (s *Snapshot) Size() int { return s.size }

// Has reports whether col is part of the projection.
func (s *Snapshot) Has(col *schema.Column) bool {
	return col.Table() == s.table && s.slots[col.Ordinal()] >= 0
}

// Lookup returns the value of col and whether it is part of the projection.
func (s *Snapshot) Lookup(col *schema.Column) (any, bool) {
	if !s.Has(col) {
		return nil, false
	}
	return cloneValue(s.values[s.slots[col.Ordinal()]]), true
}

// Get returns the value of col. It panics when col is outside the projection
// the row was read with.
func (s *Snapshot) Get(col *schema.Column) any {
	v, ok := s.Lookup(col)
	if !ok {
		panic(fmt.Sprintf("row: column %s is not part of the %s snapshot", col, s.table.Name()))
	}
	return v
}

// All iterates over the projected columns and their values.
func (s *Snapshot) All() iter.Seq2[*schema.Column, any] {
	return func(yield func(*schema.Column, any) bool) {
		for i, c := range s.columns {
			if !yield(c, cloneValue(s.values[i])) {
				return
			}
		}
	}
}

// Map returns a fresh column name -> value map.
func (s *Snapshot) Map() map[string]any {
	m := make(map[string]any, len(s.columns))
	for i, c := range s.columns {
		m[c.Name()] = cloneValue(s.values[i])
	}
	return m
}

// with returns a new snapshot with the given values replaced or added. The
// receiver is left untouched.
func (s *Snapshot) with(changes map[*schema.Column]any) *Snapshot {
	out := &Snapshot{
		table:   s.table,
		columns: append([]*schema.Column(nil), s.columns...),
		values:  append([]any(nil), s.values...),
		slots:   append([]int(nil), s.slots...),
	}
	for col, v := range changes {
		if i := out.slots[col.Ordinal()]; i >= 0 {
			out.values[i] = v
			continue
		}
		out.slots[col.Ordinal()] = len(out.values)
		out.columns = append(out.columns, col)
		out.values = append(out.values, v)
	}
	for i, c := range out.columns {
		out.size += c.Type().MeasureValue(out.values[i])
	}
	return out
}

// byte slices are the only mutable values a snapshot holds.
func cloneValue(v any) any {
	if b, ok := v.([]byte); ok && b != nil {
		return append([]byte(nil), b...)
	}
	return v
}
