package row

import (
	"fmt"
	"slices"

	"github.com/goliatone/go-rowcache/schema"
)

// Change is one explicitly written column.
type Change struct {
	Column *schema.Column
	Value  any
}

// Overlay records writes on top of a baseline snapshot without ever touching
// it. Reads see the overlay first and fall back to the baseline.
//
// An Overlay is owned by a single mutable instance and is not safe for
// concurrent use.
type Overlay struct {
	base    *Snapshot
	changes map[*schema.Column]any
}

// NewOverlay wraps base.
func NewOverlay(base *Snapshot) *Overlay {
	return &Overlay{base: base}
}

// Base returns the baseline snapshot.
func (o *Overlay) Base() *Snapshot { return o.base }

// Get returns the written value of col if any, else the baseline value.
func (o *Overlay) Get(col *schema.Column) any {
	if v, ok := o.changes[col]; ok {
		return cloneValue(v)
	}
	return o.base.Get(col)
}

// Lookup is Get reporting whether the column is known at all.
func (o *Overlay) Lookup(col *schema.Column) (any, bool) {
	if v, ok := o.changes[col]; ok {
		return cloneValue(v), true
	}
	return o.base.Lookup(col)
}

// Set records a write. Writing a column's current value still counts as a
// change.
func (o *Overlay) Set(col *schema.Column, v any) error {
	if col.Table() != o.base.Table() {
		panic(fmt.Sprintf("row: column %s does not belong to table %s", col, o.base.Table().Name()))
	}
	cv, err := col.Coerce(v)
	if err != nil {
		return err
	}
	if o.changes == nil {
		o.changes = make(map[*schema.Column]any)
	}
	o.changes[col] = cloneValue(cv)
	return nil
}

// IsChanged reports whether col was written since construction or the last
// reset.
func (o *Overlay) IsChanged(col *schema.Column) bool {
	_, ok := o.changes[col]
	return ok
}

// Len returns the number of written columns.
func (o *Overlay) Len() int { return len(o.changes) }

// Changes returns exactly the written columns, in column declaration order.
func (o *Overlay) Changes() []Change {
	out := make([]Change, 0, len(o.changes))
	for col, v := range o.changes {
		out = append(out, Change{Column: col, Value: cloneValue(v)})
	}
	slices.SortFunc(out, func(a, b Change) int { return a.Column.Ordinal() - b.Column.Ordinal() })
	return out
}

// Reset discards every write, reverting to the baseline.
func (o *Overlay) Reset() {
	o.changes = nil
}

// ResetTo adopts base as the new baseline and discards every write. The
// previous baseline is left as it was, so other holders keep seeing it.
func (o *Overlay) ResetTo(base *Snapshot) {
	if base.Table() != o.base.Table() {
		panic(fmt.Sprintf("row: cannot rebase %s overlay onto %s snapshot", o.base.Table().Name(), base.Table().Name()))
	}
	o.base = base
	o.changes = nil
}

// Merged returns a new snapshot combining the baseline with the writes.
func (o *Overlay) Merged() *Snapshot {
	if len(o.changes) == 0 {
		return o.base
	}
	return o.base.with(o.changes)
}
