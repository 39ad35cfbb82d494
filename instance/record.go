package instance

import (
	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/schema"
)

// Record is the read-only contract shared by Immutable and Mutable. Only
// Mutable adds setters, so writing through an immutable instance does not
// compile.
type Record interface {
	Table() *schema.Table
	Get(col *schema.Column) any
	GetByName(name string) any
	Identity() identity.Key
	HasIdentity() bool
	Values() map[string]any
}

var (
	_ Record = (*Immutable)(nil)
	_ Record = (*Mutable)(nil)
)

// identityOf derives the primary key identity through get, or Null when a key
// column is unavailable.
func identityOf(table *schema.Table, lookup func(*schema.Column) (any, bool)) identity.Key {
	pk := table.PrimaryKey()
	vals := make([]any, len(pk))
	for i, c := range pk {
		v, ok := lookup(c)
		if !ok {
			return identity.Null
		}
		vals[i] = v
	}
	return identity.FromValues(vals...)
}
