package instance

import (
	"context"
	"errors"
	"fmt"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/schema"
)

// ErrScopeFinished is returned by a TableCache when the transaction a query
// was issued through finished before or while the query ran.
var ErrScopeFinished = errors.New("instance: scope finished")

// ScopeStatus is the lifecycle state of a data scope.
type ScopeStatus uint8

const (
	ScopeOpen ScopeStatus = iota
	ScopeCommitted
	ScopeRolledBack
)

// Finished reports whether the scope was committed or rolled back.
func (s ScopeStatus) Finished() bool {
	return s == ScopeCommitted || s == ScopeRolledBack
}

func (s ScopeStatus) String() string {
	switch s {
	case ScopeOpen:
		return "open"
	case ScopeCommitted:
		return "committed"
	case ScopeRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("ScopeStatus(%d)", uint8(s))
	}
}

// Scope is the handle relation queries are issued through: a transaction or
// the provider's shared read-only scope.
type Scope interface {
	Provider() Provider
	Status() ScopeStatus
}

// Provider owns the table caches and the shared read-only scope.
type Provider interface {
	ReadOnly() Scope
	TableCache(table *schema.Table) TableCache
}

// Ordering sorts the result of TableCache.Rows.
type Ordering struct {
	Column     *schema.Column
	Descending bool
}

// TableCache is the shared, identity-mapped row store of one table.
type TableCache interface {
	// Row returns the row whose primary key equals key, or nil. Queries
	// through a finished transaction fail with ErrScopeFinished.
	Row(ctx context.Context, key identity.Key, scope Scope) (*Immutable, error)

	// RowsFor returns the rows of rel.Target() whose rel.TargetColumns()
	// equal key.
	RowsFor(ctx context.Context, key identity.Key, rel *schema.Relation, scope Scope) ([]*Immutable, error)

	// Rows returns the rows for the given primary keys, sorted by orderings.
	Rows(ctx context.Context, keys []identity.Key, scope Scope, orderings ...Ordering) ([]*Immutable, error)

	// Subscribe registers handler for change notifications on the table as
	// seen from scope. Any committed write affecting the table fires every
	// handler; a transaction scope also fires on its own uncommitted writes.
	// There is no payload.
	Subscribe(scope Scope, handler func()) Subscription
}

// Subscription is released exactly once with Unsubscribe; further calls are
// no-ops.
type Subscription interface {
	Unsubscribe()
}
