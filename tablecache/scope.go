package tablecache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	goerrors "github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/instance"
	"github.com/goliatone/go-rowcache/row"
	"github.com/goliatone/go-rowcache/schema"
)

// readOnlyScope is the provider-wide scope backed by the shared stores.
type readOnlyScope struct {
	provider *Provider
}

func (s *readOnlyScope) Provider() instance.Provider  { return s.provider }
func (s *readOnlyScope) Status() instance.ScopeStatus { return instance.ScopeOpen }
func (s *readOnlyScope) String() string               { return "read-only" }

type rowRef struct {
	table *schema.Table
	key   identity.Key
}

// TxScope is a database transaction. Rows read through it live in a private
// identity map, so they reflect the transaction's own writes and are never
// shared with other scopes. Every write made through Save notifies the
// relation caches bound to the transaction; other scopes hear about it at
// commit.
type TxScope struct {
	provider *Provider
	tx       bun.Tx
	status   atomic.Uint32

	mu      sync.Mutex // serializes Commit and Rollback
	rows    *xsync.MapOf[rowRef, *instance.Immutable]
	lookups *xsync.MapOf[identity.Lookup, []*instance.Immutable]
	dirty   *xsync.MapOf[*schema.Table, struct{}]
	feeds   *xsync.MapOf[*schema.Table, *Feed]
}

func newTxScope(p *Provider, tx bun.Tx) *TxScope {
	return &TxScope{
		provider: p,
		tx:       tx,
		rows:     xsync.NewMapOf[rowRef, *instance.Immutable](),
		lookups:  xsync.NewMapOf[identity.Lookup, []*instance.Immutable](),
		dirty:    xsync.NewMapOf[*schema.Table, struct{}](),
		feeds:    xsync.NewMapOf[*schema.Table, *Feed](),
	}
}

func (s *TxScope) Provider() instance.Provider { return s.provider }

func (s *TxScope) Status() instance.ScopeStatus {
	return instance.ScopeStatus(s.status.Load())
}

// Tx exposes the underlying transaction for statements the provider does not
// cover.
func (s *TxScope) Tx() bun.Tx { return s.tx }

// Commit commits the transaction and notifies every table written through
// it.
func (s *TxScope) Commit(ctx context.Context) error {
	return s.finish(ctx, instance.ScopeCommitted, s.tx.Commit)
}

// Rollback aborts the transaction. Tables written through it are still
// notified so relation caches drop values read inside the transaction.
func (s *TxScope) Rollback(ctx context.Context) error {
	return s.finish(ctx, instance.ScopeRolledBack, s.tx.Rollback)
}

func (s *TxScope) finish(ctx context.Context, status instance.ScopeStatus, end func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current := s.Status(); current.Finished() {
		return goerrors.New("transaction already "+current.String(), goerrors.CategoryConflict).
			WithTextCode("SCOPE_FINISHED")
	}

	err := end()
	if err != nil {
		// database/sql discards a transaction whose commit failed.
		status = instance.ScopeRolledBack
	}
	s.status.Store(uint32(status))

	var tables []*schema.Table
	s.dirty.Range(func(t *schema.Table, _ struct{}) bool {
		tables = append(tables, t)
		return true
	})
	s.provider.logger.Debug("transaction finished", "status", status.String(), "tables", len(tables))
	s.release()
	s.provider.changed(ctx, tables, status == instance.ScopeCommitted)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "finish transaction").
			WithTextCode("TX_FINISH")
	}
	return nil
}

// release drops the private identity map. Instances read through the
// transaction stay usable; their relation caches load again on the
// read-only scope.
func (s *TxScope) release() {
	s.rows.Range(func(_ rowRef, inst *instance.Immutable) bool {
		inst.Release()
		return true
	})
	s.rows.Clear()
	s.lookups.Clear()
}

// feed returns the transaction-local change feed of table.
func (s *TxScope) feed(table *schema.Table) *Feed {
	f, _ := s.feeds.LoadOrCompute(table, NewFeed)
	return f
}

// queryErr maps a failed query to instance.ErrScopeFinished when the
// transaction finished meanwhile. s may be nil.
func (s *TxScope) queryErr(err error) error {
	if s != nil && s.Status().Finished() {
		return instance.ErrScopeFinished
	}
	return err
}

func (s *TxScope) mustBeOpen() {
	if st := s.Status(); st.Finished() {
		panic(fmt.Sprintf("tablecache: use of %s transaction", st))
	}
}

func (s *TxScope) cached(table *schema.Table, key identity.Key) (*instance.Immutable, bool) {
	return s.rows.Load(rowRef{table: table, key: key})
}

// remember interns snap, returning the instance already mapped to its
// identity if there is one.
func (s *TxScope) remember(snap *row.Snapshot) *instance.Immutable {
	inst := instance.New(snap, s)
	actual, _ := s.rows.LoadOrStore(rowRef{table: snap.Table(), key: inst.Identity()}, inst)
	return actual
}

func (s *TxScope) forget(table *schema.Table, key identity.Key) {
	s.rows.Delete(rowRef{table: table, key: key})
}

// written records a write to the row key of table: the row and every
// memoized lookup are dropped, then the caches bound to this transaction are
// notified.
func (s *TxScope) written(table *schema.Table, key identity.Key) {
	s.dirty.Store(table, struct{}{})
	s.forget(table, key)
	s.lookups.Clear()
	s.feed(table).Notify()
}

func (s *TxScope) row(ctx context.Context, t *Table, key identity.Key) (*instance.Immutable, error) {
	if inst, ok := s.cached(t.table, key); ok {
		return inst, nil
	}
	snaps, err := t.selectRows(ctx, s.tx, t.table.PrimaryKey(), []identity.Key{key})
	if err != nil {
		return nil, s.queryErr(err)
	}
	if len(snaps) == 0 {
		return nil, nil
	}
	return s.remember(snaps[0]), nil
}

func (s *TxScope) rowsFor(ctx context.Context, t *Table, rel *schema.Relation, lookup identity.Lookup) ([]*instance.Immutable, error) {
	if rows, ok := s.lookups.Load(lookup); ok {
		return rows, nil
	}
	snaps, err := t.selectRows(ctx, s.tx, rel.TargetColumns(), []identity.Key{lookup.Key()})
	if err != nil {
		return nil, s.queryErr(err)
	}
	rows := make([]*instance.Immutable, len(snaps))
	for i, snap := range snaps {
		rows[i] = s.remember(snap)
	}
	actual, _ := s.lookups.LoadOrStore(lookup, rows)
	return actual, nil
}
