package tablecache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-rowcache/cache"
	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/instance"
	"github.com/goliatone/go-rowcache/row"
	"github.com/goliatone/go-rowcache/schema"
)

// Table is the shared cache of one table. Rows and relation lookups of the
// read-only scope are kept in sturdyc stores; transaction scopes keep their
// own. Any change notification empties both stores and releases the dropped
// instances before subscribers run.
//
// Store keys carry the invalidation generation, so a read that starts after
// an invalidation never joins a fetch that started before it.
type Table struct {
	provider *Provider
	table    *schema.Table
	logger   *slog.Logger

	rows    cache.Store[*instance.Immutable]
	lookups cache.Store[[]*instance.Immutable]
	feed    *Feed

	// gen advances on every invalidation; fetches that straddle one do not
	// keep their result.
	gen      atomic.Uint64
	internMu sync.Mutex
	queries  atomic.Int64
}

// Stats is a point-in-time view of one table cache.
type Stats struct {
	Table       string
	Rows        int
	Lookups     int
	Bytes       int
	Subscribers int
	Queries     int64
}

func newTable(p *Provider, st *schema.Table) (*Table, error) {
	rows, err := cache.NewStore[*instance.Immutable](p.cfg)
	if err != nil {
		return nil, err
	}
	lookups, err := cache.NewStore[[]*instance.Immutable](p.cfg)
	if err != nil {
		return nil, err
	}
	return &Table{
		provider: p,
		table:    st,
		logger:   p.logger.With("table", st.Name()),
		rows:     rows,
		lookups:  lookups,
		feed:     NewFeed(),
	}, nil
}

func (t *Table) Schema() *schema.Table { return t.table }

// txOf resolves scope to a transaction, or nil for the read-only scope. It
// panics on scopes of other providers.
func (t *Table) txOf(scope instance.Scope) *TxScope {
	switch s := scope.(type) {
	case *readOnlyScope:
		if s.provider == t.provider {
			return nil
		}
	case *TxScope:
		if s.provider == t.provider {
			return s
		}
	}
	panic(fmt.Sprintf("tablecache: scope %v does not belong to this provider", scope))
}

// bind is txOf for queries: a finished transaction yields
// instance.ErrScopeFinished.
func (t *Table) bind(scope instance.Scope) (*TxScope, error) {
	tx := t.txOf(scope)
	if tx != nil && tx.Status().Finished() {
		return nil, instance.ErrScopeFinished
	}
	return tx, nil
}

func (t *Table) namespace(gen uint64) string {
	return t.table.Name() + "@" + strconv.FormatUint(gen, 10)
}

func (t *Table) rowKey(gen uint64, key identity.Key) string {
	return t.provider.keys.SerializeKey(t.namespace(gen), key)
}

func (t *Table) lookupKey(gen uint64, lookup identity.Lookup) string {
	return t.provider.keys.SerializeKey(string(lookup.Index())+"@"+strconv.FormatUint(gen, 10), lookup.Key())
}

// keep drops key from store when an invalidation ran since gen was read.
func (t *Table) keep(gen uint64, drop func()) {
	if t.gen.Load() != gen {
		drop()
	}
}

// intern returns the shared instance for snap's identity, storing a new one
// when there is none.
func (t *Table) intern(gen uint64, snap *row.Snapshot) *instance.Immutable {
	inst := instance.New(snap, t.provider.readOnly)
	k := t.rowKey(gen, inst.Identity())

	t.internMu.Lock()
	defer t.internMu.Unlock()
	if cur, ok := t.rows.Get(k); ok && cur != nil {
		return cur
	}
	t.rows.Set(k, inst)
	t.keep(gen, func() { t.rows.Delete(k) })
	return inst
}

// Row returns the row with primary key key, or nil.
func (t *Table) Row(ctx context.Context, key identity.Key, scope instance.Scope) (*instance.Immutable, error) {
	if key.IsNull() {
		return nil, nil
	}
	tx, err := t.bind(scope)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx.row(ctx, t, key)
	}

	gen := t.gen.Load()
	k := t.rowKey(gen, key)
	inst, err := t.rows.GetOrFetch(ctx, k, func(ctx context.Context) (*instance.Immutable, error) {
		snaps, err := t.selectRows(ctx, t.provider.db, t.table.PrimaryKey(), []identity.Key{key})
		if err != nil {
			return nil, err
		}
		if len(snaps) == 0 {
			return nil, cache.ErrNotFound
		}
		t.logger.Debug("row loaded", "key", key)
		return t.intern(gen, snaps[0]), nil
	})
	t.keep(gen, func() { t.rows.Delete(k) })
	if cache.IsMissing(err) {
		return nil, nil
	}
	return inst, err
}

// RowsFor returns the rows whose rel.TargetColumns() equal key, in primary
// key order. Results are memoized per lookup until the table changes.
func (t *Table) RowsFor(ctx context.Context, key identity.Key, rel *schema.Relation, scope instance.Scope) ([]*instance.Immutable, error) {
	if rel.Target() != t.table {
		panic(fmt.Sprintf("tablecache: relation %s does not target %s", rel, t.table))
	}
	if key.IsNull() {
		return nil, nil
	}
	lookup := identity.NewLookup(rel.TargetIndex().ID(), key)
	tx, err := t.bind(scope)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		return tx.rowsFor(ctx, t, rel, lookup)
	}

	gen := t.gen.Load()
	k := t.lookupKey(gen, lookup)
	rows, err := t.lookups.GetOrFetch(ctx, k, func(ctx context.Context) ([]*instance.Immutable, error) {
		snaps, err := t.selectRows(ctx, t.provider.db, rel.TargetColumns(), []identity.Key{key})
		if err != nil {
			return nil, err
		}
		out := make([]*instance.Immutable, len(snaps))
		for i, snap := range snaps {
			out[i] = t.intern(gen, snap)
		}
		t.logger.Debug("lookup loaded", "lookup", lookup, "rows", len(out))
		return out, nil
	})
	t.keep(gen, func() { t.lookups.Delete(k) })
	return rows, err
}

// Rows returns the rows for keys, skipping null and unknown keys and
// duplicates. Misses are read with a single query. Without orderings rows
// come back in key order.
func (t *Table) Rows(ctx context.Context, keys []identity.Key, scope instance.Scope, orderings ...instance.Ordering) ([]*instance.Immutable, error) {
	for _, o := range orderings {
		if o.Column.Table() != t.table {
			panic(fmt.Sprintf("tablecache: cannot order %s rows by %s", t.table, o.Column))
		}
	}
	tx, err := t.bind(scope)
	if err != nil {
		return nil, err
	}
	gen := t.gen.Load()

	found := make(map[identity.Key]*instance.Immutable, len(keys))
	wanted := make([]identity.Key, 0, len(keys))
	var missing []identity.Key
	for _, key := range keys {
		if key.IsNull() {
			continue
		}
		if _, dup := found[key]; dup {
			continue
		}
		wanted = append(wanted, key)
		inst, ok := t.cached(tx, gen, key)
		found[key] = inst
		if !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		snaps, err := t.selectRows(ctx, t.idb(tx), t.table.PrimaryKey(), missing)
		if err != nil {
			return nil, tx.queryErr(err)
		}
		for _, snap := range snaps {
			var inst *instance.Immutable
			if tx != nil {
				inst = tx.remember(snap)
			} else {
				inst = t.intern(gen, snap)
			}
			found[inst.Identity()] = inst
		}
	}

	out := make([]*instance.Immutable, 0, len(wanted))
	for _, key := range wanted {
		if inst := found[key]; inst != nil {
			out = append(out, inst)
		}
	}
	sortRows(out, orderings)
	return out, nil
}

func (t *Table) cached(tx *TxScope, gen uint64, key identity.Key) (*instance.Immutable, bool) {
	if tx != nil {
		return tx.cached(t.table, key)
	}
	inst, ok := t.rows.Get(t.rowKey(gen, key))
	return inst, ok && inst != nil
}

// Subscribe registers handler for committed changes of the table. Through an
// open transaction the handler also fires on that transaction's own writes.
func (t *Table) Subscribe(scope instance.Scope, handler func()) instance.Subscription {
	sub := t.feed.Subscribe(handler)
	if tx := t.txOf(scope); tx != nil && !tx.Status().Finished() {
		return subscriptions{sub, tx.feed(t.table).Subscribe(handler)}
	}
	return sub
}

type subscriptions []instance.Subscription

func (s subscriptions) Unsubscribe() {
	for _, sub := range s {
		sub.Unsubscribe()
	}
}

// Invalidate empties the shared stores, releases the instances they held and
// notifies every subscriber.
func (t *Table) Invalidate() {
	gen := t.gen.Add(1) - 1
	rows := t.rows.Drain(cache.Prefix(t.namespace(gen)))
	lookups := t.lookups.Drain("")
	release(rows)
	for _, set := range lookups {
		release(set)
	}
	n := t.feed.Notify()
	t.logger.Debug("table invalidated", "rows", len(rows), "lookups", len(lookups), "subscribers", n)
}

func release(rows []*instance.Immutable) {
	for _, inst := range rows {
		if inst != nil {
			inst.Release()
		}
	}
}

// Stats reports the shared stores. Bytes is the summed snapshot footprint.
func (t *Table) Stats() Stats {
	st := Stats{
		Table:       t.table.Name(),
		Lookups:     t.lookups.Len(),
		Subscribers: t.feed.Len(),
		Queries:     t.queries.Load(),
	}
	prefix := cache.Prefix(t.namespace(t.gen.Load()))
	for _, k := range t.rows.Keys() {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if inst, ok := t.rows.Get(k); ok && inst != nil {
			st.Rows++
			st.Bytes += inst.Snapshot().Size()
		}
	}
	return st
}
