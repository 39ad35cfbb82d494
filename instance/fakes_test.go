package instance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/row"
	"github.com/goliatone/go-rowcache/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.Table("users", func(t *schema.TableBuilder) {
		t.Column("id", schema.Int64).PrimaryKey().AutoIncrement()
		t.Column("name", schema.String)
	})
	b.Table("orders", func(t *schema.TableBuilder) {
		t.Column("id", schema.Int64).PrimaryKey().AutoIncrement()
		t.Column("user_id", schema.Int64).Nullable()
		t.Column("total", schema.Float64)
	})
	b.Reference("orders", []string{"user_id"}, "users")
	s, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return s
}

func snap(t *testing.T, table *schema.Table, values ...any) *row.Snapshot {
	t.Helper()
	s, err := row.NewSnapshot(table, nil, values)
	if err != nil {
		t.Fatalf("NewSnapshot(%s) error = %v", table, err)
	}
	return s
}

type fakeScope struct {
	provider *fakeProvider
	status   ScopeStatus
	// finishOnQuery commits the scope when a query reaches the cache, as if
	// another goroutine committed it concurrently.
	finishOnQuery bool
}

func (s *fakeScope) Provider() Provider  { return s.provider }
func (s *fakeScope) Status() ScopeStatus { return s.status }

type fakeProvider struct {
	ro     *fakeScope
	caches map[*schema.Table]*fakeCache
}

func newFakeProvider(s *schema.Schema) *fakeProvider {
	p := &fakeProvider{caches: make(map[*schema.Table]*fakeCache)}
	p.ro = &fakeScope{provider: p}
	for _, table := range s.Tables() {
		p.caches[table] = &fakeCache{table: table, subs: make(map[int]func())}
	}
	return p
}

func (p *fakeProvider) ReadOnly() Scope                           { return p.ro }
func (p *fakeProvider) TableCache(table *schema.Table) TableCache { return p.caches[table] }

// fakeCache serves rows from memory and counts every query it answers.
type fakeCache struct {
	table *schema.Table

	mu     sync.Mutex
	rows   []*row.Snapshot
	err    error
	subs   map[int]func()
	nextID int
	scopes []Scope
	gate   chan struct{}

	rowCalls     atomic.Int64
	rowsForCalls atomic.Int64
}

func (c *fakeCache) put(rows ...*row.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, rows...)
}

func (c *fakeCache) replace(rows ...*row.Snapshot) {
	c.mu.Lock()
	c.rows = rows
	c.mu.Unlock()
	c.notify()
}

func (c *fakeCache) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

func (c *fakeCache) wait() {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (c *fakeCache) seen(scope Scope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scopes = append(c.scopes, scope)
	if s, ok := scope.(*fakeScope); ok && s.finishOnQuery {
		s.status = ScopeCommitted
		return ErrScopeFinished
	}
	return c.err
}

func (c *fakeCache) lastScope() Scope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[len(c.scopes)-1]
}

func (c *fakeCache) match(cols []*schema.Column, key identity.Key, scope Scope) []*Immutable {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*Immutable
	for _, s := range c.rows {
		vals := make([]any, len(cols))
		for i, col := range cols {
			vals[i] = s.Get(col)
		}
		if identity.FromValues(vals...) == key {
			out = append(out, New(s, scope))
		}
	}
	return out
}

func (c *fakeCache) Row(_ context.Context, key identity.Key, scope Scope) (*Immutable, error) {
	c.rowCalls.Add(1)
	c.wait()
	if err := c.seen(scope); err != nil {
		return nil, err
	}
	if rows := c.match(c.table.PrimaryKey(), key, scope); len(rows) > 0 {
		return rows[0], nil
	}
	return nil, nil
}

func (c *fakeCache) RowsFor(_ context.Context, key identity.Key, rel *schema.Relation, scope Scope) ([]*Immutable, error) {
	c.rowsForCalls.Add(1)
	c.wait()
	if err := c.seen(scope); err != nil {
		return nil, err
	}
	return c.match(rel.TargetColumns(), key, scope), nil
}

func (c *fakeCache) Rows(ctx context.Context, keys []identity.Key, scope Scope, _ ...Ordering) ([]*Immutable, error) {
	var out []*Immutable
	for _, k := range keys {
		r, err := c.Row(ctx, k, scope)
		if err != nil {
			return nil, err
		}
		if r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *fakeCache) Subscribe(_ Scope, handler func()) Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.subs[c.nextID] = handler
	return &fakeSubscription{cache: c, id: c.nextID}
}

func (c *fakeCache) subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *fakeCache) notify() {
	c.mu.Lock()
	handlers := make([]func(), 0, len(c.subs))
	for _, h := range c.subs {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}

type fakeSubscription struct {
	cache *fakeCache
	id    int
	once  sync.Once
}

func (s *fakeSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cache.mu.Lock()
		defer s.cache.mu.Unlock()
		delete(s.cache.subs, s.id)
	})
}
