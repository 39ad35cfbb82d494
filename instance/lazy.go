package instance

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"weak"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/schema"
)

// lazy is the shared state machine behind One and Many:
//
//	unloaded --Value--> loaded --change notification or release--> unloaded
//
// Loaded values are published through an atomic pointer so readers of a
// loaded cache never take the lock. Loading, invalidation and release are
// serialized by mu, so at most one fetch is in flight per cache.
//
// Table caches only reach a lazy weakly, through handler. Once the owning
// One or Many is collected its subscription is released by a cleanup.
type lazy[T any] struct {
	key     identity.Key
	rel     *schema.Relation
	handler func()

	mu    sync.Mutex
	scope Scope             // guarded by mu
	sub   *subscriptionSlot // guarded by mu

	loaded atomic.Pointer[loaded[T]]
}

// subscriptionSlot holds the live subscription of a lazy apart from the lazy
// itself, so the cleanup of a collected cache can still reach it.
type subscriptionSlot struct {
	sub Subscription
}

func (s *subscriptionSlot) release() {
	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
}

// watch wires the change handler and end-of-life cleanup of c.
func watch[C any, P interface {
	*C
	invalidate()
}](c P, slot *subscriptionSlot) func() {
	wp := weak.Make((*C)(c))
	runtime.AddCleanup((*C)(c), (*subscriptionSlot).release, slot)
	return func() {
		if p := wp.Value(); p != nil {
			P(p).invalidate()
		}
	}
}

type loaded[T any] struct {
	value T
}

type fetchFunc[T any] func(ctx context.Context, cache TableCache, scope Scope) (T, error)

func (l *lazy[T]) init(key identity.Key, rel *schema.Relation, scope Scope) {
	l.key = key
	l.rel = rel
	l.scope = scope
	l.sub = &subscriptionSlot{}
}

func (l *lazy[T]) value(ctx context.Context, empty T, fetch fetchFunc[T]) (T, error) {
	if l.key.IsNull() {
		return empty, nil
	}
	if v := l.loaded.Load(); v != nil {
		return v.value, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v := l.loaded.Load(); v != nil {
		return v.value, nil
	}

	// A finished transaction can no longer serve queries; continue on the
	// provider's read-only scope.
	if l.scope.Status().Finished() {
		l.scope = l.scope.Provider().ReadOnly()
	}
	v, err := l.load(ctx, fetch)
	if errors.Is(err, ErrScopeFinished) {
		// The transaction finished while the query was being issued.
		l.scope = l.scope.Provider().ReadOnly()
		v, err = l.load(ctx, fetch)
	}
	if err != nil {
		return empty, err
	}
	l.loaded.Store(&loaded[T]{value: v})
	return v, nil
}

// load subscribes before reading so a write racing the fetch still clears
// the value it may have missed. Called with mu held and no subscription.
func (l *lazy[T]) load(ctx context.Context, fetch fetchFunc[T]) (T, error) {
	cache := l.scope.Provider().TableCache(l.rel.Target())
	l.sub.sub = cache.Subscribe(l.scope, l.handler)

	v, err := fetch(ctx, cache, l.scope)
	if err != nil {
		l.unsubscribeLocked()
	}
	return v, err
}

func (l *lazy[T]) invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded.Store(nil)
	l.unsubscribeLocked()
}

func (l *lazy[T]) unsubscribeLocked() {
	l.sub.release()
}

func (l *lazy[T]) isLoaded() bool {
	return l.loaded.Load() != nil
}

func (l *lazy[T]) isSubscribed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub.sub != nil
}

// release returns the cache to unloaded: without a subscription a loaded
// value could no longer be invalidated.
func (l *lazy[T]) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded.Store(nil)
	l.unsubscribeLocked()
}

// One caches the target of a to-one relation, looked up by the source row's
// foreign key values.
type One struct {
	lazy[*Immutable]
}

// NewOne creates an unloaded to-one cache. A null key always resolves to nil.
func NewOne(key identity.Key, rel *schema.Relation, scope Scope) *One {
	c := &One{}
	c.init(key, rel, scope)
	c.handler = watch[One](c, c.sub)
	return c
}

// Key returns the foreign key the target is looked up by.
func (c *One) Key() identity.Key { return c.key }

// Value returns the target row, fetching it on first use or after the target
// table changed. A missing target resolves to nil. A failed fetch leaves the
// cache unloaded.
func (c *One) Value(ctx context.Context) (*Immutable, error) {
	return c.value(ctx, nil, c.fetch)
}

func (c *One) fetch(ctx context.Context, cache TableCache, scope Scope) (*Immutable, error) {
	if c.rel.TargetIndex().Primary() {
		return cache.Row(ctx, c.key, scope)
	}
	rows, err := cache.RowsFor(ctx, c.key, c.rel, scope)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Loaded reports whether a value is cached.
func (c *One) Loaded() bool { return c.isLoaded() }

// Subscribed reports whether the cache listens for target table changes.
func (c *One) Subscribed() bool { return c.isSubscribed() }

// Release drops the change subscription and the cached value.
func (c *One) Release() { c.release() }

// Many caches the rows of a to-many relation, looked up by the source row's
// key values on the target's foreign key index.
type Many struct {
	lazy[*RowSet]
}

// NewMany creates an unloaded to-many cache. A null key always resolves to an
// empty set.
func NewMany(key identity.Key, rel *schema.Relation, scope Scope) *Many {
	c := &Many{}
	c.init(key, rel, scope)
	c.handler = watch[Many](c, c.sub)
	return c
}

func (c *Many) Key() identity.Key { return c.key }

// Value returns the related rows keyed by identity, fetching them on first use
// or after the target table changed. A failed fetch leaves the cache unloaded.
func (c *Many) Value(ctx context.Context) (*RowSet, error) {
	return c.value(ctx, emptyRowSet, c.fetch)
}

func (c *Many) fetch(ctx context.Context, cache TableCache, scope Scope) (*RowSet, error) {
	rows, err := cache.RowsFor(ctx, c.key, c.rel, scope)
	if err != nil {
		return nil, err
	}
	return NewRowSet(rows), nil
}

func (c *Many) Loaded() bool     { return c.isLoaded() }
func (c *Many) Subscribed() bool { return c.isSubscribed() }
func (c *Many) Release()         { c.release() }
