package cache

import (
	"context"

	"github.com/goliatone/go-rowcache/internal/cacheinfra"
)

// ErrNotFound is returned by a fetch function when the source has no value. The
// store may remember the miss, see Config.MissingRecordStorage.
var ErrNotFound = cacheinfra.ErrNotFound

// IsMissing reports whether a GetOrFetch error means "no value".
func IsMissing(err error) bool { return cacheinfra.IsMissing(err) }

// Store is the read-through store table caches keep rows and relation
// lookups in. Concurrent misses of one key share a single fetch.
type Store[V any] interface {
	GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error)
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Drain(prefix string) []V
	Keys() []string
	Len() int
}

// NewStore constructs the default sturdyc backed store.
func NewStore[V any](cfg Config) (Store[V], error) {
	s, err := cacheinfra.NewStore[V](cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return s, nil
}
