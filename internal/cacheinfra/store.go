package cacheinfra

import (
	"context"
	"errors"
	"strings"

	"github.com/viccon/sturdyc"
)

// ErrNotFound is returned by fetch functions to report that the source has no
// value for a key. With MissingRecordStorage enabled the miss is remembered.
var ErrNotFound = sturdyc.ErrNotFound

// IsMissing reports whether err means "no value", either fetched just now or
// remembered from an earlier fetch.
func IsMissing(err error) bool {
	return errors.Is(err, sturdyc.ErrNotFound) || errors.Is(err, sturdyc.ErrMissingRecord)
}

// Store is a typed read-through store on top of a sturdyc client. Concurrent
// misses of one key share a single fetch.
type Store[V any] struct {
	client *sturdyc.Client[V]
}

// NewStore validates cfg and builds the sturdyc client.
func NewStore[V any](cfg Config) (*Store[V], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := sturdyc.New[V](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &Store[V]{client: client}, nil
}

// GetOrFetch returns the stored value for key or calls fetch and stores its
// result. Errors other than ErrNotFound are not stored.
func (s *Store[V]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	return s.client.GetOrFetch(ctx, key, fetch)
}

func (s *Store[V]) Get(key string) (V, bool) {
	return s.client.Get(key)
}

func (s *Store[V]) Set(key string, value V) {
	s.client.Set(key, value)
}

func (s *Store[V]) Delete(key string) {
	s.client.Delete(key)
}

// Drain removes every key starting with prefix and returns the values it
// held. Remembered misses are removed but yield no value.
func (s *Store[V]) Drain(prefix string) []V {
	var out []V
	for _, key := range s.client.ScanKeys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if v, ok := s.client.Get(key); ok {
			out = append(out, v)
		}
		s.client.Delete(key)
	}
	return out
}

// Keys lists the stored keys in no particular order.
func (s *Store[V]) Keys() []string {
	return s.client.ScanKeys()
}

func (s *Store[V]) Len() int {
	return s.client.Size()
}
