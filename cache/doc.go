// Package cache provides the storage primitives table caches are built on.
//
// # Overview
//
// Two pieces are exported:
//
//   - Store: a typed read-through store backed by sturdyc
//   - KeySerializer: turns an identity.Key into a stable string key
//
// # Basic Usage
//
//	store, err := cache.NewStore[*instance.Immutable](cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	keys := cache.NewDefaultKeySerializer()
//	row, err := store.GetOrFetch(ctx, keys.SerializeKey("users", id), func(ctx context.Context) (*instance.Immutable, error) {
//		return loadUser(ctx, id)
//	})
//
// A fetch function returns cache.ErrNotFound when the row does not exist.
// With MissingRecordStorage enabled the miss is kept, and later calls fail
// fast with an error IsMissing recognizes.
//
// # Key Format
//
// Keys are the namespace, KeySeparator and the hex encoded canonical binary
// form of the identity key (identity.Key.AppendBinary). Equal identity keys
// always produce the same string, and every key of a namespace shares
// Prefix(namespace), so Drain(Prefix(namespace)) drops one namespace at a
// time. Table caches put their invalidation generation in the namespace.
//
// # Configuration
//
// Config carries yaml tags and is usually loaded as part of the container
// configuration. Validate reports every invalid field in a single error of
// the go-errors validation category.
package cache
