// Package identity implements the identity keys used to address rows and
// relation targets in the row caches.
//
// A Key is a closed tagged union over the primitive column types (signed and
// unsigned integers, text, byte sequences, booleans, decimals, times,
// durations, UUIDs and a float fallback), a canonical null case and a
// composite case for multi-column identities:
//
//	k := identity.FromValue(int64(42))
//	ck := identity.FromValues("tenant-1", int32(7))
//	identity.FromValues(nil, nil) == identity.Null // true
//
// Keys are plain comparable values, so they can key Go maps directly. Lookup
// pairs a key with the index it targets and is used to memoize relation
// queries.
package identity
