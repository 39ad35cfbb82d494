package cache

import (
	"strings"

	"github.com/tmthrgd/go-hex"

	"github.com/goliatone/go-rowcache/identity"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// KeySerializer turns an identity key into a store key under a namespace,
// usually a table name or an index ID.
type KeySerializer interface {
	SerializeKey(namespace string, key identity.Key) string
}

type defaultKeySerializer struct{}

// NewDefaultKeySerializer returns the serializer used by table caches. Keys
// look like "users::040000000000000007" and are stable across processes, so
// they may be shared with an external cache.
func NewDefaultKeySerializer() KeySerializer {
	return defaultKeySerializer{}
}

func (defaultKeySerializer) SerializeKey(namespace string, key identity.Key) string {
	var buf [64]byte
	enc := key.AppendBinary(buf[:0])

	var b strings.Builder
	b.Grow(len(namespace) + len(KeySeparator) + hex.EncodedLen(len(enc)))
	b.WriteString(namespace)
	b.WriteString(KeySeparator)
	b.WriteString(hex.EncodeToString(enc))
	return b.String()
}

// Prefix returns the prefix shared by every key serialized under namespace.
func Prefix(namespace string) string {
	return namespace + KeySeparator
}
