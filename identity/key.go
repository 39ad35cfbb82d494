package identity

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Key is the canonical identity of a row or of a relation lookup target.
//
// Key is a comparable value type: two keys built from the same logical values
// are == to each other and hash identically, so a Key can be used directly as
// a Go map key. Byte sequences are held by content. Composite keys hold the
// canonical encoding of their ordered parts.
//
// The zero Key is the canonical null key.
type Key struct {
	kind Kind
	num  uint64
	str  string
}

// Null is the single representation of "no identity", whatever the number of
// underlying columns that were null.
var Null = Key{}

// Kind returns the variant tag.
func (k Key) Kind() Kind { return k.kind }

// IsNull reports whether k is the canonical null key.
func (k Key) IsNull() bool { return k.kind == KindNull }

// Equal reports whether k and other identify the same value(s).
func (k Key) Equal(other Key) bool { return k == other }

// Hash returns a 64-bit hash of the key's canonical encoding. It is stable for
// the lifetime of the process and across processes.
func (k Key) Hash() uint64 {
	var buf [48]byte
	return xxhash.Sum64(k.AppendBinary(buf[:0]))
}

// Len returns the number of parts: 0 for null, N for a composite, 1 otherwise.
func (k Key) Len() int {
	switch k.kind {
	case KindNull:
		return 0
	case KindComposite:
		n := 0
		for rest := k.str; rest != ""; n++ {
			_, rest = decodePart(rest)
		}
		return n
	default:
		return 1
	}
}

// Parts returns the ordered sub-keys of a composite key, or k itself for any
// other non-null key.
func (k Key) Parts() []Key {
	switch k.kind {
	case KindNull:
		return nil
	case KindComposite:
		var parts []Key
		for rest := k.str; rest != ""; {
			var p Key
			p, rest = decodePart(rest)
			parts = append(parts, p)
		}
		return parts
	default:
		return []Key{k}
	}
}

// Value returns the Go value held by a single-part key. It panics on
// composite keys; use Values for those.
func (k Key) Value() any {
	switch k.kind {
	case KindNull:
		return nil
	case KindInt8:
		return int8(k.num)
	case KindInt16:
		return int16(k.num)
	case KindInt32:
		return int32(k.num)
	case KindInt64:
		return int64(k.num)
	case KindUint8:
		return uint8(k.num)
	case KindUint16:
		return uint16(k.num)
	case KindUint32:
		return uint32(k.num)
	case KindUint64:
		return k.num
	case KindString:
		return k.str
	case KindBytes:
		return []byte(k.str)
	case KindBool:
		return k.num != 0
	case KindDecimal:
		return decimal.RequireFromString(k.str)
	case KindTime:
		sec := int64(binary.BigEndian.Uint64([]byte(k.str[:8])) ^ (1 << 63))
		nsec := int64(binary.BigEndian.Uint32([]byte(k.str[8:])))
		return time.Unix(sec, nsec).UTC()
	case KindDuration:
		return time.Duration(k.num)
	case KindUUID:
		var u uuid.UUID
		copy(u[:], k.str)
		return u
	case KindFloat:
		return math.Float64frombits(k.num)
	case KindComposite:
		panic("identity: Value called on composite key")
	default:
		panic(fmt.Sprintf("identity: %v", k.kind))
	}
}

// Values exposes the underlying value tuple, flattening composite parts in
// order. The null key yields an empty tuple.
func (k Key) Values() []any {
	switch k.kind {
	case KindNull:
		return nil
	case KindComposite:
		parts := k.Parts()
		out := make([]any, 0, len(parts))
		for _, p := range parts {
			out = append(out, p.Values()...)
		}
		return out
	default:
		return []any{k.Value()}
	}
}

// AppendBinary appends the canonical encoding of k to b. Equal keys always
// produce identical bytes.
func (k Key) AppendBinary(b []byte) []byte {
	b = append(b, byte(k.kind))
	switch {
	case k.kind == KindNull:
	case k.kind.hasText():
		b = binary.AppendUvarint(b, uint64(len(k.str)))
		b = append(b, k.str...)
	default:
		b = binary.BigEndian.AppendUint64(b, k.num)
	}
	return b
}

func decodePart(s string) (Key, string) {
	if s == "" {
		panic("identity: truncated composite key")
	}
	kind := Kind(s[0])
	s = s[1:]
	switch {
	case kind == KindNull:
		return Null, s
	case kind.hasText():
		n, w := binary.Uvarint([]byte(s[:min(len(s), binary.MaxVarintLen64)]))
		if w <= 0 || uint64(len(s)-w) < n {
			panic("identity: corrupt composite key")
		}
		s = s[w:]
		return Key{kind: kind, str: s[:n]}, s[n:]
	default:
		if len(s) < 8 {
			panic("identity: corrupt composite key")
		}
		return Key{kind: kind, num: binary.BigEndian.Uint64([]byte(s[:8]))}, s[8:]
	}
}

func (k Key) String() string {
	switch k.kind {
	case KindNull:
		return "null"
	case KindComposite:
		parts := k.Parts()
		strs := make([]string, len(parts))
		for i, p := range parts {
			strs[i] = p.String()
		}
		return "(" + strings.Join(strs, ", ") + ")"
	case KindString:
		return strconv.Quote(k.str)
	case KindBytes:
		return "0x" + hex.EncodeToString([]byte(k.str))
	case KindTime:
		return k.Value().(time.Time).Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", k.Value())
	}
}
