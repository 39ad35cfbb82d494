package identity

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Enumerated is implemented by tagged-integer domain types. Underlying must
// return the integral representation (int8..uint64); it is never itself an
// Enumerated value.
type Enumerated interface {
	Underlying() any
}

// FromValue maps a single column value to its key variant. Null-equivalent
// values (nil, invalid sql.Null*, uuid.NullUUID, decimal.NullDecimal, nil
// byte slices) map to Null.
//
// FromValue panics on a value outside the supported type set: the key space is
// total over every column type the schema model produces, so an unmapped type
// is a programming error.
func FromValue(v any) Key {
	return fromValue(v, true)
}

func fromValue(v any, allowEnum bool) Key {
	switch x := v.(type) {
	case nil:
		return Null
	case Key:
		return x
	case int8:
		return Key{kind: KindInt8, num: uint64(x)}
	case int16:
		return Key{kind: KindInt16, num: uint64(x)}
	case int32:
		return Key{kind: KindInt32, num: uint64(x)}
	case int64:
		return Key{kind: KindInt64, num: uint64(x)}
	case int:
		return Key{kind: KindInt64, num: uint64(x)}
	case uint8:
		return Key{kind: KindUint8, num: uint64(x)}
	case uint16:
		return Key{kind: KindUint16, num: uint64(x)}
	case uint32:
		return Key{kind: KindUint32, num: uint64(x)}
	case uint64:
		return Key{kind: KindUint64, num: x}
	case uint:
		return Key{kind: KindUint64, num: uint64(x)}
	case string:
		return Key{kind: KindString, str: x}
	case []byte:
		if x == nil {
			return Null
		}
		return Key{kind: KindBytes, str: string(x)}
	case bool:
		if x {
			return Key{kind: KindBool, num: 1}
		}
		return Key{kind: KindBool}
	case decimal.Decimal:
		return Key{kind: KindDecimal, str: x.String()}
	case time.Time:
		return timeKey(x)
	case time.Duration:
		return Key{kind: KindDuration, num: uint64(x)}
	case uuid.UUID:
		return Key{kind: KindUUID, str: string(x[:])}
	case float32:
		return floatKey(float64(x))
	case float64:
		return floatKey(x)

	case sql.NullString:
		return nullable(x.Valid, x.String)
	case sql.NullInt64:
		return nullable(x.Valid, x.Int64)
	case sql.NullInt32:
		return nullable(x.Valid, x.Int32)
	case sql.NullInt16:
		return nullable(x.Valid, x.Int16)
	case sql.NullByte:
		return nullable(x.Valid, x.Byte)
	case sql.NullBool:
		return nullable(x.Valid, x.Bool)
	case sql.NullFloat64:
		return nullable(x.Valid, x.Float64)
	case sql.NullTime:
		return nullable(x.Valid, x.Time)
	case uuid.NullUUID:
		return nullable(x.Valid, x.UUID)
	case decimal.NullDecimal:
		return nullable(x.Valid, x.Decimal)

	case Enumerated:
		if !allowEnum {
			panic(fmt.Sprintf("identity: enumerated type %T has an enumerated underlying value", v))
		}
		return fromValue(x.Underlying(), false)
	default:
		panic(fmt.Sprintf("identity: unsupported key type %T", v))
	}
}

func nullable[T any](valid bool, v T) Key {
	if !valid {
		return Null
	}
	return fromValue(v, false)
}

// timeKey encodes the instant as whole seconds and nanoseconds so the full
// time.Time range stays exact. The sign bit of the seconds is flipped to keep
// the byte order of the encoding chronological.
func timeKey(t time.Time) Key {
	var buf [12]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(t.Unix())^(1<<63))
	binary.BigEndian.PutUint32(buf[8:], uint32(t.Nanosecond()))
	return Key{kind: KindTime, str: string(buf[:])}
}

// floatKey folds -0 into 0 and every NaN into one canonical NaN so that the
// fallback float variant still has exact, stable equality.
func floatKey(f float64) Key {
	switch {
	case f == 0:
		f = 0
	case math.IsNaN(f):
		f = math.NaN()
	}
	return Key{kind: KindFloat, num: math.Float64bits(f)}
}

// FromValues maps an ordered tuple of column values to a key. A single value
// is delegated to FromValue; a tuple made only of null-equivalent values
// collapses to Null whatever its arity; anything else becomes a composite key
// preserving the column order.
func FromValues(values ...any) Key {
	switch len(values) {
	case 0:
		return Null
	case 1:
		return FromValue(values[0])
	}
	parts := make([]Key, len(values))
	for i, v := range values {
		parts[i] = FromValue(v)
	}
	return Composite(parts...)
}

// Composite builds a composite key from ordered parts. Order is significant.
// A single part is returned unchanged; no parts, or only null parts, give Null.
func Composite(parts ...Key) Key {
	if len(parts) == 1 {
		return parts[0]
	}
	allNull := true
	for _, p := range parts {
		if !p.IsNull() {
			allNull = false
			break
		}
	}
	if allNull {
		return Null
	}
	var buf []byte
	for _, p := range parts {
		buf = p.AppendBinary(buf)
	}
	return Key{kind: KindComposite, str: string(buf)}
}
