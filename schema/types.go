package schema

import (
	"fmt"
	"math"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ColumnType is the closed set of column types a table may declare. Each type
// maps to exactly one Go representation and one identity key variant.
type ColumnType uint8

const (
	Int8 ColumnType = iota + 1
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	String
	Bytes
	Bool
	Decimal
	Time
	Duration
	UUID
	Float32
	Float64
)

var columnTypeNames = map[ColumnType]string{
	Int8:     "int8",
	Int16:    "int16",
	Int32:    "int32",
	Int64:    "int64",
	Uint8:    "uint8",
	Uint16:   "uint16",
	Uint32:   "uint32",
	Uint64:   "uint64",
	String:   "string",
	Bytes:    "bytes",
	Bool:     "bool",
	Decimal:  "decimal",
	Time:     "time",
	Duration: "duration",
	UUID:     "uuid",
	Float32:  "float32",
	Float64:  "float64",
}

func (t ColumnType) String() string {
	if s, ok := columnTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ColumnType(%d)", uint8(t))
}

// Valid reports whether t is one of the declared column types.
func (t ColumnType) Valid() bool {
	_, ok := columnTypeNames[t]
	return ok
}

// FixedWidth returns the in-memory width used for footprint accounting. The
// second result is false for variable-width types, whose size is measured per
// value.
func (t ColumnType) FixedWidth() (int, bool) {
	switch t {
	case Int8, Uint8, Bool:
		return 1, true
	case Int16, Uint16:
		return 2, true
	case Int32, Uint32, Float32:
		return 4, true
	case Int64, Uint64, Float64, Duration:
		return 8, true
	case UUID:
		return 16, true
	case Time:
		return 24, true
	default:
		return 0, false
	}
}

// MeasureValue returns the footprint of v stored in a column of type t.
func (t ColumnType) MeasureValue(v any) int {
	if w, ok := t.FixedWidth(); ok {
		return w
	}
	switch x := v.(type) {
	case nil:
		return 0
	case string:
		return len(x)
	case []byte:
		return len(x)
	case decimal.Decimal:
		return len(x.String())
	default:
		return 8
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Coerce converts a driver or caller supplied value into the canonical Go
// representation of t. nil stays nil.
func (t ColumnType) Coerce(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case Int8:
		return coerceSigned(t, v, math.MinInt8, math.MaxInt8, func(n int64) any { return int8(n) })
	case Int16:
		return coerceSigned(t, v, math.MinInt16, math.MaxInt16, func(n int64) any { return int16(n) })
	case Int32:
		return coerceSigned(t, v, math.MinInt32, math.MaxInt32, func(n int64) any { return int32(n) })
	case Int64:
		return coerceSigned(t, v, math.MinInt64, math.MaxInt64, func(n int64) any { return n })
	case Uint8:
		return coerceUnsigned(t, v, math.MaxUint8, func(n uint64) any { return uint8(n) })
	case Uint16:
		return coerceUnsigned(t, v, math.MaxUint16, func(n uint64) any { return uint16(n) })
	case Uint32:
		return coerceUnsigned(t, v, math.MaxUint32, func(n uint64) any { return uint32(n) })
	case Uint64:
		return coerceUnsigned(t, v, math.MaxUint64, func(n uint64) any { return n })
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		}
	case Bytes:
		switch x := v.(type) {
		case []byte:
			return append([]byte{}, x...), nil
		case string:
			return []byte(x), nil
		}
	case Bool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		case []byte:
			if b, err := strconv.ParseBool(string(x)); err == nil {
				return b, nil
			}
		default:
			if n, ok := asInt64(v); ok {
				return n != 0, nil
			}
		}
	case Decimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case string:
			if d, err := decimal.NewFromString(x); err == nil {
				return d, nil
			}
		case []byte:
			if d, err := decimal.NewFromString(string(x)); err == nil {
				return d, nil
			}
		case float64:
			return decimal.NewFromFloat(x), nil
		case float32:
			return decimal.NewFromFloat32(x), nil
		default:
			if n, ok := asInt64(v); ok {
				return decimal.NewFromInt(n), nil
			}
		}
	case Time:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			if ts, ok := parseTime(x); ok {
				return ts, nil
			}
		case []byte:
			if ts, ok := parseTime(string(x)); ok {
				return ts, nil
			}
		case int64:
			return time.Unix(x, 0).UTC(), nil
		}
	case Duration:
		switch x := v.(type) {
		case time.Duration:
			return x, nil
		case int64:
			return time.Duration(x), nil
		case string:
			if d, err := time.ParseDuration(x); err == nil {
				return d, nil
			}
		}
	case UUID:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case [16]byte:
			return uuid.UUID(x), nil
		case []byte:
			if len(x) == 16 {
				return uuid.FromBytes(x)
			}
			if u, err := uuid.ParseBytes(x); err == nil {
				return u, nil
			}
		case string:
			if u, err := uuid.Parse(x); err == nil {
				return u, nil
			}
		}
	case Float32, Float64:
		var f float64
		var ok bool
		switch x := v.(type) {
		case float64:
			f, ok = x, true
		case float32:
			f, ok = float64(x), true
		case string:
			var err error
			f, err = strconv.ParseFloat(x, 64)
			ok = err == nil
		case []byte:
			var err error
			f, err = strconv.ParseFloat(string(x), 64)
			ok = err == nil
		default:
			var n int64
			n, ok = asInt64(v)
			f = float64(n)
		}
		if ok {
			if t == Float32 {
				return float32(f), nil
			}
			return f, nil
		}
	}
	return nil, coerceError(t, v)
}

func coerceError(t ColumnType, v any) error {
	return goerrors.New(fmt.Sprintf("cannot convert %T to %s", v, t), goerrors.CategoryValidation).
		WithTextCode("COLUMN_TYPE_MISMATCH")
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case int16:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case uint:
		if uint64(x) > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(string(x), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func coerceSigned(t ColumnType, v any, lo, hi int64, conv func(int64) any) (any, error) {
	n, ok := asInt64(v)
	if !ok || n < lo || n > hi {
		return nil, coerceError(t, v)
	}
	return conv(n), nil
}

func coerceUnsigned(t ColumnType, v any, hi uint64, conv func(uint64) any) (any, error) {
	var n uint64
	switch x := v.(type) {
	case uint64:
		n = x
	case uint:
		n = uint64(x)
	default:
		s, ok := asInt64(v)
		if !ok || s < 0 {
			return nil, coerceError(t, v)
		}
		n = uint64(s)
	}
	if n > hi {
		return nil, coerceError(t, v)
	}
	return conv(n), nil
}
