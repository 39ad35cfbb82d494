package tablecache

import (
	"math"
	"testing"
	"time"

	"github.com/goliatone/go-rowcache/identity"
)

func TestSQLArg(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"duration", 2 * time.Second, int64(2 * time.Second)},
		{"small uint64", uint64(42), int64(42)},
		{"max int64 as uint64", uint64(math.MaxInt64), int64(math.MaxInt64)},
		{"high bit set", uint64(math.MaxInt64) + 1, "9223372036854775808"},
		{"max uint64", uint64(math.MaxUint64), "18446744073709551615"},
		{"string untouched", "x", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sqlArg(tt.in); got != tt.want {
				t.Fatalf("sqlArg(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestKeyArgs_LargeUnsigned(t *testing.T) {
	args := keyArgs(identity.FromValue(uint64(math.MaxUint64)), 1)
	if args[0] != "18446744073709551615" {
		t.Fatalf("keyArgs() = %#v", args)
	}
}

func TestKeyArgs_FarFutureTime(t *testing.T) {
	never := time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	args := keyArgs(identity.FromValues(int64(1), never), 2)
	if got, ok := args[1].(time.Time); !ok || !got.Equal(never) {
		t.Fatalf("keyArgs() time = %#v, want %v", args[1], never)
	}
}
