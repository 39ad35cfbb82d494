package cache

import (
	"strings"
	"testing"

	"github.com/goliatone/go-rowcache/identity"
)

func TestDefaultKeySerializer_Format(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	tests := []struct {
		name      string
		namespace string
		key       identity.Key
		want      string
	}{
		{"int64", "users", identity.FromValue(7), "users::040000000000000007"},
		{"string", "tags", identity.FromValue("ann"), "tags::0903616e6e"},
		{"null", "users", identity.Null, "users::00"},
		{"index namespace", "orders.ix_user_id", identity.FromValue(int64(1)), "orders.ix_user_id::040000000000000001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serializer.SerializeKey(tt.namespace, tt.key); got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Stability(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	a := serializer.SerializeKey("t", identity.FromValues(int32(1), "x", []byte{0, 1}))
	b := serializer.SerializeKey("t", identity.FromValues(int32(1), "x", []byte{0, 1}))
	if a != b {
		t.Fatalf("equal keys serialized differently: %q vs %q", a, b)
	}

	distinct := []identity.Key{
		identity.FromValue(int32(1)),
		identity.FromValue(int64(1)),
		identity.FromValue("1"),
		identity.FromValues(int64(1), int64(2)),
		identity.FromValues(int64(2), int64(1)),
		identity.FromValues("a", "bc"),
		identity.FromValues("ab", "c"),
	}
	seen := make(map[string]identity.Key)
	for _, k := range distinct {
		s := serializer.SerializeKey("t", k)
		if prev, dup := seen[s]; dup {
			t.Fatalf("%v and %v share the key %q", prev, k, s)
		}
		seen[s] = k
	}
}

func TestPrefix(t *testing.T) {
	key := NewDefaultKeySerializer().SerializeKey("users", identity.FromValue(1))
	if !strings.HasPrefix(key, Prefix("users")) {
		t.Fatalf("%q does not start with %q", key, Prefix("users"))
	}
	if strings.HasPrefix(key, Prefix("user")) {
		t.Fatal("prefix must not match a namespace that is only a string prefix")
	}
}
