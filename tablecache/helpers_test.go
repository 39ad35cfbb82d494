package tablecache

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/goliatone/go-rowcache/cache"
	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/instance"
	"github.com/goliatone/go-rowcache/pkg/testsupport"
)

func testConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Capacity = 1000
	cfg.NumShards = 4
	return cfg
}

func newTestProvider(t *testing.T, opts ...Option) *Provider {
	t.Helper()
	db := testsupport.OpenOrders(t)
	base := []Option{
		WithConfig(testConfig()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	p, err := New(db, testsupport.MustOrdersSchema(t), append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func mustRow(t *testing.T, p *Provider, scope instance.Scope, table string, id int64) *instance.Immutable {
	t.Helper()
	r, err := p.Table(table).Row(context.Background(), identity.FromValue(id), scope)
	if err != nil {
		t.Fatalf("Row(%s, %d) error = %v", table, id, err)
	}
	if r == nil {
		t.Fatalf("Row(%s, %d) = nil", table, id)
	}
	return r
}

func queries(p *Provider, table string) int64 {
	return p.Table(table).Stats().Queries
}

func mustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
}
