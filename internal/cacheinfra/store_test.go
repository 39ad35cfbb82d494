package cacheinfra

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Capacity = 1000
	cfg.NumShards = 4
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.MissingRecordStorage {
		t.Error("expected MissingRecordStorage to be enabled")
	}
	if cfg.EarlyRefresh != nil {
		t.Error("expected early refresh to be off by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, "Capacity"},
		{"negative shards", func(c *Config) { c.NumShards = -1 }, "NumShards"},
		{"zero ttl", func(c *Config) { c.TTL = 0 }, "TTL"},
		{"eviction above 100", func(c *Config) { c.EvictionPercentage = 101 }, "EvictionPercentage"},
		{"negative interval", func(c *Config) { c.EvictionInterval = -time.Second }, "EvictionInterval"},
		{"negative refresh", func(c *Config) {
			c.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: -1}
		}, "EarlyRefresh.MinAsyncRefreshTime"},
		{"inverted refresh window", func(c *Config) {
			c.EarlyRefresh = &EarlyRefreshConfig{MinAsyncRefreshTime: time.Minute, MaxAsyncRefreshTime: time.Second}
		}, "EarlyRefresh.MaxAsyncRefreshTime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var gerr *goerrors.Error
			if !errors.As(err, &gerr) || gerr.Category != goerrors.CategoryValidation {
				t.Fatalf("expected validation category, got %v", err)
			}
			if !containsField(err, tt.field) {
				t.Fatalf("error %v does not flag %s", err, tt.field)
			}
		})
	}
}

func containsField(err error, field string) bool {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return false
	}
	return verrs[field] != nil
}

func TestConfig_ToSturdycOptions(t *testing.T) {
	cfg := Config{}
	if n := len(cfg.ToSturdycOptions()); n != 0 {
		t.Fatalf("expected no options, got %d", n)
	}
	cfg.MissingRecordStorage = true
	cfg.EvictionInterval = time.Second
	cfg.EarlyRefresh = &EarlyRefreshConfig{
		MinAsyncRefreshTime: time.Second,
		MaxAsyncRefreshTime: 2 * time.Second,
		SyncRefreshTime:     3 * time.Second,
		RetryBaseDelay:      time.Millisecond,
	}
	if n := len(cfg.ToSturdycOptions()); n != 3 {
		t.Fatalf("expected 3 options, got %d", n)
	}
}

func TestNewStore_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewStore[string](Config{}); err == nil {
		t.Fatal("expected error for empty config")
	}
}

func TestStore_GetOrFetch(t *testing.T) {
	s, err := NewStore[string](testConfig())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	ctx := context.Background()
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		return "v", nil
	}

	for range 3 {
		v, err := s.GetOrFetch(ctx, "k", fetch)
		if err != nil || v != "v" {
			t.Fatalf("GetOrFetch() = %q, %v", v, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
	if got, ok := s.Get("k"); !ok || got != "v" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
}

func TestStore_FetchErrorIsNotStored(t *testing.T) {
	s, _ := NewStore[int](testConfig())
	ctx := context.Background()
	boom := errors.New("boom")

	if _, err := s.GetOrFetch(ctx, "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	v, err := s.GetOrFetch(ctx, "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("GetOrFetch() after failure = %d, %v", v, err)
	}
}

func TestStore_MissingRecords(t *testing.T) {
	s, _ := NewStore[int](testConfig())
	ctx := context.Background()
	var calls atomic.Int32
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		return 0, ErrNotFound
	}

	for range 2 {
		if _, err := s.GetOrFetch(ctx, "absent", fetch); !IsMissing(err) {
			t.Fatalf("error = %v, want a missing record", err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want the miss remembered", calls.Load())
	}
}

func TestStore_ConcurrentMissesShareFetch(t *testing.T) {
	s, _ := NewStore[int](testConfig())
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 1, nil
	}

	var wg sync.WaitGroup
	var started sync.WaitGroup
	for range 8 {
		wg.Add(1)
		started.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			if _, err := s.GetOrFetch(ctx, "k", fetch); err != nil {
				t.Errorf("GetOrFetch() error = %v", err)
			}
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}
}

func TestStore_Drain(t *testing.T) {
	s, _ := NewStore[int](testConfig())
	s.Set("users::1", 1)
	s.Set("users::2", 2)
	s.Set("orders::1", 3)

	got := s.Drain("users::")
	sort.Ints(got)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("Drain() = %v, want [1 2]", got)
	}
	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "orders::1" {
		t.Fatalf("Keys() = %v", keys)
	}

	s.Delete("orders::1")
	if _, ok := s.Get("orders::1"); ok {
		t.Fatal("Delete() left the key")
	}

	s.Set("a", 1)
	s.Set("b", 2)
	if got := s.Drain(""); len(got) != 2 || s.Len() != 0 {
		t.Fatalf("Drain(\"\") = %v, Len() = %d", got, s.Len())
	}
}

func TestStore_DrainSkipsRememberedMisses(t *testing.T) {
	s, _ := NewStore[int](testConfig())
	ctx := context.Background()
	_, _ = s.GetOrFetch(ctx, "absent", func(context.Context) (int, error) { return 0, ErrNotFound })
	s.Set("present", 4)

	if got := s.Drain(""); len(got) != 1 || got[0] != 4 {
		t.Fatalf("Drain() = %v, want [4]", got)
	}
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}
