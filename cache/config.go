package cache

import (
	"time"

	"github.com/goliatone/go-rowcache/internal/cacheinfra"
)

// Config sizes the stores behind every table cache. Each table gets one store
// for rows keyed by primary key and one for relation lookups, and each store
// is built from the same Config, so Capacity bounds a single store.
type Config struct {
	// Capacity is the number of rows or lookups one store keeps.
	Capacity  int `yaml:"capacity"`
	NumShards int `yaml:"num_shards"`
	// TTL bounds how long a row may be served without a change notification,
	// which matters when other processes write without a notify bridge.
	TTL                time.Duration `yaml:"ttl"`
	EvictionPercentage int           `yaml:"eviction_percentage"`
	// EarlyRefresh re-reads hot rows in the background before TTL expiry.
	EarlyRefresh *EarlyRefreshConfig `yaml:"early_refresh,omitempty"`
	// MissingRecordStorage remembers primary keys with no row, so repeated
	// lookups of a dangling foreign key do not query again.
	MissingRecordStorage bool          `yaml:"missing_record_storage"`
	EvictionInterval     time.Duration `yaml:"eviction_interval"`
}

type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration `yaml:"min_async_refresh_time"`
	MaxAsyncRefreshTime time.Duration `yaml:"max_async_refresh_time"`
	SyncRefreshTime     time.Duration `yaml:"sync_refresh_time"`
	RetryBaseDelay      time.Duration `yaml:"retry_base_delay"`
}

// DefaultConfig keeps 10000 entries per store for ten minutes and remembers
// missing rows.
func DefaultConfig() Config {
	return fromInternal(cacheinfra.DefaultConfig())
}

// Validate reports every invalid field in one validation error.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

func (c Config) toInternal() cacheinfra.Config {
	cfg := cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
	if e := c.EarlyRefresh; e != nil {
		cfg.EarlyRefresh = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: e.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: e.MaxAsyncRefreshTime,
			SyncRefreshTime:     e.SyncRefreshTime,
			RetryBaseDelay:      e.RetryBaseDelay,
		}
	}
	return cfg
}

func fromInternal(in cacheinfra.Config) Config {
	c := Config{
		Capacity:             in.Capacity,
		NumShards:            in.NumShards,
		TTL:                  in.TTL,
		EvictionPercentage:   in.EvictionPercentage,
		MissingRecordStorage: in.MissingRecordStorage,
		EvictionInterval:     in.EvictionInterval,
	}
	if e := in.EarlyRefresh; e != nil {
		c.EarlyRefresh = &EarlyRefreshConfig{
			MinAsyncRefreshTime: e.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: e.MaxAsyncRefreshTime,
			SyncRefreshTime:     e.SyncRefreshTime,
			RetryBaseDelay:      e.RetryBaseDelay,
		}
	}
	return c
}
