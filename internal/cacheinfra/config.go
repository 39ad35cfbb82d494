package cacheinfra

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/viccon/sturdyc"
)

// Config holds the sturdyc settings of one store.
type Config struct {
	// Capacity is the maximum number of entries a store keeps.
	Capacity int

	// NumShards splits each store for concurrent access. Default: 64
	NumShards int

	// TTL is how long an entry stays valid. Change notifications purge
	// entries long before that in practice.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted when a store is
	// full. Must be between 1-100.
	EvictionPercentage int

	// EarlyRefresh refreshes hot entries before they expire. Nil disables it.
	EarlyRefresh *EarlyRefreshConfig

	// MissingRecordStorage remembers keys that matched no row, so repeated
	// lookups of absent rows do not reach the database.
	MissingRecordStorage bool

	// EvictionInterval sets how often expired entries are swept. Zero keeps
	// the sturdyc default.
	EvictionInterval time.Duration
}

// EarlyRefreshConfig mirrors sturdyc.WithEarlyRefreshes.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// DefaultConfig returns the settings used when none are supplied.
func DefaultConfig() Config {
	return Config{
		Capacity:             10000,
		NumShards:            64,
		TTL:                  10 * time.Minute,
		EvictionPercentage:   10,
		MissingRecordStorage: true,
	}
}

// ToSturdycOptions maps the optional settings. Capacity, NumShards, TTL and
// EvictionPercentage go straight to sturdyc.New.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option

	if c.EarlyRefresh != nil {
		options = append(options, sturdyc.WithEarlyRefreshes(
			c.EarlyRefresh.MinAsyncRefreshTime,
			c.EarlyRefresh.MaxAsyncRefreshTime,
			c.EarlyRefresh.SyncRefreshTime,
			c.EarlyRefresh.RetryBaseDelay,
		))
	}
	if c.MissingRecordStorage {
		options = append(options, sturdyc.WithMissingRecordStorage())
	}
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	errs := validation.Errors{
		"Capacity":           validation.Validate(c.Capacity, validation.Required, validation.Min(1)),
		"NumShards":          validation.Validate(c.NumShards, validation.Required, validation.Min(1)),
		"TTL":                validation.Validate(c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		"EvictionPercentage": validation.Validate(c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		"EvictionInterval":   validation.Validate(c.EvictionInterval, validation.Min(time.Duration(0))),
	}
	if r := c.EarlyRefresh; r != nil {
		nonNegative := validation.Min(time.Duration(0))
		errs["EarlyRefresh.MinAsyncRefreshTime"] = validation.Validate(r.MinAsyncRefreshTime, nonNegative)
		errs["EarlyRefresh.MaxAsyncRefreshTime"] = validation.Validate(r.MaxAsyncRefreshTime, nonNegative)
		errs["EarlyRefresh.SyncRefreshTime"] = validation.Validate(r.SyncRefreshTime, nonNegative)
		errs["EarlyRefresh.RetryBaseDelay"] = validation.Validate(r.RetryBaseDelay, nonNegative)
		if r.MaxAsyncRefreshTime < r.MinAsyncRefreshTime {
			errs["EarlyRefresh.MaxAsyncRefreshTime"] = validation.NewError(
				"validation_refresh_window", "must not be below MinAsyncRefreshTime")
		}
	}

	if err := errs.Filter(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache configuration").
			WithTextCode("CACHE_CONFIG_INVALID")
	}
	return nil
}
