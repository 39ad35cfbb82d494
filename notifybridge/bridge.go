// Package notifybridge fans table change notifications out to other
// processes over Redis pub/sub, so their table caches drop rows another
// process wrote.
package notifybridge

import (
	"context"
	"log/slog"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "rowcache:changes"

// Envelope is the message published for every changed table.
type Envelope struct {
	Origin string    `msgpack:"origin"`
	Table  string    `msgpack:"table"`
	At     time.Time `msgpack:"at"`
}

// Invalidator drops the local cache of a table without publishing again.
// *tablecache.Provider implements it.
type Invalidator interface {
	Invalidate(table string) error
}

// Option configures a Bridge.
type Option func(*Bridge)

func WithChannel(channel string) Option {
	return func(b *Bridge) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithOrigin sets the identifier messages of this process are tagged with.
// It defaults to a random UUID.
func WithOrigin(origin string) Option {
	return func(b *Bridge) {
		if origin != "" {
			b.origin = origin
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// Bridge publishes local changes and applies remote ones.
type Bridge struct {
	client  redis.UniversalClient
	channel string
	origin  string
	logger  *slog.Logger
	now     func() time.Time
}

func New(client redis.UniversalClient, opts ...Option) *Bridge {
	b := &Bridge{
		client:  client,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "notifybridge", "channel", b.channel)
	return b
}

func (b *Bridge) Origin() string  { return b.origin }
func (b *Bridge) Channel() string { return b.channel }

// Publish announces that table changed in this process.
func (b *Bridge) Publish(ctx context.Context, table string) error {
	payload, err := Encode(Envelope{Origin: b.origin, Table: table, At: b.now().UTC()})
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "publish change of "+table).
			WithTextCode("BRIDGE_PUBLISH")
	}
	return nil
}

// Hook adapts Publish to a change hook, logging failures.
func (b *Bridge) Hook() func(ctx context.Context, table string) {
	return func(ctx context.Context, table string) {
		if err := b.Publish(ctx, table); err != nil {
			b.logger.Warn("change not published", "table", table, "error", err)
		}
	}
}

// Run subscribes to the channel and applies remote changes to target until
// ctx is done or the subscription is closed.
func (b *Bridge) Run(ctx context.Context, target Invalidator) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "subscribe to "+b.channel).
			WithTextCode("BRIDGE_SUBSCRIBE")
	}
	b.logger.Info("listening for remote changes", "origin", b.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := b.handle(target, []byte(msg.Payload)); err != nil {
				b.logger.Warn("remote change dropped", "error", err)
			}
		}
	}
}

// handle applies one message. Messages of this process are skipped, the
// local invalidation already ran.
func (b *Bridge) handle(target Invalidator, payload []byte) error {
	env, err := Decode(payload)
	if err != nil {
		return err
	}
	if env.Origin == b.origin {
		return nil
	}
	b.logger.Debug("remote change", "table", env.Table, "origin", env.Origin)
	return target.Invalidate(env.Table)
}

func Encode(env Envelope) ([]byte, error) {
	data, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "encode change envelope").
			WithTextCode("BRIDGE_ENCODE")
	}
	return data, nil
}

func Decode(payload []byte) (Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(payload, &env); err != nil {
		return Envelope{}, goerrors.Wrap(err, goerrors.CategoryValidation, "decode change envelope").
			WithTextCode("BRIDGE_DECODE")
	}
	if env.Table == "" {
		return Envelope{}, goerrors.New("change envelope without table", goerrors.CategoryValidation).
			WithTextCode("BRIDGE_DECODE")
	}
	return env, nil
}
