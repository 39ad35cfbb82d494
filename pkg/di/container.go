package di

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	goerrors "github.com/goliatone/go-errors"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-rowcache/notifybridge"
	rowschema "github.com/goliatone/go-rowcache/schema"
	"github.com/goliatone/go-rowcache/tablecache"
)

// Container wires the database, the table cache provider and, when Redis is
// configured, the change notification bridge.
type Container struct {
	config   Config
	logger   *slog.Logger
	db       *bun.DB
	provider *tablecache.Provider
	redis    redis.UniversalClient
	bridge   *notifybridge.Bridge
}

// NewContainer opens the database described by config and builds a provider
// for s.
func NewContainer(config Config, s *rowschema.Schema) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger(config.Log, os.Stderr)
	db, err := OpenDB(config.Database)
	if err != nil {
		return nil, err
	}

	c := &Container{config: config, logger: logger, db: db}

	opts := []tablecache.Option{
		tablecache.WithConfig(config.Cache),
		tablecache.WithLogger(logger),
	}
	if config.Redis.Addr != "" {
		c.redis = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		c.bridge = notifybridge.New(c.redis,
			notifybridge.WithChannel(config.Redis.Channel),
			notifybridge.WithLogger(logger),
		)
		opts = append(opts, tablecache.WithChangeHook(c.bridge.Hook()))
	}

	c.provider, err = tablecache.New(db, s, opts...)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	logger.Info("container ready",
		"driver", config.Database.Driver,
		"tables", len(s.Tables()),
		"bridge", c.bridge != nil,
	)
	return c, nil
}

// NewContainerWithDefaults creates a container from DefaultConfig.
func NewContainerWithDefaults(s *rowschema.Schema) (*Container, error) {
	return NewContainer(DefaultConfig(), s)
}

// OpenDB opens cfg.DSN with the driver and bun dialect named by cfg.Driver.
// The connection is not verified.
func OpenDB(cfg DatabaseConfig) (*bun.DB, error) {
	var dialect schema.Dialect
	switch cfg.Driver {
	case "sqlite3":
		dialect = sqlitedialect.New()
	case "postgres":
		dialect = pgdialect.New()
	case "mysql":
		dialect = mysqldialect.New()
	default:
		return nil, goerrors.New("unsupported database driver "+cfg.Driver, goerrors.CategoryValidation).
			WithTextCode("DRIVER_UNSUPPORTED")
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open "+cfg.Driver+" database").
			WithTextCode("DB_OPEN")
	}
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return bun.NewDB(sqldb, dialect), nil
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Start runs the notification bridge in the background until ctx is done. It
// does nothing without Redis.
func (c *Container) Start(ctx context.Context) {
	if c.bridge == nil {
		return
	}
	go func() {
		if err := c.bridge.Run(ctx, c.provider); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("notification bridge stopped", "error", err)
		}
	}()
}

// Close releases Redis and the database.
func (c *Container) Close() error {
	var errs []error
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	if c.db != nil {
		errs = append(errs, c.db.Close())
	}
	return errors.Join(errs...)
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config { return c.config }

func (c *Container) Logger() *slog.Logger           { return c.logger }
func (c *Container) DB() *bun.DB                    { return c.db }
func (c *Container) Provider() *tablecache.Provider { return c.provider }
func (c *Container) Bridge() *notifybridge.Bridge   { return c.bridge }
