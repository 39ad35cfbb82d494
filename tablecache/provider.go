package tablecache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rowcache/cache"
	"github.com/goliatone/go-rowcache/instance"
	"github.com/goliatone/go-rowcache/schema"
)

var (
	_ instance.Provider   = (*Provider)(nil)
	_ instance.TableCache = (*Table)(nil)
	_ instance.Scope      = (*TxScope)(nil)
)

// ChangeHook is called after a committed transaction wrote to a table, and
// for every NotifyChanged call.
type ChangeHook func(ctx context.Context, table string)

// Option configures a Provider.
type Option func(*Provider)

// WithConfig sets the store configuration used for every table.
func WithConfig(cfg cache.Config) Option {
	return func(p *Provider) { p.cfg = cfg }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(p *Provider) {
		if keys != nil {
			p.keys = keys
		}
	}
}

// WithChangeHook adds a hook run after local invalidation.
func WithChangeHook(hook ChangeHook) Option {
	return func(p *Provider) {
		if hook != nil {
			p.hooks = append(p.hooks, hook)
		}
	}
}

// Provider owns one Table cache per schema table and hands out scopes.
type Provider struct {
	db     *bun.DB
	schema *schema.Schema
	cfg    cache.Config
	keys   cache.KeySerializer
	logger *slog.Logger
	hooks  []ChangeHook

	tables   map[*schema.Table]*Table
	byName   map[string]*Table
	readOnly *readOnlyScope
}

// New builds a provider over db for every table of s.
func New(db *bun.DB, s *schema.Schema, opts ...Option) (*Provider, error) {
	p := &Provider{
		db:     db,
		schema: s,
		cfg:    cache.DefaultConfig(),
		keys:   cache.NewDefaultKeySerializer(),
		logger: slog.Default(),
		tables: make(map[*schema.Table]*Table, len(s.Tables())),
		byName: make(map[string]*Table, len(s.Tables())),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "tablecache")
	p.readOnly = &readOnlyScope{provider: p}

	for _, st := range s.Tables() {
		t, err := newTable(p, st)
		if err != nil {
			return nil, err
		}
		p.tables[st] = t
		p.byName[st.Name()] = t
	}
	return p, nil
}

func (p *Provider) DB() *bun.DB            { return p.db }
func (p *Provider) Schema() *schema.Schema { return p.schema }

// ReadOnly returns the shared scope. It never finishes.
func (p *Provider) ReadOnly() instance.Scope { return p.readOnly }

// TableCache returns the cache of table. It panics for tables of another
// schema.
func (p *Provider) TableCache(table *schema.Table) instance.TableCache {
	return p.mustTable(table)
}

// Table returns the cache of the named table, or nil.
func (p *Provider) Table(name string) *Table {
	return p.byName[name]
}

func (p *Provider) mustTable(table *schema.Table) *Table {
	t, ok := p.tables[table]
	if !ok {
		panic(fmt.Sprintf("tablecache: table %s is not part of the provider schema", table))
	}
	return t
}

func (p *Provider) lookupTable(name string) (*Table, error) {
	t := p.byName[name]
	if t == nil {
		return nil, goerrors.New("unknown table "+name, goerrors.CategoryNotFound).
			WithTextCode("TABLE_NOT_FOUND")
	}
	return t, nil
}

// Begin opens a transaction scope.
func (p *Provider) Begin(ctx context.Context) (*TxScope, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "begin transaction").
			WithTextCode("TX_BEGIN")
	}
	return newTxScope(p, tx), nil
}

// Write runs fn in a transaction. It commits when fn returns nil and rolls
// back when fn fails or panics. A transaction fn finished itself is left
// alone.
func (p *Provider) Write(ctx context.Context, fn func(tx *TxScope) error) error {
	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if !tx.Status().Finished() {
				_ = tx.Rollback(ctx)
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if !tx.Status().Finished() {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				p.logger.Warn("rollback failed", "error", rbErr)
			}
		}
		return err
	}
	if tx.Status().Finished() {
		return nil
	}
	return tx.Commit(ctx)
}

// Invalidate drops the cached rows of the named table and notifies its
// subscribers, without running change hooks.
func (p *Provider) Invalidate(table string) error {
	t, err := p.lookupTable(table)
	if err != nil {
		return err
	}
	t.Invalidate()
	return nil
}

// NotifyChanged reports a write made outside the provider, for example by
// another process or a raw statement on Tx().
func (p *Provider) NotifyChanged(ctx context.Context, table string) error {
	t, err := p.lookupTable(table)
	if err != nil {
		return err
	}
	p.changed(ctx, []*schema.Table{t.table}, true)
	return nil
}

func (p *Provider) changed(ctx context.Context, tables []*schema.Table, runHooks bool) {
	for _, st := range tables {
		p.mustTable(st).Invalidate()
	}
	if !runHooks {
		return
	}
	for _, st := range tables {
		for _, hook := range p.hooks {
			hook(ctx, st.Name())
		}
	}
}

// Stats reports every table, sorted by name.
func (p *Provider) Stats() []Stats {
	out := make([]Stats, 0, len(p.tables))
	for _, t := range p.tables {
		out = append(out, t.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}
