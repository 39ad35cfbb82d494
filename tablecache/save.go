package tablecache

import (
	"context"
	"database/sql"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/instance"
	"github.com/goliatone/go-rowcache/schema"
)

// Save writes m back through tx. New records are inserted with their written
// columns, existing ones are updated with exactly Changes(), and records
// marked deleted are removed. The stored row is then read again inside tx and
// becomes m's baseline; the returned instance is bound to tx. Deletes return
// nil. Instances holding the previous snapshot keep seeing it.
func (p *Provider) Save(ctx context.Context, tx *TxScope, m *instance.Mutable) (*instance.Immutable, error) {
	if tx.provider != p {
		panic("tablecache: transaction belongs to another provider")
	}
	tx.mustBeOpen()
	t := p.mustTable(m.Table())

	switch {
	case m.IsDeleted() && m.IsNew():
		m.Reset()
		return nil, nil
	case m.IsDeleted():
		return nil, t.delete(ctx, tx, m)
	case m.IsNew():
		key, err := t.insert(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		return t.reload(ctx, tx, m, key)
	default:
		key, err := t.update(ctx, tx, m)
		if err != nil {
			return nil, err
		}
		return t.reload(ctx, tx, m, key)
	}
}

func (t *Table) insert(ctx context.Context, tx *TxScope, m *instance.Mutable) (identity.Key, error) {
	changes := m.Changes()
	if len(changes) == 0 {
		return identity.Null, saveError(t.table, "nothing to insert", "EMPTY_INSERT", goerrors.CategoryValidation)
	}
	values := make(map[string]any, len(changes))
	for _, c := range changes {
		values[c.Column.Name()] = sqlArg(c.Value)
	}
	q := tx.tx.NewInsert().Model(&values).TableExpr("?", bun.Ident(t.table.Name()))

	auto := t.table.AutoIncrementColumn()
	if auto == nil || m.IsChanged(auto) {
		key := m.Identity()
		if key.IsNull() {
			return identity.Null, saveError(t.table, "primary key not set", "MISSING_PRIMARY_KEY", goerrors.CategoryValidation)
		}
		if _, err := q.Exec(ctx); err != nil {
			return identity.Null, queryError(err, "insert", t.table)
		}
		tx.written(t.table, key)
		return key, nil
	}

	var id int64
	if tx.tx.Dialect().Name() == dialect.PG {
		if err := q.Returning("?", bun.Ident(auto.Name())).Scan(ctx, &id); err != nil {
			return identity.Null, queryError(err, "insert", t.table)
		}
	} else {
		res, err := q.Exec(ctx)
		if err != nil {
			return identity.Null, queryError(err, "insert", t.table)
		}
		if id, err = res.LastInsertId(); err != nil {
			return identity.Null, queryError(err, "insert", t.table)
		}
	}
	generated, err := auto.Coerce(id)
	if err != nil {
		return identity.Null, err
	}
	key := primaryKey(t.table, func(c *schema.Column) (any, bool) {
		if c == auto {
			return generated, true
		}
		return m.Get(c), true
	})
	tx.written(t.table, key)
	return key, nil
}

func (t *Table) update(ctx context.Context, tx *TxScope, m *instance.Mutable) (identity.Key, error) {
	old := primaryKey(t.table, m.Baseline().Lookup)
	if old.IsNull() {
		return identity.Null, saveError(t.table, "baseline has no primary key", "MISSING_PRIMARY_KEY", goerrors.CategoryValidation)
	}
	changes := m.Changes()
	if len(changes) == 0 {
		return old, nil
	}

	q := tx.tx.NewUpdate().TableExpr("?", bun.Ident(t.table.Name()))
	for _, c := range changes {
		q = q.Set("? = ?", bun.Ident(c.Column.Name()), sqlArg(c.Value))
	}
	expr, args := keyCondition(t.table.PrimaryKey(), old)
	if _, err := q.Where(expr, args...).Exec(ctx); err != nil {
		return identity.Null, queryError(err, "update", t.table)
	}

	key := m.Identity()
	tx.written(t.table, old)
	if key != old {
		tx.forget(t.table, key)
	}
	return key, nil
}

func (t *Table) delete(ctx context.Context, tx *TxScope, m *instance.Mutable) error {
	old := primaryKey(t.table, m.Baseline().Lookup)
	if old.IsNull() {
		return saveError(t.table, "baseline has no primary key", "MISSING_PRIMARY_KEY", goerrors.CategoryValidation)
	}
	expr, args := keyCondition(t.table.PrimaryKey(), old)
	res, err := tx.tx.NewDelete().TableExpr("?", bun.Ident(t.table.Name())).Where(expr, args...).Exec(ctx)
	if err != nil {
		return queryError(err, "delete", t.table)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(t.table, old)
	}
	tx.written(t.table, old)
	return nil
}

func (t *Table) reload(ctx context.Context, tx *TxScope, m *instance.Mutable, key identity.Key) (*instance.Immutable, error) {
	inst, err := tx.row(ctx, t, key)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, notFound(t.table, key)
	}
	m.ResetTo(inst.Snapshot())
	return inst, nil
}

func primaryKey(table *schema.Table, lookup func(*schema.Column) (any, bool)) identity.Key {
	pk := table.PrimaryKey()
	vals := make([]any, len(pk))
	for i, c := range pk {
		v, ok := lookup(c)
		if !ok {
			return identity.Null
		}
		vals[i] = v
	}
	return identity.FromValues(vals...)
}

func notFound(table *schema.Table, key identity.Key) error {
	return goerrors.Wrap(sql.ErrNoRows, goerrors.CategoryNotFound, "row "+table.Name()+key.String()+" not found").
		WithTextCode("ROW_NOT_FOUND")
}

func saveError(table *schema.Table, msg, code string, category goerrors.Category) error {
	return goerrors.New(table.Name()+": "+msg, category).
		WithTextCode(code).
		WithMetadata(map[string]any{"table": table.Name()})
}
