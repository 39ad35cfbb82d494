package tablecache

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/row"
	"github.com/goliatone/go-rowcache/schema"
)

func (t *Table) idb(tx *TxScope) bun.IDB {
	if tx != nil {
		return tx.tx
	}
	return t.provider.db
}

// selectRows reads every column of the rows whose cols match one of keys, in
// primary key order.
func (t *Table) selectRows(ctx context.Context, db bun.IDB, cols []*schema.Column, keys []identity.Key) ([]*row.Snapshot, error) {
	t.queries.Add(1)

	q := db.NewSelect().TableExpr("?", bun.Ident(t.table.Name()))
	for _, c := range t.table.Columns() {
		q = q.ColumnExpr("?", bun.Ident(c.Name()))
	}
	q = whereKeys(q, cols, keys)
	for _, c := range t.table.PrimaryKey() {
		q = q.OrderExpr("? ASC", bun.Ident(c.Name()))
	}

	rows, err := q.Rows(ctx)
	if err != nil {
		return nil, queryError(err, "select", t.table)
	}
	defer rows.Close()

	var out []*row.Snapshot
	for rows.Next() {
		snap, err := row.Scan(t.table, nil, rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(err, "select", t.table)
	}
	return out, nil
}

func whereKeys(q *bun.SelectQuery, cols []*schema.Column, keys []identity.Key) *bun.SelectQuery {
	if len(cols) == 1 {
		args := make([]any, len(keys))
		for i, k := range keys {
			args[i] = keyArgs(k, 1)[0]
		}
		return q.Where("? IN (?)", bun.Ident(cols[0].Name()), bun.In(args))
	}
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, k := range keys {
			expr, args := keyCondition(cols, k)
			q = q.WhereOr("("+expr+")", args...)
		}
		return q
	})
}

// keyCondition renders "col = ? AND ..." for one key.
func keyCondition(cols []*schema.Column, key identity.Key) (string, []any) {
	vals := keyArgs(key, len(cols))
	parts := make([]string, len(cols))
	args := make([]any, 0, 2*len(cols))
	for i, c := range cols {
		if vals[i] == nil {
			parts[i] = "? IS NULL"
			args = append(args, bun.Ident(c.Name()))
			continue
		}
		parts[i] = "? = ?"
		args = append(args, bun.Ident(c.Name()), vals[i])
	}
	return strings.Join(parts, " AND "), args
}

// keyArgs splits key into n query arguments, keeping null parts in place.
func keyArgs(key identity.Key, n int) []any {
	if n == 1 {
		return []any{partArg(key)}
	}
	parts := key.Parts()
	if key.IsNull() {
		parts = make([]identity.Key, n)
	}
	if len(parts) != n {
		panic("tablecache: key " + key.String() + " does not match the column count")
	}
	out := make([]any, n)
	for i, p := range parts {
		out[i] = partArg(p)
	}
	return out
}

func partArg(k identity.Key) any {
	if k.IsNull() {
		return nil
	}
	return sqlArg(k.Value())
}

// sqlArg converts values drivers do not accept natively. database/sql
// rejects uint64 values with the high bit set, so those travel as decimal
// text and the database converts them to the column type.
func sqlArg(v any) any {
	switch x := v.(type) {
	case time.Duration:
		return int64(x)
	case uint64:
		if x > math.MaxInt64 {
			return strconv.FormatUint(x, 10)
		}
		return int64(x)
	default:
		return v
	}
}

func queryError(err error, op string, table *schema.Table) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, op+" "+table.Name()).
		WithTextCode("QUERY_FAILED").
		WithMetadata(map[string]any{"table": table.Name(), "op": op})
}
