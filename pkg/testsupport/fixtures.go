package testsupport

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-rowcache/schema"
)

//go:embed testdata/orders.sql
var ordersScript string

// OrdersScript is the DDL and seed data of the orders fixture database.
func OrdersScript() string { return ordersScript }

// SQLiteDSN returns a DSN for an on-disk database at path. WAL and a busy
// timeout let the read-only connections run next to an open transaction.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
}

// OpenSQLite opens an empty database under t.TempDir and closes it when the
// test ends.
func OpenSQLite(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", SQLiteDSN(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// OpenOrders opens a database loaded with the orders fixture.
func OpenOrders(t *testing.T) *bun.DB {
	t.Helper()

	db := OpenSQLite(t)
	if err := LoadOrders(context.Background(), db); err != nil {
		t.Fatalf("failed to load orders fixture: %v", err)
	}
	return db
}

// LoadOrders runs the orders fixture script against db.
func LoadOrders(ctx context.Context, db bun.IDB) error {
	_, err := db.ExecContext(ctx, ordersScript)
	return err
}

// OrdersSchema describes the fixture tables: users, and orders with a
// nullable user_id referencing users.
func OrdersSchema() (*schema.Schema, error) {
	b := schema.NewBuilder()
	b.Table("users", func(t *schema.TableBuilder) {
		t.Column("id", schema.Int64).PrimaryKey().AutoIncrement()
		t.Column("name", schema.String)
		t.Column("email", schema.String).Nullable()
	})
	b.Table("orders", func(t *schema.TableBuilder) {
		t.Column("id", schema.Int64).PrimaryKey().AutoIncrement()
		t.Column("user_id", schema.Int64).Nullable()
		t.Column("total", schema.Float64)
		t.Column("note", schema.String).Nullable()
		t.Index("ix_user_id", false, "user_id")
	})
	b.Reference("orders", []string{"user_id"}, "users")
	return b.Build()
}

// MustOrdersSchema is OrdersSchema failing the test on error.
func MustOrdersSchema(t *testing.T) *schema.Schema {
	t.Helper()

	s, err := OrdersSchema()
	if err != nil {
		t.Fatalf("failed to build orders schema: %v", err)
	}
	return s
}
