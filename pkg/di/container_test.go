package di

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-rowcache/identity"
	"github.com/goliatone/go-rowcache/pkg/testsupport"
)

func sqliteConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.DSN = testsupport.SQLiteDSN(filepath.Join(t.TempDir(), "di.db"))
	cfg.Log.Level = "error"
	return cfg
}

func TestParseConfig(t *testing.T) {
	src := `
database:
  driver: postgres
  dsn: postgres://app@localhost/app?sslmode=disable
  max_open_conns: 4
cache:
  capacity: 200
  ttl: 1m
log:
  level: debug
  format: json
redis:
  addr: localhost:6379
  channel: app:changes
`
	cfg, err := ParseConfig([]byte(src))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.MaxOpenConns != 4 {
		t.Errorf("unexpected database section %+v", cfg.Database)
	}
	if cfg.Cache.Capacity != 200 || cfg.Cache.TTL != time.Minute {
		t.Errorf("unexpected cache section %+v", cfg.Cache)
	}
	if cfg.Cache.NumShards != DefaultConfig().Cache.NumShards {
		t.Errorf("expected unset fields to keep defaults, got %d shards", cfg.Cache.NumShards)
	}
	if cfg.Log.Format != "json" || cfg.Redis.Channel != "app:changes" {
		t.Errorf("unexpected log/redis sections %+v %+v", cfg.Log, cfg.Redis)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown driver", "database: {driver: oracle}"},
		{"empty dsn", "database: {dsn: ''}"},
		{"bad log level", "log: {level: loud}"},
		{"bad cache", "cache: {capacity: -1}"},
		{"not yaml", "database: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.src))
			var gerr *goerrors.Error
			if !errors.As(err, &gerr) || gerr.Category != goerrors.CategoryValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log: {level: warn}\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}
	if cfg.Log.Level != "warn" || cfg.Database.Driver != "sqlite3" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestOpenDB_Dialects(t *testing.T) {
	tests := []struct {
		driver string
		dsn    string
		want   dialect.Name
	}{
		{"sqlite3", testsupport.SQLiteDSN(filepath.Join(t.TempDir(), "x.db")), dialect.SQLite},
		{"postgres", "postgres://app@localhost/app?sslmode=disable", dialect.PG},
		{"mysql", "app:secret@tcp(127.0.0.1:3306)/app", dialect.MySQL},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			db, err := OpenDB(DatabaseConfig{Driver: tt.driver, DSN: tt.dsn, MaxOpenConns: 2})
			if err != nil {
				t.Fatalf("OpenDB() failed: %v", err)
			}
			defer db.Close()
			if db.Dialect().Name() != tt.want {
				t.Errorf("dialect = %v, want %v", db.Dialect().Name(), tt.want)
			}
		})
	}

	if _, err := OpenDB(DatabaseConfig{Driver: "oracle", DSN: "x"}); err == nil {
		t.Error("expected unsupported driver error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("unexpected log output %q", out)
	}
}

func TestNewContainer(t *testing.T) {
	cfg := sqliteConfig(t)
	container, err := NewContainer(cfg, testsupport.MustOrdersSchema(t))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	defer container.Close()

	if container.Bridge() != nil {
		t.Error("bridge should be off without redis")
	}
	ctx := context.Background()
	if err := testsupport.LoadOrders(ctx, container.DB()); err != nil {
		t.Fatalf("LoadOrders() failed: %v", err)
	}

	p := container.Provider()
	user, err := p.Table("users").Row(ctx, identity.FromValue(1), p.ReadOnly())
	if err != nil || user == nil {
		t.Fatalf("Row() = %v, %v", user, err)
	}
	if user.GetByName("name") != "ann" {
		t.Errorf("unexpected user %v", user.Values())
	}
	if container.Config().Database.DSN != cfg.Database.DSN {
		t.Error("container should keep its configuration")
	}

	container.Start(ctx)
}

func TestNewContainer_WithRedis(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.Redis.Addr = "127.0.0.1:0"
	cfg.Redis.Channel = "test:changes"

	container, err := NewContainer(cfg, testsupport.MustOrdersSchema(t))
	if err != nil {
		t.Fatalf("NewContainer() failed: %v", err)
	}
	if container.Bridge() == nil || container.Bridge().Channel() != "test:changes" {
		t.Fatal("expected a configured bridge")
	}
	if err := container.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Capacity = 0
	if _, err := NewContainer(cfg, testsupport.MustOrdersSchema(t)); err == nil {
		t.Fatal("expected error for invalid cache configuration")
	}
}
