package notifybridge

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type recordingInvalidator struct {
	tables []string
	err    error
}

func (r *recordingInvalidator) Invalidate(table string) error {
	r.tables = append(r.tables, table)
	return r.err
}

func newTestBridge(origin string) *Bridge {
	// The client is never dialed by these tests.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	return New(client,
		WithOrigin(origin),
		WithChannel("test:changes"),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestBridge_Options(t *testing.T) {
	b := newTestBridge("proc-a")
	if b.Origin() != "proc-a" || b.Channel() != "test:changes" {
		t.Fatalf("origin = %q, channel = %q", b.Origin(), b.Channel())
	}
	if New(redis.NewClient(&redis.Options{})).Origin() == "" {
		t.Fatal("expected a generated origin")
	}
}

func TestBridge_HandleAppliesRemoteChanges(t *testing.T) {
	b := newTestBridge("proc-a")
	target := &recordingInvalidator{}

	remote, err := Encode(Envelope{Origin: "proc-b", Table: "users", At: time.Now()})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	own, _ := Encode(Envelope{Origin: "proc-a", Table: "orders", At: time.Now()})

	if err := b.handle(target, remote); err != nil {
		t.Fatalf("handle(remote) error = %v", err)
	}
	if err := b.handle(target, own); err != nil {
		t.Fatalf("handle(own) error = %v", err)
	}
	if len(target.tables) != 1 || target.tables[0] != "users" {
		t.Fatalf("invalidated %v, want [users]", target.tables)
	}
}

func TestBridge_HandleErrors(t *testing.T) {
	b := newTestBridge("proc-a")
	target := &recordingInvalidator{err: errors.New("unknown table")}

	if err := b.handle(target, []byte("not msgpack")); err == nil {
		t.Fatal("expected decode error")
	}
	noTable, _ := Encode(Envelope{Origin: "proc-b"})
	if err := b.handle(target, noTable); err == nil {
		t.Fatal("expected error for an envelope without table")
	}
	payload, _ := Encode(Envelope{Origin: "proc-b", Table: "ghosts"})
	if err := b.handle(target, payload); err == nil {
		t.Fatal("expected the invalidation error")
	}
}

func TestEnvelope_PreservesFields(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	data, err := Encode(Envelope{Origin: "o", Table: "users", At: at})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	env, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if env.Origin != "o" || env.Table != "users" || !env.At.Equal(at) {
		t.Fatalf("Decode() = %+v", env)
	}
}
