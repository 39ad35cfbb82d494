package tablecache

import "testing"

func TestFeed_NotifyAndUnsubscribe(t *testing.T) {
	f := NewFeed()
	var a, b int
	var subB interface{ Unsubscribe() }

	f.Subscribe(func() { a++ })
	subB = f.Subscribe(func() {
		b++
		subB.Unsubscribe()
	})

	if n := f.Notify(); n != 2 {
		t.Fatalf("Notify() = %d, want 2", n)
	}
	if n := f.Notify(); n != 1 {
		t.Fatalf("Notify() = %d, want 1 after self-unsubscribe", n)
	}
	if a != 2 || b != 1 {
		t.Fatalf("a = %d, b = %d", a, b)
	}

	subB.Unsubscribe()
	if f.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", f.Len())
	}
}
