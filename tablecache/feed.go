package tablecache

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-rowcache/instance"
)

// Feed broadcasts change notifications for one table. Handlers may
// unsubscribe, even from inside a notification.
type Feed struct {
	handlers *xsync.MapOf[uint64, func()]
	nextID   atomic.Uint64
}

func NewFeed() *Feed {
	return &Feed{handlers: xsync.NewMapOf[uint64, func()]()}
}

// Subscribe registers handler until the returned subscription is released.
func (f *Feed) Subscribe(handler func()) instance.Subscription {
	id := f.nextID.Add(1)
	f.handlers.Store(id, handler)
	return &feedSubscription{feed: f, id: id}
}

// Notify calls every registered handler and returns how many were called.
// Handlers subscribed while a notification is running may or may not be
// called by it.
func (f *Feed) Notify() int {
	var pending []func()
	f.handlers.Range(func(_ uint64, h func()) bool {
		pending = append(pending, h)
		return true
	})
	for _, h := range pending {
		h()
	}
	return len(pending)
}

// Len returns the number of live subscriptions.
func (f *Feed) Len() int {
	return f.handlers.Size()
}

type feedSubscription struct {
	feed *Feed
	id   uint64
	once sync.Once
}

func (s *feedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.feed.handlers.Delete(s.id)
	})
}
