package memtable

import (
	"context"
	"io"
	"sync"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
)

// subscription is a feed.Handle attached to a table name. Its queue is
// unbounded so writers never block or drop.
type subscription struct {
	store *Store
	table string

	mu     sync.Mutex
	queue  []feed.Payload
	ended  bool
	closed bool
	signal chan struct{}
}

var _ feed.Handle = (*subscription)(nil)

func newSubscription(store *Store, table string) *subscription {
	return &subscription{
		store:  store,
		table:  table,
		signal: make(chan struct{}, 1),
	}
}

func (s *subscription) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscription) push(p feed.Payload) {
	s.mu.Lock()
	if s.closed || s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, p)
	s.mu.Unlock()
	s.notify()
}

// end makes Poll return io.EOF once the queue is drained.
func (s *subscription) end() {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	s.notify()
}

func (s *subscription) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *subscription) Poll(ctx context.Context) (feed.Payload, error) {
	for {
		s.mu.Lock()
		switch {
		case s.closed:
			s.mu.Unlock()
			return feed.Payload{}, apperrors.CursorClosed()
		case len(s.queue) > 0:
			p := s.queue[0]
			s.queue[0] = feed.Payload{}
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return p, nil
		case s.ended:
			s.mu.Unlock()
			return feed.Payload{}, io.EOF
		}
		s.mu.Unlock()

		select {
		case <-s.signal:
		case <-ctx.Done():
			return feed.Payload{}, ctx.Err()
		}
	}
}

func (s *subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()

	s.store.unsubscribe(s)
	s.notify()
	return nil
}
