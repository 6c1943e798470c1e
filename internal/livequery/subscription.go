package livequery

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Subscription is a live query. After Cancel returns no new delivery starts.
type Subscription interface {
	Cancel()
}

// Query fetches the current result of a live query.
type Query[T any] func(ctx context.Context) (T, error)

type subscription struct {
	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	once   sync.Once
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
	})
}

func (s *subscription) open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Subscribe runs query now and again after every notification on topics,
// passing each result to deliver. Notifications that arrive during a query are
// coalesced into one re-run. Query errors are logged and the previous result
// stays current.
func Subscribe[T any](ctx context.Context, h *Hub, log zerolog.Logger, topics []string, query Query[T], deliver func(T)) Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel}

	notify := make(chan struct{}, 1)
	notify <- struct{}{} // initial load
	h.watch(topics, notify)

	go func() {
		defer h.unwatch(topics, notify)
		for {
			select {
			case <-ctx.Done():
				return
			case <-notify:
			}

			result, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Strs("topics", topics).Msg("live query failed")
				}
				continue
			}
			if !sub.open() {
				return
			}
			deliver(result)
		}
	}()

	return sub
}
