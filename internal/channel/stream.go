package channel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrStreamClosed is returned by Subscribe after Shutdown.
var ErrStreamClosed = errors.New("channel: stream closed")

// Filter selects which published items a subscriber receives.
// A nil Filter accepts everything.
type Filter[T any] func(T) bool

// Stream is a typed, lossless, in-memory publish/subscribe bus.
//
// Publish appends to every matching subscriber's FIFO and returns
// immediately. Publishers are serialized, so all subscribers observe the
// same relative order.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   map[*subscriber[T]]struct{}
	closed atomic.Bool
}

type subscriber[T any] struct {
	filter Filter[T]
	queue  *queue[T]
	out    chan T
}

// NewStream creates an empty stream.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[*subscriber[T]]struct{})}
}

// Publish delivers items to all current subscribers.
// Items published after Shutdown are discarded.
func (s *Stream[T]) Publish(items ...T) {
	if len(items) == 0 || s.closed.Load() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		if sub.filter == nil {
			sub.queue.Enqueue(items...)
			continue
		}
		for _, item := range items {
			if sub.filter(item) {
				sub.queue.Enqueue(item)
			}
		}
	}
}

// Subscribe registers a subscriber for the lifetime of ctx. The returned
// channel is closed when ctx is done, or after Shutdown once every queued
// item has been delivered.
func (s *Stream[T]) Subscribe(ctx context.Context, filter Filter[T]) (<-chan T, error) {
	sub := &subscriber[T]{
		filter: filter,
		queue:  newQueue[T](),
		out:    make(chan T),
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return nil, ErrStreamClosed
	}
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go s.pump(ctx, sub)
	return sub.out, nil
}

// pump moves items from the subscriber's queue to its channel.
func (s *Stream[T]) pump(ctx context.Context, sub *subscriber[T]) {
	defer close(sub.out)
	defer s.remove(sub)

	for {
		if item, ok := sub.queue.TryDequeue(); ok {
			select {
			case sub.out <- item:
			case <-ctx.Done():
				return
			}
			continue
		}
		if sub.queue.Drained() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-sub.queue.Wait():
		}
	}
}

func (s *Stream[T]) remove(sub *subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, sub)
	sub.queue.Close()
}

// Subscribers returns the number of live subscriptions.
func (s *Stream[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Shutdown rejects new subscriptions and publications. Items already queued
// are still delivered before subscriber channels close.
func (s *Stream[T]) Shutdown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.queue.Close()
	}
}
