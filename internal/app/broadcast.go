package app

import (
	"sync"

	"github.com/bft-labs/wardsync/pkg/log"
)

// Subscription is the handle returned by Subscribe. Unsubscribe is safe to
// call more than once and from any goroutine.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func newSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

// Unsubscribe stops further deliveries to the handler.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Broadcast fans values out to registered handlers.
//
// Handlers run on a dispatcher goroutine, never on the publisher's or the
// subscriber's goroutine. Values are delivered in publish order. A handler
// removed before its delivery runs is skipped.
type Broadcast[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[uint64]func(T)
	pending  []delivery[T]
	running  bool
	idle     *sync.Cond
	logger   log.Logger
}

type delivery[T any] struct {
	value T
	ids   []uint64
}

// NewBroadcast creates an empty broadcast.
func NewBroadcast[T any](logger log.Logger) *Broadcast[T] {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	b := &Broadcast[T]{
		handlers: make(map[uint64]func(T)),
		logger:   logger,
	}
	b.idle = sync.NewCond(&b.mu)
	return b
}

// Subscribe registers h for values published after this call.
func (b *Broadcast[T]) Subscribe(h func(T)) *Subscription {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	b.mu.Unlock()

	return newSubscription(func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	})
}

// Len returns the number of registered handlers.
func (b *Broadcast[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}

// Publish queues v for every current handler and returns immediately.
func (b *Broadcast[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.handlers) == 0 {
		return
	}
	ids := make([]uint64, 0, len(b.handlers))
	for id := range b.handlers {
		ids = append(ids, id)
	}
	b.pending = append(b.pending, delivery[T]{value: v, ids: ids})

	if !b.running {
		b.running = true
		go b.dispatch()
	}
}

// Flush blocks until every value published so far has been delivered.
func (b *Broadcast[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.running {
		b.idle.Wait()
	}
}

func (b *Broadcast[T]) dispatch() {
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.running = false
			b.idle.Broadcast()
			b.mu.Unlock()
			return
		}
		d := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()

		for _, id := range d.ids {
			b.mu.Lock()
			h, ok := b.handlers[id]
			b.mu.Unlock()
			if ok {
				b.call(h, d.value)
			}
		}
	}
}

func (b *Broadcast[T]) call(h func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", log.Any("panic", r))
		}
	}()
	h(v)
}
