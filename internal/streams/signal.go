package streams

import (
	"context"
	"sync"
	"sync/atomic"
)

// Signal is a broadcast invalidation. Each subscriber holds at most one pending notification,
// so a burst of [Signal.Notify] calls wakes a slow subscriber once.
type Signal struct {
	mu   sync.Mutex
	next int
	subs map[int]chan struct{}
}

func NewSignal() *Signal {
	return &Signal{subs: make(map[int]chan struct{})}
}

// Subscribe registers a listener. The returned function removes it.
func (s *Signal) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Notify wakes every subscriber without blocking.
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Signal) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// State holds a value that is replaced wholesale. Readers never observe a partially built value.
type State[T any] struct {
	v   atomic.Pointer[T]
	sig *Signal
}

func NewState[T any](initial T) *State[T] {
	s := &State[T]{sig: NewSignal()}
	s.v.Store(&initial)
	return s
}

// Load returns the current value.
func (s *State[T]) Load() T {
	return *s.v.Load()
}

// Store publishes v and notifies watchers.
func (s *State[T]) Store(v T) {
	s.v.Store(&v)
	s.sig.Notify()
}

// Update applies fn to the current value and publishes the result. Concurrent updates are
// serialized by compare-and-swap.
func (s *State[T]) Update(fn func(T) T) T {
	for {
		old := s.v.Load()
		next := fn(*old)
		if s.v.CompareAndSwap(old, &next) {
			s.sig.Notify()
			return next
		}
	}
}

// Watch emits the current value, then the latest value after each change.
// Intermediate values may be skipped when the reader is slower than the writer.
func (s *State[T]) Watch(ctx context.Context) <-chan T {
	return Watch(ctx, s.sig, func(context.Context) T { return s.Load() })
}
