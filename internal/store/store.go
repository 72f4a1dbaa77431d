// Package store provides observable values. Subscribers run synchronously,
// in registration order, on the goroutine that changed the value.
package store

import "sync"

// ReadonlyStore is the observable half of a Store.
type ReadonlyStore[T any] interface {
	Get() T
	// Subscribe calls fn with the current value, then after every change.
	Subscribe(fn func(T)) (unsubscribe func())
}

type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// Store holds a value and notifies subscribers when Set changes it.
type Store[T any] struct {
	mu     sync.Mutex
	value  T
	equal  func(a, b T) bool
	subs   []subscriber[T]
	nextID uint64
}

// New returns a store that compares values with ==.
func New[T comparable](initial T) *Store[T] {
	return NewFunc(initial, func(a, b T) bool { return a == b })
}

// NewFunc returns a store that treats values as unchanged when equal reports
// true.
func NewFunc[T any](initial T, equal func(a, b T) bool) *Store[T] {
	return &Store[T]{value: initial, equal: equal}
}

func (s *Store[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set stores value and notifies subscribers if it differs from the current
// one.
func (s *Store[T]) Set(value T) {
	s.mu.Lock()
	if s.equal(s.value, value) {
		s.mu.Unlock()
		return
	}
	s.value = value
	subs := append([]subscriber[T](nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}

func (s *Store[T]) Subscribe(fn func(T)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})
	value := s.value
	s.mu.Unlock()

	fn(value)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Store[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Subscribers reports how many subscriptions are live.
func (s *Store[T]) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// SameSlice reports whether a and b are the same slice value: equal length
// and, when non-empty, the same first element.
func SameSlice[E any](a, b []E) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}
