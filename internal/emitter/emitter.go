// Package emitter is a typed publish/subscribe bus keyed by event name with
// a wildcard channel.
package emitter

import "sync"

// Wildcard is accepted by On as an alias for OnAny when the handler does not
// need the event name.
const Wildcard = "*"

type Handler[T any] func(value T)

type WildcardHandler[T any] func(name string, value T)

type registration[T any] struct {
	id       uint64
	handler  Handler[T]
	wildcard WildcardHandler[T]
}

// Bus dispatches synchronously. Named handlers run in registration order,
// followed by wildcard handlers.
type Bus[T any] struct {
	mu       sync.RWMutex
	named    map[string][]registration[T]
	wildcard []registration[T]
	nextID   uint64
}

func New[T any]() *Bus[T] {
	return &Bus[T]{named: make(map[string][]registration[T])}
}

// On registers handler for name. Go funcs are not comparable, so removal
// goes through the returned function, which is safe to call repeatedly.
func (b *Bus[T]) On(name string, handler Handler[T]) func() {
	if name == Wildcard {
		return b.OnAny(func(_ string, value T) { handler(value) })
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.named[name] = append(b.named[name], registration[T]{id: id, handler: handler})
	b.mu.Unlock()
	return b.remover(func() {
		b.named[name] = without(b.named[name], id)
		if len(b.named[name]) == 0 {
			delete(b.named, name)
		}
	})
}

// OnAny registers handler for every event.
func (b *Bus[T]) OnAny(handler WildcardHandler[T]) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.wildcard = append(b.wildcard, registration[T]{id: id, wildcard: handler})
	b.mu.Unlock()
	return b.remover(func() {
		b.wildcard = without(b.wildcard, id)
	})
}

func (b *Bus[T]) remover(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			remove()
		})
	}
}

func without[T any](regs []registration[T], id uint64) []registration[T] {
	for i, reg := range regs {
		if reg.id == id {
			return append(regs[:i:i], regs[i+1:]...)
		}
	}
	return regs
}

// Emit delivers value to the handlers registered when Emit was called.
func (b *Bus[T]) Emit(name string, value T) {
	b.mu.RLock()
	named := b.named[name]
	wildcard := b.wildcard
	b.mu.RUnlock()

	for _, reg := range named {
		reg.handler(value)
	}
	for _, reg := range wildcard {
		reg.wildcard(name, value)
	}
}

// Len reports the number of handlers registered for name, or for the
// wildcard channel when name is Wildcard.
func (b *Bus[T]) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if name == Wildcard {
		return len(b.wildcard)
	}
	return len(b.named[name])
}
