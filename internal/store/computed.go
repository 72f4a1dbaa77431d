package store

import "sync"

// Computed derives its value from a parent store. It subscribes to the
// parent only while it has subscribers of its own.
type Computed[P, T any] struct {
	parent   ReadonlyStore[P]
	selector func(P) T

	mu      sync.Mutex
	inner   *Store[T]
	release func()
}

// NewComputed derives a store from parent through selector. Derived values
// are compared with ==.
func NewComputed[P any, T comparable](parent ReadonlyStore[P], selector func(P) T) *Computed[P, T] {
	return &Computed[P, T]{
		parent:   parent,
		selector: selector,
		inner:    New(selector(parent.Get())),
	}
}

// Get computes the value from the parent's current value.
func (c *Computed[P, T]) Get() T {
	return c.selector(c.parent.Get())
}

func (c *Computed[P, T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	if c.release == nil {
		c.release = c.parent.Subscribe(func(p P) {
			c.inner.Set(c.selector(p))
		})
	}
	c.mu.Unlock()

	unsubscribe := c.inner.Subscribe(fn)
	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.inner.Subscribers() == 0 && c.release != nil {
				c.release()
				c.release = nil
			}
		})
	}
}

// Active reports whether the parent subscription is held.
func (c *Computed[P, T]) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.release != nil
}
