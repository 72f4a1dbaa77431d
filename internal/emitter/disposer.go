package emitter

import "sync"

// Disposer tracks the cleanup returned by the latest invocation of a
// listener. Run calls the previous cleanup before invoking the listener
// again; Dispose calls the outstanding one.
type Disposer struct {
	mu      sync.Mutex
	cleanup func()
}

// Run invokes fn after the previous cleanup and keeps the cleanup fn
// returns. A nil return clears it.
func (d *Disposer) Run(fn func() func()) {
	d.Dispose()
	next := fn()
	d.mu.Lock()
	d.cleanup = next
	d.mu.Unlock()
}

func (d *Disposer) Dispose() {
	d.mu.Lock()
	cleanup := d.cleanup
	d.cleanup = nil
	d.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
}
