package frame

import (
	"slices"
	"sync"
	"time"
)

// Source delivers the display refresh signal. Request arranges for fn to run
// once on the next frame; cancel withdraws a request that has not fired.
type Source interface {
	Request(fn func()) (cancel func())
}

// DefaultInterval approximates a 60 Hz display.
const DefaultInterval = time.Second / 60

// TickerSource fires requests after a fixed interval.
type TickerSource struct {
	Interval time.Duration
}

func NewTickerSource(interval time.Duration) TickerSource {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return TickerSource{Interval: interval}
}

func (s TickerSource) Request(fn func()) func() {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timer := time.AfterFunc(interval, fn)
	return func() { timer.Stop() }
}

// TimerFunc runs fn once after d unless cancelled.
type TimerFunc func(d time.Duration, fn func()) (cancel func())

func afterFunc(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, fn)
	return func() { timer.Stop() }
}

// FakeSource holds requests until Fire is called. It doubles as a TimerFunc
// through After.
type FakeSource struct {
	mu      sync.Mutex
	pending map[uint64]func()
	nextID  uint64
}

func NewFakeSource() *FakeSource {
	return &FakeSource{pending: make(map[uint64]func())}
}

func (f *FakeSource) Request(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.pending[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.pending, id)
	}
}

// After ignores d; the callback runs on the next Fire.
func (f *FakeSource) After(_ time.Duration, fn func()) func() {
	return f.Request(fn)
}

// Pending reports how many requests are waiting.
func (f *FakeSource) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Fire runs every waiting request in the order they were made.
func (f *FakeSource) Fire() {
	f.mu.Lock()
	ids := make([]uint64, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	f.mu.Unlock()
	slices.Sort(ids)
	for _, id := range ids {
		f.mu.Lock()
		fn, ok := f.pending[id]
		delete(f.pending, id)
		f.mu.Unlock()
		if ok {
			fn()
		}
	}
}
