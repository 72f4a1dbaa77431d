// Package frame drives a callback once per display frame, with a backstop
// timer for when frames stop arriving.
package frame

import (
	"sync"
	"time"
)

// DefaultBackstop is how long a scheduler waits for a frame before running
// the callback anyway.
const DefaultBackstop = time.Second

type Config struct {
	Source   Source
	Backstop time.Duration
	// Timers schedules the backstop. Defaults to time.AfterFunc.
	Timers TimerFunc
}

// Scheduler runs callback on every frame while started. Each round requests
// one frame and arms one backstop; whichever fires first cancels the other.
type Scheduler struct {
	callback func()
	source   Source
	backstop time.Duration
	timers   TimerFunc

	mu          sync.Mutex
	running     bool
	pending     bool
	round       uint64
	cancelFrame func()
	cancelTimer func()
}

func New(callback func(), cfg Config) *Scheduler {
	if cfg.Source == nil {
		cfg.Source = NewTickerSource(DefaultInterval)
	}
	if cfg.Backstop <= 0 {
		cfg.Backstop = DefaultBackstop
	}
	if cfg.Timers == nil {
		cfg.Timers = afterFunc
	}
	return &Scheduler{
		callback: callback,
		source:   cfg.Source,
		backstop: cfg.Backstop,
		timers:   cfg.Timers,
	}
}

// Start begins running the callback. Calling it while running does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.arm()
}

// Stop cancels the pending frame request and backstop timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.disarm()
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) arm() {
	if s.pending {
		return
	}
	s.round++
	round := s.round
	s.pending = true
	s.cancelFrame = s.source.Request(func() { s.fire(round) })
	s.cancelTimer = s.timers(s.backstop, func() { s.fire(round) })
}

func (s *Scheduler) disarm() {
	if s.cancelFrame != nil {
		s.cancelFrame()
		s.cancelFrame = nil
	}
	if s.cancelTimer != nil {
		s.cancelTimer()
		s.cancelTimer = nil
	}
	s.pending = false
}

func (s *Scheduler) fire(round uint64) {
	s.mu.Lock()
	if !s.running || !s.pending || round != s.round {
		s.mu.Unlock()
		return
	}
	s.disarm()
	s.mu.Unlock()

	s.callback()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.arm()
	}
}
