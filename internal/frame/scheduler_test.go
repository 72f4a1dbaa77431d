package frame

import (
	"sync/atomic"
	"testing"
	"time"
)

func newFakeScheduler(callback func()) (*Scheduler, *FakeSource, *FakeSource) {
	frames := NewFakeSource()
	timers := NewFakeSource()
	s := New(callback, Config{Source: frames, Timers: timers.After})
	return s, frames, timers
}

func TestSchedulerRunsOncePerFrame(t *testing.T) {
	calls := 0
	s, frames, timers := newFakeScheduler(func() { calls++ })
	s.Start()
	if frames.Pending() != 1 || timers.Pending() != 1 {
		t.Fatalf("expected one frame and one backstop, got %d/%d", frames.Pending(), timers.Pending())
	}
	frames.Fire()
	frames.Fire()
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if timers.Pending() != 1 {
		t.Fatalf("expected backstop to be re-armed once, got %d", timers.Pending())
	}
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	calls := 0
	s, frames, timers := newFakeScheduler(func() { calls++ })
	s.Start()
	s.Start()
	if frames.Pending() != 1 || timers.Pending() != 1 {
		t.Fatalf("expected a single schedule, got %d/%d", frames.Pending(), timers.Pending())
	}
	frames.Fire()
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestSchedulerBackstopFiresWithoutFrames(t *testing.T) {
	calls := 0
	s, frames, timers := newFakeScheduler(func() { calls++ })
	s.Start()
	timers.Fire()
	if calls != 1 {
		t.Fatalf("expected backstop call, got %d", calls)
	}
	if frames.Pending() != 1 {
		t.Fatalf("expected stale frame request to be replaced, got %d", frames.Pending())
	}
}

func TestSchedulerStopCancelsBoth(t *testing.T) {
	calls := 0
	s, frames, timers := newFakeScheduler(func() { calls++ })
	s.Start()
	s.Stop()
	if frames.Pending() != 0 || timers.Pending() != 0 {
		t.Fatalf("expected nothing pending, got %d/%d", frames.Pending(), timers.Pending())
	}
	frames.Fire()
	timers.Fire()
	if calls != 0 || s.Running() {
		t.Fatal("expected stopped scheduler to stay idle")
	}
}

func TestSchedulerCallbackMayStop(t *testing.T) {
	var s *Scheduler
	calls := 0
	s, frames, _ := newFakeScheduler(func() {
		calls++
		s.Stop()
	})
	s.Start()
	frames.Fire()
	frames.Fire()
	if calls != 1 || s.Running() {
		t.Fatalf("expected callback to stop the scheduler, calls=%d", calls)
	}
	s.Start()
	frames.Fire()
	if calls != 2 {
		t.Fatalf("expected restart to schedule again, calls=%d", calls)
	}
}

func TestSchedulerWithRealTimers(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	s := New(func() {
		if calls.Add(1) == 3 {
			close(done)
		}
	}, Config{Source: NewTickerSource(time.Millisecond), Backstop: time.Second})
	s.Start()
	defer s.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected three frames, got %d", calls.Load())
	}
}
