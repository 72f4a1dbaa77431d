package playback

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"boardfx/effects/contract"
	"boardfx/internal/frame"
	playbacklog "boardfx/logging/playback"
	"boardfx/logging/sinks"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(seconds float64) {
	c.now = c.now.Add(time.Duration(seconds * float64(time.Second)))
}

type harness struct {
	engine *Engine
	clock  *fakeClock
	frames *frame.FakeSource
	timers *frame.FakeSource
	log    []string
	events *sinks.Memory
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		clock:  &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		frames: frame.NewFakeSource(),
		timers: frame.NewFakeSource(),
		events: sinks.NewMemory(),
	}
	h.engine = New(cfg,
		WithClock(h.clock),
		WithFrameSource(h.frames),
		WithTimers(h.timers.After),
		WithPublisher(h.events),
	)
	t.Cleanup(h.engine.Close)
	return h
}

// record logs every notification as "start:type" or "end:type".
func (h *harness) record() func() {
	return h.engine.OnAny(
		func(effectType string, _ any, _ *contract.Snapshot) func() {
			h.log = append(h.log, "start:"+effectType)
			return nil
		},
		func(effectType string, _ any, _ *contract.Snapshot) func() {
			h.log = append(h.log, "end:"+effectType)
			return nil
		},
	)
}

// tickAfter advances the clock by seconds and
// delivers one frame.
func (h *harness) tickAfter(seconds float64) {
	h.clock.advance(seconds)
	h.frames.Fire()
}

func (h *harness) takeLog() []string {
	log := h.log
	h.log = nil
	return log
}

func snapshot(id string, turn uint64, duration float64, effects ...contract.Entry) *contract.Snapshot {
	queue := contract.Queue{{Type: contract.EffectStart}}
	queue = append(queue, effects...)
	queue = append(queue, contract.Entry{T: duration, EndT: duration, Type: contract.EffectEnd})
	return &contract.Snapshot{
		Ctx:     contract.SnapshotCtx{Turn: turn},
		Plugins: contract.Plugins{Effects: &contract.PluginState{Data: contract.Data{ID: id, Duration: duration, Queue: queue}}},
	}
}

func expectLog(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) == 0 && len(want) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected notifications:\n got %v\nwant %v", got, want)
	}
}

func TestEnginePlaysBatchInOrder(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.record()

	snap := snapshot("b1", 1, 1.5,
		contract.Entry{T: 0, EndT: 1, Type: "a"},
		contract.Entry{T: 1, EndT: 1.5, Type: "b"},
	)
	h.engine.Update(snap)
	if !h.engine.Playing() {
		t.Fatal("expected new batch to start playback")
	}
	expectLog(t, h.takeLog())

	h.tickAfter(0)
	expectLog(t, h.takeLog(), "start:effects:start", "start:a")
	if h.engine.State().Get() != snap {
		t.Fatal("expected state to be revealed at t=0")
	}
	if h.engine.Size().Get() != 2 {
		t.Fatalf("expected 2 queued entries, got %d", h.engine.Size().Get())
	}

	h.tickAfter(0.5)
	expectLog(t, h.takeLog(), "end:effects:start")

	h.tickAfter(0.5)
	expectLog(t, h.takeLog(), "end:a", "start:b")

	h.tickAfter(0.5)
	expectLog(t, h.takeLog(), "end:b", "start:effects:end")
	if !h.engine.Playing() {
		t.Fatal("expected playback to continue until elapsed passes the duration")
	}

	h.tickAfter(0.1)
	expectLog(t, h.takeLog(), "end:effects:end")
	if h.engine.Playing() {
		t.Fatal("expected playback to stop after the batch duration")
	}
	if h.frames.Pending() != 0 || h.timers.Pending() != 0 {
		t.Fatal("expected no pending frame or backstop after stop")
	}
	if h.engine.Size().Get() != 0 {
		t.Fatalf("expected empty queue, got %d", h.engine.Size().Get())
	}
}

func TestEngineBackstopTicks(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.record()
	h.engine.Update(snapshot("b1", 1, 0))
	h.timers.Fire()
	expectLog(t, h.takeLog(), "start:effects:start", "start:effects:end")
}

func TestEngineSpeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Speed = 2
	h := newHarness(t, cfg)
	h.record()
	h.engine.Update(snapshot("b1", 1, 2, contract.Entry{T: 1, EndT: 2, Type: "late"}))
	h.tickAfter(0)
	h.takeLog()
	h.tickAfter(0.5)
	expectLog(t, h.takeLog(), "end:effects:start", "start:late")
}

func TestEngineNewBatchForceEndsActiveEffects(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.record()
	h.engine.Update(snapshot("b1", 1, 5, contract.Entry{T: 0, EndT: 5, Type: "long"}))
	h.tickAfter(0)
	h.takeLog()

	h.clock.advance(1)
	h.engine.Update(snapshot("b2", 2, 1, contract.Entry{T: 0, EndT: 1, Type: "next"}))
	expectLog(t, h.takeLog(), "end:effects:start", "end:long")

	h.frames.Fire()
	expectLog(t, h.takeLog(), "start:effects:start", "start:next")

	events := h.events.Types()
	if events[len(events)-1] != playbacklog.EventEffectStarted {
		t.Fatalf("unexpected trailing event %v", events)
	}
}

func TestEngineSameBatchAdoptsStateImmediately(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	first := snapshot("b1", 1, 1)
	h.engine.Update(first)
	h.tickAfter(0)

	again := snapshot("b1", 2, 1)
	h.engine.Update(again)
	if h.engine.State().Get() != again {
		t.Fatal("expected unchanged batch id to reveal the snapshot immediately")
	}
}

func TestEngineUpdateStateAfterEffects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateStateAfterEffects = true
	h := newHarness(t, cfg)

	idle := snapshot("b0", 0, 0)
	h.engine.Update(idle)
	h.tickAfter(0)
	h.tickAfter(0.1)
	if h.engine.State().Get() != idle || h.engine.Playing() {
		t.Fatal("expected zero length batch to reveal and stop")
	}

	next := snapshot("b1", 1, 1, contract.Entry{T: 0, EndT: 1, Type: "a"})
	h.engine.Update(next)
	h.tickAfter(0)
	if h.engine.State().Get() != idle {
		t.Fatal("expected state to lag while effects play")
	}

	sameBatch := snapshot("b1", 2, 1, contract.Entry{T: 0, EndT: 1, Type: "a"})
	h.engine.Update(sameBatch)
	if h.engine.State().Get() != idle {
		t.Fatal("expected snapshot to stay hidden during playback")
	}

	h.tickAfter(1)
	if h.engine.State().Get() != sameBatch {
		t.Fatal("expected latest snapshot once the batch finished")
	}
}

func TestEngineClear(t *testing.T) {
	h := newHarness(t, Config{UpdateStateAfterEffects: true})
	h.record()

	h.engine.Clear()
	expectLog(t, h.takeLog())

	snap := snapshot("b1", 1, 3, contract.Entry{T: 0, EndT: 3, Type: "a"}, contract.Entry{T: 2, EndT: 3, Type: "b"})
	h.engine.Update(snap)
	h.tickAfter(0)
	h.takeLog()

	h.engine.Clear()
	expectLog(t, h.takeLog(), "end:effects:start", "end:a")
	if h.engine.Playing() || h.engine.Size().Get() != 0 {
		t.Fatal("expected clear to stop playback and drop the queue")
	}
	if h.engine.State().Get() != snap {
		t.Fatal("expected clear to reveal the latest snapshot")
	}
	h.frames.Fire()
	h.timers.Fire()
	expectLog(t, h.takeLog())

	h.engine.Clear()
	expectLog(t, h.takeLog())
}

func TestEngineFlushPairsStartsWithEnds(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.record()
	starts := map[string]any{}
	ends := map[string]any{}
	h.engine.OnAny(
		func(effectType string, payload any, _ *contract.Snapshot) func() {
			starts[effectType] = payload
			return nil
		},
		func(effectType string, payload any, _ *contract.Snapshot) func() {
			ends[effectType] = payload
			return nil
		},
	)
	h.engine.Update(snapshot("b1", 1, 3,
		contract.Entry{T: 0, EndT: 3, Type: "a", Payload: "first"},
		contract.Entry{T: 2, EndT: 3, Type: "b", Payload: 7},
	))
	h.tickAfter(0)
	h.takeLog()

	h.engine.Flush()
	expectLog(t, h.takeLog(),
		"start:b", "start:effects:end",
		"end:effects:start", "end:a", "end:b", "end:effects:end",
	)
	if len(starts) != 4 || !reflect.DeepEqual(starts, ends) {
		t.Fatalf("expected each end to carry its start payload, starts %v ends %v", starts, ends)
	}
	if starts["a"] != "first" || starts["b"] != 7 {
		t.Fatalf("unexpected payloads %v", starts)
	}
	if h.engine.Playing() {
		t.Fatal("expected flush to stop playback")
	}
	types := h.events.Types()
	if types[len(types)-1] != playbacklog.EventCleared {
		t.Fatalf("expected flush to publish a clear, got %v", types)
	}
}

func TestEngineToleratesMissingData(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.engine.Flush()
	h.engine.Clear()
	h.engine.Update(nil)
	if h.engine.State().Get() != nil || h.engine.Playing() {
		t.Fatal("expected nil snapshot to be passed through without playback")
	}
	bare := &contract.Snapshot{}
	h.engine.Update(bare)
	if h.engine.State().Get() != bare || h.engine.Playing() {
		t.Fatal("expected snapshot without effects to be adopted without playback")
	}
}

func TestEngineListenerCleanup(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	var log []string
	calls := 0
	off := h.engine.On("roll", func(payload any, _ *contract.Snapshot) func() {
		calls++
		n := calls
		log = append(log, fmt.Sprintf("roll %v", payload))
		return func() { log = append(log, fmt.Sprintf("cleanup %d", n)) }
	}, nil)

	h.engine.Update(snapshot("b1", 1, 0.5,
		contract.Entry{T: 0, EndT: 0, Type: "roll", Payload: 3},
		contract.Entry{T: 0.5, EndT: 0.5, Type: "roll", Payload: 6},
	))
	h.tickAfter(0)
	h.tickAfter(0.5)
	off()
	off()

	want := []string{"roll 3", "cleanup 1", "roll 6", "cleanup 2"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("unexpected sequence %v", log)
	}
}

func TestEngineTypedListenersReceivePayloadAndState(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	var started, ended []any
	var startState *contract.Snapshot
	h.engine.On("roll",
		func(payload any, state *contract.Snapshot) func() {
			started = append(started, payload)
			startState = state
			return nil
		},
		func(payload any, _ *contract.Snapshot) func() {
			ended = append(ended, payload)
			return nil
		},
	)
	wildcardCalls := 0
	h.engine.On(contract.Wildcard, func(any, *contract.Snapshot) func() {
		wildcardCalls++
		return nil
	}, nil)

	snap := snapshot("b1", 1, 1, contract.Entry{T: 0, EndT: 1, Type: "roll", Payload: 4})
	h.engine.Update(snap)
	h.tickAfter(0)
	h.tickAfter(1)

	if !reflect.DeepEqual(started, []any{4}) || !reflect.DeepEqual(ended, []any{4}) {
		t.Fatalf("unexpected payloads %v %v", started, ended)
	}
	if startState != snap {
		t.Fatal("expected start listener to see the latest snapshot")
	}
	if wildcardCalls != 3 {
		t.Fatalf("expected wildcard to see every start, got %d", wildcardCalls)
	}
}

func TestEngineRecoversPanickingListener(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.engine.On("boom", func(any, *contract.Snapshot) func() { panic("bad listener") }, nil)
	var sibling []string
	h.engine.On("boom",
		func(any, *contract.Snapshot) func() { sibling = append(sibling, "start"); return nil },
		func(any, *contract.Snapshot) func() { sibling = append(sibling, "end"); return nil },
	)
	h.record()

	h.engine.Update(snapshot("b1", 1, 0.5, contract.Entry{T: 0, EndT: 0.5, Type: "boom"}))
	h.tickAfter(0)
	expectLog(t, h.takeLog(), "start:effects:start", "start:boom")
	h.tickAfter(0.6)
	expectLog(t, h.takeLog(), "end:effects:start", "end:boom", "start:effects:end", "end:effects:end")
	if !reflect.DeepEqual(sibling, []string{"start", "end"}) {
		t.Fatalf("expected later listener for the same type to be paired, got %v", sibling)
	}

	panics := 0
	for _, event := range h.events.Events() {
		if event.Type == playbacklog.EventListenerPanicked {
			panics++
			if event.Actor.ID != "boom" {
				t.Fatalf("unexpected actor %+v", event.Actor)
			}
		}
	}
	if panics != 1 {
		t.Fatalf("expected one published listener panic, got %d", panics)
	}
}

func TestEngineSizeStore(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	var sizes []int
	off := h.engine.Size().Subscribe(func(n int) { sizes = append(sizes, n) })
	defer off()

	h.engine.Update(snapshot("b1", 1, 1, contract.Entry{T: 0.5, EndT: 1, Type: "a"}))
	h.tickAfter(0)
	h.tickAfter(0.5)
	h.tickAfter(0.5)

	want := []int{0, 3, 2, 1, 0}
	if !reflect.DeepEqual(sizes, want) {
		t.Fatalf("unexpected sizes %v", sizes)
	}
}

func TestEngineSubscribeToSource(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	var push func(*contract.Snapshot)
	unsubscribed := false
	source := SnapshotSource(func(fn func(*contract.Snapshot)) func() {
		push = fn
		fn(nil)
		return func() { unsubscribed = true }
	})
	off := h.engine.Subscribe(source)
	push(snapshot("b1", 1, 0))
	if !h.engine.Playing() {
		t.Fatal("expected pushed snapshot to start playback")
	}
	off()
	if !unsubscribed {
		t.Fatal("expected unsubscribe to reach the source")
	}
}

func TestWatchEffectAndLatestStateOn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.UpdateStateAfterEffects = true
	h := newHarness(t, cfg)
	watch := h.engine.WatchEffect("roll")
	defer watch.Stop()
	latest, stop := h.engine.LatestStateOn("roll")
	defer stop()

	snap := snapshot("b1", 1, 1, contract.Entry{T: 0, EndT: 0.5, Type: "roll", Payload: 2})
	h.engine.Update(snap)
	h.tickAfter(0)

	if got := watch.Get(); !got.Active || got.Payload != 2 {
		t.Fatalf("unexpected watch state %+v", got)
	}
	if latest.Get() != snap {
		t.Fatal("expected latest state to follow the roll effect")
	}
	if h.engine.State().Get() != nil {
		t.Fatal("expected visible state to lag")
	}

	h.tickAfter(0.5)
	if got := watch.Get(); got.Active {
		t.Fatalf("expected roll to be inactive, got %+v", got)
	}
}
