// Package playback replays effect batches against the wall clock and
// notifies listeners as effects start and end.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"boardfx/effects/contract"
	"boardfx/internal/emitter"
	"boardfx/internal/frame"
	"boardfx/internal/store"
	"boardfx/logging"
	playbacklog "boardfx/logging/playback"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// Listener handles one effect type. The returned cleanup, if any, runs
// before the listener is invoked again and when it is unsubscribed.
type Listener func(payload any, state *contract.Snapshot) (cleanup func())

// WildcardListener handles every effect type.
type WildcardListener func(effectType string, payload any, state *contract.Snapshot) (cleanup func())

// SnapshotSource subscribes to host snapshots. Snapshots may be nil while
// the host has no state.
type SnapshotSource func(fn func(*contract.Snapshot)) (unsubscribe func())

type notification struct {
	payload any
	state   *contract.Snapshot
}

type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithFrameSource replaces the display refresh signal.
func WithFrameSource(source frame.Source) Option {
	return func(e *Engine) { e.frameSource = source }
}

// WithTimers replaces the backstop timer implementation.
func WithTimers(timers frame.TimerFunc) Option {
	return func(e *Engine) { e.timers = timers }
}

func WithPublisher(pub logging.Publisher) Option {
	return func(e *Engine) {
		if pub != nil {
			e.publisher = pub
		}
	}
}

// Engine plays one batch at a time. All methods are safe for concurrent use.
// Listeners run while the engine lock is held and must not call back into
// the engine on the same goroutine.
type Engine struct {
	cfg         Config
	clock       Clock
	publisher   logging.Publisher
	frameSource frame.Source
	timers      frame.TimerFunc
	frames      *frame.Scheduler

	starts *emitter.Bus[notification]
	ends   *emitter.Bus[notification]
	queue  *store.Store[contract.Queue]
	size   *store.Computed[contract.Queue, int]
	state  *store.Store[*contract.Snapshot]

	mu        sync.Mutex
	latest    *contract.Snapshot
	active    contract.Queue
	batch     string
	hasBatch  bool
	startedAt time.Time
	duration  float64
}

func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg.normalized(),
		clock:     ClockFunc(time.Now),
		publisher: logging.NopPublisher(),
		starts:    emitter.New[notification](),
		ends:      emitter.New[notification](),
		queue:     store.NewFunc[contract.Queue](nil, sameQueue),
		state:     store.New[*contract.Snapshot](nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.frameSource == nil {
		e.frameSource = frame.NewTickerSource(e.cfg.FrameInterval)
	}
	e.frames = frame.New(e.tick, frame.Config{
		Source:   e.frameSource,
		Backstop: e.cfg.Backstop,
		Timers:   e.timers,
	})
	e.size = store.NewComputed[contract.Queue](e.queue, func(q contract.Queue) int { return len(q) })
	return e
}

func sameQueue(a, b contract.Queue) bool {
	return store.SameSlice(a, b)
}

// Subscribe feeds snapshots from source into the engine.
func (e *Engine) Subscribe(source SnapshotSource) func() {
	return source(e.Update)
}

// Update receives a host snapshot. A batch id not seen before starts
// playback and force-ends whatever was still playing.
func (e *Engine) Update(snapshot *contract.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.latest = snapshot
	data, ok := snapshot.EffectsData()
	if !ok || (e.hasBatch && data.ID == e.batch) {
		if !e.cfg.UpdateStateAfterEffects || !e.frames.Running() {
			e.state.Set(snapshot)
		}
		return
	}

	replaced := len(e.active)
	e.endActive(true)
	e.batch = data.ID
	e.hasBatch = true
	e.startedAt = e.clock.Now()
	e.duration = data.Duration
	e.queue.Set(data.Queue.Clone())
	playbacklog.BatchStarted(context.Background(), e.publisher, e.turn(), e.batch, playbacklog.BatchStartedPayload{
		Duration: data.Duration,
		Effects:  len(data.Queue),
		Replaced: replaced,
	}, nil)
	e.frames.Start()
}

// tick advances playback to the current wall clock time.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.elapsed()
	e.endDue(elapsed)

	queue := e.queue.Get()
	due := 0
	for due < len(queue) && queue[due].T <= elapsed {
		e.start(queue[due], elapsed)
		e.active = append(e.active, queue[due])
		due++
	}
	if due > 0 {
		e.queue.Set(queue[due:])
	}

	reveal := 0.0
	if e.cfg.UpdateStateAfterEffects {
		reveal = e.duration
	}
	if elapsed >= reveal {
		e.state.Set(e.latest)
	}

	if elapsed > e.duration {
		// Everything still active finished at or before the batch end.
		e.endDue(elapsed)
		e.frames.Stop()
	}
}

func (e *Engine) elapsed() float64 {
	return e.clock.Now().Sub(e.startedAt).Seconds() * e.cfg.Speed
}

func (e *Engine) endDue(elapsed float64) {
	if len(e.active) == 0 {
		return
	}
	remaining := make(contract.Queue, 0, len(e.active))
	for _, entry := range e.active {
		if entry.EndT <= elapsed {
			e.end(entry, elapsed, false)
			continue
		}
		remaining = append(remaining, entry)
	}
	e.active = remaining
}

// endActive ends every active effect regardless of its end time.
func (e *Engine) endActive(forced bool) int {
	active := e.active
	e.active = nil
	if len(active) == 0 {
		return 0
	}
	elapsed := e.elapsed()
	for _, entry := range active {
		e.end(entry, elapsed, forced)
	}
	return len(active)
}

func (e *Engine) start(entry contract.Entry, elapsed float64) {
	playbacklog.EffectStarted(context.Background(), e.publisher, e.turn(), e.batch, entry.Type,
		playbacklog.EffectPayload{T: entry.T, EndT: entry.EndT, Elapsed: elapsed}, nil)
	e.starts.Emit(entry.Type, notification{payload: entry.Payload, state: e.latest})
}

func (e *Engine) end(entry contract.Entry, elapsed float64, forced bool) {
	playbacklog.EffectEnded(context.Background(), e.publisher, e.turn(), e.batch, entry.Type,
		playbacklog.EffectPayload{T: entry.T, EndT: entry.EndT, Elapsed: elapsed, Forced: forced}, nil)
	e.ends.Emit(entry.Type, notification{payload: entry.Payload, state: e.state.Get()})
}

// guard runs one listener invocation. A panic is published and swallowed so
// the other listeners of the notification and the rest of the tick still run.
func (e *Engine) guard(phase, effectType string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			playbacklog.ListenerPanicked(context.Background(), e.publisher, e.turn(), e.batch, effectType,
				playbacklog.ListenerPanickedPayload{Phase: phase, Value: fmt.Sprint(r)}, nil)
		}
	}()
	fn()
}

func (e *Engine) turn() uint64 {
	if e.latest == nil {
		return 0
	}
	return e.latest.Ctx.Turn
}

// Clear stops playback, ends every active effect, drops the remaining
// queue and shows the latest snapshot. Clearing an idle engine is a no-op.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clear(false)
}

// Flush starts every queued effect immediately, then clears.
func (e *Engine) Flush() {
	e.mu.Lock()
	defer e.mu.Unlock()

	elapsed := e.elapsed()
	for _, entry := range e.queue.Get() {
		e.start(entry, elapsed)
		e.active = append(e.active, entry)
	}
	e.queue.Set(nil)
	e.clear(true)
}

func (e *Engine) clear(flushed bool) {
	dropped := len(e.queue.Get())
	e.frames.Stop()
	ended := e.endActive(true)
	e.queue.Set(nil)
	e.state.Set(e.latest)
	if ended > 0 || dropped > 0 || flushed {
		playbacklog.Cleared(context.Background(), e.publisher, e.turn(), e.batch,
			playbacklog.ClearedPayload{Flushed: flushed, EndedLive: ended, Dropped: dropped}, nil)
	}
}

// Close stops the frame scheduler. Listeners stay registered.
func (e *Engine) Close() {
	e.frames.Stop()
}

// Playing reports whether ticks are scheduled.
func (e *Engine) Playing() bool {
	return e.frames.Running()
}

// Size observes the number of entries not yet started.
func (e *Engine) Size() store.ReadonlyStore[int] {
	return e.size
}

// State observes the snapshot currently shown to the player.
func (e *Engine) State() store.ReadonlyStore[*contract.Snapshot] {
	return e.state
}
