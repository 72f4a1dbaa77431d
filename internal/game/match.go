package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"boardfx/effects/contract"
	"boardfx/internal/effects"
	"boardfx/internal/telemetry"
	"boardfx/logging"
	"boardfx/logging/transition"
)

const tracerName = "boardfx/internal/game"

const (
	metricTransitions = "game_transitions_total"
	metricRejected    = "game_transitions_rejected_total"
	metricEffects     = "game_effects_recorded_total"
)

type Option func(*options)

type options struct {
	seed      int64
	tracer    trace.Tracer
	publisher logging.Publisher
	metrics   telemetry.Metrics
}

// WithSeed fixes the random source. Matches default to seed 1.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed = seed }
}

// WithTracerProvider records each transition as a span from provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(o *options) {
		if provider != nil {
			o.tracer = provider.Tracer(tracerName)
		}
	}
}

func WithPublisher(pub logging.Publisher) Option {
	return func(o *options) {
		if pub != nil {
			o.publisher = pub
		}
	}
}

func WithMetrics(metrics telemetry.Metrics) Option {
	return func(o *options) { o.metrics = metrics }
}

type subscription struct {
	id uint64
	fn func(*contract.Snapshot)
}

// Match runs one game instance. Dispatch is serialised; subscribers are
// called while the match lock is held and must not dispatch synchronously.
type Match[G any] struct {
	game   Game[G]
	plugin *effects.Plugin
	opts   options
	random *Random

	mu       sync.Mutex
	state    G
	turn     uint64
	snapshot *contract.Snapshot
	subs     []subscription
	nextID   uint64
}

// NewMatch sets up game and records the plugin's initial effect data.
func NewMatch[G any](game Game[G], plugin *effects.Plugin, opts ...Option) (*Match[G], error) {
	if plugin == nil {
		return nil, errors.New("game: nil effects plugin")
	}
	if game.Setup == nil {
		return nil, fmt.Errorf("game %s: missing setup", game.Name)
	}
	o := options{
		seed:      1,
		tracer:    otel.Tracer(tracerName),
		publisher: logging.NopPublisher(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	m := &Match[G]{
		game:   game,
		plugin: plugin,
		opts:   o,
		random: NewRandom(o.seed),
	}
	m.state = game.Setup(m.random)
	snapshot, err := m.buildSnapshot(m.state, plugin.Setup(), "")
	if err != nil {
		return nil, err
	}
	m.snapshot = snapshot
	return m, nil
}

// Snapshot returns the latest published snapshot.
func (m *Match[G]) Snapshot() *contract.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

// State returns a copy of the current game state.
func (m *Match[G]) State() G {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe delivers the current snapshot immediately, then one snapshot
// per successful transition.
func (m *Match[G]) Subscribe(fn func(*contract.Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscription{id: id, fn: fn})
	fn(m.snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, sub := range m.subs {
				if sub.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Dispatch applies move for player. The move runs against a copy of the
// state with a fresh effects API; on success the copy and the flushed effect
// batch become the new snapshot.
func (m *Match[G]) Dispatch(ctx context.Context, player, move string, arg json.RawMessage) (*contract.Snapshot, error) {
	ctx, span := m.opts.tracer.Start(ctx, "game.dispatch", trace.WithAttributes(
		attribute.String("game.name", m.game.Name),
		attribute.String("game.move", move),
		attribute.String("game.player", player),
	))
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, err := m.apply(player, move, arg)
	actor := logging.EntityRef{ID: player, Kind: logging.EntityKindPlayer}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.count(metricRejected, 1)
		transition.Rejected(ctx, m.opts.publisher, m.turn, actor, transition.RejectedPayload{Move: move, Reason: err.Error()}, nil)
		return nil, err
	}

	data, _ := snapshot.EffectsData()
	effectsCount := len(data.Queue) - 2
	span.SetAttributes(
		attribute.String("effects.batch", data.ID),
		attribute.Int("effects.count", effectsCount),
		attribute.Float64("effects.duration", data.Duration),
	)
	m.count(metricTransitions, 1)
	m.count(metricEffects, uint64(effectsCount))
	transition.Flushed(ctx, m.opts.publisher, snapshot.Ctx.Turn, data.ID, actor, transition.FlushedPayload{
		Move:     move,
		Duration: data.Duration,
		Effects:  effectsCount,
		GameOver: snapshot.Ctx.GameOver,
	}, nil)

	for _, sub := range append([]subscription(nil), m.subs...) {
		sub.fn(snapshot)
	}
	return snapshot, nil
}

func (m *Match[G]) apply(player, move string, arg json.RawMessage) (*contract.Snapshot, error) {
	if m.snapshot.Ctx.GameOver {
		return nil, ErrGameOver
	}
	fn, ok := m.game.Moves[move]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMove, move)
	}
	working, err := cloneState(m.state)
	if err != nil {
		return nil, err
	}
	api, err := m.plugin.API()
	if err != nil {
		return nil, err
	}
	rolled := m.random.checkpoint()
	if err := fn(&working, &MoveContext{Player: player, Arg: arg, Effects: api, Random: m.random}); err != nil {
		m.random.restore(rolled)
		return nil, fmt.Errorf("move %s: %w", move, err)
	}

	snapshot, err := m.buildSnapshot(working, m.plugin.Flush(api), player)
	if err != nil {
		m.random.restore(rolled)
		return nil, err
	}
	snapshot.Ctx.Turn = m.turn + 1
	m.state = working
	m.turn++
	m.snapshot = snapshot
	return snapshot, nil
}

func (m *Match[G]) buildSnapshot(state G, data contract.Data, player string) (*contract.Snapshot, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode %s state: %w", m.game.Name, err)
	}
	return &contract.Snapshot{
		G: encoded,
		Ctx: contract.SnapshotCtx{
			Turn:     m.turn,
			Player:   player,
			GameOver: m.game.EndIf != nil && m.game.EndIf(state),
		},
		Plugins: contract.Plugins{Effects: &contract.PluginState{Data: data}},
	}, nil
}

func (m *Match[G]) count(key string, delta uint64) {
	if m.opts.metrics != nil {
		m.opts.metrics.Add(key, delta)
	}
}

func cloneState[G any](state G) (G, error) {
	var copied G
	encoded, err := json.Marshal(state)
	if err != nil {
		return copied, fmt.Errorf("clone state: %w", err)
	}
	if err := json.Unmarshal(encoded, &copied); err != nil {
		return copied, fmt.Errorf("clone state: %w", err)
	}
	return copied, nil
}
