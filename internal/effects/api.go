package effects

import (
	"errors"
	"fmt"
	"sort"

	"boardfx/effects/contract"
	"boardfx/internal/timeline"
)

// ErrUnknownEffect is returned by API.Emit for names missing from the
// registry.
var ErrUnknownEffect = errors.New("effects: unknown effect type")

// EffectFunc adds one effect to the transition's timeline. arg is passed to
// the configured Create function and ignored when there is none.
type EffectFunc func(arg any, opts ...TimingOption) error

type timing struct {
	position    timeline.Position
	duration    float64
	hasDuration bool
}

// TimingOption places an effect call on the timeline.
type TimingOption func(*timing)

// At places the effect at an absolute time in seconds.
func At(seconds float64) TimingOption {
	return func(t *timing) { t.position = timeline.At(seconds) }
}

// Position places the effect with a timeline expression such as ">+0.5",
// "<" or "^2->1".
func Position(expr string) TimingOption {
	return func(t *timing) { t.position = timeline.Expr(expr) }
}

// Duration overrides the configured playback duration.
func Duration(seconds float64) TimingOption {
	return func(t *timing) {
		t.duration = seconds
		t.hasDuration = true
	}
}

// TimelineView is the part of the timeline exposed to move code.
type TimelineView interface {
	Queue() contract.Queue
	Duration() float64
	IsEmpty() bool
	Clear()
}

// API is the per-transition effect builder. It is not safe for concurrent
// use; moves run synchronously inside one transition.
type API struct {
	timeline *timeline.Timeline
	effects  map[string]EffectFunc
}

func (a *API) bind(name string, cfg contract.EffectConfig) EffectFunc {
	return func(arg any, opts ...TimingOption) error {
		effect := contract.Effect{Type: name}
		if cfg.Create != nil {
			effect.Payload = cfg.Create(arg)
		}
		t := timing{duration: cfg.Duration}
		for _, opt := range opts {
			opt(&t)
		}
		if err := a.timeline.Add(effect, t.position, t.duration); err != nil {
			return fmt.Errorf("effect %s: %w", name, err)
		}
		return nil
	}
}

// Effect looks up the bound function for name.
func (a *API) Effect(name string) (EffectFunc, bool) {
	fn, ok := a.effects[name]
	return fn, ok
}

// Emit calls the effect bound to name.
func (a *API) Emit(name string, arg any, opts ...TimingOption) error {
	fn, ok := a.effects[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownEffect, name)
	}
	return fn(arg, opts...)
}

// Names lists the bound effect types in lexical order.
func (a *API) Names() []string {
	names := make([]string, 0, len(a.effects))
	for name := range a.effects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (a *API) Timeline() TimelineView {
	return a.timeline
}
