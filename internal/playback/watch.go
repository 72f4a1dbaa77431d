package playback

import (
	"boardfx/effects/contract"
	"boardfx/internal/store"
)

// EffectState is the live status of one effect type.
type EffectState struct {
	Active  bool
	Payload any
}

// Watch tracks whether an effect of effectType is playing and the payload
// it carried. Stop releases the engine subscription.
type Watch struct {
	*store.Store[EffectState]
	Stop func()
}

// WatchEffect mirrors start and end notifications for effectType into a
// store. Every notification is delivered, even when the payload repeats.
func (e *Engine) WatchEffect(effectType string) *Watch {
	s := store.NewFunc(EffectState{}, func(a, b EffectState) bool { return false })
	stop := e.On(effectType,
		func(payload any, _ *contract.Snapshot) func() {
			s.Set(EffectState{Active: true, Payload: payload})
			return nil
		},
		func(payload any, _ *contract.Snapshot) func() {
			s.Set(EffectState{Active: false, Payload: payload})
			return nil
		},
	)
	return &Watch{Store: s, Stop: stop}
}

// LatestStateOn exposes the snapshot that was newest when any of
// effectTypes last started, so views can jump ahead of the visible state
// for those effects. With no types it follows every effect.
func (e *Engine) LatestStateOn(effectTypes ...string) (store.ReadonlyStore[*contract.Snapshot], func()) {
	s := store.New(e.State().Get())
	set := func(_ any, state *contract.Snapshot) func() {
		s.Set(state)
		return nil
	}
	if len(effectTypes) == 0 {
		effectTypes = []string{contract.Wildcard}
	}
	offs := make([]func(), 0, len(effectTypes)+1)
	for _, effectType := range effectTypes {
		offs = append(offs, e.On(effectType, set, nil))
	}
	offs = append(offs, e.State().Subscribe(func(state *contract.Snapshot) { s.Set(state) }))
	return s, joined(offs)
}
