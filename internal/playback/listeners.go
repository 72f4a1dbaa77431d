package playback

import (
	"boardfx/effects/contract"
	"boardfx/internal/emitter"
)

// On subscribes start and end listeners to effectType. Either may be nil.
// contract.Wildcard subscribes them to every type.
func (e *Engine) On(effectType string, start, end Listener) func() {
	var offs []func()
	if start != nil {
		offs = append(offs, e.subscribe(e.starts, phaseStart, effectType, start))
	}
	if end != nil {
		offs = append(offs, e.subscribe(e.ends, phaseEnd, effectType, end))
	}
	return joined(offs)
}

// OnAny subscribes listeners that also receive the effect type.
func (e *Engine) OnAny(start, end WildcardListener) func() {
	var offs []func()
	if start != nil {
		offs = append(offs, e.subscribeAny(e.starts, phaseStart, start))
	}
	if end != nil {
		offs = append(offs, e.subscribeAny(e.ends, phaseEnd, end))
	}
	return joined(offs)
}

const (
	phaseStart = "start"
	phaseEnd   = "end"
)

// subscribe wraps listener so that each invocation is isolated: a panic is
// recovered before it reaches the bus, and the next handler still runs.
func (e *Engine) subscribe(bus *emitter.Bus[notification], phase, effectType string, listener Listener) func() {
	if effectType == contract.Wildcard {
		return e.subscribeAny(bus, phase, func(_ string, payload any, state *contract.Snapshot) func() {
			return listener(payload, state)
		})
	}
	d := &emitter.Disposer{}
	off := bus.On(effectType, func(n notification) {
		e.guard(phase, effectType, func() {
			d.Run(func() func() { return listener(n.payload, n.state) })
		})
	})
	return func() {
		off()
		d.Dispose()
	}
}

func (e *Engine) subscribeAny(bus *emitter.Bus[notification], phase string, listener WildcardListener) func() {
	d := &emitter.Disposer{}
	off := bus.OnAny(func(effectType string, n notification) {
		e.guard(phase, effectType, func() {
			d.Run(func() func() { return listener(effectType, n.payload, n.state) })
		})
	})
	return func() {
		off()
		d.Dispose()
	}
}

func joined(offs []func()) func() {
	return func() {
		for _, off := range offs {
			off()
		}
	}
}
