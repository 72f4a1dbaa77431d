// Package timeline orders the cosmetic effects produced by one transition.
package timeline

import (
	"sort"

	"boardfx/effects/contract"
)

type item struct {
	effect   contract.Effect
	duration float64
}

// Timeline accumulates effects at keyframes and resolves them into a queue.
// It is owned by a single transition and is not safe for concurrent use.
type Timeline struct {
	keyframes map[float64][]item
	last      float64
	duration  float64
}

func New() *Timeline {
	return &Timeline{keyframes: make(map[float64][]item)}
}

func (t *Timeline) IsEmpty() bool {
	return len(t.keyframes) == 0
}

// Duration is the end time of the latest finishing effect.
func (t *Timeline) Duration() float64 {
	return t.duration
}

// Add places effect at pos with the given playback duration. A malformed
// position leaves the timeline untouched and returns a *ParseError; a NaN
// or infinite duration returns a *DurationError.
func (t *Timeline) Add(effect contract.Effect, pos Position, duration float64) error {
	if !finite(duration) {
		return &DurationError{Duration: duration}
	}
	if duration < 0 {
		duration = 0
	}
	r, err := t.resolve(pos)
	if err != nil {
		return err
	}
	at := r.at
	if at < 0 {
		at = 0
	}
	if r.insert {
		amount := duration
		if r.hasShift {
			amount = r.shift
		}
		if amount != 0 {
			t.shift(amount, at)
		}
	}

	if t.keyframes == nil {
		t.keyframes = make(map[float64][]item)
	}
	first := len(t.keyframes) == 0
	t.keyframes[at] = append(t.keyframes[at], item{effect: effect, duration: duration})
	if first || at > t.last {
		t.last = at
	}
	if end := at + duration; end > t.duration {
		t.duration = end
	}
	return nil
}

// shift moves every keyframe at or after start by amount. Keys are visited
// from the latest down so a moved keyframe never lands on one not yet moved.
func (t *Timeline) shift(amount, start float64) {
	keys := t.keys()
	moved := make(map[float64][]item, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]
		if key < start {
			break
		}
		moved[key+amount] = t.keyframes[key]
		delete(t.keyframes, key)
	}
	for key, items := range moved {
		t.keyframes[key] = append(t.keyframes[key], items...)
	}
	if len(keys) > 0 && t.last >= start {
		t.last += amount
	}
	t.duration += amount
}

func (t *Timeline) keys() []float64 {
	keys := make([]float64, 0, len(t.keyframes))
	for key := range t.keyframes {
		keys = append(keys, key)
	}
	sort.Float64s(keys)
	return keys
}

// Queue flattens the keyframes in time order, bracketed by effects:start at
// 0 and effects:end at Duration().
func (t *Timeline) Queue() contract.Queue {
	queue := make(contract.Queue, 0, 2+len(t.keyframes))
	queue = append(queue, contract.Entry{Type: contract.EffectStart})
	for _, key := range t.keys() {
		for _, it := range t.keyframes[key] {
			queue = append(queue, contract.Entry{
				T:       key,
				EndT:    key + it.duration,
				Type:    it.effect.Type,
				Payload: it.effect.Payload,
			})
		}
	}
	return append(queue, contract.Entry{T: t.duration, EndT: t.duration, Type: contract.EffectEnd})
}

func (t *Timeline) Clear() {
	t.keyframes = make(map[float64][]item)
	t.last = 0
	t.duration = 0
}
