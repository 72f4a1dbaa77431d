package contract

import (
	"encoding/json"
	"sort"
)

const (
	// PluginName is the key the effect data is stored under in host
	// snapshots.
	PluginName = "effects"
	// EffectStart opens every queue at t=0.
	EffectStart = "effects:start"
	// EffectEnd closes every queue at t=duration.
	EffectEnd = "effects:end"
	// Wildcard subscribes a listener to every effect type.
	Wildcard = "*"
	// ReservedName cannot be used as an effect type; the API exposes its
	// timeline under this name.
	ReservedName = "timeline"
)

// Effect is a named cosmetic event with an optional payload.
type Effect struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Entry is a resolved queue item. Times are in seconds relative to the start
// of the batch.
type Entry struct {
	T       float64 `json:"t"`
	EndT    float64 `json:"endT"`
	Type    string  `json:"type"`
	Payload any     `json:"payload,omitempty"`
}

// Queue is sorted by T ascending.
type Queue []Entry

func (q Queue) Clone() Queue {
	if q == nil {
		return nil
	}
	return append(Queue(nil), q...)
}

// Data is the per-transition record stored by the host.
type Data struct {
	ID       string  `json:"id"`
	Duration float64 `json:"duration"`
	Queue    Queue   `json:"queue"`
}

// EffectConfig configures one effect type. Create builds the payload from
// the caller's argument; a nil Create drops the argument.
type EffectConfig struct {
	Create   func(arg any) any `json:"-"`
	Duration float64           `json:"duration,omitempty"`
}

// Registry maps effect type names to their configuration.
type Registry map[string]EffectConfig

// Names returns the registered names in lexical order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot is the host state delivered to clients after every transition.
// G is game specific and left encoded.
type Snapshot struct {
	G       json.RawMessage `json:"G,omitempty"`
	Ctx     SnapshotCtx     `json:"ctx"`
	Plugins Plugins         `json:"plugins"`
}

type SnapshotCtx struct {
	Turn     uint64 `json:"turn"`
	Player   string `json:"player,omitempty"`
	GameOver bool   `json:"gameover,omitempty"`
}

type Plugins struct {
	Effects *PluginState `json:"effects,omitempty"`
}

type PluginState struct {
	Data Data `json:"data"`
}

// EffectsData returns the effect batch carried by s. Nil snapshots and
// snapshots without plugin data report false.
func (s *Snapshot) EffectsData() (Data, bool) {
	if s == nil || s.Plugins.Effects == nil {
		return Data{}, false
	}
	return s.Plugins.Effects.Data, true
}
