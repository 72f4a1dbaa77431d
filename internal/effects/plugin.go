// Package effects builds the effect batch recorded for each host transition.
//
// A host calls Setup once, then API at the start of every transition and
// Flush at its end. The API handed to move code is scoped to one transition.
package effects

import (
	"boardfx/effects/contract"
	"boardfx/internal/timeline"
)

// Plugin holds the effect configuration fixed for the lifetime of a game.
type Plugin struct {
	registry contract.Registry
	newID    func() string
}

type PluginOption func(*Plugin)

// WithIDSource replaces the random batch id generator.
func WithIDSource(source func() string) PluginOption {
	return func(p *Plugin) {
		if source != nil {
			p.newID = source
		}
	}
}

// NewPlugin validates registry and copies it. Configuring the reserved name
// "timeline" fails here and in API.
func NewPlugin(registry contract.Registry, opts ...PluginOption) (*Plugin, error) {
	if err := registry.Validate(); err != nil {
		return nil, err
	}
	p := &Plugin{
		registry: make(contract.Registry, len(registry)),
		newID:    NewID,
	}
	for name, cfg := range registry {
		p.registry[name] = cfg
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *Plugin) Name() string {
	return contract.PluginName
}

// Registry returns a copy of the configured effects.
func (p *Plugin) Registry() contract.Registry {
	copied := make(contract.Registry, len(p.registry))
	for name, cfg := range p.registry {
		copied[name] = cfg
	}
	return copied
}

// Setup returns the record stored before the first transition: an empty
// batch holding only the two brackets at 0.
func (p *Plugin) Setup() contract.Data {
	return p.data(timeline.New())
}

// API returns a fresh builder for one transition.
func (p *Plugin) API() (*API, error) {
	api := &API{
		timeline: timeline.New(),
		effects:  make(map[string]EffectFunc, len(p.registry)),
	}
	for name, cfg := range p.registry {
		if err := contract.CheckName(name); err != nil {
			return nil, err
		}
		api.effects[name] = api.bind(name, cfg)
	}
	return api, nil
}

// Flush records the batch built through api under a new id. A nil api
// flushes an empty batch.
func (p *Plugin) Flush(api *API) contract.Data {
	if api == nil {
		return p.Setup()
	}
	return p.data(api.timeline)
}

func (p *Plugin) data(tl *timeline.Timeline) contract.Data {
	return contract.Data{
		ID:       p.newID(),
		Duration: tl.Duration(),
		Queue:    tl.Queue(),
	}
}
