package game

import (
	"boardfx/effects/contract"
	"boardfx/internal/effects"
)

// DemoState is empty; the demo game exists to show effect timing.
type DemoState struct{}

// DemoEffects configures the two short effects used by DemoGame.
func DemoEffects() contract.Registry {
	return contract.Registry{
		"A": {Create: identity, Duration: 0.1},
		"B": {Create: identity, Duration: 0.1},
	}
}

// DemoGame has two moves that spell out messages through staggered effects.
func DemoGame() Game[DemoState] {
	return Game[DemoState]{
		Name:  "demo",
		Setup: func(*Random) DemoState { return DemoState{} },
		Moves: map[string]Move[DemoState]{
			"One": func(_ *DemoState, ctx *MoveContext) error {
				return emitAll(ctx.Effects,
					call{"A", "one", ""},
					call{"A", "two", ">+0.4"},
					call{"B", "hello", ">+0.4"},
					call{"A", "three", ">+0.15"},
					call{"B", "world", ">+0.4"},
				)
			},
			"Two": func(_ *DemoState, ctx *MoveContext) error {
				return emitAll(ctx.Effects,
					call{"A", "synch-", ""},
					call{"B", "ronise", "<"},
					call{"A", "effects", ">+0.4"},
					call{"B", "FX!", "<"},
				)
			},
		},
	}
}

type call struct {
	effect   string
	arg      string
	position string
}

func emitAll(api *effects.API, calls ...call) error {
	for _, c := range calls {
		var opts []effects.TimingOption
		if c.position != "" {
			opts = append(opts, effects.Position(c.position))
		}
		if err := api.Emit(c.effect, c.arg, opts...); err != nil {
			return err
		}
	}
	return nil
}
