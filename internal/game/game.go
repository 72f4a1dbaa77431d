// Package game hosts a deterministic state machine whose moves record
// cosmetic effects through the effects plugin.
package game

import (
	"encoding/json"
	"errors"
	"math/rand/v2"

	"boardfx/internal/effects"
)

var (
	// ErrUnknownMove is returned when a move name is not defined by the game.
	ErrUnknownMove = errors.New("game: unknown move")
	// ErrGameOver is returned for moves made after the game ended.
	ErrGameOver = errors.New("game: game is over")
	// ErrInvalidMove may be returned by moves that reject their arguments.
	ErrInvalidMove = errors.New("game: invalid move")
)

// MoveContext is handed to a move for the duration of one transition.
type MoveContext struct {
	Player  string
	Arg     json.RawMessage
	Effects *effects.API
	Random  *Random
}

// Move mutates state in place. Returning an error discards every change the
// move made, including the effects it recorded.
type Move[G any] func(state *G, ctx *MoveContext) error

// Game defines a state type G and the moves allowed on it. G must survive a
// JSON round trip; transitions work on a decoded copy.
type Game[G any] struct {
	Name  string
	Setup func(random *Random) G
	Moves map[string]Move[G]
	EndIf func(state G) bool
}

// Random is the only source of randomness moves may use, so a seeded match
// replays identically.
type Random struct {
	src *rand.PCG
	rng *rand.Rand
}

func NewRandom(seed int64) *Random {
	src := rand.NewPCG(uint64(seed), uint64(seed))
	return &Random{src: src, rng: rand.New(src)}
}

// Die rolls a die with the given number of sides.
func (r *Random) Die(sides int) int {
	if sides < 1 {
		return 0
	}
	return r.rng.IntN(sides) + 1
}

// checkpoint captures the generator so a failed move can give back the
// numbers it drew.
func (r *Random) checkpoint() rand.PCG {
	return *r.src
}

func (r *Random) restore(state rand.PCG) {
	*r.src = state
}

func (r *Random) D6() int {
	return r.Die(6)
}
