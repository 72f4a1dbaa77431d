package game

import (
	"boardfx/effects/contract"
	"boardfx/internal/effects"
)

// DiceState is the state of the dice game.
type DiceState struct {
	Roll  int `json:"roll"`
	Score int `json:"score"`
	Rolls int `json:"rolls"`
}

// DiceWinningScore ends the dice game.
const DiceWinningScore = 5

// DiceEffects configures the effects recorded by DiceGame.
func DiceEffects() contract.Registry {
	return contract.Registry{
		"roll":  {Create: identity, Duration: 1},
		"score": {Create: identity, Duration: 0.5},
		"win":   {Duration: 1.5},
	}
}

func identity(arg any) any {
	return arg
}

// DiceGame rolls a six sided die; every six scores a point.
func DiceGame() Game[DiceState] {
	return Game[DiceState]{
		Name: "dice",
		Setup: func(*Random) DiceState {
			return DiceState{Roll: 1}
		},
		Moves: map[string]Move[DiceState]{
			"roll": rollDie,
		},
		EndIf: func(s DiceState) bool {
			return s.Score >= DiceWinningScore
		},
	}
}

func rollDie(s *DiceState, ctx *MoveContext) error {
	s.Roll = ctx.Random.D6()
	s.Rolls++
	if err := ctx.Effects.Emit("roll", s.Roll); err != nil {
		return err
	}
	if s.Roll != 6 {
		return nil
	}
	s.Score++
	if err := ctx.Effects.Emit("score", s.Score, effects.Position("<+0.5")); err != nil {
		return err
	}
	if s.Score >= DiceWinningScore {
		return ctx.Effects.Emit("win", nil)
	}
	return nil
}
