package playback

import (
	"time"

	"boardfx/internal/frame"
)

// Config is read from the environment by internal/config.
type Config struct {
	// Speed multiplies playback rate. Values <= 0 fall back to 1.
	Speed float64 `env:"PLAYBACK_SPEED" envDefault:"1"`
	// UpdateStateAfterEffects holds back the visible state until the batch
	// that came with it has finished playing.
	UpdateStateAfterEffects bool `env:"PLAYBACK_UPDATE_STATE_AFTER_EFFECTS" envDefault:"false"`
	// Backstop runs a tick when no frame arrived within the interval.
	Backstop time.Duration `env:"PLAYBACK_BACKSTOP" envDefault:"1s"`
	// FrameInterval paces the default frame source.
	FrameInterval time.Duration `env:"PLAYBACK_FRAME_INTERVAL" envDefault:"16ms"`
}

func DefaultConfig() Config {
	return Config{
		Speed:         1,
		Backstop:      frame.DefaultBackstop,
		FrameInterval: frame.DefaultInterval,
	}
}

func (c Config) normalized() Config {
	if c.Speed <= 0 {
		c.Speed = 1
	}
	if c.Backstop <= 0 {
		c.Backstop = frame.DefaultBackstop
	}
	if c.FrameInterval <= 0 {
		c.FrameInterval = frame.DefaultInterval
	}
	return c
}
