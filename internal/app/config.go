package app

import (
	"time"

	"boardfx/internal/config"
	"boardfx/internal/game"
	"boardfx/internal/observability"
	"boardfx/internal/playback"
)

// LogConfig selects the event sinks shared by both binaries.
type LogConfig struct {
	Sinks      []string `env:"BOARDFX_LOG_SINKS" envSeparator:"," envDefault:"console"`
	JSONPath   string   `env:"BOARDFX_LOG_JSON_PATH" envDefault:"boardfx-events.jsonl"`
	Level      string   `env:"BOARDFX_LOG_LEVEL" envDefault:"info"`
	BufferSize int      `env:"BOARDFX_LOG_BUFFER" envDefault:"512"`
}

// Config drives the server binary.
type Config struct {
	Addr     string `env:"BOARDFX_ADDR" envDefault:":8080"`
	Game     string `env:"BOARDFX_GAME" envDefault:"dice"`
	Catalog  string `env:"BOARDFX_CATALOG"`
	Seed     int64  `env:"BOARDFX_SEED" envDefault:"1"`
	TickRate int    `env:"BOARDFX_TICK_RATE" envDefault:"20"`

	Log           LogConfig
	Observability observability.Config
}

// ReplayConfig drives the replay client binary.
type ReplayConfig struct {
	ServerURL    string        `env:"BOARDFX_SERVER_URL" envDefault:"http://localhost:8080"`
	Heartbeat    time.Duration `env:"BOARDFX_HEARTBEAT" envDefault:"5s"`
	MoveInterval time.Duration `env:"BOARDFX_MOVE_INTERVAL" envDefault:"2s"`
	Moves        []string      `env:"BOARDFX_MOVES" envSeparator:","`

	Playback playback.Config
	Log      LogConfig
}

// LoadConfig reads the server configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = game.DefaultLoopConfig().TickRate
	}
	return cfg, nil
}

// LoadReplayConfig reads the replay configuration from the environment.
func LoadReplayConfig() (ReplayConfig, error) {
	var cfg ReplayConfig
	if err := config.ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
