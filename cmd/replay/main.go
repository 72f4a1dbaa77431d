package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"boardfx/internal/app"
	"boardfx/internal/telemetry"
)

func main() {
	cfg, err := app.LoadReplayConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	var moves []string
	flag.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "server base url")
	flag.Float64Var(&cfg.Playback.Speed, "speed", cfg.Playback.Speed, "playback speed multiplier")
	flag.BoolVar(&cfg.Playback.UpdateStateAfterEffects, "update-after", cfg.Playback.UpdateStateAfterEffects, "reveal state after effects finish")
	flag.DurationVar(&cfg.MoveInterval, "move-interval", cfg.MoveInterval, "delay between moves")
	flag.Func("move", "move to send, repeatable", func(value string) error {
		moves = append(moves, value)
		return nil
	})
	flag.Parse()
	if len(moves) > 0 {
		cfg.Moves = moves
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Replay(ctx, cfg, telemetry.WrapLogger(log.Default())); err != nil {
		log.Fatalf("%v", err)
	}
}
