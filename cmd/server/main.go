package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"boardfx/internal/app"
	"boardfx/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := app.Run(ctx, cfg, telemetry.WrapLogger(log.Default())); err != nil {
		log.Fatalf("%v", err)
	}
}
