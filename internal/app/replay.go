package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"boardfx/effects/contract"
	"boardfx/internal/net/proto"
	"boardfx/internal/net/ws"
	"boardfx/internal/playback"
	"boardfx/internal/telemetry"
)

// Replay joins the server, plays every batch it receives through a
// playback engine and logs the notifications. Configured moves are sent
// one per MoveInterval.
func Replay(ctx context.Context, cfg ReplayConfig, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	router, closeRouter, err := NewRouter(cfg.Log, os.Stdout, map[string]any{"service": "replay"})
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if cerr := closeRouter(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	engine := playback.New(cfg.Playback, playback.WithPublisher(router))
	defer engine.Close()
	defer AttachConsole(engine, logger)()

	client, join, err := ws.Connect(ctx, cfg.ServerURL, ws.ClientConfig{
		Logger:     logger,
		OnSnapshot: engine.Update,
		OnReject: func(msg proto.ServerMessage) {
			logger.Printf("[move] %s seq=%d rejected: %s", msg.Move, msg.Seq, msg.Reason)
		},
	})
	if err != nil {
		return err
	}
	defer client.Close()
	logger.Printf("joined %s as %s", cfg.ServerURL, join.ID)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return client.Run(ctx)
	})
	group.Go(func() error {
		return every(ctx, cfg.Heartbeat, func(now time.Time) error {
			return client.Heartbeat(now)
		})
	})
	group.Go(func() error {
		return sendMoves(ctx, client, cfg.Moves, cfg.MoveInterval)
	})
	return group.Wait()
}

// AttachConsole logs every effect start and end seen by engine.
func AttachConsole(engine *playback.Engine, logger telemetry.Logger) func() {
	return engine.OnAny(
		func(effectType string, payload any, state *contract.Snapshot) func() {
			logger.Printf("[effect] start %s payload=%v turn=%d", effectType, payload, turnOf(state))
			return nil
		},
		func(effectType string, payload any, state *contract.Snapshot) func() {
			logger.Printf("[effect] end %s turn=%d", effectType, turnOf(state))
			return nil
		},
	)
}

func turnOf(state *contract.Snapshot) uint64 {
	if state == nil {
		return 0
	}
	return state.Ctx.Turn
}

func every(ctx context.Context, interval time.Duration, fn func(time.Time) error) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if err := fn(now); err != nil {
				return err
			}
		}
	}
}

func sendMoves(ctx context.Context, client *ws.Client, moves []string, interval time.Duration) error {
	for i, move := range moves {
		if i > 0 && interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(interval):
			}
		}
		if _, err := client.SendMove(move, nil); err != nil {
			return fmt.Errorf("send move %s: %w", move, err)
		}
	}
	return nil
}
