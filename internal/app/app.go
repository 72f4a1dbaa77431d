package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"boardfx"
	"boardfx/effects/catalog"
	"boardfx/effects/contract"
	"boardfx/internal/effects"
	"boardfx/internal/game"
	servernet "boardfx/internal/net"
	"boardfx/internal/observability"
	"boardfx/internal/telemetry"
	"boardfx/logging"
)

const shutdownTimeout = 5 * time.Second

// Run serves one match until ctx is cancelled.
func Run(ctx context.Context, cfg Config, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	router, closeRouter, err := NewRouter(cfg.Log, os.Stdout, map[string]any{"service": "server"})
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

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if terr := shutdownTracing(closeCtx); terr != nil {
			logger.Printf("failed to flush traces: %v", terr)
		}
	}()

	metrics := telemetry.NewCounters()
	host, err := NewHost(cfg, router, metrics)
	if err != nil {
		return err
	}

	hubCfg := boardfx.DefaultHubConfig()
	hubCfg.Loop.TickRate = cfg.TickRate
	hubCfg.Logger = logger
	hubCfg.Publisher = router
	hubCfg.Metrics = metrics
	hub := boardfx.NewHub(host, hubCfg)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{Logger: logger}),
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return hub.Run(ctx)
	})
	group.Go(func() error {
		logger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// NewHost loads the effect catalog and sets up the configured game.
func NewHost(cfg Config, pub logging.Publisher, metrics telemetry.Metrics) (boardfx.Host, error) {
	var fallback contract.Registry
	switch cfg.Game {
	case "dice":
		fallback = game.DiceEffects()
	case "demo":
		fallback = game.DemoEffects()
	default:
		return nil, fmt.Errorf("unknown game %q", cfg.Game)
	}

	registry, err := catalog.LoadOrDefault(cfg.Catalog, fallback)
	if err != nil {
		return nil, fmt.Errorf("load effect catalog: %w", err)
	}
	plugin, err := effects.NewPlugin(registry)
	if err != nil {
		return nil, err
	}

	opts := []game.Option{
		game.WithSeed(cfg.Seed),
		game.WithPublisher(pub),
		game.WithMetrics(metrics),
	}
	if cfg.Game == "demo" {
		match, err := game.NewMatch(game.DemoGame(), plugin, opts...)
		if err != nil {
			return nil, err
		}
		return match, nil
	}
	match, err := game.NewMatch(game.DiceGame(), plugin, opts...)
	if err != nil {
		return nil, err
	}
	return match, nil
}
