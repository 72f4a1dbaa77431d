package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"boardfx/effects/contract"
	"boardfx/internal/telemetry"
)

const (
	// CommandRejectQueueLimit indicates a player already has the maximum
	// number of moves waiting.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the shared command buffer is full.
	CommandRejectQueueFull = "queue_full"
)

// Dispatcher applies one move. *Match satisfies it for any state type.
type Dispatcher interface {
	Dispatch(ctx context.Context, player, move string, arg json.RawMessage) (*contract.Snapshot, error)
}

// LoopConfig tunes command buffering and the drain rate.
type LoopConfig struct {
	TickRate        int
	CommandCapacity int
	PerPlayerLimit  int
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{TickRate: 20, CommandCapacity: 256, PerPlayerLimit: 8}
}

// LoopHooks observe the loop. All fields are optional.
type LoopHooks struct {
	// AfterCommand runs once per applied command with the resulting snapshot
	// or the rejection error.
	AfterCommand func(cmd Command, snapshot *contract.Snapshot, err error)
	// OnCommandDrop runs when Enqueue refuses a command.
	OnCommandDrop func(reason string, cmd Command)
}

// Loop serialises moves from many producers onto one dispatcher.
type Loop struct {
	target  Dispatcher
	buffer  *CommandBuffer
	config  LoopConfig
	hooks   LoopHooks
	logger  telemetry.Logger
	metrics telemetry.Metrics

	queueMu    sync.Mutex
	perPlayer  map[string]int
	dropCounts map[string]uint64
}

func NewLoop(target Dispatcher, cfg LoopConfig, hooks LoopHooks, logger telemetry.Logger, metrics telemetry.Metrics) *Loop {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultLoopConfig().TickRate
	}
	return &Loop{
		target:     target,
		buffer:     NewCommandBuffer(cfg.CommandCapacity, metrics),
		config:     cfg,
		hooks:      hooks,
		logger:     logger,
		metrics:    metrics,
		perPlayer:  make(map[string]int),
		dropCounts: make(map[string]uint64),
	}
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	return l.buffer.Len()
}

// Enqueue stages a command, enforcing the per-player limit and capacity.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	l.queueMu.Lock()
	reason := ""
	if l.config.PerPlayerLimit > 0 && cmd.Player != "" && l.perPlayer[cmd.Player] >= l.config.PerPlayerLimit {
		reason = CommandRejectQueueLimit
	} else if !l.buffer.Push(cmd) {
		reason = CommandRejectQueueFull
	} else if cmd.Player != "" {
		l.perPlayer[cmd.Player]++
	}
	var drops uint64
	if reason != "" && cmd.Player != "" {
		l.dropCounts[cmd.Player]++
		drops = l.dropCounts[cmd.Player]
	}
	l.queueMu.Unlock()

	if reason == "" {
		return true, ""
	}
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on powers of two so a flooding client cannot flood the log.
	if l.logger != nil && drops > 0 && drops&(drops-1) == 0 {
		l.logger.Printf("[backpressure] dropping move player=%s move=%s reason=%s count=%d", cmd.Player, cmd.Move, reason, drops)
	}
	return false, reason
}

// Advance applies every staged command in arrival order.
func (l *Loop) Advance(ctx context.Context) int {
	l.queueMu.Lock()
	commands := l.buffer.Drain()
	if len(l.perPlayer) > 0 {
		l.perPlayer = make(map[string]int)
	}
	l.queueMu.Unlock()

	for _, cmd := range commands {
		snapshot, err := l.target.Dispatch(ctx, cmd.Player, cmd.Move, cmd.Arg)
		if l.hooks.AfterCommand != nil {
			l.hooks.AfterCommand(cmd, snapshot, err)
		}
	}
	return len(commands)
}

// Run drains the buffer at the configured rate until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.config.TickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Advance(context.WithoutCancel(ctx))
			return nil
		case <-ticker.C:
			l.Advance(ctx)
		}
	}
}
