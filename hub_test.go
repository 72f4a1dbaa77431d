package boardfx

import (
	"context"
	"testing"
	"time"

	"boardfx/internal/effects"
	"boardfx/internal/game"
	"boardfx/internal/net/proto"
	"boardfx/internal/telemetry"
	"boardfx/logging/network"
	"boardfx/logging/sinks"
)

func newTestHub(t *testing.T, cfg HubConfig) (*Hub, *game.Match[game.DiceState]) {
	t.Helper()
	plugin, err := effects.NewPlugin(game.DiceEffects())
	if err != nil {
		t.Fatalf("plugin: %v", err)
	}
	match, err := game.NewMatch(game.DiceGame(), plugin, game.WithSeed(3))
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(t.Logf)
	}
	return NewHub(match, cfg), match
}

func TestHubJoinReturnsCurrentSnapshot(t *testing.T) {
	hub, match := newTestHub(t, HubConfig{})

	first := hub.Join()
	second := hub.Join()
	if first.ID == second.ID {
		t.Fatalf("expected unique ids, got %q twice", first.ID)
	}
	if first.Ver != proto.Version || first.Snapshot != match.Snapshot() {
		t.Fatalf("unexpected join response %+v", first)
	}
	if players := hub.DiagnosticsSnapshot(); len(players) != 2 || players[0].ID != first.ID || players[0].Connected {
		t.Fatalf("unexpected diagnostics %+v", players)
	}
}

func TestHubHandleMoveAppliesOnAdvance(t *testing.T) {
	hub, match := newTestHub(t, HubConfig{})
	join := hub.Join()

	ok, reason := hub.HandleMove(join.ID, "roll", nil, 1)
	if !ok || reason != "" {
		t.Fatalf("expected move to be queued, got %v %q", ok, reason)
	}
	if hub.Pending() != 1 {
		t.Fatalf("expected one pending move, got %d", hub.Pending())
	}
	if applied := hub.Advance(context.Background()); applied != 1 {
		t.Fatalf("expected one applied move, got %d", applied)
	}
	if turn := match.Snapshot().Ctx.Turn; turn != 1 {
		t.Fatalf("expected turn 1, got %d", turn)
	}
	frame, ok := hub.Keyframe(1)
	if !ok || frame.Snapshot != match.Snapshot() {
		t.Fatalf("expected turn 1 in the journal, got %+v", frame)
	}
	if size, oldest, newest := hub.KeyframeWindow(); size != 2 || oldest != 0 || newest != 1 {
		t.Fatalf("unexpected journal window %d %d %d", size, oldest, newest)
	}
	if got := hub.TelemetrySnapshot()["game_command_buffer_occupancy"]; got != 0 {
		t.Fatalf("expected drained buffer, got occupancy %d", got)
	}
}

func TestHubRejectsUnknownPlayersAndQueuePressure(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Loop.PerPlayerLimit = 1
	events := sinks.NewMemory()
	cfg.Publisher = events
	hub, _ := newTestHub(t, cfg)

	if ok, reason := hub.HandleMove("ghost", "roll", nil, 1); ok || reason != proto.RejectUnknownPlayer {
		t.Fatalf("expected unknown player rejection, got %v %q", ok, reason)
	}

	join := hub.Join()
	if ok, _ := hub.HandleMove(join.ID, "roll", nil, 1); !ok {
		t.Fatal("expected first move to be queued")
	}
	if ok, reason := hub.HandleMove(join.ID, "roll", nil, 2); ok || reason != proto.RejectQueueLimit {
		t.Fatalf("expected queue limit, got %v %q", ok, reason)
	}
	if got := hub.TelemetrySnapshot()[metricMovesRejected]; got != 2 {
		t.Fatalf("expected two rejected moves, got %d", got)
	}

	var dropped []network.MoveDroppedPayload
	for _, event := range events.Events() {
		if event.Type == network.EventMoveDropped {
			dropped = append(dropped, event.Payload.(network.MoveDroppedPayload))
		}
	}
	if len(dropped) != 2 || dropped[0].Reason != proto.RejectUnknownPlayer || dropped[1].Seq != 2 {
		t.Fatalf("unexpected drop events %+v", dropped)
	}
}

func TestHubDispatchFailureDoesNotAdvanceTurn(t *testing.T) {
	hub, match := newTestHub(t, HubConfig{})
	join := hub.Join()

	hub.HandleMove(join.ID, "jump", nil, 4)
	hub.Advance(context.Background())
	if turn := match.Snapshot().Ctx.Turn; turn != 0 {
		t.Fatalf("expected rejected move to leave turn 0, got %d", turn)
	}
	if got := hub.TelemetrySnapshot()[metricMovesRejected]; got != 1 {
		t.Fatalf("expected dispatch failure to be counted, got %d", got)
	}
}

func TestHubReapStaleDisconnectsSilentPlayers(t *testing.T) {
	now := time.Unix(1_000, 0)
	cfg := DefaultHubConfig()
	cfg.HeartbeatTimeout = 10 * time.Second
	cfg.Now = func() time.Time { return now }
	events := sinks.NewMemory()
	cfg.Publisher = events
	hub, _ := newTestHub(t, cfg)

	quiet := hub.Join()
	chatty := hub.Join()

	now = now.Add(8 * time.Second)
	if _, ok := hub.UpdateHeartbeat(chatty.ID, now, now.Add(-40*time.Millisecond).UnixMilli()); !ok {
		t.Fatal("expected heartbeat to be recorded")
	}

	now = now.Add(5 * time.Second)
	stale := hub.ReapStale()
	if len(stale) != 1 || stale[0] != quiet.ID {
		t.Fatalf("expected %s to be reaped, got %v", quiet.ID, stale)
	}
	players := hub.DiagnosticsSnapshot()
	if len(players) != 1 || players[0].ID != chatty.ID || players[0].RTTMillis != 40 {
		t.Fatalf("unexpected diagnostics %+v", players)
	}
	if _, ok := hub.UpdateHeartbeat(quiet.ID, now, 0); ok {
		t.Fatal("expected reaped player to be gone")
	}

	recorded := events.Events()
	if len(recorded) != 3 || recorded[0].Type != network.EventPlayerJoined || recorded[2].Type != network.EventPlayerLeft {
		t.Fatalf("unexpected events %v", events.Types())
	}
	left, ok := recorded[2].Payload.(network.LeftPayload)
	if !ok || left.Reason != "heartbeat_timeout" || recorded[2].Actor.ID != quiet.ID {
		t.Fatalf("unexpected leave event %+v", recorded[2])
	}
}

func TestHubRunStopsWithContext(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.Loop.TickRate = 100
	hub, match := newTestHub(t, cfg)
	join := hub.Join()
	hub.HandleMove(join.ID, "roll", nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for match.Snapshot().Ctx.Turn == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	if match.Snapshot().Ctx.Turn != 1 {
		t.Fatalf("expected queued move to be applied, got turn %d", match.Snapshot().Ctx.Turn)
	}
}
