// Package boardfx hosts a match and fans its snapshots out to websocket
// subscribers.
package boardfx

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"boardfx/effects/contract"
	"boardfx/internal/game"
	"boardfx/internal/journal"
	"boardfx/internal/net/proto"
	"boardfx/internal/telemetry"
	"boardfx/logging"
	"boardfx/logging/network"
)

const (
	metricBroadcasts      = "hub_broadcasts_total"
	metricBroadcastBytes  = "hub_broadcast_bytes_total"
	metricMovesRejected   = "hub_moves_rejected_total"
	metricPlayersTimedOut = "hub_players_timed_out_total"
)

// Host is the state machine behind the hub. *game.Match satisfies it for
// any state type.
type Host interface {
	game.Dispatcher
	Snapshot() *contract.Snapshot
}

// HubConfig tunes the hub. Zero values fall back to DefaultHubConfig.
type HubConfig struct {
	Loop             game.LoopConfig
	WriteWait        time.Duration
	HeartbeatTimeout time.Duration
	// JournalCapacity bounds how many past snapshots stay fetchable.
	// Negative disables the journal.
	JournalCapacity int
	JournalMaxAge   time.Duration
	Logger          telemetry.Logger
	Publisher       logging.Publisher
	Metrics         *telemetry.Counters
	Now             func() time.Time
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		Loop:             game.DefaultLoopConfig(),
		WriteWait:        10 * time.Second,
		HeartbeatTimeout: 30 * time.Second,
		JournalCapacity:  64,
	}
}

// Hub owns the players, their subscriber connections and the move loop.
type Hub struct {
	host    Host
	loop    *game.Loop
	journal *journal.Journal
	config  HubConfig
	logger  telemetry.Logger
	pub     logging.Publisher
	metrics *telemetry.Counters
	now     func() time.Time

	mu          sync.Mutex
	players     map[string]*playerState
	subscribers map[string]*Subscriber
	nextID      atomic.Uint64
}

type playerState struct {
	id            string
	joinedAt      time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
	moves         uint64
}

// Subscriber is a player's websocket connection. Writes are serialised.
type Subscriber struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu      sync.Mutex
	lastSeq uint64
}

// WriteMessage writes one frame with the hub's write deadline.
func (s *Subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeWait > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	}
	return s.conn.WriteMessage(messageType, data)
}

// LastMoveSeq reports the highest acknowledged move sequence.
func (s *Subscriber) LastMoveSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeq
}

// StoreLastMoveSeq records seq as acknowledged.
func (s *Subscriber) StoreLastMoveSeq(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.lastSeq {
		s.lastSeq = seq
	}
}

// NewHub wires a hub around host.
func NewHub(host Host, cfg HubConfig) *Hub {
	defaults := DefaultHubConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = defaults.HeartbeatTimeout
	}
	if cfg.JournalCapacity == 0 {
		cfg.JournalCapacity = defaults.JournalCapacity
	}
	if cfg.Loop.CommandCapacity <= 0 {
		cfg.Loop.CommandCapacity = defaults.Loop.CommandCapacity
	}
	if cfg.Loop.TickRate <= 0 {
		cfg.Loop.TickRate = defaults.Loop.TickRate
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewCounters()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}

	h := &Hub{
		host:        host,
		config:      cfg,
		logger:      logger,
		pub:         pub,
		metrics:     metrics,
		now:         now,
		players:     make(map[string]*playerState),
		subscribers: make(map[string]*Subscriber),
	}
	h.journal = journal.New(cfg.JournalCapacity, cfg.JournalMaxAge, now)
	h.journal.Record(host.Snapshot())
	h.loop = game.NewLoop(host, cfg.Loop, game.LoopHooks{
		AfterCommand: h.afterCommand,
	}, logger, metrics)
	return h
}

// Join registers a new player and returns the current snapshot.
func (h *Hub) Join() proto.JoinResponse {
	id := fmt.Sprintf("player-%d", h.nextID.Add(1))
	now := h.now()

	h.mu.Lock()
	h.players[id] = &playerState{id: id, joinedAt: now, lastHeartbeat: now}
	h.mu.Unlock()

	snapshot := h.host.Snapshot()
	network.PlayerJoined(context.Background(), h.pub, snapshot.Ctx.Turn, playerRef(id), nil)
	return proto.JoinResponse{Ver: proto.Version, ID: id, Snapshot: snapshot}
}

func playerRef(id string) logging.EntityRef {
	return logging.EntityRef{ID: id, Kind: logging.EntityKindPlayer}
}

func (h *Hub) turn() uint64 {
	if snapshot := h.host.Snapshot(); snapshot != nil {
		return snapshot.Ctx.Turn
	}
	return 0
}

// Subscribe associates a websocket connection with an existing player,
// replacing any previous one.
func (h *Hub) Subscribe(playerID string, conn *websocket.Conn) (*Subscriber, *contract.Snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.players[playerID]
	if !ok {
		return nil, nil, false
	}
	state.lastHeartbeat = h.now()

	if existing, ok := h.subscribers[playerID]; ok {
		existing.conn.Close()
	}

	sub := &Subscriber{conn: conn, writeWait: h.config.WriteWait}
	h.subscribers[playerID] = sub
	return sub, h.host.Snapshot(), true
}

// Disconnect removes a player and closes its connection. It reports
// whether the player existed.
func (h *Hub) Disconnect(playerID string) bool {
	return h.disconnect(playerID, "disconnected")
}

func (h *Hub) disconnect(playerID, reason string) bool {
	h.mu.Lock()
	sub, subOK := h.subscribers[playerID]
	if subOK {
		delete(h.subscribers, playerID)
	}
	_, playerOK := h.players[playerID]
	if playerOK {
		delete(h.players, playerID)
	}
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	if playerOK {
		network.PlayerLeft(context.Background(), h.pub, h.turn(), playerRef(playerID), network.LeftPayload{Reason: reason}, nil)
	}
	return playerOK
}

// HandleMove stages a move for the loop. The second result is a
// proto.Reject* reason when the move was refused.
func (h *Hub) HandleMove(playerID, move string, arg []byte, seq uint64) (bool, string) {
	h.mu.Lock()
	state, ok := h.players[playerID]
	if ok {
		state.moves++
	}
	h.mu.Unlock()
	if !ok {
		h.dropMove(playerID, move, seq, proto.RejectUnknownPlayer)
		return false, proto.RejectUnknownPlayer
	}

	accepted, reason := h.loop.Enqueue(game.Command{
		Player:   playerID,
		Move:     move,
		Arg:      arg,
		Seq:      seq,
		IssuedAt: h.now(),
	})
	if !accepted {
		reason = rejectReason(reason)
		h.dropMove(playerID, move, seq, reason)
		return false, reason
	}
	return true, ""
}

func (h *Hub) dropMove(playerID, move string, seq uint64, reason string) {
	h.metrics.Add(metricMovesRejected, 1)
	network.MoveDropped(context.Background(), h.pub, h.turn(), playerRef(playerID), network.MoveDroppedPayload{
		Move:   move,
		Seq:    seq,
		Reason: reason,
	}, nil)
}

func rejectReason(loopReason string) string {
	switch loopReason {
	case game.CommandRejectQueueLimit:
		return proto.RejectQueueLimit
	case game.CommandRejectQueueFull:
		return proto.RejectQueueFull
	default:
		return proto.RejectFailed
	}
}

func dispatchRejectReason(err error) string {
	switch {
	case errors.Is(err, game.ErrUnknownMove):
		return proto.RejectUnknownMove
	case errors.Is(err, game.ErrGameOver):
		return proto.RejectGameOver
	case errors.Is(err, game.ErrInvalidMove):
		return proto.RejectInvalidMove
	default:
		return proto.RejectFailed
	}
}

// UpdateHeartbeat records a heartbeat and returns the measured RTT.
func (h *Hub) UpdateHeartbeat(playerID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.players[playerID]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = receivedAt

	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			state.lastRTT = max(receivedAt.Sub(clientTime), 0)
		}
	}
	return state.lastRTT, true
}

// Advance applies every staged move now.
func (h *Hub) Advance(ctx context.Context) int {
	return h.loop.Advance(ctx)
}

// Run drains moves and reaps silent players until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return h.loop.Run(ctx)
	})
	group.Go(func() error {
		ticker := time.NewTicker(h.config.HeartbeatTimeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				h.ReapStale()
			}
		}
	})
	return group.Wait()
}

// ReapStale disconnects players whose last heartbeat is older than the
// configured timeout and returns their ids.
func (h *Hub) ReapStale() []string {
	now := h.now()
	h.mu.Lock()
	var stale []string
	for id, state := range h.players {
		if now.Sub(state.lastHeartbeat) > h.config.HeartbeatTimeout {
			stale = append(stale, id)
		}
	}
	h.mu.Unlock()

	sort.Strings(stale)
	for _, id := range stale {
		if h.disconnect(id, "heartbeat_timeout") {
			h.metrics.Add(metricPlayersTimedOut, 1)
			h.logger.Printf("disconnecting %s due to heartbeat timeout", id)
		}
	}
	return stale
}

func (h *Hub) afterCommand(cmd game.Command, snapshot *contract.Snapshot, err error) {
	if err != nil {
		h.logger.Printf("[move] rejected player=%s move=%s: %v", cmd.Player, cmd.Move, err)
		h.metrics.Add(metricMovesRejected, 1)
		if cmd.Seq == 0 {
			return
		}
		data, encErr := proto.EncodeMoveReject(cmd.Seq, cmd.Move, dispatchRejectReason(err))
		if encErr != nil {
			h.logger.Printf("failed to marshal move reject: %v", encErr)
			return
		}
		h.sendTo(cmd.Player, data)
		return
	}
	h.journal.Record(snapshot)
	h.BroadcastSnapshot(snapshot)
}

// BroadcastSnapshot sends snapshot to every subscriber, disconnecting
// those whose write fails.
func (h *Hub) BroadcastSnapshot(snapshot *contract.Snapshot) {
	if snapshot == nil {
		snapshot = h.host.Snapshot()
	}
	data, err := proto.EncodeState(snapshot, h.now().UnixMilli())
	if err != nil {
		h.logger.Printf("failed to marshal state message: %v", err)
		return
	}

	h.mu.Lock()
	subs := make(map[string]*Subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Printf("failed to send update to %s: %v", id, err)
			h.disconnect(id, "write_failed")
			continue
		}
		h.metrics.Add(metricBroadcasts, 1)
		h.metrics.Add(metricBroadcastBytes, uint64(len(data)))
	}
}

func (h *Hub) sendTo(playerID string, data []byte) {
	h.mu.Lock()
	sub, ok := h.subscribers[playerID]
	h.mu.Unlock()
	if !ok {
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Printf("failed to send to %s: %v", playerID, err)
		h.disconnect(playerID, "write_failed")
	}
}

// DiagnosticsPlayer is one row of the diagnostics endpoint.
type DiagnosticsPlayer struct {
	ID            string `json:"id"`
	Connected     bool   `json:"connected"`
	LastHeartbeat int64  `json:"lastHeartbeat"`
	RTTMillis     int64  `json:"rtt"`
	Moves         uint64 `json:"moves"`
}

// DiagnosticsSnapshot lists players ordered by id.
func (h *Hub) DiagnosticsSnapshot() []DiagnosticsPlayer {
	h.mu.Lock()
	defer h.mu.Unlock()

	players := make([]DiagnosticsPlayer, 0, len(h.players))
	for id, state := range h.players {
		_, connected := h.subscribers[id]
		players = append(players, DiagnosticsPlayer{
			ID:            id,
			Connected:     connected,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
			Moves:         state.moves,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players
}

// TelemetrySnapshot exposes the hub and loop counters.
func (h *Hub) TelemetrySnapshot() map[string]uint64 {
	return h.metrics.Snapshot()
}

// Keyframe returns the snapshot recorded for turn while it is still in the
// journal window.
func (h *Hub) Keyframe(turn uint64) (journal.Keyframe, bool) {
	return h.journal.ByTurn(turn)
}

// KeyframeWindow reports the journal's retained turn range.
func (h *Hub) KeyframeWindow() (size int, oldest, newest uint64) {
	return h.journal.Window()
}

// Pending reports moves waiting for the next loop tick.
func (h *Hub) Pending() int {
	return h.loop.Pending()
}

// TickRate reports how often staged moves are applied.
func (h *Hub) TickRate() int {
	return h.config.Loop.TickRate
}
