package ws

import (
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"boardfx"
	"boardfx/internal/net/proto"
	"boardfx/internal/telemetry"
)

type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades player connections and runs their session loop.
type Handler struct {
	hub      *boardfx.Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *boardfx.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	playerID := r.URL.Query().Get("id")
	if playerID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", playerID, err)
		return
	}
	h.Serve(playerID, conn)
}

// Serve runs a session for an upgraded player connection until it fails.
func (h *Handler) Serve(playerID string, conn *websocket.Conn) {
	sub, snapshot, ok := h.hub.Subscribe(playerID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown player")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	data, err := proto.EncodeState(snapshot, time.Now().UnixMilli())
	if err != nil {
		h.logger.Printf("failed to marshal initial state for %s: %v", playerID, err)
		h.hub.Disconnect(playerID)
		return
	}
	if err := sub.WriteMessage(websocket.TextMessage, data); err != nil {
		h.hub.Disconnect(playerID)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(playerID)
			return
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", playerID, err)
			continue
		}

		var reply []byte
		switch msg.Type {
		case proto.TypeMove:
			reply, err = h.move(playerID, sub, msg)
		case proto.TypeHeartbeat:
			reply, err = h.heartbeat(playerID, msg)
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, playerID)
			continue
		}
		if err != nil {
			h.logger.Printf("failed to marshal response for %s: %v", playerID, err)
			continue
		}
		if reply == nil {
			continue
		}
		if err := sub.WriteMessage(websocket.TextMessage, reply); err != nil {
			h.hub.Disconnect(playerID)
			return
		}
	}
}

func (h *Handler) move(playerID string, sub *boardfx.Subscriber, msg proto.ClientMessage) ([]byte, error) {
	if msg.Move == "" {
		return nil, nil
	}
	// Resent moves are acknowledged again but not replayed.
	if msg.Seq > 0 && msg.Seq <= sub.LastMoveSeq() {
		return proto.EncodeMoveAck(msg.Seq)
	}
	ok, reason := h.hub.HandleMove(playerID, msg.Move, msg.Arg, msg.Seq)
	if !ok {
		if reason == proto.RejectUnknownPlayer {
			h.logger.Printf("move ignored for unknown player %s", playerID)
		}
		if msg.Seq == 0 {
			return nil, nil
		}
		return proto.EncodeMoveReject(msg.Seq, msg.Move, reason)
	}
	if msg.Seq == 0 {
		return nil, nil
	}
	sub.StoreLastMoveSeq(msg.Seq)
	return proto.EncodeMoveAck(msg.Seq)
}

func (h *Handler) heartbeat(playerID string, msg proto.ClientMessage) ([]byte, error) {
	now := time.Now()
	rtt, ok := h.hub.UpdateHeartbeat(playerID, now, msg.SentAt)
	if !ok {
		return nil, nil
	}
	return proto.EncodeHeartbeat(now.UnixMilli(), msg.SentAt, rtt.Milliseconds())
}
