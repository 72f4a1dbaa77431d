package proto

import (
	"encoding/json"
	"errors"
	"fmt"

	"boardfx/effects/contract"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1
)

// Client message type identifiers.
const (
	TypeMove      = "move"
	TypeHeartbeat = "heartbeat"
)

// Server message type identifiers.
const (
	TypeState      = "state"
	TypeMoveAck    = "moveAck"
	TypeMoveReject = "moveReject"
)

// Move rejection reasons.
const (
	RejectUnknownPlayer = "unknown_player"
	RejectUnknownMove   = "unknown_move"
	RejectInvalidMove   = "invalid_move"
	RejectGameOver      = "game_over"
	RejectQueueLimit    = "queue_limit"
	RejectQueueFull     = "queue_full"
	RejectFailed        = "failed"
)

// ErrVersion reports a payload from an incompatible protocol revision.
var ErrVersion = errors.New("proto: unsupported protocol version")

// StateMessage carries the latest snapshot. Every transition produces one.
type StateMessage struct {
	Ver        int                `json:"ver"`
	Type       string             `json:"type"`
	Snapshot   *contract.Snapshot `json:"snapshot"`
	ServerTime int64              `json:"serverTime"`
}

// JoinResponse is returned by the join endpoint.
type JoinResponse struct {
	Ver      int                `json:"ver"`
	ID       string             `json:"id"`
	Snapshot *contract.Snapshot `json:"snapshot,omitempty"`
}

// MoveAckMessage confirms a move was queued.
type MoveAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// MoveRejectMessage reports a move that was refused at intake or failed
// when applied.
type MoveRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Move   string `json:"move,omitempty"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

// HeartbeatMessage is both the client ping and the server reply.
type HeartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime,omitempty"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt,omitempty"`
}

// ClientMessage captures an inbound websocket message from the client.
type ClientMessage struct {
	Ver    int             `json:"ver,omitempty"`
	Type   string          `json:"type"`
	Move   string          `json:"move,omitempty"`
	Arg    json.RawMessage `json:"arg,omitempty"`
	SentAt int64           `json:"sentAt,omitempty"`
	Seq    uint64          `json:"seq,omitempty"`
}

// ServerMessage is the union of everything the server sends, decoded on
// the client side.
type ServerMessage struct {
	Ver        int                `json:"ver"`
	Type       string             `json:"type"`
	Snapshot   *contract.Snapshot `json:"snapshot,omitempty"`
	ServerTime int64              `json:"serverTime,omitempty"`
	ClientTime int64              `json:"clientTime,omitempty"`
	RTTMillis  int64              `json:"rtt,omitempty"`
	Seq        uint64             `json:"seq,omitempty"`
	Move       string             `json:"move,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	Retry      bool               `json:"retry,omitempty"`
}

// EncodeState renders a state message for snapshot.
func EncodeState(snapshot *contract.Snapshot, serverTime int64) ([]byte, error) {
	return json.Marshal(StateMessage{
		Ver:        Version,
		Type:       TypeState,
		Snapshot:   snapshot,
		ServerTime: serverTime,
	})
}

// EncodeMoveAck renders a move acknowledgement.
func EncodeMoveAck(seq uint64) ([]byte, error) {
	return json.Marshal(MoveAckMessage{Ver: Version, Type: TypeMoveAck, Seq: seq})
}

// EncodeMoveReject renders a move rejection. Queue pressure is retryable.
func EncodeMoveReject(seq uint64, move, reason string) ([]byte, error) {
	return json.Marshal(MoveRejectMessage{
		Ver:    Version,
		Type:   TypeMoveReject,
		Seq:    seq,
		Move:   move,
		Reason: reason,
		Retry:  reason == RejectQueueLimit || reason == RejectQueueFull,
	})
}

// EncodeHeartbeat renders the server reply to a client heartbeat.
func EncodeHeartbeat(serverTime, clientTime, rttMillis int64) ([]byte, error) {
	return json.Marshal(HeartbeatMessage{
		Ver:        Version,
		Type:       TypeHeartbeat,
		ServerTime: serverTime,
		ClientTime: clientTime,
		RTTMillis:  rttMillis,
	})
}

// DecodeClientMessage converts raw websocket payloads into a structured
// message. A missing version is treated as the current one.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("client version %d: %w", msg.Ver, ErrVersion)
	}
	return msg, nil
}

// DecodeServerMessage is the client-side counterpart of the Encode helpers.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("server version %d: %w", msg.Ver, ErrVersion)
	}
	if msg.Type == "" {
		return msg, errors.New("proto: server message without type")
	}
	return msg, nil
}
