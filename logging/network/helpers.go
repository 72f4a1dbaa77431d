package network

import (
	"context"

	"boardfx/logging"
)

const (
	// EventPlayerJoined is emitted when a player registers with the hub.
	EventPlayerJoined logging.EventType = "network.player_joined"
	// EventPlayerLeft is emitted when a player's session ends.
	EventPlayerLeft logging.EventType = "network.player_left"
	// EventMoveDropped is emitted when intake refuses a move.
	EventMoveDropped logging.EventType = "network.move_dropped"
)

// LeftPayload records why a session ended.
type LeftPayload struct {
	Reason string `json:"reason"`
}

// MoveDroppedPayload captures a refused move.
type MoveDroppedPayload struct {
	Move   string `json:"move"`
	Seq    uint64 `json:"seq,omitempty"`
	Reason string `json:"reason"`
}

// PlayerJoined publishes a new player registration.
func PlayerJoined(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerJoined,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryNetwork,
		Extra:    extra,
	})
}

// PlayerLeft publishes the end of a session. Timeouts are warnings.
func PlayerLeft(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload LeftPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if payload.Reason == "heartbeat_timeout" {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPlayerLeft,
		Turn:     turn,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}

// MoveDropped publishes a move refused before it reached the match.
func MoveDropped(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload MoveDroppedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMoveDropped,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
