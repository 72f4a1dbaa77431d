package transition

import (
	"context"

	"boardfx/logging"
)

const (
	// EventFlushed is emitted after a move is applied and its effects are
	// recorded.
	EventFlushed logging.EventType = "transition.flushed"
	// EventRejected is emitted when a move fails and the state is kept.
	EventRejected logging.EventType = "transition.rejected"
)

// FlushedPayload summarises the recorded batch.
type FlushedPayload struct {
	Move     string  `json:"move"`
	Duration float64 `json:"duration"`
	Effects  int     `json:"effects"`
	GameOver bool    `json:"gameover,omitempty"`
}

// RejectedPayload captures why a move failed.
type RejectedPayload struct {
	Move   string `json:"move"`
	Reason string `json:"reason"`
}

// Flushed publishes a completed transition.
func Flushed(ctx context.Context, pub logging.Publisher, turn uint64, batch string, actor logging.EntityRef, payload FlushedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFlushed,
		Turn:     turn,
		Batch:    batch,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryTransition,
		Payload:  payload,
		Extra:    extra,
	})
}

// Rejected publishes a failed transition.
func Rejected(ctx context.Context, pub logging.Publisher, turn uint64, actor logging.EntityRef, payload RejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRejected,
		Turn:     turn,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryTransition,
		Payload:  payload,
		Extra:    extra,
	})
}
