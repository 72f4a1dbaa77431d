package playback

import (
	"context"

	"boardfx/logging"
)

const (
	// EventBatchStarted is emitted when a snapshot carries a new effect batch.
	EventBatchStarted logging.EventType = "playback.batch_started"
	// EventEffectStarted is emitted for every start notification.
	EventEffectStarted logging.EventType = "playback.effect_started"
	// EventEffectEnded is emitted for every end notification.
	EventEffectEnded logging.EventType = "playback.effect_ended"
	// EventCleared is emitted when playback is cleared or flushed.
	EventCleared logging.EventType = "playback.cleared"
	// EventListenerPanicked is emitted when a listener panics.
	EventListenerPanicked logging.EventType = "playback.listener_panicked"
)

// BatchStartedPayload describes the batch about to play.
type BatchStartedPayload struct {
	Duration float64 `json:"duration"`
	Effects  int     `json:"effects"`
	Replaced int     `json:"replaced,omitempty"`
}

// EffectPayload identifies one queue entry.
type EffectPayload struct {
	T       float64 `json:"t"`
	EndT    float64 `json:"endT"`
	Elapsed float64 `json:"elapsed"`
	Forced  bool    `json:"forced,omitempty"`
}

// ClearedPayload records how much playback was cut short.
type ClearedPayload struct {
	Flushed   bool `json:"flushed,omitempty"`
	EndedLive int  `json:"endedLive"`
	Dropped   int  `json:"dropped"`
}

// ListenerPanickedPayload carries the recovered value.
type ListenerPanickedPayload struct {
	Phase string `json:"phase"`
	Value string `json:"value"`
}

func effectActor(effectType string) logging.EntityRef {
	return logging.EntityRef{ID: effectType, Kind: logging.EntityKindEffect}
}

// BatchStarted publishes a batch start event.
func BatchStarted(ctx context.Context, pub logging.Publisher, turn uint64, batch string, payload BatchStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBatchStarted,
		Turn:     turn,
		Batch:    batch,
		Actor:    logging.EntityRef{Kind: logging.EntityKindClient},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPlayback,
		Payload:  payload,
		Extra:    extra,
	})
}

// EffectStarted publishes a start notification.
func EffectStarted(ctx context.Context, pub logging.Publisher, turn uint64, batch, effectType string, payload EffectPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEffectStarted,
		Turn:     turn,
		Batch:    batch,
		Actor:    effectActor(effectType),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryPlayback,
		Payload:  payload,
		Extra:    extra,
	})
}

// EffectEnded publishes an end notification.
func EffectEnded(ctx context.Context, pub logging.Publisher, turn uint64, batch, effectType string, payload EffectPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEffectEnded,
		Turn:     turn,
		Batch:    batch,
		Actor:    effectActor(effectType),
		Severity: logging.SeverityDebug,
		Category: logging.CategoryPlayback,
		Payload:  payload,
		Extra:    extra,
	})
}

// Cleared publishes a clear or flush.
func Cleared(ctx context.Context, pub logging.Publisher, turn uint64, batch string, payload ClearedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCleared,
		Turn:     turn,
		Batch:    batch,
		Actor:    logging.EntityRef{Kind: logging.EntityKindClient},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPlayback,
		Payload:  payload,
		Extra:    extra,
	})
}

// ListenerPanicked publishes a recovered listener panic.
func ListenerPanicked(ctx context.Context, pub logging.Publisher, turn uint64, batch, effectType string, payload ListenerPanickedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventListenerPanicked,
		Turn:     turn,
		Batch:    batch,
		Actor:    effectActor(effectType),
		Severity: logging.SeverityError,
		Category: logging.CategoryPlayback,
		Payload:  payload,
		Extra:    extra,
	})
}
