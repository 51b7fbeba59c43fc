package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/observability"
)

const wsRoutingKey = "ws_events.sessions"

func encodeEvent(event models.Event) []byte {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("encode %s event: %v", event.Type, err)
		return nil
	}
	return payload
}

func errorEvent(err error) models.Event {
	return models.Event{Type: models.EventError, Content: apperr.Message(err, "internal error")}
}

// publishLifecycle records a session lifecycle event on the event stream.
func publishLifecycle(ctx context.Context, event string, s *Session, reason string) {
	info := s.Info
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":    info.UserID,
			"ip":         info.IP,
			"user_agent": info.UserAgent,
		},
	}
	observability.IncWSEvent("lifecycle", event)
	_ = observability.PublishEvent(ctx, wsRoutingKey, observability.NewEnvelope("ws_events", event, payload),
		observability.BuildHeaders(info.RequestID, info.TraceID))
}
