package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"chat-core/internal/models"
	"chat-core/internal/observability"
	"chat-core/internal/pubsub"
)

// Router turns domain notifications into envelopes on the bus and hands
// envelopes arriving from the bus to local sessions. Failures are logged and
// counted, never returned.
type Router struct {
	bus      pubsub.Bus
	registry *Registry
}

func NewRouter(bus pubsub.Bus, registry *Registry) *Router {
	r := &Router{bus: bus, registry: registry}
	bus.Handle(r.dispatch)
	return r
}

// MessageCreated pushes a chat frame to both parties of a direct message, or
// to the room channel.
func (r *Router) MessageCreated(ctx context.Context, view models.MessageView) {
	event := models.Event{Type: models.EventChat, Message: &view}
	kind := "room"
	if view.IsDirect() {
		kind = "direct"
	}
	observability.IncMessageCreated(kind)
	for _, target := range conversationTargets(view) {
		r.publish(ctx, target, event)
	}
	r.stream(ctx, observability.EventMessageCreated, "message_created", map[string]interface{}{
		"message_id":  view.ID,
		"sender_id":   view.SenderID,
		"receiver_id": view.ReceiverID,
		"room_id":     view.RoomID,
		"type":        view.MessageType,
	})
}

func (r *Router) MessageDeleted(ctx context.Context, view models.MessageView) {
	event := models.Event{
		Type:       models.EventMessageDeleted,
		MessageID:  view.ID,
		SenderID:   view.SenderID,
		ReceiverID: view.ReceiverID,
		RoomID:     view.RoomID,
	}
	for _, target := range conversationTargets(view) {
		r.publish(ctx, target, event)
	}
	r.stream(ctx, observability.EventMessageDeleted, "message_deleted", map[string]interface{}{
		"message_id": view.ID,
		"sender_id":  view.SenderID,
	})
}

// MessagesRead sends a read receipt to the original sender.
func (r *Router) MessagesRead(ctx context.Context, receiverID, senderID, count int) {
	to := senderID
	r.publish(ctx, pubsub.UserTarget(senderID), models.Event{
		Type:       models.EventRead,
		SenderID:   receiverID,
		ReceiverID: &to,
		Count:      count,
	})
}

func (r *Router) SubscribeMembers(ctx context.Context, roomID int, userIDs ...int) {
	r.control(ctx, pubsub.KindSubscribe, roomID, userIDs)
}

func (r *Router) UnsubscribeMembers(ctx context.Context, roomID int, userIDs ...int) {
	r.control(ctx, pubsub.KindUnsubscribe, roomID, userIDs)
}

func (r *Router) PresenceJoin(ctx context.Context, roomID, userID int) {
	room := roomID
	r.publish(ctx, pubsub.RoomTarget(roomID), models.Event{Type: models.EventJoin, SenderID: userID, RoomID: &room})
}

func (r *Router) PresenceLeave(ctx context.Context, roomID, userID int) {
	room := roomID
	r.publish(ctx, pubsub.RoomTarget(roomID), models.Event{Type: models.EventLeave, SenderID: userID, RoomID: &room})
}

// RoomDeleted tells the room's subscribers, then drops the channel everywhere.
func (r *Router) RoomDeleted(ctx context.Context, roomID int) {
	room := roomID
	r.publish(ctx, pubsub.RoomTarget(roomID), models.Event{Type: models.EventRoomDeleted, RoomID: &room})
	r.control(ctx, pubsub.KindDropRoom, roomID, nil)
	r.stream(ctx, observability.EventRoomDeleted, "room_deleted", map[string]interface{}{"room_id": roomID})
}

// BroadcastPresence announces a handshake or a disconnect to every session.
func (r *Router) BroadcastPresence(ctx context.Context, eventType models.EventType, userID int, username string) {
	r.publish(ctx, pubsub.PublicTarget(), models.Event{Type: eventType, SenderID: userID, SenderUsername: username})
}

// Typing relays a typing indicator to a user or a room channel.
func (r *Router) Typing(ctx context.Context, eventType models.EventType, fromID int, username string, receiverID, roomID *int) {
	event := models.Event{Type: eventType, SenderID: fromID, SenderUsername: username, ReceiverID: receiverID, RoomID: roomID}
	switch {
	case receiverID != nil:
		r.publish(ctx, pubsub.UserTarget(*receiverID), event)
	case roomID != nil:
		r.publish(ctx, pubsub.RoomTarget(*roomID), event)
	}
}

func (r *Router) publish(ctx context.Context, target pubsub.Target, event models.Event) {
	payload := encodeEvent(event)
	if payload == nil {
		return
	}
	env := pubsub.Envelope{Kind: pubsub.KindEvent, Target: target, Payload: payload}
	if err := r.bus.Publish(ctx, env); err != nil {
		log.Printf("delivery publish failed target=%s:%d event=%s: %v", target.Kind, target.ID, event.Type, err)
		observability.IncDelivery(string(target.Kind), "publish_failed")
	}
}

func (r *Router) control(ctx context.Context, kind pubsub.EnvelopeKind, roomID int, userIDs []int) {
	env := pubsub.Envelope{Kind: kind, Target: pubsub.RoomTarget(roomID), UserIDs: userIDs}
	if err := r.bus.Publish(ctx, env); err != nil {
		log.Printf("delivery control failed kind=%s room_id=%d: %v", kind, roomID, err)
	}
}

func (r *Router) stream(ctx context.Context, routingKey, name string, payload map[string]interface{}) {
	if err := observability.PublishEvent(ctx, routingKey, observability.NewEnvelope("domain_events", name, payload), nil); err != nil {
		log.Printf("event stream publish failed event=%s: %v", name, err)
	}
}

func (r *Router) dispatch(env pubsub.Envelope) {
	switch env.Kind {
	case pubsub.KindEvent:
		r.deliver(env.Target, env.Payload)
	case pubsub.KindSubscribe:
		for _, userID := range env.UserIDs {
			r.registry.SubscribeUser(userID, env.Target.ID)
		}
	case pubsub.KindUnsubscribe:
		for _, userID := range env.UserIDs {
			r.registry.UnsubscribeUser(userID, env.Target.ID)
		}
	case pubsub.KindDropRoom:
		r.registry.DropRoom(env.Target.ID)
	default:
		log.Printf("delivery: unknown envelope kind %q", env.Kind)
	}
}

func (r *Router) deliver(target pubsub.Target, payload json.RawMessage) {
	var sessions []*Session
	switch target.Kind {
	case pubsub.TargetUser:
		sessions = r.registry.SessionsFor(target.ID)
	case pubsub.TargetRoom:
		sessions = r.registry.RoomSessions(target.ID)
	case pubsub.TargetPublic:
		sessions = r.registry.All()
	}

	for _, s := range sessions {
		err := s.Send(payload)
		switch {
		case err == nil:
			observability.IncDelivery(string(target.Kind), observability.OutcomeDelivered)
		case errors.Is(err, ErrSlowConsumer):
			log.Printf("slow consumer: dropped frame session=%s user_id=%d", s.ID, s.UserID)
			observability.IncDelivery(string(target.Kind), observability.OutcomeDropped)
		default:
			observability.IncDelivery(string(target.Kind), observability.OutcomeClosed)
		}
	}
}

func conversationTargets(view models.MessageView) []pubsub.Target {
	if view.RoomID != nil {
		return []pubsub.Target{pubsub.RoomTarget(*view.RoomID)}
	}
	if view.ReceiverID == nil {
		return nil
	}
	return []pubsub.Target{pubsub.UserTarget(*view.ReceiverID), pubsub.UserTarget(view.SenderID)}
}
