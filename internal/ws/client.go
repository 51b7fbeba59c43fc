package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/observability"
)

// client pumps frames between one websocket connection and its session.
type client struct {
	conn    *websocket.Conn
	session *Session
	handler *Handler
}

// writePump is the only writer on the connection. It exits when the session
// is closed or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.session.Messages():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("websocket write error session=%s: %v", c.session.ID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles inbound frames until the connection fails and returns the
// close reason.
func (c *client) readPump(ctx context.Context) string {
	defer c.conn.Close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("lifecycle", "ws_error")
			}
			return err.Error()
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var event models.InboundEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.handler.sendTo(c.session, errorEvent(apperr.InvalidInput("malformed frame")))
			continue
		}
		observability.IncWSEvent("inbound", string(event.Type))
		c.handle(ctx, event)
	}
}

func (c *client) handle(ctx context.Context, event models.InboundEvent) {
	h, s := c.handler, c.session

	switch event.Type {
	case models.EventChat:
		view, err := h.messages.CreateMessage(ctx, models.NewMessage{
			Content:     event.Content,
			ReceiverID:  event.ReceiverID,
			RoomID:      event.RoomID,
			MessageType: event.MessageType,
		}, s.UserID)
		if err != nil {
			h.sendTo(s, errorEvent(err))
			return
		}
		h.sendTo(s, models.Event{Type: models.EventDelivered, MessageID: view.ID})

	case models.EventJoin:
		username := event.Username
		if username == "" {
			username = s.Username()
		}
		if s.MarkJoined(username) {
			_, name := s.Joined()
			h.router.BroadcastPresence(ctx, models.EventJoin, s.UserID, name)
		}

	case models.EventTyping, models.EventStopTyping:
		if event.ReceiverID == nil && event.RoomID == nil {
			h.sendTo(s, errorEvent(apperr.InvalidInput("receiver_id or room_id is required")))
			return
		}
		if event.ReceiverID == nil {
			if err := c.requireMember(ctx, *event.RoomID); err != nil {
				h.sendTo(s, errorEvent(err))
				return
			}
		}
		h.router.Typing(ctx, event.Type, s.UserID, s.Username(), event.ReceiverID, event.RoomID)

	case models.EventRead:
		if event.SenderID == nil {
			h.sendTo(s, errorEvent(apperr.InvalidInput("sender_id is required")))
			return
		}
		if _, err := h.messages.MarkRead(ctx, s.UserID, *event.SenderID); err != nil {
			h.sendTo(s, errorEvent(err))
		}

	case models.EventSubscribe:
		if event.RoomID == nil {
			h.sendTo(s, errorEvent(apperr.InvalidInput("room_id is required")))
			return
		}
		if err := c.requireMember(ctx, *event.RoomID); err != nil {
			h.sendTo(s, errorEvent(err))
			return
		}
		h.registry.Subscribe(s, *event.RoomID)

	case models.EventUnsubscribe:
		if event.RoomID != nil {
			h.registry.Unsubscribe(s, *event.RoomID)
		}

	case models.EventPing:
		h.sendTo(s, models.Event{Type: models.EventPong})

	default:
		log.Printf("ws: unknown event type %q from user_id=%d", event.Type, s.UserID)
		h.sendTo(s, errorEvent(apperr.InvalidInput("unknown event type")))
	}
}

func (c *client) requireMember(ctx context.Context, roomID int) error {
	ok, err := c.handler.rooms.IsMember(ctx, roomID, c.session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not a member of this room")
	}
	return nil
}
