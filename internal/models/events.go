package models

// EventType tags every frame pushed over or received from a live connection.
type EventType string

const (
	EventChat           EventType = "chat"
	EventJoin           EventType = "join"
	EventLeave          EventType = "leave"
	EventTyping         EventType = "typing"
	EventStopTyping     EventType = "stop_typing"
	EventRead           EventType = "read"
	EventDelivered      EventType = "delivered"
	EventMessageDeleted EventType = "message_deleted"
	EventRoomDeleted    EventType = "room_deleted"
	EventError          EventType = "error"
	EventPong           EventType = "pong"

	// inbound only
	EventSubscribe   EventType = "subscribe"
	EventUnsubscribe EventType = "unsubscribe"
	EventPing        EventType = "ping"
)

// Event is an outbound frame. None of these are persisted.
type Event struct {
	Type           EventType    `json:"type"`
	Message        *MessageView `json:"message,omitempty"`
	MessageID      int          `json:"message_id,omitempty"`
	SenderID       int          `json:"sender_id,omitempty"`
	SenderUsername string       `json:"sender_username,omitempty"`
	ReceiverID     *int         `json:"receiver_id,omitempty"`
	RoomID         *int         `json:"room_id,omitempty"`
	Content        string       `json:"content,omitempty"`
	Count          int          `json:"count,omitempty"`
}

// InboundEvent is a frame sent by a client. The sender is always the session's user.
type InboundEvent struct {
	Type        EventType   `json:"type"`
	Content     string      `json:"content,omitempty"`
	ReceiverID  *int        `json:"receiver_id,omitempty"`
	RoomID      *int        `json:"room_id,omitempty"`
	SenderID    *int        `json:"sender_id,omitempty"`
	MessageType MessageType `json:"message_type,omitempty"`
	Username    string      `json:"username,omitempty"`
}
