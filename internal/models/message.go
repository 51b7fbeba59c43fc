package models

import "time"

// MessageType classifies message content.
type MessageType string

const (
	MessageTypeText  MessageType = "TEXT"
	MessageTypeImage MessageType = "IMAGE"
	MessageTypeFile  MessageType = "FILE"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// Message is either a direct message (ReceiverID set) or a room message (RoomID set).
type Message struct {
	ID          int         `db:"id" json:"id"`
	Content     string      `db:"content" json:"content"`
	SenderID    int         `db:"sender_id" json:"sender_id"`
	ReceiverID  *int        `db:"receiver_id" json:"receiver_id"`
	RoomID      *int        `db:"room_id" json:"room_id"`
	MessageType MessageType `db:"message_type" json:"message_type"`
	IsRead      bool        `db:"is_read" json:"is_read"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// IsDirect reports whether the message targets a single user.
func (m Message) IsDirect() bool {
	return m.RoomID == nil && m.ReceiverID != nil
}

// MessageView is a message joined with the display fields of its participants.
type MessageView struct {
	Message
	SenderUsername   string `db:"sender_username" json:"sender_username,omitempty"`
	SenderAvatar     string `db:"sender_avatar" json:"sender_avatar,omitempty"`
	ReceiverUsername string `db:"receiver_username" json:"receiver_username,omitempty"`
	ReceiverAvatar   string `db:"receiver_avatar" json:"receiver_avatar,omitempty"`
}

// NewMessage is the write-path input for a message.
type NewMessage struct {
	Content     string      `json:"content"`
	ReceiverID  *int        `json:"receiver_id"`
	RoomID      *int        `json:"room_id"`
	MessageType MessageType `json:"message_type"`
}

// Newer reports whether a sorts before b in a newest-first thread.
func Newer(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
