// Package services holds the membership and conversation rules of the chat
// core. Both services persist first and report to a notifier afterwards; a
// notifier failure never fails the operation.
package services

import (
	"context"

	"chat-core/internal/models"
)

// RoomNotifier keeps live sessions in step with room membership.
type RoomNotifier interface {
	SubscribeMembers(ctx context.Context, roomID int, userIDs ...int)
	UnsubscribeMembers(ctx context.Context, roomID int, userIDs ...int)
	PresenceJoin(ctx context.Context, roomID, userID int)
	PresenceLeave(ctx context.Context, roomID, userID int)
	RoomDeleted(ctx context.Context, roomID int)
}

// MessageNotifier pushes message activity to live sessions.
type MessageNotifier interface {
	MessageCreated(ctx context.Context, view models.MessageView)
	MessageDeleted(ctx context.Context, view models.MessageView)
	MessagesRead(ctx context.Context, receiverID, senderID, count int)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) SubscribeMembers(context.Context, int, ...int) {}
func (NopNotifier) UnsubscribeMembers(context.Context, int, ...int) {}
func (NopNotifier) PresenceJoin(context.Context, int, int) {}
func (NopNotifier) PresenceLeave(context.Context, int, int) {}
func (NopNotifier) RoomDeleted(context.Context, int) {}
func (NopNotifier) MessageCreated(context.Context, models.MessageView) {}
func (NopNotifier) MessageDeleted(context.Context, models.MessageView) {}
func (NopNotifier) MessagesRead(context.Context, int, int, int) {}
