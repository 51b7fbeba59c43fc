package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

const defaultDeliveryTimeout = 5 * time.Second

// RoomActivity is the part of the membership manager the message path needs.
type RoomActivity interface {
	GetOrCreatePrivateRoom(ctx context.Context, a, b int) (models.Room, error)
	TouchLastMessageTime(ctx context.Context, roomID int) error
}

// ConversationService stores messages and answers conversation queries.
type ConversationService struct {
	messages repositories.MessageRepository
	rooms    repositories.RoomRepository
	users    repositories.UserRepository
	activity RoomActivity
	notifier MessageNotifier
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewConversationService(messages repositories.MessageRepository, rooms repositories.RoomRepository, users repositories.UserRepository, activity RoomActivity, notifier MessageNotifier, deliveryTimeout time.Duration) *ConversationService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	return &ConversationService{
		messages: messages,
		rooms:    rooms,
		users:    users,
		activity: activity,
		notifier: notifier,
		timeout:  deliveryTimeout,
	}
}

// CreateMessage validates and persists a message from senderID. Delivery and
// room bookkeeping happen afterwards in the background.
func (s *ConversationService) CreateMessage(ctx context.Context, in models.NewMessage, senderID int) (models.MessageView, error) {
	if strings.TrimSpace(in.Content) == "" {
		return models.MessageView{}, apperr.InvalidInput("content is required")
	}
	if in.MessageType == "" {
		in.MessageType = models.MessageTypeText
	}
	if !in.MessageType.Valid() {
		return models.MessageView{}, apperr.InvalidInput("unknown message type")
	}
	if (in.ReceiverID == nil) == (in.RoomID == nil) {
		return models.MessageView{}, apperr.InvalidInput("exactly one of receiver_id or room_id is required")
	}

	if in.ReceiverID != nil {
		if *in.ReceiverID == senderID {
			return models.MessageView{}, apperr.InvalidInput("cannot send a message to yourself")
		}
		if _, err := s.users.GetUser(ctx, *in.ReceiverID); err != nil {
			return models.MessageView{}, err
		}
	} else {
		if err := s.requireMember(ctx, *in.RoomID, senderID); err != nil {
			return models.MessageView{}, err
		}
	}

	view, err := s.messages.CreateMessage(ctx, models.Message{
		Content:     in.Content,
		SenderID:    senderID,
		ReceiverID:  in.ReceiverID,
		RoomID:      in.RoomID,
		MessageType: in.MessageType,
	})
	if err != nil {
		return models.MessageView{}, err
	}

	s.background(func(ctx context.Context) {
		s.notifier.MessageCreated(ctx, view)
		s.recordActivity(ctx, view)
	})
	return view, nil
}

func (s *ConversationService) recordActivity(ctx context.Context, view models.MessageView) {
	if s.activity == nil {
		return
	}
	roomID := 0
	if view.RoomID != nil {
		roomID = *view.RoomID
	} else {
		room, err := s.activity.GetOrCreatePrivateRoom(ctx, view.SenderID, *view.ReceiverID)
		if err != nil {
			log.Printf("private room for message %d: %v", view.ID, err)
			return
		}
		roomID = room.ID
	}
	if err := s.activity.TouchLastMessageTime(ctx, roomID); err != nil {
		log.Printf("record activity for message %d: %v", view.ID, err)
	}
}

// DeleteMessage hard-deletes a message. Only its sender may delete it.
func (s *ConversationService) DeleteMessage(ctx context.Context, messageID, requesterID int) error {
	view, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if view.SenderID != requesterID {
		return apperr.Forbidden("only the sender can delete a message")
	}
	if err := s.messages.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	s.background(func(ctx context.Context) {
		s.notifier.MessageDeleted(ctx, view)
	})
	return nil
}

// ThreadBetween pages through the direct messages of a and b, newest first.
func (s *ConversationService) ThreadBetween(ctx context.Context, a, b int, p models.Page) (models.PageResult[models.MessageView], error) {
	return s.messages.ThreadBetween(ctx, a, b, p)
}

// ThreadInRoom pages through a room's messages, newest first. Members only.
func (s *ConversationService) ThreadInRoom(ctx context.Context, roomID, requesterID int, p models.Page) (models.PageResult[models.MessageView], error) {
	if err := s.requireMember(ctx, roomID, requesterID); err != nil {
		return models.PageResult[models.MessageView]{}, err
	}
	return s.messages.ThreadInRoom(ctx, roomID, p)
}

func (s *ConversationService) UnreadCount(ctx context.Context, userID int) (int, error) {
	return s.messages.CountUnread(ctx, userID)
}

func (s *ConversationService) UnreadMessages(ctx context.Context, userID int) ([]models.MessageView, error) {
	return s.messages.ListUnread(ctx, userID)
}

// LatestPerConversation returns one row per direct peer and per joined room.
func (s *ConversationService) LatestPerConversation(ctx context.Context, userID int) ([]models.MessageView, error) {
	return s.messages.LatestPerConversation(ctx, userID)
}

// MarkRead flags the direct messages from senderID to receiverID as read and
// returns how many changed. A receipt goes to the sender when any did.
func (s *ConversationService) MarkRead(ctx context.Context, receiverID, senderID int) (int, error) {
	n, err := s.messages.MarkRead(ctx, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.background(func(ctx context.Context) {
			s.notifier.MessagesRead(ctx, receiverID, senderID, n)
		})
	}
	return n, nil
}

// Wait blocks until background delivery work has finished.
func (s *ConversationService) Wait() {
	s.wg.Wait()
}

// Shutdown stops accepting background work and waits for what is running.
// Writes still succeed afterwards; only their notifications are skipped.
func (s *ConversationService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// background runs fn detached from the caller's context, bounded by the
// delivery timeout. fn must log its own failures.
func (s *ConversationService) background(fn func(ctx context.Context)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.Printf("background delivery skipped: shutting down")
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (s *ConversationService) requireMember(ctx context.Context, roomID, userID int) error {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsMember(userID) {
		return apperr.Forbidden("not a member of this room")
	}
	return nil
}
