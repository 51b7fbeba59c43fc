package memory

import (
	"context"
	"fmt"
	"sort"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
)

func (s *Store) CreateMessage(_ context.Context, msg models.Message) (models.MessageView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.RoomID != nil {
		if _, ok := s.rooms[*msg.RoomID]; !ok {
			return models.MessageView{}, apperr.NotFound("room not found")
		}
	}
	s.lastMsg++
	now := s.now()
	msg.ID = s.lastMsg
	msg.IsRead = false
	msg.CreatedAt = now
	msg.UpdatedAt = now
	s.messages[msg.ID] = msg
	return s.viewLocked(msg), nil
}

func (s *Store) GetMessage(_ context.Context, messageID int) (models.MessageView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[messageID]
	if !ok {
		return models.MessageView{}, apperr.NotFound("message not found")
	}
	return s.viewLocked(msg), nil
}

func (s *Store) DeleteMessage(_ context.Context, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[messageID]; !ok {
		return apperr.NotFound("message not found")
	}
	delete(s.messages, messageID)
	return nil
}

func (s *Store) ThreadBetween(_ context.Context, a, b int, p models.Page) (models.PageResult[models.MessageView], error) {
	return models.Slice(s.selectMessages(func(m models.Message) bool {
		if !m.IsDirect() {
			return false
		}
		return (m.SenderID == a && *m.ReceiverID == b) || (m.SenderID == b && *m.ReceiverID == a)
	}), p), nil
}

func (s *Store) ThreadInRoom(_ context.Context, roomID int, p models.Page) (models.PageResult[models.MessageView], error) {
	return models.Slice(s.selectMessages(func(m models.Message) bool {
		return m.RoomID != nil && *m.RoomID == roomID
	}), p), nil
}

func (s *Store) CountUnread(ctx context.Context, receiverID int) (int, error) {
	unread, err := s.ListUnread(ctx, receiverID)
	return len(unread), err
}

func (s *Store) CountUnreadFrom(_ context.Context, receiverID, senderID int) (int, error) {
	return len(s.selectMessages(func(m models.Message) bool {
		return unreadBy(m, receiverID) && m.SenderID == senderID
	})), nil
}

func (s *Store) ListUnread(_ context.Context, receiverID int) ([]models.MessageView, error) {
	return s.selectMessages(func(m models.Message) bool {
		return unreadBy(m, receiverID)
	}), nil
}

func (s *Store) LatestPerConversation(_ context.Context, userID int) ([]models.MessageView, error) {
	s.mu.RLock()
	latest := make(map[string]models.Message)
	for _, m := range s.messages {
		var key string
		switch {
		case m.RoomID != nil:
			room, ok := s.rooms[*m.RoomID]
			if !ok || !room.IsMember(userID) {
				continue
			}
			key = fmt.Sprintf("r%d", *m.RoomID)
		case m.SenderID == userID:
			key = fmt.Sprintf("u%d", *m.ReceiverID)
		case m.ReceiverID != nil && *m.ReceiverID == userID:
			key = fmt.Sprintf("u%d", m.SenderID)
		default:
			continue
		}
		if cur, ok := latest[key]; !ok || models.Newer(m, cur) {
			latest[key] = m
		}
	}
	views := make([]models.MessageView, 0, len(latest))
	for _, m := range latest {
		views = append(views, s.viewLocked(m))
	}
	s.mu.RUnlock()

	sortNewestFirst(views)
	return views, nil
}

func (s *Store) MarkRead(_ context.Context, receiverID, senderID int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := 0
	now := s.now()
	for id, m := range s.messages {
		if unreadBy(m, receiverID) && m.SenderID == senderID {
			m.IsRead = true
			m.UpdatedAt = now
			s.messages[id] = m
			updated++
		}
	}
	return updated, nil
}

func unreadBy(m models.Message, receiverID int) bool {
	return m.ReceiverID != nil && *m.ReceiverID == receiverID && !m.IsRead
}

func (s *Store) selectMessages(keep func(models.Message) bool) []models.MessageView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var views []models.MessageView
	for _, m := range s.messages {
		if keep(m) {
			views = append(views, s.viewLocked(m))
		}
	}
	sortNewestFirst(views)
	return views
}

func (s *Store) viewLocked(m models.Message) models.MessageView {
	view := models.MessageView{Message: m}
	if u, ok := s.users[m.SenderID]; ok {
		view.SenderUsername = u.Username
		view.SenderAvatar = u.AvatarURL
	}
	if m.ReceiverID != nil {
		if u, ok := s.users[*m.ReceiverID]; ok {
			view.ReceiverUsername = u.Username
			view.ReceiverAvatar = u.AvatarURL
		}
	}
	return view
}

func sortNewestFirst(views []models.MessageView) {
	sort.Slice(views, func(i, j int) bool {
		return models.Newer(views[i].Message, views[j].Message)
	})
}
