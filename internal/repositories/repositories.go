package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
)

// MessageRepository persists messages and answers conversation queries.
// Listings are newest first by (created_at, id).
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.MessageView, error)
	GetMessage(ctx context.Context, messageID int) (models.MessageView, error)
	DeleteMessage(ctx context.Context, messageID int) error
	ThreadBetween(ctx context.Context, a, b int, p models.Page) (models.PageResult[models.MessageView], error)
	ThreadInRoom(ctx context.Context, roomID int, p models.Page) (models.PageResult[models.MessageView], error)
	CountUnread(ctx context.Context, receiverID int) (int, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID int) (int, error)
	ListUnread(ctx context.Context, receiverID int) ([]models.MessageView, error)
	LatestPerConversation(ctx context.Context, userID int) ([]models.MessageView, error)
	MarkRead(ctx context.Context, receiverID, senderID int) (int, error)
}

// RoomRepository persists rooms with their member and admin sets.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room models.Room) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	FindPrivateRoom(ctx context.Context, a, b int) (models.Room, error)
	// MutateRoom runs fn on the current room while holding the room's lock and
	// saves the result. Nothing is saved when fn returns an error.
	MutateRoom(ctx context.Context, roomID int, fn func(*models.Room) error) (models.Room, error)
	DeleteRoom(ctx context.Context, roomID int) error
	// TouchLastMessage reports false when the room does not exist.
	TouchLastMessage(ctx context.Context, roomID int, at time.Time) (bool, error)
	IsMember(ctx context.Context, roomID, userID int) (bool, error)
	ListRoomsForUser(ctx context.Context, userID int, p models.Page) (models.PageResult[models.Room], error)
	SearchPublicRooms(ctx context.Context, term string, p models.Page) (models.PageResult[models.Room], error)
	ListJoinableRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.Room], error)
	RoomIDsForUser(ctx context.Context, userID int) ([]int, error)
}

// UserRepository is the local read model of externally owned profiles.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	// MissingUsers returns the ids among userIDs that have no profile.
	MissingUsers(ctx context.Context, userIDs []int) ([]int, error)
	UpsertUser(ctx context.Context, user models.User) error
}

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

var conflictMessages = map[string]string{
	"rooms_private_key_key": "private room already exists",
	"rooms_public_name_key": "room name already taken",
}

// translate maps driver errors onto apperr kinds.
func translate(err error, notFound string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(notFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			if msg, ok := conflictMessages[pqErr.Constraint]; ok {
				return apperr.Conflict(msg)
			}
			return apperr.Conflict("duplicate record")
		case foreignKeyViolation:
			return apperr.NotFound(notFound)
		}
	}
	return err
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
