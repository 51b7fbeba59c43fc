package repositories

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"chat-core/internal/models"
)

const messageViewColumns = `m.id, m.content, m.sender_id, m.receiver_id, m.room_id, m.message_type, m.is_read, m.created_at, m.updated_at,
        COALESCE(su.username, '') AS sender_username, COALESCE(su.avatar_url, '') AS sender_avatar,
        COALESCE(ru.username, '') AS receiver_username, COALESCE(ru.avatar_url, '') AS receiver_avatar`

const messageViewJoins = `LEFT JOIN users su ON su.id = m.sender_id
        LEFT JOIN users ru ON ru.id = m.receiver_id`

const directThreadFilter = `m.room_id IS NULL AND ((m.sender_id=$1 AND m.receiver_id=$2) OR (m.sender_id=$2 AND m.receiver_id=$1))`

// MessageRepo is a sqlx-backed MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores msg and returns it with display fields joined in.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.MessageView, error) {
	var id int
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (content, sender_id, receiver_id, room_id, message_type, is_read)
        VALUES ($1, $2, $3, $4, $5, FALSE) RETURNING id`,
		msg.Content, msg.SenderID, msg.ReceiverID, msg.RoomID, msg.MessageType).Scan(&id)
	if err != nil {
		return models.MessageView{}, translate(err, "room not found")
	}
	return r.GetMessage(ctx, id)
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.MessageView, error) {
	var view models.MessageView
	err := r.db.GetContext(ctx, &view, `SELECT `+messageViewColumns+` FROM messages m `+messageViewJoins+` WHERE m.id=$1`, messageID)
	if err != nil {
		return models.MessageView{}, translate(err, "message not found")
	}
	return view, nil
}

func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return translate(sql.ErrNoRows, "message not found")
	}
	return nil
}

// ThreadBetween returns the direct messages exchanged by a and b.
func (r *MessageRepo) ThreadBetween(ctx context.Context, a, b int, p models.Page) (models.PageResult[models.MessageView], error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages m WHERE `+directThreadFilter, a, b); err != nil {
		return models.PageResult[models.MessageView]{}, err
	}
	var items []models.MessageView
	err := r.db.SelectContext(ctx, &items, `SELECT `+messageViewColumns+` FROM messages m `+messageViewJoins+`
        WHERE `+directThreadFilter+`
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT $3 OFFSET $4`, a, b, p.Size, p.Offset())
	if err != nil {
		return models.PageResult[models.MessageView]{}, err
	}
	return models.NewPageResult(items, p, total), nil
}

func (r *MessageRepo) ThreadInRoom(ctx context.Context, roomID int, p models.Page) (models.PageResult[models.MessageView], error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE room_id=$1`, roomID); err != nil {
		return models.PageResult[models.MessageView]{}, err
	}
	var items []models.MessageView
	err := r.db.SelectContext(ctx, &items, `SELECT `+messageViewColumns+` FROM messages m `+messageViewJoins+`
        WHERE m.room_id=$1
        ORDER BY m.created_at DESC, m.id DESC
        LIMIT $2 OFFSET $3`, roomID, p.Size, p.Offset())
	if err != nil {
		return models.PageResult[models.MessageView]{}, err
	}
	return models.NewPageResult(items, p, total), nil
}

func (r *MessageRepo) CountUnread(ctx context.Context, receiverID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE receiver_id=$1 AND is_read = FALSE`, receiverID)
	return count, err
}

func (r *MessageRepo) CountUnreadFrom(ctx context.Context, receiverID, senderID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE receiver_id=$1 AND sender_id=$2 AND is_read = FALSE`, receiverID, senderID)
	return count, err
}

func (r *MessageRepo) ListUnread(ctx context.Context, receiverID int) ([]models.MessageView, error) {
	items := []models.MessageView{}
	err := r.db.SelectContext(ctx, &items, `SELECT `+messageViewColumns+` FROM messages m `+messageViewJoins+`
        WHERE m.receiver_id=$1 AND m.is_read = FALSE
        ORDER BY m.created_at DESC, m.id DESC`, receiverID)
	return items, err
}

// LatestPerConversation returns the newest message of every direct peer of
// userID and of every room userID currently belongs to.
func (r *MessageRepo) LatestPerConversation(ctx context.Context, userID int) ([]models.MessageView, error) {
	query := `WITH convo AS (
            SELECT m.*,
                CASE
                    WHEN m.room_id IS NOT NULL THEN 'r' || m.room_id
                    WHEN m.sender_id = $1 THEN 'u' || m.receiver_id
                    ELSE 'u' || m.sender_id
                END AS convo_key
            FROM messages m
            WHERE (m.room_id IS NULL AND (m.sender_id=$1 OR m.receiver_id=$1))
               OR m.room_id IN (SELECT room_id FROM room_members WHERE user_id=$1)
        ), latest AS (
            SELECT DISTINCT ON (convo_key) id, content, sender_id, receiver_id, room_id, message_type, is_read, created_at, updated_at
            FROM convo
            ORDER BY convo_key, created_at DESC, id DESC
        )
        SELECT ` + messageViewColumns + ` FROM latest m ` + messageViewJoins + `
        ORDER BY m.created_at DESC, m.id DESC`
	items := []models.MessageView{}
	err := r.db.SelectContext(ctx, &items, query, userID)
	return items, err
}

// MarkRead flags every unread message from senderID to receiverID as read.
func (r *MessageRepo) MarkRead(ctx context.Context, receiverID, senderID int) (int, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE, updated_at = NOW()
        WHERE receiver_id=$1 AND sender_id=$2 AND is_read = FALSE`, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}
