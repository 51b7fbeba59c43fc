package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-core/internal/models"
)

const roomColumns = `r.id, r.name, r.description, r.avatar_url, r.room_type, r.created_by, r.is_private, r.max_members,
        r.current_member_count, r.last_message_at, r.private_key, r.created_at, r.updated_at`

// RoomRepo is a sqlx implementation of RoomRepository. Members and admins
// live in room_members and room_admins.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateRoom inserts the room and its membership atomically.
func (r *RoomRepo) CreateRoom(ctx context.Context, room models.Room) (created models.Room, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	room.CurrentMemberCount = len(room.Members)
	if err = tx.QueryRowxContext(ctx, `INSERT INTO rooms
        (name, description, avatar_url, room_type, created_by, is_private, max_members, current_member_count, last_message_at, private_key)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at, updated_at`,
		room.Name, room.Description, room.AvatarURL, room.RoomType, room.CreatedBy, room.IsPrivate,
		room.MaxMembers, room.CurrentMemberCount, room.LastMessageAt, room.PrivateKey).
		Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return models.Room{}, translate(err, "room not found")
	}
	if err = saveMembership(ctx, tx, room); err != nil {
		return models.Room{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	if err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms r WHERE r.id=$1`, roomID); err != nil {
		return models.Room{}, translate(err, "room not found")
	}
	rooms := []models.Room{room}
	if err := loadMembership(ctx, r.db, rooms); err != nil {
		return models.Room{}, err
	}
	return rooms[0], nil
}

// FindPrivateRoom looks up the PRIVATE room of the unordered pair a, b.
func (r *RoomRepo) FindPrivateRoom(ctx context.Context, a, b int) (models.Room, error) {
	var room models.Room
	if err := r.db.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms r WHERE r.private_key=$1`, models.PrivatePairKey(a, b)); err != nil {
		return models.Room{}, translate(err, "private room not found")
	}
	rooms := []models.Room{room}
	if err := loadMembership(ctx, r.db, rooms); err != nil {
		return models.Room{}, err
	}
	return rooms[0], nil
}

// MutateRoom locks the room row for the duration of fn.
func (r *RoomRepo) MutateRoom(ctx context.Context, roomID int, fn func(*models.Room) error) (updated models.Room, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var room models.Room
	if err = tx.GetContext(ctx, &room, `SELECT `+roomColumns+` FROM rooms r WHERE r.id=$1 FOR UPDATE`, roomID); err != nil {
		return models.Room{}, translate(err, "room not found")
	}
	rooms := []models.Room{room}
	if err = loadMembership(ctx, tx, rooms); err != nil {
		return models.Room{}, err
	}
	room = rooms[0]

	if err = fn(&room); err != nil {
		return models.Room{}, err
	}
	room.ID = roomID
	room.CurrentMemberCount = len(room.Members)

	if err = tx.QueryRowxContext(ctx, `UPDATE rooms SET name=$2, description=$3, avatar_url=$4, max_members=$5,
        current_member_count=$6, last_message_at=$7, updated_at=NOW()
        WHERE id=$1 RETURNING updated_at`,
		room.ID, room.Name, room.Description, room.AvatarURL, room.MaxMembers, room.CurrentMemberCount, room.LastMessageAt).
		Scan(&room.UpdatedAt); err != nil {
		return models.Room{}, translate(err, "room not found")
	}
	if err = saveMembership(ctx, tx, room); err != nil {
		return models.Room{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Room{}, err
	}
	return room, nil
}

// DeleteRoom removes the room; its members, admins and messages cascade.
func (r *RoomRepo) DeleteRoom(ctx context.Context, roomID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id=$1`, roomID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return translate(sql.ErrNoRows, "room not found")
	}
	return nil
}

func (r *RoomRepo) TouchLastMessage(ctx context.Context, roomID int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE rooms SET last_message_at=$2, updated_at=NOW() WHERE id=$1`, roomID, at)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// IsMember checks membership.
func (r *RoomRepo) IsMember(ctx context.Context, roomID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id=$1 AND user_id=$2)`, roomID, userID)
	return exists, err
}

// ListRoomsForUser returns the rooms of userID, most recently active first.
func (r *RoomRepo) ListRoomsForUser(ctx context.Context, userID int, p models.Page) (models.PageResult[models.Room], error) {
	return r.pagedRooms(ctx, p,
		`FROM rooms r INNER JOIN room_members rm ON rm.room_id = r.id WHERE rm.user_id=$1`,
		`ORDER BY r.last_message_at DESC NULLS LAST, r.updated_at DESC, r.id DESC`,
		userID)
}

// SearchPublicRooms matches non-private rooms by case-insensitive name substring.
func (r *RoomRepo) SearchPublicRooms(ctx context.Context, term string, p models.Page) (models.PageResult[models.Room], error) {
	return r.pagedRooms(ctx, p,
		`FROM rooms r WHERE r.is_private = FALSE AND r.room_type <> 'PRIVATE' AND r.name ILIKE '%' || $1 || '%'`,
		`ORDER BY r.name ASC, r.id ASC`,
		term)
}

// ListJoinableRooms returns public group rooms with free capacity that userID is not in.
func (r *RoomRepo) ListJoinableRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.Room], error) {
	return r.pagedRooms(ctx, p,
		`FROM rooms r WHERE r.room_type = 'GROUP' AND r.is_private = FALSE
            AND (r.max_members IS NULL OR r.current_member_count < r.max_members)
            AND NOT EXISTS (SELECT 1 FROM room_members rm WHERE rm.room_id = r.id AND rm.user_id=$1)`,
		`ORDER BY r.current_member_count DESC, r.created_at DESC, r.id DESC`,
		userID)
}

func (r *RoomRepo) RoomIDsForUser(ctx context.Context, userID int) ([]int, error) {
	ids := []int{}
	err := r.db.SelectContext(ctx, &ids, `SELECT room_id FROM room_members WHERE user_id=$1 ORDER BY room_id`, userID)
	return ids, err
}

// pagedRooms runs a count and a windowed select over the same FROM/WHERE
// clause. The clause uses $1 as its only parameter.
func (r *RoomRepo) pagedRooms(ctx context.Context, p models.Page, from, order string, arg interface{}) (models.PageResult[models.Room], error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) `+from, arg); err != nil {
		return models.PageResult[models.Room]{}, err
	}
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, `SELECT `+roomColumns+` `+from+` `+order+` LIMIT $2 OFFSET $3`, arg, p.Size, p.Offset()); err != nil {
		return models.PageResult[models.Room]{}, err
	}
	if err := loadMembership(ctx, r.db, rooms); err != nil {
		return models.PageResult[models.Room]{}, err
	}
	return models.NewPageResult(rooms, p, total), nil
}

type membershipRow struct {
	RoomID  int  `db:"room_id"`
	UserID  int  `db:"user_id"`
	IsAdmin bool `db:"is_admin"`
}

func loadMembership(ctx context.Context, q sqlx.QueryerContext, rooms []models.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	ids := make([]int, len(rooms))
	for i, room := range rooms {
		ids[i] = room.ID
	}
	var rows []membershipRow
	err := sqlx.SelectContext(ctx, q, &rows, `SELECT m.room_id, m.user_id, (a.user_id IS NOT NULL) AS is_admin
        FROM room_members m
        LEFT JOIN room_admins a ON a.room_id = m.room_id AND a.user_id = m.user_id
        WHERE m.room_id = ANY($1)`, pq.Array(toInt64s(ids)))
	if err != nil {
		return err
	}

	members := make(map[int][]int, len(rooms))
	admins := make(map[int][]int, len(rooms))
	for _, row := range rows {
		members[row.RoomID] = append(members[row.RoomID], row.UserID)
		if row.IsAdmin {
			admins[row.RoomID] = append(admins[row.RoomID], row.UserID)
		}
	}
	for i := range rooms {
		rooms[i].SetMembers(members[rooms[i].ID], admins[rooms[i].ID])
	}
	return nil
}

// saveMembership makes room_members and room_admins match the aggregate.
func saveMembership(ctx context.Context, tx *sqlx.Tx, room models.Room) error {
	members := pq.Array(toInt64s(room.Members))
	admins := pq.Array(toInt64s(room.Admins))
	stmts := []struct {
		query string
		ids   interface{}
	}{
		{`DELETE FROM room_admins WHERE room_id=$1 AND NOT (user_id = ANY($2::int[]))`, admins},
		{`DELETE FROM room_members WHERE room_id=$1 AND NOT (user_id = ANY($2::int[]))`, members},
		{`INSERT INTO room_members (room_id, user_id) SELECT $1, unnest($2::int[]) ON CONFLICT DO NOTHING`, members},
		{`INSERT INTO room_admins (room_id, user_id) SELECT $1, unnest($2::int[]) ON CONFLICT DO NOTHING`, admins},
	}
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.query, room.ID, s.ids); err != nil {
			return err
		}
	}
	return nil
}
