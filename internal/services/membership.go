package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
	"chat-core/internal/repositories"
)

// privateRoomTimeout bounds a shared private room lookup once it is detached
// from the caller that started it.
const privateRoomTimeout = 10 * time.Second

// MembershipManager owns room creation and every membership change. All
// changes to an existing room go through RoomRepository.MutateRoom, so two
// writers on the same room never interleave.
type MembershipManager struct {
	rooms    repositories.RoomRepository
	users    repositories.UserRepository
	messages repositories.MessageRepository
	notifier RoomNotifier
	pairs    singleflight.Group
	now      func() time.Time
}

func NewMembershipManager(rooms repositories.RoomRepository, users repositories.UserRepository, messages repositories.MessageRepository, notifier RoomNotifier) *MembershipManager {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &MembershipManager{
		rooms:    rooms,
		users:    users,
		messages: messages,
		notifier: notifier,
		now:      time.Now,
	}
}

// CreateRoom creates a GROUP or CHANNEL room with creatorID as its only admin.
func (m *MembershipManager) CreateRoom(ctx context.Context, spec models.NewRoomSpec, creatorID int) (models.Room, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return models.Room{}, apperr.InvalidInput("room name is required")
	}
	if spec.RoomType == "" {
		spec.RoomType = models.RoomTypeGroup
	}
	switch spec.RoomType {
	case models.RoomTypeGroup, models.RoomTypeChannel:
	case models.RoomTypePrivate:
		return models.Room{}, apperr.InvalidInput("private rooms are created per user pair")
	default:
		return models.Room{}, apperr.InvalidInput("unknown room type")
	}
	if spec.MaxMembers != nil && *spec.MaxMembers < 1 {
		return models.Room{}, apperr.InvalidInput("max_members must be at least 1")
	}

	room := models.NewRoom(name, spec.RoomType, creatorID)
	room.Description = spec.Description
	room.AvatarURL = spec.AvatarURL
	room.IsPrivate = spec.IsPrivate
	room.MaxMembers = spec.MaxMembers

	var invited []int
	for _, id := range spec.MemberIDs {
		if id != creatorID && room.AddMember(id) {
			invited = append(invited, id)
		}
	}
	if room.MaxMembers != nil && len(room.Members) > *room.MaxMembers {
		return models.Room{}, apperr.InvalidInput("member count exceeds max_members")
	}
	if err := m.requireUsers(ctx, invited...); err != nil {
		return models.Room{}, err
	}

	created, err := m.rooms.CreateRoom(ctx, *room)
	if err != nil {
		return models.Room{}, err
	}
	m.notifier.SubscribeMembers(ctx, created.ID, created.Members...)
	return created, nil
}

// GetOrCreatePrivateRoom returns the PRIVATE room of the pair, creating it on
// first use. Concurrent callers for the same pair in this process share one
// lookup; callers in other processes are settled by the unique pair key.
func (m *MembershipManager) GetOrCreatePrivateRoom(ctx context.Context, a, b int) (models.Room, error) {
	if a == b {
		return models.Room{}, apperr.InvalidInput("cannot open a private room with yourself")
	}
	if err := m.requireUsers(ctx, a, b); err != nil {
		return models.Room{}, err
	}

	// The shared lookup must not die with whichever caller started it.
	ch := m.pairs.DoChan(models.PrivatePairKey(a, b), func() (interface{}, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), privateRoomTimeout)
		defer cancel()
		return m.getOrCreatePrivateRoom(shared, a, b)
	})
	select {
	case <-ctx.Done():
		return models.Room{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.Room{}, res.Err
		}
		room := res.Val.(models.Room)
		return *room.Clone(), nil
	}
}

func (m *MembershipManager) getOrCreatePrivateRoom(ctx context.Context, a, b int) (models.Room, error) {
	room, err := m.rooms.FindPrivateRoom(ctx, a, b)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return models.Room{}, err
	}

	room, err = m.rooms.CreateRoom(ctx, *models.NewPrivateRoom(a, b))
	if errors.Is(err, apperr.ErrConflict) {
		// another instance won the insert
		return m.rooms.FindPrivateRoom(ctx, a, b)
	}
	if err != nil {
		return models.Room{}, err
	}
	log.Printf("private room created id=%d users=%d,%d", room.ID, a, b)
	m.notifier.SubscribeMembers(ctx, room.ID, room.Members...)
	return room, nil
}

// JoinRoom adds userID to a public room.
func (m *MembershipManager) JoinRoom(ctx context.Context, roomID, userID int) (models.Room, error) {
	room, err := m.rooms.MutateRoom(ctx, roomID, func(r *models.Room) error {
		if r.IsPrivate || isPrivate(r) {
			return apperr.Forbidden("cannot join a private room")
		}
		if r.IsMember(userID) {
			return apperr.Conflict("already a member")
		}
		if r.IsFull() {
			return apperr.ResourceExhausted("room is full")
		}
		r.AddMember(userID)
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	m.notifier.SubscribeMembers(ctx, roomID, userID)
	m.notifier.PresenceJoin(ctx, roomID, userID)
	return room, nil
}

// LeaveRoom removes userID from the room. The creator cannot leave.
func (m *MembershipManager) LeaveRoom(ctx context.Context, roomID, userID int) (models.Room, error) {
	room, err := m.rooms.MutateRoom(ctx, roomID, func(r *models.Room) error {
		if isPrivate(r) {
			return apperr.Forbidden("cannot leave a private room")
		}
		if !r.IsMember(userID) {
			return apperr.Forbidden("not a member of this room")
		}
		if r.IsCreator(userID) {
			return apperr.Forbidden("room creator cannot leave the room")
		}
		r.RemoveMember(userID)
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	m.notifier.PresenceLeave(ctx, roomID, userID)
	m.notifier.UnsubscribeMembers(ctx, roomID, userID)
	return room, nil
}

// AddMember lets an admin add targetID to the room.
func (m *MembershipManager) AddMember(ctx context.Context, roomID, targetID, actingAdminID int) (models.Room, error) {
	room, err := m.rooms.MutateRoom(ctx, roomID, func(r *models.Room) error {
		if !r.IsAdmin(actingAdminID) {
			return apperr.Forbidden("only admins can add members")
		}
		if isPrivate(r) {
			return apperr.Forbidden("cannot add members to a private room")
		}
		if err := m.requireUsers(ctx, targetID); err != nil {
			return err
		}
		if r.IsMember(targetID) {
			return apperr.Conflict("user is already a member")
		}
		if r.IsFull() {
			return apperr.ResourceExhausted("room is full")
		}
		r.AddMember(targetID)
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	m.notifier.SubscribeMembers(ctx, roomID, targetID)
	m.notifier.PresenceJoin(ctx, roomID, targetID)
	return room, nil
}

// RemoveMember lets an admin remove targetID. Admins leave through LeaveRoom.
func (m *MembershipManager) RemoveMember(ctx context.Context, roomID, targetID, actingAdminID int) (models.Room, error) {
	room, err := m.rooms.MutateRoom(ctx, roomID, func(r *models.Room) error {
		if !r.IsAdmin(actingAdminID) {
			return apperr.Forbidden("only admins can remove members")
		}
		if isPrivate(r) {
			return apperr.Forbidden("cannot remove members from a private room")
		}
		if r.IsCreator(targetID) {
			return apperr.Forbidden("cannot remove the room creator")
		}
		if targetID == actingAdminID {
			return apperr.Forbidden("use leave to remove yourself")
		}
		if !r.RemoveMember(targetID) {
			return apperr.NotFound("user is not a member")
		}
		return nil
	})
	if err != nil {
		return models.Room{}, err
	}
	m.notifier.PresenceLeave(ctx, roomID, targetID)
	m.notifier.UnsubscribeMembers(ctx, roomID, targetID)
	return room, nil
}

// UpdateRoom applies patch. Only admins may edit a room.
func (m *MembershipManager) UpdateRoom(ctx context.Context, roomID int, patch models.RoomPatch, actingAdminID int) (models.Room, error) {
	return m.rooms.MutateRoom(ctx, roomID, func(r *models.Room) error {
		if !r.IsAdmin(actingAdminID) {
			return apperr.Forbidden("only admins can update the room")
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperr.InvalidInput("room name is required")
			}
			r.Name = name
		}
		if patch.Description != nil {
			r.Description = *patch.Description
		}
		if patch.AvatarURL != nil {
			r.AvatarURL = *patch.AvatarURL
		}
		if patch.MaxMembers != nil {
			if *patch.MaxMembers < 1 || *patch.MaxMembers < r.CurrentMemberCount {
				return apperr.InvalidInput("max_members is below the current member count")
			}
			limit := *patch.MaxMembers
			r.MaxMembers = &limit
		}
		return nil
	})
}

// DeleteRoom removes the room and its messages. Only the creator may delete.
func (m *MembershipManager) DeleteRoom(ctx context.Context, roomID, actingUserID int) error {
	room, err := m.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.IsCreator(actingUserID) {
		return apperr.Forbidden("only the room creator can delete the room")
	}
	if err := m.rooms.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	m.notifier.RoomDeleted(ctx, roomID)
	return nil
}

// TouchLastMessageTime stamps the room's last activity. A missing room is
// logged and otherwise ignored.
func (m *MembershipManager) TouchLastMessageTime(ctx context.Context, roomID int) error {
	ok, err := m.rooms.TouchLastMessage(ctx, roomID, m.now())
	if err != nil {
		return fmt.Errorf("touch room %d: %w", roomID, err)
	}
	if !ok {
		log.Printf("touch last message: room %d not found", roomID)
	}
	return nil
}

// GetRoom returns the room as seen by a member.
func (m *MembershipManager) GetRoom(ctx context.Context, roomID, userID int) (models.RoomView, error) {
	room, err := m.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return models.RoomView{}, err
	}
	if !room.IsMember(userID) {
		return models.RoomView{}, apperr.Forbidden("not a member of this room")
	}
	return m.view(ctx, room, userID)
}

// ListUserRooms lists the caller's rooms, most recently active first.
func (m *MembershipManager) ListUserRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.RoomView], error) {
	rooms, err := m.rooms.ListRoomsForUser(ctx, userID, p)
	if err != nil {
		return models.PageResult[models.RoomView]{}, err
	}
	return m.views(ctx, rooms, userID)
}

func (m *MembershipManager) SearchPublicRooms(ctx context.Context, term string, userID int, p models.Page) (models.PageResult[models.RoomView], error) {
	rooms, err := m.rooms.SearchPublicRooms(ctx, strings.TrimSpace(term), p)
	if err != nil {
		return models.PageResult[models.RoomView]{}, err
	}
	return m.views(ctx, rooms, userID)
}

func (m *MembershipManager) ListJoinableRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.RoomView], error) {
	rooms, err := m.rooms.ListJoinableRooms(ctx, userID, p)
	if err != nil {
		return models.PageResult[models.RoomView]{}, err
	}
	return m.views(ctx, rooms, userID)
}

func (m *MembershipManager) RoomIDsForUser(ctx context.Context, userID int) ([]int, error) {
	return m.rooms.RoomIDsForUser(ctx, userID)
}

func (m *MembershipManager) IsMember(ctx context.Context, roomID, userID int) (bool, error) {
	return m.rooms.IsMember(ctx, roomID, userID)
}

func (m *MembershipManager) views(ctx context.Context, rooms models.PageResult[models.Room], userID int) (models.PageResult[models.RoomView], error) {
	out := models.PageResult[models.RoomView]{
		Items:       make([]models.RoomView, 0, len(rooms.Items)),
		Page:        rooms.Page,
		Size:        rooms.Size,
		Total:       rooms.Total,
		TotalPages:  rooms.TotalPages,
		HasNext:     rooms.HasNext,
		HasPrevious: rooms.HasPrevious,
	}
	for _, room := range rooms.Items {
		v, err := m.view(ctx, room, userID)
		if err != nil {
			return models.PageResult[models.RoomView]{}, err
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

// view fills the caller flags. Only direct messages carry read state, so the
// unread count is non-zero for PRIVATE rooms only.
func (m *MembershipManager) view(ctx context.Context, room models.Room, userID int) (models.RoomView, error) {
	v := room.ViewFor(userID)
	if room.RoomType != models.RoomTypePrivate || !v.IsMember {
		return v, nil
	}
	for _, peer := range room.Members {
		if peer == userID {
			continue
		}
		count, err := m.messages.CountUnreadFrom(ctx, userID, peer)
		if err != nil {
			return models.RoomView{}, err
		}
		v.UnreadMessageCount = count
	}
	return v, nil
}

func (m *MembershipManager) requireUsers(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := m.users.MissingUsers(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.NotFound(fmt.Sprintf("user %d not found", missing[0]))
	}
	return nil
}

func isPrivate(r *models.Room) bool {
	return r.RoomType == models.RoomTypePrivate
}
