package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-core/internal/apperr"
	"chat-core/internal/models"
)

func intPtr(v int) *int { return &v }

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateRoomEnforcesUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeGroup, 1))
	require.NoError(t, err)
	_, err = s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeChannel, 2))
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.CreateRoom(ctx, *models.NewPrivateRoom(1, 2))
	require.NoError(t, err)
	_, err = s.CreateRoom(ctx, *models.NewPrivateRoom(3, 4))
	require.NoError(t, err, "private rooms share a name")
	_, err = s.CreateRoom(ctx, *models.NewPrivateRoom(2, 1))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestMutateRoomDiscardsOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	room, err := s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeGroup, 1))
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = s.MutateRoom(ctx, room.ID, func(r *models.Room) error {
		r.AddMember(2)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got.Members)

	updated, err := s.MutateRoom(ctx, room.ID, func(r *models.Room) error {
		r.AddMember(2)
		r.CreatedBy = 99
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentMemberCount)
	assert.Equal(t, 1, updated.CreatedBy)
}

func TestDeleteRoomRemovesMessages(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	room, err := s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeGroup, 1))
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, models.Message{Content: "hi", SenderID: 1, RoomID: intPtr(room.ID), MessageType: models.MessageTypeText})
	require.NoError(t, err)

	require.NoError(t, s.DeleteRoom(ctx, room.ID))

	thread, err := s.ThreadInRoom(ctx, room.ID, models.NewPage(0, 20))
	require.NoError(t, err)
	assert.Zero(t, thread.Total)
	assert.ErrorIs(t, s.DeleteRoom(ctx, room.ID), apperr.ErrNotFound)
}

func TestDeleteRoomDropsRoomLock(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	room, err := s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeGroup, 1))
	require.NoError(t, err)
	_, err = s.MutateRoom(ctx, room.ID, func(r *models.Room) error {
		r.AddMember(2)
		return nil
	})
	require.NoError(t, err)
	require.Contains(t, s.roomLocks, room.ID)

	require.NoError(t, s.DeleteRoom(ctx, room.ID))
	assert.NotContains(t, s.roomLocks, room.ID)
}

func TestMutateRoomKeepsConcurrentLastMessage(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	room, err := s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeGroup, 1))
	require.NoError(t, err)

	sentAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	updated, err := s.MutateRoom(ctx, room.ID, func(r *models.Room) error {
		// a message lands between the read and the write-back
		ok, err := s.TouchLastMessage(ctx, room.ID, sentAt)
		require.NoError(t, err)
		require.True(t, ok)
		r.AddMember(2)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.CurrentMemberCount)

	got, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, sentAt.Equal(*got.LastMessageAt))
	assert.Equal(t, []int{1, 2}, got.Members)
}

func TestTouchLastMessageOnMissingRoom(t *testing.T) {
	ok, err := NewStore().TouchLastMessage(context.Background(), 42, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i := 0; i < 3; i++ {
		_, err := s.CreateMessage(ctx, models.Message{Content: "hi", SenderID: 1, ReceiverID: intPtr(2), MessageType: models.MessageTypeText})
		require.NoError(t, err)
	}
	_, err := s.CreateMessage(ctx, models.Message{Content: "other", SenderID: 3, ReceiverID: intPtr(2), MessageType: models.MessageTypeText})
	require.NoError(t, err)

	n, err := s.MarkRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.MarkRead(ctx, 2, 1)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := s.CountUnread(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLatestPerConversationBreaksTiesByID(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.SetClock(fixedClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: 2, Username: "bob"}))

	room, err := s.CreateRoom(ctx, *models.NewRoom("general", models.RoomTypeGroup, 1))
	require.NoError(t, err)

	first, err := s.CreateMessage(ctx, models.Message{Content: "a", SenderID: 1, ReceiverID: intPtr(2), MessageType: models.MessageTypeText})
	require.NoError(t, err)
	second, err := s.CreateMessage(ctx, models.Message{Content: "b", SenderID: 2, ReceiverID: intPtr(1), MessageType: models.MessageTypeText})
	require.NoError(t, err)
	inRoom, err := s.CreateMessage(ctx, models.Message{Content: "c", SenderID: 1, RoomID: intPtr(room.ID), MessageType: models.MessageTypeText})
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, models.Message{Content: "d", SenderID: 5, ReceiverID: intPtr(6), MessageType: models.MessageTypeText})
	require.NoError(t, err)

	latest, err := s.LatestPerConversation(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, inRoom.ID, latest[0].ID)
	assert.Equal(t, second.ID, latest[1].ID)
	assert.NotEqual(t, first.ID, latest[1].ID)
	assert.Equal(t, "bob", latest[1].SenderUsername)
}

func TestThreadBetweenIsNewestFirstAndPaged(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.SetClock(fixedClock(base.Add(time.Duration(i) * time.Minute)))
		sender, receiver := 1, 2
		if i%2 == 1 {
			sender, receiver = 2, 1
		}
		_, err := s.CreateMessage(ctx, models.Message{Content: "m", SenderID: sender, ReceiverID: intPtr(receiver), MessageType: models.MessageTypeText})
		require.NoError(t, err)
	}

	page, err := s.ThreadBetween(ctx, 2, 1, models.NewPage(0, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 5, page.Items[0].ID)
	assert.Equal(t, 4, page.Items[1].ID)
}

func TestMissingUsers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: 1, Username: "alice"}))

	missing, err := s.MissingUsers(ctx, []int{3, 1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, missing)
}

func TestUpsertUserKeepsStoredFieldsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.UpsertUser(ctx, models.User{ID: 7, Username: "alice", AvatarURL: "https://cdn/a.png"}))

	require.NoError(t, s.UpsertUser(ctx, models.User{ID: 7}))
	got, err := s.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "https://cdn/a.png", got.AvatarURL)

	require.NoError(t, s.UpsertUser(ctx, models.User{ID: 7, Username: "alice2"}))
	got, err = s.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "alice2", got.Username)
	assert.Equal(t, "https://cdn/a.png", got.AvatarURL)

	require.NoError(t, s.UpsertUser(ctx, models.User{ID: 8}))
	missing, err := s.MissingUsers(ctx, []int{8})
	require.NoError(t, err)
	assert.Empty(t, missing)
}
