package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-core/internal/models"
)

type RoomServiceMock struct {
	mock.Mock
}

func (m *RoomServiceMock) CreateRoom(ctx context.Context, spec models.NewRoomSpec, creatorID int) (models.Room, error) {
	args := m.Called(ctx, spec, creatorID)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) GetOrCreatePrivateRoom(ctx context.Context, a, b int) (models.Room, error) {
	args := m.Called(ctx, a, b)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) JoinRoom(ctx context.Context, roomID, userID int) (models.Room, error) {
	args := m.Called(ctx, roomID, userID)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) LeaveRoom(ctx context.Context, roomID, userID int) (models.Room, error) {
	args := m.Called(ctx, roomID, userID)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) AddMember(ctx context.Context, roomID, targetID, actingAdminID int) (models.Room, error) {
	args := m.Called(ctx, roomID, targetID, actingAdminID)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) RemoveMember(ctx context.Context, roomID, targetID, actingAdminID int) (models.Room, error) {
	args := m.Called(ctx, roomID, targetID, actingAdminID)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) UpdateRoom(ctx context.Context, roomID int, patch models.RoomPatch, actingAdminID int) (models.Room, error) {
	args := m.Called(ctx, roomID, patch, actingAdminID)
	return roomArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) DeleteRoom(ctx context.Context, roomID, actingUserID int) error {
	args := m.Called(ctx, roomID, actingUserID)
	return args.Error(0)
}

func (m *RoomServiceMock) GetRoom(ctx context.Context, roomID, userID int) (models.RoomView, error) {
	args := m.Called(ctx, roomID, userID)
	var view models.RoomView
	if val := args.Get(0); val != nil {
		view = val.(models.RoomView)
	}
	return view, args.Error(1)
}

func (m *RoomServiceMock) ListUserRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.RoomView], error) {
	args := m.Called(ctx, userID, p)
	return roomViewsArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) SearchPublicRooms(ctx context.Context, term string, userID int, p models.Page) (models.PageResult[models.RoomView], error) {
	args := m.Called(ctx, term, userID, p)
	return roomViewsArg(args, 0), args.Error(1)
}

func (m *RoomServiceMock) ListJoinableRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.RoomView], error) {
	args := m.Called(ctx, userID, p)
	return roomViewsArg(args, 0), args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) CreateMessage(ctx context.Context, in models.NewMessage, senderID int) (models.MessageView, error) {
	args := m.Called(ctx, in, senderID)
	var view models.MessageView
	if val := args.Get(0); val != nil {
		view = val.(models.MessageView)
	}
	return view, args.Error(1)
}

func (m *MessageServiceMock) DeleteMessage(ctx context.Context, messageID, requesterID int) error {
	args := m.Called(ctx, messageID, requesterID)
	return args.Error(0)
}

func (m *MessageServiceMock) ThreadBetween(ctx context.Context, a, b int, p models.Page) (models.PageResult[models.MessageView], error) {
	args := m.Called(ctx, a, b, p)
	return messagePageArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) ThreadInRoom(ctx context.Context, roomID, requesterID int, p models.Page) (models.PageResult[models.MessageView], error) {
	args := m.Called(ctx, roomID, requesterID, p)
	return messagePageArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) UnreadCount(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *MessageServiceMock) UnreadMessages(ctx context.Context, userID int) ([]models.MessageView, error) {
	args := m.Called(ctx, userID)
	return messagesArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) LatestPerConversation(ctx context.Context, userID int) ([]models.MessageView, error) {
	args := m.Called(ctx, userID)
	return messagesArg(args, 0), args.Error(1)
}

func (m *MessageServiceMock) MarkRead(ctx context.Context, receiverID, senderID int) (int, error) {
	args := m.Called(ctx, receiverID, senderID)
	return args.Int(0), args.Error(1)
}

// PublisherMock stands in for rabbitmq.Publisher and telemetry.Publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	return m.Called(ctx, routingKey, event, headers).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}

func roomArg(args mock.Arguments, i int) models.Room {
	if val := args.Get(i); val != nil {
		return val.(models.Room)
	}
	return models.Room{}
}

func roomViewsArg(args mock.Arguments, i int) models.PageResult[models.RoomView] {
	if val := args.Get(i); val != nil {
		return val.(models.PageResult[models.RoomView])
	}
	return models.PageResult[models.RoomView]{}
}

func messagePageArg(args mock.Arguments, i int) models.PageResult[models.MessageView] {
	if val := args.Get(i); val != nil {
		return val.(models.PageResult[models.MessageView])
	}
	return models.PageResult[models.MessageView]{}
}

func messagesArg(args mock.Arguments, i int) []models.MessageView {
	if val := args.Get(i); val != nil {
		return val.([]models.MessageView)
	}
	return nil
}
