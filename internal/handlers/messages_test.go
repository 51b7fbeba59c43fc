package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/apperr"
	"chat-core/internal/mocks"
	"chat-core/internal/models"
)

func TestCreateDirectMessage(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(1, NewMessageHandler(messages, nil).Register)

	to := 2
	in := models.NewMessage{Content: "hello", ReceiverID: &to}
	view := models.MessageView{Message: models.Message{ID: 7, SenderID: 1, ReceiverID: &to, Content: "hello"}, SenderUsername: "alice"}
	messages.On("CreateMessage", mock.Anything, in, 1).Return(view, nil).Once()

	rec := serve(router, http.MethodPost, "/messages", `{"content":"hello","receiver_id":2}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got models.MessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 7, got.ID)
	assert.Equal(t, "alice", got.SenderUsername)
	messages.AssertExpectations(t)
}

func TestCreateMessageRejectedByService(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(1, NewMessageHandler(messages, nil).Register)
	messages.On("CreateMessage", mock.Anything, models.NewMessage{Content: "x"}, 1).
		Return(nil, apperr.InvalidInput("exactly one of receiver_id and room_id is required")).Once()

	rec := serve(router, http.MethodPost, "/messages", `{"content":"x"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "exactly one of receiver_id and room_id is required", decodeError(t, rec))
}

func TestRoomThreadForbiddenForOutsider(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(5, NewMessageHandler(messages, nil).Register)
	messages.On("ThreadInRoom", mock.Anything, 3, 5, models.NewPage(0, 0)).Return(nil, apperr.Forbidden("not a member of this room")).Once()

	rec := serve(router, http.MethodGet, "/messages/room/3", "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertExpectations(t)
}

func TestUnreadEndpoints(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(2, NewMessageHandler(messages, nil).Register)
	messages.On("UnreadCount", mock.Anything, 2).Return(4, nil).Once()
	messages.On("UnreadMessages", mock.Anything, 2).Return(nil, nil).Once()

	rec := serve(router, http.MethodGet, "/messages/unread/count", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":4}`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/messages/unread", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
	messages.AssertExpectations(t)
}

func TestMarkReadReportsCount(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(2, NewMessageHandler(messages, nil).Register)
	messages.On("MarkRead", mock.Anything, 2, 1).Return(3, nil).Once()

	rec := serve(router, http.MethodPost, "/messages/read/1", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"marked":3}`, rec.Body.String())
}

func TestDeleteMessageBySender(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(1, NewMessageHandler(messages, nil).Register)
	messages.On("DeleteMessage", mock.Anything, 9, 1).Return(nil).Once()
	messages.On("DeleteMessage", mock.Anything, 10, 1).Return(apperr.Forbidden("only the sender may delete a message")).Once()

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodDelete, "/messages/9", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodDelete, "/messages/10", "").Code)
	messages.AssertExpectations(t)
}

func TestLatestConversations(t *testing.T) {
	messages := new(mocks.MessageServiceMock)
	router := setupRouter(1, NewMessageHandler(messages, nil).Register)
	room := 4
	latest := []models.MessageView{{Message: models.Message{ID: 3, SenderID: 2, RoomID: &room}}}
	messages.On("LatestPerConversation", mock.Anything, 1).Return(latest, nil).Once()

	rec := serve(router, http.MethodGet, "/messages/latest", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Messages []models.MessageView `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Messages, 1)
	assert.Equal(t, 3, body.Messages[0].ID)
}
