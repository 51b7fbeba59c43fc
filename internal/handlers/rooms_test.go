package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-core/internal/apperr"
	"chat-core/internal/mocks"
	"chat-core/internal/models"
	"chat-core/internal/telemetry"
)

func setupRouter(userID int, register func(g *gin.RouterGroup)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/", func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	register(g)
	return r
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestCreateRoomSuccess(t *testing.T) {
	rooms := new(mocks.RoomServiceMock)
	publisher := new(mocks.PublisherMock)
	audit := telemetry.NewAuditEmitter(publisher, "audit.chat-core", "chat-core", "test")
	router := setupRouter(1, NewRoomHandler(rooms, audit).Register)

	room := *models.NewRoom("team", models.RoomTypeGroup, 1)
	room.ID = 5
	spec := models.NewRoomSpec{Name: "team", MemberIDs: []int{2}}
	rooms.On("CreateRoom", mock.Anything, spec, 1).Return(room, nil).Once()
	publisher.On("Publish", mock.Anything, "audit.chat-core", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Action == "room.create" && env.Payload.Level == "INFO"
	}), mock.Anything).Return(nil).Once()

	rec := serve(router, http.MethodPost, "/rooms", `{"name":"team","member_ids":[2]}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var view models.RoomView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 5, view.ID)
	assert.True(t, view.IsCreator)
	assert.True(t, view.IsAdmin)
	rooms.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCreateRoomInvalidBody(t *testing.T) {
	router := setupRouter(1, NewRoomHandler(new(mocks.RoomServiceMock), nil).Register)

	rec := serve(router, http.MethodPost, "/rooms", `{"name":5}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoomErrorKindsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", apperr.NotFound("room not found"), http.StatusNotFound, "room not found"},
		{"forbidden", apperr.Forbidden("cannot join a private room"), http.StatusForbidden, "cannot join a private room"},
		{"conflict", apperr.Conflict("already a member"), http.StatusConflict, "already a member"},
		{"full", apperr.ResourceExhausted("room is full"), http.StatusTooManyRequests, "room is full"},
		{"unclassified", errors.New("pq: connection reset"), http.StatusInternalServerError, internalErrorMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rooms := new(mocks.RoomServiceMock)
			rooms.On("JoinRoom", mock.Anything, 4, 1).Return(nil, tc.err).Once()
			router := setupRouter(1, NewRoomHandler(rooms, nil).Register)

			rec := serve(router, http.MethodPost, "/rooms/4/join", "")

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.msg, decodeError(t, rec))
		})
	}
}

func TestRoomInvalidPathID(t *testing.T) {
	router := setupRouter(1, NewRoomHandler(new(mocks.RoomServiceMock), nil).Register)

	rec := serve(router, http.MethodGet, "/rooms/abc", "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid room_id", decodeError(t, rec))
}

func TestListRoomsUsesPageQuery(t *testing.T) {
	rooms := new(mocks.RoomServiceMock)
	router := setupRouter(3, NewRoomHandler(rooms, nil).Register)

	page := models.NewPage(2, 5)
	result := models.NewPageResult([]models.RoomView{{Room: models.Room{ID: 9}}}, page, 11)
	rooms.On("ListUserRooms", mock.Anything, 3, page).Return(result, nil).Once()

	rec := serve(router, http.MethodGet, "/rooms?page=2&size=5", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.PageResult[models.RoomView]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.TotalPages)
	assert.False(t, body.HasNext)
	assert.True(t, body.HasPrevious)
	rooms.AssertExpectations(t)
}

func TestSearchAndPrivateRoutesDoNotCollide(t *testing.T) {
	rooms := new(mocks.RoomServiceMock)
	router := setupRouter(1, NewRoomHandler(rooms, nil).Register)

	rooms.On("SearchPublicRooms", mock.Anything, "go", 1, models.NewPage(0, 0)).
		Return(models.NewPageResult[models.RoomView](nil, models.NewPage(0, 0), 0), nil).Once()
	private := *models.NewPrivateRoom(1, 2)
	private.ID = 12
	rooms.On("GetOrCreatePrivateRoom", mock.Anything, 1, 2).Return(private, nil).Once()

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/rooms/search?q=go", "").Code)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/rooms/private/2", "").Code)
	rooms.AssertExpectations(t)
}

func TestAddAndRemoveMemberPassActingAdmin(t *testing.T) {
	rooms := new(mocks.RoomServiceMock)
	router := setupRouter(1, NewRoomHandler(rooms, nil).Register)

	rooms.On("AddMember", mock.Anything, 4, 2, 1).Return(models.Room{ID: 4}, nil).Once()
	rooms.On("RemoveMember", mock.Anything, 4, 3, 1).Return(nil, apperr.NotFound("user is not a member")).Once()

	assert.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/rooms/4/members/2", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/rooms/4/members/3", "").Code)
	rooms.AssertExpectations(t)
}

func TestDeleteRoomNoContent(t *testing.T) {
	rooms := new(mocks.RoomServiceMock)
	router := setupRouter(1, NewRoomHandler(rooms, nil).Register)
	rooms.On("DeleteRoom", mock.Anything, 4, 1).Return(nil).Once()

	rec := serve(router, http.MethodDelete, "/rooms/4", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	rooms.AssertExpectations(t)
}

func TestUpdateRoomPatch(t *testing.T) {
	rooms := new(mocks.RoomServiceMock)
	router := setupRouter(1, NewRoomHandler(rooms, nil).Register)

	name := "renamed"
	rooms.On("UpdateRoom", mock.Anything, 4, models.RoomPatch{Name: &name}, 1).Return(models.Room{ID: 4, Name: name}, nil).Once()

	rec := serve(router, http.MethodPut, "/rooms/4", `{"name":"renamed"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	rooms.AssertExpectations(t)
}
