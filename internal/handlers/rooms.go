package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/models"
	"chat-core/internal/telemetry"
)

// RoomService is the membership API behind the room endpoints.
type RoomService interface {
	CreateRoom(ctx context.Context, spec models.NewRoomSpec, creatorID int) (models.Room, error)
	GetOrCreatePrivateRoom(ctx context.Context, a, b int) (models.Room, error)
	JoinRoom(ctx context.Context, roomID, userID int) (models.Room, error)
	LeaveRoom(ctx context.Context, roomID, userID int) (models.Room, error)
	AddMember(ctx context.Context, roomID, targetID, actingAdminID int) (models.Room, error)
	RemoveMember(ctx context.Context, roomID, targetID, actingAdminID int) (models.Room, error)
	UpdateRoom(ctx context.Context, roomID int, patch models.RoomPatch, actingAdminID int) (models.Room, error)
	DeleteRoom(ctx context.Context, roomID, actingUserID int) error
	GetRoom(ctx context.Context, roomID, userID int) (models.RoomView, error)
	ListUserRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.RoomView], error)
	SearchPublicRooms(ctx context.Context, term string, userID int, p models.Page) (models.PageResult[models.RoomView], error)
	ListJoinableRooms(ctx context.Context, userID int, p models.Page) (models.PageResult[models.RoomView], error)
}

// RoomHandler serves the /rooms endpoints.
type RoomHandler struct {
	rooms RoomService
	audit *telemetry.AuditEmitter
}

func NewRoomHandler(rooms RoomService, audit *telemetry.AuditEmitter) *RoomHandler {
	return &RoomHandler{rooms: rooms, audit: audit}
}

// Register mounts the room routes on an authenticated group.
func (h *RoomHandler) Register(g *gin.RouterGroup) {
	g.POST("/rooms", h.CreateRoom)
	g.GET("/rooms", h.ListRooms)
	g.GET("/rooms/search", h.SearchRooms)
	g.GET("/rooms/joinable", h.JoinableRooms)
	g.POST("/rooms/private/:user_id", h.OpenPrivateRoom)
	g.GET("/rooms/:room_id", h.GetRoom)
	g.PUT("/rooms/:room_id", h.UpdateRoom)
	g.DELETE("/rooms/:room_id", h.DeleteRoom)
	g.POST("/rooms/:room_id/join", h.JoinRoom)
	g.POST("/rooms/:room_id/leave", h.LeaveRoom)
	g.POST("/rooms/:room_id/members/:user_id", h.AddMember)
	g.DELETE("/rooms/:room_id/members/:user_id", h.RemoveMember)
}

// CreateRoom handles POST /rooms.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var spec models.NewRoomSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		emitAudit(c, h.audit, "ERROR", "room.create", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), spec, c.GetInt("userID"))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "room.create", apperrText(err))
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "room.create", "Room created")
	c.JSON(http.StatusCreated, room.ViewFor(c.GetInt("userID")))
}

// ListRooms returns the caller's rooms, most recently active first.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.ListUserRooms(c.Request.Context(), c.GetInt("userID"), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) SearchRooms(c *gin.Context) {
	rooms, err := h.rooms.SearchPublicRooms(c.Request.Context(), c.Query("q"), c.GetInt("userID"), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) JoinableRooms(c *gin.Context) {
	rooms, err := h.rooms.ListJoinableRooms(c.Request.Context(), c.GetInt("userID"), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// OpenPrivateRoom returns the caller's direct room with :user_id, creating it
// on first use.
func (h *RoomHandler) OpenPrivateRoom(c *gin.Context) {
	peerID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")
	room, err := h.rooms.GetOrCreatePrivateRoom(c.Request.Context(), userID, peerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, room.ViewFor(userID))
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	view, err := h.rooms.GetRoom(c.Request.Context(), roomID, c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateRoom handles PUT /rooms/:room_id for admins.
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	var patch models.RoomPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		emitAudit(c, h.audit, "ERROR", "room.update", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	room, err := h.rooms.UpdateRoom(c.Request.Context(), roomID, patch, userID)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "room.update", apperrText(err))
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "room.update", "Room updated")
	c.JSON(http.StatusOK, room.ViewFor(userID))
}

// DeleteRoom handles DELETE /rooms/:room_id; only the creator may delete.
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	if err := h.rooms.DeleteRoom(c.Request.Context(), roomID, c.GetInt("userID")); err != nil {
		emitAudit(c, h.audit, "ERROR", "room.delete", apperrText(err))
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "room.delete", "Room deleted")
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	h.membershipChange(c, "room.join", "Joined room", func(ctx context.Context, roomID, userID int) (models.Room, error) {
		return h.rooms.JoinRoom(ctx, roomID, userID)
	})
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	h.membershipChange(c, "room.leave", "Left room", func(ctx context.Context, roomID, userID int) (models.Room, error) {
		return h.rooms.LeaveRoom(ctx, roomID, userID)
	})
}

// AddMember handles POST /rooms/:room_id/members/:user_id for admins.
func (h *RoomHandler) AddMember(c *gin.Context) {
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	h.membershipChange(c, "room.add_member", "Member added", func(ctx context.Context, roomID, userID int) (models.Room, error) {
		return h.rooms.AddMember(ctx, roomID, targetID, userID)
	})
}

func (h *RoomHandler) RemoveMember(c *gin.Context) {
	targetID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	h.membershipChange(c, "room.remove_member", "Member removed", func(ctx context.Context, roomID, userID int) (models.Room, error) {
		return h.rooms.RemoveMember(ctx, roomID, targetID, userID)
	})
}

func (h *RoomHandler) membershipChange(c *gin.Context, action, text string, change func(ctx context.Context, roomID, userID int) (models.Room, error)) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	userID := c.GetInt("userID")
	room, err := change(c.Request.Context(), roomID, userID)
	if err != nil {
		emitAudit(c, h.audit, "ERROR", action, apperrText(err))
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", action, text)
	c.JSON(http.StatusOK, room.ViewFor(userID))
}
