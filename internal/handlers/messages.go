package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-core/internal/models"
	"chat-core/internal/telemetry"
)

// MessageService is the conversation API behind the message endpoints.
type MessageService interface {
	CreateMessage(ctx context.Context, in models.NewMessage, senderID int) (models.MessageView, error)
	DeleteMessage(ctx context.Context, messageID, requesterID int) error
	ThreadBetween(ctx context.Context, a, b int, p models.Page) (models.PageResult[models.MessageView], error)
	ThreadInRoom(ctx context.Context, roomID, requesterID int, p models.Page) (models.PageResult[models.MessageView], error)
	UnreadCount(ctx context.Context, userID int) (int, error)
	UnreadMessages(ctx context.Context, userID int) ([]models.MessageView, error)
	LatestPerConversation(ctx context.Context, userID int) ([]models.MessageView, error)
	MarkRead(ctx context.Context, receiverID, senderID int) (int, error)
}

// MessageHandler serves the /messages endpoints.
type MessageHandler struct {
	messages MessageService
	audit    *telemetry.AuditEmitter
}

func NewMessageHandler(messages MessageService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messages: messages, audit: audit}
}

func (h *MessageHandler) Register(g *gin.RouterGroup) {
	g.POST("/messages", h.CreateMessage)
	g.GET("/messages/conversation/:user_id", h.Conversation)
	g.GET("/messages/room/:room_id", h.RoomThread)
	g.GET("/messages/unread", h.Unread)
	g.GET("/messages/unread/count", h.UnreadCount)
	g.GET("/messages/latest", h.Latest)
	g.POST("/messages/read/:sender_id", h.MarkRead)
	g.DELETE("/messages/:message_id", h.DeleteMessage)
}

// CreateMessage handles POST /messages. Exactly one of receiver_id and
// room_id must be set.
func (h *MessageHandler) CreateMessage(c *gin.Context) {
	var req models.NewMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		emitAudit(c, h.audit, "ERROR", "message.create", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.messages.CreateMessage(c.Request.Context(), req, c.GetInt("userID"))
	if err != nil {
		emitAudit(c, h.audit, "ERROR", "message.create", apperrText(err))
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "message.create", "Message sent")
	c.JSON(http.StatusCreated, view)
}

// Conversation returns the direct thread between the caller and :user_id.
func (h *MessageHandler) Conversation(c *gin.Context) {
	peerID, ok := pathID(c, "user_id")
	if !ok {
		return
	}
	thread, err := h.messages.ThreadBetween(c.Request.Context(), c.GetInt("userID"), peerID, pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *MessageHandler) RoomThread(c *gin.Context) {
	roomID, ok := pathID(c, "room_id")
	if !ok {
		return
	}
	thread, err := h.messages.ThreadInRoom(c.Request.Context(), roomID, c.GetInt("userID"), pageFromQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *MessageHandler) Unread(c *gin.Context) {
	msgs, err := h.messages.UnreadMessages(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(msgs)})
}

func (h *MessageHandler) UnreadCount(c *gin.Context) {
	count, err := h.messages.UnreadCount(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Latest returns the newest message of each of the caller's conversations.
func (h *MessageHandler) Latest(c *gin.Context) {
	msgs, err := h.messages.LatestPerConversation(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": nonNil(msgs)})
}

// MarkRead marks every unread direct message from :sender_id to the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	senderID, ok := pathID(c, "sender_id")
	if !ok {
		return
	}
	n, err := h.messages.MarkRead(c.Request.Context(), c.GetInt("userID"), senderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// DeleteMessage handles DELETE /messages/:message_id; only the sender may
// delete.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}
	if err := h.messages.DeleteMessage(c.Request.Context(), messageID, c.GetInt("userID")); err != nil {
		emitAudit(c, h.audit, "ERROR", "message.delete", apperrText(err))
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "message.delete", "Message deleted")
	c.Status(http.StatusNoContent)
}

func nonNil(msgs []models.MessageView) []models.MessageView {
	if msgs == nil {
		return []models.MessageView{}
	}
	return msgs
}
