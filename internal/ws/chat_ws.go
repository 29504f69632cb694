package ws

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"matchmaking-service/internal/errs"
	"matchmaking-service/internal/repositories"
)

// ChatWebSocketHandler handles chat websocket connections.
type ChatWebSocketHandler struct {
	hub       *Hub
	chatRepo  repositories.ChatRepository
	validator TokenValidator
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chatRepo repositories.ChatRepository, validator TokenValidator) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, chatRepo: chatRepo, validator: validator}
}

// Handle upgrades the connection and registers client.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"kind": errs.KindInvalidArgument, "message": "invalid chat id"}})
		return
	}

	ctx, span := tracer.Start(c.Request.Context(), "ws.chat.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.validator.ValidateToken(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": errs.KindUnauthenticated, "message": "invalid token"}})
		return
	}

	chat, err := h.chatRepo.GetChat(ctx, chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"kind": errs.KindNotFound, "message": "chat not found"}})
		return
	}
	if err != nil || !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"kind": errs.KindForbidden, "message": "not authorized for chat"}})
		return
	}

	h.hub.serve(c, span, kindChat, chatID, userID)
}
