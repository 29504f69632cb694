package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"matchmaking-service/internal/errs"
	"matchmaking-service/internal/middleware"
	"matchmaking-service/internal/models"
	"matchmaking-service/internal/repositories"
	"matchmaking-service/internal/telemetry"
)

type matchHistory interface {
	HaveMatched(ctx context.Context, userID int64, otherID int64) (bool, error)
}

type chatBroadcaster interface {
	BroadcastChatMessage(chatID int64, msg models.Message)
	BroadcastDeletion(chatID int64, messageID int64)
}

// ChatHandler manages private chats between previously matched users.
type ChatHandler struct {
	chatRepo    repositories.ChatRepository
	messageRepo repositories.MessageRepository
	history     matchHistory
	hub         chatBroadcaster
	audit       *telemetry.AuditEmitter
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatRepo repositories.ChatRepository, messageRepo repositories.MessageRepository, history matchHistory, hub chatBroadcaster, audit *telemetry.AuditEmitter) *ChatHandler {
	return &ChatHandler{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		history:     history,
		hub:         hub,
		audit:       audit,
	}
}

// RegisterRoutes wires the authenticated chat endpoints.
func (h *ChatHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/chats", h.ListChats)
	r.POST("/chats/start", h.StartChat)
	r.GET("/chats/:chat_id/messages", h.GetChatMessages)
	r.POST("/chats/:chat_id/messages", h.PostChatMessage)
	r.DELETE("/chats/:chat_id/messages/:message_id/me", h.DeleteMessageForMe)
	r.DELETE("/chats/:chat_id/messages/:message_id/all", h.DeleteMessageForAll)
	r.DELETE("/chats/:chat_id/me", h.DeleteChatForMe)
}

// ListChats returns the chats visible to the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt64(middleware.UserIDKey)

	chats, err := h.chatRepo.ListChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.audit, "list chats", err)
		return
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartChat creates or returns the chat with a previous match.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		PartnerID int64 `json:"partner_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID := c.GetInt64(middleware.UserIDKey)
	if userID == req.PartnerID {
		badRequest(c, "cannot chat with yourself")
		return
	}

	matched, err := h.history.HaveMatched(c.Request.Context(), userID, req.PartnerID)
	if err != nil {
		respondError(c, h.audit, "start chat", err)
		return
	}
	if !matched {
		respondError(c, h.audit, "start chat", errs.New(errs.KindForbidden, "users have never been matched"))
		return
	}

	chat, err := h.chatRepo.CreateOrGetChat(c.Request.Context(), userID, req.PartnerID)
	if err != nil {
		respondError(c, h.audit, "start chat", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chat.ID})
}

// GetChatMessages returns messages for a chat filtered for the user.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chat, ok := h.loadChat(c)
	if !ok {
		return
	}

	msgs, err := h.messageRepo.GetChatMessagesForUser(c.Request.Context(), chat.ID, c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "get chat messages", err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage stores a chat message and broadcasts it.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chat, ok := h.loadChat(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.messageRepo.CreateChatMessage(c.Request.Context(), chat.ID, c.GetInt64(middleware.UserIDKey), req.Content)
	if err != nil {
		respondError(c, h.audit, "post chat message", err)
		return
	}

	// a new message makes the chat visible again for both sides
	h.chatRepo.UnhideChatForUser(c.Request.Context(), chat.ID, chat.User1ID)
	h.chatRepo.UnhideChatForUser(c.Request.Context(), chat.ID, chat.User2ID)

	h.hub.BroadcastChatMessage(chat.ID, msg)
	c.JSON(http.StatusCreated, msg)
}

// DeleteMessageForMe performs a soft delete of a message for the caller.
func (h *ChatHandler) DeleteMessageForMe(c *gin.Context) {
	_, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}

	isSender := msg.SenderID == c.GetInt64(middleware.UserIDKey)
	if err := h.messageRepo.SoftDeleteMessageForUser(c.Request.Context(), msg.ID, isSender); err != nil {
		respondError(c, h.audit, "delete message", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteMessageForAll marks a message as deleted for everyone (sender only).
func (h *ChatHandler) DeleteMessageForAll(c *gin.Context) {
	chat, msg, ok := h.loadMessage(c)
	if !ok {
		return
	}

	userID := c.GetInt64(middleware.UserIDKey)
	if msg.SenderID != userID {
		respondError(c, h.audit, "delete message for all", errs.New(errs.KindForbidden, "only sender can delete for all"))
		return
	}

	err := h.messageRepo.DeleteMessageForAll(c.Request.Context(), msg.ID, userID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		respondError(c, h.audit, "delete message for all", errs.New(errs.KindNotFound, "message not found"))
		return
	}
	if err != nil {
		respondError(c, h.audit, "delete message for all", err)
		return
	}

	h.hub.BroadcastDeletion(chat.ID, msg.ID)
	emitAudit(c, h.audit, "INFO", "delete message for all", "chat message deleted for all")
	c.Status(http.StatusNoContent)
}

// DeleteChatForMe hides the chat for the requester.
func (h *ChatHandler) DeleteChatForMe(c *gin.Context) {
	chat, ok := h.loadChat(c)
	if !ok {
		return
	}

	if err := h.chatRepo.HideChatForUser(c.Request.Context(), chat.ID, c.GetInt64(middleware.UserIDKey)); err != nil {
		respondError(c, h.audit, "hide chat", err)
		return
	}

	c.Status(http.StatusNoContent)
}

// loadChat resolves :chat_id and checks the caller belongs to it.
func (h *ChatHandler) loadChat(c *gin.Context) (models.Chat, bool) {
	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid chat id")
		return models.Chat{}, false
	}

	chat, err := h.chatRepo.GetChat(c.Request.Context(), chatID)
	if errors.Is(err, repositories.ErrChatNotFound) {
		respondError(c, h.audit, "load chat", errs.New(errs.KindNotFound, "chat not found"))
		return models.Chat{}, false
	}
	if err != nil {
		respondError(c, h.audit, "load chat", err)
		return models.Chat{}, false
	}
	if !chat.HasParticipant(c.GetInt64(middleware.UserIDKey)) {
		respondError(c, h.audit, "load chat", errs.New(errs.KindForbidden, "not a chat member"))
		return models.Chat{}, false
	}
	return chat, true
}

func (h *ChatHandler) loadMessage(c *gin.Context) (models.Chat, models.Message, bool) {
	chat, ok := h.loadChat(c)
	if !ok {
		return models.Chat{}, models.Message{}, false
	}

	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid message id")
		return models.Chat{}, models.Message{}, false
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if errors.Is(err, repositories.ErrMessageNotFound) {
		respondError(c, h.audit, "load message", errs.New(errs.KindNotFound, "message not found"))
		return models.Chat{}, models.Message{}, false
	}
	if err != nil {
		respondError(c, h.audit, "load message", err)
		return models.Chat{}, models.Message{}, false
	}
	if msg.ChatID != chat.ID {
		badRequest(c, "message does not belong to chat")
		return models.Chat{}, models.Message{}, false
	}
	return chat, msg, true
}
