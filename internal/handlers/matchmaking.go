package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"matchmaking-service/internal/middleware"
	"matchmaking-service/internal/models"
	"matchmaking-service/internal/telemetry"
)

// MatchService is the matchmaking core as seen by the HTTP layer.
type MatchService interface {
	RegisterUser(ctx context.Context, username string) (models.User, error)
	BookCall(ctx context.Context, userID int64) (models.BookResult, error)
	GetCurrentMatch(ctx context.Context, userID int64) (models.CurrentMatch, error)
	ResetMatches(ctx context.Context, userID int64) error
	CancelRequest(ctx context.Context, userID int64) (models.StateResult, error)
	ProposeOrUpdateDate(ctx context.Context, userID int64, date string) (models.ProposalResult, error)
	ConfirmAppointment(ctx context.Context, userID int64) (models.StateResult, error)
	SkipAppointment(ctx context.Context, userID int64) (models.StateResult, error)
	GetDateProposalStatus(ctx context.Context, userID int64) (models.ProposalStatus, error)
	ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID int64, notificationID int64) error
}

// MatchHandler exposes queue, appointment and notification endpoints.
type MatchHandler struct {
	svc   MatchService
	audit *telemetry.AuditEmitter
}

// NewMatchHandler builds a MatchHandler.
func NewMatchHandler(svc MatchService, audit *telemetry.AuditEmitter) *MatchHandler {
	return &MatchHandler{svc: svc, audit: audit}
}

// RegisterPublicRoutes wires the endpoints that do not require a token.
func (h *MatchHandler) RegisterPublicRoutes(r gin.IRoutes) {
	r.POST("/users", h.RegisterUser)
}

// RegisterRoutes wires the authenticated endpoints.
func (h *MatchHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/queue/book", h.BookCall)
	r.GET("/queue/match", h.GetCurrentMatch)
	r.DELETE("/queue/history", h.ResetMatches)
	r.DELETE("/queue", h.CancelRequest)

	r.POST("/appointments/propose", h.ProposeDate)
	r.POST("/appointments/confirm", h.ConfirmAppointment)
	r.POST("/appointments/skip", h.SkipAppointment)
	r.GET("/appointments/status", h.GetDateProposalStatus)

	r.GET("/notifications", h.ListNotifications)
	r.POST("/notifications/:notification_id/read", h.MarkNotificationRead)
}

// RegisterUser creates an identity record.
func (h *MatchHandler) RegisterUser(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	user, err := h.svc.RegisterUser(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, h.audit, "register user", err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// BookCall pairs the caller or puts them in the waiting pool.
func (h *MatchHandler) BookCall(c *gin.Context) {
	res, err := h.svc.BookCall(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "book call", err)
		return
	}
	if res.State == models.QueueStatusMatched {
		emitAudit(c, h.audit, "INFO", "book call", "users matched")
	}
	c.JSON(http.StatusOK, res)
}

// GetCurrentMatch returns the active partner or, without one, the match history.
func (h *MatchHandler) GetCurrentMatch(c *gin.Context) {
	current, err := h.svc.GetCurrentMatch(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "get current match", err)
		return
	}
	c.JSON(http.StatusOK, current)
}

// ResetMatches clears the caller's match history.
func (h *MatchHandler) ResetMatches(c *gin.Context) {
	if err := h.svc.ResetMatches(c.Request.Context(), c.GetInt64(middleware.UserIDKey)); err != nil {
		respondError(c, h.audit, "reset matches", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CancelRequest removes the caller from the queue and dissolves any pairing.
func (h *MatchHandler) CancelRequest(c *gin.Context) {
	res, err := h.svc.CancelRequest(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "cancel request", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ProposeDate records the caller's proposed appointment time.
func (h *MatchHandler) ProposeDate(c *gin.Context) {
	var req struct {
		Date string `json:"date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	res, err := h.svc.ProposeOrUpdateDate(c.Request.Context(), c.GetInt64(middleware.UserIDKey), req.Date)
	if err != nil {
		respondError(c, h.audit, "propose date", err)
		return
	}
	if res.State == models.QueueStatusBooked {
		emitAudit(c, h.audit, "INFO", "propose date", "appointment booked")
	}
	c.JSON(http.StatusOK, res)
}

// ConfirmAppointment ends the pairing by confirming the appointment.
func (h *MatchHandler) ConfirmAppointment(c *gin.Context) {
	res, err := h.svc.ConfirmAppointment(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "confirm appointment", err)
		return
	}
	emitAudit(c, h.audit, "INFO", "confirm appointment", "appointment confirmed")
	c.JSON(http.StatusOK, res)
}

// SkipAppointment ends the pairing and leaves the partner idle.
func (h *MatchHandler) SkipAppointment(c *gin.Context) {
	res, err := h.svc.SkipAppointment(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "skip appointment", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GetDateProposalStatus returns both sides of the caller's date negotiation.
func (h *MatchHandler) GetDateProposalStatus(c *gin.Context) {
	status, err := h.svc.GetDateProposalStatus(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "proposal status", err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ListNotifications returns the caller's newest notifications.
func (h *MatchHandler) ListNotifications(c *gin.Context) {
	list, err := h.svc.ListNotifications(c.Request.Context(), c.GetInt64(middleware.UserIDKey))
	if err != nil {
		respondError(c, h.audit, "list notifications", err)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkNotificationRead marks one of the caller's notifications as read.
func (h *MatchHandler) MarkNotificationRead(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("notification_id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid notification id")
		return
	}
	if err := h.svc.MarkNotificationRead(c.Request.Context(), c.GetInt64(middleware.UserIDKey), id); err != nil {
		respondError(c, h.audit, "mark notification read", err)
		return
	}
	c.Status(http.StatusNoContent)
}
