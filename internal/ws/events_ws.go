package ws

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"matchmaking-service/internal/errs"
)

// EventsWebSocketHandler attaches a connection to the caller's matchmaking
// event channel.
type EventsWebSocketHandler struct {
	hub       *Hub
	validator TokenValidator
}

// NewEventsWebSocketHandler constructs an EventsWebSocketHandler.
func NewEventsWebSocketHandler(hub *Hub, validator TokenValidator) *EventsWebSocketHandler {
	return &EventsWebSocketHandler{hub: hub, validator: validator}
}

// Handle upgrades the connection and subscribes it to the caller's events.
func (h *EventsWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := tracer.Start(c.Request.Context(), "ws.events.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, err := h.validator.ValidateToken(tokenFromRequest(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": errs.KindUnauthenticated, "message": "invalid token"}})
		return
	}

	h.hub.serve(c, span, kindUser, userID, userID)
}
