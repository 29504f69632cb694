package ws

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"matchmaking-service/internal/observability"
)

// TokenValidator resolves a bearer token to a user id.
type TokenValidator interface {
	ValidateToken(token string) (int64, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var tracer = otel.Tracer("matchmaking-service/ws")

// serve upgrades the request, registers the connection in the room and keeps
// reading until the peer goes away.
func (h *Hub) serve(c *gin.Context, span trace.Span, kind string, roomID, userID int64) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.add(kind, roomID, conn, info)
	observability.IncWSActive(kind)
	h.publishLifecycle(kind, roomID, info, "ws_connect", "")

	go func() {
		var closeReason string
		defer func() {
			h.remove(kind, roomID, conn)
			observability.DecWSActive(kind)
			h.publishLifecycle(kind, roomID, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.publishLifecycle(kind, roomID, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}
