package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"matchmaking-service/internal/models"
	"matchmaking-service/internal/observability"
)

const (
	kindUser = "user"
	kindChat = "chat"
)

// LifecyclePublisher receives connection lifecycle envelopes.
type LifecyclePublisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
}

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub maintains active websocket rooms: one per user for matchmaking events and
// one per chat for messages.
type Hub struct {
	userRooms map[int64]map[*websocket.Conn]*client
	chatRooms map[int64]map[*websocket.Conn]*client
	lifecycle LifecyclePublisher
	now       func() time.Time
	mu        sync.RWMutex
}

// NewHub creates an empty hub. lifecycle may be nil.
func NewHub(lifecycle LifecyclePublisher) *Hub {
	return &Hub{
		userRooms: make(map[int64]map[*websocket.Conn]*client),
		chatRooms: make(map[int64]map[*websocket.Conn]*client),
		lifecycle: lifecycle,
		now:       time.Now,
	}
}

func (h *Hub) rooms(kind string) map[int64]map[*websocket.Conn]*client {
	if kind == kindChat {
		return h.chatRooms
	}
	return h.userRooms
}

func (h *Hub) add(kind string, id int64, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.rooms(kind)
	if _, ok := rooms[id]; !ok {
		rooms[id] = make(map[*websocket.Conn]*client)
	}
	rooms[id][conn] = &client{conn: conn, info: info}
}

func (h *Hub) remove(kind string, id int64, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms := h.rooms(kind)
	clients, ok := rooms[id]
	if !ok {
		return ConnInfo{}, false
	}
	cl, ok := clients[conn]
	delete(clients, conn)
	if len(clients) == 0 {
		delete(rooms, id)
	}
	if !ok {
		return ConnInfo{}, false
	}
	return cl.info, true
}

func (h *Hub) snapshot(kind string, id int64) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.rooms(kind)[id]
	out := make([]*client, 0, len(clients))
	for _, cl := range clients {
		out = append(out, cl)
	}
	return out
}

// AddUserClient registers a connection on the user's event channel.
func (h *Hub) AddUserClient(userID int64, conn *websocket.Conn, info ConnInfo) {
	h.add(kindUser, userID, conn, info)
}

// RemoveUserClient removes a connection from the user's event channel.
func (h *Hub) RemoveUserClient(userID int64, conn *websocket.Conn) {
	h.remove(kindUser, userID, conn)
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID int64, conn *websocket.Conn, info ConnInfo) {
	h.add(kindChat, chatID, conn, info)
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID int64, conn *websocket.Conn) {
	h.remove(kindChat, chatID, conn)
}

// Publish writes a matchmaking event to every connection of every participant.
// Broken connections are dropped; the event is not retried.
func (h *Hub) Publish(_ context.Context, participants []int64, event models.EventName, payload any) error {
	body, err := json.Marshal(models.Event{
		Name:         event,
		Participants: participants,
		Payload:      payload,
		OccurredAt:   h.now().UTC(),
	})
	if err != nil {
		return err
	}
	for _, userID := range participants {
		h.broadcast(kindUser, userID, body)
	}
	return nil
}

// BroadcastChatMessage sends message to all clients in a chat.
func (h *Hub) BroadcastChatMessage(chatID int64, msg models.Message) {
	payload, _ := json.Marshal(models.ChatEvent{Type: "message", Message: &msg})
	h.broadcast(kindChat, chatID, payload)
}

// BroadcastDeletion notifies clients of a delete-for-all event.
func (h *Hub) BroadcastDeletion(chatID int64, messageID int64) {
	payload, _ := json.Marshal(models.ChatEvent{Type: "delete_for_all", MessageID: messageID})
	h.broadcast(kindChat, chatID, payload)
}

func (h *Hub) broadcast(kind string, id int64, payload []byte) {
	for _, cl := range h.snapshot(kind, id) {
		if err := cl.write(payload); err != nil {
			log.Printf("websocket write error: kind=%s id=%d err=%v", kind, id, err)
			cl.conn.Close()
			if info, ok := h.remove(kind, id, cl.conn); ok {
				h.publishLifecycle(kind, id, info, "ws_error", err.Error())
			}
		}
	}
}

func (h *Hub) publishLifecycle(kind string, resourceID int64, info ConnInfo, event, reason string) {
	observability.IncWSEvent(kind, event)
	if h.lifecycle == nil {
		return
	}

	duration := int64(0)
	if event != "ws_connect" {
		duration = h.now().Sub(info.ConnectedAt).Milliseconds()
	}
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": duration,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}
	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	if err := h.lifecycle.Publish(context.Background(), wsRoutingKey(kind), envelope, headers); err != nil {
		log.Printf("ws lifecycle publish failed: event=%s err=%v", event, err)
	}
}

func wsRoutingKey(kind string) string {
	if kind == kindChat {
		return "ws_events.chats"
	}
	return "ws_events.users"
}
