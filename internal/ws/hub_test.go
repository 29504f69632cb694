package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchmaking-service/internal/models"
	"matchmaking-service/internal/observability"
)

type recordedEnvelope struct {
	routingKey string
	envelope   observability.EventEnvelope
}

type lifecycleRecorder struct {
	mu        sync.Mutex
	envelopes []recordedEnvelope
}

func (r *lifecycleRecorder) Publish(_ context.Context, routingKey string, event any, _ map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, recordedEnvelope{routingKey: routingKey, envelope: event.(observability.EventEnvelope)})
	return nil
}

func (r *lifecycleRecorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.envelopes {
		out = append(out, e.envelope.EventName)
	}
	return out
}

type staticValidator map[string]int64

func (v staticValidator) ValidateToken(token string) (int64, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return 0, assert.AnError
}

func TestHubAddAndRemoveClients(t *testing.T) {
	hub := NewHub(nil)

	hub.AddChatClient(1, nil, ConnInfo{})
	hub.AddUserClient(7, nil, ConnInfo{})
	assert.Len(t, hub.chatRooms, 1)
	assert.Len(t, hub.userRooms, 1)

	hub.RemoveChatClient(1, nil)
	hub.RemoveUserClient(7, nil)
	assert.Empty(t, hub.chatRooms)
	assert.Empty(t, hub.userRooms)

	// removing an unknown connection is harmless
	hub.RemoveUserClient(7, nil)
}

func dialEvents(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubPublishReachesParticipantChannels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lifecycle := &lifecycleRecorder{}
	hub := NewHub(lifecycle)
	validator := staticValidator{"t1": 1, "t2": 2, "t3": 3}

	r := gin.New()
	r.GET("/ws/events", NewEventsWebSocketHandler(hub, validator).Handle)
	srv := httptest.NewServer(r)
	defer srv.Close()

	c1 := dialEvents(t, srv, "t1")
	c2 := dialEvents(t, srv, "t2")
	c3 := dialEvents(t, srv, "t3")

	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.userRooms) == 3
	}, time.Second, 10*time.Millisecond)

	err := hub.Publish(context.Background(), []int64{1, 2}, models.EventMatched, map[string]any{"state": "matched"})
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{c1, c2} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var got models.Event
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, models.EventMatched, got.Name)
		assert.Equal(t, []int64{1, 2}, got.Participants)
	}

	require.NoError(t, c3.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = c3.ReadMessage()
	assert.Error(t, err, "non-participants receive nothing")

	require.Eventually(t, func() bool {
		return len(lifecycle.names()) >= 3
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, lifecycle.names(), "ws_connect")
	lifecycle.mu.Lock()
	assert.Equal(t, "ws_events.users", lifecycle.envelopes[0].routingKey)
	lifecycle.mu.Unlock()
}

func TestEventsHandlerRejectsInvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws/events", NewEventsWebSocketHandler(NewHub(nil), staticValidator{}).Handle)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/events?token=nope", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		header, query, want string
	}{
		{header: "Bearer abc", want: "abc"},
		{header: "bearer abc", want: "abc"},
		{header: "Basic abc", want: ""},
		{query: "xyz", want: "xyz"},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?token="+tc.query, nil)
		if tc.header != "" {
			c.Request.Header.Set("Authorization", tc.header)
		}
		assert.Equal(t, tc.want, tokenFromRequest(c))
	}
}
