package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"matchmaking-service/internal/middleware"
	"matchmaking-service/internal/mocks"
	"matchmaking-service/internal/models"
	"matchmaking-service/internal/repositories"
	"matchmaking-service/internal/ws"
)

func setupChatRouter(handler *ChatHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, int64(1))
		c.Next()
	})
	handler.RegisterRoutes(r)
	return r
}

func TestListChatsSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListChats", mock.Anything, int64(1)).Return([]models.ChatSummary{{ChatID: 3, PartnerID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Chats []models.ChatSummary `json:"chats"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Chats, 1)
	assert.Equal(t, int64(2), resp.Chats[0].PartnerID)
	chatRepo.AssertExpectations(t)
}

func TestListChatsRepoError(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, nil, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("ListChats", mock.Anything, int64(1)).Return(([]models.ChatSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	chatRepo.AssertExpectations(t)
}

func TestStartChatSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	history := new(mocks.MatchServiceMock)
	handler := NewChatHandler(chatRepo, nil, history, nil, nil)
	router := setupChatRouter(handler)

	history.On("HaveMatched", mock.Anything, int64(1), int64(2)).Return(true, nil).Once()
	chatRepo.On("CreateOrGetChat", mock.Anything, int64(1), int64(2)).Return(models.Chat{ID: 10}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"partner_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"chat_id":10}`, rec.Body.String())
	history.AssertExpectations(t)
	chatRepo.AssertExpectations(t)
}

func TestStartChatRequiresMatchHistory(t *testing.T) {
	history := new(mocks.MatchServiceMock)
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), nil, history, nil, nil)
	router := setupChatRouter(handler)

	history.On("HaveMatched", mock.Anything, int64(1), int64(5)).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"partner_id":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	history.AssertExpectations(t)
}

func TestStartChatWithSelf(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), nil, new(mocks.MatchServiceMock), nil, nil)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/chats/start", bytes.NewBufferString(`{"partner_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChatMessagesSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	messageRepo.On("GetChatMessagesForUser", mock.Anything, int64(5), int64(1)).Return([]models.Message{{ID: 1, ChatID: 5, SenderID: 1}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestGetChatMessagesNotMember(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, User1ID: 3, User2ID: 4}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chats/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetChatMessagesInvalidID(t *testing.T) {
	handler := NewChatHandler(new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock), nil, nil, nil)
	router := setupChatRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/chats/abc/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostChatMessageSuccess(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	hub := ws.NewHub(nil)
	handler := NewChatHandler(chatRepo, messageRepo, nil, hub, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	messageRepo.On("CreateChatMessage", mock.Anything, int64(5), int64(1), "hi").Return(models.Message{ID: 7, ChatID: 5, SenderID: 1, Content: "hi"}, nil).Once()
	chatRepo.On("UnhideChatForUser", mock.Anything, int64(5), int64(1)).Return(nil).Once()
	chatRepo.On("UnhideChatForUser", mock.Anything, int64(5), int64(2)).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestPostChatMessageChatNotFound(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	handler := NewChatHandler(chatRepo, new(mocks.MessageRepositoryMock), nil, ws.NewHub(nil), nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, int64(8)).Return(nil, repositories.ErrChatNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/chats/8/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMessageForAllOnlySender(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, ws.NewHub(nil), nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Twice()
	messageRepo.On("GetMessage", mock.Anything, int64(7)).Return(models.Message{ID: 7, ChatID: 5, SenderID: 2}, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(8)).Return(models.Message{ID: 8, ChatID: 5, SenderID: 1}, nil).Once()
	messageRepo.On("DeleteMessageForAll", mock.Anything, int64(8), int64(1)).Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/chats/5/messages/7/all", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/chats/5/messages/8/all", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	chatRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
}

func TestDeleteMessageForMe(t *testing.T) {
	chatRepo := new(mocks.ChatRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	handler := NewChatHandler(chatRepo, messageRepo, nil, nil, nil)
	router := setupChatRouter(handler)

	chatRepo.On("GetChat", mock.Anything, int64(5)).Return(models.Chat{ID: 5, User1ID: 1, User2ID: 2}, nil).Once()
	messageRepo.On("GetMessage", mock.Anything, int64(7)).Return(models.Message{ID: 7, ChatID: 5, SenderID: 2}, nil).Once()
	messageRepo.On("SoftDeleteMessageForUser", mock.Anything, int64(7), false).Return(nil).Once()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/chats/5/messages/7/me", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	messageRepo.AssertExpectations(t)
}
