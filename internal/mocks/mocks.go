package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"matchmaking-service/internal/models"
	"matchmaking-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID int64, partnerID int64) (models.Chat, error) {
	args := m.Called(ctx, userID, partnerID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) HideChatForUser(ctx context.Context, chatID int64, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) UnhideChatForUser(ctx context.Context, chatID int64, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateChatMessage(ctx context.Context, chatID int64, senderID int64, content string) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetChatMessagesForUser(ctx context.Context, chatID int64, userID int64) ([]models.Message, error) {
	args := m.Called(ctx, chatID, userID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessageForUser(ctx context.Context, messageID int64, isSender bool) error {
	args := m.Called(ctx, messageID, isSender)
	return args.Error(0)
}

func (m *MessageRepositoryMock) DeleteMessageForAll(ctx context.Context, messageID int64, userID int64) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

type MatchServiceMock struct {
	mock.Mock
}

func (m *MatchServiceMock) RegisterUser(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *MatchServiceMock) BookCall(ctx context.Context, userID int64) (models.BookResult, error) {
	args := m.Called(ctx, userID)
	var res models.BookResult
	if val := args.Get(0); val != nil {
		res = val.(models.BookResult)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) GetCurrentMatch(ctx context.Context, userID int64) (models.CurrentMatch, error) {
	args := m.Called(ctx, userID)
	var res models.CurrentMatch
	if val := args.Get(0); val != nil {
		res = val.(models.CurrentMatch)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) ResetMatches(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MatchServiceMock) CancelRequest(ctx context.Context, userID int64) (models.StateResult, error) {
	args := m.Called(ctx, userID)
	var res models.StateResult
	if val := args.Get(0); val != nil {
		res = val.(models.StateResult)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) ProposeOrUpdateDate(ctx context.Context, userID int64, date string) (models.ProposalResult, error) {
	args := m.Called(ctx, userID, date)
	var res models.ProposalResult
	if val := args.Get(0); val != nil {
		res = val.(models.ProposalResult)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) ConfirmAppointment(ctx context.Context, userID int64) (models.StateResult, error) {
	args := m.Called(ctx, userID)
	var res models.StateResult
	if val := args.Get(0); val != nil {
		res = val.(models.StateResult)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) SkipAppointment(ctx context.Context, userID int64) (models.StateResult, error) {
	args := m.Called(ctx, userID)
	var res models.StateResult
	if val := args.Get(0); val != nil {
		res = val.(models.StateResult)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) GetDateProposalStatus(ctx context.Context, userID int64) (models.ProposalStatus, error) {
	args := m.Called(ctx, userID)
	var res models.ProposalStatus
	if val := args.Get(0); val != nil {
		res = val.(models.ProposalStatus)
	}
	return res, args.Error(1)
}

func (m *MatchServiceMock) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	args := m.Called(ctx, userID)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *MatchServiceMock) MarkNotificationRead(ctx context.Context, userID int64, notificationID int64) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

func (m *MatchServiceMock) HaveMatched(ctx context.Context, userID int64, otherID int64) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
