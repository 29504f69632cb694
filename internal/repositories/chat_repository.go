package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"matchmaking-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts follow-on chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int64, partnerID int64) (models.Chat, error)
	GetChat(ctx context.Context, chatID int64) (models.Chat, error)
	ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error)
	HideChatForUser(ctx context.Context, chatID int64, userID int64) error
	UnhideChatForUser(ctx context.Context, chatID int64, userID int64) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateOrGetChat returns the pair's chat, creating it on first use, and makes it
// visible to both members.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int64, partnerID int64) (models.Chat, error) {
	if userID == partnerID {
		return models.Chat{}, errors.New("cannot create chat with self")
	}
	user1, user2 := userID, partnerID
	if user2 < user1 {
		user1, user2 = user2, user1
	}

	var chat models.Chat
	err := r.db.QueryRowxContext(ctx, `INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
        RETURNING id, user1_id, user2_id, created_at`, user1, user2).StructScan(&chat)
	if err != nil {
		return models.Chat{}, err
	}

	if err := r.UnhideChatForUser(ctx, chat.ID, userID); err != nil {
		return models.Chat{}, err
	}
	if err := r.UnhideChatForUser(ctx, chat.ID, partnerID); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT id, user1_id, user2_id, created_at FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns chats visible to the user.
func (r *ChatRepo) ListChats(ctx context.Context, userID int64) ([]models.ChatSummary, error) {
	query := `SELECT c.id, c.user1_id, c.user2_id, c.created_at FROM chats c
        LEFT JOIN chat_visibility cv ON cv.chat_id = c.id AND cv.user_id=$1
        WHERE (c.user1_id=$1 OR c.user2_id=$1) AND (cv.hidden IS NULL OR cv.hidden = FALSE)
        ORDER BY created_at DESC`
	var chats []models.Chat
	if err := r.db.SelectContext(ctx, &chats, query, userID); err != nil {
		return nil, err
	}

	result := make([]models.ChatSummary, 0, len(chats))
	for _, chat := range chats {
		partnerID := chat.User1ID
		if partnerID == userID {
			partnerID = chat.User2ID
		}
		result = append(result, models.ChatSummary{ChatID: chat.ID, PartnerID: partnerID, Created: chat.CreatedAt})
	}
	return result, nil
}

// HideChatForUser marks a chat hidden for the user.
func (r *ChatRepo) HideChatForUser(ctx context.Context, chatID int64, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_visibility (chat_id, user_id, hidden) VALUES ($1, $2, TRUE)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET hidden = EXCLUDED.hidden`, chatID, userID)
	return err
}

// UnhideChatForUser removes the hidden flag for the user.
func (r *ChatRepo) UnhideChatForUser(ctx context.Context, chatID int64, userID int64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO chat_visibility (chat_id, user_id, hidden) VALUES ($1, $2, FALSE)
        ON CONFLICT (chat_id, user_id) DO UPDATE SET hidden = FALSE`, chatID, userID)
	return err
}
