package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"matchmaking-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateChatMessage(ctx context.Context, chatID int64, senderID int64, content string) (models.Message, error)
	GetChatMessagesForUser(ctx context.Context, chatID int64, userID int64) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int64) (models.Message, error)
	SoftDeleteMessageForUser(ctx context.Context, messageID int64, isSender bool) error
	DeleteMessageForAll(ctx context.Context, messageID int64, userID int64) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, sender_id, content, deleted_by_sender, deleted_by_receiver, deleted_for_all, created_at`

// CreateChatMessage stores a message.
func (r *MessageRepo) CreateChatMessage(ctx context.Context, chatID int64, senderID int64, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, content) VALUES ($1, $2, $3) RETURNING `+messageColumns, chatID, senderID, content).
		StructScan(&msg)
	return msg, err
}

// GetChatMessagesForUser returns ordered messages filtered by the user's deletions.
func (r *MessageRepo) GetChatMessagesForUser(ctx context.Context, chatID int64, userID int64) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE chat_id=$1
        AND deleted_for_all = FALSE
        AND NOT (sender_id=$2 AND deleted_by_sender = TRUE)
        AND NOT (sender_id<>$2 AND deleted_by_receiver = TRUE)
        ORDER BY created_at ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, chatID, userID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// SoftDeleteMessageForUser hides a message for the sender or the receiver.
func (r *MessageRepo) SoftDeleteMessageForUser(ctx context.Context, messageID int64, isSender bool) error {
	if isSender {
		_, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted_by_sender = TRUE WHERE id=$1`, messageID)
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted_by_receiver = TRUE WHERE id=$1`, messageID)
	return err
}

// DeleteMessageForAll marks a message deleted for everyone. Only the sender may do it.
func (r *MessageRepo) DeleteMessageForAll(ctx context.Context, messageID int64, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted_for_all = TRUE WHERE id=$1 AND sender_id=$2`, messageID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
