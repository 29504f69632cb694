package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"matchmaking-service/internal/models"
)

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db sqlx.ExtContext
}

// Create stores a notification.
func (r *NotificationRepo) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	var created models.Notification
	err := sqlx.GetContext(ctx, r.db, &created, `INSERT INTO notifications (user_id, kind, message, related_user_id)
        VALUES ($1, $2, $3, $4) RETURNING id, user_id, kind, message, related_user_id, read, created_at`,
		n.UserID, n.Kind, n.Message, n.RelatedUserID)
	return created, err
}

// ListForUser returns the newest notifications first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error) {
	var list []models.Notification
	err := sqlx.SelectContext(ctx, r.db, &list, `SELECT id, user_id, kind, message, related_user_id, read, created_at
        FROM notifications WHERE user_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	return list, err
}

// MarkRead flags a notification owned by userID as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID int64, userID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id=$1 AND user_id=$2`, notificationID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
