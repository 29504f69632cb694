package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"matchmaking-service/internal/models"
)

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db sqlx.ExtContext
}

// CreateUser inserts an identity record with an empty history.
func (r *UserRepo) CreateUser(ctx context.Context, username string) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, `INSERT INTO users (username) VALUES ($1) RETURNING id, username, created_at`, username)
	if isUniqueViolation(err) {
		return models.User{}, ErrUsernameTaken
	}
	return user, err
}

// GetUser loads the user and its history, most recent partner first.
func (r *UserRepo) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	err := sqlx.GetContext(ctx, r.db, &user, `SELECT id, username, created_at FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}

	err = sqlx.SelectContext(ctx, r.db, &user.History, `SELECT user_id, partner_id, match_count, last_matched_at
        FROM user_match_history WHERE user_id=$1
        ORDER BY last_matched_at DESC, partner_id ASC`, userID)
	return user, err
}

// RecordMatch adds partnerID to the user's history or bumps its count.
func (r *UserRepo) RecordMatch(ctx context.Context, userID int64, partnerID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_match_history (user_id, partner_id, match_count, last_matched_at)
        VALUES ($1, $2, 1, $3)
        ON CONFLICT (user_id, partner_id) DO UPDATE
        SET match_count = user_match_history.match_count + 1, last_matched_at = EXCLUDED.last_matched_at`, userID, partnerID, at)
	return err
}

// ResetHistory drops every history row of the user.
func (r *UserRepo) ResetHistory(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM user_match_history WHERE user_id=$1`, userID)
	return err
}
