package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"matchmaking-service/internal/models"
)

const entryColumns = `user_id, status, matched_with, proposed_date, confirmed_appointment, created_at, updated_at, seq`

// QueueRepo is a sqlx implementation of QueueRepository.
type QueueRepo struct {
	db sqlx.ExtContext
}

// GetEntry fetches the entry owned by userID.
func (r *QueueRepo) GetEntry(ctx context.Context, userID int64) (models.QueueEntry, error) {
	var entry models.QueueEntry
	err := sqlx.GetContext(ctx, r.db, &entry, `SELECT `+entryColumns+` FROM queue_entries WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueueEntry{}, ErrEntryNotFound
	}
	return entry, err
}

// LockEntries selects the entries of ids FOR UPDATE in user id order.
func (r *QueueRepo) LockEntries(ctx context.Context, ids ...int64) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := sqlx.SelectContext(ctx, r.db, &entries, `SELECT `+entryColumns+` FROM queue_entries
        WHERE user_id = ANY($1) ORDER BY user_id FOR UPDATE`, pq.Array(nonNil(ids)))
	return entries, err
}

// ClaimOldestWaiting is the single conditional update that pairs a requester with a
// waiting entry. Rows locked by concurrent claimers are skipped.
func (r *QueueRepo) ClaimOldestWaiting(ctx context.Context, requesterID int64, exclude []int64) (models.QueueEntry, error) {
	query := `UPDATE queue_entries SET status = 'matched', matched_with = $1, updated_at = NOW()
        WHERE user_id = (
            SELECT user_id FROM queue_entries
            WHERE status = 'waiting' AND user_id <> $1 AND NOT (user_id = ANY($2))
            ORDER BY created_at ASC, seq ASC
            LIMIT 1
            FOR UPDATE SKIP LOCKED
        ) AND status = 'waiting'
        RETURNING ` + entryColumns
	var entry models.QueueEntry
	err := sqlx.GetContext(ctx, r.db, &entry, query, requesterID, pq.Array(nonNil(exclude)))
	if errors.Is(err, sql.ErrNoRows) {
		return models.QueueEntry{}, ErrNoCandidate
	}
	return entry, err
}

// InsertEntry creates the user's entry. A second entry for the same user fails with ErrEntryExists.
func (r *QueueRepo) InsertEntry(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error) {
	var created models.QueueEntry
	err := sqlx.GetContext(ctx, r.db, &created, `INSERT INTO queue_entries (user_id, status, matched_with, proposed_date, confirmed_appointment)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+entryColumns,
		entry.UserID, entry.Status, entry.MatchedWith, entry.ProposedDate, entry.ConfirmedAppointment)
	if isUniqueViolation(err) {
		return models.QueueEntry{}, ErrEntryExists
	}
	return created, err
}

// UpdateEntry overwrites the mutable fields of an entry.
func (r *QueueRepo) UpdateEntry(ctx context.Context, entry models.QueueEntry) error {
	res, err := r.db.ExecContext(ctx, `UPDATE queue_entries
        SET status=$2, matched_with=$3, proposed_date=$4, confirmed_appointment=$5, updated_at=NOW()
        WHERE user_id=$1`, entry.UserID, entry.Status, entry.MatchedWith, entry.ProposedDate, entry.ConfirmedAppointment)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteEntry removes the user's entry.
func (r *QueueRepo) DeleteEntry(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE user_id=$1`, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// DeleteWaitingEntry is a conditional delete; a row claimed by a concurrent
// requester is left alone.
func (r *QueueRepo) DeleteWaitingEntry(ctx context.Context, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM queue_entries WHERE user_id=$1 AND status='waiting'`, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// pq.Array encodes a nil slice as NULL, which ANY() never matches.
func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
