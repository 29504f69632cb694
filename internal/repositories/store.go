package repositories

import (
	"context"
	"errors"
	"time"

	"matchmaking-service/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrEntryNotFound        = errors.New("queue entry not found")
	ErrEntryExists          = errors.New("queue entry already exists")
	ErrNoCandidate          = errors.New("no eligible waiting entry")
	ErrNotificationNotFound = errors.New("notification not found")
)

// UserRepository reads and writes identity records and match history.
type UserRepository interface {
	CreateUser(ctx context.Context, username string) (models.User, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	RecordMatch(ctx context.Context, userID int64, partnerID int64, at time.Time) error
	ResetHistory(ctx context.Context, userID int64) error
}

// QueueRepository manages the one-per-user queue entries.
type QueueRepository interface {
	GetEntry(ctx context.Context, userID int64) (models.QueueEntry, error)
	// LockEntries returns the existing entries for ids, locked for the rest of the
	// transaction, ordered by user id.
	LockEntries(ctx context.Context, ids ...int64) ([]models.QueueEntry, error)
	// ClaimOldestWaiting flips the oldest waiting entry not owned by requesterID or
	// any excluded user to matched with requesterID. It returns ErrNoCandidate when
	// nothing could be claimed.
	ClaimOldestWaiting(ctx context.Context, requesterID int64, exclude []int64) (models.QueueEntry, error)
	InsertEntry(ctx context.Context, entry models.QueueEntry) (models.QueueEntry, error)
	UpdateEntry(ctx context.Context, entry models.QueueEntry) error
	DeleteEntry(ctx context.Context, userID int64) error
	// DeleteWaitingEntry removes the user's entry only while it is still waiting and
	// reports whether a row was removed.
	DeleteWaitingEntry(ctx context.Context, userID int64) (bool, error)
}

// NotificationRepository persists per-user notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	ListForUser(ctx context.Context, userID int64, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID int64, userID int64) error
}

// Repos bundles the repositories bound to one transaction or read view.
type Repos struct {
	Users         UserRepository
	Queue         QueueRepository
	Notifications NotificationRepository
}

// Store runs repository work atomically.
type Store interface {
	// WithinTx commits the writes of fn only if it returns nil.
	WithinTx(ctx context.Context, fn func(Repos) error) error
	// View runs read-only work.
	View(ctx context.Context, fn func(Repos) error) error
}
