package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchmaking-service/internal/models"
)

func seedUsers(t *testing.T, store Store, names ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(names))
	require.NoError(t, store.WithinTx(context.Background(), func(r Repos) error {
		for _, name := range names {
			u, err := r.Users.CreateUser(context.Background(), name)
			if err != nil {
				return err
			}
			ids = append(ids, u.ID)
		}
		return nil
	}))
	return ids
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewMemoryStore()
	ids := seedUsers(t, store, "ann")
	ctx := context.Background()

	err := store.WithinTx(ctx, func(r Repos) error {
		if _, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[0], Status: models.QueueStatusWaiting}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	err = store.View(ctx, func(r Repos) error {
		_, err := r.Queue.GetEntry(ctx, ids[0])
		return err
	})
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestMemoryStoreInsertEntryRejectsDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ids := seedUsers(t, store, "ann")
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[0], Status: models.QueueStatusWaiting})
		return err
	}))

	err := store.WithinTx(ctx, func(r Repos) error {
		_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[0], Status: models.QueueStatusWaiting})
		return err
	})
	require.ErrorIs(t, err, ErrEntryExists)
}

func TestMemoryStoreClaimsOldestEligible(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := base
	store.SetClock(func() time.Time { return tick })
	ids := seedUsers(t, store, "ann", "bob", "cat", "dan")
	ctx := context.Background()

	// bob and cat share a timestamp; arrival order breaks the tie
	for i, id := range ids[:3] {
		if i == 1 {
			tick = base.Add(time.Minute)
		}
		id := id
		require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
			_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: id, Status: models.QueueStatusWaiting})
			return err
		}))
	}

	var claimed models.QueueEntry
	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		var err error
		claimed, err = r.Queue.ClaimOldestWaiting(ctx, ids[3], []int64{ids[0]})
		return err
	}))

	assert.Equal(t, ids[1], claimed.UserID)
	assert.Equal(t, models.QueueStatusMatched, claimed.Status)
	assert.Equal(t, ids[3], claimed.Partner())
}

func TestMemoryStoreClaimWithoutCandidate(t *testing.T) {
	store := NewMemoryStore()
	ids := seedUsers(t, store, "ann")
	ctx := context.Background()

	err := store.WithinTx(ctx, func(r Repos) error {
		_, err := r.Queue.ClaimOldestWaiting(ctx, ids[0], nil)
		return err
	})
	require.ErrorIs(t, err, ErrNoCandidate)
}

func TestMemoryStoreRecordMatchCountsAndOrders(t *testing.T) {
	store := NewMemoryStore()
	ids := seedUsers(t, store, "ann", "bob", "cat")
	ctx := context.Background()
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		if err := r.Users.RecordMatch(ctx, ids[0], ids[1], first); err != nil {
			return err
		}
		if err := r.Users.RecordMatch(ctx, ids[0], ids[2], first.Add(time.Hour)); err != nil {
			return err
		}
		return r.Users.RecordMatch(ctx, ids[0], ids[1], first.Add(2*time.Hour))
	}))

	var user models.User
	require.NoError(t, store.View(ctx, func(r Repos) error {
		var err error
		user, err = r.Users.GetUser(ctx, ids[0])
		return err
	}))

	assert.Equal(t, []int64{ids[1], ids[2]}, user.Partners())
	assert.Equal(t, models.MatchCount{ids[1]: 2, ids[2]: 1}, user.MatchCount())

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		return r.Users.ResetHistory(ctx, ids[0])
	}))
	require.NoError(t, store.View(ctx, func(r Repos) error {
		var err error
		user, err = r.Users.GetUser(ctx, ids[0])
		return err
	}))
	assert.Empty(t, user.History)
}

func TestMemoryStoreNotifications(t *testing.T) {
	store := NewMemoryStore()
	ids := seedUsers(t, store, "ann", "bob")
	ctx := context.Background()

	var created models.Notification
	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		var err error
		created, err = r.Notifications.Create(ctx, models.Notification{UserID: ids[0], Kind: models.NotificationMatched, Message: "hi"})
		return err
	}))

	err := store.WithinTx(ctx, func(r Repos) error {
		return r.Notifications.MarkRead(ctx, created.ID, ids[1])
	})
	require.ErrorIs(t, err, ErrNotificationNotFound)

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		return r.Notifications.MarkRead(ctx, created.ID, ids[0])
	}))

	var list []models.Notification
	require.NoError(t, store.View(ctx, func(r Repos) error {
		var err error
		list, err = r.Notifications.ListForUser(ctx, ids[0], 10)
		return err
	}))
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestMemoryStoreDeleteWaitingEntrySkipsClaimedRows(t *testing.T) {
	store := NewMemoryStore()
	ids := seedUsers(t, store, "ann", "bob")
	ctx := context.Background()

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		if _, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[0], Status: models.QueueStatusWaiting}); err != nil {
			return err
		}
		_, err := r.Queue.ClaimOldestWaiting(ctx, ids[1], nil)
		return err
	}))

	var deleted bool
	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		var err error
		deleted, err = r.Queue.DeleteWaitingEntry(ctx, ids[0])
		return err
	}))
	assert.False(t, deleted)

	require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
		var err error
		deleted, err = r.Queue.DeleteWaitingEntry(ctx, ids[1])
		return err
	}))
	assert.False(t, deleted)

	require.NoError(t, store.View(ctx, func(r Repos) error {
		entry, err := r.Queue.GetEntry(ctx, ids[0])
		if err != nil {
			return err
		}
		assert.Equal(t, models.QueueStatusMatched, entry.Status)
		return nil
	}))
}
