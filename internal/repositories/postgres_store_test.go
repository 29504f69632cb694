package repositories

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"matchmaking-service/internal/db"
	"matchmaking-service/internal/models"
)

func setupPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())
	database, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestPostgresStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	database := setupPostgres(t)
	store := NewPostgresStore(database)
	ctx := context.Background()

	ids := seedUsers(t, store, "ann", "bob", "cat", "dan", "eve")

	t.Run("duplicate entry maps to ErrEntryExists", func(t *testing.T) {
		require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
			_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[0], Status: models.QueueStatusWaiting})
			return err
		}))
		err := store.WithinTx(ctx, func(r Repos) error {
			_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[0], Status: models.QueueStatusWaiting})
			return err
		})
		require.ErrorIs(t, err, ErrEntryExists)
	})

	t.Run("rollback discards writes", func(t *testing.T) {
		err := store.WithinTx(ctx, func(r Repos) error {
			if _, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: ids[1], Status: models.QueueStatusWaiting}); err != nil {
				return err
			}
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		err = store.View(ctx, func(r Repos) error {
			_, err := r.Queue.GetEntry(ctx, ids[1])
			return err
		})
		require.ErrorIs(t, err, ErrEntryNotFound)
	})

	t.Run("excluded users are never claimed", func(t *testing.T) {
		err := store.WithinTx(ctx, func(r Repos) error {
			_, err := r.Queue.ClaimOldestWaiting(ctx, ids[2], []int64{ids[0]})
			return err
		})
		require.ErrorIs(t, err, ErrNoCandidate)
	})

	t.Run("concurrent claims win at most once", func(t *testing.T) {
		var wg sync.WaitGroup
		results := make(chan error, 2)
		for _, requester := range []int64{ids[1], ids[2]} {
			wg.Add(1)
			go func(requester int64) {
				defer wg.Done()
				results <- store.WithinTx(ctx, func(r Repos) error {
					_, err := r.Queue.ClaimOldestWaiting(ctx, requester, nil)
					time.Sleep(50 * time.Millisecond)
					return err
				})
			}(requester)
		}
		wg.Wait()
		close(results)

		wins := 0
		for err := range results {
			if err == nil {
				wins++
				continue
			}
			require.ErrorIs(t, err, ErrNoCandidate)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("history upsert increments count", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
			if err := r.Users.RecordMatch(ctx, ids[1], ids[2], now); err != nil {
				return err
			}
			return r.Users.RecordMatch(ctx, ids[1], ids[2], now.Add(time.Second))
		}))

		var user models.User
		require.NoError(t, store.View(ctx, func(r Repos) error {
			var err error
			user, err = r.Users.GetUser(ctx, ids[1])
			return err
		}))
		assert.Equal(t, models.MatchCount{ids[2]: 2}, user.MatchCount())
	})

	t.Run("waiting delete loses to a committed claim", func(t *testing.T) {
		dan, eve := ids[3], ids[4]
		require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
			_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: dan, Status: models.QueueStatusWaiting})
			return err
		}))

		claimed := make(chan struct{})
		release := make(chan struct{})
		claimDone := make(chan error, 1)
		go func() {
			claimDone <- store.WithinTx(ctx, func(r Repos) error {
				entry, err := r.Queue.ClaimOldestWaiting(ctx, eve, []int64{ids[0]})
				if err != nil {
					return err
				}
				if entry.UserID != dan {
					return fmt.Errorf("claimed %d, want %d", entry.UserID, dan)
				}
				close(claimed)
				<-release
				partner := dan
				_, err = r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: eve, Status: models.QueueStatusMatched, MatchedWith: &partner})
				return err
			})
		}()
		<-claimed

		type deleteResult struct {
			deleted bool
			err     error
		}
		deleteDone := make(chan deleteResult, 1)
		go func() {
			var res deleteResult
			res.err = store.WithinTx(ctx, func(r Repos) error {
				var err error
				res.deleted, err = r.Queue.DeleteWaitingEntry(ctx, dan)
				return err
			})
			deleteDone <- res
		}()

		// the delete blocks on the claimed row until the claim commits
		time.Sleep(100 * time.Millisecond)
		close(release)
		require.NoError(t, <-claimDone)

		res := <-deleteDone
		require.NoError(t, res.err)
		assert.False(t, res.deleted)

		require.NoError(t, store.View(ctx, func(r Repos) error {
			entry, err := r.Queue.GetEntry(ctx, dan)
			if err != nil {
				return err
			}
			assert.Equal(t, models.QueueStatusMatched, entry.Status)
			assert.Equal(t, eve, entry.Partner())
			return nil
		}))
	})

	t.Run("view reads one snapshot", func(t *testing.T) {
		cat := ids[2]
		require.NoError(t, store.WithinTx(ctx, func(r Repos) error {
			_, err := r.Queue.InsertEntry(ctx, models.QueueEntry{UserID: cat, Status: models.QueueStatusWaiting})
			return err
		}))

		err := store.View(ctx, func(r Repos) error {
			before, err := r.Queue.GetEntry(ctx, cat)
			if err != nil {
				return err
			}
			if err := store.WithinTx(ctx, func(w Repos) error {
				return w.Queue.DeleteEntry(ctx, cat)
			}); err != nil {
				return err
			}
			after, err := r.Queue.GetEntry(ctx, cat)
			if err != nil {
				return err
			}
			assert.Equal(t, before.Status, after.Status)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("view rejects writes", func(t *testing.T) {
		err := store.View(ctx, func(r Repos) error {
			_, err := r.Users.CreateUser(ctx, "readonly")
			return err
		})
		require.Error(t, err)
	})
}
