package matchmaking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchmaking-service/internal/models"
	"matchmaking-service/internal/repositories"
)

func TestClaimWithRetryStopsOnWin(t *testing.T) {
	calls := 0
	entry, attempts, err := claimWithRetry(context.Background(), MaxClaimRetries, func(context.Context) (models.QueueEntry, error) {
		calls++
		if calls < 2 {
			return models.QueueEntry{}, repositories.ErrNoCandidate
		}
		return models.QueueEntry{UserID: 7}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), entry.UserID)
	assert.Equal(t, 2, attempts)
}

func TestClaimWithRetryExhaustsBudget(t *testing.T) {
	calls := 0
	_, attempts, err := claimWithRetry(context.Background(), MaxClaimRetries, func(context.Context) (models.QueueEntry, error) {
		calls++
		return models.QueueEntry{}, repositories.ErrNoCandidate
	})

	require.ErrorIs(t, err, repositories.ErrNoCandidate)
	assert.Equal(t, MaxClaimRetries, calls)
	assert.Equal(t, MaxClaimRetries, attempts)
}

func TestClaimWithRetryReturnsStoreErrorsImmediately(t *testing.T) {
	calls := 0
	_, attempts, err := claimWithRetry(context.Background(), MaxClaimRetries, func(context.Context) (models.QueueEntry, error) {
		calls++
		return models.QueueEntry{}, assert.AnError
	})

	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, attempts)
}

func TestClaimWithRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := claimWithRetry(ctx, MaxClaimRetries, func(context.Context) (models.QueueEntry, error) {
		calls++
		cancel()
		return models.QueueEntry{}, repositories.ErrNoCandidate
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
