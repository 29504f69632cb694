package matchmaking

import (
	"context"
	"errors"

	"matchmaking-service/internal/models"
	"matchmaking-service/internal/repositories"
)

// MaxClaimRetries bounds the claim attempts of a single match request.
const MaxClaimRetries = 3

type claimFunc func(ctx context.Context) (models.QueueEntry, error)

// claimWithRetry calls claim until it wins an entry, fails with something other than
// repositories.ErrNoCandidate, or maxAttempts is spent. It reports the attempts made.
func claimWithRetry(ctx context.Context, maxAttempts int, claim claimFunc) (models.QueueEntry, int, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		entry, err := claim(ctx)
		if err == nil {
			return entry, attempt, nil
		}
		if !errors.Is(err, repositories.ErrNoCandidate) {
			return models.QueueEntry{}, attempt, err
		}
		if err := ctx.Err(); err != nil {
			return models.QueueEntry{}, attempt, err
		}
	}
	return models.QueueEntry{}, maxAttempts, repositories.ErrNoCandidate
}
