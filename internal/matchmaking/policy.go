package matchmaking

import (
	"time"

	"matchmaking-service/internal/models"
)

// ExclusionPolicy decides which users a requester must not be paired with.
type ExclusionPolicy interface {
	Exclude(user models.User, now time.Time) []int64
}

// HistoryExclusion excludes every user ever matched with the requester.
type HistoryExclusion struct{}

func (HistoryExclusion) Exclude(user models.User, _ time.Time) []int64 {
	return user.Partners()
}

// CooldownExclusion excludes only partners matched within Window.
type CooldownExclusion struct {
	Window time.Duration
}

func (p CooldownExclusion) Exclude(user models.User, now time.Time) []int64 {
	cutoff := now.Add(-p.Window)
	ids := make([]int64, 0, len(user.History))
	for _, rec := range user.History {
		if rec.LastMatchedAt.After(cutoff) {
			ids = append(ids, rec.PartnerID)
		}
	}
	return ids
}

// PolicyFor returns CooldownExclusion for a positive window and HistoryExclusion otherwise.
func PolicyFor(cooldown time.Duration) ExclusionPolicy {
	if cooldown > 0 {
		return CooldownExclusion{Window: cooldown}
	}
	return HistoryExclusion{}
}
