package models

import "time"

// User is an identity record together with its matchmaking history.
type User struct {
	ID        int64         `db:"id" json:"id"`
	Username  string        `db:"username" json:"username"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	History   []MatchRecord `db:"-" json:"match_history"`
}

// MatchRecord is one partner in a user's match history.
type MatchRecord struct {
	UserID        int64     `db:"user_id" json:"-"`
	PartnerID     int64     `db:"partner_id" json:"partner_id"`
	Count         int       `db:"match_count" json:"match_count"`
	LastMatchedAt time.Time `db:"last_matched_at" json:"last_matched_at"`
}

// MatchCount maps a partner id to the number of times the pair was matched.
type MatchCount map[int64]int

// Partners returns the ids of every previously matched user.
func (u User) Partners() []int64 {
	ids := make([]int64, 0, len(u.History))
	for _, rec := range u.History {
		ids = append(ids, rec.PartnerID)
	}
	return ids
}

// MatchCount builds the per-partner counter from the history.
func (u User) MatchCount() MatchCount {
	counts := make(MatchCount, len(u.History))
	for _, rec := range u.History {
		counts[rec.PartnerID] = rec.Count
	}
	return counts
}

// HasMatched reports whether partnerID appears in the history.
func (u User) HasMatched(partnerID int64) bool {
	for _, rec := range u.History {
		if rec.PartnerID == partnerID {
			return true
		}
	}
	return false
}
