package models

import "time"

// Chat is a private conversation between two previously matched users.
type Chat struct {
	ID        int64     `db:"id" json:"id"`
	User1ID   int64     `db:"user1_id" json:"user1_id"`
	User2ID   int64     `db:"user2_id" json:"user2_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether userID is one of the two members.
func (c Chat) HasParticipant(userID int64) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// ChatSummary is the per-user view of a chat.
type ChatSummary struct {
	ChatID    int64     `json:"chat_id"`
	PartnerID int64     `json:"partner_id"`
	Created   time.Time `json:"created_at"`
}
