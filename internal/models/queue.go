package models

import "time"

// QueueStatus is the matchmaking state of a queue entry.
type QueueStatus string

const (
	QueueStatusIdle    QueueStatus = "idle"
	QueueStatusWaiting QueueStatus = "waiting"
	QueueStatusMatched QueueStatus = "matched"
	QueueStatusBooked  QueueStatus = "booked"
)

// Active reports whether the status blocks a new match request.
func (s QueueStatus) Active() bool {
	return s == QueueStatusWaiting || s == QueueStatusMatched || s == QueueStatusBooked
}

// Paired reports whether the status carries a partner.
func (s QueueStatus) Paired() bool {
	return s == QueueStatusMatched || s == QueueStatusBooked
}

// QueueEntry is the single matchmaking record a user may own.
type QueueEntry struct {
	UserID               int64       `db:"user_id" json:"user_id"`
	Status               QueueStatus `db:"status" json:"status"`
	MatchedWith          *int64      `db:"matched_with" json:"matched_with,omitempty"`
	ProposedDate         *time.Time  `db:"proposed_date" json:"proposed_date,omitempty"`
	ConfirmedAppointment *time.Time  `db:"confirmed_appointment" json:"confirmed_appointment,omitempty"`
	CreatedAt            time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at" json:"updated_at"`
	Seq                  int64       `db:"seq" json:"-"`
}

// Partner returns the matched user id, or zero.
func (e QueueEntry) Partner() int64 {
	if e.MatchedWith == nil {
		return 0
	}
	return *e.MatchedWith
}

// Reset clears the pairing and negotiation fields and marks the entry idle.
func (e *QueueEntry) Reset() {
	e.Status = QueueStatusIdle
	e.MatchedWith = nil
	e.ProposedDate = nil
	e.ConfirmedAppointment = nil
}
