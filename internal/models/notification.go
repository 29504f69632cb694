package models

import "time"

// Notification kinds.
const (
	NotificationMatched              = "matched"
	NotificationAppointmentConfirmed = "appointment_confirmed"
)

// Notification is a persisted message for a single user.
type Notification struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"user_id"`
	Kind          string    `db:"kind" json:"kind"`
	Message       string    `db:"message" json:"message"`
	RelatedUserID *int64    `db:"related_user_id" json:"related_user_id,omitempty"`
	Read          bool      `db:"read" json:"read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
