package models

import "time"

// EventName identifies a fan-out event.
type EventName string

const (
	EventMatched              EventName = "matched"
	EventQueueUpdated         EventName = "queue-updated"
	EventDateProposed         EventName = "date-proposed"
	EventAppointmentBooked    EventName = "appointment-booked"
	EventAppointmentSkipped   EventName = "appointment-skipped"
	EventAppointmentConfirmed EventName = "appointment-confirmed"
)

// Event is delivered to the channels of its participants.
type Event struct {
	Name         EventName `json:"event"`
	Participants []int64   `json:"participants"`
	Payload      any       `json:"payload,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
