package matchmaking

import (
	"context"
	"log"
	"time"

	"matchmaking-service/internal/models"
)

type matchedPayload struct {
	State models.QueueStatus `json:"state"`
	Users []int64            `json:"users"`
}

type queuePayload struct {
	State models.QueueStatus `json:"state"`
	User  int64              `json:"user"`
}

type proposalPayload struct {
	ProposedBy   int64     `json:"proposed_by"`
	ProposedDate time.Time `json:"proposed_date"`
}

type appointmentPayload struct {
	Appointment *time.Time `json:"appointment,omitempty"`
	By          int64      `json:"by,omitempty"`
}

// publish hands the event to the fan-out layer once the store has committed.
func (s *Service) publish(ctx context.Context, participants []int64, event models.EventName, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.WithoutCancel(ctx), participants, event, payload); err != nil {
		log.Printf("fanout publish failed: event=%s participants=%v err=%v", event, participants, err)
	}
}
