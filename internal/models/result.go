package models

import "time"

// BookResult is returned by a match request.
type BookResult struct {
	State   QueueStatus `json:"state"`
	Partner *int64      `json:"partner,omitempty"`
}

// ActiveState describes the entry that blocked a new match request.
type ActiveState struct {
	Status  QueueStatus `json:"status"`
	Partner *int64      `json:"partner,omitempty"`
}

// CurrentMatch holds either the active partner or the history fallback.
type CurrentMatch struct {
	Status  QueueStatus   `json:"status,omitempty"`
	Partner *int64        `json:"partner,omitempty"`
	History []MatchRecord `json:"match_history,omitempty"`
}

// ProposalResult is returned after a date proposal.
type ProposalResult struct {
	State             QueueStatus `json:"state"`
	MyProposedDate    *time.Time  `json:"my_proposed_date,omitempty"`
	TheirProposedDate *time.Time  `json:"their_proposed_date,omitempty"`
	Appointment       *time.Time  `json:"appointment,omitempty"`
}

// ProposalStatus is a read-only snapshot of a negotiation.
type ProposalStatus struct {
	Status               QueueStatus `json:"status"`
	MatchedWith          *int64      `json:"matched_with,omitempty"`
	MyProposedDate       *time.Time  `json:"my_proposed_date"`
	TheirProposedDate    *time.Time  `json:"their_proposed_date"`
	ConfirmedAppointment *time.Time  `json:"confirmed_appointment,omitempty"`
}

// StateResult is returned by operations that end a pairing.
type StateResult struct {
	State QueueStatus `json:"state"`
}
