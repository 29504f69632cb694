package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"matchmaking-service/internal/errs"
	"matchmaking-service/internal/models"
	"matchmaking-service/internal/observability"
	"matchmaking-service/internal/repositories"
)

// Negotiation outcomes reported to metrics.
const (
	outcomeWaitingOnPartner    = "waiting-on-partner"
	outcomeAwaitingConvergence = "awaiting-convergence"
	outcomeBooked              = "booked"
	outcomeConfirmed           = "confirmed"
	outcomeSkipped             = "skipped"
)

// ParseProposedDate accepts an RFC 3339 timestamp and normalizes it to UTC at
// microsecond precision, the resolution of stored timestamps.
func ParseProposedDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errs.New(errs.KindInvalidDate, "date is required")
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, errs.Wrap(errs.KindInvalidDate, "date must be an RFC 3339 timestamp", err)
	}
	return t.UTC().Truncate(time.Microsecond), nil
}

// lockedPair holds both entries of a matched pair, locked for the current transaction.
type lockedPair struct {
	mine    models.QueueEntry
	theirs  *models.QueueEntry
	partner int64
}

// lockPair loads the caller's paired entry and locks it together with the partner's.
// theirs is nil when the partner's entry no longer points back at the caller.
func lockPair(ctx context.Context, q repositories.QueueRepository, userID int64) (lockedPair, error) {
	entry, err := q.GetEntry(ctx, userID)
	if errors.Is(err, repositories.ErrEntryNotFound) {
		return lockedPair{}, errs.New(errs.KindNoActiveMatch, "no active match")
	}
	if err != nil {
		return lockedPair{}, fmt.Errorf("load entry: %w", err)
	}
	if !entry.Status.Paired() || entry.MatchedWith == nil {
		return lockedPair{}, errs.New(errs.KindNoActiveMatch, "no active match")
	}

	partner := entry.Partner()
	locked, err := q.LockEntries(ctx, userID, partner)
	if err != nil {
		return lockedPair{}, fmt.Errorf("lock entries: %w", err)
	}

	p := lockedPair{partner: partner}
	found := false
	for i := range locked {
		switch locked[i].UserID {
		case userID:
			p.mine = locked[i]
			found = true
		case partner:
			if locked[i].Status.Paired() && locked[i].Partner() == userID {
				theirs := locked[i]
				p.theirs = &theirs
			}
		}
	}
	// the pairing may have been dissolved between the read and the lock
	if !found || !p.mine.Status.Paired() || p.mine.Partner() != partner {
		return lockedPair{}, errs.New(errs.KindNoActiveMatch, "no active match")
	}
	return p, nil
}

// ProposeOrUpdateDate records the caller's proposal. When it equals the partner's
// proposal both entries become booked with that appointment.
func (s *Service) ProposeOrUpdateDate(ctx context.Context, userID int64, rawDate string) (models.ProposalResult, error) {
	ctx, span := s.start(ctx, "matchmaking.ProposeOrUpdateDate", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.ProposalResult{}, s.fail(span, "propose date", err)
	}
	date, err := ParseProposedDate(rawDate)
	if err != nil {
		return models.ProposalResult{}, s.fail(span, "propose date", err)
	}

	var (
		result  models.ProposalResult
		outcome string
		partner int64
	)
	err = s.store.WithinTx(ctx, func(r repositories.Repos) error {
		p, err := lockPair(ctx, r.Queue, userID)
		if err != nil {
			return err
		}
		partner = p.partner

		if p.mine.Status == models.QueueStatusBooked {
			if p.mine.ConfirmedAppointment != nil && p.mine.ConfirmedAppointment.Equal(date) {
				result = models.ProposalResult{State: models.QueueStatusBooked, Appointment: p.mine.ConfirmedAppointment}
				return nil
			}
			return errs.New(errs.KindAlreadyActive, "appointment already booked").
				WithDetails(models.ProposalResult{State: models.QueueStatusBooked, Appointment: p.mine.ConfirmedAppointment})
		}
		if p.theirs == nil {
			return fmt.Errorf("pairing of %d and %d is not symmetric", userID, partner)
		}

		mine := p.mine
		mine.ProposedDate = &date
		theirs := *p.theirs

		switch {
		case theirs.ProposedDate == nil:
			outcome = outcomeWaitingOnPartner
			result = models.ProposalResult{State: models.QueueStatusMatched, MyProposedDate: &date}
		case !theirs.ProposedDate.Equal(date):
			outcome = outcomeAwaitingConvergence
			result = models.ProposalResult{State: models.QueueStatusMatched, MyProposedDate: &date, TheirProposedDate: theirs.ProposedDate}
		default:
			outcome = outcomeBooked
			mine.Status = models.QueueStatusBooked
			mine.ConfirmedAppointment = &date
			theirs.Status = models.QueueStatusBooked
			theirs.ConfirmedAppointment = &date
			if err := r.Queue.UpdateEntry(ctx, theirs); err != nil {
				return fmt.Errorf("update partner entry: %w", err)
			}
			result = models.ProposalResult{State: models.QueueStatusBooked, Appointment: &date}
		}

		if err := r.Queue.UpdateEntry(ctx, mine); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ProposalResult{}, s.fail(span, "propose date", err)
	}
	if outcome == "" {
		// re-proposal of the booked appointment; nothing changed
		return result, nil
	}

	observability.IncNegotiation(outcome)
	pairIDs := []int64{userID, partner}
	if outcome == outcomeBooked {
		s.publish(ctx, pairIDs, models.EventAppointmentBooked, appointmentPayload{Appointment: &date})
	} else {
		s.publish(ctx, pairIDs, models.EventDateProposed, proposalPayload{ProposedBy: userID, ProposedDate: date})
	}
	return result, nil
}

// ConfirmAppointment ends the pairing by direct confirmation: both entries are
// removed and the partner is notified.
func (s *Service) ConfirmAppointment(ctx context.Context, userID int64) (models.StateResult, error) {
	ctx, span := s.start(ctx, "matchmaking.ConfirmAppointment", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.StateResult{}, s.fail(span, "confirm appointment", err)
	}

	var (
		participants = []int64{userID}
		appointment  *time.Time
	)
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		p, err := lockPair(ctx, r.Queue, userID)
		if err != nil {
			return err
		}
		appointment = p.mine.ConfirmedAppointment

		if err := r.Queue.DeleteEntry(ctx, userID); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		// a partner that moved on keeps its entry and hears nothing
		if p.theirs == nil {
			return nil
		}
		if err := r.Queue.DeleteEntry(ctx, p.partner); err != nil {
			return fmt.Errorf("delete partner entry: %w", err)
		}
		_, err = r.Notifications.Create(ctx, models.Notification{
			UserID:        p.partner,
			Kind:          models.NotificationAppointmentConfirmed,
			Message:       "Your match confirmed the appointment",
			RelatedUserID: &userID,
		})
		if err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
		participants = append(participants, p.partner)
		return nil
	})
	if err != nil {
		return models.StateResult{}, s.fail(span, "confirm appointment", err)
	}

	observability.IncNegotiation(outcomeConfirmed)
	s.publish(ctx, participants, models.EventAppointmentConfirmed, appointmentPayload{Appointment: appointment, By: userID})
	return models.StateResult{State: models.QueueStatusIdle}, nil
}

// SkipAppointment removes the caller's entry and leaves the partner with a clean
// idle entry.
func (s *Service) SkipAppointment(ctx context.Context, userID int64) (models.StateResult, error) {
	ctx, span := s.start(ctx, "matchmaking.SkipAppointment", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.StateResult{}, s.fail(span, "skip appointment", err)
	}

	participants := []int64{userID}
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		p, err := lockPair(ctx, r.Queue, userID)
		if err != nil {
			return err
		}

		if err := r.Queue.DeleteEntry(ctx, userID); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		if p.theirs != nil {
			theirs := *p.theirs
			theirs.Reset()
			if err := r.Queue.UpdateEntry(ctx, theirs); err != nil {
				return fmt.Errorf("reset partner entry: %w", err)
			}
			participants = append(participants, p.partner)
		}
		return nil
	})
	if err != nil {
		return models.StateResult{}, s.fail(span, "skip appointment", err)
	}

	observability.IncNegotiation(outcomeSkipped)
	s.publish(ctx, participants, models.EventAppointmentSkipped, appointmentPayload{By: userID})
	return models.StateResult{State: models.QueueStatusIdle}, nil
}

// GetDateProposalStatus returns a snapshot of the caller's negotiation, or the idle
// sentinel when the caller has no active entry.
func (s *Service) GetDateProposalStatus(ctx context.Context, userID int64) (models.ProposalStatus, error) {
	ctx, span := s.start(ctx, "matchmaking.GetDateProposalStatus", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.ProposalStatus{}, s.fail(span, "proposal status", err)
	}

	status := models.ProposalStatus{Status: models.QueueStatusIdle}
	err := s.store.View(ctx, func(r repositories.Repos) error {
		entry, err := r.Queue.GetEntry(ctx, userID)
		if errors.Is(err, repositories.ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load entry: %w", err)
		}
		if !entry.Status.Active() {
			return nil
		}

		status = models.ProposalStatus{
			Status:               entry.Status,
			MatchedWith:          entry.MatchedWith,
			MyProposedDate:       entry.ProposedDate,
			ConfirmedAppointment: entry.ConfirmedAppointment,
		}
		if entry.MatchedWith == nil {
			return nil
		}
		theirs, err := r.Queue.GetEntry(ctx, entry.Partner())
		if errors.Is(err, repositories.ErrEntryNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load partner entry: %w", err)
		}
		if theirs.Partner() == userID {
			status.TheirProposedDate = theirs.ProposedDate
		}
		return nil
	})
	if err != nil {
		return models.ProposalStatus{}, s.fail(span, "proposal status", err)
	}
	return status, nil
}
