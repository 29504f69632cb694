// Package matchmaking pairs waiting users and drives the appointment negotiation
// of matched pairs. All state lives in the repositories.Store; every mutation runs
// inside one store transaction and events are published only after it commits.
package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"matchmaking-service/internal/errs"
	"matchmaking-service/internal/fanout"
	"matchmaking-service/internal/models"
	"matchmaking-service/internal/observability"
	"matchmaking-service/internal/repositories"
)

const (
	historyFallbackLimit = 10
	notificationsLimit   = 50
)

// Service implements the matchmaking engine and the negotiation state machine.
type Service struct {
	store      repositories.Store
	events     fanout.Publisher
	policy     ExclusionPolicy
	maxRetries int
	now        func() time.Time
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithExclusionPolicy overrides the default HistoryExclusion.
func WithExclusionPolicy(p ExclusionPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMaxRetries overrides MaxClaimRetries.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService builds a Service. A nil publisher drops events.
func NewService(store repositories.Store, events fanout.Publisher, opts ...Option) *Service {
	if events == nil {
		events = fanout.Noop{}
	}
	s := &Service{
		store:      store,
		events:     events,
		policy:     HistoryExclusion{},
		maxRetries: MaxClaimRetries,
		now:        time.Now,
		tracer:     otel.Tracer("matchmaking-service/matchmaking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterUser creates an identity record with an empty history.
func (s *Service) RegisterUser(ctx context.Context, username string) (models.User, error) {
	ctx, span := s.tracer.Start(ctx, "matchmaking.RegisterUser")
	defer span.End()

	if username == "" {
		return models.User{}, errs.New(errs.KindInvalidArgument, "username is required")
	}

	var user models.User
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		var err error
		user, err = r.Users.CreateUser(ctx, username)
		if errors.Is(err, repositories.ErrUsernameTaken) {
			return errs.New(errs.KindAlreadyActive, "username already taken")
		}
		return err
	})
	if err != nil {
		return models.User{}, s.fail(span, "register user", err)
	}
	return user, nil
}

// BookCall pairs the caller with the oldest eligible waiting user, or enqueues the
// caller when none can be claimed within the retry budget.
func (s *Service) BookCall(ctx context.Context, userID int64) (models.BookResult, error) {
	ctx, span := s.start(ctx, "matchmaking.BookCall", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.BookResult{}, s.fail(span, "book call", err)
	}

	var (
		result   models.BookResult
		attempts int
	)
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		user, err := r.Users.GetUser(ctx, userID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return errs.New(errs.KindNotFound, "user not found")
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}

		existing, err := r.Queue.GetEntry(ctx, userID)
		switch {
		case err == nil && existing.Status.Active():
			return errs.New(errs.KindAlreadyActive, "match request already active").
				WithDetails(models.ActiveState{Status: existing.Status, Partner: existing.MatchedWith})
		case err == nil:
			// leftover idle entry from a skipped pairing
			if err := r.Queue.DeleteEntry(ctx, userID); err != nil {
				return fmt.Errorf("clear idle entry: %w", err)
			}
		case !errors.Is(err, repositories.ErrEntryNotFound):
			return fmt.Errorf("load entry: %w", err)
		}

		exclude := s.policy.Exclude(user, s.now())
		claimed, n, err := claimWithRetry(ctx, s.maxRetries, func(ctx context.Context) (models.QueueEntry, error) {
			return r.Queue.ClaimOldestWaiting(ctx, userID, exclude)
		})
		attempts = n
		if errors.Is(err, repositories.ErrNoCandidate) {
			if err := insertEntry(ctx, r.Queue, models.QueueEntry{UserID: userID, Status: models.QueueStatusWaiting}); err != nil {
				return err
			}
			result = models.BookResult{State: models.QueueStatusWaiting}
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim waiting entry: %w", err)
		}

		partner := claimed.UserID
		if err := insertEntry(ctx, r.Queue, models.QueueEntry{UserID: userID, Status: models.QueueStatusMatched, MatchedWith: &partner}); err != nil {
			return err
		}

		at := s.now()
		if err := r.Users.RecordMatch(ctx, userID, partner, at); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		if err := r.Users.RecordMatch(ctx, partner, userID, at); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
		for _, n := range []models.Notification{
			{UserID: userID, Kind: models.NotificationMatched, Message: "You have a new match", RelatedUserID: &partner},
			{UserID: partner, Kind: models.NotificationMatched, Message: "You have a new match", RelatedUserID: &userID},
		} {
			if _, err := r.Notifications.Create(ctx, n); err != nil {
				return fmt.Errorf("create notification: %w", err)
			}
		}

		result = models.BookResult{State: models.QueueStatusMatched, Partner: &partner}
		return nil
	})
	if err != nil {
		observability.ObserveBookCall(string(errs.KindOf(err)), attempts)
		return models.BookResult{}, s.fail(span, "book call", err)
	}

	observability.ObserveBookCall(string(result.State), attempts)
	span.SetAttributes(attribute.String("match.state", string(result.State)), attribute.Int("match.claim_attempts", attempts))

	if result.State == models.QueueStatusMatched {
		pair := []int64{*result.Partner, userID}
		s.publish(ctx, pair, models.EventMatched, matchedPayload{State: models.QueueStatusMatched, Users: pair})
	} else {
		s.publish(ctx, []int64{userID}, models.EventQueueUpdated, queuePayload{State: models.QueueStatusWaiting, User: userID})
	}
	return result, nil
}

// GetCurrentMatch returns the active partner, falling back to recent match history.
func (s *Service) GetCurrentMatch(ctx context.Context, userID int64) (models.CurrentMatch, error) {
	ctx, span := s.start(ctx, "matchmaking.GetCurrentMatch", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.CurrentMatch{}, s.fail(span, "get current match", err)
	}

	var current models.CurrentMatch
	err := s.store.View(ctx, func(r repositories.Repos) error {
		entry, err := r.Queue.GetEntry(ctx, userID)
		if err == nil && entry.Status.Paired() {
			current = models.CurrentMatch{Status: entry.Status, Partner: entry.MatchedWith}
			return nil
		}
		if err != nil && !errors.Is(err, repositories.ErrEntryNotFound) {
			return fmt.Errorf("load entry: %w", err)
		}

		user, err := r.Users.GetUser(ctx, userID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return errs.New(errs.KindNotFound, "user not found")
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if len(user.History) == 0 {
			return errs.New(errs.KindNotFound, "no current match")
		}
		history := user.History
		if len(history) > historyFallbackLimit {
			history = history[:historyFallbackLimit]
		}
		current = models.CurrentMatch{History: history}
		return nil
	})
	if err != nil {
		return models.CurrentMatch{}, s.fail(span, "get current match", err)
	}
	return current, nil
}

// ResetMatches clears the caller's history and counts. Active entries are untouched.
func (s *Service) ResetMatches(ctx context.Context, userID int64) error {
	ctx, span := s.start(ctx, "matchmaking.ResetMatches", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return s.fail(span, "reset matches", err)
	}

	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		return r.Users.ResetHistory(ctx, userID)
	})
	if err != nil {
		return s.fail(span, "reset matches", err)
	}
	return nil
}

// CancelRequest leaves the queue. A waiting caller loses its own entry; a paired
// caller dissolves the pairing and both entries are removed.
func (s *Service) CancelRequest(ctx context.Context, userID int64) (models.StateResult, error) {
	ctx, span := s.start(ctx, "matchmaking.CancelRequest", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return models.StateResult{}, s.fail(span, "cancel request", err)
	}

	participants := []int64{userID}
	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		entry, err := r.Queue.GetEntry(ctx, userID)
		if errors.Is(err, repositories.ErrEntryNotFound) || (err == nil && !entry.Status.Active()) {
			return errs.New(errs.KindNoActiveMatch, "no active match request")
		}
		if err != nil {
			return fmt.Errorf("load entry: %w", err)
		}
		if entry.Status == models.QueueStatusWaiting {
			deleted, err := r.Queue.DeleteWaitingEntry(ctx, userID)
			if err != nil {
				return fmt.Errorf("delete entry: %w", err)
			}
			if deleted {
				return nil
			}
			// claimed by a requester since the read; dissolve the new pairing
		}

		pair, err := lockPair(ctx, r.Queue, userID)
		if err != nil {
			return err
		}
		if err := r.Queue.DeleteEntry(ctx, userID); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
		if pair.theirs != nil {
			if err := r.Queue.DeleteEntry(ctx, pair.partner); err != nil {
				return fmt.Errorf("delete partner entry: %w", err)
			}
			participants = append(participants, pair.partner)
		}
		return nil
	})
	if err != nil {
		return models.StateResult{}, s.fail(span, "cancel request", err)
	}

	for _, id := range participants {
		s.publish(ctx, []int64{id}, models.EventQueueUpdated, queuePayload{State: models.QueueStatusIdle, User: id})
	}
	return models.StateResult{State: models.QueueStatusIdle}, nil
}

// ListNotifications returns the caller's newest notifications.
func (s *Service) ListNotifications(ctx context.Context, userID int64) ([]models.Notification, error) {
	ctx, span := s.start(ctx, "matchmaking.ListNotifications", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return nil, s.fail(span, "list notifications", err)
	}

	var list []models.Notification
	err := s.store.View(ctx, func(r repositories.Repos) error {
		var err error
		list, err = r.Notifications.ListForUser(ctx, userID, notificationsLimit)
		return err
	})
	if err != nil {
		return nil, s.fail(span, "list notifications", err)
	}
	return list, nil
}

// MarkNotificationRead flags one of the caller's notifications as read.
func (s *Service) MarkNotificationRead(ctx context.Context, userID int64, notificationID int64) error {
	ctx, span := s.start(ctx, "matchmaking.MarkNotificationRead", userID)
	defer span.End()

	if err := requireCaller(userID); err != nil {
		return s.fail(span, "mark notification read", err)
	}

	err := s.store.WithinTx(ctx, func(r repositories.Repos) error {
		err := r.Notifications.MarkRead(ctx, notificationID, userID)
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return errs.New(errs.KindNotFound, "notification not found")
		}
		return err
	})
	if err != nil {
		return s.fail(span, "mark notification read", err)
	}
	return nil
}

// HaveMatched reports whether the two users were ever paired.
func (s *Service) HaveMatched(ctx context.Context, userID int64, otherID int64) (bool, error) {
	var matched bool
	err := s.store.View(ctx, func(r repositories.Repos) error {
		user, err := r.Users.GetUser(ctx, userID)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return errs.New(errs.KindNotFound, "user not found")
		}
		if err != nil {
			return err
		}
		matched = user.HasMatched(otherID)
		return nil
	})
	if err != nil && errs.KindOf(err) == errs.KindInternal {
		return false, errs.Wrap(errs.KindInternal, "check match history", err)
	}
	return matched, err
}

func insertEntry(ctx context.Context, q repositories.QueueRepository, entry models.QueueEntry) error {
	_, err := q.InsertEntry(ctx, entry)
	if errors.Is(err, repositories.ErrEntryExists) {
		// a concurrent request for the same user committed first
		return errs.New(errs.KindAlreadyActive, "match request already active")
	}
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

func requireCaller(userID int64) error {
	if userID <= 0 {
		return errs.New(errs.KindUnauthenticated, "missing caller identity")
	}
	return nil
}

func (s *Service) start(ctx context.Context, name string, userID int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("user.id", userID)))
}

// fail records err on the span and converts untyped errors into Internal.
func (s *Service) fail(span trace.Span, op string, err error) error {
	var typed *errs.Error
	if !errors.As(err, &typed) {
		log.Printf("matchmaking %s failed: %v", op, err)
		typed = errs.Wrap(errs.KindInternal, op+" failed", err)
	}
	span.RecordError(typed)
	span.SetStatus(codes.Error, string(typed.Kind))
	return typed
}
