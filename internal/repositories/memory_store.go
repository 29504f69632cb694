package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"matchmaking-service/internal/models"
)

// MemoryStore keeps every table in process memory. Transactions work on a copy of
// the state that replaces the original only when the callback succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state *memState
	now   func() time.Time
}

type memState struct {
	users         map[int64]models.User
	usernames     map[string]int64
	entries       map[int64]models.QueueEntry
	notifications []models.Notification
	userSeq       int64
	entrySeq      int64
	notifSeq      int64
	now           func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			users:     map[int64]models.User{},
			usernames: map[string]int64{},
			entries:   map[int64]models.QueueEntry{},
		},
		now: time.Now,
	}
}

// SetClock overrides the time source used for created_at and updated_at.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// WithinTx serializes fn against every other transaction.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	draft.now = s.now
	if err := fn(draft.repos()); err != nil {
		return err
	}
	s.state = draft
	return nil
}

// View runs fn under a read lock.
func (s *MemoryStore) View(ctx context.Context, fn func(Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	// writes made by fn are discarded
	view := s.state.clone()
	view.now = s.now
	return fn(view.repos())
}

func (st *memState) clone() *memState {
	c := &memState{
		users:         make(map[int64]models.User, len(st.users)),
		usernames:     make(map[string]int64, len(st.usernames)),
		entries:       make(map[int64]models.QueueEntry, len(st.entries)),
		notifications: make([]models.Notification, len(st.notifications)),
		userSeq:       st.userSeq,
		entrySeq:      st.entrySeq,
		notifSeq:      st.notifSeq,
	}
	for id, u := range st.users {
		u.History = append([]models.MatchRecord(nil), u.History...)
		c.users[id] = u
	}
	for name, id := range st.usernames {
		c.usernames[name] = id
	}
	for id, e := range st.entries {
		c.entries[id] = e
	}
	copy(c.notifications, st.notifications)
	return c
}

func (st *memState) repos() Repos {
	return Repos{
		Users:         memUsers{st},
		Queue:         memQueue{st},
		Notifications: memNotifications{st},
	}
}

type memUsers struct{ st *memState }

func (r memUsers) CreateUser(_ context.Context, username string) (models.User, error) {
	if _, ok := r.st.usernames[username]; ok {
		return models.User{}, ErrUsernameTaken
	}
	r.st.userSeq++
	user := models.User{ID: r.st.userSeq, Username: username, CreatedAt: r.st.now()}
	r.st.users[user.ID] = user
	r.st.usernames[username] = user.ID
	return user, nil
}

func (r memUsers) GetUser(_ context.Context, userID int64) (models.User, error) {
	user, ok := r.st.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	user.History = append([]models.MatchRecord(nil), user.History...)
	sort.SliceStable(user.History, func(i, j int) bool {
		if user.History[i].LastMatchedAt.Equal(user.History[j].LastMatchedAt) {
			return user.History[i].PartnerID < user.History[j].PartnerID
		}
		return user.History[i].LastMatchedAt.After(user.History[j].LastMatchedAt)
	})
	return user, nil
}

func (r memUsers) RecordMatch(_ context.Context, userID int64, partnerID int64, at time.Time) error {
	user, ok := r.st.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	for i := range user.History {
		if user.History[i].PartnerID == partnerID {
			user.History[i].Count++
			user.History[i].LastMatchedAt = at
			r.st.users[userID] = user
			return nil
		}
	}
	user.History = append(user.History, models.MatchRecord{UserID: userID, PartnerID: partnerID, Count: 1, LastMatchedAt: at})
	r.st.users[userID] = user
	return nil
}

func (r memUsers) ResetHistory(_ context.Context, userID int64) error {
	user, ok := r.st.users[userID]
	if !ok {
		return nil
	}
	user.History = nil
	r.st.users[userID] = user
	return nil
}

type memQueue struct{ st *memState }

func (r memQueue) GetEntry(_ context.Context, userID int64) (models.QueueEntry, error) {
	entry, ok := r.st.entries[userID]
	if !ok {
		return models.QueueEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

func (r memQueue) LockEntries(_ context.Context, ids ...int64) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	for _, id := range ids {
		if entry, ok := r.st.entries[id]; ok {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].UserID < entries[j].UserID })
	return entries, nil
}

func (r memQueue) ClaimOldestWaiting(_ context.Context, requesterID int64, exclude []int64) (models.QueueEntry, error) {
	excluded := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	var best *models.QueueEntry
	for _, entry := range r.st.entries {
		if entry.Status != models.QueueStatusWaiting || entry.UserID == requesterID {
			continue
		}
		if _, skip := excluded[entry.UserID]; skip {
			continue
		}
		if best == nil || entryBefore(entry, *best) {
			e := entry
			best = &e
		}
	}
	if best == nil {
		return models.QueueEntry{}, ErrNoCandidate
	}

	partner := requesterID
	best.Status = models.QueueStatusMatched
	best.MatchedWith = &partner
	best.UpdatedAt = r.st.now()
	r.st.entries[best.UserID] = *best
	return *best, nil
}

func entryBefore(a, b models.QueueEntry) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.Seq < b.Seq
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (r memQueue) InsertEntry(_ context.Context, entry models.QueueEntry) (models.QueueEntry, error) {
	if _, exists := r.st.entries[entry.UserID]; exists {
		return models.QueueEntry{}, ErrEntryExists
	}
	if _, ok := r.st.users[entry.UserID]; !ok {
		return models.QueueEntry{}, ErrUserNotFound
	}
	r.st.entrySeq++
	now := r.st.now()
	entry.Seq = r.st.entrySeq
	entry.CreatedAt = now
	entry.UpdatedAt = now
	r.st.entries[entry.UserID] = entry
	return entry, nil
}

func (r memQueue) UpdateEntry(_ context.Context, entry models.QueueEntry) error {
	existing, ok := r.st.entries[entry.UserID]
	if !ok {
		return ErrEntryNotFound
	}
	existing.Status = entry.Status
	existing.MatchedWith = entry.MatchedWith
	existing.ProposedDate = entry.ProposedDate
	existing.ConfirmedAppointment = entry.ConfirmedAppointment
	existing.UpdatedAt = r.st.now()
	r.st.entries[entry.UserID] = existing
	return nil
}

func (r memQueue) DeleteEntry(_ context.Context, userID int64) error {
	if _, ok := r.st.entries[userID]; !ok {
		return ErrEntryNotFound
	}
	delete(r.st.entries, userID)
	return nil
}

func (r memQueue) DeleteWaitingEntry(_ context.Context, userID int64) (bool, error) {
	entry, ok := r.st.entries[userID]
	if !ok || entry.Status != models.QueueStatusWaiting {
		return false, nil
	}
	delete(r.st.entries, userID)
	return true, nil
}

type memNotifications struct{ st *memState }

func (r memNotifications) Create(_ context.Context, n models.Notification) (models.Notification, error) {
	r.st.notifSeq++
	n.ID = r.st.notifSeq
	n.Read = false
	n.CreatedAt = r.st.now()
	r.st.notifications = append(r.st.notifications, n)
	return n, nil
}

func (r memNotifications) ListForUser(_ context.Context, userID int64, limit int) ([]models.Notification, error) {
	var list []models.Notification
	for i := len(r.st.notifications) - 1; i >= 0 && len(list) < limit; i-- {
		if r.st.notifications[i].UserID == userID {
			list = append(list, r.st.notifications[i])
		}
	}
	return list, nil
}

func (r memNotifications) MarkRead(_ context.Context, notificationID int64, userID int64) error {
	for i := range r.st.notifications {
		n := &r.st.notifications[i]
		if n.ID == notificationID && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return ErrNotificationNotFound
}
