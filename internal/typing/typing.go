// Package typing holds ephemeral "is typing" state.
//
// Entries are never swept. Readers judge staleness with IsExpired at read
// time; explicit stop events and session close are what remove entries.
package typing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is how long a typing signal stays fresh without a refresh.
const DefaultTimeout = 5 * time.Second

// Indicator is the single entry for one (conversation, user) pair.
type Indicator struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
	StartedAt      time.Time `json:"started_at"`
}

// IsExpired reports whether now - started_at exceeds timeout.
func IsExpired(ind Indicator, timeout time.Duration, now time.Time) bool {
	return now.Sub(ind.StartedAt) > timeout
}

// Active filters out expired indicators, keeping input order.
func Active(inds []Indicator, timeout time.Duration, now time.Time) []Indicator {
	out := make([]Indicator, 0, len(inds))
	for _, ind := range inds {
		if !IsExpired(ind, timeout, now) {
			out = append(out, ind)
		}
	}
	return out
}

// Store is an expiring-entry store keyed by (conversation, user).
type Store interface {
	// Set upserts the entry; repeated calls overwrite started_at.
	Set(ctx context.Context, ind Indicator) error
	// Clear removes the entry if present. Clearing an absent entry is not an error.
	Clear(ctx context.Context, conversationID, userID uuid.UUID) error
	// List returns every stored entry for the conversation, expired ones included.
	List(ctx context.Context, conversationID uuid.UUID) ([]Indicator, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu    sync.Mutex
	byKey map[uuid.UUID]map[uuid.UUID]Indicator
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[uuid.UUID]map[uuid.UUID]Indicator)}
}

func (s *MemoryStore) Set(_ context.Context, ind Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.byKey[ind.ConversationID]
	if !ok {
		users = make(map[uuid.UUID]Indicator)
		s.byKey[ind.ConversationID] = users
	}
	users[ind.UserID] = ind
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, conversationID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.byKey[conversationID]
	if !ok {
		return nil
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.byKey, conversationID)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, conversationID uuid.UUID) ([]Indicator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := s.byKey[conversationID]
	out := make([]Indicator, 0, len(users))
	for _, ind := range users {
		out = append(out, ind)
	}
	SortByStart(out)
	return out, nil
}

// SortByStart orders indicators oldest first, ties broken by user id.
func SortByStart(inds []Indicator) {
	sort.Slice(inds, func(i, j int) bool {
		if inds[i].StartedAt.Equal(inds[j].StartedAt) {
			return inds[i].UserID.String() < inds[j].UserID.String()
		}
		return inds[i].StartedAt.Before(inds[j].StartedAt)
	})
}

// Lister is the read side used by request handlers.
type Lister interface {
	List(ctx context.Context, conversationID uuid.UUID) ([]Indicator, error)
}

// ActiveIn lists the non-expired indicators of a conversation.
func ActiveIn(ctx context.Context, store Lister, conversationID uuid.UUID, timeout time.Duration, now time.Time) ([]Indicator, error) {
	inds, err := store.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return Active(inds, timeout, now), nil
}
