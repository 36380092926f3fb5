package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/scythe504/turing-backend/internal"
)

type memoryUser struct {
	user    internal.User
	guesses []internal.GuessRecord
}

// MemoryStore keeps records in process memory. Used for local runs and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*memoryUser
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*memoryUser),
		now:   time.Now,
	}
}

func (m *MemoryStore) FindUser(ctx context.Context, sessionID string) (internal.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[sessionID]
	if !ok {
		return internal.User{}, ErrUserNotFound
	}
	return copyUser(u.user), nil
}

func (m *MemoryStore) CreateUser(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getOrCreate(sessionID)
	return nil
}

func (m *MemoryStore) AppendGuess(ctx context.Context, sessionID string, g internal.GuessRecord) (internal.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.getOrCreate(sessionID)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = m.now()
	}
	u.guesses = append(u.guesses, g)

	score, correctAI, correctHuman := guessDeltas(g)
	u.user.Score += score
	u.user.TotalGuesses++
	u.user.CorrectGuesses += score
	u.user.CorrectAIGuesses += correctAI
	u.user.CorrectHumanGuesses += correctHuman

	return copyUser(u.user), nil
}

func (m *MemoryStore) AwardBadge(ctx context.Context, sessionID, badge string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.getOrCreate(sessionID)
	if slices.Contains(u.user.Badges, badge) {
		return false, nil
	}
	u.user.Badges = append(u.user.Badges, badge)
	return true, nil
}

func (m *MemoryStore) GetBadges(ctx context.Context, sessionID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[sessionID]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(u.user.Badges), nil
}

func (m *MemoryStore) ListTopScores(ctx context.Context, limit int) ([]internal.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]internal.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, copyUser(u.user))
	}
	slices.SortFunc(users, func(a, b internal.User) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.SessionID, b.SessionID)
	})
	if len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

// Guesses returns a copy of the recorded guess history.
func (m *MemoryStore) Guesses(sessionID string) []internal.GuessRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[sessionID]
	if !ok {
		return nil
	}
	return slices.Clone(u.guesses)
}

func (m *MemoryStore) Close() error {
	return nil
}

// getOrCreate must be called with mu held.
func (m *MemoryStore) getOrCreate(sessionID string) *memoryUser {
	u, ok := m.users[sessionID]
	if !ok {
		u = &memoryUser{user: internal.User{
			SessionID: sessionID,
			Badges:    []string{},
			CreatedAt: m.now(),
		}}
		m.users[sessionID] = u
	}
	return u
}

func copyUser(u internal.User) internal.User {
	u.Badges = slices.Clone(u.Badges)
	if u.Badges == nil {
		u.Badges = []string{}
	}
	return u
}
