package memory

import (
	"sync"
	"time"

	"trivia-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	players map[string]*app.Player
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock is useful for tests that drive idle sweeps.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{
		now:     now,
		players: make(map[string]*app.Player),
	}
}

func (s *SessionStore) GetOrCreate(identity string) *app.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[identity]; ok {
		return player
	}
	player := app.NewPlayerWithClock(identity, s.now)
	s.players[identity] = player
	return player
}

func (s *SessionStore) Get(identity string) (*app.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[identity]
	return player, ok
}

func (s *SessionStore) Delete(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, identity)
}

// SweepIdle drops players whose last transition is older than maxIdle and returns how many went.
func (s *SessionStore) SweepIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, player := range s.players {
		if player.LastSeen().Before(cutoff) {
			player.Close()
			delete(s.players, id)
			removed++
		}
	}
	return removed
}
