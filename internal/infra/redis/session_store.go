package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Session state stays in process; incomplete sessions are never persisted.
//   - Redis only carries a liveness marker per identity so operators can count
//     active players across instances.
type SessionStore struct {
	client  *redis.Client
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	players map[string]*app.Player
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return NewSessionStoreWithClock(client, ttl, time.Now)
}

func NewSessionStoreWithClock(client *redis.Client, ttl time.Duration, now func() time.Time) *SessionStore {
	return &SessionStore{
		client:  client,
		ttl:     ttl,
		now:     now,
		players: make(map[string]*app.Player),
	}
}

func (s *SessionStore) GetOrCreate(identity string) *app.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player, ok := s.players[identity]; ok {
		s.touch(identity)
		return player
	}
	player := app.NewPlayerWithClock(identity, s.now)
	s.players[identity] = player
	s.touch(identity)
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
	_ = s.client.Del(context.Background(), s.key(identity)).Err()
}

// SweepIdle drops players whose last transition is older than maxIdle along with
// their markers, and refreshes the markers of everyone still active.
func (s *SessionStore) SweepIdle(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, player := range s.players {
		if player.LastSeen().Before(cutoff) {
			player.Close()
			delete(s.players, id)
			_ = s.client.Del(context.Background(), s.key(id)).Err()
			removed++
			continue
		}
		s.touch(id)
	}
	return removed
}

// touch refreshes the best-effort liveness marker.
func (s *SessionStore) touch(identity string) {
	_ = s.client.Set(context.Background(), s.key(identity), "1", s.ttl).Err()
}

func (s *SessionStore) key(identity string) string {
	return "trivia:session:" + identity
}
