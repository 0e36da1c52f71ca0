package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// LeaderboardStore keeps one row per (identity, day) in process memory.
type LeaderboardStore struct {
	mu     sync.RWMutex
	scopes map[string]map[string]domain.LeaderboardEntry
}

func NewLeaderboardStore() *LeaderboardStore {
	return &LeaderboardStore{scopes: make(map[string]map[string]domain.LeaderboardEntry)}
}

func (s *LeaderboardStore) FetchTop(_ context.Context, scope domain.Scope, limit int, dir domain.Direction) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	rows := s.scopes[scope.Key()]
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, e := range rows {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Metric != entries[j].Metric {
			return dir.Better(entries[i].Metric, entries[j].Metric)
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *LeaderboardStore) FetchByIdentity(_ context.Context, identity string, scope domain.Scope) (domain.LeaderboardEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.scopes[scope.Key()][identity]
	return e, ok, nil
}

// Upsert overwrites any existing row for the entry's identity and day.
func (s *LeaderboardStore) Upsert(_ context.Context, entry domain.LeaderboardEntry) error {
	key := domain.Scope{Day: entry.Day}.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.scopes[key]
	if !ok {
		rows = make(map[string]domain.LeaderboardEntry)
		s.scopes[key] = rows
	}
	rows[entry.Identity] = entry
	return nil
}
