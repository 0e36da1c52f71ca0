package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trivia-quiz-service/internal/domain"
)

// LeaderboardStore keeps each scope's board in a sorted set:
//
//	ZADD trivia:leaderboard:{scope} {metric} {identity}
//	HSET trivia:leaderboard:{scope}:names {identity} {displayName}
//
// ZADD replaces an existing member's score, which gives upsert semantics per (identity, scope).
type LeaderboardStore struct {
	client *redis.Client
}

func NewLeaderboardStore(client *redis.Client) *LeaderboardStore {
	return &LeaderboardStore{client: client}
}

func (s *LeaderboardStore) FetchTop(ctx context.Context, scope domain.Scope, limit int, dir domain.Direction) ([]domain.LeaderboardEntry, error) {
	stop := int64(limit - 1)
	if limit <= 0 {
		stop = -1
	}

	var (
		members []redis.Z
		err     error
	)
	if dir == domain.Descending {
		members, err = s.client.ZRevRangeWithScores(ctx, s.boardKey(scope), 0, stop).Result()
	} else {
		members, err = s.client.ZRangeWithScores(ctx, s.boardKey(scope), 0, stop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	if len(members) == 0 {
		return []domain.LeaderboardEntry{}, nil
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = fmt.Sprint(m.Member)
	}
	names, err := s.client.HMGet(ctx, s.namesKey(scope), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("read leaderboard names: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, len(members))
	for i, m := range members {
		name, _ := names[i].(string)
		entries[i] = domain.LeaderboardEntry{
			Identity:    ids[i],
			DisplayName: name,
			Metric:      m.Score,
			Day:         scope.Day,
		}
	}
	return entries, nil
}

func (s *LeaderboardStore) FetchByIdentity(ctx context.Context, identity string, scope domain.Scope) (domain.LeaderboardEntry, bool, error) {
	score, err := s.client.ZScore(ctx, s.boardKey(scope), identity).Result()
	if errors.Is(err, redis.Nil) {
		return domain.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return domain.LeaderboardEntry{}, false, fmt.Errorf("read leaderboard entry: %w", err)
	}
	name, err := s.client.HGet(ctx, s.namesKey(scope), identity).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return domain.LeaderboardEntry{}, false, fmt.Errorf("read leaderboard name: %w", err)
	}
	return domain.LeaderboardEntry{Identity: identity, DisplayName: name, Metric: score, Day: scope.Day}, true, nil
}

func (s *LeaderboardStore) Upsert(ctx context.Context, entry domain.LeaderboardEntry) error {
	scope := domain.Scope{Day: entry.Day}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.boardKey(scope), redis.Z{Score: entry.Metric, Member: entry.Identity})
		pipe.HSet(ctx, s.namesKey(scope), entry.Identity, entry.DisplayName)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return nil
}

func (s *LeaderboardStore) boardKey(scope domain.Scope) string {
	return "trivia:leaderboard:" + scope.Key()
}

func (s *LeaderboardStore) namesKey(scope domain.Scope) string {
	return s.boardKey(scope) + ":names"
}
