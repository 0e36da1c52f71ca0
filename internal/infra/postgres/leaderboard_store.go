package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-quiz-service/internal/domain"
)

// LeaderboardStore persists one row per (user_id, day); the empty day is the global board.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

func (s *LeaderboardStore) FetchTop(ctx context.Context, scope domain.Scope, limit int, dir domain.Direction) ([]domain.LeaderboardEntry, error) {
	order := "ASC"
	if dir == domain.Descending {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT user_id, username, metric, day
FROM leaderboard
WHERE day = $1
ORDER BY metric %s, created_at ASC
LIMIT $2`, order)

	rows, err := s.pool.Query(ctx, query, scope.Day, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Identity, &e.DisplayName, &e.Metric, &e.Day); err != nil {
			return nil, fmt.Errorf("scan leaderboard: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return entries, nil
}

func (s *LeaderboardStore) FetchByIdentity(ctx context.Context, identity string, scope domain.Scope) (domain.LeaderboardEntry, bool, error) {
	var e domain.LeaderboardEntry
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, username, metric, day FROM leaderboard WHERE user_id = $1 AND day = $2`,
		identity, scope.Day,
	).Scan(&e.Identity, &e.DisplayName, &e.Metric, &e.Day)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return domain.LeaderboardEntry{}, false, fmt.Errorf("fetch leaderboard entry: %w", err)
	}
	return e, true, nil
}

func (s *LeaderboardStore) Upsert(ctx context.Context, entry domain.LeaderboardEntry) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO leaderboard (user_id, day, username, metric)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, day) DO UPDATE SET
    username = EXCLUDED.username,
    metric = EXCLUDED.metric,
    created_at = now()`,
		entry.Identity, entry.Day, entry.DisplayName, entry.Metric)
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}
	return nil
}
