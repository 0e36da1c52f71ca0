package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trivia-quiz-service/internal/domain"
)

// DefaultBoardSize is the number of places a leaderboard shows.
const DefaultBoardSize = 10

// LeaderboardStore persists leaderboard rows. Upsert must overwrite the row keyed by (Identity, Day).
type LeaderboardStore interface {
	FetchTop(ctx context.Context, scope domain.Scope, limit int, dir domain.Direction) ([]domain.LeaderboardEntry, error)
	FetchByIdentity(ctx context.Context, identity string, scope domain.Scope) (domain.LeaderboardEntry, bool, error)
	Upsert(ctx context.Context, entry domain.LeaderboardEntry) error
}

// NameValidator checks and cleans display names.
type NameValidator interface {
	// Validate returns an error wrapping domain.ErrInvalidName when name is unacceptable.
	Validate(name string) error
	// Clean masks anything objectionable left in an accepted name.
	Clean(name string) string
}

// Qualifies reports whether metric would place within a top list of size places.
// top must be sorted best first according to dir. Ties with the last place do not qualify.
func Qualifies(metric float64, top []domain.LeaderboardEntry, size int, dir domain.Direction) bool {
	if len(top) < size {
		return true
	}
	return dir.Better(metric, top[size-1].Metric)
}

// Gate decides leaderboard qualification and enforces one submission per identity per scope.
type Gate struct {
	store     LeaderboardStore
	names     NameValidator
	size      int
	direction domain.Direction
}

func NewGate(store LeaderboardStore, names NameValidator, size int, dir domain.Direction) *Gate {
	if size <= 0 {
		size = DefaultBoardSize
	}
	if dir == "" {
		dir = domain.Ascending
	}
	return &Gate{store: store, names: names, size: size, direction: dir}
}

func (g *Gate) Size() int                   { return g.size }
func (g *Gate) Direction() domain.Direction { return g.direction }

// Top returns the best entries for scope, best first.
func (g *Gate) Top(ctx context.Context, scope domain.Scope) ([]domain.LeaderboardEntry, error) {
	entries, err := g.store.FetchTop(ctx, scope, g.size, g.direction)
	if err != nil {
		return nil, fetchError("fetch leaderboard", err)
	}
	return entries, nil
}

// Ranked returns the top entries with their 1-based positions.
func (g *Gate) Ranked(ctx context.Context, scope domain.Scope) ([]domain.RankedEntry, error) {
	top, err := g.Top(ctx, scope)
	if err != nil {
		return nil, err
	}
	ranked := make([]domain.RankedEntry, len(top))
	for i, e := range top {
		ranked[i] = domain.RankedEntry{Rank: i + 1, LeaderboardEntry: e}
	}
	return ranked, nil
}

// Qualifies checks metric against the current board for scope.
func (g *Gate) Qualifies(ctx context.Context, scope domain.Scope, metric float64) (bool, error) {
	top, err := g.Top(ctx, scope)
	if err != nil {
		return false, err
	}
	return Qualifies(metric, top, g.size, g.direction), nil
}

// HasExistingEntry reports whether identity already holds a row in scope.
func (g *Gate) HasExistingEntry(ctx context.Context, identity string, scope domain.Scope) (bool, error) {
	_, ok, err := g.store.FetchByIdentity(ctx, identity, scope)
	if err != nil {
		return false, fetchError("fetch leaderboard entry", err)
	}
	return ok, nil
}

// Eligible is true when identity has no entry in scope and metric qualifies.
func (g *Gate) Eligible(ctx context.Context, identity string, scope domain.Scope, metric float64) (bool, error) {
	exists, err := g.HasExistingEntry(ctx, identity, scope)
	if err != nil || exists {
		return false, err
	}
	return g.Qualifies(ctx, scope, metric)
}

// Submit validates displayName and upserts the entry for (identity, scope).
func (g *Gate) Submit(ctx context.Context, identity, displayName string, metric float64, scope domain.Scope) (domain.LeaderboardEntry, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return domain.LeaderboardEntry{}, fmt.Errorf("%w: name is empty", domain.ErrInvalidName)
	}
	if g.names != nil {
		if err := g.names.Validate(name); err != nil {
			return domain.LeaderboardEntry{}, err
		}
		name = g.names.Clean(name)
	}

	exists, err := g.HasExistingEntry(ctx, identity, scope)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if exists {
		return domain.LeaderboardEntry{}, fmt.Errorf("%w: score already submitted", domain.ErrSubmissionRejected)
	}

	ok, err := g.Qualifies(ctx, scope, metric)
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if !ok {
		return domain.LeaderboardEntry{}, fmt.Errorf("%w: score does not place in the top %d", domain.ErrSubmissionRejected, g.size)
	}

	entry := domain.LeaderboardEntry{
		Identity:    identity,
		DisplayName: name,
		Metric:      metric,
		Day:         scope.Day,
	}
	if err := g.store.Upsert(ctx, entry); err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return entry, nil
}

func fetchError(op string, err error) error {
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &domain.FetchError{Op: op, Err: err}
}
