package domain

import (
	"fmt"
	"math"
	"time"
)

// DayLayout is the date tag format used for daily scopes and the completion cookie.
const DayLayout = "2006-01-02"

// Question models a multiple-choice trivia question. Immutable once fetched.
type Question struct {
	ID            string   `json:"id" yaml:"id"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Answers       []string `json:"answers" yaml:"answers"`
	CorrectAnswer string   `json:"correctAnswer" yaml:"correct_answer"`
	Day           string   `json:"day,omitempty" yaml:"day,omitempty"`
}

// Validate checks that the question has unique choices and that the correct answer is one of them.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformedQuestion)
	}
	if len(q.Answers) == 0 {
		return fmt.Errorf("%w: question %s has no answers", ErrMalformedQuestion, q.ID)
	}
	seen := make(map[string]struct{}, len(q.Answers))
	for _, a := range q.Answers {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("%w: question %s repeats answer %q", ErrMalformedQuestion, q.ID, a)
		}
		seen[a] = struct{}{}
	}
	if _, ok := seen[q.CorrectAnswer]; !ok {
		return fmt.Errorf("%w: question %s correct answer not among answers", ErrMalformedQuestion, q.ID)
	}
	return nil
}

// Offers reports whether answer is one of the question's choices.
func (q Question) Offers(answer string) bool {
	for _, a := range q.Answers {
		if a == answer {
			return true
		}
	}
	return false
}

// Scope partitions questions and leaderboards. An empty Day means all questions / the global board.
type Scope struct {
	Day string `json:"day,omitempty"`
}

// GlobalScope is the unpartitioned scope.
var GlobalScope = Scope{}

// DayScope returns the scope for the calendar day of t.
func DayScope(t time.Time) Scope {
	return Scope{Day: t.Format(DayLayout)}
}

// ParseScope validates a raw day tag. An empty string yields the global scope.
func ParseScope(day string) (Scope, error) {
	if day == "" {
		return GlobalScope, nil
	}
	if _, err := time.Parse(DayLayout, day); err != nil {
		return Scope{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return Scope{Day: day}, nil
}

// IsDaily reports whether the scope is pinned to a calendar day.
func (s Scope) IsDaily() bool { return s.Day != "" }

// Key is the storage key fragment for the scope.
func (s Scope) Key() string {
	if s.Day == "" {
		return "all"
	}
	return s.Day
}

// Direction is the leaderboard sort order, best first.
type Direction string

const (
	// Ascending ranks lower metrics first (elapsed time).
	Ascending Direction = "asc"
	// Descending ranks higher metrics first (raw score).
	Descending Direction = "desc"
)

// ParseDirection maps a config string to a Direction.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(raw) {
	case Ascending, Descending:
		return Direction(raw), nil
	}
	return "", fmt.Errorf("unknown leaderboard direction %q", raw)
}

// Better reports whether a ranks strictly ahead of b.
func (d Direction) Better(a, b float64) bool {
	if d == Descending {
		return a > b
	}
	return a < b
}

// LeaderboardEntry is one row of the shared leaderboard; at most one per (Identity, Day).
type LeaderboardEntry struct {
	Identity    string  `json:"-"`
	DisplayName string  `json:"displayName"`
	Metric      float64 `json:"metric"`
	Day         string  `json:"day,omitempty"`
}

// RankedEntry is a leaderboard row with its 1-based position.
type RankedEntry struct {
	Rank int `json:"rank"`
	LeaderboardEntry
}

// MaxElapsedSeconds bounds a completion record's elapsed time (one week).
const MaxElapsedSeconds = 7 * 24 * 60 * 60

// CompletionRecord is the client-side marker of a finished daily session.
type CompletionRecord struct {
	Day            string
	ElapsedSeconds float64
}

// Validate rejects records with an unparseable day or an elapsed time that is not
// a finite value in [0, MaxElapsedSeconds].
func (r CompletionRecord) Validate() error {
	if _, err := time.Parse(DayLayout, r.Day); err != nil {
		return fmt.Errorf("completion record day: %w", err)
	}
	e := r.ElapsedSeconds
	if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 || e > MaxElapsedSeconds {
		return fmt.Errorf("completion record elapsed %v out of range", e)
	}
	return nil
}

// QuestionView is the client-facing question, without the correct answer.
type QuestionView struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Answers []string `json:"answers"`
}

// SessionView is the read model the presentation layer renders.
type SessionView struct {
	Phase          string        `json:"phase"`
	Mode           string        `json:"mode"`
	Scope          Scope         `json:"scope"`
	Question       *QuestionView `json:"question,omitempty"`
	Streak         int           `json:"streak"`
	StreakProgress int           `json:"streakProgress"`
	Remaining      int           `json:"remaining"`
	Mastered       int           `json:"mastered"`
	RetryPending   int           `json:"retryPending"`
	RetryMode      bool          `json:"retryMode"`
	Complete       bool          `json:"complete"`
	ElapsedSeconds float64       `json:"elapsedSeconds,omitempty"`
}

// AnswerResult summarizes the outcome of one submitted answer.
type AnswerResult struct {
	Correct   bool        `json:"correct"`
	Completed bool        `json:"completed"`
	Qualifies bool        `json:"qualifies"`
	State     SessionView `json:"state"`
}
