package session

import (
	"time"

	"trivia-quiz-service/internal/domain"
)

// Phase is the coarse position of a session in its lifecycle.
type Phase string

const (
	NotStarted Phase = "not_started"
	InProgress Phase = "in_progress"
	Retrying   Phase = "retry"
	Complete   Phase = "complete"
)

// State is one snapshot of a session. The zero value is a NotStarted session.
type State struct {
	mode      Mode
	selection Selection
	questions []domain.Question

	// Linear mode.
	order []domain.Question
	index int

	// StreakWithRetry mode.
	remaining []domain.Question
	mastered  []domain.Question
	retry     []domain.Question
	retryMode bool

	current   *domain.Question
	streak    int
	startedAt time.Time
	endedAt   time.Time
	resumed   bool
}

func (s State) clone() State {
	out := s
	out.order = cloneQuestions(s.order)
	out.remaining = cloneQuestions(s.remaining)
	out.mastered = cloneQuestions(s.mastered)
	out.retry = cloneQuestions(s.retry)
	if s.current != nil {
		q := *s.current
		out.current = &q
	}
	return out
}

func (s *State) complete(at time.Time) {
	s.current = nil
	s.endedAt = at
}

func (s State) Mode() Mode           { return s.mode }
func (s State) Selection() Selection { return s.selection }
func (s State) Streak() int          { return s.streak }
func (s State) StartedAt() time.Time { return s.startedAt }
func (s State) EndedAt() time.Time   { return s.endedAt }
func (s State) IsRetryMode() bool    { return s.retryMode }
func (s State) Index() int           { return s.index }

// Resumed reports whether the state was synthesized from a completion record.
func (s State) Resumed() bool { return s.resumed }

// Current returns the question awaiting an answer.
func (s State) Current() (domain.Question, bool) {
	if s.current == nil {
		return domain.Question{}, false
	}
	return *s.current, true
}

func (s State) Questions() []domain.Question { return cloneQuestions(s.questions) }
func (s State) Order() []domain.Question     { return cloneQuestions(s.order) }
func (s State) Remaining() []domain.Question { return cloneQuestions(s.remaining) }
func (s State) Mastered() []domain.Question  { return cloneQuestions(s.mastered) }
func (s State) Retry() []domain.Question     { return cloneQuestions(s.retry) }

// Phase derives the lifecycle phase.
func (s State) Phase() Phase {
	switch {
	case s.IsComplete():
		return Complete
	case s.current == nil:
		return NotStarted
	case s.retryMode:
		return Retrying
	default:
		return InProgress
	}
}

// IsComplete is true once the end time is set and nothing is pending.
func (s State) IsComplete() bool {
	return !s.endedAt.IsZero() && s.current == nil
}

// Elapsed is the time from start to completion.
func (s State) Elapsed() (time.Duration, error) {
	if !s.IsComplete() || s.startedAt.IsZero() {
		return 0, domain.ErrSessionNotComplete
	}
	return s.endedAt.Sub(s.startedAt), nil
}

// StreakProgress is the streak as a percentage of StreakGoal, capped at 100.
func (s State) StreakProgress() int {
	p := s.streak * 100 / StreakGoal
	if p > 100 {
		return 100
	}
	return p
}

// View renders the state for the presentation layer.
func (s State) View(scope domain.Scope) domain.SessionView {
	v := domain.SessionView{
		Phase:          string(s.Phase()),
		Mode:           string(s.mode),
		Scope:          scope,
		Streak:         s.streak,
		StreakProgress: s.StreakProgress(),
		Mastered:       len(s.mastered),
		RetryPending:   len(s.retry),
		RetryMode:      s.retryMode,
		Complete:       s.IsComplete(),
	}
	if s.mode == Linear {
		v.Remaining = len(s.order) - s.index
		v.Mastered = s.index
	} else {
		v.Remaining = len(s.remaining)
	}
	if s.current != nil {
		v.Question = &domain.QuestionView{
			ID:      s.current.ID,
			Prompt:  s.current.Prompt,
			Answers: append([]string(nil), s.current.Answers...),
		}
	}
	if elapsed, err := s.Elapsed(); err == nil {
		v.ElapsedSeconds = elapsed.Seconds()
	}
	return v
}
