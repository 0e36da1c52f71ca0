// Package session implements the single-player quiz state machine.
//
// A State is an immutable value. Machine.Submit never touches its input and
// returns the successor state, so a caller can keep the old value around or
// compare the two freely.
package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// Mode selects how wrong answers affect progress.
type Mode string

const (
	// Linear walks a fixed sequence; any wrong answer restarts from a reshuffled order.
	Linear Mode = "linear"
	// StreakWithRetry requires every question once; a wrong answer forces re-verification of mastered questions.
	StreakWithRetry Mode = "streak_retry"
)

// Selection picks the next question from the active subset.
type Selection string

const (
	// Sequential takes the first question in list order.
	Sequential Selection = "sequential"
	// RandomWithoutReplacement picks uniformly from the active subset.
	RandomWithoutReplacement Selection = "random"
)

// StreakGoal is the streak that fills the progress bar.
const StreakGoal = 10

// ParseMode maps a config string to a Mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case Linear, StreakWithRetry:
		return Mode(raw), nil
	}
	return "", fmt.Errorf("unknown quiz mode %q", raw)
}

// ParseSelection maps a config string to a Selection.
func ParseSelection(raw string) (Selection, error) {
	switch Selection(raw) {
	case Sequential, RandomWithoutReplacement:
		return Selection(raw), nil
	}
	return "", fmt.Errorf("unknown selection policy %q", raw)
}

// Config holds the two policies a session runs under.
type Config struct {
	Mode      Mode
	Selection Selection
}

// Machine applies transitions. It is safe for concurrent use; the states it produces are not shared.
type Machine struct {
	cfg Config
	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewMachine(cfg Config) *Machine {
	return NewMachineWithClock(cfg, time.Now, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewMachineWithClock allows deterministic timestamps and picks in tests.
func NewMachineWithClock(cfg Config, now func() time.Time, rnd *rand.Rand) *Machine {
	if cfg.Mode == "" {
		cfg.Mode = StreakWithRetry
	}
	if cfg.Selection == "" {
		cfg.Selection = RandomWithoutReplacement
	}
	return &Machine{cfg: cfg, now: now, rnd: rnd}
}

// Config returns the policies new sessions start with.
func (m *Machine) Config() Config { return m.cfg }

// Start begins a session over questions and presents the first one.
func (m *Machine) Start(questions []domain.Question) (State, error) {
	if len(questions) == 0 {
		return State{}, domain.ErrEmptyPool
	}
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return State{}, err
		}
		if _, dup := seen[q.ID]; dup {
			return State{}, fmt.Errorf("%w: duplicate id %q", domain.ErrMalformedQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	s := State{
		mode:      m.cfg.Mode,
		selection: m.cfg.Selection,
		questions: cloneQuestions(questions),
		startedAt: m.now(),
	}

	switch s.mode {
	case Linear:
		s.order = cloneQuestions(questions)
		if s.selection == RandomWithoutReplacement {
			m.shuffle(s.order)
		}
		s.current = &s.order[0]
	default:
		s.remaining = cloneQuestions(questions)
		s.current = m.pick(s.selection, s.remaining)
	}
	return s, nil
}

// Restart discards all progress and starts again over the same questions.
func (m *Machine) Restart(s State) (State, error) {
	return m.Start(s.questions)
}

// Resume synthesizes an already complete session from a completion record.
func (m *Machine) Resume(record domain.CompletionRecord) State {
	end := m.now()
	var elapsed time.Duration
	if record.Validate() == nil {
		elapsed = time.Duration(record.ElapsedSeconds * float64(time.Second))
	}
	return State{
		mode:      m.cfg.Mode,
		selection: m.cfg.Selection,
		startedAt: end.Add(-elapsed),
		endedAt:   end,
		resumed:   true,
	}
}

// Submit scores answer against the current question and returns the successor state.
// An answer outside the offered choices is rejected with ErrInvalidAnswer and leaves state unchanged.
func (m *Machine) Submit(s State, answer string) (State, bool, error) {
	if s.current == nil {
		return s, false, domain.ErrNoActiveQuestion
	}
	if !s.current.Offers(answer) {
		return s, false, domain.ErrInvalidAnswer
	}

	next := s.clone()
	correct := answer == s.current.CorrectAnswer

	switch next.mode {
	case Linear:
		m.submitLinear(&next, correct)
	default:
		m.submitStreak(&next, correct)
	}
	return next, correct, nil
}

func (m *Machine) submitLinear(s *State, correct bool) {
	if !correct {
		last := s.current.ID
		s.streak = 0
		s.order = cloneQuestions(s.questions)
		m.shuffle(s.order)
		if len(s.order) > 1 && s.order[0].ID == last {
			m.mu.Lock()
			j := 1 + m.rnd.Intn(len(s.order)-1)
			m.mu.Unlock()
			s.order[0], s.order[j] = s.order[j], s.order[0]
		}
		s.index = 0
		s.current = &s.order[0]
		s.startedAt = m.now()
		s.endedAt = time.Time{}
		return
	}

	s.streak++
	s.index++
	if s.index >= len(s.order) {
		s.complete(m.now())
		return
	}
	s.current = &s.order[s.index]
}

func (m *Machine) submitStreak(s *State, correct bool) {
	if !correct {
		s.streak = 0
		if !s.retryMode && len(s.mastered) > 0 {
			s.retryMode = true
			s.retry = cloneQuestions(s.mastered)
			s.current = m.pick(s.selection, s.retry)
		}
		return
	}

	s.streak++
	id := s.current.ID

	if !s.retryMode {
		s.mastered = append(s.mastered, *s.current)
		s.remaining = without(s.remaining, id)
		if len(s.remaining) == 0 {
			s.complete(m.now())
			return
		}
		s.current = m.pick(s.selection, s.remaining)
		return
	}

	s.retry = without(s.retry, id)
	if len(s.retry) > 0 {
		s.current = m.pick(s.selection, s.retry)
		return
	}
	s.retryMode = false
	s.retry = nil
	if len(s.remaining) == 0 {
		s.complete(m.now())
		return
	}
	s.current = m.pick(s.selection, s.remaining)
}

func (m *Machine) pick(sel Selection, from []domain.Question) *domain.Question {
	if len(from) == 0 {
		return nil
	}
	i := 0
	if sel == RandomWithoutReplacement && len(from) > 1 {
		m.mu.Lock()
		i = m.rnd.Intn(len(from))
		m.mu.Unlock()
	}
	q := from[i]
	return &q
}

func (m *Machine) shuffle(qs []domain.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rnd.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
}

func without(qs []domain.Question, id string) []domain.Question {
	out := make([]domain.Question, 0, len(qs))
	for _, q := range qs {
		if q.ID != id {
			out = append(out, q)
		}
	}
	return out
}

func cloneQuestions(qs []domain.Question) []domain.Question {
	if qs == nil {
		return nil
	}
	out := make([]domain.Question, len(qs))
	copy(out, qs)
	return out
}
