package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/metrics"
	"trivia-quiz-service/internal/session"
)

// SessionRepository abstracts where players are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(identity string) *Player
	Get(identity string) (*Player, bool)
	Delete(identity string)
}

// QuestionRepository loads question content for a scope (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, scope domain.Scope) ([]domain.Question, error)
}

// QuizService contains the quiz use cases: one independent session per identity.
type QuizService struct {
	sessions  SessionRepository
	questions QuestionRepository
	machine   *session.Machine
	gate      *Gate

	log     logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
	daily   bool
}

// Option customizes a QuizService.
type Option func(*QuizService)

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *QuizService) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithDailyQuestions scopes sessions to the current day when no day is requested.
func WithDailyQuestions(daily bool) Option {
	return func(s *QuizService) { s.daily = daily }
}

func NewQuizService(store SessionRepository, questions QuestionRepository, machine *session.Machine, gate *Gate, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:  store,
		questions: questions,
		machine:   machine,
		gate:      gate,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResolveScope turns a requested day tag into a scope, defaulting to today when daily play is on.
func (s *QuizService) ResolveScope(day string) (domain.Scope, error) {
	if day != "" {
		return domain.ParseScope(day)
	}
	if s.daily {
		return domain.DayScope(s.now()), nil
	}
	return domain.GlobalScope, nil
}

// Start begins a session for identity. A prior completion record for the same day
// short-circuits into an already complete session.
func (s *QuizService) Start(ctx context.Context, identity string, scope domain.Scope, prior *domain.CompletionRecord) (domain.SessionView, error) {
	player := s.sessions.GetOrCreate(identity)
	if !player.begin() {
		return domain.SessionView{}, domain.ErrSubmissionInProgress
	}
	defer player.end()

	log := s.log.WithFields(logrus.Fields{"identity": identity, "scope": scope.Key()})

	if prior != nil && scope.IsDaily() && prior.Day == scope.Day && prior.Validate() == nil {
		log.Info("resuming completed daily session")
		return player.replace(s.machine.Resume(*prior), scope), nil
	}

	state, err := s.startFresh(ctx, scope)
	if err != nil {
		log.WithError(err).Warn("start session failed")
		// A player that never got a session leaves nothing behind.
		if current, _ := player.snapshot(); current.Phase() == session.NotStarted {
			player.Close()
			s.sessions.Delete(identity)
		}
		return domain.SessionView{}, err
	}
	log.WithField("mode", state.Mode()).Info("session started")
	return player.replace(state, scope), nil
}

func (s *QuizService) startFresh(ctx context.Context, scope domain.Scope) (session.State, error) {
	questions, err := s.questions.GetQuestions(ctx, scope)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyPool) {
			return session.State{}, err
		}
		return session.State{}, fetchError("fetch questions", err)
	}
	state, err := s.machine.Start(questions)
	if err != nil {
		return session.State{}, err
	}
	s.metrics.ObserveStart(string(state.Mode()))
	return state, nil
}

// Answer applies one answer to identity's session.
func (s *QuizService) Answer(ctx context.Context, identity, answer string) (domain.AnswerResult, error) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return domain.AnswerResult{}, domain.ErrSessionNotFound
	}
	if !player.begin() {
		return domain.AnswerResult{}, domain.ErrSubmissionInProgress
	}
	defer player.end()

	state, scope := player.snapshot()
	next, correct, err := s.machine.Submit(state, answer)
	if err != nil {
		return domain.AnswerResult{}, err
	}

	mode := string(next.Mode())
	s.metrics.ObserveAnswer(mode, correct)
	if !state.IsRetryMode() && next.IsRetryMode() {
		s.metrics.ObserveRetry()
	}

	result := domain.AnswerResult{Correct: correct}
	if next.IsComplete() {
		result.Completed = true
		elapsed, _ := next.Elapsed()
		s.metrics.ObserveCompletion(mode, elapsed.Seconds())

		eligible, err := s.gate.Eligible(ctx, identity, scope, elapsed.Seconds())
		if err != nil {
			// Qualification is advisory; the session itself is complete.
			s.log.WithError(err).WithField("identity", identity).Warn("leaderboard qualification check failed")
		}
		result.Qualifies = eligible
		s.log.WithFields(logrus.Fields{
			"identity": identity,
			"scope":    scope.Key(),
			"elapsed":  elapsed.Seconds(),
		}).Info("session complete")
	}

	result.State = player.replace(next, scope)
	return result, nil
}

// Restart discards progress and starts over in the same scope.
func (s *QuizService) Restart(ctx context.Context, identity string) (domain.SessionView, error) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	if !player.begin() {
		return domain.SessionView{}, domain.ErrSubmissionInProgress
	}
	defer player.end()

	state, scope := player.snapshot()
	var (
		next session.State
		err  error
	)
	if len(state.Questions()) == 0 {
		next, err = s.startFresh(ctx, scope)
	} else {
		next, err = s.machine.Restart(state)
		if err == nil {
			s.metrics.ObserveStart(string(next.Mode()))
		}
	}
	if err != nil {
		return domain.SessionView{}, err
	}
	return player.replace(next, scope), nil
}

// Current returns identity's session view.
func (s *QuizService) Current(_ context.Context, identity string) (domain.SessionView, error) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return domain.SessionView{}, domain.ErrSessionNotFound
	}
	state, scope := player.snapshot()
	return state.View(scope), nil
}

// Completion returns the completion record of a finished session.
func (s *QuizService) Completion(_ context.Context, identity string) (domain.CompletionRecord, error) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return domain.CompletionRecord{}, domain.ErrSessionNotFound
	}
	state, scope := player.snapshot()
	elapsed, err := state.Elapsed()
	if err != nil {
		return domain.CompletionRecord{}, err
	}
	return domain.CompletionRecord{Day: scope.Day, ElapsedSeconds: elapsed.Seconds()}, nil
}

// Subscribe returns a channel that receives identity's session views.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, identity string) (<-chan domain.SessionView, func(), error) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := player.subscribe()
	return ch, cancel, nil
}

// Abandon drops identity's session; nothing is persisted.
func (s *QuizService) Abandon(_ context.Context, identity string) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return
	}
	player.Close()
	s.sessions.Delete(identity)
}

// Leaderboard returns the ranked top entries for scope.
func (s *QuizService) Leaderboard(ctx context.Context, scope domain.Scope) ([]domain.RankedEntry, error) {
	return s.gate.Ranked(ctx, scope)
}

// SubmitScore records identity's completed session on the leaderboard under displayName.
// The metric is always the server-side elapsed time.
func (s *QuizService) SubmitScore(ctx context.Context, identity, displayName string) (domain.LeaderboardEntry, error) {
	player, ok := s.sessions.Get(identity)
	if !ok {
		return domain.LeaderboardEntry{}, domain.ErrSessionNotFound
	}
	state, scope := player.snapshot()
	elapsed, err := state.Elapsed()
	if err != nil {
		return domain.LeaderboardEntry{}, err
	}
	if state.Resumed() {
		// Resumed sessions carry a client-reported time; only a run played here can rank.
		s.metrics.ObserveSubmission("rejected")
		return domain.LeaderboardEntry{}, fmt.Errorf("%w: session was not played on this server", domain.ErrSubmissionRejected)
	}

	entry, err := s.gate.Submit(ctx, identity, displayName, elapsed.Seconds(), scope)
	switch {
	case err == nil:
		s.metrics.ObserveSubmission("accepted")
		s.log.WithFields(logrus.Fields{"identity": identity, "scope": scope.Key(), "metric": entry.Metric}).Info("leaderboard entry saved")
	case errors.Is(err, domain.ErrInvalidName):
		s.metrics.ObserveSubmission("invalid_name")
	case errors.Is(err, domain.ErrSubmissionRejected):
		s.metrics.ObserveSubmission("rejected")
	default:
		s.metrics.ObserveSubmission("error")
		s.log.WithError(err).WithField("identity", identity).Error("leaderboard submission failed")
	}
	return entry, err
}
