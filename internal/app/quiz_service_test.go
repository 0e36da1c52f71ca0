package app_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/profanity"
	"trivia-quiz-service/internal/session"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fixture struct {
	service  *app.QuizService
	board    *memory.LeaderboardStore
	sessions *memory.SessionStore
}

func newFixture(t *testing.T, questions app.QuestionRepository, mode session.Mode) fixture {
	t.Helper()
	clock := &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	machine := session.NewMachineWithClock(session.Config{Mode: mode, Selection: session.Sequential}, clock.Now, rand.New(rand.NewSource(1)))
	board := memory.NewLeaderboardStore()
	gate := app.NewGate(board, profanity.New(), app.DefaultBoardSize, domain.Ascending)
	sessions := memory.NewSessionStore()
	service := app.NewQuizService(sessions, questions, machine, gate,
		app.WithLogger(quietLogger()),
		app.WithClock(clock.Now),
	)
	return fixture{service: service, board: board, sessions: sessions}
}

func staticQuestions(qs ...domain.Question) app.QuestionRepository {
	return memory.NewQuestionRepository(memory.NewStaticQuestionLoader(qs), time.Minute)
}

func question(id string) domain.Question {
	return domain.Question{ID: id, Prompt: id + "?", Answers: []string{"yes", "no"}, CorrectAnswer: "yes"}
}

func TestStartAnswerAndSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1"), question("q2")), session.StreakWithRetry)

	view, err := f.service.Start(ctx, "u1", domain.GlobalScope, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Question == nil || view.Question.ID != "q1" || view.Remaining != 2 {
		t.Fatalf("unexpected start view %+v", view)
	}

	res, err := f.service.Answer(ctx, "u1", "yes")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Correct || res.Completed || res.State.Streak != 1 {
		t.Fatalf("unexpected first result %+v", res)
	}

	res, err = f.service.Answer(ctx, "u1", "yes")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Completed || !res.Qualifies || !res.State.Complete {
		t.Fatalf("expected qualifying completion, got %+v", res)
	}

	entry, err := f.service.SubmitScore(ctx, "u1", "  Alice ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if entry.DisplayName != "Alice" || entry.Metric != res.State.ElapsedSeconds {
		t.Fatalf("unexpected entry %+v", entry)
	}

	if _, err := f.service.SubmitScore(ctx, "u1", "Alice"); !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("expected duplicate submission rejected, got %v", err)
	}

	ranked, err := f.service.Leaderboard(ctx, domain.GlobalScope)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(ranked) != 1 || ranked[0].Rank != 1 || ranked[0].DisplayName != "Alice" {
		t.Fatalf("unexpected leaderboard %+v", ranked)
	}
}

func TestWrongAnswerEntersRetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1"), question("q2"), question("q3")), session.StreakWithRetry)

	if _, err := f.service.Start(ctx, "u1", domain.GlobalScope, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	_, _ = f.service.Answer(ctx, "u1", "yes")
	res, err := f.service.Answer(ctx, "u1", "no")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if res.Correct || !res.State.RetryMode || res.State.RetryPending != 1 || res.State.Streak != 0 {
		t.Fatalf("expected retry mode with one pending, got %+v", res.State)
	}
	if res.State.Question.ID != "q1" {
		t.Fatalf("expected q1 re-verified, got %s", res.State.Question.ID)
	}
}

func TestAnswerErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.Linear)

	if _, err := f.service.Answer(ctx, "ghost", "yes"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	_, _ = f.service.Start(ctx, "u1", domain.GlobalScope, nil)
	if _, err := f.service.Answer(ctx, "u1", "maybe"); !errors.Is(err, domain.ErrInvalidAnswer) {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
	if _, err := f.service.SubmitScore(ctx, "u1", "Alice"); !errors.Is(err, domain.ErrSessionNotComplete) {
		t.Fatalf("expected ErrSessionNotComplete, got %v", err)
	}
	_, _ = f.service.Answer(ctx, "u1", "yes")
	if _, err := f.service.Answer(ctx, "u1", "yes"); !errors.Is(err, domain.ErrNoActiveQuestion) {
		t.Fatalf("expected ErrNoActiveQuestion, got %v", err)
	}
}

func TestStartEmptyPool(t *testing.T) {
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)
	_, err := f.service.Start(context.Background(), "u1", domain.Scope{Day: "2030-01-01"}, nil)
	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
}

func TestStartFetchError(t *testing.T) {
	f := newFixture(t, failingQuestions{err: errors.New("connection refused")}, session.StreakWithRetry)
	_, err := f.service.Start(context.Background(), "u1", domain.GlobalScope, nil)
	if !errors.Is(err, domain.ErrFetch) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestStartResumesCompletedDay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)
	scope := domain.Scope{Day: "2024-05-01"}

	view, err := f.service.Start(ctx, "u1", scope, &domain.CompletionRecord{Day: scope.Day, ElapsedSeconds: 12})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !view.Complete || view.ElapsedSeconds != 12 {
		t.Fatalf("expected resumed completion, got %+v", view)
	}

	// A record from another day does not short-circuit.
	_, err = f.service.Start(ctx, "u2", scope, &domain.CompletionRecord{Day: "2024-04-30", ElapsedSeconds: 12})
	if !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected a real start for the new day, got %v", err)
	}
}

func TestResumedSessionCannotSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)
	scope := domain.Scope{Day: "2024-05-01"}

	if _, err := f.service.Start(ctx, "u1", scope, &domain.CompletionRecord{Day: scope.Day, ElapsedSeconds: 0.001}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.service.SubmitScore(ctx, "u1", "Speedy"); !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("expected ErrSubmissionRejected for a resumed session, got %v", err)
	}
	if top, _ := f.board.FetchTop(ctx, scope, 10, domain.Ascending); len(top) != 0 {
		t.Fatalf("expected nothing on the board, got %+v", top)
	}
}

func TestStartIgnoresInvalidCompletionRecord(t *testing.T) {
	ctx := context.Background()
	day := question("q1")
	day.Day = "2024-05-01"
	f := newFixture(t, staticQuestions(day), session.StreakWithRetry)
	scope := domain.Scope{Day: day.Day}

	view, err := f.service.Start(ctx, "u1", scope, &domain.CompletionRecord{Day: scope.Day, ElapsedSeconds: math.Inf(1)})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if view.Complete || view.Question == nil {
		t.Fatalf("expected a fresh session, got %+v", view)
	}
}

func TestFailedStartLeavesNoPlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, failingQuestions{err: errors.New("connection refused")}, session.StreakWithRetry)

	if _, err := f.service.Start(ctx, "u1", domain.GlobalScope, nil); err == nil {
		t.Fatalf("expected start to fail")
	}
	if _, ok := f.sessions.Get("u1"); ok {
		t.Fatalf("expected failed start to drop the player")
	}
	if _, err := f.service.Current(ctx, "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFailedStartKeepsExistingSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)

	if _, err := f.service.Start(ctx, "u1", domain.GlobalScope, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	// No questions exist for this day.
	if _, err := f.service.Start(ctx, "u1", domain.Scope{Day: "2030-01-01"}, nil); !errors.Is(err, domain.ErrEmptyPool) {
		t.Fatalf("expected ErrEmptyPool, got %v", err)
	}
	if _, err := f.service.Current(ctx, "u1"); err != nil {
		t.Fatalf("expected the running session to survive, got %v", err)
	}
}

func TestConcurrentSubscribeAndAbandon(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("u%d", i)
		if _, err := f.service.Start(ctx, id, domain.GlobalScope, nil); err != nil {
			t.Fatalf("start: %v", err)
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if ch, cancel, err := f.service.Subscribe(ctx, id); err == nil {
				for range ch {
				}
				cancel()
			}
		}()
		go func() {
			defer wg.Done()
			f.service.Abandon(ctx, id)
		}()
		wg.Wait()
	}
}

func TestRestartAfterCompletion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1"), question("q2")), session.Linear)

	_, _ = f.service.Start(ctx, "u1", domain.GlobalScope, nil)
	_, _ = f.service.Answer(ctx, "u1", "yes")
	_, _ = f.service.Answer(ctx, "u1", "yes")

	view, err := f.service.Restart(ctx, "u1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if view.Complete || view.Remaining != 2 || view.Question == nil {
		t.Fatalf("expected fresh session, got %+v", view)
	}
}

func TestRestartResumedSessionFetchesQuestions(t *testing.T) {
	ctx := context.Background()
	day := question("q1")
	day.Day = "2024-05-01"
	f := newFixture(t, staticQuestions(day), session.StreakWithRetry)
	scope := domain.Scope{Day: day.Day}

	_, _ = f.service.Start(ctx, "u1", scope, &domain.CompletionRecord{Day: scope.Day, ElapsedSeconds: 3})
	view, err := f.service.Restart(ctx, "u1")
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	if view.Question == nil || view.Question.ID != "q1" {
		t.Fatalf("expected q1 after restart, got %+v", view)
	}
}

func TestAnswerWhileStartInFlightIsRejected(t *testing.T) {
	ctx := context.Background()
	repo := &blockingQuestions{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		qs:      []domain.Question{question("q1")},
	}
	f := newFixture(t, repo, session.StreakWithRetry)

	done := make(chan error, 1)
	go func() {
		_, err := f.service.Start(ctx, "u1", domain.GlobalScope, nil)
		done <- err
	}()

	<-repo.entered
	if _, err := f.service.Answer(ctx, "u1", "yes"); !errors.Is(err, domain.ErrSubmissionInProgress) {
		t.Fatalf("expected ErrSubmissionInProgress, got %v", err)
	}
	close(repo.release)
	if err := <-done; err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.service.Answer(ctx, "u1", "yes"); err != nil {
		t.Fatalf("answer after start: %v", err)
	}
}

func TestSubscribeReceivesUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1"), question("q2")), session.StreakWithRetry)

	_, _ = f.service.Start(ctx, "u1", domain.GlobalScope, nil)
	ch, cancel, err := f.service.Subscribe(ctx, "u1")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := <-ch
	if initial.Remaining != 2 {
		t.Fatalf("expected initial snapshot, got %+v", initial)
	}

	_, _ = f.service.Answer(ctx, "u1", "yes")
	update := <-ch
	if update.Streak != 1 || update.Remaining != 1 {
		t.Fatalf("expected streak 1, got %+v", update)
	}
}

func TestAbandonDropsSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)

	_, _ = f.service.Start(ctx, "u1", domain.GlobalScope, nil)
	ch, cancel, _ := f.service.Subscribe(ctx, "u1")
	<-ch

	f.service.Abandon(ctx, "u1")
	if _, ok := <-ch; ok {
		t.Fatalf("expected subscription closed on abandon")
	}
	cancel()

	if _, err := f.service.Current(ctx, "u1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected session gone, got %v", err)
	}
}

func TestCompletionRecord(t *testing.T) {
	ctx := context.Background()
	day := question("q1")
	day.Day = "2024-05-01"
	f := newFixture(t, staticQuestions(day), session.StreakWithRetry)

	_, _ = f.service.Start(ctx, "u1", domain.Scope{Day: day.Day}, nil)
	if _, err := f.service.Completion(ctx, "u1"); !errors.Is(err, domain.ErrSessionNotComplete) {
		t.Fatalf("expected ErrSessionNotComplete, got %v", err)
	}
	_, _ = f.service.Answer(ctx, "u1", "yes")
	rec, err := f.service.Completion(ctx, "u1")
	if err != nil || rec.Day != day.Day || rec.ElapsedSeconds <= 0 {
		t.Fatalf("unexpected completion record %+v %v", rec, err)
	}
}

func TestResolveScope(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC) }
	machine := session.NewMachine(session.Config{})
	gate := app.NewGate(memory.NewLeaderboardStore(), nil, 0, "")

	daily := app.NewQuizService(memory.NewSessionStore(), staticQuestions(), machine, gate, app.WithClock(clock), app.WithDailyQuestions(true))
	if s, _ := daily.ResolveScope(""); s.Day != "2024-05-01" {
		t.Fatalf("expected today's scope, got %+v", s)
	}
	global := app.NewQuizService(memory.NewSessionStore(), staticQuestions(), machine, gate)
	if s, _ := global.ResolveScope(""); s != domain.GlobalScope {
		t.Fatalf("expected global scope, got %+v", s)
	}
	if _, err := global.ResolveScope("tomorrow"); err == nil {
		t.Fatalf("expected invalid day error")
	}
}

func TestLeaderboardQualificationAcrossPlayers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, staticQuestions(question("q1")), session.StreakWithRetry)

	for i := 0; i < app.DefaultBoardSize; i++ {
		_ = f.board.Upsert(ctx, domain.LeaderboardEntry{Identity: fmt.Sprintf("p%d", i), DisplayName: "p", Metric: 0.5})
	}

	_, _ = f.service.Start(ctx, "u1", domain.GlobalScope, nil)
	res, err := f.service.Answer(ctx, "u1", "yes")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if !res.Completed || res.Qualifies {
		t.Fatalf("expected completion that does not qualify, got %+v", res)
	}
	if _, err := f.service.SubmitScore(ctx, "u1", "Turtle"); !errors.Is(err, domain.ErrSubmissionRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

type failingQuestions struct{ err error }

func (f failingQuestions) GetQuestions(context.Context, domain.Scope) ([]domain.Question, error) {
	return nil, f.err
}

type blockingQuestions struct {
	entered chan struct{}
	release chan struct{}
	qs      []domain.Question
	once    sync.Once
}

func (b *blockingQuestions) GetQuestions(context.Context, domain.Scope) ([]domain.Question, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.qs, nil
}
