package http

import (
	"io"
	"math/rand"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/metrics"
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

func question(id, day string) domain.Question {
	return domain.Question{ID: id, Prompt: id + "?", Answers: []string{"yes", "no"}, CorrectAnswer: "yes", Day: day}
}

func newTestServer(t *testing.T, questions ...domain.Question) *httptest.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	clock := &testClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	machine := session.NewMachineWithClock(
		session.Config{Mode: session.StreakWithRetry, Selection: session.Sequential},
		clock.Now, rand.New(rand.NewSource(1)),
	)
	reg := prometheus.NewRegistry()
	gate := app.NewGate(memory.NewLeaderboardStore(), profanity.New(), app.DefaultBoardSize, domain.Ascending)
	repo := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(questions), time.Minute)
	service := app.NewQuizService(memory.NewSessionStore(), repo, machine, gate,
		app.WithLogger(log),
		app.WithMetrics(metrics.New(reg)),
		app.WithClock(clock.Now),
	)

	server := httptest.NewServer(NewRouter(RouterConfig{
		Service:          service,
		Logger:           log,
		Gatherer:         reg,
		IdentityMaxAge:   time.Hour,
		CompletionMaxAge: time.Hour,
	}))
	t.Cleanup(server.Close)
	return server
}
