package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, scope domain.Scope) ([]domain.Question, error)
}

// QuestionRepository caches questions per scope with TTL to avoid repeated store hits.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return NewQuestionRepositoryWithClock(loader, ttl, time.Now)
}

// NewQuestionRepositoryWithClock allows tests to move time past expiry.
func NewQuestionRepositoryWithClock(loader QuestionLoader, ttl time.Duration, clock func() time.Time) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedQuestions),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, scope domain.Scope) ([]domain.Question, error) {
	key := scope.Key()
	if qs, ok := r.cached(key); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if qs, ok := r.cached(key); ok {
			return qs, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, scope)
		if err != nil {
			return nil, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 {
			r.mu.Lock()
			r.cache[key] = cachedQuestions{
				questions: questions,
				expiresAt: r.clock().Add(ttl),
			}
			r.mu.Unlock()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(key string) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[key]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed question bank (useful for tests/demos and the YAML bank file).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

// LoadQuestions returns every question for the global scope, or only the day's questions.
func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, scope domain.Scope) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if scope.IsDaily() && q.Day != scope.Day {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}
