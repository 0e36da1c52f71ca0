package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivia-quiz-service/internal/domain"
)

// QuestionLoader fetches question content from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, scope domain.Scope) ([]domain.Question, error)
}

// QuestionRepository caches each scope's questions in Redis and falls back to a loader on miss.
// Questions are stored as: SET trivia:questions:{scope} <json array> EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, scope domain.Scope) ([]domain.Question, error) {
	key := r.questionsKey(scope)
	if qs, ok := r.cached(ctx, key); ok {
		return qs, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := r.cached(ctx, key); ok {
			return qs, nil
		}

		questions, err := r.loader.LoadQuestions(ctx, scope)
		if err != nil {
			return nil, err
		}

		if ttl := r.ttlWithJitter(); ttl > 0 && len(questions) > 0 {
			if raw, err := json.Marshal(questions); err == nil {
				// best effort
				_ = r.client.Set(ctx, key, raw, ttl).Err()
			}
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (r *QuestionRepository) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil || len(qs) == 0 {
		return nil, false
	}
	return qs, true
}

// Invalidate drops the cached questions for scope.
func (r *QuestionRepository) Invalidate(ctx context.Context, scope domain.Scope) error {
	return r.client.Del(ctx, r.questionsKey(scope)).Err()
}

func (r *QuestionRepository) questionsKey(scope domain.Scope) string {
	return "trivia:questions:" + scope.Key()
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
