package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-quiz-service/internal/domain"
)

const selectQuestions = `SELECT id, prompt, answers, correct_answer, COALESCE(to_char(day, 'YYYY-MM-DD'), '')
FROM questions`

// QuestionLoader loads question rows from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadQuestions returns every question for the global scope, or only the rows tagged with the scope's day.
func (l *QuestionLoader) LoadQuestions(ctx context.Context, scope domain.Scope) ([]domain.Question, error) {
	query := selectQuestions + ` ORDER BY id`
	args := []interface{}{}
	if scope.IsDaily() {
		query = selectQuestions + ` WHERE day = $1::date ORDER BY id`
		args = append(args, scope.Day)
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var q domain.Question
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Answers, &q.CorrectAnswer, &q.Day); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return questions, nil
}

// SeedQuestions upserts questions by id.
func SeedQuestions(ctx context.Context, pool *pgxpool.Pool, questions []domain.Question) error {
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		_, err := pool.Exec(ctx, `INSERT INTO questions (id, prompt, answers, correct_answer, day)
VALUES ($1, $2, $3, $4, NULLIF($5, '')::date)
ON CONFLICT (id) DO UPDATE SET
    prompt = EXCLUDED.prompt,
    answers = EXCLUDED.answers,
    correct_answer = EXCLUDED.correct_answer,
    day = EXCLUDED.day`,
			q.ID, q.Prompt, q.Answers, q.CorrectAnswer, q.Day)
		if err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	return nil
}
