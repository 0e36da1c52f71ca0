package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/postgres"
	redisstore "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/logger"
)

// NewSeedCmd loads the YAML question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the question bank into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)
			if file == "" {
				file = cfg.Quiz.QuestionsFile
			}
			if file == "" {
				return fmt.Errorf("no question bank: set quiz.questions_file or --file")
			}

			questions, err := config.LoadQuestionBank(file)
			if err != nil {
				return err
			}
			if err := runMigrations(cmd.Context(), cfg, log); err != nil {
				return err
			}

			pool, err := pgxpool.Connect(cmd.Context(), cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := postgres.SeedQuestions(cmd.Context(), pool, questions); err != nil {
				return err
			}
			log.WithField("count", len(questions)).Info("questions seeded")

			if cfg.Redis.Addr == "" {
				return nil
			}
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			if err := invalidateCachedQuestions(cmd.Context(), redisstore.NewQuestionRepository(client, nil, 0), questions); err != nil {
				return err
			}
			log.Info("question cache invalidated")
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "question bank YAML (defaults to quiz.questions_file)")
	return cmd
}

type questionCache interface {
	Invalidate(ctx context.Context, scope domain.Scope) error
}

// invalidateCachedQuestions drops the global list and every day the bank touches.
func invalidateCachedQuestions(ctx context.Context, cache questionCache, questions []domain.Question) error {
	scopes := map[domain.Scope]struct{}{domain.GlobalScope: {}}
	for _, q := range questions {
		if q.Day != "" {
			scopes[domain.Scope{Day: q.Day}] = struct{}{}
		}
	}
	for scope := range scopes {
		if err := cache.Invalidate(ctx, scope); err != nil {
			return fmt.Errorf("invalidate %s: %w", scope.Key(), err)
		}
	}
	return nil
}
