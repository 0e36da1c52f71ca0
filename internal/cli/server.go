package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/postgres"
	redisstore "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/logger"
	"trivia-quiz-service/internal/metrics"
	"trivia-quiz-service/internal/profanity"
	"trivia-quiz-service/internal/session"
	transport "trivia-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 30*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	loader, err := questionLoader(cfg, pool)
	if err != nil {
		return err
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, loader, cacheTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, cacheTTL)
	}

	var store sessionStore
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var board app.LeaderboardStore
	switch {
	case pool != nil:
		board = postgres.NewLeaderboardStore(pool)
	case redisClient != nil:
		board = redisstore.NewLeaderboardStore(redisClient)
	default:
		board = memory.NewLeaderboardStore()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	machine := session.NewMachine(cfg.Session())
	gate := app.NewGate(board, profanity.New(), cfg.Leaderboard.Size, cfg.Direction())
	service := app.NewQuizService(store, questions, machine, gate,
		app.WithLogger(log),
		app.WithMetrics(metrics.New(reg)),
		app.WithDailyQuestions(cfg.Quiz.Daily),
	)

	idleTTL := config.TTLDuration(cfg.Quiz.IdleTTL, 30*time.Minute)
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go app.RunSweeper(sweepCtx, store, idleTTL/4, idleTTL, log)

	router := transport.NewRouter(transport.RouterConfig{
		Service:          service,
		Logger:           log,
		Gatherer:         reg,
		IdentityMaxAge:   config.TTLDuration(cfg.Identity.CookieMaxAge, app.DefaultIdentityMaxAge),
		CompletionMaxAge: config.TTLDuration(cfg.Identity.CompletionMaxAge, app.DefaultCompletionMaxAge),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":      finalPort,
			"mode":      cfg.Quiz.Mode,
			"selection": cfg.Quiz.Selection,
			"daily":     cfg.Quiz.Daily,
		}).Info("starting trivia service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type sessionStore interface {
	app.SessionRepository
	app.IdleSweeper
}

// questionLoader prefers Postgres and falls back to the YAML bank, then to a built-in sample.
func questionLoader(cfg config.Config, pool *pgxpool.Pool) (memory.QuestionLoader, error) {
	if pool != nil {
		return postgres.NewQuestionLoader(pool), nil
	}
	if cfg.Quiz.QuestionsFile != "" {
		qs, err := config.LoadQuestionBank(cfg.Quiz.QuestionsFile)
		if err != nil {
			return nil, err
		}
		return memory.NewStaticQuestionLoader(qs), nil
	}
	return memory.NewStaticQuestionLoader(sampleQuestions()), nil
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Prompt: "What is 2 + 2?", Answers: []string{"3", "4", "5"}, CorrectAnswer: "4"},
		{ID: "q2", Prompt: "Which planet is known as the Red Planet?", Answers: []string{"Venus", "Mars", "Jupiter"}, CorrectAnswer: "Mars"},
		{ID: "q3", Prompt: "What is the chemical symbol for gold?", Answers: []string{"Ag", "Au", "Gd"}, CorrectAnswer: "Au"},
	}
}
