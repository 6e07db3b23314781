package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/config"
	"bibleschool-quiz-service/internal/domain"
	"bibleschool-quiz-service/internal/infra/gcp"
	"bibleschool-quiz-service/internal/infra/memory"
	pgstore "bibleschool-quiz-service/internal/infra/postgres"
	redisstore "bibleschool-quiz-service/internal/infra/redis"
	"bibleschool-quiz-service/internal/infra/sqlite"
	"bibleschool-quiz-service/internal/logger"
	transport "bibleschool-quiz-service/internal/transport/http"
	"bibleschool-quiz-service/internal/unlock"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
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

// attemptStore is what the grader, unlock board and reflections share.
type attemptStore interface {
	app.AttemptRepository
	app.WeeklyProgressRepository
	app.ReflectionSink
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log.Mode, cfg.Log.Salt)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	service, cleanup, err := buildService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service, log).ServeWS)
	transport.NewWeeksHandler(service, log).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	service.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildService picks adapters from cfg: Redis when an address is set,
// Postgres then SQLite for attempts, in-memory otherwise. The returned
// cleanup releases every opened connection.
func buildService(ctx context.Context, cfg config.Config, log *logger.Logger) (*app.QuizService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*app.QuizService, func(), error) {
		cleanup()
		return nil, nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, pool.Close)
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var progress app.ProgressStores
	if redisClient != nil {
		progressTTL := config.TTLDuration(cfg.Quiz.ProgressTTL, config.TTLDuration(cfg.Redis.TTL, 7*24*time.Hour))
		progress = redisstore.NewProgressStore(redisClient, progressTTL)
	} else {
		progress = memory.NewProgressStore()
	}

	var attempts attemptStore
	switch {
	case pool != nil:
		attempts = pgstore.NewAttemptRepository(pool)
	case cfg.SQLite.Path != "":
		repo, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = repo.Close() })
		attempts = repo
	default:
		attempts = memory.NewAttemptRepository()
	}

	var recognizer app.SpeechRecognizer = app.NoopSpeech{}
	if cfg.Speech.Provider == "gcp" {
		rec, err := gcp.NewRecognizer(ctx, cfg.Speech.LanguageCode)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() { _ = rec.Close() })
		recognizer = rec
	}

	grader := app.NewGrader(quizRepo, attempts, attempts, log)
	service := app.NewQuizService(app.ServiceDeps{
		Quizzes:      quizRepo,
		Progress:     progress,
		Scorer:       grader,
		Reviews:      grader,
		Weekly:       attempts,
		Reflections:  attempts,
		Recognizer:   recognizer,
		Rule:         unlock.NewRule(cfg.Unlock.Threshold),
		TickInterval: config.TTLDuration(cfg.Quiz.TickInterval, app.DefaultTickInterval),
		Logger:       log,
	})
	return service, cleanup, nil
}

// sampleQuizzes seeds the in-memory loader when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	limit := 15
	return map[string]domain.Quiz{
		"acts-week-1": {
			ID:            "acts-week-1",
			Title:         "Acts Week 1",
			CourseName:    "Acts",
			TimeLimit:     &limit,
			PassingScore:  70,
			SessionNumber: 1,
			Questions: []domain.Question{
				{
					ID:            "q1",
					Prompt:        "Who wrote the book of Acts?",
					Type:          domain.QuestionMultipleChoice,
					Options:       []string{"Luke", "Paul", "Peter"},
					CorrectAnswer: "Luke",
					OrderIndex:    1,
				},
				{
					ID:         "q2",
					Prompt:     "Have you been baptized? Explain.",
					Type:       domain.QuestionYesNoWithText,
					OrderIndex: 2,
				},
				{
					ID:         "q3",
					Prompt:     "Describe the events of Pentecost in Acts 2.",
					Type:       domain.QuestionEssay,
					OrderIndex: 3,
				},
			},
		},
	}
}
