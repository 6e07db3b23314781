package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/domain"
	pgstore "bibleschool-quiz-service/internal/infra/postgres"
	pgmigrations "bibleschool-quiz-service/internal/infra/postgres/migrations"
	infraredis "bibleschool-quiz-service/internal/infra/redis"
	"bibleschool-quiz-service/internal/unlock"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestQuizAttemptEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	loader := pgstore.NewQuizLoader(pool)
	if err := loader.SaveQuiz(ctx, sampleQuiz()); err != nil {
		t.Fatalf("save quiz: %v", err)
	}
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	attempts := pgstore.NewAttemptRepository(pool)
	grader := app.NewGrader(quizRepo, attempts, attempts, nil)
	service := app.NewQuizService(app.ServiceDeps{
		Quizzes:     quizRepo,
		Progress:    infraredis.NewProgressStore(redisClient, time.Hour),
		Scorer:      grader,
		Reviews:     grader,
		Weekly:      attempts,
		Reflections: attempts,
	})
	defer service.Shutdown()

	ctrl, err := service.Open(ctx, "s1", "quiz-1", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := service.Start(ctx, "s1", "quiz-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := ctrl.SetAnswer(ctx, "q1", "Luke"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	// A reconnect after close restores the attempt from Redis.
	service.Close("s1", "quiz-1", ctrl)
	ctrl, err = service.Open(ctx, "s1", "quiz-1", false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if ctrl.Answers()["q1"] != "Luke" || ctrl.State() != app.StateInProgress {
		t.Fatalf("expected restored attempt, got %s %v", ctrl.State(), ctrl.Answers())
	}
	if err := ctrl.SetAnswer(ctx, "q2", "Antioch"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	outcome, err := ctrl.Submit(ctx, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.Percentage != 100 || !outcome.Passed {
		t.Fatalf("expected a perfect pass, got %+v", outcome)
	}

	review, err := service.Open(ctx, "s1", "quiz-1", true)
	if err != nil {
		t.Fatalf("open review: %v", err)
	}
	view, ok := review.Review()
	if !ok || view.AttemptID != outcome.AttemptID || view.TimeSpent == nil {
		t.Fatalf("unexpected review %+v", view)
	}

	if state, err := service.WeekAccess(ctx, "s1", 2); err != nil || state != unlock.Available {
		t.Fatalf("expected week 2 available, got %s err=%v", state, err)
	}
}

func TestLatestAttemptPrefersLastSavedOnTie(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	migrateDB(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	attempts := pgstore.NewAttemptRepository(pool)
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"b-first", "a-second"} {
		if err := attempts.SaveAttempt(ctx, domain.Attempt{
			ID:          id,
			QuizID:      "quiz-1",
			StudentID:   "s1",
			Answers:     domain.Answers{"q1": id},
			CompletedAt: completed,
		}); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	latest, err := attempts.LatestAttempt(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "a-second" {
		t.Fatalf("expected the attempt saved last, got %s", latest.ID)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDB(t *testing.T, ctx context.Context, dsn string) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.Quiz {
	limit := 20
	return domain.Quiz{
		ID:            "quiz-1",
		Title:         "Acts Week 1",
		TimeLimit:     &limit,
		PassingScore:  70,
		SessionNumber: 1,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "Who wrote Acts?", Type: domain.QuestionMultipleChoice, Options: []string{"Luke", "Paul"}, CorrectAnswer: "Luke", OrderIndex: 1},
			{ID: "q2", Prompt: "Where were they first called Christians?", Type: domain.QuestionMultipleChoice, Options: []string{"Antioch", "Rome"}, CorrectAnswer: "Antioch", OrderIndex: 2},
			{ID: "q3", Prompt: "Why do you want to serve?", Type: domain.QuestionEssay, OrderIndex: 3},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
