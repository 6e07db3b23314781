package cli

import (
	"context"
	"path/filepath"
	"testing"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/config"
	"bibleschool-quiz-service/internal/logger"
	"bibleschool-quiz-service/internal/unlock"
)

func TestBuildServiceInMemory(t *testing.T) {
	ctx := context.Background()
	service, cleanup, err := buildService(ctx, config.Config{}, logger.Nop())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	defer cleanup()
	defer service.Shutdown()

	ctrl, err := service.Open(ctx, "s1", "acts-week-1", false)
	if err != nil {
		t.Fatalf("open sample quiz: %v", err)
	}
	if ctrl.State() != app.StateNotStarted {
		t.Fatalf("expected not_started, got %s", ctrl.State())
	}
	for _, q := range ctrl.Quiz().Questions {
		if q.CorrectAnswer != "" {
			t.Fatalf("live session leaked correct answer for %s", q.ID)
		}
	}
}

func TestBuildServiceWithSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.Config{}
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "quiz.db")

	service, cleanup, err := buildService(ctx, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	defer cleanup()
	defer service.Shutdown()

	ctrl, err := service.Open(ctx, "s1", "acts-week-1", false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := service.Start(ctx, "s1", "acts-week-1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := ctrl.SetAnswer(ctx, "q1", "Luke"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if _, err := ctrl.Submit(ctx, true); err != nil {
		t.Fatalf("submit: %v", err)
	}

	state, err := service.WeekAccess(ctx, "s1", 2)
	if err != nil {
		t.Fatalf("week access: %v", err)
	}
	if state != unlock.Available {
		t.Fatalf("expected week 2 available after a perfect week 1, got %s", state)
	}
}
