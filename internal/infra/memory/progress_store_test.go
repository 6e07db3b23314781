package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bibleschool-quiz-service/internal/domain"
)

func TestProgressStoreScopesByStudent(t *testing.T) {
	ctx := context.Background()
	store := NewProgressStore()
	alice := store.ForStudent("alice")
	bob := store.ForStudent("bob")

	if err := alice.Set(ctx, "quiz_1_progress", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := bob.Get(ctx, "quiz_1_progress"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected bob to see nothing, got %v", err)
	}
	got, err := store.ForStudent("alice").Get(ctx, "quiz_1_progress")
	if err != nil || string(got) != `{"a":1}` {
		t.Fatalf("unexpected value %q err=%v", got, err)
	}

	if err := alice.Delete(ctx, "quiz_1_progress"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := alice.Get(ctx, "quiz_1_progress"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected key removed, got %v", err)
	}
}

func TestAttemptRepositoryLatestAndProgress(t *testing.T) {
	ctx := context.Background()
	repo := NewAttemptRepository()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := repo.LatestAttempt(ctx, "s1", "quiz-1"); !errors.Is(err, domain.ErrAttemptNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_ = repo.SaveAttempt(ctx, domain.Attempt{ID: "a1", StudentID: "s1", QuizID: "quiz-1", Score: 0.5, CompletedAt: base})
	_ = repo.SaveAttempt(ctx, domain.Attempt{ID: "a2", StudentID: "s1", QuizID: "quiz-1", Score: 0.9, CompletedAt: base.Add(time.Hour)})
	_ = repo.SaveAttempt(ctx, domain.Attempt{ID: "a3", StudentID: "s2", QuizID: "quiz-1", CompletedAt: base.Add(2 * time.Hour)})

	latest, err := repo.LatestAttempt(ctx, "s1", "quiz-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.ID != "a2" {
		t.Fatalf("expected a2, got %s", latest.ID)
	}

	_ = repo.AppendProgress(ctx, "s1", domain.WeeklyProgressEntry{SessionNumber: 1, QuizPercentage: 80})
	log, _ := repo.ListProgress(ctx, "s1")
	if len(log) != 1 || log[0].QuizPercentage != 80 {
		t.Fatalf("unexpected progress log %+v", log)
	}
	if other, _ := repo.ListProgress(ctx, "s2"); len(other) != 0 {
		t.Fatalf("expected empty log for s2, got %+v", other)
	}
}
