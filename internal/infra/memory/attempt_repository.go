package memory

import (
	"context"
	"sync"

	"bibleschool-quiz-service/internal/domain"
)

// AttemptRepository keeps attempts, weekly progress and reflections in memory.
// It implements app.AttemptRepository, app.WeeklyProgressRepository and
// app.ReflectionSink.
type AttemptRepository struct {
	mu          sync.RWMutex
	attempts    []domain.Attempt
	progress    map[string][]domain.WeeklyProgressEntry
	reflections []domain.Reflection
}

func NewAttemptRepository() *AttemptRepository {
	return &AttemptRepository{progress: make(map[string][]domain.WeeklyProgressEntry)}
}

func (r *AttemptRepository) SaveAttempt(_ context.Context, attempt domain.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	attempt.Answers = attempt.Answers.Clone()
	r.attempts = append(r.attempts, attempt)
	return nil
}

// LatestAttempt returns the most recently completed attempt; later saves win ties.
func (r *AttemptRepository) LatestAttempt(_ context.Context, studentID, quizID string) (domain.Attempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		latest domain.Attempt
		found  bool
	)
	for _, attempt := range r.attempts {
		if attempt.StudentID != studentID || attempt.QuizID != quizID {
			continue
		}
		if !found || !attempt.CompletedAt.Before(latest.CompletedAt) {
			latest = attempt
			found = true
		}
	}
	if !found {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	latest.Answers = latest.Answers.Clone()
	return latest, nil
}

func (r *AttemptRepository) AppendProgress(_ context.Context, studentID string, entry domain.WeeklyProgressEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[studentID] = append(r.progress[studentID], entry)
	return nil
}

func (r *AttemptRepository) ListProgress(_ context.Context, studentID string) ([]domain.WeeklyProgressEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.WeeklyProgressEntry(nil), r.progress[studentID]...), nil
}

func (r *AttemptRepository) SubmitReflection(_ context.Context, reflection domain.Reflection) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reflections = append(r.reflections, reflection)
	return nil
}

// Reflections returns the stored reflection essays.
func (r *AttemptRepository) Reflections() []domain.Reflection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Reflection(nil), r.reflections...)
}
