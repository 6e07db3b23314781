package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bibleschool-quiz-service/internal/domain"
)

func TestQuizRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuizLoader: NewStaticQuizLoader(map[string]domain.Quiz{
			"quiz-1": sampleQuiz(),
		}),
	}
	repo := NewQuizRepository(loader, time.Minute)

	quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}
	if quiz.Questions[0].ID != "q1" || quiz.Questions[1].Type != domain.QuestionEssay {
		t.Fatalf("expected normalized quiz, got %+v", quiz.Questions)
	}

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get quiz 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestQuizRepositoryRejectsInvalidQuiz(t *testing.T) {
	repo := NewQuizRepository(NewStaticQuizLoader(map[string]domain.Quiz{
		"bad": {ID: "bad", Questions: []domain.Question{{ID: "q1", Type: "drawing"}}},
	}), time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "bad"); !errors.Is(err, domain.ErrUnknownQuestionType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
	if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	QuizLoader
	calls int
}

func (l *countingLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	l.calls++
	return l.QuizLoader.LoadQuiz(ctx, quizID)
}

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:           "quiz-1",
		Title:        "Acts Week 1",
		PassingScore: 70,
		Questions: []domain.Question{
			{ID: "q2", Prompt: "Describe Pentecost", Type: "subjective", OrderIndex: 2},
			{
				ID:            "q1",
				Prompt:        "Who wrote Acts?",
				Type:          domain.QuestionMultipleChoice,
				Options:       []string{"Luke", "Paul", "Peter"},
				CorrectAnswer: "Luke",
				OrderIndex:    1,
			},
		},
	}
}
