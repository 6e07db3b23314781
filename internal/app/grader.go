package app

import (
	"context"
	"fmt"
	"math"
	"time"

	"bibleschool-quiz-service/internal/domain"
	"bibleschool-quiz-service/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Grader is the scoring collaborator: it grades submissions against the
// canonical quiz, stores attempts, feeds the weekly progress log and serves
// attempts back for review.
type Grader struct {
	quizzes  QuizRepository
	attempts AttemptRepository
	progress WeeklyProgressRepository
	log      *logger.Logger
	newID    func() string
}

// NewGrader wires a grader. progress may be nil when no weekly program is tracked.
func NewGrader(quizzes QuizRepository, attempts AttemptRepository, progress WeeklyProgressRepository, log *logger.Logger) *Grader {
	if log == nil {
		log = logger.Nop()
	}
	return &Grader{
		quizzes:  quizzes,
		attempts: attempts,
		progress: progress,
		log:      log.With("component", "grader"),
		newID:    uuid.NewString,
	}
}

// SubmitAttempt scores the multiple choice questions that carry a correct
// answer; other question types are graded elsewhere. A quiz without
// gradable questions scores zero.
func (g *Grader) SubmitAttempt(ctx context.Context, submission domain.AttemptSubmission) (domain.AttemptResult, error) {
	quiz, err := g.quizzes.GetQuiz(ctx, submission.QuizID)
	if err != nil {
		return domain.AttemptResult{}, fmt.Errorf("load quiz: %w", err)
	}

	score := Score(quiz, submission.Answers)
	completedAt := submission.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}
	attempt := domain.Attempt{
		ID:          g.newID(),
		QuizID:      quiz.ID,
		StudentID:   submission.StudentID,
		Answers:     submission.Answers.Clone(),
		Score:       score,
		CompletedAt: completedAt.UTC(),
		TimeSpent:   copyInt(submission.TimeSpent),
	}
	if err := g.attempts.SaveAttempt(ctx, attempt); err != nil {
		return domain.AttemptResult{}, fmt.Errorf("save attempt: %w", err)
	}

	if quiz.SessionNumber > 0 && g.progress != nil {
		entry := domain.WeeklyProgressEntry{
			SessionNumber:  quiz.SessionNumber,
			QuizPercentage: math.Round(score * 100),
		}
		if err := g.progress.AppendProgress(ctx, submission.StudentID, entry); err != nil {
			g.log.Warn("record weekly progress failed", "quiz_id", quiz.ID, "student_id", submission.StudentID, "error", err)
		}
	}

	g.log.Info("attempt graded", "quiz_id", quiz.ID, "student_id", submission.StudentID, "score", score)
	return domain.AttemptResult{AttemptID: attempt.ID, Score: score}, nil
}

// ReviewAttempt pairs the student's most recent attempt with the canonical
// questions, including correct answers.
func (g *Grader) ReviewAttempt(ctx context.Context, studentID, quizID string) (domain.ReviewAttempt, error) {
	var (
		quiz    domain.Quiz
		attempt domain.Attempt
	)
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		quiz, err = g.quizzes.GetQuiz(gctx, quizID)
		return err
	})
	group.Go(func() error {
		var err error
		attempt, err = g.attempts.LatestAttempt(gctx, studentID, quizID)
		return err
	})
	if err := group.Wait(); err != nil {
		return domain.ReviewAttempt{}, err
	}

	review := domain.ReviewAttempt{
		Attempt:      attempt,
		PassingScore: quiz.PassingScore,
		Questions:    make([]domain.ReviewQuestion, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		review.Questions = append(review.Questions, domain.ReviewQuestion{
			Question:   q,
			UserAnswer: attempt.Answers[q.ID],
		})
	}
	return review, nil
}

// Score is the fraction of gradable multiple choice questions answered with
// the literal correct option text.
func Score(quiz domain.Quiz, answers domain.Answers) float64 {
	correct, total := 0, 0
	for _, q := range quiz.Questions {
		if q.Type != domain.QuestionMultipleChoice || q.CorrectAnswer == "" {
			continue
		}
		total++
		if answers[q.ID] == q.CorrectAnswer {
			correct++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total)
}
