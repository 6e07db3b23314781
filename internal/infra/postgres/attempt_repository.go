package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bibleschool-quiz-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// AttemptRepository stores graded attempts, the weekly progress log and
// reflection essays.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) SaveAttempt(ctx context.Context, attempt domain.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	var spent *int32
	if attempt.TimeSpent != nil {
		v := int32(*attempt.TimeSpent)
		spent = &v
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO quiz_attempts (id, quiz_id, student_id, answers, score, completed_at, time_spent)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7)`,
		attempt.ID, attempt.QuizID, attempt.StudentID, string(answers), attempt.Score, attempt.CompletedAt, spent)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// LatestAttempt returns the most recently completed attempt; ties go to the
// one saved last.
func (r *AttemptRepository) LatestAttempt(ctx context.Context, studentID, quizID string) (domain.Attempt, error) {
	var (
		attempt domain.Attempt
		answers []byte
		spent   *int32
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, quiz_id, student_id, answers, score, completed_at, time_spent
		FROM quiz_attempts
		WHERE student_id=$1 AND quiz_id=$2
		ORDER BY completed_at DESC, seq DESC
		LIMIT 1`, studentID, quizID).
		Scan(&attempt.ID, &attempt.QuizID, &attempt.StudentID, &answers, &attempt.Score, &attempt.CompletedAt, &spent)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	if spent != nil {
		v := int(*spent)
		attempt.TimeSpent = &v
	}
	return attempt, nil
}

func (r *AttemptRepository) AppendProgress(ctx context.Context, studentID string, entry domain.WeeklyProgressEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO weekly_progress (student_id, session_number, quiz_percentage, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		studentID, entry.SessionNumber, entry.QuizPercentage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert weekly progress: %w", err)
	}
	return nil
}

// ListProgress returns the student's log; NULL percentages read as zero.
func (r *AttemptRepository) ListProgress(ctx context.Context, studentID string) ([]domain.WeeklyProgressEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_number, COALESCE(quiz_percentage, 0)
		FROM weekly_progress
		WHERE student_id=$1
		ORDER BY recorded_at, id`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list weekly progress: %w", err)
	}
	defer rows.Close()

	var log []domain.WeeklyProgressEntry
	for rows.Next() {
		var entry domain.WeeklyProgressEntry
		if err := rows.Scan(&entry.SessionNumber, &entry.QuizPercentage); err != nil {
			return nil, fmt.Errorf("scan weekly progress: %w", err)
		}
		log = append(log, entry)
	}
	return log, rows.Err()
}

func (r *AttemptRepository) SubmitReflection(ctx context.Context, reflection domain.Reflection) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reflections (quiz_id, student_id, prompt, essay, submitted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		reflection.QuizID, reflection.StudentID, reflection.Prompt, reflection.Essay, reflection.SubmittedAt)
	if err != nil {
		return fmt.Errorf("insert reflection: %w", err)
	}
	return nil
}
