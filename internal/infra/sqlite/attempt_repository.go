package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bibleschool-quiz-service/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

// AttemptRepository stores attempts, weekly progress and reflections in a
// local SQLite file, for single-node deployments without Postgres.
type AttemptRepository struct {
	conn *sql.DB
}

// Open opens (or creates) the database at path and ensures the tables exist.
func Open(path string) (*AttemptRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &AttemptRepository{conn: db}, nil
}

// Close closes the database connection.
func (r *AttemptRepository) Close() error {
	return r.conn.Close()
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS quiz_attempts (
			id TEXT PRIMARY KEY,
			quiz_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			answers TEXT NOT NULL,
			score REAL NOT NULL,
			completed_at INTEGER NOT NULL,
			time_spent INTEGER
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS weekly_progress (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			student_id TEXT NOT NULL,
			session_number INTEGER NOT NULL,
			quiz_percentage REAL,
			recorded_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reflections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			quiz_id TEXT NOT NULL,
			student_id TEXT NOT NULL,
			prompt TEXT NOT NULL,
			essay TEXT NOT NULL,
			submitted_at INTEGER NOT NULL
		)
	`)
	return err
}

func (r *AttemptRepository) SaveAttempt(ctx context.Context, attempt domain.Attempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	var spent sql.NullInt64
	if attempt.TimeSpent != nil {
		spent = sql.NullInt64{Int64: int64(*attempt.TimeSpent), Valid: true}
	}
	_, err = r.conn.ExecContext(ctx,
		"INSERT INTO quiz_attempts (id, quiz_id, student_id, answers, score, completed_at, time_spent) VALUES (?, ?, ?, ?, ?, ?, ?)",
		attempt.ID, attempt.QuizID, attempt.StudentID, string(answers), attempt.Score, attempt.CompletedAt.UnixNano(), spent,
	)
	return err
}

func (r *AttemptRepository) LatestAttempt(ctx context.Context, studentID, quizID string) (domain.Attempt, error) {
	var (
		attempt     domain.Attempt
		answers     string
		completedAt int64
		spent       sql.NullInt64
	)
	err := r.conn.QueryRowContext(ctx,
		"SELECT id, quiz_id, student_id, answers, score, completed_at, time_spent FROM quiz_attempts WHERE student_id = ? AND quiz_id = ? ORDER BY completed_at DESC, rowid DESC LIMIT 1",
		studentID, quizID,
	).Scan(&attempt.ID, &attempt.QuizID, &attempt.StudentID, &answers, &attempt.Score, &completedAt, &spent)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.Attempt{}, err
	}
	if err := json.Unmarshal([]byte(answers), &attempt.Answers); err != nil {
		return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	attempt.CompletedAt = time.Unix(0, completedAt).UTC()
	if spent.Valid {
		v := int(spent.Int64)
		attempt.TimeSpent = &v
	}
	return attempt, nil
}

func (r *AttemptRepository) AppendProgress(ctx context.Context, studentID string, entry domain.WeeklyProgressEntry) error {
	_, err := r.conn.ExecContext(ctx,
		"INSERT INTO weekly_progress (student_id, session_number, quiz_percentage, recorded_at) VALUES (?, ?, ?, ?)",
		studentID, entry.SessionNumber, entry.QuizPercentage, time.Now().UnixNano(),
	)
	return err
}

func (r *AttemptRepository) ListProgress(ctx context.Context, studentID string) ([]domain.WeeklyProgressEntry, error) {
	rows, err := r.conn.QueryContext(ctx,
		"SELECT session_number, quiz_percentage FROM weekly_progress WHERE student_id = ? ORDER BY id",
		studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var log []domain.WeeklyProgressEntry
	for rows.Next() {
		var (
			entry domain.WeeklyProgressEntry
			pct   sql.NullFloat64
		)
		if err := rows.Scan(&entry.SessionNumber, &pct); err != nil {
			return nil, err
		}
		entry.QuizPercentage = pct.Float64
		log = append(log, entry)
	}
	return log, rows.Err()
}

func (r *AttemptRepository) SubmitReflection(ctx context.Context, reflection domain.Reflection) error {
	_, err := r.conn.ExecContext(ctx,
		"INSERT INTO reflections (quiz_id, student_id, prompt, essay, submitted_at) VALUES (?, ?, ?, ?, ?)",
		reflection.QuizID, reflection.StudentID, reflection.Prompt, reflection.Essay, reflection.SubmittedAt.UnixNano(),
	)
	return err
}
