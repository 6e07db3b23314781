package app

import (
	"context"

	"bibleschool-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// KeyValueStore persists session snapshots for one client.
// Get returns domain.ErrKeyNotFound for absent keys.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ProgressStores hands out a KeyValueStore scoped to one student, so two
// students taking the same quiz never share keys.
type ProgressStores interface {
	ForStudent(studentID string) KeyValueStore
}

// Scorer grades and records a submitted attempt.
type Scorer interface {
	SubmitAttempt(ctx context.Context, submission domain.AttemptSubmission) (domain.AttemptResult, error)
}

// ReviewFetcher returns a student's most recent attempt with canonical answers.
type ReviewFetcher interface {
	ReviewAttempt(ctx context.Context, studentID, quizID string) (domain.ReviewAttempt, error)
}

// AttemptRepository stores graded attempts.
type AttemptRepository interface {
	SaveAttempt(ctx context.Context, attempt domain.Attempt) error
	// LatestAttempt returns domain.ErrAttemptNotFound when the student has none.
	LatestAttempt(ctx context.Context, studentID, quizID string) (domain.Attempt, error)
}

// WeeklyProgressRepository is the per-student weekly quiz log.
type WeeklyProgressRepository interface {
	AppendProgress(ctx context.Context, studentID string, entry domain.WeeklyProgressEntry) error
	ListProgress(ctx context.Context, studentID string) ([]domain.WeeklyProgressEntry, error)
}

// ReflectionSink receives final exam reflection essays.
type ReflectionSink interface {
	SubmitReflection(ctx context.Context, reflection domain.Reflection) error
}

// SpeechSynthesizer reads text aloud to the student.
type SpeechSynthesizer interface {
	Speak(ctx context.Context, text string) error
}

// SpeechRecognizer turns recorded audio into text.
type SpeechRecognizer interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// NoopSpeech satisfies both speech ports without doing anything.
type NoopSpeech struct{}

func (NoopSpeech) Speak(context.Context, string) error { return nil }

func (NoopSpeech) Transcribe(context.Context, []byte, string) (string, error) { return "", nil }
