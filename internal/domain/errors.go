package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound indicates a question ID is not part of the quiz.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSessionNotFound is returned when no session is open for a student and quiz.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrAttemptNotFound is returned when a student has no stored attempt to review.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrKeyNotFound is returned by key-value stores for absent keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrUnknownQuestionType rejects question types outside the supported set.
	ErrUnknownQuestionType = errors.New("unknown question type")
	// ErrInvalidQuiz marks quiz content that failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrInvalidTransition is returned when an operation is not allowed in the current state.
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	// ErrNotConfirmed is returned when a submission is requested without confirmation.
	ErrNotConfirmed = errors.New("submission not confirmed")
	// ErrSubmissionFailed wraps scorer failures; the attempt can be retried.
	ErrSubmissionFailed = errors.New("failed to submit quiz")
)
