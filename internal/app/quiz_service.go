package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bibleschool-quiz-service/internal/domain"
	"bibleschool-quiz-service/internal/logger"
	"bibleschool-quiz-service/internal/unlock"
)

// ServiceDeps wires the quiz service to its adapters.
type ServiceDeps struct {
	Quizzes      QuizRepository
	Progress     ProgressStores
	Scorer       Scorer
	Reviews      ReviewFetcher
	Weekly       WeeklyProgressRepository
	Reflections  ReflectionSink
	Synthesizer  SpeechSynthesizer
	Recognizer   SpeechRecognizer
	Rule         unlock.Rule
	TickInterval time.Duration
	Logger       *logger.Logger
	Now          func() time.Time
}

// QuizService holds the live quiz-taking sessions, one per student and quiz.
type QuizService struct {
	deps ServiceDeps
	log  *logger.Logger

	mu       sync.Mutex
	sessions map[sessionKey]*sessionEntry
}

type sessionKey struct {
	studentID string
	quizID    string
}

// sessionEntry is one live controller and the connections holding it.
type sessionEntry struct {
	ctrl        *Controller
	holders     int
	stopTimer   context.CancelFunc
	timerActive bool
}

func NewQuizService(deps ServiceDeps) *QuizService {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.TickInterval <= 0 {
		deps.TickInterval = DefaultTickInterval
	}
	if deps.Rule.Threshold <= 0 {
		deps.Rule = unlock.NewRule(unlock.DefaultThreshold)
	}
	return &QuizService{
		deps:     deps,
		log:      deps.Logger.With("component", "quiz_service"),
		sessions: make(map[sessionKey]*sessionEntry),
	}
}

// Open returns the student's live session for a quiz, creating or restoring
// it when needed. Every caller that opens a live session must Close it with
// the returned controller. With review set, a read-only controller is built
// from the student's latest attempt instead and is not registered as live.
func (s *QuizService) Open(ctx context.Context, studentID, quizID string, review bool) (*Controller, error) {
	quiz, err := s.deps.Quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if review {
		return NewReviewController(ctx, quiz.Redacted(), studentID, s.controllerDeps(studentID))
	}

	key := sessionKey{studentID: studentID, quizID: quizID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.sessions[key]; ok && reusable(entry.ctrl.State()) {
		entry.holders++
		return entry.ctrl, nil
	}
	if entry, ok := s.sessions[key]; ok && entry.stopTimer != nil {
		entry.stopTimer()
	}

	ctrl := NewController(ctx, quiz.Redacted(), studentID, s.controllerDeps(studentID))
	entry := &sessionEntry{ctrl: ctrl, holders: 1}
	s.sessions[key] = entry
	s.startTimerLocked(entry)
	return ctrl, nil
}

// Get returns a live session.
func (s *QuizService) Get(studentID, quizID string) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sessionKey{studentID: studentID, quizID: quizID}]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return entry.ctrl, nil
}

// Start begins the attempt and, for timed quizzes, its countdown.
func (s *QuizService) Start(ctx context.Context, studentID, quizID string) error {
	s.mu.Lock()
	entry, ok := s.sessions[sessionKey{studentID: studentID, quizID: quizID}]
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	if err := entry.ctrl.Start(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	s.startTimerLocked(entry)
	s.mu.Unlock()
	return nil
}

// Close releases one hold on a live session. The session is dropped and its
// countdown stopped once the last holder closes; the persisted snapshot stays,
// so reopening restores the attempt. Closing a controller that has since been
// replaced is a no-op.
func (s *QuizService) Close(studentID, quizID string, ctrl *Controller) {
	key := sessionKey{studentID: studentID, quizID: quizID}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[key]
	if !ok || entry.ctrl != ctrl {
		return
	}
	entry.holders--
	if entry.holders > 0 {
		return
	}
	if entry.stopTimer != nil {
		entry.stopTimer()
	}
	delete(s.sessions, key)
}

// Shutdown stops every countdown.
func (s *QuizService) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, entry := range s.sessions {
		if entry.stopTimer != nil {
			entry.stopTimer()
		}
		delete(s.sessions, key)
	}
}

// WeekAccess evaluates the unlock rule for one week of the student's program.
func (s *QuizService) WeekAccess(ctx context.Context, studentID string, week int) (unlock.AccessState, error) {
	log, err := s.weeklyLog(ctx, studentID)
	if err != nil {
		return unlock.Locked, err
	}
	return s.deps.Rule.Access(week, log), nil
}

// WeekBoard evaluates weeks 1..weeks and summarizes the same progress log.
func (s *QuizService) WeekBoard(ctx context.Context, studentID string, weeks int) ([]unlock.AccessState, unlock.Summary, error) {
	log, err := s.weeklyLog(ctx, studentID)
	if err != nil {
		return nil, unlock.Summary{}, err
	}
	return s.deps.Rule.Board(weeks, log), unlock.Summarize(log), nil
}

func (s *QuizService) weeklyLog(ctx context.Context, studentID string) ([]domain.WeeklyProgressEntry, error) {
	if s.deps.Weekly == nil {
		return nil, nil
	}
	log, err := s.deps.Weekly.ListProgress(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list weekly progress: %w", err)
	}
	return log, nil
}

func (s *QuizService) controllerDeps(studentID string) ControllerDeps {
	var store KeyValueStore
	if s.deps.Progress != nil {
		store = s.deps.Progress.ForStudent(studentID)
	}
	return ControllerDeps{
		Store:       store,
		Scorer:      s.deps.Scorer,
		Reviews:     s.deps.Reviews,
		Reflections: s.deps.Reflections,
		Synthesizer: s.deps.Synthesizer,
		Recognizer:  s.deps.Recognizer,
		Logger:      s.deps.Logger,
		Now:         s.deps.Now,
	}
}

// startTimerLocked launches the countdown once per entry, only for timed
// attempts that are in progress.
func (s *QuizService) startTimerLocked(entry *sessionEntry) {
	if entry.timerActive || !running(entry.ctrl) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	entry.stopTimer = cancel
	entry.timerActive = true
	go RunTimer(ctx, entry.ctrl, s.deps.TickInterval)
}

// reusable reports whether a live session should be handed out again rather
// than replaced by a fresh attempt.
func reusable(state State) bool {
	switch state {
	case StateSubmitted, StateFinished, StateReviewing:
		return false
	default:
		return true
	}
}
