package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"bibleschool-quiz-service/internal/domain"
	"bibleschool-quiz-service/internal/logger"
)

// State is a step of the quiz-taking lifecycle.
type State string

const (
	StateNotStarted         State = "not_started"
	StateInProgress         State = "in_progress"
	StateSubmitting         State = "submitting"
	StateSubmitted          State = "submitted"
	StateAwaitingReflection State = "awaiting_reflection"
	StateReviewing          State = "reviewing"
	StateFinished           State = "finished"
)

// ProgressKey is the key an in-progress attempt of quizID is persisted under.
func ProgressKey(quizID string) string {
	return "quiz_" + quizID + "_progress"
}

// ControllerDeps are the collaborators a Controller talks to. Nil fields get
// inert defaults; Scorer is required for submission to succeed.
type ControllerDeps struct {
	Store       KeyValueStore
	Scorer      Scorer
	Reviews     ReviewFetcher
	Reflections ReflectionSink
	Synthesizer SpeechSynthesizer
	Recognizer  SpeechRecognizer
	Logger      *logger.Logger
	Now         func() time.Time
}

// Outcome summarizes a successful submission.
type Outcome struct {
	AttemptID        string  `json:"attemptId"`
	Score            float64 `json:"score"`
	Percentage       int     `json:"percentage"`
	Passed           bool    `json:"passed"`
	Answered         int     `json:"answered"`
	Total            int     `json:"total"`
	ReflectionPrompt string  `json:"reflectionPrompt,omitempty"`
}

// QuestionView is a question as shown while taking a quiz. It never carries
// the correct answer.
type QuestionView struct {
	ID           string              `json:"id"`
	Prompt       string              `json:"question"`
	Type         domain.QuestionType `json:"type"`
	Options      []string            `json:"options,omitempty"`
	Points       int                 `json:"points"`
	IsBonus      bool                `json:"isBonus,omitempty"`
	Answer       string              `json:"answer,omitempty"`
	WordCount    int                 `json:"wordCount,omitempty"`
	MeetsMinimum bool                `json:"meetsMinimum,omitempty"`
}

// View is a read-only snapshot of a controller for rendering.
type View struct {
	QuizID        string        `json:"quizId"`
	Title         string        `json:"title"`
	State         State         `json:"state"`
	PassingScore  int           `json:"passingScore"`
	IsFinalExam   bool          `json:"isFinalExam,omitempty"`
	CurrentIndex  int           `json:"currentIndex"`
	VisibleCount  int           `json:"visibleCount"`
	Current       *QuestionView `json:"current,omitempty"`
	Answered      int           `json:"answered"`
	Progress      float64       `json:"progress"`
	TimeLeft      *int          `json:"timeLeft"`
	TimeLeftLabel string        `json:"timeLeftLabel,omitempty"`
	Error         string        `json:"error,omitempty"`
	Outcome       *Outcome      `json:"outcome,omitempty"`
	Review        *ReviewView   `json:"review,omitempty"`
}

// Controller owns one student's attempt at one quiz, from the instructions
// screen through submission, reflection and review. Every mutation of an
// in-progress attempt is persisted before the call returns.
type Controller struct {
	quiz        domain.Quiz
	studentID   string
	store       KeyValueStore
	scorer      Scorer
	reviews     ReviewFetcher
	reflections ReflectionSink
	synth       SpeechSynthesizer
	recognizer  SpeechRecognizer
	log         *logger.Logger
	now         func() time.Time

	mu       sync.Mutex
	state    State
	answers  domain.Answers
	current  int
	timeLeft *int
	revealed map[string]struct{}
	lastErr  error
	outcome  *Outcome
	review   *ReviewView
}

// NewController creates a controller for quiz and restores any persisted
// in-progress attempt. quiz should already be redacted.
func NewController(ctx context.Context, quiz domain.Quiz, studentID string, deps ControllerDeps) *Controller {
	c := newController(quiz, studentID, deps)
	c.mu.Lock()
	c.restoreLocked(ctx)
	c.mu.Unlock()
	return c
}

// NewReviewController creates a controller that starts directly in review
// mode from the student's stored attempt, skipping the live session.
func NewReviewController(ctx context.Context, quiz domain.Quiz, studentID string, deps ControllerDeps) (*Controller, error) {
	c := newController(quiz, studentID, deps)
	view, err := c.loadReview(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.review = &view
	c.state = StateReviewing
	c.mu.Unlock()
	return c, nil
}

func newController(quiz domain.Quiz, studentID string, deps ControllerDeps) *Controller {
	c := &Controller{
		quiz:        quiz,
		studentID:   studentID,
		store:       deps.Store,
		scorer:      deps.Scorer,
		reviews:     deps.Reviews,
		reflections: deps.Reflections,
		synth:       deps.Synthesizer,
		recognizer:  deps.Recognizer,
		log:         deps.Logger,
		now:         deps.Now,
		state:       StateNotStarted,
		answers:     make(domain.Answers),
		revealed:    make(map[string]struct{}),
	}
	if c.store == nil {
		c.store = nopStore{}
	}
	if c.synth == nil {
		c.synth = NoopSpeech{}
	}
	if c.recognizer == nil {
		c.recognizer = NoopSpeech{}
	}
	if c.log == nil {
		c.log = logger.Nop()
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.log = c.log.With("quiz_id", quiz.ID, "student_id", studentID)
	return c
}

// Quiz returns the quiz definition the controller runs against.
func (c *Controller) Quiz() domain.Quiz { return c.quiz }

// StudentID returns the owner of the attempt.
func (c *Controller) StudentID() string { return c.studentID }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TimeLeft returns the remaining minutes, or nil when untimed.
func (c *Controller) TimeLeft() *int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyInt(c.timeLeft)
}

// Answers returns a copy of the live answer map.
func (c *Controller) Answers() domain.Answers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers.Clone()
}

// LastError returns the error of the last failed submission, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start leaves the instructions screen. It is a no-op while the quiz has not
// been loaded.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.quiz.ID == "" {
		return nil
	}
	if c.state != StateNotStarted {
		return invalidTransition("start", c.state)
	}
	c.state = StateInProgress
	c.current = 0
	c.timeLeft = nil
	if c.quiz.Timed() {
		left := *c.quiz.TimeLimit
		c.timeLeft = &left
	}
	c.persistLocked(ctx)
	return nil
}

// SetAnswer overwrites the answer for questionID. No content validation
// happens here; essay length is advisory.
func (c *Controller) SetAnswer(ctx context.Context, questionID, raw string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return invalidTransition("answer", c.state)
	}
	if _, ok := c.quiz.Question(questionID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	c.answers[questionID] = raw
	c.persistLocked(ctx)
	return nil
}

// Navigate moves to index in the visible question sequence, clamped to its
// bounds. It does not wrap.
func (c *Controller) Navigate(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigateLocked(ctx, index)
}

func (c *Controller) navigateLocked(ctx context.Context, index int) error {
	if c.state != StateInProgress {
		return invalidTransition("navigate", c.state)
	}
	index = c.clampLocked(index)
	if index == c.current {
		return nil
	}
	c.current = index
	c.persistLocked(ctx)
	return nil
}

// Next moves one question forward.
func (c *Controller) Next(ctx context.Context) error {
	return c.step(ctx, 1)
}

// Prev moves one question back.
func (c *Controller) Prev(ctx context.Context) error {
	return c.step(ctx, -1)
}

func (c *Controller) step(ctx context.Context, delta int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navigateLocked(ctx, c.current+delta)
}

// Tick counts one minute off a timed attempt. When the countdown reaches
// zero the accumulated answers are submitted without confirmation. A tick on
// an already expired countdown does nothing, so a failed auto-submit is not
// retried automatically.
func (c *Controller) Tick(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateInProgress || c.timeLeft == nil {
		state := c.state
		c.mu.Unlock()
		return invalidTransition("tick", state)
	}
	if *c.timeLeft <= 0 {
		c.mu.Unlock()
		return nil
	}
	left := *c.timeLeft - 1
	c.timeLeft = &left
	c.persistLocked(ctx)
	if left > 0 {
		c.mu.Unlock()
		return nil
	}
	submission := c.beginSubmitLocked()
	c.mu.Unlock()

	c.log.Info("time limit reached, submitting", "answered", len(submission.Answers))
	_, err := c.finishSubmit(ctx, submission)
	return err
}

// Submit sends the attempt to the scorer. The caller confirms beforehand
// (answered vs. total); completeness is not checked here. Answers are
// snapshotted at the moment of the call. On failure the attempt returns to
// in-progress with every answer kept.
func (c *Controller) Submit(ctx context.Context, confirmed bool) (Outcome, error) {
	if !confirmed {
		return Outcome{}, domain.ErrNotConfirmed
	}
	c.mu.Lock()
	if c.state != StateInProgress {
		state := c.state
		c.mu.Unlock()
		return Outcome{}, invalidTransition("submit", state)
	}
	submission := c.beginSubmitLocked()
	c.mu.Unlock()
	return c.finishSubmit(ctx, submission)
}

func (c *Controller) beginSubmitLocked() domain.AttemptSubmission {
	c.state = StateSubmitting
	c.lastErr = nil
	var spent *int
	if c.quiz.Timed() {
		left := 0
		if c.timeLeft != nil {
			left = *c.timeLeft
		}
		minutes := *c.quiz.TimeLimit - left
		spent = &minutes
	}
	return domain.AttemptSubmission{
		QuizID:      c.quiz.ID,
		StudentID:   c.studentID,
		Answers:     c.answers.Clone(),
		CompletedAt: c.now(),
		TimeSpent:   spent,
	}
}

func (c *Controller) finishSubmit(ctx context.Context, submission domain.AttemptSubmission) (Outcome, error) {
	var (
		result domain.AttemptResult
		err    error
	)
	if c.scorer == nil {
		err = errors.New("scorer not configured")
	} else {
		result, err = c.scorer.SubmitAttempt(ctx, submission)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.state = StateInProgress
		c.lastErr = fmt.Errorf("%w: %w", domain.ErrSubmissionFailed, err)
		c.log.Warn("quiz submission failed", "error", err)
		return Outcome{}, c.lastErr
	}

	if err := c.store.Delete(ctx, ProgressKey(c.quiz.ID)); err != nil {
		c.log.Warn("clear saved progress failed", "error", err)
	}

	score := clampScore(result.Score)
	outcome := Outcome{
		AttemptID:  result.AttemptID,
		Score:      score,
		Percentage: int(math.Round(score * 100)),
		Passed:     score*100 >= float64(c.quiz.PassingScore),
		Answered:   len(submission.Answers),
		Total:      len(c.quiz.VisibleQuestions(c.revealed)),
	}
	if c.quiz.IsFinalExam && outcome.Passed {
		outcome.ReflectionPrompt = domain.ReflectionPrompt(c.quiz.CourseName + " " + c.quiz.Title)
		c.state = StateAwaitingReflection
	} else {
		c.state = StateSubmitted
	}
	c.outcome = &outcome
	c.log.Info("quiz submitted", "score", score, "passed", outcome.Passed, "answered", outcome.Answered)
	return outcome, nil
}

// EnterReview switches a submitted attempt into read-only review, rebuilt
// from the stored attempt rather than the live answers.
func (c *Controller) EnterReview(ctx context.Context) error {
	if state := c.State(); state != StateSubmitted {
		return invalidTransition("review", state)
	}
	view, err := c.loadReview(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSubmitted {
		return invalidTransition("review", c.state)
	}
	c.review = &view
	c.state = StateReviewing
	return nil
}

func (c *Controller) loadReview(ctx context.Context) (ReviewView, error) {
	if c.reviews == nil {
		return ReviewView{}, errors.New("review source not configured")
	}
	attempt, err := c.reviews.ReviewAttempt(ctx, c.studentID, c.quiz.ID)
	if err != nil {
		return ReviewView{}, fmt.Errorf("load review: %w", err)
	}
	return BuildReview(c.quiz.ID, attempt), nil
}

// Review returns the review view once in review mode.
func (c *Controller) Review() (ReviewView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.review == nil {
		return ReviewView{}, false
	}
	return *c.review, true
}

// RevealBonus adds the bonus questions attached to triggerID to the visible
// sequence. Revealed questions stay visible for the rest of the attempt.
// It returns how many questions became visible.
func (c *Controller) RevealBonus(ctx context.Context, triggerID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateNotStarted && c.state != StateInProgress {
		return 0, invalidTransition("reveal bonus", c.state)
	}
	added := 0
	for _, id := range c.quiz.BonusQuestionsFor(triggerID) {
		if _, ok := c.revealed[id]; ok {
			continue
		}
		c.revealed[id] = struct{}{}
		added++
	}
	if added > 0 && c.state == StateInProgress {
		c.persistLocked(ctx)
	}
	return added, nil
}

// SubmitReflection hands the final exam reflection essay to the sink and
// finishes the attempt.
func (c *Controller) SubmitReflection(ctx context.Context, essay string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAwaitingReflection {
		return invalidTransition("reflection", c.state)
	}
	prompt := ""
	if c.outcome != nil {
		prompt = c.outcome.ReflectionPrompt
	}
	if c.reflections != nil {
		err := c.reflections.SubmitReflection(ctx, domain.Reflection{
			QuizID:      c.quiz.ID,
			StudentID:   c.studentID,
			Prompt:      prompt,
			Essay:       essay,
			SubmittedAt: c.now(),
		})
		if err != nil {
			c.log.Warn("reflection submission failed", "error", err)
			return fmt.Errorf("submit reflection: %w", err)
		}
	}
	c.state = StateFinished
	return nil
}

// ReadAloud speaks a question, with its options for multiple choice.
func (c *Controller) ReadAloud(ctx context.Context, questionID string) error {
	question, ok := c.quiz.Question(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	text := question.Prompt
	if question.Type == domain.QuestionMultipleChoice && len(question.Options) > 0 {
		text += " Options: " + strings.Join(question.Options, ", ")
	}
	return c.synth.Speak(ctx, text)
}

// Dictate transcribes audio and appends the text to the answer of
// questionID. The answer is updated through the same path as SetAnswer.
func (c *Controller) Dictate(ctx context.Context, questionID string, audio []byte, mimeType string) (string, error) {
	question, ok := c.quiz.Question(questionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrQuestionNotFound, questionID)
	}
	if state := c.State(); state != StateInProgress {
		return "", invalidTransition("dictate", state)
	}
	transcript, err := c.recognizer.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInProgress {
		return "", invalidTransition("dictate", c.state)
	}
	merged := domain.AppendTranscript(question.Type, c.answers[questionID], transcript)
	if merged != c.answers[questionID] {
		c.answers[questionID] = merged
		c.persistLocked(ctx)
	}
	return merged, nil
}

// Progress is the share of visible questions answered, in percent.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	visible := c.quiz.VisibleQuestions(c.revealed)
	return progressOf(c.answeredLocked(visible), len(visible))
}

// View renders the controller state.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	visible := c.quiz.VisibleQuestions(c.revealed)
	answered := c.answeredLocked(visible)
	v := View{
		QuizID:       c.quiz.ID,
		Title:        c.quiz.Title,
		State:        c.state,
		PassingScore: c.quiz.PassingScore,
		IsFinalExam:  c.quiz.IsFinalExam,
		CurrentIndex: c.current,
		VisibleCount: len(visible),
		Answered:     answered,
		Progress:     progressOf(answered, len(visible)),
		TimeLeft:     copyInt(c.timeLeft),
	}
	if c.timeLeft != nil {
		v.TimeLeftLabel = domain.FormatMinutes(*c.timeLeft) + " remaining"
	}
	if c.lastErr != nil {
		v.Error = c.lastErr.Error()
	}
	if c.outcome != nil {
		outcome := *c.outcome
		v.Outcome = &outcome
	}
	if c.review != nil {
		review := *c.review
		v.Review = &review
	}
	if c.state == StateInProgress && c.current < len(visible) {
		q := visible[c.current]
		answer := c.answers[q.ID]
		qv := &QuestionView{
			ID:      q.ID,
			Prompt:  q.Prompt,
			Type:    q.Type,
			Options: append([]string(nil), q.Options...),
			Points:  q.Points,
			IsBonus: q.IsBonus,
			Answer:  answer,
		}
		if q.Type == domain.QuestionEssay {
			qv.WordCount = domain.WordCount(answer)
			qv.MeetsMinimum = domain.MeetsEssayMinimum(answer)
		}
		v.Current = qv
	}
	return v
}

func (c *Controller) answeredLocked(visible []domain.Question) int {
	n := 0
	for _, q := range visible {
		if _, ok := c.answers[q.ID]; ok {
			n++
		}
	}
	return n
}

func (c *Controller) clampLocked(index int) int {
	n := len(c.quiz.VisibleQuestions(c.revealed))
	if index >= n {
		index = n - 1
	}
	if index < 0 {
		index = 0
	}
	return index
}

func (c *Controller) snapshotLocked() domain.SessionSnapshot {
	snap := domain.SessionSnapshot{
		Answers:         c.answers.Clone(),
		CurrentQuestion: c.current,
		TimeLeft:        copyInt(c.timeLeft),
		IsStarted:       c.state != StateNotStarted,
	}
	for _, q := range c.quiz.Questions {
		if _, ok := c.revealed[q.ID]; ok {
			snap.RevealedBonus = append(snap.RevealedBonus, q.ID)
		}
	}
	return snap
}

// persistLocked writes the snapshot. Storage errors are logged and ignored.
func (c *Controller) persistLocked(ctx context.Context) {
	data, err := json.Marshal(c.snapshotLocked())
	if err != nil {
		c.log.Warn("encode session snapshot failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, ProgressKey(c.quiz.ID), data); err != nil {
		c.log.Warn("save session snapshot failed", "error", err)
	}
}

// restoreLocked loads a persisted snapshot. Any failure leaves a fresh session.
func (c *Controller) restoreLocked(ctx context.Context) {
	raw, err := c.store.Get(ctx, ProgressKey(c.quiz.ID))
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			c.log.Warn("load session snapshot failed", "error", err)
		}
		return
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.log.Warn("decode session snapshot failed", "error", err)
		return
	}

	for _, id := range snap.RevealedBonus {
		if q, ok := c.quiz.Question(id); ok && q.IsBonus {
			c.revealed[id] = struct{}{}
		}
	}
	if snap.Answers != nil {
		c.answers = snap.Answers
	}
	if snap.IsStarted {
		c.state = StateInProgress
	}
	if c.quiz.Timed() {
		c.timeLeft = copyInt(snap.TimeLeft)
		if c.timeLeft == nil && snap.IsStarted {
			left := *c.quiz.TimeLimit
			c.timeLeft = &left
		}
	}
	c.current = c.clampLocked(snap.CurrentQuestion)
	c.log.Debug("session restored", "answered", len(c.answers), "state", string(c.state))
}

func invalidTransition(op string, state State) error {
	return fmt.Errorf("%w: %s while %s", domain.ErrInvalidTransition, op, state)
}

func progressOf(answered, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(answered) / float64(total) * 100
}

func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// nopStore stands in when no persistence is configured.
type nopStore struct{}

func (nopStore) Get(context.Context, string) ([]byte, error) { return nil, domain.ErrKeyNotFound }
func (nopStore) Set(context.Context, string, []byte) error   { return nil }
func (nopStore) Delete(context.Context, string) error        { return nil }
