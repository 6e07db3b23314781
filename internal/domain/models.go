package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// QuestionType is the closed set of question behaviours a quiz can contain.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionYesNoWithText  QuestionType = "yes_no_with_text"
	QuestionEssay          QuestionType = "essay"
)

// ParseQuestionType maps a raw type string onto a QuestionType.
// "text_with_voice" and "subjective" are legacy spellings of essay.
func ParseQuestionType(raw string) (QuestionType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(QuestionMultipleChoice):
		return QuestionMultipleChoice, nil
	case string(QuestionYesNoWithText):
		return QuestionYesNoWithText, nil
	case string(QuestionEssay), "text_with_voice", "subjective":
		return QuestionEssay, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownQuestionType, raw)
	}
}

// Question is a single item of a quiz.
type Question struct {
	ID               string       `json:"id"`
	Prompt           string       `json:"question"`
	Type             QuestionType `json:"type"`
	Options          []string     `json:"options,omitempty"`
	Points           int          `json:"points"` // defaults to 1 if zero
	OrderIndex       int          `json:"orderIndex"`
	IsBonus          bool         `json:"isBonus,omitempty"`
	ParentQuestionID string       `json:"parentQuestionId,omitempty"`
	// CorrectAnswer is only populated for grading and review.
	CorrectAnswer string `json:"correctAnswer,omitempty"`
}

// Quiz is the immutable definition a session is taken against.
type Quiz struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ModuleName   string `json:"moduleName,omitempty"`
	CourseName   string `json:"courseName,omitempty"`
	TimeLimit    *int   `json:"timeLimit,omitempty"` // minutes, nil means untimed
	PassingScore int    `json:"passingScore"`
	IsFinalExam  bool   `json:"isFinalExam,omitempty"`
	// SessionNumber ties the quiz to a week of a weekly program; zero when unrelated.
	SessionNumber int        `json:"sessionNumber,omitempty"`
	Questions     []Question `json:"questions"`
}

// Timed reports whether the quiz has a countdown.
func (q Quiz) Timed() bool {
	return q.TimeLimit != nil && *q.TimeLimit > 0
}

// Normalize validates a quiz at the fetch boundary and returns a copy with
// canonical question types, default points and questions sorted by
// OrderIndex. Ties keep their fetch order.
func (q Quiz) Normalize() (Quiz, error) {
	out := q
	out.Questions = make([]Question, 0, len(q.Questions))
	seen := make(map[string]struct{}, len(q.Questions))
	for _, question := range q.Questions {
		if question.ID == "" {
			return Quiz{}, fmt.Errorf("%w: question without id", ErrInvalidQuiz)
		}
		if _, dup := seen[question.ID]; dup {
			return Quiz{}, fmt.Errorf("%w: duplicate question id %q", ErrInvalidQuiz, question.ID)
		}
		seen[question.ID] = struct{}{}

		typ, err := ParseQuestionType(string(question.Type))
		if err != nil {
			return Quiz{}, fmt.Errorf("question %s: %w", question.ID, err)
		}
		question.Type = typ
		if typ == QuestionMultipleChoice && len(question.Options) == 0 {
			return Quiz{}, fmt.Errorf("%w: multiple choice question %q has no options", ErrInvalidQuiz, question.ID)
		}
		if question.Points <= 0 {
			question.Points = 1
		}
		question.Options = append([]string(nil), question.Options...)
		out.Questions = append(out.Questions, question)
	}
	sort.SliceStable(out.Questions, func(i, j int) bool {
		return out.Questions[i].OrderIndex < out.Questions[j].OrderIndex
	})
	if out.PassingScore < 0 {
		out.PassingScore = 0
	}
	if out.PassingScore > 100 {
		out.PassingScore = 100
	}
	return out, nil
}

// Redacted returns a copy of the quiz with every correct answer removed.
func (q Quiz) Redacted() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.CorrectAnswer = ""
		out.Questions[i] = question
	}
	return out
}

// Question looks up a question by id.
func (q Quiz) Question(id string) (Question, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return Question{}, false
}

// VisibleQuestions returns non-bonus questions plus the revealed bonus ones,
// in quiz order, each at most once.
func (q Quiz) VisibleQuestions(revealed map[string]struct{}) []Question {
	visible := make([]Question, 0, len(q.Questions))
	for _, question := range q.Questions {
		if !question.IsBonus {
			visible = append(visible, question)
			continue
		}
		if _, ok := revealed[question.ID]; ok {
			visible = append(visible, question)
		}
	}
	return visible
}

// BonusQuestionsFor lists bonus question ids whose parent is triggerID.
func (q Quiz) BonusQuestionsFor(triggerID string) []string {
	var ids []string
	for _, question := range q.Questions {
		if question.IsBonus && question.ParentQuestionID == triggerID {
			ids = append(ids, question.ID)
		}
	}
	return ids
}

// Answers maps question id to the raw answer encoding.
type Answers map[string]string

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// SessionSnapshot is the persisted form of an in-progress attempt.
type SessionSnapshot struct {
	Answers         Answers  `json:"answers"`
	CurrentQuestion int      `json:"currentQuestion"`
	TimeLeft        *int     `json:"timeLeft"`
	IsStarted       bool     `json:"isStarted"`
	RevealedBonus   []string `json:"revealedBonusIds,omitempty"`
}

// AttemptSubmission is what a finished session hands to the scorer.
type AttemptSubmission struct {
	QuizID      string    `json:"quizId"`
	StudentID   string    `json:"studentId"`
	Answers     Answers   `json:"answers"`
	CompletedAt time.Time `json:"completedAt"`
	TimeSpent   *int      `json:"timeSpent"` // minutes, nil when untimed
}

// AttemptResult is the scorer's reply. Score is a fraction in [0, 1].
type AttemptResult struct {
	AttemptID string  `json:"attemptId"`
	Score     float64 `json:"score"`
}

// Attempt is a graded, stored submission.
type Attempt struct {
	ID          string    `json:"id"`
	QuizID      string    `json:"quizId"`
	StudentID   string    `json:"studentId"`
	Answers     Answers   `json:"answers"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
	TimeSpent   *int      `json:"timeSpent"`
}

// ReviewQuestion pairs a canonical question with the stored user answer.
type ReviewQuestion struct {
	Question
	UserAnswer string `json:"userAnswer"`
}

// ReviewAttempt is the payload review mode is rebuilt from.
type ReviewAttempt struct {
	Attempt      Attempt          `json:"attempt"`
	PassingScore int              `json:"passingScore"`
	Questions    []ReviewQuestion `json:"questions"`
}

// WeeklyProgressEntry records one quiz result of a weekly program.
type WeeklyProgressEntry struct {
	SessionNumber  int     `json:"sessionNumber"`
	QuizPercentage float64 `json:"quizPercentage"`
}

// Reflection is the essay written after passing a final exam.
type Reflection struct {
	QuizID      string    `json:"quizId"`
	StudentID   string    `json:"studentId"`
	Prompt      string    `json:"prompt"`
	Essay       string    `json:"essay"`
	SubmittedAt time.Time `json:"submittedAt"`
}
