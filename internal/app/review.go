package app

import (
	"math"
	"sort"
	"time"

	"bibleschool-quiz-service/internal/domain"
)

// OptionReview classifies one multiple choice option of a reviewed question.
// The correct badge and the wrong badge are independent: choosing the
// correct option shows only the correct badge.
type OptionReview struct {
	Text             string `json:"text"`
	IsCorrectAnswer  bool   `json:"isCorrectAnswer"`
	IsUserAnswer     bool   `json:"isUserAnswer"`
	ShowCorrectBadge bool   `json:"showCorrectBadge"`
	ShowWrongBadge   bool   `json:"showWrongBadge"`
}

// QuestionReview is a reviewed question with the stored answer.
type QuestionReview struct {
	ID            string              `json:"id"`
	Prompt        string              `json:"question"`
	Type          domain.QuestionType `json:"type"`
	Points        int                 `json:"points"`
	IsBonus       bool                `json:"isBonus,omitempty"`
	UserAnswer    string              `json:"userAnswer"`
	CorrectAnswer string              `json:"correctAnswer,omitempty"`
	Answered      bool                `json:"answered"`
	Correct       bool                `json:"correct"`
	Options       []OptionReview      `json:"options,omitempty"`
	WordCount     int                 `json:"wordCount,omitempty"`
}

// ReviewView is the read-only reconstruction of a past attempt.
type ReviewView struct {
	QuizID       string           `json:"quizId"`
	AttemptID    string           `json:"attemptId"`
	Score        float64          `json:"score"`
	Percentage   int              `json:"percentage"`
	PassingScore int              `json:"passingScore"`
	Passed       bool             `json:"passed"`
	CompletedAt  time.Time        `json:"completedAt"`
	TimeSpent    *int             `json:"timeSpent"`
	Answers      domain.Answers   `json:"answers"`
	Questions    []QuestionReview `json:"questions"`
}

// BuildReview turns a stored attempt into a review view. Questions without a
// stored answer are treated as unanswered.
func BuildReview(quizID string, attempt domain.ReviewAttempt) ReviewView {
	score := clampScore(attempt.Attempt.Score)
	view := ReviewView{
		QuizID:       quizID,
		AttemptID:    attempt.Attempt.ID,
		Score:        score,
		Percentage:   int(math.Round(score * 100)),
		PassingScore: attempt.PassingScore,
		Passed:       score*100 >= float64(attempt.PassingScore),
		CompletedAt:  attempt.Attempt.CompletedAt,
		TimeSpent:    copyInt(attempt.Attempt.TimeSpent),
		Answers:      make(domain.Answers),
		Questions:    make([]QuestionReview, 0, len(attempt.Questions)),
	}

	questions := append([]domain.ReviewQuestion(nil), attempt.Questions...)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderIndex < questions[j].OrderIndex
	})
	for _, q := range questions {
		if q.UserAnswer != "" {
			view.Answers[q.ID] = q.UserAnswer
		}
		qr := QuestionReview{
			ID:            q.ID,
			Prompt:        q.Prompt,
			Type:          q.Type,
			Points:        q.Points,
			IsBonus:       q.IsBonus,
			UserAnswer:    q.UserAnswer,
			CorrectAnswer: q.CorrectAnswer,
			Answered:      q.UserAnswer != "",
		}
		switch q.Type {
		case domain.QuestionMultipleChoice:
			qr.Options = ClassifyOptions(q.Options, q.CorrectAnswer, q.UserAnswer)
			qr.Correct = q.CorrectAnswer != "" && q.UserAnswer == q.CorrectAnswer
		case domain.QuestionEssay:
			qr.WordCount = domain.WordCount(q.UserAnswer)
		}
		view.Questions = append(view.Questions, qr)
	}
	return view
}

// ClassifyOptions labels every option in one pass.
func ClassifyOptions(options []string, correct, user string) []OptionReview {
	out := make([]OptionReview, len(options))
	for i, opt := range options {
		isCorrect := correct != "" && opt == correct
		isUser := user != "" && opt == user
		out[i] = OptionReview{
			Text:             opt,
			IsCorrectAnswer:  isCorrect,
			IsUserAnswer:     isUser,
			ShowCorrectBadge: isCorrect,
			ShowWrongBadge:   isUser && !isCorrect,
		}
	}
	return out
}
