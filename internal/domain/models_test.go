package domain

import (
	"errors"
	"testing"
)

func TestParseQuestionTypeCollapsesEssayAliases(t *testing.T) {
	cases := map[string]QuestionType{
		"multiple_choice":  QuestionMultipleChoice,
		"yes_no_with_text": QuestionYesNoWithText,
		"essay":            QuestionEssay,
		"text_with_voice":  QuestionEssay,
		"subjective":       QuestionEssay,
		" Essay ":          QuestionEssay,
	}
	for raw, want := range cases {
		got, err := ParseQuestionType(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}

	if _, err := ParseQuestionType("matching"); !errors.Is(err, ErrUnknownQuestionType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestNormalizeOrdersStablyAndDefaultsPoints(t *testing.T) {
	quiz := Quiz{
		ID: "quiz-1",
		Questions: []Question{
			{ID: "c", Type: "essay", OrderIndex: 2},
			{ID: "a", Type: "multiple_choice", Options: []string{"x"}, OrderIndex: 1},
			{ID: "b", Type: "subjective", OrderIndex: 1, Points: 3},
		},
	}
	got, err := quiz.Normalize()
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	order := []string{got.Questions[0].ID, got.Questions[1].ID, got.Questions[2].ID}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("unexpected order %v", order)
	}
	if got.Questions[0].Points != 1 || got.Questions[1].Points != 3 {
		t.Fatalf("unexpected points %+v", got.Questions)
	}
	if got.Questions[1].Type != QuestionEssay {
		t.Fatalf("expected alias collapsed to essay, got %s", got.Questions[1].Type)
	}
	if quiz.Questions[0].ID != "c" {
		t.Fatalf("normalize must not reorder the input")
	}
}

func TestNormalizeRejectsBadContent(t *testing.T) {
	cases := []struct {
		name string
		quiz Quiz
	}{
		{"duplicate ids", Quiz{Questions: []Question{{ID: "q", Type: "essay"}, {ID: "q", Type: "essay"}}}},
		{"missing options", Quiz{Questions: []Question{{ID: "q", Type: "multiple_choice"}}}},
		{"unknown type", Quiz{Questions: []Question{{ID: "q", Type: "drawing"}}}},
		{"missing id", Quiz{Questions: []Question{{Type: "essay"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.quiz.Normalize(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestVisibleQuestionsAndRedaction(t *testing.T) {
	quiz := Quiz{Questions: []Question{
		{ID: "q1", CorrectAnswer: "A"},
		{ID: "b1", IsBonus: true, ParentQuestionID: "q1"},
		{ID: "q2"},
		{ID: "b2", IsBonus: true, ParentQuestionID: "q2"},
	}}

	if n := len(quiz.VisibleQuestions(nil)); n != 2 {
		t.Fatalf("expected 2 visible, got %d", n)
	}
	visible := quiz.VisibleQuestions(map[string]struct{}{"b2": {}})
	if len(visible) != 3 || visible[2].ID != "b2" {
		t.Fatalf("unexpected visible set %+v", visible)
	}
	if ids := quiz.BonusQuestionsFor("q1"); len(ids) != 1 || ids[0] != "b1" {
		t.Fatalf("unexpected bonus ids %v", ids)
	}

	redacted := quiz.Redacted()
	if redacted.Questions[0].CorrectAnswer != "" {
		t.Fatalf("expected correct answer removed")
	}
	if quiz.Questions[0].CorrectAnswer != "A" {
		t.Fatalf("redaction must not touch the source quiz")
	}
}

func TestAnswerEncodings(t *testing.T) {
	raw := EncodeYesNo("No", "because | reasons")
	choice, text := DecodeYesNo(raw)
	if choice != "No" || text != "because | reasons" {
		t.Fatalf("unexpected decode %q %q", choice, text)
	}

	if got := AppendTranscript(QuestionYesNoWithText, "", "spoken"); got != "No|spoken" {
		t.Fatalf("unexpected yes/no transcript merge %q", got)
	}
	if got := AppendTranscript(QuestionEssay, "first part", "second"); got != "first part second" {
		t.Fatalf("unexpected essay transcript merge %q", got)
	}
	if got := AppendTranscript(QuestionMultipleChoice, "A", "B"); got != "A" {
		t.Fatalf("multiple choice answers are not dictated, got %q", got)
	}

	if WordCount("  one two\tthree\n") != 3 {
		t.Fatalf("unexpected word count")
	}
	if FormatMinutes(65) != "1h 5m" || FormatMinutes(12) != "12m" {
		t.Fatalf("unexpected minute formatting")
	}
	if ReflectionPrompt("Deacon Course Final Exam") == ReflectionPrompt("Acts Final Exam") {
		t.Fatalf("expected course specific reflection prompt")
	}
}
