package domain

import (
	"fmt"
	"strings"
)

// EssayMinimumWords is the advisory length shown next to essay answers.
const EssayMinimumWords = 100

const yesNoSeparator = "|"

// EncodeYesNo builds the composite "<Yes|No>|<text>" answer.
func EncodeYesNo(choice, text string) string {
	return choice + yesNoSeparator + text
}

// DecodeYesNo splits a composite yes/no answer. The text part is only
// meaningful when the choice is "No"; text may itself contain separators.
func DecodeYesNo(raw string) (choice, text string) {
	choice, text, _ = strings.Cut(raw, yesNoSeparator)
	return choice, text
}

// WordCount counts whitespace separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// MeetsEssayMinimum reports whether an essay reaches the advisory length.
func MeetsEssayMinimum(text string) bool {
	return WordCount(text) >= EssayMinimumWords
}

// AppendTranscript merges dictated text into an existing answer of the
// given question type.
func AppendTranscript(typ QuestionType, current, transcript string) string {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return current
	}
	join := func(a, b string) string {
		if strings.TrimSpace(a) == "" {
			return b
		}
		return strings.TrimRight(a, " ") + " " + b
	}
	switch typ {
	case QuestionYesNoWithText:
		choice, text := DecodeYesNo(current)
		if choice == "" {
			choice = "No"
		}
		return EncodeYesNo(choice, join(text, transcript))
	case QuestionMultipleChoice:
		return current
	default:
		return join(current, transcript)
	}
}

// FormatMinutes renders a minute count as "1h 5m" or "12m".
func FormatMinutes(minutes int) string {
	if minutes < 0 {
		minutes = 0
	}
	hours := minutes / 60
	mins := minutes % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

var reflectionPrompts = []struct {
	keyword string
	prompt  string
}{
	{"jonah", "Reflect on your journey through the Don't Be a Jonah course. What specific insights from Jonah's story have most impacted your understanding of obedience and God's mercy? How will you apply these lessons to avoid being a 'Jonah' in your own life and ministry? Please share at least one specific example from the course that resonated with you and explain why it was meaningful."},
	{"deacon", "Reflect on your journey through the Deacon Course. What specific insights from this course have most impacted your understanding of servant leadership and the deacon's calling? How will you apply these lessons in your ministry and service to the local church? Please share at least one specific example from the course that resonated with you and explain why it was meaningful."},
}

const defaultReflectionPrompt = "Reflect on your journey through the book of Acts. What specific insights from this course have most impacted your understanding of the early church and the Holy Spirit's work? How will you apply these lessons in your spiritual life and ministry? Please share at least one specific example from the textbook that resonated with you and explain why it was meaningful."

// ReflectionPrompt picks the reflection essay prompt for a final exam from
// its course or quiz title. Unmatched titles get the Acts prompt.
func ReflectionPrompt(title string) string {
	lower := strings.ToLower(title)
	for _, p := range reflectionPrompts {
		if strings.Contains(lower, p.keyword) {
			return p.prompt
		}
	}
	return defaultReflectionPrompt
}
