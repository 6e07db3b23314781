// Package unlock decides which weeks of a weekly program a student may open.
package unlock

import (
	"math"

	"bibleschool-quiz-service/internal/domain"
)

// DefaultThreshold is the best quiz percentage a week needs before the next
// week unlocks and before the week counts as completed.
const DefaultThreshold = 70

// WeeksPerMonth groups the weekly program into months.
const WeeksPerMonth = 4

// AccessState is the rendering state of a week.
type AccessState string

const (
	Locked    AccessState = "locked"
	Available AccessState = "available"
	Attempted AccessState = "attempted"
	Completed AccessState = "completed"
)

// Rule evaluates week access against a percentage threshold.
type Rule struct {
	Threshold float64
}

// NewRule returns a rule with the given threshold, or DefaultThreshold when
// threshold is not positive.
func NewRule(threshold float64) Rule {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Rule{Threshold: threshold}
}

// Access returns the state of week for the given progress log. The result
// only depends on the best percentage per week, so log order is irrelevant.
// Weeks below 1 are never accessible.
func (r Rule) Access(week int, log []domain.WeeklyProgressEntry) AccessState {
	return r.access(week, bestByWeek(log))
}

// Board evaluates weeks 1..weeks in one pass over the log.
func (r Rule) Board(weeks int, log []domain.WeeklyProgressEntry) []AccessState {
	if weeks < 0 {
		weeks = 0
	}
	bests := bestByWeek(log)
	out := make([]AccessState, weeks)
	for i := range out {
		out[i] = r.access(i+1, bests)
	}
	return out
}

func (r Rule) access(week int, bests map[int]float64) AccessState {
	if week < 1 {
		return Locked
	}
	if week > 1 && bests[week-1] < r.threshold() {
		return Locked
	}
	own, ok := bests[week]
	switch {
	case !ok:
		return Available
	case own >= r.threshold():
		return Completed
	default:
		return Attempted
	}
}

func (r Rule) threshold() float64 {
	if r.Threshold <= 0 {
		return DefaultThreshold
	}
	return r.Threshold
}

// Access evaluates week with DefaultThreshold.
func Access(week int, log []domain.WeeklyProgressEntry) AccessState {
	return NewRule(DefaultThreshold).Access(week, log)
}

// bestByWeek folds the log into the top percentage recorded per week.
func bestByWeek(log []domain.WeeklyProgressEntry) map[int]float64 {
	bests := make(map[int]float64, len(log))
	for _, entry := range log {
		if top, ok := bests[entry.SessionNumber]; !ok || entry.QuizPercentage > top {
			bests[entry.SessionNumber] = entry.QuizPercentage
		}
	}
	return bests
}

// Summary is the student's running total over every graded weekly quiz.
type Summary struct {
	QuizzesTaken int `json:"quizzesTaken"`
	AverageScore int `json:"averageScore"`
}

// Summarize counts every log entry, retakes included, and rounds the mean
// percentage to a whole number. An empty log averages to zero.
func Summarize(log []domain.WeeklyProgressEntry) Summary {
	if len(log) == 0 {
		return Summary{}
	}
	var total float64
	for _, entry := range log {
		total += entry.QuizPercentage
	}
	return Summary{
		QuizzesTaken: len(log),
		AverageScore: int(math.Round(total / float64(len(log)))),
	}
}

// MonthOfWeek maps a week number to its 1-based month.
func MonthOfWeek(week int) int {
	if week < 1 {
		return 0
	}
	return (week-1)/WeeksPerMonth + 1
}

// WeekInMonth maps a week number to its 1-based position within its month.
func WeekInMonth(week int) int {
	if week < 1 {
		return 0
	}
	return (week-1)%WeeksPerMonth + 1
}
