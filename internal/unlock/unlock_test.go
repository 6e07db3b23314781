package unlock

import (
	"testing"

	"bibleschool-quiz-service/internal/domain"
)

func entry(week int, pct float64) domain.WeeklyProgressEntry {
	return domain.WeeklyProgressEntry{SessionNumber: week, QuizPercentage: pct}
}

func TestAccess(t *testing.T) {
	cases := []struct {
		name string
		week int
		log  []domain.WeeklyProgressEntry
		want AccessState
	}{
		{"first week always open", 1, nil, Available},
		{"second week without history", 2, nil, Locked},
		{"previous week below threshold", 2, []domain.WeeklyProgressEntry{entry(1, 65)}, Locked},
		{"previous week at threshold", 2, []domain.WeeklyProgressEntry{entry(1, 70)}, Available},
		{"attempted below threshold", 2, []domain.WeeklyProgressEntry{entry(1, 70), entry(2, 55)}, Attempted},
		{"completed", 2, []domain.WeeklyProgressEntry{entry(1, 100), entry(2, 90)}, Completed},
		{"first week attempted", 1, []domain.WeeklyProgressEntry{entry(1, 40)}, Attempted},
		{"first week completed", 1, []domain.WeeklyProgressEntry{entry(1, 70)}, Completed},
		{"best prior attempt counts", 3, []domain.WeeklyProgressEntry{entry(2, 50), entry(2, 80), entry(2, 60)}, Available},
		{"own attempt without unlock stays locked", 3, []domain.WeeklyProgressEntry{entry(3, 100)}, Locked},
		{"week zero", 0, []domain.WeeklyProgressEntry{entry(0, 100)}, Locked},
		{"negative week", -4, nil, Locked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Access(tc.week, tc.log); got != tc.want {
				t.Fatalf("week %d: expected %s, got %s", tc.week, tc.want, got)
			}
		})
	}
}

func TestAccessIgnoresLogOrder(t *testing.T) {
	log := []domain.WeeklyProgressEntry{entry(1, 90), entry(2, 30), entry(2, 75), entry(1, 10)}
	reversed := make([]domain.WeeklyProgressEntry, len(log))
	for i := range log {
		reversed[len(log)-1-i] = log[i]
	}
	for week := 1; week <= 4; week++ {
		if Access(week, log) != Access(week, reversed) {
			t.Fatalf("week %d depends on log order", week)
		}
	}
}

func TestRuleThresholdAndBoard(t *testing.T) {
	rule := NewRule(80)
	log := []domain.WeeklyProgressEntry{entry(1, 75)}
	if got := rule.Access(2, log); got != Locked {
		t.Fatalf("expected locked under 80 threshold, got %s", got)
	}
	if got := NewRule(0).Threshold; got != DefaultThreshold {
		t.Fatalf("expected default threshold, got %v", got)
	}

	board := NewRule(DefaultThreshold).Board(3, []domain.WeeklyProgressEntry{entry(1, 100), entry(2, 20)})
	want := []AccessState{Completed, Attempted, Locked}
	for i := range want {
		if board[i] != want[i] {
			t.Fatalf("week %d: expected %s, got %s", i+1, want[i], board[i])
		}
	}

	mixed := []domain.WeeklyProgressEntry{entry(2, 90), entry(1, 60), entry(1, 85), entry(3, 10), entry(2, 20)}
	for i, state := range rule.Board(5, mixed) {
		if want := rule.Access(i+1, mixed); state != want {
			t.Fatalf("board week %d: expected %s, got %s", i+1, want, state)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(nil); got != (Summary{}) {
		t.Fatalf("expected empty summary, got %+v", got)
	}
	got := Summarize([]domain.WeeklyProgressEntry{entry(1, 40), entry(1, 90), entry(2, 75)})
	if got.QuizzesTaken != 3 || got.AverageScore != 68 {
		t.Fatalf("unexpected summary %+v", got)
	}
}

func TestMonthHelpers(t *testing.T) {
	if MonthOfWeek(1) != 1 || MonthOfWeek(4) != 1 || MonthOfWeek(5) != 2 || MonthOfWeek(48) != 12 {
		t.Fatalf("unexpected month mapping")
	}
	if WeekInMonth(5) != 1 || WeekInMonth(8) != 4 {
		t.Fatalf("unexpected week in month")
	}
}
