package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/logger"
	"bibleschool-quiz-service/internal/unlock"
)

// DefaultWeekCount covers the twelve month program.
const DefaultWeekCount = 12 * unlock.WeeksPerMonth

// WeeksHandler serves the weekly unlock state of a student's program.
type WeeksHandler struct {
	service *app.QuizService
	log     *logger.Logger
}

func NewWeeksHandler(service *app.QuizService, log *logger.Logger) *WeeksHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WeeksHandler{service: service, log: log.With("component", "weeks")}
}

type weekAccess struct {
	Week        int                `json:"week"`
	Month       int                `json:"month"`
	WeekInMonth int                `json:"weekInMonth"`
	Access      unlock.AccessState `json:"access"`
}

type weekBoard struct {
	StudentID string         `json:"studentId"`
	Summary   unlock.Summary `json:"summary"`
	Weeks     []weekAccess   `json:"weeks"`
}

// Register mounts the week routes on mux.
func (h *WeeksHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/weeks/{week}/access", h.Access)
	mux.HandleFunc("GET /api/weeks", h.Board)
}

// Access answers GET /api/weeks/{week}/access?studentId=.
func (h *WeeksHandler) Access(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		http.Error(w, "missing studentId", http.StatusBadRequest)
		return
	}
	week, err := strconv.Atoi(r.PathValue("week"))
	if err != nil {
		http.Error(w, "invalid week", http.StatusBadRequest)
		return
	}
	state, err := h.service.WeekAccess(r.Context(), studentID, week)
	if err != nil {
		h.log.Error("week access failed", "student_id", studentID, "week", week, "error", err)
		http.Error(w, "progress unavailable", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, describeWeek(week, state))
}

// Board answers GET /api/weeks?studentId=&count=.
func (h *WeeksHandler) Board(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("studentId")
	if studentID == "" {
		http.Error(w, "missing studentId", http.StatusBadRequest)
		return
	}
	count := DefaultWeekCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		count = n
	}
	states, summary, err := h.service.WeekBoard(r.Context(), studentID, count)
	if err != nil {
		h.log.Error("week board failed", "student_id", studentID, "error", err)
		http.Error(w, "progress unavailable", http.StatusInternalServerError)
		return
	}
	board := weekBoard{StudentID: studentID, Summary: summary, Weeks: make([]weekAccess, 0, len(states))}
	for i, state := range states {
		board.Weeks = append(board.Weeks, describeWeek(i+1, state))
	}
	h.writeJSON(w, board)
}

func (h *WeeksHandler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response failed", "error", err)
	}
}

func describeWeek(week int, state unlock.AccessState) weekAccess {
	return weekAccess{
		Week:        week,
		Month:       unlock.MonthOfWeek(week),
		WeekInMonth: unlock.WeekInMonth(week),
		Access:      state,
	}
}
