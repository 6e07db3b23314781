package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"bibleschool-quiz-service/internal/app"
	"bibleschool-quiz-service/internal/logger"
	"github.com/gorilla/websocket"
)

// DefaultRefreshInterval is how often a connection checks its session for
// changes it did not cause itself, such as countdown ticks and auto-submit.
const DefaultRefreshInterval = time.Second

type WSHandler struct {
	service  *app.QuizService
	log      *logger.Logger
	upgrader websocket.Upgrader
	refresh  time.Duration
}

func NewWSHandler(service *app.QuizService, log *logger.Logger) *WSHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &WSHandler{
		service: service,
		log:     log.With("component", "ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		refresh: DefaultRefreshInterval,
	}
}

// WithRefresh overrides the background refresh interval.
func (h *WSHandler) WithRefresh(d time.Duration) *WSHandler {
	if d > 0 {
		h.refresh = d
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type submitPayload struct {
	Confirmed bool `json:"confirmed"`
}

type questionPayload struct {
	QuestionID string `json:"questionId"`
}

type reflectionPayload struct {
	Essay string `json:"essay"`
}

// dictatePayload carries base64 audio, as encoding/json does for []byte.
type dictatePayload struct {
	QuestionID string `json:"questionId"`
	Audio      []byte `json:"audio"`
	MimeType   string `json:"mimeType"`
}

type dictationResult struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

type bonusResult struct {
	QuestionID string `json:"questionId"`
	Revealed   int    `json:"revealed"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs one student's quiz session over it.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	studentID := r.URL.Query().Get("studentId")
	if quizID == "" || studentID == "" {
		http.Error(w, "missing quizId or studentId", http.StatusBadRequest)
		return
	}
	review := r.URL.Query().Get("review") == "true"
	log := h.log.With("quiz_id", quizID, "student_id", studentID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	ctrl, err := h.service.Open(ctx, studentID, quizID, review)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	if !review {
		defer h.service.Close(studentID, quizID, ctrl)
	}
	log.Info("session opened", "review", review, "state", string(ctrl.State()))

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	watchDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Warn("ws write error", "error", err)
				_ = conn.Close()
				return
			}
		}
	}()

	initial := ctrl.View()
	go func() {
		defer close(watchDone)
		h.watch(ctrl, initial, send, closeSignals)
	}()

	// push gives up once the writer has stopped.
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	if review {
		if view, ok := ctrl.Review(); ok {
			push(outboundMessage[any]{Type: "review", Payload: view})
		}
	}
	push(outboundMessage[any]{Type: "state", Payload: initial})

	sess := &wsSession{service: h.service, ctrl: ctrl, review: review}
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		for _, msg := range sess.handle(ctx, inbound) {
			push(msg)
		}
	}

	close(closeSignals)
	<-watchDone
	close(send)
	<-writerDone
	log.Info("session closed", "state", string(ctrl.State()))
}

// watch pushes a fresh state whenever the session's lifecycle state or
// remaining time changes behind the client's back.
func (h *WSHandler) watch(ctrl *app.Controller, last app.View, send chan<- outboundMessage[any], closeSignals <-chan struct{}) {
	ticker := time.NewTicker(h.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-closeSignals:
			return
		case <-ticker.C:
			view := ctrl.View()
			if view.State == last.State && sameMinutes(view.TimeLeft, last.TimeLeft) {
				continue
			}
			last = view
			select {
			case send <- outboundMessage[any]{Type: "state", Payload: view}:
			case <-closeSignals:
				return
			}
		}
	}
}

type wsSession struct {
	service *app.QuizService
	ctrl    *app.Controller
	review  bool
}

// handle applies one inbound message and returns the replies, always ending
// with the resulting state unless the message failed.
func (s *wsSession) handle(ctx context.Context, in inboundMessage) []outboundMessage[any] {
	ctrl := s.ctrl
	var (
		extra []outboundMessage[any]
		err   error
	)
	switch in.Type {
	case "start":
		if s.review {
			err = ctrl.Start(ctx)
		} else {
			err = s.service.Start(ctx, ctrl.StudentID(), ctrl.Quiz().ID)
		}
	case "answer":
		var p answerPayload
		if err = decode(in.Payload, &p); err == nil {
			err = ctrl.SetAnswer(ctx, p.QuestionID, p.Answer)
		}
	case "navigate":
		var p navigatePayload
		if err = decode(in.Payload, &p); err == nil {
			err = ctrl.Navigate(ctx, p.Index)
		}
	case "next":
		err = ctrl.Next(ctx)
	case "prev":
		err = ctrl.Prev(ctx)
	case "submit":
		var p submitPayload
		if err = decode(in.Payload, &p); err == nil {
			var outcome app.Outcome
			outcome, err = ctrl.Submit(ctx, p.Confirmed)
			if err == nil {
				extra = append(extra, outboundMessage[any]{Type: "submitted", Payload: outcome})
			}
		}
	case "review":
		if err = ctrl.EnterReview(ctx); err == nil {
			if view, ok := ctrl.Review(); ok {
				extra = append(extra, outboundMessage[any]{Type: "review", Payload: view})
			}
		}
	case "revealBonus":
		var p questionPayload
		if err = decode(in.Payload, &p); err == nil {
			var n int
			n, err = ctrl.RevealBonus(ctx, p.QuestionID)
			if err == nil {
				extra = append(extra, outboundMessage[any]{Type: "bonusRevealed", Payload: bonusResult{QuestionID: p.QuestionID, Revealed: n}})
			}
		}
	case "reflection":
		var p reflectionPayload
		if err = decode(in.Payload, &p); err == nil {
			err = ctrl.SubmitReflection(ctx, p.Essay)
		}
	case "readAloud":
		var p questionPayload
		if err = decode(in.Payload, &p); err == nil {
			err = ctrl.ReadAloud(ctx, p.QuestionID)
		}
	case "dictate":
		var p dictatePayload
		if err = decode(in.Payload, &p); err == nil {
			var answer string
			answer, err = ctrl.Dictate(ctx, p.QuestionID, p.Audio, p.MimeType)
			if err == nil {
				extra = append(extra, outboundMessage[any]{Type: "dictation", Payload: dictationResult{QuestionID: p.QuestionID, Answer: answer}})
			}
		}
	default:
		return []outboundMessage[any]{errorMessage("unsupported message type")}
	}

	if err != nil {
		return []outboundMessage[any]{errorMessage(err.Error()), {Type: "state", Payload: ctrl.View()}}
	}
	return append(extra, outboundMessage[any]{Type: "state", Payload: ctrl.View()})
}

type payloadError struct{ err error }

func (e payloadError) Error() string { return "invalid payload: " + e.err.Error() }

func (e payloadError) Unwrap() error { return e.err }

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return payloadError{err: err}
	}
	return nil
}

func errorMessage(msg string) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}
}

func sameMinutes(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
