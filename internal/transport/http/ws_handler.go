package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"lms-assessment-service/internal/app"
	"lms-assessment-service/internal/attempt"
	"lms-assessment-service/internal/domain"
)

type WSHandler struct {
	service  *app.AssessmentService
	upgrader websocket.Upgrader

	// tickInterval is the countdown granularity; one second per the model.
	tickInterval time.Duration
}

func NewWSHandler(service *app.AssessmentService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tickInterval: time.Second,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionIndex int   `json:"questionIndex"`
	Options       []int `json:"options"`
}

type gotoPayload struct {
	QuestionIndex int `json:"questionIndex"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// questionView is the learner-facing shape of a question: prompts and
// options only, never the answer key.
type questionView struct {
	ID          string   `json:"id"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options"`
	MultiSelect bool     `json:"multiSelect"`
}

type quizView struct {
	QuizID               string         `json:"quizId"`
	Title                string         `json:"title"`
	TimeLimitSeconds     int            `json:"timeLimitSeconds"`
	PassThresholdPercent int            `json:"passThresholdPercent"`
	Questions            []questionView `json:"questions"`
}

func sanitize(def domain.QuizDefinition) quizView {
	questions := make([]questionView, len(def.Questions))
	for i, q := range def.Questions {
		questions[i] = questionView{
			ID:          q.ID,
			Prompt:      q.Prompt,
			Options:     q.Options,
			MultiSelect: q.MultiCorrect(),
		}
	}
	return quizView{
		QuizID:               def.ID,
		Title:                def.Title,
		TimeLimitSeconds:     def.TimeLimitSeconds,
		PassThresholdPercent: def.PassThresholdPercent,
		Questions:            questions,
	}
}

type startedPayload struct {
	Quiz  quizView         `json:"quiz"`
	State attempt.Snapshot `json:"state"`
}

// ServeWS upgrades the request and drives one attempt over the socket:
// the attempt starts immediately, a countdown clock runs server-side, and
// the learner navigates and answers via inbound messages until submit or
// timeout produces the terminal result.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	learnerID := r.URL.Query().Get("learnerId")
	if quizID == "" || learnerID == "" {
		http.Error(w, "missing quizId or learnerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	a, err := h.service.Start(r.Context(), learnerID, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyAttempted) {
			if prior, getErr := h.service.PriorResult(r.Context(), learnerID, quizID); getErr == nil {
				_ = conn.WriteJSON(outboundMessage[domain.AttemptResult]{Type: "alreadyCompleted", Payload: prior})
				return
			}
		}
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	stopClock := attempt.RunClock(a, h.tickInterval)
	defer stopClock()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Pushes the ticking state once per interval and the terminal result once.
	go func() {
		defer close(updatesDone)
		ticker := time.NewTicker(h.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				snap := a.Snapshot()
				if snap.Phase != attempt.PhaseInProgress {
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-a.Done():
				if result, ok := a.Result(); ok {
					select {
					case send <- outboundMessage[any]{Type: "completed", Payload: result}:
					case <-closeSignals:
					}
				}
				return
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "started", Payload: startedPayload{
		Quiz:  sanitize(a.Definition()),
		State: a.Snapshot(),
	}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if errMsg := h.handleMessage(a, inbound); errMsg != "" {
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errMsg}}
			continue
		}
		if inbound.Type != "submit" {
			send <- outboundMessage[any]{Type: "state", Payload: a.Snapshot()}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) handleMessage(a *attempt.Attempt, inbound inboundMessage) string {
	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return "invalid answer payload"
		}
		if err := a.SelectAnswer(payload.QuestionIndex, domain.NewSelection(payload.Options...)); err != nil {
			return err.Error()
		}
	case "goto":
		var payload gotoPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return "invalid goto payload"
		}
		if err := a.GoTo(payload.QuestionIndex); err != nil {
			return err.Error()
		}
	case "next":
		a.Next()
	case "previous":
		a.Previous()
	case "submit":
		if err := a.Submit(); err != nil {
			return err.Error()
		}
	default:
		return "unsupported message type"
	}
	return ""
}
