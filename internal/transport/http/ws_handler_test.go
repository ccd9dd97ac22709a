package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lms-assessment-service/internal/app"
	"lms-assessment-service/internal/domain"
	"lms-assessment-service/internal/gateway"
	"lms-assessment-service/internal/ledger"
	"lms-assessment-service/internal/quizdef"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	defs := quizdef.NewMemoryRepository(quizdef.NewStaticLoader(sampleDefinitions()), time.Minute)
	service := app.NewAssessmentService(defs, ledger.NewMemory(), gateway.Local{})
	wsHandler := NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, learnerID string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1&learnerId=" + learnerID
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketAttemptFlow(t *testing.T) {
	server := newTestServer(t)
	conn := dial(t, server, "learner-1")

	msgType, payload := readUntil(conn, t, "started")
	if msgType != "started" {
		t.Fatalf("expected started, got %s", msgType)
	}
	var started struct {
		Quiz struct {
			Questions []map[string]any `json:"questions"`
		} `json:"quiz"`
	}
	if err := json.Unmarshal(payload, &started); err != nil {
		t.Fatalf("decode started: %v", err)
	}
	if len(started.Quiz.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(started.Quiz.Questions))
	}
	// Answer keys must never reach the client.
	for _, q := range started.Quiz.Questions {
		if _, leaked := q["answerKey"]; leaked {
			t.Fatalf("answer key leaked to client: %+v", q)
		}
	}

	writeMsg(conn, t, "answer", map[string]any{"questionIndex": 0, "options": []int{0}})
	// Tick-driven snapshots may interleave; wait for one reflecting the answer.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_, statePayload := readUntil(conn, t, "state")
		var state struct {
			AnsweredCount int `json:"answeredCount"`
		}
		if err := json.Unmarshal(statePayload, &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if state.AnsweredCount == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("state never reflected the answer")
		}
	}

	writeMsg(conn, t, "answer", map[string]any{"questionIndex": 1, "options": []int{1}})
	writeMsg(conn, t, "submit", nil)

	_, completedPayload := readUntil(conn, t, "completed")
	var result domain.AttemptResult
	if err := json.Unmarshal(completedPayload, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.ScorePercent != 100 || !result.Passed || result.Reason != domain.ReasonSubmitted {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestWebSocketReplaysPriorResult(t *testing.T) {
	server := newTestServer(t)

	conn := dial(t, server, "learner-2")
	readUntil(conn, t, "started")
	writeMsg(conn, t, "submit", nil)
	readUntil(conn, t, "completed")
	conn.Close()

	again := dial(t, server, "learner-2")
	msgType, payload := readUntil(again, t, "alreadyCompleted")
	if msgType != "alreadyCompleted" {
		t.Fatalf("expected alreadyCompleted, got %s", msgType)
	}
	var result domain.AttemptResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("decode prior result: %v", err)
	}
	if result.LearnerID != "learner-2" || result.ScorePercent != 0 {
		t.Fatalf("unexpected prior result: %+v", result)
	}
}

func TestWebSocketRejectsMissingParams(t *testing.T) {
	server := newTestServer(t)
	resp, err := http.Get(server.URL + "/ws?quizId=quiz-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func writeMsg(conn *websocket.Conn, t *testing.T, msgType string, payload any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

// readUntil reads messages until one of the wanted type arrives, skipping
// interleaved tick-driven state updates.
func readUntil(conn *websocket.Conn, t *testing.T, want string) (string, json.RawMessage) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == want || msg.Type == "error" {
			return msg.Type, msg.Payload
		}
	}
	t.Fatalf("timed out waiting for %s", want)
	return "", nil
}

func sampleDefinitions() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:                   "quiz-1",
			Title:                "Knowledge Check",
			TimeLimitSeconds:     30,
			PassThresholdPercent: 70,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, AnswerKey: domain.NewSelection(1)},
				{ID: "q2", Prompt: "Pick the even numbers", Options: []string{"2", "3", "4"}, AnswerKey: domain.NewSelection(0, 2)},
			},
		},
	}
}
