package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"lms-assessment-service/internal/domain"
)

// HTTPGateway submits attempts to a backend endpoint as JSON over POST.
type HTTPGateway struct {
	endpoint string
	client   *http.Client
}

func NewHTTPGateway(endpoint string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type submitPayload struct {
	AttemptID    string                  `json:"attemptId"`
	LearnerID    string                  `json:"learnerId"`
	QuizID       string                  `json:"quizId"`
	Answers      []domain.Selection      `json:"answers"`
	ScorePercent int                     `json:"scorePercent"`
	Status       string                  `json:"status"`
	Reason       domain.CompletionReason `json:"completionReason"`
	CompletedAt  time.Time               `json:"completedAt"`
}

func (g *HTTPGateway) SubmitAttempt(ctx context.Context, result domain.AttemptResult) (Ack, error) {
	status := StatusFailed
	if result.Passed {
		status = StatusPassed
	}
	body, err := json.Marshal(submitPayload{
		AttemptID:    result.AttemptID,
		LearnerID:    result.LearnerID,
		QuizID:       result.QuizID,
		Answers:      result.Answers,
		ScorePercent: result.ScorePercent,
		Status:       status,
		Reason:       result.Reason,
		CompletedAt:  result.CompletedAt,
	})
	if err != nil {
		return Ack{}, fmt.Errorf("marshal attempt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Ack{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Ack{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return Ack{}, &TransportError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return Ack{}, fmt.Errorf("submit attempt rejected: status %d", resp.StatusCode)
	}

	var ack Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return Ack{}, &TransportError{Err: fmt.Errorf("decode ack: %w", err)}
	}
	return ack, nil
}
