// Package gateway defines the boundary through which completed attempts are
// persisted to the backend. The backend may recompute the score server-side;
// its answer is authoritative and overrides the local computation.
package gateway

import (
	"context"
	"fmt"

	"lms-assessment-service/internal/domain"
)

// Ack is the backend's confirmation of a submitted attempt.
type Ack struct {
	ScorePercent int    `json:"scorePercent"`
	Status       string `json:"status"`
}

const (
	StatusPassed = "passed"
	StatusFailed = "failed"
)

// Passed interprets the ack's status field.
func (a Ack) Passed() bool {
	return a.Status == StatusPassed
}

// SubmissionGateway persists a completed attempt outside the core.
type SubmissionGateway interface {
	SubmitAttempt(ctx context.Context, result domain.AttemptResult) (Ack, error)
}

// TransportError marks a submission failure that is worth retrying: network
// errors, timeouts, server 5xx. Anything else is permanent.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("submit attempt: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("submit attempt: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Local acknowledges submissions with the locally computed score. Used when
// no backend endpoint is configured, keeping the submit flow shape intact.
type Local struct{}

func (Local) SubmitAttempt(_ context.Context, result domain.AttemptResult) (Ack, error) {
	status := StatusFailed
	if result.Passed {
		status = StatusPassed
	}
	return Ack{ScorePercent: result.ScorePercent, Status: status}, nil
}
