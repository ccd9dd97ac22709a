// Package ledger enforces the one-attempt-per-(learner, quiz) guarantee and
// holds the outcome of completed attempts. Record is first-write-wins: a
// second write for the same pair fails with domain.ErrDuplicateAttempt and
// the original entry is retained, which is what resolves near-simultaneous
// completions deterministically.
package ledger

import (
	"context"

	"lms-assessment-service/internal/domain"
)

// Ledger is the attempt ledger contract.
type Ledger interface {
	HasAttempted(ctx context.Context, learnerID, quizID string) (bool, error)
	Record(ctx context.Context, result domain.AttemptResult) error
	Get(ctx context.Context, learnerID, quizID string) (domain.AttemptResult, error)
}
