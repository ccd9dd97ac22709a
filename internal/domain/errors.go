package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the quiz definition could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAlreadyAttempted is returned by Start when the ledger already holds
	// a result for the (learner, quiz) pair.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrDuplicateAttempt is returned by Record when an entry already exists;
	// the first recorded result is retained.
	ErrDuplicateAttempt = errors.New("attempt already recorded")
	// ErrAttemptNotFound is returned when no ledger entry exists for the pair.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptCompleted is returned by mutators invoked after the attempt
	// reached its terminal state.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrAttemptNotStarted is returned by in-progress operations before Start.
	ErrAttemptNotStarted = errors.New("attempt not started")
	// ErrInvariant flags an impossible scoring input; always a bug upstream.
	ErrInvariant = errors.New("scoring invariant violated")
)

// ValidationError rejects a malformed QuizDefinition. QuestionIndex is -1 for
// quiz-level problems, otherwise the index of the offending question.
type ValidationError struct {
	QuizID        string
	QuestionIndex int
	Reason        string
}

func (e *ValidationError) Error() string {
	if e.QuestionIndex < 0 {
		return fmt.Sprintf("invalid quiz %q: %s", e.QuizID, e.Reason)
	}
	return fmt.Sprintf("invalid quiz %q: question %d: %s", e.QuizID, e.QuestionIndex, e.Reason)
}

// Validate checks the construction invariants from the definition model:
// at least one question, a positive time limit, a sane threshold, and every
// answer-key index in range. Loaders must reject definitions that fail this
// before handing them to the core.
func (d QuizDefinition) Validate() error {
	if len(d.Questions) == 0 {
		return &ValidationError{QuizID: d.ID, QuestionIndex: -1, Reason: "no questions"}
	}
	if d.TimeLimitSeconds <= 0 {
		return &ValidationError{QuizID: d.ID, QuestionIndex: -1, Reason: "non-positive time limit"}
	}
	if d.PassThresholdPercent < 0 || d.PassThresholdPercent > 100 {
		return &ValidationError{QuizID: d.ID, QuestionIndex: -1, Reason: "pass threshold out of range"}
	}
	for i, q := range d.Questions {
		if len(q.Options) < 2 {
			return &ValidationError{QuizID: d.ID, QuestionIndex: i, Reason: "fewer than two options"}
		}
		if len(q.AnswerKey) == 0 {
			return &ValidationError{QuizID: d.ID, QuestionIndex: i, Reason: "empty answer key"}
		}
		for _, idx := range q.AnswerKey {
			if idx < 0 || idx >= len(q.Options) {
				return &ValidationError{QuizID: d.ID, QuestionIndex: i, Reason: fmt.Sprintf("answer key index %d out of range", idx)}
			}
		}
	}
	return nil
}
