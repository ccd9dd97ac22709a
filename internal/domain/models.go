package domain

import (
	"sort"
	"time"
)

// DefaultPassThreshold is applied when a stored definition omits the threshold.
const DefaultPassThreshold = 70

// Selection is the set of option indices a learner picked for one question.
// A single-choice answer is a singleton set. Selections are kept sorted and
// de-duplicated so set equality is a plain slice compare.
type Selection []int

// NewSelection normalizes the given option indices into a Selection.
func NewSelection(indices ...int) Selection {
	if len(indices) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(indices))
	out := make(Selection, 0, len(indices))
	for _, idx := range indices {
		if _, ok := seen[idx]; ok {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// IsEmpty reports whether the question is unanswered.
func (s Selection) IsEmpty() bool {
	return len(s) == 0
}

// Equal reports exact set equality with other.
func (s Selection) Equal(other Selection) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Question models an MCQ question. AnswerKey holds the index (or index set,
// for multi-correct questions) of the correct options within Options.
type Question struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Options   []string  `json:"options"`
	AnswerKey Selection `json:"answerKey"`
}

// MultiCorrect reports whether the question requires a set answer.
func (q Question) MultiCorrect() bool {
	return len(q.AnswerKey) > 1
}

// QuizDefinition is the immutable description of a quiz. It is owned by
// whichever loader fetched it; the attempt machinery only ever reads it.
type QuizDefinition struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Questions            []Question `json:"questions"`
	TimeLimitSeconds     int        `json:"timeLimitSeconds"`
	PassThresholdPercent int        `json:"passThresholdPercent"`
}

// CompletionReason records how an attempt reached its terminal state.
type CompletionReason string

const (
	ReasonSubmitted CompletionReason = "submitted"
	ReasonTimedOut  CompletionReason = "timedOut"
)

// AttemptResult is the immutable outcome of one attempt. Produced exactly
// once when the attempt completes; owned by the ledger afterwards.
type AttemptResult struct {
	AttemptID    string           `json:"attemptId"`
	QuizID       string           `json:"quizId"`
	LearnerID    string           `json:"learnerId"`
	Answers      []Selection      `json:"answers"`
	ScorePercent int              `json:"scorePercent"`
	Passed       bool             `json:"passed"`
	CompletedAt  time.Time        `json:"completedAt"`
	Reason       CompletionReason `json:"completionReason"`
	// Synced is false when the submission gateway never acknowledged the
	// result; the score is then the local computation, pending reconciliation.
	Synced bool `json:"synced"`
}
