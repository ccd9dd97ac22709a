// Package scoring computes the final score of a quiz attempt. The function is
// pure: identical inputs always produce identical output, which lets callers
// re-score an attempt freely without drift.
package scoring

import (
	"fmt"
	"math"

	"lms-assessment-service/internal/domain"
)

// Result is the outcome of scoring one attempt.
type Result struct {
	ScorePercent int
	Passed       bool
	CorrectCount int
}

// Score grades answers against the definition. Each question carries an equal
// weight of 100/N percentage points; a question is correct only when the
// learner's selection set exactly equals the answer key (no partial credit
// for subsets or supersets); unanswered questions score zero. The percentage
// is rounded half-up to an integer.
//
// Answers is indexed by question position; it may be shorter than the
// question list (trailing questions are unanswered). A longer slice or a
// selection referencing a nonexistent option indicates a bug upstream and
// fails with domain.ErrInvariant.
func Score(def domain.QuizDefinition, answers []domain.Selection) (Result, error) {
	n := len(def.Questions)
	if n == 0 {
		return Result{}, fmt.Errorf("%w: quiz %q has no questions", domain.ErrInvariant, def.ID)
	}
	if len(answers) > n {
		return Result{}, fmt.Errorf("%w: %d answers for %d questions", domain.ErrInvariant, len(answers), n)
	}

	correct := 0
	for i, q := range def.Questions {
		if i >= len(answers) {
			break
		}
		sel := answers[i]
		if sel.IsEmpty() {
			continue
		}
		for _, idx := range sel {
			if idx < 0 || idx >= len(q.Options) {
				return Result{}, fmt.Errorf("%w: question %d: selected option %d out of range", domain.ErrInvariant, i, idx)
			}
		}
		if sel.Equal(q.AnswerKey) {
			correct++
		}
	}

	percent := roundHalfUp(100 * float64(correct) / float64(n))
	return Result{
		ScorePercent: percent,
		Passed:       percent >= def.PassThresholdPercent,
		CorrectCount: correct,
	}, nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
