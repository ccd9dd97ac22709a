package domain

import (
	"errors"
	"testing"
)

func validDefinition() QuizDefinition {
	return QuizDefinition{
		ID:                   "quiz-1",
		TimeLimitSeconds:     120,
		PassThresholdPercent: 70,
		Questions: []Question{
			{ID: "q1", Prompt: "first", Options: []string{"a", "b"}, AnswerKey: NewSelection(0)},
			{ID: "q2", Prompt: "second", Options: []string{"a", "b", "c"}, AnswerKey: NewSelection(1, 2)},
		},
	}
}

func TestValidateAcceptsWellFormedDefinition(t *testing.T) {
	if err := validDefinition().Validate(); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*QuizDefinition)
		wantIndex int
	}{
		{"no questions", func(d *QuizDefinition) { d.Questions = nil }, -1},
		{"zero time limit", func(d *QuizDefinition) { d.TimeLimitSeconds = 0 }, -1},
		{"negative time limit", func(d *QuizDefinition) { d.TimeLimitSeconds = -5 }, -1},
		{"threshold above 100", func(d *QuizDefinition) { d.PassThresholdPercent = 101 }, -1},
		{"single option", func(d *QuizDefinition) { d.Questions[1].Options = []string{"only"} }, 1},
		{"empty answer key", func(d *QuizDefinition) { d.Questions[0].AnswerKey = nil }, 0},
		{"key index out of range", func(d *QuizDefinition) { d.Questions[1].AnswerKey = NewSelection(7) }, 1},
		{"negative key index", func(d *QuizDefinition) { d.Questions[0].AnswerKey = Selection{-1} }, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			def := validDefinition()
			tc.mutate(&def)
			err := def.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.QuestionIndex != tc.wantIndex {
				t.Fatalf("expected question index %d, got %d", tc.wantIndex, verr.QuestionIndex)
			}
		})
	}
}

func TestSelectionNormalization(t *testing.T) {
	sel := NewSelection(3, 1, 3, 2)
	if !sel.Equal(Selection{1, 2, 3}) {
		t.Fatalf("expected sorted de-duplicated selection, got %v", sel)
	}
	if !NewSelection().IsEmpty() {
		t.Fatalf("expected empty selection")
	}
	if NewSelection(1).Equal(NewSelection(1, 2)) {
		t.Fatalf("expected sets of different size to differ")
	}
}
