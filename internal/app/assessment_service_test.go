package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"lms-assessment-service/internal/app"
	"lms-assessment-service/internal/attempt"
	"lms-assessment-service/internal/domain"
	"lms-assessment-service/internal/gateway"
	"lms-assessment-service/internal/ledger"
	"lms-assessment-service/internal/quizdef"
)

func newTestService() *app.AssessmentService {
	defs := quizdef.NewMemoryRepository(quizdef.NewStaticLoader(map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:                   "quiz-1",
			Title:                "Knowledge Check",
			TimeLimitSeconds:     30,
			PassThresholdPercent: 70,
			Questions: []domain.Question{
				{ID: "q1", Prompt: "pick right", Options: []string{"right", "wrong"}, AnswerKey: domain.NewSelection(0)},
				{ID: "q2", Prompt: "pick right", Options: []string{"wrong", "right"}, AnswerKey: domain.NewSelection(1)},
			},
		},
	}), 5*time.Minute)
	return app.NewAssessmentService(defs, ledger.NewMemory(), gateway.Local{},
		app.WithRetryPolicy(attempt.RetryPolicy{MaxRetries: 1, InitialInterval: time.Millisecond}))
}

func TestStartAnswerSubmitFlow(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	a, err := service.Start(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.SelectAnswer(0, domain.NewSelection(0)); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.SelectAnswer(1, domain.NewSelection(1)); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := a.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	result, err := a.Wait(waitCtx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if result.ScorePercent != 100 || !result.Passed {
		t.Fatalf("expected full score, got %+v", result)
	}
}

func TestStartReturnsSameMachineWhileInProgress(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	first, err := service.Start(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	second, err := service.Start(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if first != second {
		t.Fatalf("expected the same live attempt for the pair")
	}

	// A different learner gets their own machine.
	other, err := service.Start(ctx, "learner-2", "quiz-1")
	if err != nil {
		t.Fatalf("other learner start: %v", err)
	}
	if other == first {
		t.Fatalf("expected a distinct attempt per learner")
	}
}

func TestSecondAttemptRejected(t *testing.T) {
	ctx := context.Background()
	service := newTestService()

	a, err := service.Start(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = a.SelectAnswer(0, domain.NewSelection(0))
	if err := a.Submit(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	first, err := a.Wait(waitCtx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}

	if _, err := service.Start(ctx, "learner-1", "quiz-1"); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted, got %v", err)
	}
	// However many times it is retried.
	if _, err := service.Start(ctx, "learner-1", "quiz-1"); !errors.Is(err, domain.ErrAlreadyAttempted) {
		t.Fatalf("expected already attempted on retry, got %v", err)
	}

	prior, err := service.PriorResult(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("prior result: %v", err)
	}
	if prior.ScorePercent != first.ScorePercent || prior.AttemptID != first.AttemptID {
		t.Fatalf("prior result changed: first=%+v prior=%+v", first, prior)
	}
}

func TestStartUnknownQuiz(t *testing.T) {
	service := newTestService()
	if _, err := service.Start(context.Background(), "learner-1", "quiz-404"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}
