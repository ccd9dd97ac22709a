package quizdef

import (
	"context"
	"errors"
	"testing"
	"time"

	"lms-assessment-service/internal/domain"
)

type countingLoader struct {
	Loader
	calls int
}

func (l *countingLoader) LoadDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	l.calls++
	return l.Loader.LoadDefinition(ctx, quizID)
}

func sampleDefinition() domain.QuizDefinition {
	return domain.QuizDefinition{
		ID:               "quiz-1",
		Title:            "Sample",
		TimeLimitSeconds: 120,
		Questions: []domain.Question{
			{ID: "q1", Prompt: "pick one", Options: []string{"a", "b"}, AnswerKey: domain.NewSelection(1)},
		},
	}
}

func TestMemoryRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		Loader: NewStaticLoader(map[string]domain.QuizDefinition{"quiz-1": sampleDefinition()}),
	}
	repo := NewMemoryRepository(loader, time.Minute)

	if _, err := repo.GetDefinition(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetDefinition(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("get definition 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestMemoryRepositoryAppliesDefaultThreshold(t *testing.T) {
	repo := NewMemoryRepository(NewStaticLoader(map[string]domain.QuizDefinition{"quiz-1": sampleDefinition()}), time.Minute)

	def, err := repo.GetDefinition(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("get definition: %v", err)
	}
	if def.PassThresholdPercent != domain.DefaultPassThreshold {
		t.Fatalf("expected default threshold %d, got %d", domain.DefaultPassThreshold, def.PassThresholdPercent)
	}
}

func TestMemoryRepositoryValidatesAtBoundary(t *testing.T) {
	bad := sampleDefinition()
	bad.Questions[0].AnswerKey = domain.NewSelection(9)
	repo := NewMemoryRepository(NewStaticLoader(map[string]domain.QuizDefinition{"quiz-bad": bad}), time.Minute)

	_, err := repo.GetDefinition(context.Background(), "quiz-bad")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.QuestionIndex != 0 {
		t.Fatalf("expected offending question 0, got %d", verr.QuestionIndex)
	}
}

func TestStaticLoaderUnknownQuiz(t *testing.T) {
	repo := NewMemoryRepository(NewStaticLoader(nil), time.Minute)
	if _, err := repo.GetDefinition(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}
