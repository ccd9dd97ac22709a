// Package quizdef loads quiz definitions from a backing store and caches
// them. Definitions are validated here, at the boundary, so everything
// downstream can assume a well-formed quiz.
package quizdef

import (
	"context"

	"lms-assessment-service/internal/domain"
)

// Repository hands out validated quiz definitions.
type Repository interface {
	GetDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// Loader fetches raw definitions from a backing store (e.g. Postgres).
type Loader interface {
	LoadDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error)
}

// prepare applies defaults and runs construction-time validation. A stored
// definition may omit the pass threshold; the house rule is 70.
func prepare(def domain.QuizDefinition) (domain.QuizDefinition, error) {
	if def.PassThresholdPercent == 0 {
		def.PassThresholdPercent = domain.DefaultPassThreshold
	}
	if err := def.Validate(); err != nil {
		return domain.QuizDefinition{}, err
	}
	return def, nil
}

// StaticLoader serves definitions from a fixed map (tests and demos).
type StaticLoader struct {
	defs map[string]domain.QuizDefinition
}

func NewStaticLoader(defs map[string]domain.QuizDefinition) *StaticLoader {
	return &StaticLoader{defs: defs}
}

func (l *StaticLoader) LoadDefinition(_ context.Context, quizID string) (domain.QuizDefinition, error) {
	if def, ok := l.defs[quizID]; ok {
		return def, nil
	}
	return domain.QuizDefinition{}, domain.ErrQuizNotFound
}
