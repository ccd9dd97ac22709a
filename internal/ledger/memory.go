package ledger

import (
	"context"
	"sync"

	"lms-assessment-service/internal/domain"
)

type pairKey struct {
	learnerID string
	quizID    string
}

// Memory is an in-process Ledger, used in tests and when no durable store is
// configured. The single mutex gives the per-key single-writer discipline.
type Memory struct {
	mu      sync.RWMutex
	entries map[pairKey]domain.AttemptResult
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[pairKey]domain.AttemptResult)}
}

func (m *Memory) HasAttempted(_ context.Context, learnerID, quizID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[pairKey{learnerID, quizID}]
	return ok, nil
}

func (m *Memory) Record(_ context.Context, result domain.AttemptResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{result.LearnerID, result.QuizID}
	if _, ok := m.entries[key]; ok {
		return domain.ErrDuplicateAttempt
	}
	m.entries[key] = result
	return nil
}

func (m *Memory) Get(_ context.Context, learnerID, quizID string) (domain.AttemptResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result, ok := m.entries[pairKey{learnerID, quizID}]
	if !ok {
		return domain.AttemptResult{}, domain.ErrAttemptNotFound
	}
	return result, nil
}
