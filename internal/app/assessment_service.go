// Package app wires the assessment use cases together: loading a definition,
// enforcing the single-attempt rule, and handing out the state machine that
// drives one attempt.
package app

import (
	"context"
	"sync"
	"time"

	"lms-assessment-service/internal/attempt"
	"lms-assessment-service/internal/domain"
	"lms-assessment-service/internal/gateway"
	"lms-assessment-service/internal/ledger"
	"lms-assessment-service/internal/quizdef"
)

type pairKey struct {
	learnerID string
	quizID    string
}

// AssessmentService contains the core assessment use cases.
type AssessmentService struct {
	defs   quizdef.Repository
	ledger ledger.Ledger
	gw     gateway.SubmissionGateway
	retry  attempt.RetryPolicy
	now    func() time.Time

	mu     sync.Mutex
	active map[pairKey]*attempt.Attempt
}

// Option customizes the service.
type Option func(*AssessmentService)

// WithRetryPolicy sets the gateway retry bounds for new attempts.
func WithRetryPolicy(p attempt.RetryPolicy) Option {
	return func(s *AssessmentService) { s.retry = p }
}

// WithClock is test-only for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AssessmentService) { s.now = now }
}

func NewAssessmentService(defs quizdef.Repository, led ledger.Ledger, gw gateway.SubmissionGateway, opts ...Option) *AssessmentService {
	s := &AssessmentService{
		defs:   defs,
		ledger: led,
		gw:     gw,
		retry:  attempt.DefaultRetryPolicy(),
		now:    time.Now,
		active: make(map[pairKey]*attempt.Attempt),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins (or resumes) the attempt for a (learner, quiz) pair. If a live
// machine already exists for the pair (say the learner reopened the page),
// that same machine is returned, so there is never more than one. A completed
// prior attempt makes Start fail with domain.ErrAlreadyAttempted; callers
// should then show the recorded result via PriorResult.
func (s *AssessmentService) Start(ctx context.Context, learnerID, quizID string) (*attempt.Attempt, error) {
	key := pairKey{learnerID, quizID}

	s.mu.Lock()
	if a, ok := s.active[key]; ok && a.Phase() != attempt.PhaseCompleted {
		s.mu.Unlock()
		return a, nil
	}
	s.mu.Unlock()

	def, err := s.defs.GetDefinition(ctx, quizID)
	if err != nil {
		return nil, err
	}

	a := attempt.New(def, learnerID, s.gw, s.ledger,
		attempt.WithRetryPolicy(s.retry),
		attempt.WithClock(s.now),
	)
	if err := a.Start(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.active[key]; ok && existing.Phase() != attempt.PhaseCompleted {
		// Lost a racing Start; the other machine is already live and this
		// one never got a clock or any answers, so it is simply dropped.
		s.mu.Unlock()
		return existing, nil
	}
	s.active[key] = a
	s.mu.Unlock()

	go func() {
		<-a.Done()
		s.mu.Lock()
		if s.active[key] == a {
			delete(s.active, key)
		}
		s.mu.Unlock()
	}()

	return a, nil
}

// PriorResult returns the recorded outcome for a pair, if any.
func (s *AssessmentService) PriorResult(ctx context.Context, learnerID, quizID string) (domain.AttemptResult, error) {
	return s.ledger.Get(ctx, learnerID, quizID)
}

// Definition exposes validated quiz definitions to transports.
func (s *AssessmentService) Definition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	return s.defs.GetDefinition(ctx, quizID)
}
