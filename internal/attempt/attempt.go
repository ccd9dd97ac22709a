// Package attempt owns the lifecycle of a single quiz attempt: question
// navigation, answer capture, the countdown, and the one-way transition to a
// terminal result. One Attempt instance exists per in-progress attempt and is
// safe to drive from a periodic clock concurrently with learner actions.
package attempt

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"lms-assessment-service/internal/domain"
	"lms-assessment-service/internal/gateway"
	"lms-assessment-service/internal/scoring"
)

// Phase is the lifecycle state of an attempt. Completed is terminal.
type Phase string

const (
	PhaseNotStarted Phase = "notStarted"
	PhaseInProgress Phase = "inProgress"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
)

// Recorder is the slice of the attempt ledger the machine needs: the
// pre-start check, the terminal write, and the fetch used when a concurrent
// completion won the record race.
type Recorder interface {
	HasAttempted(ctx context.Context, learnerID, quizID string) (bool, error)
	Record(ctx context.Context, result domain.AttemptResult) error
	Get(ctx context.Context, learnerID, quizID string) (domain.AttemptResult, error)
}

// RetryPolicy bounds the gateway retry loop.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy keeps a waiting learner below ~10s of retrying.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 4, InitialInterval: 500 * time.Millisecond, MaxInterval: 5 * time.Second}
}

// Attempt is the state machine for one (learner, quiz) attempt.
type Attempt struct {
	id        string
	def       domain.QuizDefinition
	learnerID string

	gw    gateway.SubmissionGateway
	rec   Recorder
	retry RetryPolicy
	now   func() time.Time

	mu        sync.Mutex
	phase     Phase
	current   int
	answers   []domain.Selection
	remaining int
	result    *domain.AttemptResult
	failure   error
	done      chan struct{}
}

// Option customizes an Attempt; used by tests for deterministic clocks.
type Option func(*Attempt)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Attempt) { a.now = now }
}

// WithRetryPolicy overrides the gateway retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(a *Attempt) { a.retry = p }
}

// New builds an attempt in NotStarted over an already-validated definition.
func New(def domain.QuizDefinition, learnerID string, gw gateway.SubmissionGateway, rec Recorder, opts ...Option) *Attempt {
	a := &Attempt{
		id:        uuid.NewString(),
		def:       def,
		learnerID: learnerID,
		gw:        gw,
		rec:       rec,
		retry:     DefaultRetryPolicy(),
		now:       time.Now,
		phase:     PhaseNotStarted,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the attempt identifier.
func (a *Attempt) ID() string { return a.id }

// LearnerID returns the learner driving this attempt.
func (a *Attempt) LearnerID() string { return a.learnerID }

// Definition returns the quiz under assessment.
func (a *Attempt) Definition() domain.QuizDefinition { return a.def }

// Start moves the attempt into InProgress. It consults the ledger first and
// refuses with domain.ErrAlreadyAttempted when a result already exists for
// this (learner, quiz) pair; the attempt stays in NotStarted in that case.
func (a *Attempt) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.phase != PhaseNotStarted {
		a.mu.Unlock()
		return domain.ErrAttemptCompleted
	}
	a.mu.Unlock()

	// Ledger check happens outside the lock: it may hit the network and no
	// state has been created yet for it to race against.
	taken, err := a.rec.HasAttempted(ctx, a.learnerID, a.def.ID)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrAlreadyAttempted
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseNotStarted {
		return domain.ErrAttemptCompleted
	}
	a.phase = PhaseInProgress
	a.current = 0
	a.remaining = a.def.TimeLimitSeconds
	a.answers = make([]domain.Selection, len(a.def.Questions))
	return nil
}

// SelectAnswer stores the learner's choice for a question. It never advances
// the cursor and may be called repeatedly to change a prior answer.
func (a *Attempt) SelectAnswer(questionIndex int, selection domain.Selection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireInProgressLocked(); err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= len(a.def.Questions) {
		return domain.ErrInvariant
	}
	q := a.def.Questions[questionIndex]
	normalized := domain.NewSelection(selection...)
	for _, idx := range normalized {
		if idx < 0 || idx >= len(q.Options) {
			return domain.ErrInvariant
		}
	}
	a.answers[questionIndex] = normalized
	return nil
}

// GoTo moves the cursor to any valid question index.
func (a *Attempt) GoTo(questionIndex int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireInProgressLocked(); err != nil {
		return err
	}
	if questionIndex < 0 || questionIndex >= len(a.def.Questions) {
		return domain.ErrInvariant
	}
	a.current = questionIndex
	return nil
}

// Next advances the cursor by one; a no-op at the last question.
func (a *Attempt) Next() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseInProgress {
		return
	}
	if a.current < len(a.def.Questions)-1 {
		a.current++
	}
}

// Previous moves the cursor back by one; a no-op at the first question.
func (a *Attempt) Previous() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseInProgress {
		return
	}
	if a.current > 0 {
		a.current--
	}
}

// Tick decrements the countdown by one second. When it hits zero the attempt
// transitions to Submitting with reason timedOut, using whatever answers are
// set at that moment. The return value reports whether the attempt is still
// in progress, so a periodic clock knows when to stop calling.
func (a *Attempt) Tick() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseInProgress {
		return false
	}
	a.remaining--
	if a.remaining <= 0 {
		a.remaining = 0
		a.beginSubmitLocked(domain.ReasonTimedOut)
		return false
	}
	return true
}

// Submit finishes the attempt on the learner's initiative. Unanswered
// questions simply score zero. If the timer won the race first, Submit finds
// the machine already out of InProgress and reports that instead.
func (a *Attempt) Submit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireInProgressLocked(); err != nil {
		return err
	}
	a.beginSubmitLocked(domain.ReasonSubmitted)
	return nil
}

func (a *Attempt) requireInProgressLocked() error {
	switch a.phase {
	case PhaseInProgress:
		return nil
	case PhaseNotStarted:
		return domain.ErrAttemptNotStarted
	default:
		return domain.ErrAttemptCompleted
	}
}

// beginSubmitLocked is the single exit from InProgress. The caller holds the
// lock, which is what makes the tick/submit tie-break atomic: whichever call
// gets here first flips the phase, and the loser sees Submitting.
func (a *Attempt) beginSubmitLocked(reason domain.CompletionReason) {
	a.phase = PhaseSubmitting
	snapshot := make([]domain.Selection, len(a.answers))
	copy(snapshot, a.answers)
	go a.finalize(snapshot, reason)
}

// finalize runs off the caller's goroutine so Submit returns while the UI
// shows a submitting indicator. It scores the snapshot, pushes the result
// through the gateway with bounded retries, records it in the ledger, and
// lands the attempt in Completed.
func (a *Attempt) finalize(snapshot []domain.Selection, reason domain.CompletionReason) {
	ctx := context.Background()

	scored, err := scoring.Score(a.def, snapshot)
	if err != nil {
		// Upstream bug; surfaced, never papered over.
		log.Printf("attempt %s: %v", a.id, err)
		a.completeWithFailure(err)
		return
	}

	result := domain.AttemptResult{
		AttemptID:    a.id,
		QuizID:       a.def.ID,
		LearnerID:    a.learnerID,
		Answers:      snapshot,
		ScorePercent: scored.ScorePercent,
		Passed:       scored.Passed,
		CompletedAt:  a.now(),
		Reason:       reason,
	}

	ack, err := a.submitWithRetry(ctx, result)
	switch {
	case err == nil:
		result.Synced = true
		if ack.Status != "" {
			// The backend recomputes server-side; on disagreement its value wins.
			result.ScorePercent = ack.ScorePercent
			result.Passed = ack.Passed()
		}
	default:
		log.Printf("attempt %s: gateway retries exhausted, recording unsynced result: %v", a.id, err)
	}

	if err := a.rec.Record(ctx, result); err != nil {
		if errors.Is(err, domain.ErrDuplicateAttempt) {
			// A concurrent completion already won; the ledger's entry is the
			// truth and this attempt's local result is discarded.
			if existing, getErr := a.rec.Get(ctx, a.learnerID, a.def.ID); getErr == nil {
				result = existing
			} else {
				log.Printf("attempt %s: fetch existing result: %v", a.id, getErr)
			}
		} else {
			log.Printf("attempt %s: record result: %v", a.id, err)
		}
	}

	a.complete(result)
}

func (a *Attempt) submitWithRetry(ctx context.Context, result domain.AttemptResult) (gateway.Ack, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = a.retry.InitialInterval
	if a.retry.MaxInterval > 0 {
		bo.MaxInterval = a.retry.MaxInterval
	}

	var ack gateway.Ack
	op := func() error {
		got, err := a.gw.SubmitAttempt(ctx, result)
		if err != nil {
			var te *gateway.TransportError
			if errors.As(err, &te) {
				return err
			}
			return backoff.Permanent(err)
		}
		ack = got
		return nil
	}
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, a.retry.MaxRetries), ctx))
	return ack, err
}

func (a *Attempt) complete(result domain.AttemptResult) {
	a.mu.Lock()
	a.phase = PhaseCompleted
	a.result = &result
	a.mu.Unlock()
	close(a.done)
}

func (a *Attempt) completeWithFailure(err error) {
	a.mu.Lock()
	a.phase = PhaseCompleted
	a.failure = err
	a.mu.Unlock()
	close(a.done)
}

// Phase returns the current lifecycle state.
func (a *Attempt) Phase() Phase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Remaining returns the countdown in seconds.
func (a *Attempt) Remaining() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.remaining
}

// Current returns the cursor position.
func (a *Attempt) Current() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Answer returns the stored selection for a question (nil when unanswered).
func (a *Attempt) Answer(questionIndex int) domain.Selection {
	a.mu.Lock()
	defer a.mu.Unlock()
	if questionIndex < 0 || questionIndex >= len(a.answers) {
		return nil
	}
	return a.answers[questionIndex]
}

// Done is closed once the attempt reaches Completed.
func (a *Attempt) Done() <-chan struct{} { return a.done }

// Result returns the terminal result once the attempt is Completed.
func (a *Attempt) Result() (domain.AttemptResult, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.result == nil {
		return domain.AttemptResult{}, false
	}
	return *a.result, true
}

// Wait blocks until the attempt completes or the context ends, then returns
// the terminal result (or the scoring invariant failure, if one occurred).
func (a *Attempt) Wait(ctx context.Context) (domain.AttemptResult, error) {
	select {
	case <-a.done:
	case <-ctx.Done():
		return domain.AttemptResult{}, ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failure != nil {
		return domain.AttemptResult{}, a.failure
	}
	return *a.result, nil
}

// Snapshot is a read-only view of attempt progress for transports.
type Snapshot struct {
	AttemptID        string `json:"attemptId"`
	QuizID           string `json:"quizId"`
	Phase            Phase  `json:"phase"`
	CurrentQuestion  int    `json:"currentQuestion"`
	RemainingSeconds int    `json:"remainingSeconds"`
	QuestionCount    int    `json:"questionCount"`
	AnsweredCount    int    `json:"answeredCount"`
	Answered         []bool `json:"answered"`
}

// Snapshot captures progress for the progress bar and question navigator.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	answered := make([]bool, len(a.def.Questions))
	count := 0
	for i, sel := range a.answers {
		if !sel.IsEmpty() {
			answered[i] = true
			count++
		}
	}
	return Snapshot{
		AttemptID:        a.id,
		QuizID:           a.def.ID,
		Phase:            a.phase,
		CurrentQuestion:  a.current,
		RemainingSeconds: a.remaining,
		QuestionCount:    len(a.def.Questions),
		AnsweredCount:    count,
		Answered:         answered,
	}
}
