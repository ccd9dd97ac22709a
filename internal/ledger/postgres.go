package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lms-assessment-service/internal/domain"
)

// Postgres is the durable Ledger. The (learner_id, quiz_id) primary key plus
// ON CONFLICT DO NOTHING gives first-write-wins at the database, so two
// racing completions resolve without any lock in this process.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) HasAttempted(ctx context.Context, learnerID, quizID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attempts WHERE learner_id=$1 AND quiz_id=$2)`,
		learnerID, quizID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return exists, nil
}

func (p *Postgres) Record(ctx context.Context, result domain.AttemptResult) error {
	answers, err := json.Marshal(result.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO attempts (learner_id, quiz_id, attempt_id, answers, score_percent, passed, completed_at, completion_reason, synced)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8, $9)
		 ON CONFLICT (learner_id, quiz_id) DO NOTHING`,
		result.LearnerID, result.QuizID, result.AttemptID, string(answers),
		result.ScorePercent, result.Passed, result.CompletedAt, string(result.Reason), result.Synced)
	if err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicateAttempt
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, learnerID, quizID string) (domain.AttemptResult, error) {
	var (
		result     domain.AttemptResult
		rawAnswers []byte
		reason     string
	)
	err := p.pool.QueryRow(ctx,
		`SELECT attempt_id, answers, score_percent, passed, completed_at, completion_reason, synced
		 FROM attempts WHERE learner_id=$1 AND quiz_id=$2`,
		learnerID, quizID).Scan(
		&result.AttemptID, &rawAnswers, &result.ScorePercent, &result.Passed,
		&result.CompletedAt, &reason, &result.Synced)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AttemptResult{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptResult{}, fmt.Errorf("ledger get: %w", err)
	}
	if err := json.Unmarshal(rawAnswers, &result.Answers); err != nil {
		return domain.AttemptResult{}, fmt.Errorf("unmarshal answers: %w", err)
	}
	result.LearnerID = learnerID
	result.QuizID = quizID
	result.Reason = domain.CompletionReason(reason)
	return result, nil
}
