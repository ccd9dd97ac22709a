package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lms-assessment-service/internal/domain"
)

// Redis stores attempt results as JSON values keyed by (learner, quiz).
// SETNX makes Record first-write-wins without any application-side locking:
// whichever of two racing completions reaches Redis first owns the entry.
// Entries carry no TTL; the ledger is a durable record, not a cache.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) HasAttempted(ctx context.Context, learnerID, quizID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(learnerID, quizID)).Result()
	if err != nil {
		return false, fmt.Errorf("ledger exists: %w", err)
	}
	return n > 0, nil
}

func (r *Redis) Record(ctx context.Context, result domain.AttemptResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	set, err := r.client.SetNX(ctx, r.key(result.LearnerID, result.QuizID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("ledger record: %w", err)
	}
	if !set {
		return domain.ErrDuplicateAttempt
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, learnerID, quizID string) (domain.AttemptResult, error) {
	data, err := r.client.Get(ctx, r.key(learnerID, quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.AttemptResult{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.AttemptResult{}, fmt.Errorf("ledger get: %w", err)
	}
	var result domain.AttemptResult
	if err := json.Unmarshal(data, &result); err != nil {
		return domain.AttemptResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}

func (r *Redis) key(learnerID, quizID string) string {
	return "attempt:" + learnerID + ":" + quizID
}
