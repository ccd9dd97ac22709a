package quizdef

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"lms-assessment-service/internal/domain"
)

// RedisRepository caches each definition as one JSON value in Redis and
// falls back to the loader on a miss. The whole definition is cached, answer
// keys included, because scoring needs the full key set; the value never
// leaves the server untrimmed (the transport sanitizes its own view).
type RedisRepository struct {
	client *redis.Client
	loader Loader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewRedisRepository(client *redis.Client, loader Loader, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RedisRepository) GetDefinition(ctx context.Context, quizID string) (domain.QuizDefinition, error) {
	key := r.key(quizID)

	if def, ok := r.fromCache(ctx, key); ok {
		return def, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check in case another goroutine filled the cache.
		if def, ok := r.fromCache(ctx, key); ok {
			return def, nil
		}

		raw, err := r.loader.LoadDefinition(ctx, quizID)
		if err != nil {
			return domain.QuizDefinition{}, err
		}
		def, err := prepare(raw)
		if err != nil {
			return domain.QuizDefinition{}, err
		}

		if data, err := json.Marshal(def); err == nil {
			// best-effort cache fill
			_ = r.client.Set(ctx, key, data, r.ttlWithJitter()).Err()
		}
		return def, nil
	})
	if err != nil {
		return domain.QuizDefinition{}, err
	}
	return result.(domain.QuizDefinition), nil
}

func (r *RedisRepository) fromCache(ctx context.Context, key string) (domain.QuizDefinition, bool) {
	// Any cache trouble is treated as a miss; the loader is the source of truth.
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.QuizDefinition{}, false
	}
	var def domain.QuizDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.QuizDefinition{}, false
	}
	return def, true
}

func (r *RedisRepository) key(quizID string) string {
	return "quizdef:" + quizID
}

func (r *RedisRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
