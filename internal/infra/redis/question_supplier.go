package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"quiz-duel-service/internal/domain"
	"quiz-duel-service/internal/infra/memory"
)

// QuestionSupplier caches question pools in Redis and falls back to a loader on cache miss.
// A pool is stored as: HSET questions:pool:{difficulty} {questionID} {question JSON}
type QuestionSupplier struct {
	client  *redis.Client
	loader  memory.QuestionLoader
	ttl     time.Duration
	sf      singleflight.Group
	sampler *memory.Sampler
}

func NewQuestionSupplier(client *redis.Client, loader memory.QuestionLoader, ttl time.Duration) *QuestionSupplier {
	return &QuestionSupplier{
		client:  client,
		loader:  loader,
		ttl:     ttl,
		sampler: memory.NewSampler(),
	}
}

func (s *QuestionSupplier) FetchRandomQuestions(ctx context.Context, count int, difficulty string) ([]domain.Question, error) {
	pool, err := s.pool(ctx, difficulty)
	if err != nil {
		return nil, err
	}
	return s.sampler.Sample(pool, count), nil
}

func (s *QuestionSupplier) pool(ctx context.Context, difficulty string) ([]domain.Question, error) {
	key := s.poolKey(difficulty)
	if pool, ok := s.cached(ctx, key); ok {
		return pool, nil
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if pool, ok := s.cached(ctx, key); ok {
			return pool, nil
		}

		pool, err := s.loader.LoadQuestions(ctx, difficulty)
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return pool, nil
		}

		fields := make(map[string]interface{}, len(pool))
		for _, q := range pool {
			raw, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			fields[q.ID] = raw
		}
		pipe := s.client.Pipeline()
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		if ttl := s.sampler.Jitter(s.ttl); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// cached returns the pool stored under key. Undecodable entries are skipped.
func (s *QuestionSupplier) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	entries, err := s.client.HGetAll(ctx, key).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	pool := make([]domain.Question, 0, len(entries))
	for _, raw := range entries {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			continue
		}
		pool = append(pool, q)
	}
	return pool, len(pool) > 0
}

func (s *QuestionSupplier) poolKey(difficulty string) string {
	if difficulty == "" {
		difficulty = "any"
	}
	return "questions:pool:" + strings.ToLower(difficulty)
}
