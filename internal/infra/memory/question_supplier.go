package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"quiz-duel-service/internal/domain"
)

// QuestionLoader fetches the question pool for a difficulty from a backing store.
// An empty difficulty selects every question.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, difficulty string) ([]domain.Question, error)
}

// QuestionSupplier caches question pools per difficulty with a TTL and samples match
// question sets from them.
type QuestionSupplier struct {
	loader  QuestionLoader
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	sampler *Sampler

	mu    sync.RWMutex
	cache map[string]cachedPool
}

type cachedPool struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionSupplier(loader QuestionLoader, ttl time.Duration) *QuestionSupplier {
	return &QuestionSupplier{
		loader:  loader,
		ttl:     ttl,
		clock:   time.Now,
		sampler: NewSampler(),
		cache:   make(map[string]cachedPool),
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
	key := poolKey(difficulty)
	if pool, ok := s.cached(key); ok {
		return pool, nil
	}

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if pool, ok := s.cached(key); ok {
			return pool, nil
		}
		pool, err := s.loader.LoadQuestions(ctx, difficulty)
		if err != nil {
			return nil, err
		}
		if s.ttl > 0 {
			s.mu.Lock()
			s.cache[key] = cachedPool{questions: pool, expiresAt: s.clock().Add(s.sampler.Jitter(s.ttl))}
			s.mu.Unlock()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (s *QuestionSupplier) cached(key string) ([]domain.Question, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[key]
	if !ok || !entry.expiresAt.After(s.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func poolKey(difficulty string) string {
	if difficulty == "" {
		return "any"
	}
	return strings.ToLower(difficulty)
}

// StaticQuestionLoader serves a fixed question bank (useful for tests/demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, difficulty string) ([]domain.Question, error) {
	out := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if difficulty == "" || strings.EqualFold(q.Difficulty, difficulty) {
			out = append(out, q)
		}
	}
	return out, nil
}
