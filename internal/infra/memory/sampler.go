package memory

import (
	"math/rand"
	"sync"
	"time"

	"github.com/samber/lo"
	"quiz-duel-service/internal/domain"
)

// Sampler draws random, duplicate-free question sets from a pool. It is safe for
// concurrent use.
type Sampler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSampler() *Sampler {
	return NewSeededSampler(time.Now().UnixNano())
}

func NewSeededSampler(seed int64) *Sampler {
	return &Sampler{rnd: rand.New(rand.NewSource(seed))}
}

// Sample returns up to count questions from pool in random order. Questions sharing an
// id appear once. The pool is never modified.
func (s *Sampler) Sample(pool []domain.Question, count int) []domain.Question {
	if count <= 0 {
		return nil
	}
	unique := lo.UniqBy(pool, func(q domain.Question) string { return q.ID })

	s.mu.Lock()
	s.rnd.Shuffle(len(unique), func(i, j int) { unique[i], unique[j] = unique[j], unique[i] })
	s.mu.Unlock()

	if len(unique) > count {
		unique = unique[:count]
	}
	return unique
}

// Jitter adds up to 10% to ttl so that cache entries do not expire together.
func (s *Sampler) Jitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	s.mu.Lock()
	defer s.mu.Unlock()
	return ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
