package memory

import (
	"context"
	"sync"

	"quiz-duel-service/internal/domain"
)

// RatingStore keeps player ratings in process memory.
type RatingStore struct {
	mu      sync.RWMutex
	ratings map[string]int
}

func NewRatingStore() *RatingStore {
	return &RatingStore{ratings: make(map[string]int)}
}

func (s *RatingStore) GetRating(_ context.Context, playerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.ratings[playerID]
	if !ok {
		return 0, domain.ErrPlayerNotFound
	}
	return r, nil
}

func (s *RatingStore) SetRating(_ context.Context, playerID string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings[playerID] = rating
	return nil
}
