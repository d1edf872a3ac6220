package memory

import (
	"context"
	"sync"

	"quiz-duel-service/internal/domain"
)

// MatchStore keeps match snapshots in process memory. It outlives registry entries, so
// reconnects after a sweep can still be answered within one process.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]domain.Match
}

func NewMatchStore() *MatchStore {
	return &MatchStore{matches: make(map[string]domain.Match)}
}

func (s *MatchStore) SaveMatch(_ context.Context, m domain.Match) error {
	if m.Decision != nil {
		d := *m.Decision
		m.Decision = &d
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[m.ID] = m
	return nil
}

func (s *MatchStore) LoadMatch(_ context.Context, matchID string) (domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[matchID]
	if !ok {
		return domain.Match{}, domain.ErrMatchNotFound
	}
	if m.Decision != nil {
		d := *m.Decision
		m.Decision = &d
	}
	return m, nil
}
